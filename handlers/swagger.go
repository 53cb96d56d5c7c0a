package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger serves the API documentation.
// - GET /swagger/index.html  -> Swagger UI page
// - GET /swagger/doc.json    -> OpenAPI document
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerHTML))
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>commevents API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "commevents", "version": "v1.0.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } },
    "schemas": {
      "Error": { "type": "object", "properties": { "error": {"type":"string"}, "code": {"type":"string"} } },
      "EventInput": { "type": "object", "required": ["title","startDate","endDate"], "properties": {
        "title": {"type":"string"}, "description": {"type":"string"}, "startDate": {"type":"string","format":"date-time"},
        "endDate": {"type":"string","format":"date-time"}, "location": {"type":"string"}, "category": {"type":"string"},
        "imageUrl": {"type":"string"}, "capacity": {"type":"integer","minimum":1} } }
    }
  },
  "paths": {
    "/api/events": {
      "get": { "summary": "List events", "responses": { "200": { "description": "events ordered by start date" } } },
      "post": { "summary": "Create event (caller becomes organizer)", "security": [{"bearer": []}],
        "requestBody": { "content": { "application/json": { "schema": { "$ref": "#/components/schemas/EventInput" } } } },
        "responses": { "201": { "description": "created" }, "400": { "description": "invalid input" } } }
    },
    "/api/events/{id}": {
      "get": { "summary": "Get event", "responses": { "200": { "description": "event" }, "404": { "description": "not found" } } },
      "put": { "summary": "Update event (organizer or admin)", "security": [{"bearer": []}], "responses": { "200": { "description": "updated" }, "403": { "description": "not the organizer" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Delete event (organizer or admin)", "security": [{"bearer": []}], "responses": { "200": { "description": "deleted" }, "403": { "description": "not the organizer" }, "404": { "description": "not found" } } }
    },
    "/api/events/{id}/register": {
      "post": { "summary": "Register the caller for an event", "security": [{"bearer": []}],
        "responses": { "200": { "description": "registered" }, "404": { "description": "event not found" },
          "409": { "description": "already_registered or capacity_exceeded", "content": { "application/json": { "schema": { "$ref": "#/components/schemas/Error" } } } } } }
    },
    "/api/users": {
      "post": { "summary": "Create or update the caller from token claims", "security": [{"bearer": []}], "responses": { "200": { "description": "user" } } }
    },
    "/api/users/profile": { "get": { "summary": "Caller profile", "security": [{"bearer": []}], "responses": { "200": { "description": "user" } } } },
    "/api/users/events": { "get": { "summary": "Events the caller created and attends", "security": [{"bearer": []}], "responses": { "200": { "description": "events" } } } },
    "/api/users/{id}": { "get": { "summary": "Get any user (admin)", "security": [{"bearer": []}], "responses": { "200": { "description": "user" }, "403": { "description": "admin only" } } } },
    "/api/users/{id}/role": { "put": { "summary": "Change a user's role (admin)", "security": [{"bearer": []}], "responses": { "200": { "description": "user" }, "400": { "description": "unknown role" } } } },
    "/api/calendar/auth/google/url": { "get": { "summary": "Google consent URL", "security": [{"bearer": []}], "responses": { "200": { "description": "url" } } } },
    "/api/calendar/auth/google/callback": { "post": { "summary": "Complete Google consent with code and state", "security": [{"bearer": []}], "responses": { "200": { "description": "connected" }, "400": { "description": "invalid code or state" }, "403": { "description": "state issued to another user" } } } },
    "/api/calendar/events/{eventId}/add": { "post": { "summary": "Copy an event into the caller's Google Calendar", "security": [{"bearer": []}], "responses": { "200": { "description": "calendar event id" }, "400": { "description": "calendar_not_connected" }, "401": { "description": "calendar_auth_expired" } } } },
    "/api/calendar/events": { "get": { "summary": "Upcoming Google Calendar entries", "security": [{"bearer": []}], "responses": { "200": { "description": "entries" } } } },
    "/api/calendar/disconnect": { "delete": { "summary": "Remove the stored Google credential", "security": [{"bearer": []}], "responses": { "200": { "description": "disconnected" } } } },
    "/api/images/events": { "post": { "summary": "Upload an event image (multipart field image)", "security": [{"bearer": []}], "responses": { "200": { "description": "imageUrl" }, "400": { "description": "not an image or too large" } } } },
    "/api/images/profile": { "post": { "summary": "Upload the caller's profile image", "security": [{"bearer": []}], "responses": { "200": { "description": "imageUrl" } } } },
    "/api/images": { "delete": { "summary": "Delete an image by imageUrl", "security": [{"bearer": []}], "responses": { "200": { "description": "deleted" } } } },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  }
}`
