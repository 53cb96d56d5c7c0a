package handlers

import (
	"github.com/commevents/backend/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// Routes are the router groups handlers attach to, one per access level.
type Routes struct {
	Public *gin.RouterGroup // no authentication
	Token  *gin.RouterGroup // verified bearer token
	User   *gin.RouterGroup // verified token and a registered user
	Admin  *gin.RouterGroup // registered user with the admin role
}

// NewRoutes builds the access-level groups under api. limit runs after
// authentication so authenticated callers are limited per subject.
func NewRoutes(api *gin.RouterGroup, ver middleware.Verifier, users middleware.UserResolver, limit gin.HandlerFunc) Routes {
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}
	public := api.Group("", limit)
	token := api.Group("", middleware.AuthMiddleware(ver), limit)
	user := token.Group("", middleware.CurrentUser(users))
	admin := user.Group("", middleware.AdminOnly())
	return Routes{Public: public, Token: token, User: user, Admin: admin}
}
