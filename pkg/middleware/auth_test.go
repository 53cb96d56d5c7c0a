package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/commevents/backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

// fakeToken implements Token
type fakeToken struct {
	data map[string]interface{}
}

func (t *fakeToken) Claims(v interface{}) error {
	if mm, ok := v.(*map[string]interface{}); ok {
		*mm = t.data
		return nil
	}
	return fmt.Errorf("unsupported claims type")
}

// fakeVerifier implements Verifier
type fakeVerifier struct{}

func (f *fakeVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	switch raw {
	case "goodtoken":
		return &fakeToken{data: map[string]interface{}{"sub": "user1", "email": "test@example.com"}}, nil
	case "nosub":
		return &fakeToken{data: map[string]interface{}{"email": "test@example.com"}}, nil
	}
	return nil, fmt.Errorf("invalid token")
}

type fakeResolver struct {
	users map[string]*models.User
	err   error
}

func (f *fakeResolver) GetBySub(_ context.Context, sub string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[sub]
	if !ok {
		return nil, models.ErrNotFound
	}
	return u, nil
}

func serve(g *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	return rw
}

func TestAuthMiddleware_RejectsBadHeaders(t *testing.T) {
	g := gin.New()
	g.GET("/", AuthMiddleware(&fakeVerifier{}), func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, h := range []string{"", "BadHeader", "Bearer ", "Basic goodtoken", "Bearer badtoken", "Bearer nosub"} {
		require.Equal(t, http.StatusUnauthorized, serve(g, h).Code, "header %q", h)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	g := gin.New()
	g.GET("/", AuthMiddleware(&fakeVerifier{}), func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"claims": claims, "sub": SubjectFrom(c)})
	})

	rw := serve(g, "Bearer goodtoken")
	require.Equal(t, http.StatusOK, rw.Code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &got))
	require.Contains(t, got, "claims")
	require.Equal(t, "user1", got["sub"])
}

func TestCurrentUser(t *testing.T) {
	resolver := &fakeResolver{users: map[string]*models.User{"user1": {ID: "u-1", Sub: "user1", Role: models.RoleUser}}}
	g := gin.New()
	g.GET("/", AuthMiddleware(&fakeVerifier{}), CurrentUser(resolver), func(c *gin.Context) {
		u, ok := UserFrom(c)
		require.True(t, ok)
		c.String(http.StatusOK, u.ID)
	})

	rw := serve(g, "Bearer goodtoken")
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, "u-1", rw.Body.String())

	delete(resolver.users, "user1")
	rw = serve(g, "Bearer goodtoken")
	require.Equal(t, http.StatusUnauthorized, rw.Code)
	require.Contains(t, rw.Body.String(), "user_not_found")

	resolver.err = fmt.Errorf("%w: timeout", models.ErrTransient)
	require.Equal(t, http.StatusServiceUnavailable, serve(g, "Bearer goodtoken").Code)

	resolver.err = errors.New("boom")
	require.Equal(t, http.StatusInternalServerError, serve(g, "Bearer goodtoken").Code)
}

func TestAdminOnly(t *testing.T) {
	resolver := &fakeResolver{users: map[string]*models.User{"user1": {ID: "u-1", Sub: "user1", Role: models.RoleStaff}}}
	g := gin.New()
	g.GET("/", AuthMiddleware(&fakeVerifier{}), CurrentUser(resolver), AdminOnly(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	require.Equal(t, http.StatusForbidden, serve(g, "Bearer goodtoken").Code)
	resolver.users["user1"].Role = models.RoleAdmin
	require.Equal(t, http.StatusOK, serve(g, "Bearer goodtoken").Code)
}

func TestRequestID(t *testing.T) {
	g := gin.New()
	g.Use(RequestID(), AccessLog())
	g.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	rw := serve(g, "")
	id := rw.Header().Get("X-Request-ID")
	require.Len(t, id, 36)
	require.Equal(t, id, rw.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-42")
	rw = httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	require.Equal(t, "upstream-42", rw.Header().Get("X-Request-ID"))
}
