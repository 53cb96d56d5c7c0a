package handlers

import (
	"net/http"
	"testing"

	"github.com/commevents/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertAndProfile(t *testing.T) {
	h := newHarness(t)

	// token is valid but no user document exists yet
	require.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/users/profile", "alice", nil).Code)
	require.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/api/users", "invalid", nil).Code)

	w := h.do(http.MethodPost, "/api/users", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	u := decode[map[string]interface{}](t, w)
	assert.Equal(t, "alice", u["sub"])
	assert.Equal(t, "ALICE", u["displayName"])
	assert.Equal(t, "user", u["role"])

	w = h.do(http.MethodPost, "/api/users", "alice", map[string]string{"displayName": "Alice A."})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Alice A.", decode[map[string]interface{}](t, w)["displayName"])

	w = h.do(http.MethodGet, "/api/users/profile", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode[map[string]interface{}](t, w)
	assert.Equal(t, u["id"], profile["id"])
	assert.NotContains(t, profile, "googleCalendar")
}

func TestProfileNeverExposesCalendarTokens(t *testing.T) {
	h := newHarness(t)
	u := h.login("alice", models.RoleUser)
	require.NoError(t, h.users.SetCalendarCredential(t.Context(), u.ID, models.CalendarCredential{AccessToken: "secret-access", RefreshToken: "secret-refresh"}))

	w := h.do(http.MethodGet, "/api/users/profile", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret-")
}

func TestAdminUserEndpoints(t *testing.T) {
	h := newHarness(t)
	h.login("root", models.RoleAdmin)
	bob := h.login("bob", models.RoleUser)

	require.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/api/users/"+bob.ID, "bob", nil).Code)

	w := h.do(http.MethodGet, "/api/users/"+bob.ID, "root", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bob", decode[map[string]interface{}](t, w)["sub"])

	require.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/users/nobody", "root", nil).Code)

	w = h.do(http.MethodPut, "/api/users/"+bob.ID+"/role", "root", map[string]string{"role": "wizard"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPut, "/api/users/"+bob.ID+"/role", "root", map[string]string{"role": "staff"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "staff", decode[map[string]interface{}](t, w)["role"])

	require.Equal(t, http.StatusForbidden, h.do(http.MethodPut, "/api/users/"+bob.ID+"/role", "bob", map[string]string{"role": "admin"}).Code)
}
