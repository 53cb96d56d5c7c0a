package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/commevents/backend/internal/events"
	"github.com/commevents/backend/internal/models"
	"github.com/commevents/backend/internal/registration"
	"github.com/commevents/backend/internal/users"
	"github.com/commevents/backend/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

// subjectToken treats the raw bearer value as the subject.
type subjectToken struct{ sub string }

func (t subjectToken) Claims(v interface{}) error {
	b, _ := json.Marshal(map[string]interface{}{"sub": t.sub, "email": t.sub + "@example.com", "name": strings.ToUpper(t.sub)})
	return json.Unmarshal(b, v)
}

type subjectVerifier struct{}

func (subjectVerifier) Verify(_ context.Context, raw string) (middleware.Token, error) {
	if raw == "invalid" {
		return nil, errors.New("bad signature")
	}
	return subjectToken{sub: raw}, nil
}

// memObjects is an in-memory ObjectStore.
type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

const objectBase = "https://cdn.example.com/images/"

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memObjects) Upload(_ context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = b
	m.types[key] = contentType
	return objectBase + key, nil
}

func (m *memObjects) KeyFromURL(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		return raw, nil
	}
	key, ok := strings.CutPrefix(raw, objectBase)
	if !ok {
		return "", models.ErrInvalid
	}
	return key, nil
}

func (m *memObjects) Delete(_ context.Context, urlOrKey string) error {
	key, err := m.KeyFromURL(urlOrKey)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memObjects) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

type harness struct {
	t       *testing.T
	engine  *gin.Engine
	users   *users.MemoryUserRepository
	events  *events.MemoryRepository
	objects *memObjects
	images  *ImageHandler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		engine:  gin.New(),
		users:   users.NewMemoryUserRepository(),
		events:  events.NewMemoryRepository(),
		objects: newMemObjects(),
	}
	userSvc := users.NewService(h.users, h.events)
	routes := NewRoutes(h.engine.Group("/api"), subjectVerifier{}, userSvc, nil)
	NewEventHandler(events.NewService(h.events, userSvc), registration.NewEngine(h.events, userSvc)).Register(routes)
	NewUserHandler(userSvc).Register(routes)
	h.images = NewImageHandler(h.objects, userSvc, 1024)
	h.images.Register(routes)
	return h
}

// login registers sub as a user and returns it.
func (h *harness) login(sub string, role models.Role) *models.User {
	h.t.Helper()
	u, err := h.users.UpsertBySub(context.Background(), &models.User{Sub: sub})
	require.NoError(h.t, err)
	if role != models.RoleUser {
		u, err = h.users.UpdateRole(context.Background(), u.ID, role)
		require.NoError(h.t, err)
	}
	return u
}

func (h *harness) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
