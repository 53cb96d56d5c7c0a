package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/commevents/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStorage(t *testing.T, endpoint string) *MinIOStorage {
	return testStorageTimeout(t, endpoint, 0)
}

func testStorageTimeout(t *testing.T, endpoint string, opTimeout time.Duration) *MinIOStorage {
	t.Helper()
	st, err := newClient(Settings{
		OpTimeout:     opTimeout,
		Endpoint:      endpoint,
		AccessKey:     "minio",
		SecretKey:     "minio123",
		Bucket:        "images",
		Region:        "us-east-1",
		PublicBaseURL: "https://cdn.example.com/",
	})
	require.NoError(t, err)
	return st
}

func TestKeyFromURL(t *testing.T) {
	st := testStorage(t, "localhost:9000")

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"https://cdn.example.com/images/events/event_1.png", "events/event_1.png", false},
		{"https://cdn.example.com/images/profiles/u%201.jpg?v=2", "profiles/u 1.jpg", false},
		{"events/event_1.png", "events/event_1.png", false},
		{"/profiles/u1.png", "profiles/u1.png", false},
		{"https://other.example.com/images/events/event_1.png", "", true},
		{"https://cdn.example.com/another-bucket/x.png", "", true},
		{"https://cdn.example.com/images/", "", true},
		{"", "", true},
	}
	for _, tc := range tests {
		got, err := st.KeyFromURL(tc.in)
		if tc.wantErr {
			require.ErrorIs(t, err, models.ErrInvalid, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
	assert.Equal(t, "https://cdn.example.com/images/profiles/u%201.jpg", st.URL("profiles/u 1.jpg"))
}

// fakeS3 answers the handful of object calls the storage makes.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		b, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = b
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		if _, ok := f.objects[r.URL.Path]; !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		delete(f.objects, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestUploadAndDelete(t *testing.T) {
	s3 := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(s3)
	defer srv.Close()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	st := testStorage(t, u.Host)
	ctx := context.Background()

	body := "fake-png-bytes"
	publicURL, err := st.Upload(ctx, "events/event_1.png", strings.NewReader(body), int64(len(body)), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/images/events/event_1.png", publicURL)
	assert.Equal(t, []byte(body), s3.objects["/images/events/event_1.png"])
	assert.Equal(t, "image/png", s3.types["/images/events/event_1.png"])

	require.NoError(t, st.Delete(ctx, publicURL))
	assert.Empty(t, s3.objects)

	// deleting again is not an error
	require.NoError(t, st.Delete(ctx, publicURL))

	require.ErrorIs(t, st.Delete(ctx, "https://elsewhere.example.com/x.png"), models.ErrInvalid)
}

func TestHungObjectStoreIsCutOff(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	st := testStorageTimeout(t, u.Host, 200*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	_, err = st.Upload(ctx, "events/event_1.png", strings.NewReader("png"), 3, "image/png")
	require.ErrorIs(t, err, models.ErrTransient)
	require.ErrorIs(t, st.Delete(ctx, "events/event_1.png"), models.ErrTransient)
	require.ErrorIs(t, st.Ping(ctx), models.ErrTransient)
	assert.Less(t, time.Since(start), 5*time.Second)
}
