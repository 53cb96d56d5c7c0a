package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/commevents/backend/internal/models"
	"github.com/commevents/backend/pkg/logger"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const defaultMaxImageBytes = 5 << 20

// ObjectStore stores images and serves them from public URLs.
type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, urlOrKey string) error
	KeyFromURL(raw string) (string, error)
}

// PhotoSetter records a user's profile photo URL.
type PhotoSetter interface {
	SetPhotoURL(ctx context.Context, userID, photoURL string) error
}

// ImageHandler uploads and deletes event and profile images.
type ImageHandler struct {
	store    ObjectStore
	users    PhotoSetter
	maxBytes int64
	now      func() time.Time
}

func NewImageHandler(store ObjectStore, users PhotoSetter, maxBytes int64) *ImageHandler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxImageBytes
	}
	return &ImageHandler{store: store, users: users, maxBytes: maxBytes, now: time.Now}
}

func (h *ImageHandler) Register(r Routes) {
	r.User.POST("/images/events", h.UploadEventImage)
	r.User.POST("/images/profile", h.UploadProfileImage)
	r.User.DELETE("/images", h.DeleteImage)
}

type image struct {
	data []byte
	mime string
	ext  string
}

// readImage reads the multipart "image" field and checks its size and sniffed type.
func (h *ImageHandler) readImage(c *gin.Context) (*image, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+1<<20)
	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: image exceeds %d bytes", models.ErrInvalid, h.maxBytes)
		}
		return nil, fmt.Errorf("%w: no image file provided", models.ErrInvalid)
	}
	if fh.Size > h.maxBytes {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", models.ErrInvalid, h.maxBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > h.maxBytes {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", models.ErrInvalid, h.maxBytes)
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("%w: %s is not an image", models.ErrInvalid, mt.String())
	}
	return &image{data: data, mime: mt.String(), ext: mt.Extension()}, nil
}

func (h *ImageHandler) UploadEventImage(c *gin.Context) {
	img, err := h.readImage(c)
	if err != nil {
		respondError(c, err)
		return
	}
	key := "events/event_" + strconv.FormatInt(h.now().UnixMilli(), 10) + "_" + uuid.NewString() + img.ext
	url, err := h.store.Upload(c.Request.Context(), key, bytes.NewReader(img.data), int64(len(img.data)), img.mime)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "image uploaded", "imageUrl": url})
}

// UploadProfileImage replaces the caller's photo. Removing the previous
// object is best-effort.
func (h *ImageHandler) UploadProfileImage(c *gin.Context) {
	u := mustUser(c)
	img, err := h.readImage(c)
	if err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	key := "profiles/" + u.ID + img.ext
	url, err := h.store.Upload(ctx, key, bytes.NewReader(img.data), int64(len(img.data)), img.mime)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.users.SetPhotoURL(ctx, u.ID, url); err != nil {
		respondError(c, err)
		return
	}

	if u.PhotoURL != "" && u.PhotoURL != url {
		// photos from the identity provider live elsewhere and are left alone
		if oldKey, err := h.store.KeyFromURL(u.PhotoURL); err == nil && oldKey != key {
			if err := h.store.Delete(ctx, oldKey); err != nil {
				logger.With("userId", u.ID).Warn("failed to delete previous profile image", "error", err)
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "profile image uploaded", "imageUrl": url})
}

// DeleteImage removes an image by URL. Deleting a missing image succeeds.
// Profile images may only be removed by their owner or an admin.
func (h *ImageHandler) DeleteImage(c *gin.Context) {
	var req struct {
		ImageURL string `json:"imageUrl" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	key, err := h.store.KeyFromURL(req.ImageURL)
	if err != nil {
		respondError(c, err)
		return
	}
	u := mustUser(c)
	if owner, ok := strings.CutPrefix(key, "profiles/"); ok && !u.IsAdmin() && !strings.HasPrefix(owner, u.ID+".") {
		respondError(c, fmt.Errorf("%w: not your profile image", models.ErrForbidden))
		return
	}
	if err := h.store.Delete(c.Request.Context(), key); err != nil && !errors.Is(err, models.ErrNotFound) {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "image deleted"})
}
