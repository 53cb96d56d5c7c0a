package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/commevents/backend/internal/models"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const publicReadPolicy = `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`

// MinIOStorage stores publicly readable images in a single bucket.
type MinIOStorage struct {
	client    *minio.Client
	bucket    string
	baseURL   string
	opTimeout time.Duration
}

func newClient(s Settings) (*MinIOStorage, error) {
	if s.Endpoint == "" || s.Bucket == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(s.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(s.AccessKey, s.SecretKey, ""),
		Secure: s.UseSSL,
		Region: s.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	if s.OpTimeout <= 0 {
		s.OpTimeout = defaultOpTimeout
	}
	return &MinIOStorage{
		client:    mc,
		bucket:    s.Bucket,
		baseURL:   s.publicBase() + "/" + s.Bucket + "/",
		opTimeout: s.OpTimeout,
	}, nil
}

// NewMinIOStorage connects to MinIO, ensures the bucket exists and makes its
// objects publicly readable.
func NewMinIOStorage(ctx context.Context, s Settings) (*MinIOStorage, error) {
	st, err := newClient(s)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, st.opTimeout)
	defer cancel()
	if err := st.client.MakeBucket(ctx, st.bucket, minio.MakeBucketOptions{Region: s.Region}); err != nil {
		// ignore "already exists" style errors
		exist, xerr := st.client.BucketExists(ctx, st.bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	if err := st.client.SetBucketPolicy(ctx, st.bucket, fmt.Sprintf(publicReadPolicy, st.bucket)); err != nil {
		return nil, fmt.Errorf("minio bucket policy: %w", err)
	}
	return st, nil
}

// Upload stores the object under key and returns its public URL.
func (s *MinIOStorage) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000",
	})
	if err != nil {
		return "", fmt.Errorf("%w: upload %s: %v", models.ErrTransient, key, err)
	}
	return s.URL(key), nil
}

// URL returns the public URL for key.
func (s *MinIOStorage) URL(key string) string {
	return s.baseURL + (&url.URL{Path: key}).EscapedPath()
}

// KeyFromURL extracts the object key from one of this bucket's public URLs.
// A bare key is returned unchanged.
func (s *MinIOStorage) KeyFromURL(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		key := strings.TrimLeft(raw, "/")
		if key == "" {
			return "", fmt.Errorf("%w: empty object key", models.ErrInvalid)
		}
		return key, nil
	}
	rest, ok := strings.CutPrefix(raw, s.baseURL)
	if !ok || rest == "" {
		return "", fmt.Errorf("%w: %s is not an object of bucket %s", models.ErrInvalid, raw, s.bucket)
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	key, err := url.PathUnescape(rest)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrInvalid, err)
	}
	return key, nil
}

// Delete removes the object addressed by a public URL or key. Deleting a
// missing object succeeds.
func (s *MinIOStorage) Delete(ctx context.Context, urlOrKey string) error {
	key, err := s.KeyFromURL(urlOrKey)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	err = s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err == nil || minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return nil
	}
	return fmt.Errorf("%w: delete %s: %v", models.ErrTransient, key, err)
}

// Ping checks that the bucket is reachable.
func (s *MinIOStorage) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("%w: bucket %s: %v", models.ErrTransient, s.bucket, err)
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}
