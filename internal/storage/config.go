package storage

import (
	"strings"
	"time"
)

const defaultOpTimeout = 30 * time.Second

// Settings holds MinIO connection configuration
type Settings struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	// Region skips the bucket location lookup when set.
	Region string
	// PublicBaseURL is the externally reachable origin of the object store,
	// e.g. https://cdn.example.com. Object URLs are PublicBaseURL/bucket/key.
	PublicBaseURL string
	// OpTimeout bounds each object store call.
	OpTimeout time.Duration
}

func (s Settings) publicBase() string {
	base := strings.TrimRight(s.PublicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if s.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + s.Endpoint
	}
	return base
}
