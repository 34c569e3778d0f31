// Package origin fetches site objects from the origin store.
package origin

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"blog-edge/internal/config"
	"blog-edge/internal/metrics"
	"blog-edge/internal/model"
)

var (
	// ErrNotFound is returned when the origin has no object under the key.
	ErrNotFound = errors.New("origin object not found")
	// ErrAccessDenied is returned when the origin refuses the read. Buckets
	// that hide key existence answer this for missing keys too.
	ErrAccessDenied = errors.New("origin access denied")
	// ErrNotModified is returned when a conditional request matched the
	// object's current version.
	ErrNotModified = errors.New("origin object not modified")
)

// Store fetches objects from an origin. The caller closes the response body.
type Store interface {
	Fetch(req *model.OriginRequest) (*model.OriginResponse, error)
}

// forwardableRequestHeaders are the only viewer headers sent to the origin.
var forwardableRequestHeaders = []string{
	"Accept-Encoding",
	"If-Match",
	"If-Modified-Since",
	"If-None-Match",
	"If-Unmodified-Since",
	"Range",
}

// forwardableResponseHeaders are the only origin headers passed to the viewer.
var forwardableResponseHeaders = map[string]bool{
	"Accept-Ranges":    true,
	"Cache-Control":    true,
	"Content-Encoding": true,
	"Content-Language": true,
	"Content-Length":   true,
	"Content-Range":    true,
	"Content-Type":     true,
	"Date":             true,
	"Etag":             true,
	"Expires":          true,
	"Last-Modified":    true,
	"Location":         true,
}

// FilterRequestHeaders keeps only the viewer headers the origin needs.
func FilterRequestHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	for _, key := range forwardableRequestHeaders {
		if vals := src.Values(key); len(vals) > 0 {
			dst[http.CanonicalHeaderKey(key)] = vals
		}
	}
	return dst
}

// FilterResponseHeaders keeps only the origin headers meant for viewers.
func FilterResponseHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	for key, vals := range src {
		if forwardableResponseHeaders[http.CanonicalHeaderKey(key)] {
			dst[http.CanonicalHeaderKey(key)] = vals
		}
	}
	return dst
}

// ObjectKey maps a request URI to an object key under prefix.
func ObjectKey(prefix, uri string) string {
	key := strings.TrimPrefix(uri, "/")
	if prefix == "" {
		return key
	}
	return strings.TrimSuffix(prefix, "/") + "/" + key
}

// New returns the store selected by cfg.Origin.Type.
func New(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (Store, error) {
	switch cfg.Origin.Type {
	case config.OriginS3:
		return NewS3Store(cfg, logger, m)
	case config.OriginHTTP, "":
		return NewHTTPStore(cfg, logger, m), nil
	default:
		return nil, fmt.Errorf("unknown origin type %q", cfg.Origin.Type)
	}
}
