package origin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"blog-edge/internal/config"
	"blog-edge/internal/metrics"
	"blog-edge/internal/model"
)

func newTestHTTPStore(t *testing.T, baseURL string, m *metrics.Metrics) *HTTPStore {
	t.Helper()
	cfg := &config.Config{
		Origin: config.OriginConfig{
			Type:            config.OriginHTTP,
			BaseURL:         baseURL,
			TimeoutSeconds:  5,
			IdleConnections: 10,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHTTPStore(cfg, logger, m)
}

func TestHTTPStore_Fetch_OK(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/hostedSite/posts/x/index.html" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/hostedSite/posts/x/index.html")
		}
		if r.Header.Get("If-None-Match") != `"v1"` {
			t.Errorf("If-None-Match not forwarded")
		}
		if r.Header.Get("Cookie") != "" {
			t.Errorf("Cookie should not be forwarded to the origin")
		}
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Set-Cookie", "a=b")
		w.Header().Set("ETag", `"v2"`)
		_, _ = w.Write([]byte("<h1>x</h1>"))
	}))
	defer origin.Close()

	m := metrics.New()
	s := newTestHTTPStore(t, origin.URL, m)

	header := http.Header{}
	header.Set("If-None-Match", `"v1"`)
	header.Set("Cookie", "session=1")

	resp, err := s.Fetch(&model.OriginRequest{
		Ctx:    context.Background(),
		Method: http.MethodGet,
		Key:    ObjectKey("hostedSite", "/posts/x/index.html"),
		Header: header,
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if resp.Header.Get("Content-Type") != "text/html" {
		t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get("Etag") != `"v2"` {
		t.Errorf("ETag = %q", resp.Header.Get("Etag"))
	}
	if resp.Header.Get("Set-Cookie") != "" {
		t.Error("Set-Cookie should be filtered from origin responses")
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "<h1>x</h1>" {
		t.Errorf("body = %q", body)
	}

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "blog_edge_origin_responses_total" {
			found = true
		}
	}
	if !found {
		t.Error("expected blog_edge_origin_responses_total to be recorded")
	}
}

func TestHTTPStore_Fetch_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"not found", http.StatusNotFound, ErrNotFound},
		{"forbidden", http.StatusForbidden, ErrAccessDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer origin.Close()

			s := newTestHTTPStore(t, origin.URL, nil)
			_, err := s.Fetch(&model.OriginRequest{
				Ctx:    context.Background(),
				Method: http.MethodGet,
				Key:    "missing.html",
				Header: http.Header{},
			})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestHTTPStore_Fetch_NotModifiedPassesThrough(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer origin.Close()

	s := newTestHTTPStore(t, origin.URL, nil)
	resp, err := s.Fetch(&model.OriginRequest{
		Ctx:    context.Background(),
		Method: http.MethodGet,
		Key:    "index.html",
		Header: http.Header{},
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusNotModified {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotModified)
	}
}

func TestHTTPStore_Fetch_DoesNotFollowRedirects(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere/", http.StatusMovedPermanently)
	}))
	defer origin.Close()

	s := newTestHTTPStore(t, origin.URL, nil)
	resp, err := s.Fetch(&model.OriginRequest{
		Ctx:    context.Background(),
		Method: http.MethodGet,
		Key:    "old.html",
		Header: http.Header{},
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusMovedPermanently {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusMovedPermanently)
	}
	if got := resp.Header.Get("Location"); got != "/elsewhere/" {
		t.Errorf("Location = %q, want %q", got, "/elsewhere/")
	}
}

func TestHTTPStore_Fetch_CanceledContext(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer origin.Close()

	s := newTestHTTPStore(t, origin.URL, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Fetch(&model.OriginRequest{
		Ctx:    ctx,
		Method: http.MethodGet,
		Key:    "index.html",
		Header: http.Header{},
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix string
		uri    string
		want   string
	}{
		{"", "/index.html", "index.html"},
		{"hostedSite", "/index.html", "hostedSite/index.html"},
		{"hostedSite/", "/posts/x/index.html", "hostedSite/posts/x/index.html"},
	}

	for _, tt := range tests {
		if got := ObjectKey(tt.prefix, tt.uri); got != tt.want {
			t.Errorf("ObjectKey(%q, %q) = %q, want %q", tt.prefix, tt.uri, got, tt.want)
		}
	}
}

func TestFilterRequestHeaders(t *testing.T) {
	src := http.Header{
		"Range":           {"bytes=0-10"},
		"If-None-Match":   {`"abc"`},
		"Authorization":   {"Bearer secret"},
		"Cookie":          {"a=b"},
		"X-Forwarded-For": {"1.2.3.4"},
	}

	dst := FilterRequestHeaders(src)

	tests := []struct {
		key     string
		wantLen int
	}{
		{"Range", 1},
		{"If-None-Match", 1},
		{"Authorization", 0},
		{"Cookie", 0},
		{"X-Forwarded-For", 0},
	}
	for _, tt := range tests {
		if got := len(dst.Values(tt.key)); got != tt.wantLen {
			t.Errorf("header %q: got %d values, want %d", tt.key, got, tt.wantLen)
		}
	}
}

func TestFilterResponseHeaders(t *testing.T) {
	src := http.Header{
		"Content-Type":      {"text/html"},
		"Content-Length":    {"42"},
		"Etag":              {`"abc"`},
		"Transfer-Encoding": {"chunked"},
		"Set-Cookie":        {"session=abc"},
		"X-Amz-Meta-Author": {"me"},
		"X-Amz-Request-Id":  {"123"},
		"X-Clacks-Overhead": {"stale"},
		"Last-Modified":     {"Mon, 01 Jan 2025 00:00:00 GMT"},
		"Location":          {"/new-home/"},
	}

	dst := FilterResponseHeaders(src)

	tests := []struct {
		key     string
		wantLen int
	}{
		{"Content-Type", 1},
		{"Content-Length", 1},
		{"ETag", 1},
		{"Last-Modified", 1},
		{"Location", 1},
		{"Transfer-Encoding", 0},
		{"Set-Cookie", 0},
		{"X-Amz-Meta-Author", 0},
		{"X-Amz-Request-Id", 0},
		{"X-Clacks-Overhead", 0},
	}
	for _, tt := range tests {
		if got := len(dst.Values(tt.key)); got != tt.wantLen {
			t.Errorf("header %q: got %d values, want %d", tt.key, got, tt.wantLen)
		}
	}
}
