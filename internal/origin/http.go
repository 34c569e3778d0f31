package origin

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"blog-edge/internal/config"
	"blog-edge/internal/metrics"
	"blog-edge/internal/model"
)

// HTTPStore fetches objects from an HTTP static host, such as a bucket
// website endpoint.
type HTTPStore struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewHTTPStore creates an HTTPStore with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable origin metrics recording.
func NewHTTPStore(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *HTTPStore {
	transport := &http.Transport{
		MaxIdleConns:        cfg.Origin.IdleConnections,
		MaxIdleConnsPerHost: cfg.Origin.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &HTTPStore{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Origin.TimeoutSeconds) * time.Second,
			// Origin redirects are passed to the viewer, not followed.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: cfg.Origin.BaseURL,
		logger:  logger.With("component", "http_origin"),
		metrics: m,
	}
}

// Fetch requests the object from the origin. A 404 answer maps to
// ErrNotFound and 403 to ErrAccessDenied; any other status is returned
// to the caller with its body.
func (s *HTTPStore) Fetch(req *model.OriginRequest) (*model.OriginResponse, error) {
	target, err := s.objectURL(req.Key)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(req.Ctx, req.Method, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build origin request: %w", err)
	}
	httpReq.Header = FilterRequestHeaders(req.Header)

	s.logger.Debug("origin request",
		"method", req.Method,
		"key", req.Key,
	)

	start := time.Now()
	resp, err := s.httpClient.Do(httpReq) //nolint:bodyclose // body ownership transfers to caller via OriginResponse
	duration := time.Since(start).Seconds()

	method := metrics.NormalizeMethod(req.Method)

	if err != nil {
		if s.metrics != nil {
			s.metrics.OriginDuration.WithLabelValues(config.OriginHTTP, method).Observe(duration)
		}
		return nil, fmt.Errorf("origin request: %w", err)
	}

	if s.metrics != nil {
		status := strconv.Itoa(resp.StatusCode)
		s.metrics.OriginDuration.WithLabelValues(config.OriginHTTP, method).Observe(duration)
		s.metrics.OriginResponses.WithLabelValues(config.OriginHTTP, method, status).Inc()
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, req.Key)
	case http.StatusForbidden:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, req.Key)
	}

	return &model.OriginResponse{
		StatusCode:    resp.StatusCode,
		Header:        FilterResponseHeaders(resp.Header),
		ContentLength: resp.ContentLength,
		Body:          resp.Body,
	}, nil
}

func (s *HTTPStore) objectURL(key string) (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse origin base_url: %w", err)
	}
	return u.JoinPath(key).String(), nil
}
