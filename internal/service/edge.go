// Package service implements the edge request pipeline.
package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"blog-edge/internal/config"
	"blog-edge/internal/edge"
	"blog-edge/internal/model"
	"blog-edge/internal/origin"
)

// EdgeResponse is what the pipeline hands back to the viewer: the response
// record after viewer-response functions ran, plus the origin body when
// the response came from the origin. Body is nil for generated responses.
type EdgeResponse struct {
	Record        *model.Response
	Body          io.ReadCloser
	ContentLength int64
}

// EdgeService runs viewer requests through the distribution: origin-request
// functions, origin fetch, viewer-response functions.
type EdgeService struct {
	store     origin.Store
	chain     *edge.Chain
	keyPrefix string
	logger    *slog.Logger
}

// NewEdgeService creates an EdgeService.
func NewEdgeService(store origin.Store, chain *edge.Chain, cfg *config.Config, logger *slog.Logger) *EdgeService {
	return &EdgeService{
		store:     store,
		chain:     chain,
		keyPrefix: cfg.Origin.KeyPrefix,
		logger:    logger.With("component", "edge_service"),
	}
}

// Serve runs vr through the pipeline. Origin failures other than the
// mapped sentinels are returned; the caller owns closing EdgeResponse.Body.
func (s *EdgeService) Serve(vr *model.ViewerRequest) (*EdgeResponse, error) {
	if !servablePath(vr.Path) {
		return s.generated(model.NewResponse(http.StatusBadRequest)), nil
	}

	req := &model.Request{
		ClientIP:    vr.ClientIP,
		Method:      vr.Method,
		URI:         vr.Path,
		Querystring: vr.RawQuery,
		Headers:     model.HeadersFromHTTP(vr.Header),
	}

	res := s.chain.RunOriginRequest(req)
	if res.Generated() {
		s.logger.Debug("origin request short-circuited",
			"uri", vr.Path,
			"status", res.Response.Status,
			"request_id", vr.RequestID,
		)
		return s.generated(res.Response), nil
	}
	req = res.Request

	// Record URIs stay percent-encoded; object keys are stored decoded.
	objectPath, err := url.PathUnescape(req.URI)
	if err != nil {
		return s.generated(model.NewResponse(http.StatusBadRequest)), nil
	}
	key := origin.ObjectKey(s.keyPrefix, objectPath)
	resp, err := s.store.Fetch(&model.OriginRequest{
		Ctx:    vr.Ctx,
		Method: vr.Method,
		Key:    key,
		Header: req.Headers.ToHTTP(),
	})
	switch {
	case errors.Is(err, origin.ErrNotFound):
		return s.generated(model.NewResponse(http.StatusNotFound)), nil
	case errors.Is(err, origin.ErrAccessDenied):
		return s.generated(model.NewResponse(http.StatusForbidden)), nil
	case errors.Is(err, origin.ErrNotModified):
		return s.generated(model.NewResponse(http.StatusNotModified)), nil
	case err != nil:
		return nil, fmt.Errorf("fetch %s from origin: %w", key, err)
	}

	record := &model.Response{
		Status:            strconv.Itoa(resp.StatusCode),
		StatusDescription: http.StatusText(resp.StatusCode),
		Headers:           model.HeadersFromHTTP(resp.Header),
	}
	return &EdgeResponse{
		Record:        s.chain.RunViewerResponse(record),
		Body:          resp.Body,
		ContentLength: resp.ContentLength,
	}, nil
}

// generated runs the viewer-response functions over a response created at
// the edge.
func (s *EdgeService) generated(resp *model.Response) *EdgeResponse {
	return &EdgeResponse{
		Record:        s.chain.RunViewerResponse(resp),
		ContentLength: int64(len(resp.Body)),
	}
}

// Chain returns the function chain the service runs.
func (s *EdgeService) Chain() *edge.Chain { return s.chain }

// servablePath reports whether the encoded viewer path may enter the
// pipeline. A leading "//" would turn a trailing-slash redirect into a
// protocol-relative Location, and dot segments (encoded or not) would let
// object keys escape the key prefix.
func servablePath(path string) bool {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") {
		return false
	}
	decoded, err := url.PathUnescape(path)
	if err != nil {
		return false
	}
	return !hasDotSegment(path) && !hasDotSegment(decoded)
}

// hasDotSegment reports whether path contains a "." or ".." segment.
func hasDotSegment(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}
