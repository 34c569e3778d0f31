package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"blog-edge/internal/model"
	"blog-edge/internal/service"
)

// EdgeHandler serves site requests through the edge pipeline.
type EdgeHandler struct {
	service *service.EdgeService
	logger  *slog.Logger
}

// NewEdgeHandler creates an EdgeHandler.
func NewEdgeHandler(svc *service.EdgeService, logger *slog.Logger) *EdgeHandler {
	return &EdgeHandler{
		service: svc,
		logger:  logger.With("component", "edge_handler"),
	}
}

// Handle runs the request through the pipeline and streams the response back.
func (h *EdgeHandler) Handle(c echo.Context) error {
	req := c.Request()

	vr := &model.ViewerRequest{
		Ctx:        req.Context(),
		Method:     req.Method,
		Path:       req.URL.EscapedPath(),
		RawQuery:   req.URL.RawQuery,
		ClientIP:   c.RealIP(),
		Header:     req.Header,
		DomainName: req.Host,
		RequestID:  c.Response().Header().Get(echo.HeaderXRequestID),
	}

	resp, err := h.service.Serve(vr)
	if err != nil {
		return h.mapError(c, err)
	}
	if resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}

	code := resp.Record.StatusCode()
	if code == 0 {
		h.logger.Error("response record has non-numeric status",
			"status", resp.Record.Status,
			"path", req.URL.Path,
		)
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "invalid response status",
		})
	}

	header := c.Response().Header()
	for key, vals := range resp.Record.Headers.ToHTTP() {
		for _, v := range vals {
			header.Add(key, v)
		}
	}
	if bodyAllowed(code) && resp.ContentLength >= 0 && header.Get(echo.HeaderContentLength) == "" {
		header.Set(echo.HeaderContentLength, strconv.FormatInt(resp.ContentLength, 10))
	}

	c.Response().WriteHeader(code)

	if req.Method == http.MethodHead || !bodyAllowed(code) {
		return nil
	}

	if resp.Body == nil {
		_, err := io.WriteString(c.Response(), resp.Record.Body)
		return err
	}

	// The status line is already sent, so a failed copy leaves the viewer
	// with a truncated body. Log it and move on.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		h.logger.Error("streaming response body",
			"err", err,
			"path", req.URL.Path,
			"request_id", vr.RequestID,
		)
	}

	return nil
}

func bodyAllowed(code int) bool {
	return code != http.StatusNoContent && code != http.StatusNotModified && code >= http.StatusOK
}

func (h *EdgeHandler) mapError(c echo.Context, err error) error {
	h.logger.Error("origin error",
		"err", err,
		"path", c.Request().URL.Path,
	)

	if errors.Is(err, context.DeadlineExceeded) {
		return c.JSON(http.StatusGatewayTimeout, map[string]string{
			"error": "origin request timed out",
		})
	}

	if errors.Is(err, context.Canceled) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "client disconnected",
		})
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "origin host unreachable",
		})
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "origin connection failed",
		})
	}

	return c.JSON(http.StatusBadGateway, map[string]string{
		"error": "origin request failed",
	})
}
