package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"blog-edge/internal/config"
	"blog-edge/internal/edge"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	chain   *edge.Chain
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, chain *edge.Chain, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, chain: chain, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

type statusResponse struct {
	Status         string   `json:"status"`
	Version        string   `json:"version"`
	OriginType     string   `json:"origin_type"`
	Origin         string   `json:"origin"`
	OriginRequest  []string `json:"origin_request"`
	ViewerResponse []string `json:"viewer_response"`
}

// Status returns the distribution's origin and function associations.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{
		Status:         "ok",
		Version:        string(h.version),
		OriginType:     h.cfg.Origin.Type,
		Origin:         h.cfg.Origin.OriginLocation(),
		OriginRequest:  h.chain.OriginRequestNames(),
		ViewerResponse: h.chain.ViewerResponseNames(),
	})
}
