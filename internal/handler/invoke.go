package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"blog-edge/internal/edge"
	"blog-edge/internal/model"
)

// InvokeHandler runs the configured functions over platform events posted
// to /_edge/invoke/:event.
type InvokeHandler struct {
	chain  *edge.Chain
	logger *slog.Logger
}

// NewInvokeHandler creates an InvokeHandler.
func NewInvokeHandler(chain *edge.Chain, logger *slog.Logger) *InvokeHandler {
	return &InvokeHandler{
		chain:  chain,
		logger: logger.With("component", "invoke_handler"),
	}
}

// Invoke decodes the event, runs the functions associated with the event
// type and answers with the function result.
func (h *InvokeHandler) Invoke(c echo.Context) error {
	t, err := model.ParseEventType(c.Param("event"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}

	var ev model.Event
	if err := c.Bind(&ev); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid event body",
		})
	}

	res, err := h.chain.Invoke(t, &ev)
	if errors.Is(err, model.ErrMalformedEvent) {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}
	if err != nil {
		h.logger.Error("invoke failed", "err", err, "event_type", string(t))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "invoke failed",
		})
	}

	return c.JSON(http.StatusOK, res)
}
