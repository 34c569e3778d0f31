package handler

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
// Middleware passed in applies to the invoke route only.
func RegisterRoutes(e *echo.Echo, site *EdgeHandler, invoke *InvokeHandler, health *HealthHandler, invokeMiddleware ...echo.MiddlewareFunc) {
	e.GET("/healthz", health.Healthz)
	e.GET("/_edge/status", health.Status)
	e.POST("/_edge/invoke/:event", invoke.Invoke, invokeMiddleware...)

	e.GET("/*", site.Handle)
	e.HEAD("/*", site.Handle)
}
