package middleware

import (
	"github.com/labstack/echo/v4"
)

// hopByHopHeaders are connection-scoped and never reach the origin.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// hstsValue is sent when viewers are redirected to HTTPS.
const hstsValue = "max-age=31536000"

// SecurityHeaders returns an Echo middleware that strips hop-by-hop headers
// from requests and adds security headers to every response. With hsts set,
// responses also carry Strict-Transport-Security.
func SecurityHeaders(hsts bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, h := range hopByHopHeaders {
				c.Request().Header.Del(h)
			}

			// Handlers stream responses, so headers go in before the status
			// line is written.
			res := c.Response()
			res.Before(func() {
				h := res.Header()
				h.Set("X-Content-Type-Options", "nosniff")
				h.Set("X-Frame-Options", "SAMEORIGIN")
				h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
				if hsts {
					h.Set("Strict-Transport-Security", hstsValue)
				}
			})

			return next(c)
		}
	}
}
