package auth

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the auth routes. Tokens are issued by the auth
// bridge, so the only route reports who the caller is.
func RegisterRoutes(e *echo.Echo, authMiddleware *Middleware) {
	h := &handler{}

	g := e.Group("/auth")
	g.GET("/me", h.me, authMiddleware.Authenticate)
}
