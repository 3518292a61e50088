package books

import (
	"github.com/labstack/echo/v4"
	"github.com/openbookcatalog/catalog/pkg/auth"
)

// RegisterRoutesWithGroup registers book routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, bookService *Service, authMiddleware *auth.Middleware) {
	h := &handler{
		bookService: bookService,
	}

	g.GET("", h.list, authMiddleware.AuthenticateOptional)
	g.GET("/:id", h.retrieve, authMiddleware.AuthenticateOptional)
	g.POST("", h.create, authMiddleware.Authenticate)
	g.POST("/uploads", h.startUpload, authMiddleware.Authenticate)
	g.PUT("/:id", h.update, authMiddleware.Authenticate)
}
