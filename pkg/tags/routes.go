package tags

import (
	"github.com/labstack/echo/v4"
	"github.com/openbookcatalog/catalog/pkg/auth"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers tag routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, authMiddleware *auth.Middleware) {
	h := &handler{
		tagService: NewService(db),
	}

	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
	g.DELETE("/:id", h.deleteTag, authMiddleware.Authenticate, authMiddleware.RequireModerator)
}
