package jobs

import (
	"github.com/labstack/echo/v4"
	"github.com/openbookcatalog/catalog/pkg/auth"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers job routes on a pre-configured group.
// Maintenance jobs are moderator only.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, authMiddleware *auth.Middleware) {
	jobService := NewService(db)

	h := &handler{
		jobService: jobService,
	}

	g.GET("", h.list, authMiddleware.Authenticate, authMiddleware.RequireModerator)
	g.GET("/:id", h.retrieve, authMiddleware.Authenticate, authMiddleware.RequireModerator)
	g.POST("", h.create, authMiddleware.Authenticate, authMiddleware.RequireModerator)
}
