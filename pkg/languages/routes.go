package languages

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers language routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB) {
	h := &handler{
		languageService: NewService(db),
	}

	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
}
