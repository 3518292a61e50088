package joblogs

import (
	"github.com/labstack/echo/v4"
	"github.com/openbookcatalog/catalog/pkg/auth"
	"github.com/openbookcatalog/catalog/pkg/jobs"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers job log routes on the jobs group.
func RegisterRoutes(jobsGroup *echo.Group, db *bun.DB, authMiddleware *auth.Middleware) {
	h := &handler{
		jobLogService: NewService(db),
		jobService:    jobs.NewService(db),
	}

	jobsGroup.GET("/:id/logs", h.listLogs, authMiddleware.Authenticate, authMiddleware.RequireModerator)
}
