package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/openbookcatalog/catalog/pkg/auth"
	"github.com/openbookcatalog/catalog/pkg/binder"
	"github.com/openbookcatalog/catalog/pkg/books"
	"github.com/openbookcatalog/catalog/pkg/config"
	"github.com/openbookcatalog/catalog/pkg/errcodes"
	"github.com/openbookcatalog/catalog/pkg/joblogs"
	"github.com/openbookcatalog/catalog/pkg/jobs"
	"github.com/openbookcatalog/catalog/pkg/languages"
	"github.com/openbookcatalog/catalog/pkg/notify"
	"github.com/openbookcatalog/catalog/pkg/provenance"
	"github.com/openbookcatalog/catalog/pkg/tags"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/uptrace/bun"
)

// NewBookService builds the write pipeline with the collaborators named in
// the config. The API and the jobs CLI share it so both classify and notify
// the same way.
func NewBookService(cfg *config.Config, db *bun.DB) *books.Service {
	var notifier notify.Notifier = &notify.LogNotifier{BaseURL: cfg.BookBaseURL}
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.NotifyWebhookURL, cfg.BookBaseURL)
	}

	return books.NewService(db, books.Options{
		Classifier: provenance.NewClassifier(cfg.DesktopUserAgentPrefix, cfg.DashboardRefererMarker),
		Notifier:   notifier,
		MaxRetries: cfg.DatabaseMaxRetries,
	})
}

func New(cfg *config.Config, db *bun.DB, bookService *books.Service) (*http.Server, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)

	authMiddleware := auth.NewMiddleware(auth.NewService(db, cfg.JWTSecret))
	auth.RegisterRoutes(e, authMiddleware)

	registerRoutes(e, db, bookService, authMiddleware)

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func registerRoutes(e *echo.Echo, db *bun.DB, bookService *books.Service, authMiddleware *auth.Middleware) {
	books.RegisterRoutesWithGroup(e.Group("/books"), bookService, authMiddleware)
	tags.RegisterRoutesWithGroup(e.Group("/tags"), db, authMiddleware)
	languages.RegisterRoutesWithGroup(e.Group("/languages"), db)

	// Job logs hang off the job they belong to.
	jobsGroup := e.Group("/jobs")
	jobs.RegisterRoutesWithGroup(jobsGroup, db, authMiddleware)
	joblogs.RegisterRoutes(jobsGroup, db, authMiddleware)
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
