package worker

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/openbookcatalog/catalog/pkg/analytics"
	"github.com/openbookcatalog/catalog/pkg/books"
	"github.com/openbookcatalog/catalog/pkg/config"
	"github.com/openbookcatalog/catalog/pkg/joblogs"
	"github.com/openbookcatalog/catalog/pkg/jobs"
	"github.com/openbookcatalog/catalog/pkg/languages"
	"github.com/openbookcatalog/catalog/pkg/migrations"
	"github.com/openbookcatalog/catalog/pkg/models"
	"github.com/openbookcatalog/catalog/pkg/tags"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type fakeStats struct {
	feed analytics.Feed
	err  error
}

func (f *fakeStats) FetchBookStats(context.Context) (analytics.Feed, error) {
	return f.feed, f.err
}

// testContext holds all the dependencies needed for testing the worker.
type testContext struct {
	t               *testing.T
	ctx             context.Context
	db              *bun.DB
	worker          *Worker
	stats           *fakeStats
	bookService     *books.Service
	jobService      *jobs.Service
	jobLogService   *joblogs.Service
	languageService *languages.Service
	tagService      *tags.Service
}

// newTestContext creates a new test context with an in-memory SQLite database
// and all necessary services initialized.
func newTestContext(t *testing.T) *testContext {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	if err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	cfg := config.NewForTest()
	bookService := books.NewService(db, books.Options{})
	stats := &fakeStats{feed: analytics.Feed{}}

	w := &Worker{
		config:          cfg,
		log:             logger.New(),
		bookService:     bookService,
		jobService:      jobs.NewService(db),
		jobLogService:   joblogs.NewService(db),
		languageService: languages.NewService(db),
		tagService:      tags.NewService(db),
		statsFetcher:    stats,
	}
	w.registerProcessFuncs()

	tc := &testContext{
		t:               t,
		ctx:             logger.New().WithContext(context.Background()),
		db:              db,
		worker:          w,
		stats:           stats,
		bookService:     bookService,
		jobService:      w.jobService,
		jobLogService:   w.jobLogService,
		languageService: w.languageService,
		tagService:      w.tagService,
	}

	t.Cleanup(func() {
		db.Close()
	})

	return tc
}

// createBook saves a book through the write pipeline.
func (tc *testContext) createBook(mutate func(b *models.Book)) *models.Book {
	tc.t.Helper()

	book := &models.Book{
		BookInstanceID: uuid.NewString(),
		Title:          "Counting Goats",
		UploaderID:     "u1",
	}
	if mutate != nil {
		mutate(book)
	}
	result, err := tc.bookService.SaveBook(tc.ctx, books.WriteRequest{Book: book})
	if err != nil {
		tc.t.Fatalf("failed to create book: %v", err)
	}
	return result.Book
}

func (tc *testContext) retrieveBook(id string) *models.Book {
	tc.t.Helper()

	book, err := tc.bookService.RetrieveBook(tc.ctx, books.RetrieveBookOptions{ID: &id})
	if err != nil {
		tc.t.Fatalf("failed to retrieve book: %v", err)
	}
	return book
}

// createLanguage inserts a language created at the given time.
func (tc *testContext) createLanguage(isoCode string, createdAt time.Time) *models.Language {
	tc.t.Helper()

	lang := &models.Language{IsoCode: isoCode, Name: isoCode, CreatedAt: createdAt}
	if err := tc.languageService.CreateLanguage(tc.ctx, lang); err != nil {
		tc.t.Fatalf("failed to create language: %v", err)
	}
	return lang
}

func (tc *testContext) listLanguages() map[string]*models.Language {
	tc.t.Helper()

	langs, err := tc.languageService.ListLanguages(tc.ctx, languages.ListLanguagesOptions{})
	if err != nil {
		tc.t.Fatalf("failed to list languages: %v", err)
	}
	out := map[string]*models.Language{}
	for _, l := range langs {
		out[l.IsoCode] = l
	}
	return out
}

// runJob enqueues and runs a job in the foreground, returning the stored
// job and the job's own error.
func (tc *testContext) runJob(jobType string, data any) (*models.Job, error) {
	tc.t.Helper()

	job, err := tc.worker.Enqueue(tc.ctx, jobType, data)
	if err != nil {
		tc.t.Fatalf("failed to enqueue job: %v", err)
	}
	runErr := tc.worker.RunNow(tc.ctx, job)

	stored, err := tc.jobService.RetrieveJob(tc.ctx, jobs.RetrieveJobOptions{ID: &job.ID})
	if err != nil {
		tc.t.Fatalf("failed to retrieve job: %v", err)
	}
	return stored, runErr
}

func (tc *testContext) jobLogs(jobID int) []*models.JobLog {
	tc.t.Helper()

	logs, err := tc.jobLogService.ListJobLogs(tc.ctx, joblogs.ListJobLogsOptions{JobID: jobID})
	if err != nil {
		tc.t.Fatalf("failed to list job logs: %v", err)
	}
	return logs
}
