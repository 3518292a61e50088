package worker

import (
	"context"
	"fmt"

	"github.com/openbookcatalog/catalog/pkg/analytics"
	"github.com/openbookcatalog/catalog/pkg/books"
	"github.com/openbookcatalog/catalog/pkg/errcodes"
	"github.com/openbookcatalog/catalog/pkg/joblogs"
	"github.com/openbookcatalog/catalog/pkg/models"
	"github.com/openbookcatalog/catalog/pkg/provenance"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// maxLoggedFailures caps the per-item lines a single bulk save writes.
const maxLoggedFailures = 20

// ProcessAnalyticsSyncJob copies usage metrics from the statistics service
// onto the books, matched by book instance id. Only books with at least one
// changed metric are saved.
func (w *Worker) ProcessAnalyticsSyncJob(ctx context.Context, job *models.Job, jl *joblogs.JobLogger) (string, error) {
	feed, err := w.statsFetcher.FetchBookStats(ctx)
	if err != nil {
		return "", errcodes.JobFailed(job.Type, "Analytics service unreachable.", err)
	}
	jl.Info("fetched book stats", logger.Data{"count": len(feed)})

	columns := append([]string{"book_instance_id"}, analytics.Columns()...)

	mutations := []books.Mutation{}
	err = w.bookService.EachBook(ctx, books.ScanOptions{Columns: columns}, func(book *models.Book) error {
		values := feed[book.BookInstanceID]
		stats := book.BookStats
		if !analytics.Apply(&stats, values) {
			return nil
		}
		mutations = append(mutations, books.Mutation{
			ID: book.ID,
			Apply: func(b *models.Book) {
				analytics.Apply(&b.BookStats, values)
			},
		})
		return nil
	})
	if err != nil {
		return "", errcodes.JobFailed(job.Type, "Terminated unsuccessfully.", err)
	}

	jl.Info("saving changed stats", logger.Data{"count": len(mutations)})

	err = w.bookService.BulkSaveBooks(ctx, provenance.AnalyticsSync, mutations)
	if err != nil {
		var bulk *errcodes.BulkError
		if errors.As(err, &bulk) {
			jl.Failures("couldn't save book stats", bulk, maxLoggedFailures)
		}
		return "", errcodes.JobFailed(job.Type, "Terminated unsuccessfully.", err)
	}

	return fmt.Sprintf("Completed successfully. Updated stats on %d books.", len(mutations)), nil
}
