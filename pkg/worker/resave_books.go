package worker

import (
	"context"
	"fmt"

	"github.com/openbookcatalog/catalog/pkg/books"
	"github.com/openbookcatalog/catalog/pkg/errcodes"
	"github.com/openbookcatalog/catalog/pkg/joblogs"
	"github.com/openbookcatalog/catalog/pkg/models"
	"github.com/openbookcatalog/catalog/pkg/provenance"
	"github.com/pkg/errors"
)

// ProcessResaveBooksJob runs every book back through the write pipeline so
// derived fields like the search string and normalized tags catch up with
// the current rules.
func (w *Worker) ProcessResaveBooksJob(ctx context.Context, job *models.Job, jl *joblogs.JobLogger) (string, error) {
	mutations := []books.Mutation{}
	err := w.bookService.EachBook(ctx, books.ScanOptions{Columns: []string{"updated_at"}}, func(book *models.Book) error {
		mutations = append(mutations, books.Mutation{ID: book.ID, Apply: func(*models.Book) {}})
		return nil
	})
	if err != nil {
		return "", errcodes.JobFailed(job.Type, "Terminated unsuccessfully.", err)
	}

	err = w.bookService.BulkSaveBooks(ctx, provenance.Resave, mutations)
	var bulk *errcodes.BulkError
	if errors.As(err, &bulk) {
		jl.Failures("couldn't resave book", bulk, maxLoggedFailures)
		return fmt.Sprintf("Resaved %d of %d books.", len(mutations)-len(bulk.Failures), len(mutations)), nil
	}
	if err != nil {
		return "", errcodes.JobFailed(job.Type, "Terminated unsuccessfully.", err)
	}

	return fmt.Sprintf("Completed successfully. Resaved %d books.", len(mutations)), nil
}
