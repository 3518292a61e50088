package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/openbookcatalog/catalog/pkg/books"
	"github.com/openbookcatalog/catalog/pkg/errcodes"
	"github.com/openbookcatalog/catalog/pkg/joblogs"
	"github.com/openbookcatalog/catalog/pkg/models"
	"github.com/openbookcatalog/catalog/pkg/provenance"
	"github.com/openbookcatalog/catalog/pkg/tags"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/pointerutil"
)

func hasTag(book *models.Book, tag string) bool {
	for _, t := range book.Tags {
		if tags.NormalizeTag(t) == tag {
			return true
		}
	}
	return false
}

// ProcessAssignTagJob adds one tag to every book matching the filter. Books
// that already carry it are left alone.
func (w *Worker) ProcessAssignTagJob(ctx context.Context, job *models.Job, jl *joblogs.JobLogger) (string, error) {
	data, ok := job.DataParsed.(*models.JobAssignTagData)
	if !ok || strings.TrimSpace(data.Tag) == "" {
		return "", errcodes.JobFailed(job.Type, "A tag is required.", nil)
	}
	tag := tags.NormalizeTag(strings.TrimSpace(data.Tag))

	match := books.ListBooksOptions{Search: data.Filter.Search}
	if data.Filter.Tag != nil {
		match.Tag = pointerutil.String(tags.NormalizeTag(*data.Filter.Tag))
	}

	if data.DryRun {
		jl.Info("dry run only", logger.Data{"tag": tag})
	}

	mutations := []books.Mutation{}
	already := 0
	err := w.bookService.EachBook(ctx, books.ScanOptions{
		Columns: []string{"title", "tags"},
		Match:   &match,
	}, func(book *models.Book) error {
		if hasTag(book, tag) {
			already++
			return nil
		}
		if data.DryRun {
			jl.Info("would tag book", logger.Data{"book_id": book.ID, "title": book.Title, "tags": book.Tags})
		}
		mutations = append(mutations, books.Mutation{
			ID: book.ID,
			Apply: func(b *models.Book) {
				if !hasTag(b, tag) {
					b.Tags = append(b.Tags, tag)
				}
			},
		})
		return nil
	})
	if err != nil {
		return "", errcodes.JobFailed(job.Type, "Terminated unsuccessfully.", err)
	}

	if data.DryRun {
		return fmt.Sprintf("Dry run. Would tag %d books, %d already tagged.", len(mutations), already), nil
	}

	err = w.bookService.BulkSaveBooks(ctx, provenance.AssignTag, mutations)
	var bulk *errcodes.BulkError
	if errors.As(err, &bulk) {
		jl.Failures("couldn't tag book", bulk, maxLoggedFailures)
		return fmt.Sprintf("Tagged %d of %d books.", len(mutations)-len(bulk.Failures), len(mutations)), nil
	}
	if err != nil {
		return "", errcodes.JobFailed(job.Type, "Terminated unsuccessfully.", err)
	}

	return fmt.Sprintf("Completed successfully. Tagged %d books, %d already tagged.", len(mutations), already), nil
}
