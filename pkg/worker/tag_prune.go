package worker

import (
	"context"
	"fmt"

	"github.com/openbookcatalog/catalog/pkg/books"
	"github.com/openbookcatalog/catalog/pkg/errcodes"
	"github.com/openbookcatalog/catalog/pkg/joblogs"
	"github.com/openbookcatalog/catalog/pkg/models"
	"github.com/openbookcatalog/catalog/pkg/tags"
	"github.com/robinjoseph08/golib/logger"
)

// countTagReferences counts how many books reference each tag. Stored tags
// are normalized first since old records may still hold bare values.
func countTagReferences(books []*models.Book) map[string]int {
	counts := map[string]int{}
	for _, book := range books {
		for _, t := range book.Tags {
			counts[tags.NormalizeTag(t)]++
		}
	}
	return counts
}

// ProcessTagPruneJob deletes tag records no book refers to. Every delete is
// attempted on its own; failures are reported without stopping the rest.
func (w *Worker) ProcessTagPruneJob(ctx context.Context, job *models.Job, jl *joblogs.JobLogger) (string, error) {
	snapshot := []*models.Book{}
	err := w.bookService.EachBook(ctx, books.ScanOptions{Columns: []string{"tags"}}, func(book *models.Book) error {
		snapshot = append(snapshot, book)
		return nil
	})
	if err != nil {
		return "", errcodes.JobFailed(job.Type, "Terminated unsuccessfully.", err)
	}
	counts := countTagReferences(snapshot)

	all, err := w.tagService.ListTags(ctx, tags.ListTagsOptions{})
	if err != nil {
		return "", errcodes.JobFailed(job.Type, "Terminated unsuccessfully.", err)
	}

	unused := []*models.Tag{}
	for _, tag := range all {
		if counts[tags.NormalizeTag(tag.Name)] == 0 {
			unused = append(unused, tag)
		}
	}

	bulk := &errcodes.BulkError{Op: "delete tags", Total: len(unused)}
	for _, tag := range unused {
		if err := w.tagService.DeleteTag(ctx, tag.ID); err != nil {
			bulk.Add(tag.Name, err)
			continue
		}
		jl.Info("deleted unused tag", logger.Data{"tag": tag.Name})
	}

	deleted := len(unused) - len(bulk.Failures)
	if bulk.OrNil() != nil {
		jl.Failures("couldn't delete tag", bulk, 0)
		return fmt.Sprintf("Deleted %d of %d unused tags. Failed: %s", deleted, len(unused), bulk.FailureIDs()), nil
	}
	return fmt.Sprintf("Completed successfully. Deleted %d unused tags.", deleted), nil
}
