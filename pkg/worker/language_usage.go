package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/openbookcatalog/catalog/pkg/books"
	"github.com/openbookcatalog/catalog/pkg/errcodes"
	"github.com/openbookcatalog/catalog/pkg/joblogs"
	"github.com/openbookcatalog/catalog/pkg/languages"
	"github.com/openbookcatalog/catalog/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// languageUsage is the result of counting language references over a
// snapshot of the catalog.
type languageUsage struct {
	counts map[string]int
	// protected holds languages referenced only by books that don't count.
	// They keep a zero count but must not be deleted.
	protected map[string]bool
}

// countLanguageUsage reduces the books into per-language counts. Books out
// of circulation, drafts and rebrands protect their languages instead of
// counting toward them.
func countLanguageUsage(books []*models.Book) languageUsage {
	usage := languageUsage{
		counts:    map[string]int{},
		protected: map[string]bool{},
	}
	for _, book := range books {
		counted := book.IsCounted()
		for _, id := range book.LanguageIDs {
			if counted {
				usage.counts[id]++
			} else {
				usage.protected[id] = true
			}
		}
	}
	return usage
}

type languagePlan struct {
	counts  map[string]int
	deletes []string
}

// planLanguageChanges sets the count of every language and picks the ones
// to delete: unused, unprotected and older than the grace period. Languages
// created moments ago may belong to a book whose write is still in flight.
func planLanguageChanges(langs []*models.Language, usage languageUsage, now time.Time, grace time.Duration) languagePlan {
	plan := languagePlan{counts: make(map[string]int, len(langs))}
	for _, lang := range langs {
		count := usage.counts[lang.ID]
		plan.counts[lang.ID] = count

		if count == 0 && !usage.protected[lang.ID] && now.Sub(lang.CreatedAt) >= grace {
			plan.deletes = append(plan.deletes, lang.ID)
		}
	}
	return plan
}

func (w *Worker) ProcessLanguageUsageJob(ctx context.Context, job *models.Job, jl *joblogs.JobLogger) (string, error) {
	snapshot := []*models.Book{}
	err := w.bookService.EachBook(ctx, books.ScanOptions{
		Columns: []string{"language_ids", "in_circulation", "draft", "rebrand"},
	}, func(book *models.Book) error {
		snapshot = append(snapshot, book)
		return nil
	})
	if err != nil {
		return "", errcodes.JobFailed(job.Type, "Terminated unsuccessfully.", err)
	}
	usage := countLanguageUsage(snapshot)

	langs, err := w.languageService.ListLanguages(ctx, languages.ListLanguagesOptions{})
	if err != nil {
		return "", errcodes.JobFailed(job.Type, "Terminated unsuccessfully.", err)
	}

	plan := planLanguageChanges(langs, usage, time.Now(), w.config.LanguageDeletionGrace)

	if err := w.languageService.BulkUpdateUsage(ctx, plan.counts); err != nil {
		// Deleting against counts we couldn't store would drop languages
		// that are still in use.
		var bulk *errcodes.BulkError
		if errors.As(err, &bulk) {
			jl.Failures("couldn't update language usage", bulk, 0)
		}
		return "", errcodes.JobFailed(job.Type, "Terminated unsuccessfully.", err)
	}
	jl.Info("updated language usage", logger.Data{"count": len(plan.counts)})

	if len(plan.deletes) == 0 {
		return "Completed successfully.", nil
	}

	if err := w.languageService.BulkDelete(ctx, plan.deletes); err != nil {
		var bulk *errcodes.BulkError
		if errors.As(err, &bulk) {
			jl.Failures("couldn't delete language", bulk, 0)
		}
		return "", errcodes.JobFailed(job.Type, "Terminated unsuccessfully.", err)
	}
	jl.Info("deleted languages which had no books", logger.Data{"ids": plan.deletes})

	return fmt.Sprintf("Completed successfully. Updated %d languages and deleted %d.", len(plan.counts), len(plan.deletes)), nil
}
