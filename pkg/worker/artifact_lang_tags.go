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
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
)

// titleLangTag finds the language whose entry in the all_titles JSON map
// equals the title. It returns false unless exactly one language matches.
func titleLangTag(book *models.Book) (string, bool, error) {
	if book.AllTitles == nil || *book.AllTitles == "" || book.Title == "" {
		return "", false, nil
	}

	titles := map[string]any{}
	if err := json.Unmarshal([]byte(*book.AllTitles), &titles); err != nil {
		return "", false, &errcodes.ParseError{RecordID: book.ID, Field: "all_titles", Cause: err}
	}

	matches := []string{}
	for lang, title := range titles {
		if s, ok := title.(string); ok && s == book.Title {
			matches = append(matches, lang)
		}
	}
	if len(matches) != 1 {
		return "", false, nil
	}
	return matches[0], true, nil
}

func setArtifactLangTag(book *models.Book, langTag string) {
	if book.Show == nil {
		book.Show = &models.Show{}
	}
	if book.Show.Epub == nil {
		book.Show.Epub = &models.ArtifactVisibility{}
	}
	if book.Show.PDF == nil {
		book.Show.PDF = &models.ArtifactVisibility{}
	}
	book.Show.Epub.LangTag = langTag
	book.Show.PDF.LangTag = langTag
}

// ProcessArtifactLangTagsJob sets the language tag of the epub and pdf
// artifacts from the title language. Books whose all_titles can't be parsed
// are logged and skipped.
func (w *Worker) ProcessArtifactLangTagsJob(ctx context.Context, job *models.Job, jl *joblogs.JobLogger) (string, error) {
	dryRun := false
	if data, ok := job.DataParsed.(*models.JobArtifactLangTagsData); ok {
		dryRun = data.DryRun
	}
	if dryRun {
		jl.Info("dry run only", nil)
	}

	mutations := []books.Mutation{}
	skipped := 0
	err := w.bookService.EachBook(ctx, books.ScanOptions{
		Columns: []string{"title", "all_titles", "show"},
	}, func(book *models.Book) error {
		langTag, ok, err := titleLangTag(book)
		if err != nil {
			var perr *errcodes.ParseError
			if errors.As(err, &perr) {
				jl.Warn("couldn't parse all_titles", logger.Data{"book_id": book.ID, "error": err.Error()})
				skipped++
				return nil
			}
			return err
		}
		if !ok {
			jl.Info("no single language matches the title", logger.Data{"book_id": book.ID, "title": book.Title})
			skipped++
			return nil
		}

		if dryRun {
			jl.Info("would set artifact lang tag", logger.Data{"book_id": book.ID, "lang_tag": langTag})
		}
		mutations = append(mutations, books.Mutation{
			ID: book.ID,
			Apply: func(b *models.Book) {
				setArtifactLangTag(b, langTag)
			},
		})
		return nil
	})
	if err != nil {
		return "", errcodes.JobFailed(job.Type, "Terminated unsuccessfully.", err)
	}

	if dryRun {
		return fmt.Sprintf("Dry run. Would set lang tags on %d books, skipped %d.", len(mutations), skipped), nil
	}

	err = w.bookService.BulkSaveBooks(ctx, provenance.ArtifactLangTags, mutations)
	var bulk *errcodes.BulkError
	if errors.As(err, &bulk) {
		jl.Failures("couldn't save artifact lang tags", bulk, maxLoggedFailures)
		return fmt.Sprintf("Set lang tags on %d of %d books, skipped %d.", len(mutations)-len(bulk.Failures), len(mutations), skipped), nil
	}
	if err != nil {
		return "", errcodes.JobFailed(job.Type, "Terminated unsuccessfully.", err)
	}

	return fmt.Sprintf("Completed successfully. Set lang tags on %d books, skipped %d.", len(mutations), skipped), nil
}
