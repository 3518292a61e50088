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
	"github.com/uptrace/bun"
)

// backfillField is a nullable book column that can be backfilled. set
// decodes the default and returns a setter that only fills an unset field.
type backfillField struct {
	column string
	set    func(raw json.RawMessage) (func(b *models.Book), error)
}

func boolField(column string, field func(b *models.Book) **bool) backfillField {
	return backfillField{column, func(raw json.RawMessage) (func(b *models.Book), error) {
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, errors.WithStack(err)
		}
		return func(b *models.Book) {
			if f := field(b); *f == nil {
				val := v
				*f = &val
			}
		}, nil
	}}
}

func intField(column string, field func(b *models.Book) **int) backfillField {
	return backfillField{column, func(raw json.RawMessage) (func(b *models.Book), error) {
		var v int
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, errors.WithStack(err)
		}
		return func(b *models.Book) {
			if f := field(b); *f == nil {
				val := v
				*f = &val
			}
		}, nil
	}}
}

func floatField(column string, field func(b *models.Book) **float64) backfillField {
	return backfillField{column, func(raw json.RawMessage) (func(b *models.Book), error) {
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, errors.WithStack(err)
		}
		return func(b *models.Book) {
			if f := field(b); *f == nil {
				val := v
				*f = &val
			}
		}, nil
	}}
}

var backfillFields = map[string]backfillField{
	"draft":                    boolField("draft", func(b *models.Book) **bool { return &b.Draft }),
	"in_circulation":           boolField("in_circulation", func(b *models.Book) **bool { return &b.InCirculation }),
	"rebrand":                  boolField("rebrand", func(b *models.Book) **bool { return &b.Rebrand }),
	"stats_started_count":      intField("stats_started_count", func(b *models.Book) **int { return &b.StatsStartedCount }),
	"stats_finished_count":     intField("stats_finished_count", func(b *models.Book) **int { return &b.StatsFinishedCount }),
	"stats_shell_downloads":    intField("stats_shell_downloads", func(b *models.Book) **int { return &b.StatsShellDownloads }),
	"stats_pdf_downloads":      intField("stats_pdf_downloads", func(b *models.Book) **int { return &b.StatsPDFDownloads }),
	"stats_epub_downloads":     intField("stats_epub_downloads", func(b *models.Book) **int { return &b.StatsEpubDownloads }),
	"stats_bloompub_downloads": intField("stats_bloompub_downloads", func(b *models.Book) **int { return &b.StatsBloomPubDownloads }),
	"stats_mean_pages_read":    floatField("stats_mean_pages_read", func(b *models.Book) **float64 { return &b.StatsMeanPagesRead }),
	"stats_mean_minutes_read":  floatField("stats_mean_minutes_read", func(b *models.Book) **float64 { return &b.StatsMeanMinutesRead }),
}

// ProcessDefaultBackfillJob sets a default on every book where the field
// was never set. A stored false or zero is a value and is left alone, so a
// second run touches nothing.
func (w *Worker) ProcessDefaultBackfillJob(ctx context.Context, job *models.Job, jl *joblogs.JobLogger) (string, error) {
	data, ok := job.DataParsed.(*models.JobDefaultBackfillData)
	if !ok || data.Field == "" {
		return "", errcodes.JobFailed(job.Type, "A field and a default value are required.", nil)
	}
	field, ok := backfillFields[data.Field]
	if !ok {
		return "", errcodes.JobFailed(job.Type, fmt.Sprintf("Field %q can't be backfilled.", data.Field), nil)
	}
	if len(data.Value) == 0 || string(data.Value) == "null" {
		return "", errcodes.JobFailed(job.Type, "A field and a default value are required.", nil)
	}
	apply, err := field.set(data.Value)
	if err != nil {
		return "", errcodes.JobFailed(job.Type, fmt.Sprintf("Default value doesn't fit field %q.", data.Field), err)
	}

	mutations := []books.Mutation{}
	err = w.bookService.EachBook(ctx, books.ScanOptions{
		Columns: []string{field.column},
		Filter: func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("? IS NULL", bun.Ident("b."+field.column))
		},
	}, func(book *models.Book) error {
		mutations = append(mutations, books.Mutation{ID: book.ID, Apply: apply})
		return nil
	})
	if err != nil {
		return "", errcodes.JobFailed(job.Type, "Terminated unsuccessfully.", err)
	}

	jl.Info("backfilling default", logger.Data{"field": data.Field, "count": len(mutations)})

	err = w.bookService.BulkSaveBooks(ctx, provenance.DefaultBackfill, mutations)
	var bulk *errcodes.BulkError
	if errors.As(err, &bulk) {
		jl.Failures("couldn't backfill book", bulk, maxLoggedFailures)
		return fmt.Sprintf("Set %s on %d of %d books.", data.Field, len(mutations)-len(bulk.Failures), len(mutations)), nil
	}
	if err != nil {
		return "", errcodes.JobFailed(job.Type, "Terminated unsuccessfully.", err)
	}

	return fmt.Sprintf("Completed successfully. Set %s on %d books.", data.Field, len(mutations)), nil
}
