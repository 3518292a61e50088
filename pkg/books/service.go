package books

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/openbookcatalog/catalog/pkg/database"
	"github.com/openbookcatalog/catalog/pkg/errcodes"
	"github.com/openbookcatalog/catalog/pkg/languages"
	"github.com/openbookcatalog/catalog/pkg/models"
	"github.com/openbookcatalog/catalog/pkg/notify"
	"github.com/openbookcatalog/catalog/pkg/provenance"
	"github.com/openbookcatalog/catalog/pkg/tags"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

const defaultScanBatchSize = 500

type RetrieveBookOptions struct {
	ID             *string
	BookInstanceID *string
}

type ListBooksOptions struct {
	Limit          *int
	Offset         *int
	BookInstanceID *string
	Tag            *string
	// Lineage matches books descended from the given book instance id.
	Lineage    *string
	Search     *string
	UploaderID *string

	includeTotal bool
}

// ScanOptions configure EachBook.
type ScanOptions struct {
	// Columns limits the projection. The id is always selected.
	Columns   []string
	BatchSize int
	// Match applies the list filters. Limit and offset are ignored.
	Match     *ListBooksOptions
	Filter    func(q *bun.SelectQuery) *bun.SelectQuery
}

// Mutation is one change made by a bulk save. Apply runs against a fresh copy
// of the stored record.
type Mutation struct {
	ID    string
	Apply func(book *models.Book)
}

type Options struct {
	Classifier *provenance.Classifier
	// Notifier receives newly visible books. Nil disables notifications.
	Notifier   notify.Notifier
	MaxRetries int
}

type Service struct {
	db         *bun.DB
	tagService *tags.Service
	classifier *provenance.Classifier
	notifier   notify.Notifier
	maxRetries int
}

func NewService(db *bun.DB, opts Options) *Service {
	classifier := opts.Classifier
	if classifier == nil {
		classifier = provenance.NewClassifier("", "")
	}
	return &Service{
		db:         db,
		tagService: tags.NewService(db),
		classifier: classifier,
		notifier:   opts.Notifier,
		maxRetries: opts.MaxRetries,
	}
}

// SaveBook runs a create or update through the write pipeline and commits it.
func (svc *Service) SaveBook(ctx context.Context, req WriteRequest) (*WriteResult, error) {
	var result *WriteResult
	var prior *models.Book

	err := database.RetryBusy(ctx, svc.maxRetries, func() error {
		var err error
		result, prior, err = svc.commit(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	svc.afterCommit(ctx, result, prior)
	return result, nil
}

// StartUpload creates the empty shell of a two-phase upload. The shell is
// hidden from notifications until a later write fills it.
func (svc *Service) StartUpload(ctx context.Context, req WriteRequest) (*WriteResult, error) {
	req.ID = ""
	req.Apply = nil
	req.startUpload = true
	return svc.SaveBook(ctx, req)
}

func (svc *Service) commit(ctx context.Context, req WriteRequest) (*WriteResult, *models.Book, error) {
	var result *WriteResult
	var prior *models.Book

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var incoming *models.Book
		if req.ID != "" {
			prior = &models.Book{}
			err := tx.NewSelect().Model(prior).Where("b.id = ?", req.ID).Scan(ctx)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return errcodes.NotFound("Book")
				}
				return errors.WithStack(err)
			}
			if req.Creator != nil && !prior.ACL.AllowsWrite(req.Creator) {
				return errcodes.Forbidden("Updating this book")
			}
			incoming = cloneBook(prior)
			if req.Apply != nil {
				req.Apply(incoming)
			}
		} else {
			incoming = cloneBook(req.Book)
		}

		if err := validateBook(incoming); err != nil {
			return err
		}

		// Languages are only created once the write is known to go through,
		// and roll back with it otherwise.
		if req.Languages != nil {
			ids, err := resolveLanguages(ctx, languages.NewService(tx), req.Languages)
			if err != nil {
				return err
			}
			incoming.LanguageIDs = ids
		}

		// sqlite keeps microseconds; the result must match the stored row.
		now := time.Now().Truncate(time.Microsecond)
		book, cls := svc.prepare(req, incoming, prior, now)

		if prior == nil {
			if book.ID == "" {
				book.ID = uuid.NewString()
			}
			_, err := tx.NewInsert().Model(book).Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		} else {
			_, err := tx.NewUpdate().
				Model(book).
				ExcludeColumn("acl", "created_at").
				WherePK().
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		result = &WriteResult{
			Book:           book,
			Created:        prior == nil,
			Classification: cls,
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, prior, nil
}

// resolveLanguages turns language payloads into record ids, creating the
// languages seen for the first time.
func resolveLanguages(ctx context.Context, languageService *languages.Service, inputs []languages.LanguageInput) ([]string, error) {
	ids := make([]string, 0, len(inputs))
	for _, input := range inputs {
		language, err := languageService.FindOrCreateLanguage(ctx, input)
		if err != nil {
			return nil, err
		}
		ids = append(ids, language.ID)
	}
	return ids, nil
}

// BulkSaveBooks applies each mutation through the write pipeline with the
// given reserved source. Items are independent; failed ones are returned in
// an errcodes.BulkError and the rest stay applied.
func (svc *Service) BulkSaveBooks(ctx context.Context, source string, mutations []Mutation) error {
	bulkErr := &errcodes.BulkError{Op: "save books", Total: len(mutations)}
	for _, m := range mutations {
		src := source
		_, err := svc.SaveBook(ctx, WriteRequest{
			ID:           m.ID,
			Apply:        m.Apply,
			UpdateSource: &src,
		})
		if err != nil {
			bulkErr.Add(m.ID, err)
		}
	}
	return bulkErr.OrNil()
}

func (svc *Service) RetrieveBook(ctx context.Context, opts RetrieveBookOptions) (*models.Book, error) {
	book := &models.Book{}

	q := svc.db.
		NewSelect().
		Model(book)

	if opts.ID != nil {
		q = q.Where("b.id = ?", *opts.ID)
	}
	if opts.BookInstanceID != nil {
		q = q.Where("b.book_instance_id = ?", *opts.BookInstanceID).Order("b.created_at ASC").Limit(1)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book")
		}
		return nil, errors.WithStack(err)
	}

	return book, nil
}

func (svc *Service) ListBooks(ctx context.Context, opts ListBooksOptions) ([]*models.Book, error) {
	b, _, err := svc.listBooksWithTotal(ctx, opts)
	return b, errors.WithStack(err)
}

func (svc *Service) ListBooksWithTotal(ctx context.Context, opts ListBooksOptions) ([]*models.Book, int, error) {
	opts.includeTotal = true
	return svc.listBooksWithTotal(ctx, opts)
}

func (svc *Service) listBooksWithTotal(ctx context.Context, opts ListBooksOptions) ([]*models.Book, int, error) {
	books := []*models.Book{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&books).
		Order("b.created_at ASC", "b.id ASC")

	q = whereListOptions(q, opts)
	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return books, total, nil
}

func whereListOptions(q *bun.SelectQuery, opts ListBooksOptions) *bun.SelectQuery {
	if opts.BookInstanceID != nil {
		q = q.Where("b.book_instance_id = ?", *opts.BookInstanceID)
	}
	if opts.Tag != nil {
		q = q.Where("EXISTS (SELECT 1 FROM json_each(b.tags) WHERE json_each.value = ?)", *opts.Tag)
	}
	if opts.Lineage != nil {
		q = q.Where("EXISTS (SELECT 1 FROM json_each(b.book_lineage_array) WHERE json_each.value = ?)", *opts.Lineage)
	}
	if opts.Search != nil && *opts.Search != "" {
		q = q.Where("instr(b.search, lower(?)) > 0", *opts.Search)
	}
	if opts.UploaderID != nil {
		q = q.Where("b.uploader_id = ?", *opts.UploaderID)
	}
	return q
}

// EachBook walks the catalog in id order, one page at a time, and calls fn
// for every book. Pages are read separately, so books written during the
// walk may or may not be seen. Returning an error from fn stops the walk.
func (svc *Service) EachBook(ctx context.Context, opts ScanOptions, fn func(book *models.Book) error) error {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultScanBatchSize
	}

	after := ""
	for {
		page := []*models.Book{}
		q := svc.db.NewSelect().
			Model(&page).
			Where("b.id > ?", after).
			Order("b.id ASC").
			Limit(batchSize)
		if len(opts.Columns) > 0 {
			q = q.Column("id").Column(opts.Columns...)
		}
		if opts.Match != nil {
			q = whereListOptions(q, *opts.Match)
		}
		if opts.Filter != nil {
			q = opts.Filter(q)
		}

		if err := q.Scan(ctx); err != nil {
			return errors.WithStack(err)
		}

		for _, book := range page {
			if err := fn(book); err != nil {
				return err
			}
		}

		if len(page) < batchSize {
			return nil
		}
		after = page[len(page)-1].ID
	}
}
