package languages

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openbookcatalog/catalog/pkg/errcodes"
	"github.com/openbookcatalog/catalog/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveLanguageOptions struct {
	ID      *string
	IsoCode *string
	Name    *string
}

type ListLanguagesOptions struct {
	Limit   *int
	Offset  *int
	IsoCode *string
	// InUse limits the result to languages with a positive usage count.
	InUse bool

	includeTotal bool
}

// LanguageInput identifies a language on the write path. A language is the
// pair of iso code and display name.
type LanguageInput struct {
	IsoCode        string
	Name           string
	EnglishName    *string
	EthnologueCode *string
}

type Service struct {
	db bun.IDB
}

func NewService(db bun.IDB) *Service {
	return &Service{db}
}

func (svc *Service) CreateLanguage(ctx context.Context, language *models.Language) error {
	now := time.Now()
	if language.ID == "" {
		language.ID = uuid.NewString()
	}
	if language.CreatedAt.IsZero() {
		language.CreatedAt = now
	}
	language.UpdatedAt = language.CreatedAt

	_, err := svc.db.
		NewInsert().
		Model(language).
		Returning("*").
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) RetrieveLanguage(ctx context.Context, opts RetrieveLanguageOptions) (*models.Language, error) {
	language := &models.Language{}

	q := svc.db.
		NewSelect().
		Model(language).
		Order("l.created_at ASC").
		Limit(1)

	if opts.ID != nil {
		q = q.Where("l.id = ?", *opts.ID)
	}
	if opts.IsoCode != nil {
		q = q.Where("l.iso_code = ?", *opts.IsoCode)
	}
	if opts.Name != nil {
		q = q.Where("l.name = ?", *opts.Name)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Language")
		}
		return nil, errors.WithStack(err)
	}

	return language, nil
}

// FindOrCreateLanguage returns the language with the same iso code and name,
// creating it on first use. New languages start with a zero usage count; the
// aggregation job fills it in.
func (svc *Service) FindOrCreateLanguage(ctx context.Context, input LanguageInput) (*models.Language, error) {
	isoCode := strings.TrimSpace(input.IsoCode)
	name := strings.TrimSpace(input.Name)
	if isoCode == "" || name == "" {
		return nil, errcodes.ValidationError("Language iso code and name are required.")
	}

	now := time.Now()
	language := &models.Language{
		ID:             uuid.NewString(),
		CreatedAt:      now,
		UpdatedAt:      now,
		IsoCode:        isoCode,
		Name:           name,
		EnglishName:    input.EnglishName,
		EthnologueCode: input.EthnologueCode,
	}
	// Concurrent uploads may bring the same new language, so let the unique
	// index decide and read back whichever row won.
	_, err := svc.db.
		NewInsert().
		Model(language).
		On("CONFLICT (iso_code, name) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return svc.RetrieveLanguage(ctx, RetrieveLanguageOptions{
		IsoCode: &isoCode,
		Name:    &name,
	})
}

func (svc *Service) ListLanguages(ctx context.Context, opts ListLanguagesOptions) ([]*models.Language, error) {
	l, _, err := svc.listLanguagesWithTotal(ctx, opts)
	return l, errors.WithStack(err)
}

func (svc *Service) ListLanguagesWithTotal(ctx context.Context, opts ListLanguagesOptions) ([]*models.Language, int, error) {
	opts.includeTotal = true
	return svc.listLanguagesWithTotal(ctx, opts)
}

func (svc *Service) listLanguagesWithTotal(ctx context.Context, opts ListLanguagesOptions) ([]*models.Language, int, error) {
	languages := []*models.Language{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&languages).
		Order("l.iso_code ASC", "l.name ASC")

	if opts.IsoCode != nil {
		q = q.Where("l.iso_code = ?", *opts.IsoCode)
	}
	if opts.InUse {
		q = q.Where("l.usage_count > 0")
	}
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

	return languages, total, nil
}

// BulkUpdateUsage writes usage counts keyed by language id. Each row is
// updated on its own; failures are collected and the rest stay applied.
func (svc *Service) BulkUpdateUsage(ctx context.Context, counts map[string]int) error {
	bulkErr := &errcodes.BulkError{Op: "update language usage", Total: len(counts)}
	now := time.Now()
	for id, count := range counts {
		res, err := svc.db.NewUpdate().
			Model((*models.Language)(nil)).
			Set("usage_count = ?", count).
			Set("updated_at = ?", now).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			bulkErr.Add(id, errors.WithStack(err))
			continue
		}
		if n, _ := res.RowsAffected(); n == 0 {
			bulkErr.Add(id, errcodes.NotFound("Language"))
		}
	}
	return bulkErr.OrNil()
}

// BulkDelete removes languages by id with the same per-item reporting as
// BulkUpdateUsage.
func (svc *Service) BulkDelete(ctx context.Context, ids []string) error {
	bulkErr := &errcodes.BulkError{Op: "delete languages", Total: len(ids)}
	for _, id := range ids {
		_, err := svc.db.NewDelete().
			Model((*models.Language)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			bulkErr.Add(id, errors.WithStack(err))
		}
	}
	return bulkErr.OrNil()
}
