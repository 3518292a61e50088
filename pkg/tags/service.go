package tags

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

type RetrieveTagOptions struct {
	ID   *string
	Name *string
}

type ListTagsOptions struct {
	Limit  *int
	Offset *int
	Search *string

	includeTotal bool
}

type Service struct {
	db bun.IDB
}

func NewService(db bun.IDB) *Service {
	return &Service{db}
}

func (svc *Service) CreateTag(ctx context.Context, tag *models.Tag) error {
	now := time.Now()
	if tag.ID == "" {
		tag.ID = uuid.NewString()
	}
	if tag.CreatedAt.IsZero() {
		tag.CreatedAt = now
	}
	tag.UpdatedAt = tag.CreatedAt

	_, err := svc.db.
		NewInsert().
		Model(tag).
		Returning("*").
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) RetrieveTag(ctx context.Context, opts RetrieveTagOptions) (*models.Tag, error) {
	tag := &models.Tag{}

	q := svc.db.
		NewSelect().
		Model(tag)

	if opts.ID != nil {
		q = q.Where("t.id = ?", *opts.ID)
	}
	if opts.Name != nil {
		q = q.Where("t.name = ?", *opts.Name)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Tag")
		}
		return nil, errors.WithStack(err)
	}

	return tag, nil
}

// FindOrCreateTag returns the tag with exactly this name, creating it when
// it doesn't exist yet. Names are matched case-sensitively since they are
// already normalized by the write path.
func (svc *Service) FindOrCreateTag(ctx context.Context, name string) (*models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("tag name cannot be empty")
	}

	now := time.Now()
	tag := &models.Tag{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Name:      name,
	}
	// Two writers may see the same new tag at once, so let the unique index
	// decide and read back whichever row won.
	_, err := svc.db.
		NewInsert().
		Model(tag).
		On("CONFLICT (name) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return svc.RetrieveTag(ctx, RetrieveTagOptions{Name: &name})
}

// EnsureTags makes sure a tag record exists for every distinct name. It
// keeps going past failures and reports them together.
func (svc *Service) EnsureTags(ctx context.Context, names []string) error {
	seen := make(map[string]struct{}, len(names))
	bulkErr := &errcodes.BulkError{Op: "ensure tags"}
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		bulkErr.Total++
		if _, err := svc.FindOrCreateTag(ctx, name); err != nil {
			bulkErr.Add(name, err)
		}
	}
	return bulkErr.OrNil()
}

func (svc *Service) ListTags(ctx context.Context, opts ListTagsOptions) ([]*models.Tag, error) {
	t, _, err := svc.listTagsWithTotal(ctx, opts)
	return t, errors.WithStack(err)
}

func (svc *Service) ListTagsWithTotal(ctx context.Context, opts ListTagsOptions) ([]*models.Tag, int, error) {
	opts.includeTotal = true
	return svc.listTagsWithTotal(ctx, opts)
}

func (svc *Service) listTagsWithTotal(ctx context.Context, opts ListTagsOptions) ([]*models.Tag, int, error) {
	tags := []*models.Tag{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&tags).
		Order("t.name ASC")

	if opts.Search != nil && *opts.Search != "" {
		q = q.Where("t.name LIKE ? ESCAPE '\\'", "%"+escapeLike(*opts.Search)+"%")
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

	return tags, total, nil
}

func (svc *Service) DeleteTag(ctx context.Context, id string) error {
	res, err := svc.db.NewDelete().
		Model((*models.Tag)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errcodes.NotFound("Tag")
	}
	return nil
}

// GetBookCount counts the books carrying exactly this tag.
func (svc *Service) GetBookCount(ctx context.Context, name string) (int, error) {
	count, err := svc.db.NewSelect().
		TableExpr("books AS b").
		Where("EXISTS (SELECT 1 FROM json_each(b.tags) WHERE json_each.value = ?)", name).
		Count(ctx)
	return count, errors.WithStack(err)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
