package books

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/openbookcatalog/catalog/pkg/binder"
	"github.com/openbookcatalog/catalog/pkg/errcodes"
	"github.com/openbookcatalog/catalog/pkg/languages"
	"github.com/openbookcatalog/catalog/pkg/models"
	"github.com/openbookcatalog/catalog/pkg/notify"
	"github.com/openbookcatalog/catalog/pkg/provenance"
	"github.com/openbookcatalog/catalog/pkg/tags"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// WriteRequest is one create or update flowing through the write pipeline.
//
// Creates carry the full record in Book. Updates name the record with ID and
// describe the change with Apply, which runs against a copy of the stored
// record inside the write transaction.
type WriteRequest struct {
	Book  *models.Book
	ID    string
	Apply func(book *models.Book)
	// Languages replace the language references of the record once the
	// write passed validation and the access check. Nil leaves them alone.
	Languages []languages.LanguageInput

	// UpdateSource is nil when the writer didn't supply one.
	UpdateSource *string
	UserAgent    string
	Referer      string
	// Creator is the authenticated identity, if any.
	Creator *models.User

	startUpload bool
}

type WriteResult struct {
	Book           *models.Book
	Created        bool
	Classification provenance.Classification
	// Notified is true when the newly visible callback was invoked.
	Notified bool
}

var validate = binder.NewValidator()

func validateBook(book *models.Book) error {
	if book == nil {
		return errcodes.ValidationError("book is required")
	}
	err := validate.Struct(book)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return errcodes.ValidationError(binder.ValidationMessage(verrs))
	}
	return errors.WithStack(err)
}

// prepare runs classification, merging, normalization and the derived field
// rules on the incoming record. prior is nil for new records.
func (svc *Service) prepare(req WriteRequest, incoming, prior *models.Book, now time.Time) (*models.Book, provenance.Classification) {
	in := provenance.Input{
		Supplied:  req.UpdateSource != nil,
		UserAgent: req.UserAgent,
		Referer:   req.Referer,
		IsNew:     prior == nil,
	}
	if req.UpdateSource != nil {
		in.UpdateSource = *req.UpdateSource
	}
	cls := svc.classifier.Classify(in)

	book := MergeFields(incoming, prior, cls)
	book.UpdateSource = cls.Source

	norm := tags.Normalize(book.Title, book.Tags)
	book.Tags = norm.Tags
	book.Search = norm.Search
	if len(norm.Bookshelves) > 0 {
		book.Bookshelves = addUnique(book.Bookshelves, norm.Bookshelves...)
	}

	book.BookLineageArray = lineageArray(book.BookLineage)
	book.HasBloomPub = book.Show.HasBloomPub()

	if cls.SetUploadTimestamp {
		book.LastUploaded = &now
	}

	switch {
	case req.startUpload:
		book.UploadPendingAt = &now
	case prior != nil && provenance.IsReserved(cls.Source):
		book.UploadPendingAt = prior.UploadPendingAt
	default:
		book.UploadPendingAt = nil
	}

	if prior == nil {
		book.CreatedAt = now
		book.ACL = nil
		if req.Creator != nil {
			book.ACL = &models.ACL{
				PublicRead: true,
				RoleWrite:  []string{models.RoleModerator},
				UserWrite:  []string{req.Creator.ID},
			}
		}
	} else {
		book.ID = prior.ID
		book.CreatedAt = prior.CreatedAt
		book.ACL = prior.ACL
	}
	book.UpdatedAt = now

	return book, cls
}

// lineageArray splits the comma-joined lineage. An absent lineage clears the
// array.
func lineageArray(lineage *string) []string {
	if lineage == nil || *lineage == "" {
		return nil
	}
	return strings.Split(*lineage, ",")
}

// shouldNotify decides whether a committed write made the book newly visible.
// Upload shells stay invisible until they are filled, and a fill counts once.
func shouldNotify(book, prior *models.Book, cls provenance.Classification) bool {
	if book.IsUploadPending() {
		return false
	}
	if prior == nil {
		return true
	}
	return cls.IsNewUploadViaTwoPhaseAPI && prior.IsUploadPending()
}

// afterCommit creates missing tag records and fires the visibility callback.
// Neither may fail the write that has already been committed.
func (svc *Service) afterCommit(ctx context.Context, result *WriteResult, prior *models.Book) {
	log := logger.FromContext(ctx)
	book := result.Book

	if err := svc.tagService.EnsureTags(ctx, book.Tags); err != nil {
		log.Err(err).Warn("failed to create tag records", logger.Data{"book_id": book.ID})
	}

	if svc.notifier == nil || !shouldNotify(book, prior, result.Classification) {
		return
	}
	result.Notified = true

	uploader := &models.User{}
	err := svc.db.NewSelect().Model(uploader).Where("u.id = ?", book.UploaderID).Scan(ctx)
	if err != nil {
		log.Err(err).Warn("failed to load uploader for notification", logger.Data{"book_id": book.ID})
		uploader = nil
	}

	if err := svc.notifier.BookVisible(ctx, notify.Event{Book: book, Uploader: uploader}); err != nil {
		log.Err(err).Error("book visible notification failed", logger.Data{"book_id": book.ID})
	}
}
