package books

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/openbookcatalog/catalog/pkg/auth"
	"github.com/openbookcatalog/catalog/pkg/languages"
	"github.com/openbookcatalog/catalog/pkg/models"
	"github.com/pkg/errors"
)

type handler struct {
	bookService *Service
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	book, err := h.bookService.RetrieveBook(ctx, RetrieveBookOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListBooksQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	books, total, err := h.bookService.ListBooksWithTotal(ctx, ListBooksOptions{
		Limit:          &params.Limit,
		Offset:         &params.Offset,
		BookInstanceID: params.BookInstanceID,
		Tag:            params.Tag,
		Lineage:        params.Lineage,
		Search:         params.Search,
		UploaderID:     params.UploaderID,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	response := map[string]any{
		"books": books,
		"total": total,
	}

	return errors.WithStack(c.JSON(http.StatusOK, response))
}

func (h *handler) create(c echo.Context) error {
	req, err := h.writeRequest(c)
	if err != nil {
		return err
	}

	result, err := h.bookService.SaveBook(c.Request().Context(), req)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, result.Book))
}

// startUpload is the first half of a two-phase upload. The returned id is
// filled later with an update whose source ends in "(new book)".
func (h *handler) startUpload(c echo.Context) error {
	req, err := h.writeRequest(c)
	if err != nil {
		return err
	}

	result, err := h.bookService.StartUpload(c.Request().Context(), req)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, result.Book))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()

	params := BookPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	req := baseRequest(c, params)
	req.ID = c.Param("id")
	req.Apply = func(book *models.Book) {
		applyPayload(book, params)
	}

	result, err := h.bookService.SaveBook(ctx, req)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, result.Book))
}

func (h *handler) writeRequest(c echo.Context) (WriteRequest, error) {
	params := BookPayload{}
	if err := c.Bind(&params); err != nil {
		return WriteRequest{}, errors.WithStack(err)
	}

	req := baseRequest(c, params)
	book := &models.Book{}
	applyPayload(book, params)
	if book.UploaderID == "" && req.Creator != nil {
		book.UploaderID = req.Creator.ID
	}
	req.Book = book
	return req, nil
}

func baseRequest(c echo.Context, params BookPayload) WriteRequest {
	req := WriteRequest{
		Languages:    languageInputs(params.Languages),
		UpdateSource: params.UpdateSource,
		UserAgent:    c.Request().UserAgent(),
		Referer:      c.Request().Referer(),
	}
	if user, ok := auth.UserFromContext(c); ok {
		req.Creator = user
	}
	return req
}

// languageInputs converts the payloads. A nil result means the field was
// absent.
func languageInputs(payloads []LanguagePayload) []languages.LanguageInput {
	if payloads == nil {
		return nil
	}
	inputs := make([]languages.LanguageInput, 0, len(payloads))
	for _, p := range payloads {
		inputs = append(inputs, languages.LanguageInput{
			IsoCode:        p.IsoCode,
			Name:           p.Name,
			EnglishName:    p.EnglishName,
			EthnologueCode: p.EthnologueCode,
		})
	}
	return inputs
}

// applyPayload copies every present payload field onto the book.
func applyPayload(book *models.Book, p BookPayload) {
	if p.BookInstanceID != nil {
		book.BookInstanceID = *p.BookInstanceID
	}
	if p.BookLineage != nil {
		book.BookLineage = p.BookLineage
		if *p.BookLineage == "" {
			book.BookLineage = nil
		}
	}
	if p.Title != nil {
		book.Title = *p.Title
	}
	setString(&book.AllTitles, p.AllTitles)
	setString(&book.Summary, p.Summary)
	setString(&book.LibrarianNote, p.LibrarianNote)
	setString(&book.Publisher, p.Publisher)
	setString(&book.OriginalPublisher, p.OriginalPublisher)
	setString(&book.Copyright, p.Copyright)
	setString(&book.License, p.License)
	if p.Authors != nil {
		book.Authors = p.Authors
	}
	if p.Tags != nil {
		book.Tags = p.Tags
	}
	if p.Bookshelves != nil {
		book.Bookshelves = p.Bookshelves
	}
	if p.InCirculation != nil {
		book.InCirculation = p.InCirculation
	}
	if p.Draft != nil {
		book.Draft = p.Draft
	}
	if p.Rebrand != nil {
		book.Rebrand = p.Rebrand
	}
	if p.Show != nil {
		book.Show = p.Show
	}
	if p.UploaderID != nil {
		book.UploaderID = *p.UploaderID
	}
}

func setString(dst **string, v *string) {
	if v != nil {
		s := *v
		*dst = &s
	}
}

