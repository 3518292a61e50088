package books

import (
	"github.com/openbookcatalog/catalog/pkg/models"
)

type LanguagePayload struct {
	IsoCode        string  `json:"iso_code" mod:"trim" validate:"required,isocode"`
	Name           string  `json:"name" mod:"trim" validate:"required,max=200"`
	EnglishName    *string `json:"english_name,omitempty"`
	EthnologueCode *string `json:"ethnologue_code,omitempty"`
}

// BookPayload is shared by creates and updates. On updates only the fields
// that are present are changed.
type BookPayload struct {
	UpdateSource      *string           `json:"update_source,omitempty" validate:"omitempty,max=200"`
	BookInstanceID    *string           `json:"book_instance_id,omitempty" validate:"omitempty,max=200"`
	BookLineage       *string           `json:"book_lineage,omitempty"`
	Title             *string           `json:"title,omitempty" validate:"omitempty,max=1000"`
	AllTitles         *string           `json:"all_titles,omitempty"`
	Summary           *string           `json:"summary,omitempty"`
	LibrarianNote     *string           `json:"librarian_note,omitempty"`
	Publisher         *string           `json:"publisher,omitempty"`
	OriginalPublisher *string           `json:"original_publisher,omitempty"`
	Copyright         *string           `json:"copyright,omitempty"`
	License           *string           `json:"license,omitempty"`
	Authors           []string          `json:"authors,omitempty"`
	Languages         []LanguagePayload `json:"languages,omitempty" validate:"omitempty,dive"`
	Tags              []string          `json:"tags,omitempty" validate:"omitempty,max=500"`
	Bookshelves       []string          `json:"bookshelves,omitempty"`
	InCirculation     *bool             `json:"in_circulation,omitempty"`
	Draft             *bool             `json:"draft,omitempty"`
	Rebrand           *bool             `json:"rebrand,omitempty"`
	Show              *models.Show      `json:"show,omitempty"`
	UploaderID        *string           `json:"uploader_id,omitempty"`
}

type ListBooksQuery struct {
	Limit          int     `query:"limit" json:"limit,omitempty" default:"24" validate:"min=1,max=200"`
	Offset         int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	BookInstanceID *string `query:"book_instance_id" json:"book_instance_id,omitempty"`
	Tag            *string `query:"tag" json:"tag,omitempty"`
	Lineage        *string `query:"lineage" json:"lineage,omitempty"`
	Search         *string `query:"search" json:"search,omitempty" validate:"omitempty,max=100"`
	UploaderID     *string `query:"uploader_id" json:"uploader_id,omitempty"`
}
