package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	HarvestStateNew     = "New"
	HarvestStateUpdated = "Updated"
)

type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID                string     `bun:",pk,nullzero" json:"id"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	BookInstanceID    string     `bun:",nullzero" json:"book_instance_id" validate:"required"`
	BookLineage       *string    `json:"book_lineage,omitempty"`
	BookLineageArray  []string   `bun:",nullzero" json:"book_lineage_array,omitempty"`
	Title             string     `bun:",nullzero" json:"title" validate:"required"`
	AllTitles         *string    `json:"all_titles,omitempty"`
	Summary           *string    `json:"summary,omitempty"`
	LibrarianNote     *string    `json:"librarian_note,omitempty"`
	Publisher         *string    `json:"publisher,omitempty"`
	OriginalPublisher *string    `json:"original_publisher,omitempty"`
	Copyright         *string    `json:"copyright,omitempty"`
	License           *string    `json:"license,omitempty"`
	Authors           []string   `json:"authors"`
	LanguageIDs       []string   `bun:"language_ids" json:"language_ids"`
	Tags              []string   `json:"tags"`
	Bookshelves       []string   `json:"bookshelves"`
	Search            string     `json:"search"`
	UpdateSource      string     `bun:",nullzero" json:"update_source"`
	UploaderID        string     `bun:",nullzero" json:"uploader_id" validate:"required"`
	InCirculation     *bool      `json:"in_circulation,omitempty"`
	Draft             *bool      `json:"draft,omitempty"`
	Rebrand           *bool      `json:"rebrand,omitempty"`
	Show              *Show      `json:"show,omitempty"`
	HasBloomPub       bool       `json:"has_bloom_pub"`
	HarvestState      *string    `json:"harvest_state,omitempty"`
	LastUploaded      *time.Time `json:"last_uploaded,omitempty"`
	UploadPendingAt   *time.Time `json:"upload_pending_at,omitempty"`
	ACL               *ACL       `json:"acl,omitempty"`

	BookStats
}

// BookStats holds the usage metrics copied in from the analytics service.
// A nil value means the metric has never been populated.
type BookStats struct {
	StatsStartedCount      *int     `json:"stats_started_count,omitempty"`
	StatsFinishedCount     *int     `json:"stats_finished_count,omitempty"`
	StatsShellDownloads    *int     `json:"stats_shell_downloads,omitempty"`
	StatsPDFDownloads      *int     `bun:"stats_pdf_downloads" json:"stats_pdf_downloads,omitempty"`
	StatsEpubDownloads     *int     `json:"stats_epub_downloads,omitempty"`
	StatsBloomPubDownloads *int     `bun:"stats_bloompub_downloads" json:"stats_bloompub_downloads,omitempty"`
	StatsMeanPagesRead     *float64 `json:"stats_mean_pages_read,omitempty"`
	StatsMeanMinutesRead   *float64 `json:"stats_mean_minutes_read,omitempty"`
}

// IsUploadPending reports whether the record is still an empty shell from
// the first half of a two-phase upload.
func (b *Book) IsUploadPending() bool {
	return b.UploadPendingAt != nil
}

// IsCounted reports whether the book counts toward language usage. Books out
// of circulation, drafts and rebrands don't.
func (b *Book) IsCounted() bool {
	if b.InCirculation != nil && !*b.InCirculation {
		return false
	}
	if b.Draft != nil && *b.Draft {
		return false
	}
	if b.Rebrand != nil && *b.Rebrand {
		return false
	}
	return true
}

// Show holds per-artifact visibility preferences.
type Show struct {
	BloomReader *ArtifactVisibility `json:"bloomReader,omitempty"`
	Epub        *ArtifactVisibility `json:"epub,omitempty"`
	PDF         *ArtifactVisibility `json:"pdf,omitempty"`
	Shellbook   *ArtifactVisibility `json:"shellbook,omitempty"`
}

// ArtifactVisibility is the three-tier override chain for one artifact. The
// end user overrides a librarian, who overrides the harvester.
type ArtifactVisibility struct {
	User      *bool  `json:"user,omitempty"`
	Librarian *bool  `json:"librarian,omitempty"`
	Harvester *bool  `json:"harvester,omitempty"`
	LangTag   string `json:"langTag,omitempty"`
}

// Visible resolves the chain. The harvester defaults to visible when unset.
func (v *ArtifactVisibility) Visible() bool {
	if v == nil {
		return true
	}
	switch {
	case v.User != nil:
		return *v.User
	case v.Librarian != nil:
		return *v.Librarian
	case v.Harvester != nil:
		return *v.Harvester
	}
	return true
}

// HasBloomPub resolves the bloomReader visibility of the show preferences.
func (s *Show) HasBloomPub() bool {
	if s == nil {
		return true
	}
	return s.BloomReader.Visible()
}

// ACL is attached when a record is created and never rewritten afterwards.
type ACL struct {
	PublicRead bool     `json:"publicRead"`
	RoleWrite  []string `json:"roleWrite,omitempty"`
	UserWrite  []string `json:"userWrite,omitempty"`
}

// AllowsWrite checks the ACL for a user. Records without an ACL are open.
func (acl *ACL) AllowsWrite(user *User) bool {
	if acl == nil || user == nil {
		return acl == nil
	}
	for _, role := range acl.RoleWrite {
		if user.HasRole(role) {
			return true
		}
	}
	for _, id := range acl.UserWrite {
		if id == user.ID {
			return true
		}
	}
	return false
}
