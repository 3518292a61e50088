package books

import (
	"github.com/openbookcatalog/catalog/pkg/models"
	"github.com/openbookcatalog/catalog/pkg/provenance"
	"github.com/openbookcatalog/catalog/pkg/tags"
)

// MergeFields protects moderator-curated values from desktop uploads. It
// returns a new record and never mutates incoming or prior.
//
// Writes that aren't desktop uploads are returned unchanged. For desktop
// uploads the incoming tags gain the incoming system tag, the harvest state
// is reset, and when a prior version exists its sticky scalars survive blank
// incoming values while its tags and bookshelves are unioned in.
func MergeFields(incoming, prior *models.Book, cls provenance.Classification) *models.Book {
	merged := cloneBook(incoming)
	if !cls.IsDesktopUpload() {
		return merged
	}

	merged.Tags = addUnique(merged.Tags, tags.Incoming)
	state := models.HarvestStateUpdated
	if cls.TreatAsNew() {
		state = models.HarvestStateNew
	}
	merged.HarvestState = &state

	if prior == nil {
		return merged
	}

	for _, f := range stickyFields {
		if isBlank(*f(merged)) && !isBlank(*f(prior)) {
			v := **f(prior)
			*f(merged) = &v
		}
	}

	if len(prior.Tags) > 0 {
		merged.Tags = addUnique(merged.Tags, prior.Tags...)
	}
	if len(prior.Bookshelves) > 0 {
		merged.Bookshelves = addUnique(merged.Bookshelves, prior.Bookshelves...)
	}

	return merged
}

// stickyFields are the moderator-owned scalars an upload may not blank out.
var stickyFields = []func(*models.Book) **string{
	func(b *models.Book) **string { return &b.Summary },
	func(b *models.Book) **string { return &b.LibrarianNote },
	func(b *models.Book) **string { return &b.Publisher },
	func(b *models.Book) **string { return &b.OriginalPublisher },
}

func isBlank(s *string) bool {
	return s == nil || *s == ""
}

// addUnique appends each value that isn't in list yet.
func addUnique(list []string, values ...string) []string {
	seen := make(map[string]struct{}, len(list)+len(values))
	for _, v := range list {
		seen[v] = struct{}{}
	}
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		list = append(list, v)
	}
	return list
}

// cloneBook copies every slice and nested struct so the copy can be changed
// freely.
func cloneBook(b *models.Book) *models.Book {
	if b == nil {
		return nil
	}
	c := *b
	c.BookLineageArray = cloneStrings(b.BookLineageArray)
	c.Authors = cloneStrings(b.Authors)
	c.LanguageIDs = cloneStrings(b.LanguageIDs)
	c.Tags = cloneStrings(b.Tags)
	c.Bookshelves = cloneStrings(b.Bookshelves)
	if b.Show != nil {
		show := models.Show{
			BloomReader: cloneVisibility(b.Show.BloomReader),
			Epub:        cloneVisibility(b.Show.Epub),
			PDF:         cloneVisibility(b.Show.PDF),
			Shellbook:   cloneVisibility(b.Show.Shellbook),
		}
		c.Show = &show
	}
	if b.ACL != nil {
		acl := *b.ACL
		acl.RoleWrite = cloneStrings(b.ACL.RoleWrite)
		acl.UserWrite = cloneStrings(b.ACL.UserWrite)
		c.ACL = &acl
	}
	return &c
}

func cloneVisibility(v *models.ArtifactVisibility) *models.ArtifactVisibility {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
