package books

import (
	"testing"

	"github.com/openbookcatalog/catalog/pkg/models"
	"github.com/openbookcatalog/catalog/pkg/provenance"
	"github.com/openbookcatalog/catalog/pkg/tags"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func desktop(isNew bool) provenance.Classification {
	return provenance.Classify(provenance.Input{Supplied: true, UpdateSource: "BloomDesktop 6.1", IsNew: isNew})
}

func TestMergeFields_StickyScalars(t *testing.T) {
	t.Parallel()

	prior := &models.Book{
		Summary:           pointerutil.String("curated"),
		LibrarianNote:     pointerutil.String("checked by moderator"),
		Publisher:         pointerutil.String("SIL"),
		OriginalPublisher: nil,
	}
	incoming := &models.Book{
		Summary:           pointerutil.String(""),
		LibrarianNote:     nil,
		Publisher:         pointerutil.String("New Publisher"),
		OriginalPublisher: pointerutil.String("Pratham"),
	}

	merged := MergeFields(incoming, prior, desktop(false))

	require.NotNil(t, merged.Summary)
	assert.Equal(t, "curated", *merged.Summary)
	require.NotNil(t, merged.LibrarianNote)
	assert.Equal(t, "checked by moderator", *merged.LibrarianNote)
	assert.Equal(t, "New Publisher", *merged.Publisher)
	assert.Equal(t, "Pratham", *merged.OriginalPublisher)

	// inputs are left alone
	assert.Equal(t, "", *incoming.Summary)
	assert.Nil(t, incoming.LibrarianNote)
}

func TestMergeFields_UnionsTagsAndBookshelves(t *testing.T) {
	t.Parallel()

	prior := &models.Book{
		Tags:        []string{"topic:health"},
		Bookshelves: []string{"Enabling Writers"},
	}
	incoming := &models.Book{
		Tags:        []string{"topic:math"},
		Bookshelves: []string{"Covid19"},
	}

	merged := MergeFields(incoming, prior, desktop(false))

	assert.ElementsMatch(t, []string{"topic:math", "topic:health", tags.Incoming}, merged.Tags)
	assert.ElementsMatch(t, []string{"Covid19", "Enabling Writers"}, merged.Bookshelves)
	assert.Equal(t, []string{"topic:math"}, incoming.Tags)
}

func TestMergeFields_IncomingTagAddedOnce(t *testing.T) {
	t.Parallel()

	prior := &models.Book{Tags: []string{tags.Incoming, "topic:a"}}
	incoming := &models.Book{Tags: []string{tags.Incoming, "topic:a"}}

	merged := MergeFields(incoming, prior, desktop(false))
	assert.Equal(t, []string{tags.Incoming, "topic:a"}, merged.Tags)
}

func TestMergeFields_HarvestState(t *testing.T) {
	t.Parallel()

	merged := MergeFields(&models.Book{}, nil, desktop(true))
	require.NotNil(t, merged.HarvestState)
	assert.Equal(t, models.HarvestStateNew, *merged.HarvestState)

	merged = MergeFields(&models.Book{}, &models.Book{}, desktop(false))
	assert.Equal(t, models.HarvestStateUpdated, *merged.HarvestState)

	twoPhase := provenance.Classify(provenance.Input{Supplied: true, UpdateSource: "BloomDesktop 6.1 (new book)"})
	merged = MergeFields(&models.Book{}, &models.Book{}, twoPhase)
	assert.Equal(t, models.HarvestStateNew, *merged.HarvestState)

	legacy := provenance.Classify(provenance.Input{UserAgent: "RestSharp/104"})
	merged = MergeFields(&models.Book{}, &models.Book{}, legacy)
	assert.Equal(t, models.HarvestStateUpdated, *merged.HarvestState)
}

func TestMergeFields_NonDesktopWritesUntouched(t *testing.T) {
	t.Parallel()

	prior := &models.Book{
		Summary:      pointerutil.String("curated"),
		Tags:         []string{"topic:health"},
		HarvestState: pointerutil.String("Done"),
	}
	incoming := &models.Book{
		Summary:      pointerutil.String(""),
		Tags:         []string{"topic:math"},
		HarvestState: pointerutil.String("Done"),
	}

	sources := []provenance.Classification{
		provenance.Classify(provenance.Input{Referer: "https://x/dashboard/apps/catalog"}),
		provenance.Classify(provenance.Input{}),
		provenance.Classify(provenance.Input{Supplied: true, UpdateSource: provenance.DefaultBackfill}),
	}
	for _, cls := range sources {
		merged := MergeFields(incoming, prior, cls)
		assert.Equal(t, "", *merged.Summary, cls.Source)
		assert.Equal(t, []string{"topic:math"}, merged.Tags, cls.Source)
		assert.Equal(t, "Done", *merged.HarvestState, cls.Source)
	}
}

func TestCloneBook_DeepCopiesShow(t *testing.T) {
	t.Parallel()

	original := &models.Book{
		Show: &models.Show{Epub: &models.ArtifactVisibility{LangTag: "en"}},
		ACL:  &models.ACL{UserWrite: []string{"u1"}},
	}
	c := cloneBook(original)
	c.Show.Epub.LangTag = "fr"
	c.ACL.UserWrite[0] = "u2"

	assert.Equal(t, "en", original.Show.Epub.LangTag)
	assert.Equal(t, "u1", original.ACL.UserWrite[0])
}
