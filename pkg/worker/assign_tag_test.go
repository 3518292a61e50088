package worker

import (
	"testing"

	"github.com/openbookcatalog/catalog/pkg/models"
	"github.com/openbookcatalog/catalog/pkg/provenance"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessAssignTagJob(t *testing.T) {
	tc := newTestContext(t)

	math := tc.createBook(func(b *models.Book) { b.Tags = []string{"topic:Math"} })
	tagged := tc.createBook(func(b *models.Book) { b.Tags = []string{"topic:Math", "list:Starter"} })
	other := tc.createBook(func(b *models.Book) { b.Title = "Sheep Go Home" })

	data := &models.JobAssignTagData{
		Tag:    "list:Starter",
		Filter: models.JobBookFilter{Tag: pointerutil.String("Math")},
		DryRun: true,
	}
	job, err := tc.runJob(models.JobTypeAssignTag, data)
	require.NoError(t, err)
	assert.Equal(t, "Dry run. Would tag 1 books, 1 already tagged.", *job.Message)
	assert.NotContains(t, tc.retrieveBook(math.ID).Tags, "list:Starter")

	previewed := false
	for _, l := range tc.jobLogs(job.ID) {
		if l.Message == "would tag book" {
			previewed = true
		}
	}
	assert.True(t, previewed)

	data.DryRun = false
	job, err = tc.runJob(models.JobTypeAssignTag, data)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, "Completed successfully. Tagged 1 books, 1 already tagged.", *job.Message)

	book := tc.retrieveBook(math.ID)
	assert.Contains(t, book.Tags, "list:Starter")
	assert.Contains(t, book.Tags, "topic:Math")
	assert.Equal(t, provenance.AssignTag, book.UpdateSource)

	assert.Equal(t, tagged.UpdatedAt.Unix(), tc.retrieveBook(tagged.ID).UpdatedAt.Unix())
	assert.NotContains(t, tc.retrieveBook(other.ID).Tags, "list:Starter")
}

func TestProcessAssignTagJob_SearchFilterAndBareTag(t *testing.T) {
	tc := newTestContext(t)

	sheep := tc.createBook(func(b *models.Book) { b.Title = "Sheep Go Home" })
	goats := tc.createBook(nil)

	job, err := tc.runJob(models.JobTypeAssignTag, &models.JobAssignTagData{
		Tag:    "Farm",
		Filter: models.JobBookFilter{Search: pointerutil.String("sheep")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Completed successfully. Tagged 1 books, 0 already tagged.", *job.Message)

	assert.Contains(t, tc.retrieveBook(sheep.ID).Tags, "topic:Farm")
	assert.NotContains(t, tc.retrieveBook(goats.ID).Tags, "topic:Farm")
}

func TestProcessAssignTagJob_RequiresTag(t *testing.T) {
	tc := newTestContext(t)
	book := tc.createBook(nil)

	job, err := tc.runJob(models.JobTypeAssignTag, &models.JobAssignTagData{Tag: "  "})
	require.Error(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Empty(t, tc.retrieveBook(book.ID).Tags)
}
