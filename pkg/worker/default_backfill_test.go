package worker

import (
	"testing"

	"github.com/openbookcatalog/catalog/pkg/models"
	"github.com/openbookcatalog/catalog/pkg/provenance"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backfillData(field, value string) *models.JobDefaultBackfillData {
	return &models.JobDefaultBackfillData{Field: field, Value: json.RawMessage(value)}
}

func TestProcessDefaultBackfillJob(t *testing.T) {
	tc := newTestContext(t)

	unset := tc.createBook(nil)
	setFalse := tc.createBook(func(b *models.Book) { b.Draft = pointerutil.Bool(false) })
	setTrue := tc.createBook(func(b *models.Book) { b.Draft = pointerutil.Bool(true) })

	job, err := tc.runJob(models.JobTypeDefaultBackfill, backfillData("draft", "false"))
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, "Completed successfully. Set draft on 1 books.", *job.Message)

	book := tc.retrieveBook(unset.ID)
	require.NotNil(t, book.Draft)
	assert.False(t, *book.Draft)
	assert.Equal(t, provenance.DefaultBackfill, book.UpdateSource)

	assert.Equal(t, setFalse.UpdatedAt.Unix(), tc.retrieveBook(setFalse.ID).UpdatedAt.Unix())
	assert.True(t, *tc.retrieveBook(setTrue.ID).Draft)

	// Re-runs find nothing left to fill.
	job, err = tc.runJob(models.JobTypeDefaultBackfill, backfillData("draft", "false"))
	require.NoError(t, err)
	assert.Equal(t, "Completed successfully. Set draft on 0 books.", *job.Message)
}

func TestProcessDefaultBackfillJob_Stats(t *testing.T) {
	tc := newTestContext(t)
	book := tc.createBook(nil)

	_, err := tc.runJob(models.JobTypeDefaultBackfill, backfillData("stats_mean_pages_read", "0"))
	require.NoError(t, err)

	stored := tc.retrieveBook(book.ID)
	require.NotNil(t, stored.StatsMeanPagesRead)
	assert.Zero(t, *stored.StatsMeanPagesRead)
	assert.Nil(t, stored.StatsStartedCount)
}

func TestProcessDefaultBackfillJob_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		data *models.JobDefaultBackfillData
	}{
		{"unknown field", backfillData("title", `"x"`)},
		{"wrong type", backfillData("draft", `"yes"`)},
		{"missing value", &models.JobDefaultBackfillData{Field: "draft"}},
		{"null value", backfillData("rebrand", "null")},
		{"missing field", backfillData("", "false")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := newTestContext(t)
			book := tc.createBook(nil)

			job, err := tc.runJob(models.JobTypeDefaultBackfill, tt.data)
			require.Error(t, err)
			assert.Equal(t, models.JobStatusFailed, job.Status)
			assert.Nil(t, tc.retrieveBook(book.ID).Draft)
		})
	}
}
