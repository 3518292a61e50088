package jobs

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/openbookcatalog/catalog/pkg/migrations"
	"github.com/openbookcatalog/catalog/pkg/models"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestHasActiveJobByType(t *testing.T) {
	tests := []struct {
		name     string
		jobType  string
		status   string
		lookup   string
		expected bool
	}{
		{"pending", models.JobTypeTagPrune, models.JobStatusPending, models.JobTypeTagPrune, true},
		{"in progress", models.JobTypeTagPrune, models.JobStatusInProgress, models.JobTypeTagPrune, true},
		{"completed", models.JobTypeTagPrune, models.JobStatusCompleted, models.JobTypeTagPrune, false},
		{"failed", models.JobTypeTagPrune, models.JobStatusFailed, models.JobTypeTagPrune, false},
		{"different type", models.JobTypeLanguageUsage, models.JobStatusPending, models.JobTypeTagPrune, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			svc := NewService(db)
			ctx := context.Background()

			err := svc.CreateJob(ctx, &models.Job{Type: tt.jobType, Status: tt.status})
			require.NoError(t, err)

			hasActive, err := svc.HasActiveJobByType(ctx, tt.lookup)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, hasActive)
		})
	}
}

func TestCreateJob_RoundTripsData(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	job := &models.Job{
		Type:       models.JobTypeArtifactLangTags,
		Status:     models.JobStatusPending,
		DataParsed: &models.JobArtifactLangTagsData{DryRun: true},
	}
	require.NoError(t, svc.CreateJob(ctx, job))

	retrieved, err := svc.RetrieveJob(ctx, RetrieveJobOptions{ID: &job.ID})
	require.NoError(t, err)
	data, ok := retrieved.DataParsed.(*models.JobArtifactLangTagsData)
	require.True(t, ok)
	assert.True(t, data.DryRun)

	backfill := &models.Job{
		Type:   models.JobTypeDefaultBackfill,
		Status: models.JobStatusPending,
		Data:   `{"field":"draft","value":false}`,
	}
	require.NoError(t, svc.CreateJob(ctx, backfill))
	retrieved, err = svc.RetrieveJob(ctx, RetrieveJobOptions{ID: &backfill.ID})
	require.NoError(t, err)
	bf, ok := retrieved.DataParsed.(*models.JobDefaultBackfillData)
	require.True(t, ok)
	assert.Equal(t, "draft", bf.Field)
	assert.JSONEq(t, "false", string(bf.Value))
}

func TestListJobs_Filters(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	for _, job := range []*models.Job{
		{Type: models.JobTypeTagPrune, Status: models.JobStatusCompleted},
		{Type: models.JobTypeTagPrune, Status: models.JobStatusPending},
		{Type: models.JobTypeAnalyticsSync, Status: models.JobStatusPending},
	} {
		require.NoError(t, svc.CreateJob(ctx, job))
	}

	pending, total, err := svc.ListJobsWithTotal(ctx, ListJobsOptions{Statuses: []string{models.JobStatusPending}})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, pending, 2)

	prune, err := svc.ListJobs(ctx, ListJobsOptions{Type: pointerutil.String(models.JobTypeTagPrune)})
	require.NoError(t, err)
	assert.Len(t, prune, 2)

	first, err := svc.ListJobs(ctx, ListJobsOptions{Limit: pointerutil.Int(1)})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, models.JobStatusCompleted, first[0].Status)
}

func TestClaimJob(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	job := &models.Job{Type: models.JobTypeResaveBooks, Status: models.JobStatusPending}
	require.NoError(t, svc.CreateJob(ctx, job))

	fresh := time.Now().Add(-time.Hour)
	stale := time.Now().Add(time.Minute)

	claimed, err := svc.ClaimJob(ctx, job, "proc-a", fresh)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, models.JobStatusInProgress, job.Status)

	// The same process can't claim it twice.
	again := &models.Job{ID: job.ID}
	claimed, err = svc.ClaimJob(ctx, again, "proc-a", stale)
	require.NoError(t, err)
	assert.False(t, claimed)

	// A job another process is still working on is left alone.
	claimed, err = svc.ClaimJob(ctx, again, "proc-b", fresh)
	require.NoError(t, err)
	assert.False(t, claimed)

	// Once it goes stale another process takes it over.
	claimed, err = svc.ClaimJob(ctx, again, "proc-b", stale)
	require.NoError(t, err)
	assert.True(t, claimed)

	job.Status = models.JobStatusCompleted
	require.NoError(t, svc.UpdateJob(ctx, job, UpdateJobOptions{Columns: []string{"status"}}))
	claimed, err = svc.ClaimJob(ctx, job, "proc-c", stale)
	require.NoError(t, err)
	assert.False(t, claimed)

	excluded, err := svc.ListJobs(ctx, ListJobsOptions{
		Statuses:           []string{models.JobStatusPending, models.JobStatusInProgress},
		ProcessIDToExclude: pointerutil.String("proc-b"),
	})
	require.NoError(t, err)
	assert.Empty(t, excluded)

	pending := &models.Job{Type: models.JobTypeTagPrune, Status: models.JobStatusPending}
	require.NoError(t, svc.CreateJob(ctx, pending))
	busy := &models.Job{Type: models.JobTypeLanguageUsage, Status: models.JobStatusPending}
	require.NoError(t, svc.CreateJob(ctx, busy))
	claimed, err = svc.ClaimJob(ctx, busy, "proc-d", fresh)
	require.NoError(t, err)
	require.True(t, claimed)

	claimable, err := svc.ListJobs(ctx, ListJobsOptions{ClaimableBefore: &fresh})
	require.NoError(t, err)
	require.Len(t, claimable, 1)
	assert.Equal(t, pending.ID, claimable[0].ID)
}
