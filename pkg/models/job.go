package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

const (
	JobStatusPending    = "pending"
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

const (
	JobTypeLanguageUsage    = "language_usage"
	JobTypeTagPrune         = "tag_prune"
	JobTypeDefaultBackfill  = "default_backfill"
	JobTypeAnalyticsSync    = "analytics_sync"
	JobTypeResaveBooks      = "resave_books"
	JobTypeArtifactLangTags = "artifact_lang_tags"
	JobTypeAssignTag        = "assign_tag"
)

type Job struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID         int         `bun:",pk,nullzero" json:"id"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	Type       string      `bun:",nullzero" json:"type"`
	Status     string      `bun:",nullzero" json:"status"`
	Data       string      `bun:",nullzero" json:"-"`
	DataParsed interface{} `bun:"-" json:"data"`
	Progress   int         `json:"progress"`
	ProcessID  *string     `json:"process_id,omitempty"`
	Message    *string     `json:"message,omitempty"`
}

func (job *Job) UnmarshalData() error {
	switch job.Type {
	case JobTypeDefaultBackfill:
		job.DataParsed = &JobDefaultBackfillData{}
	case JobTypeArtifactLangTags:
		job.DataParsed = &JobArtifactLangTagsData{}
	case JobTypeAssignTag:
		job.DataParsed = &JobAssignTagData{}
	default:
		job.DataParsed = &JobEmptyData{}
	}

	if job.Data == "" {
		return nil
	}

	err := json.Unmarshal([]byte(job.Data), job.DataParsed)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

type JobEmptyData struct{}

// JobDefaultBackfillData names the field to backfill and the JSON encoded
// default to put into it.
type JobDefaultBackfillData struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

type JobArtifactLangTagsData struct {
	DryRun bool `json:"dry_run"`
}

// JobAssignTagData adds Tag to every book matching the filter. An empty
// filter matches the whole catalog.
type JobAssignTagData struct {
	Tag    string        `json:"tag"`
	Filter JobBookFilter `json:"filter"`
	DryRun bool          `json:"dry_run"`
}

type JobBookFilter struct {
	Tag    *string `json:"tag,omitempty"`
	Search *string `json:"search,omitempty"`
}
