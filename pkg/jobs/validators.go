package jobs

import "github.com/segmentio/encoding/json"

type CreateJobPayload struct {
	Type string          `json:"type" validate:"required,oneof=language_usage tag_prune default_backfill analytics_sync resave_books artifact_lang_tags assign_tag"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ListJobsQuery struct {
	Limit  int      `query:"limit" json:"limit,omitempty" default:"10" validate:"min=1,max=100"`
	Offset int      `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Status []string `query:"status" json:"status,omitempty" validate:"dive,oneof=pending in_progress completed failed"`
	Type   *string  `query:"type" json:"type,omitempty" validate:"omitempty,oneof=language_usage tag_prune default_backfill analytics_sync resave_books artifact_lang_tags assign_tag"`
}
