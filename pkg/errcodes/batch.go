package errcodes

import (
	"fmt"
	"strings"
)

// ItemFailure describes one record that a bulk operation could not apply.
type ItemFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// BulkError is returned when a bulk operation partially failed. Items that
// are not listed were applied and stay applied.
type BulkError struct {
	Op       string
	Total    int
	Failures []ItemFailure
}

func (err *BulkError) Error() string {
	return fmt.Sprintf("%s: %d of %d items failed", err.Op, len(err.Failures), err.Total)
}

// Add records a failed item.
func (err *BulkError) Add(id string, cause error) {
	err.Failures = append(err.Failures, ItemFailure{ID: id, Reason: cause.Error()})
}

// OrNil returns the error only when at least one item failed.
func (err *BulkError) OrNil() error {
	if err == nil || len(err.Failures) == 0 {
		return nil
	}
	return err
}

// JobFailure marks a maintenance job as terminally failed. The job stops and
// nothing it already applied is undone.
type JobFailure struct {
	Job     string
	Message string
	Cause   error
}

func (err *JobFailure) Error() string {
	if err.Cause != nil {
		return fmt.Sprintf("%s - %s: %v", err.Job, err.Message, err.Cause)
	}
	return fmt.Sprintf("%s - %s", err.Job, err.Message)
}

func (err *JobFailure) Unwrap() error {
	return err.Cause
}

// JobFailed builds a JobFailure.
func JobFailed(job, msg string, cause error) error {
	return &JobFailure{Job: job, Message: msg, Cause: cause}
}

// ParseError reports malformed upstream data on a single record. Batches log
// it and move on to the next record.
type ParseError struct {
	RecordID string
	Field    string
	Cause    error
}

func (err *ParseError) Error() string {
	return fmt.Sprintf("unable to parse %s on %s: %v", err.Field, err.RecordID, err.Cause)
}

func (err *ParseError) Unwrap() error {
	return err.Cause
}

// FailureIDs joins the ids of the failed items, mostly for log lines.
func (err *BulkError) FailureIDs() string {
	ids := make([]string, 0, len(err.Failures))
	for _, f := range err.Failures {
		ids = append(ids, f.ID)
	}
	return strings.Join(ids, ",")
}
