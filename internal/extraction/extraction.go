package extraction

import (
	"context"
	"time"

	"extraction-api/internal/source"
)

// Result is one persisted record produced by a job. Data carries the raw
// record exactly as the remote source returned it.
type Result struct {
	ID        string         `json:"id"`
	JobID     string         `json:"job_id"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}

// ResultRepository persists extracted records. SaveAll writes all records for
// a job as one atomic batch: afterwards either every record is visible or
// none is. DeleteByJob removes a job's records again, used when a stored
// batch loses the race against a cancellation.
type ResultRepository interface {
	SaveAll(ctx context.Context, jobID string, records []source.Record) (int64, error)
	ListByJob(ctx context.Context, jobID string, page, perPage int) ([]Result, int64, error)
	DeleteByJob(ctx context.Context, jobID string) error
}
