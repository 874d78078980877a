package job

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is a known job status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s is absorbing: once reached, no further
// transition is permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Job is one extraction request and its lifecycle state.
//
// Lifecycle: pending -> in_progress -> completed | failed | cancelled, with
// failure and cancellation also allowed straight from pending. StartTime is
// set exactly once on entering in_progress, EndTime exactly once on entering
// a terminal status. RecordCount is only ever set by completion and
// ErrorMessage only by failure.
type Job struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Status       Status         `json:"status"`
	Config       map[string]any `json:"config"`
	RecordCount  int64          `json:"record_count"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	StartTime    *time.Time     `json:"start_time"`
	EndTime      *time.Time     `json:"end_time"`
}

// CanCancel reports whether the job is still cancellable.
func (j *Job) CanCancel() bool {
	return j.Status == StatusPending || j.Status == StatusInProgress
}

// Statistics aggregates job counts per status plus the average processing
// time (end - start, seconds) over completed jobs. AverageProcessingTime is
// nil when no job has completed yet.
type Statistics struct {
	TotalJobs             int64            `json:"total_jobs"`
	PendingJobs           int64            `json:"pending_jobs"`
	InProgressJobs        int64            `json:"in_progress_jobs"`
	CompletedJobs         int64            `json:"completed_jobs"`
	FailedJobs            int64            `json:"failed_jobs"`
	CancelledJobs         int64            `json:"cancelled_jobs"`
	JobsByStatus          map[Status]int64 `json:"jobs_by_status"`
	AverageProcessingTime *float64         `json:"average_processing_time"`
}
