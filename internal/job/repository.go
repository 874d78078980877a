package job

import "context"

// Repository persists jobs. Every transition method applies its status change
// as a single atomic compare-and-set against storage and returns a conflict
// error (Cancel: false) when the job is not in a state the transition is
// valid from, leaving the row untouched.
type Repository interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context, status Status, page, perPage int) ([]Job, int64, error)
	Delete(ctx context.Context, id string) error
	Statistics(ctx context.Context) (*Statistics, error)

	// Lifecycle transitions.
	Start(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, recordCount int64) error
	Fail(ctx context.Context, id, message string) error
	Cancel(ctx context.Context, id string) (bool, error)

	// ClaimPending atomically moves the oldest pending job to in_progress
	// (the Start transition) and returns it; nil when nothing is pending.
	ClaimPending(ctx context.Context) (*Job, error)

	// FailInterrupted fails jobs left in_progress by a previous process,
	// returning how many were affected.
	FailInterrupted(ctx context.Context) (int64, error)
}
