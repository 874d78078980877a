package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"extraction-api/internal/apperror"
	domain "extraction-api/internal/job"
)

const jobColumns = `id, name, status, config, record_count, error_message,
	created_at, updated_at, start_time, end_time`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, j *domain.Job) error {
	const query = `INSERT INTO jobs (id, name, status, config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	cfg := []byte("{}")
	if j.Config != nil {
		var err error
		cfg, err = json.Marshal(j.Config)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
	}

	now := now()
	_, err := r.db.ExecContext(ctx, query,
		j.ID, j.Name, string(j.Status), string(cfg),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	j.CreatedAt = now
	j.UpdatedAt = now
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*domain.Job, error) {
	const query = `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`

	j, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperror.New(apperror.NotFound, "job not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (r *Repository) List(ctx context.Context, status domain.Status, page, perPage int) ([]domain.Job, int64, error) {
	where := ""
	var args []any
	if status != "" {
		where = " WHERE status = ?"
		args = append(args, string(status))
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	query := `SELECT ` + jobColumns + ` FROM jobs` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, total, rows.Err()
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.New(apperror.NotFound, "job not found")
	}
	return nil
}

func (r *Repository) Statistics(ctx context.Context) (*domain.Statistics, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := &domain.Statistics{JobsByStatus: make(map[domain.Status]int64)}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.JobsByStatus[domain.Status(status)] = count
		stats.TotalJobs += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stats.PendingJobs = stats.JobsByStatus[domain.StatusPending]
	stats.InProgressJobs = stats.JobsByStatus[domain.StatusInProgress]
	stats.CompletedJobs = stats.JobsByStatus[domain.StatusCompleted]
	stats.FailedJobs = stats.JobsByStatus[domain.StatusFailed]
	stats.CancelledJobs = stats.JobsByStatus[domain.StatusCancelled]

	const avgQuery = `SELECT AVG((julianday(end_time) - julianday(start_time)) * 86400.0)
		FROM jobs
		WHERE status = 'completed' AND start_time IS NOT NULL AND end_time IS NOT NULL`

	var avg sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, avgQuery).Scan(&avg); err != nil {
		return nil, fmt.Errorf("average processing time: %w", err)
	}
	if avg.Valid {
		stats.AverageProcessingTime = &avg.Float64
	}
	return stats, nil
}

// Start moves a pending job to in_progress and stamps start_time. The guard
// on the current status makes the transition a compare-and-set: a job in any
// other state is left untouched and a conflict is returned.
func (r *Repository) Start(ctx context.Context, id string) error {
	const query = `UPDATE jobs SET status = 'in_progress', start_time = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`

	ts := now().Format(time.RFC3339)
	res, err := r.db.ExecContext(ctx, query, ts, ts, id)
	if err != nil {
		return fmt.Errorf("start job: %w", err)
	}
	return r.transitionOutcome(ctx, res, id, "start")
}

func (r *Repository) Complete(ctx context.Context, id string, recordCount int64) error {
	const query = `UPDATE jobs SET status = 'completed', record_count = ?, end_time = ?, updated_at = ?
		WHERE id = ? AND status = 'in_progress'`

	ts := now().Format(time.RFC3339)
	res, err := r.db.ExecContext(ctx, query, recordCount, ts, ts, id)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return r.transitionOutcome(ctx, res, id, "complete")
}

func (r *Repository) Fail(ctx context.Context, id, message string) error {
	const query = `UPDATE jobs SET status = 'failed', error_message = ?, end_time = ?, updated_at = ?
		WHERE id = ? AND status IN ('pending', 'in_progress')`

	ts := now().Format(time.RFC3339)
	res, err := r.db.ExecContext(ctx, query, message, ts, ts, id)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return r.transitionOutcome(ctx, res, id, "fail")
}

// Cancel returns false without error when the job is already terminal; the
// row is left exactly as it was, updated_at included.
func (r *Repository) Cancel(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE jobs SET status = 'cancelled', end_time = ?, updated_at = ?
		WHERE id = ? AND status IN ('pending', 'in_progress')`

	ts := now().Format(time.RFC3339)
	res, err := r.db.ExecContext(ctx, query, ts, ts, id)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}

	if _, err := r.Get(ctx, id); err != nil {
		return false, err // not found
	}
	return false, nil
}

func (r *Repository) ClaimPending(ctx context.Context) (*domain.Job, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("claim pending: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM jobs WHERE status = 'pending' ORDER BY created_at ASC, id ASC LIMIT 1`,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim pending: select: %w", err)
	}

	ts := now().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx,
		`UPDATE jobs SET status = 'in_progress', start_time = ?, updated_at = ? WHERE id = ?`,
		ts, ts, id,
	)
	if err != nil {
		return nil, fmt.Errorf("claim pending: update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("claim pending: commit: %w", err)
	}

	return r.Get(ctx, id)
}

// FailInterrupted marks jobs left in_progress by a previous run as failed.
// Their in-memory credentials died with the process, so they can never finish.
func (r *Repository) FailInterrupted(ctx context.Context) (int64, error) {
	const query = `UPDATE jobs SET status = 'failed',
		error_message = 'extraction interrupted by service restart',
		end_time = ?, updated_at = ?
		WHERE status = 'in_progress'`

	ts := now().Format(time.RFC3339)
	res, err := r.db.ExecContext(ctx, query, ts, ts)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}

// transitionOutcome distinguishes a failed compare-and-set (conflict) from a
// missing row (not found) after an UPDATE matched nothing.
func (r *Repository) transitionOutcome(ctx context.Context, res sql.Result, id, op string) error {
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	j, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	return apperror.New(apperror.Conflict, fmt.Sprintf("cannot %s job in status %q", op, j.Status))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	j := &domain.Job{}
	var status, configStr, createdStr, updatedStr string
	var errMsg, startStr, endStr sql.NullString

	err := row.Scan(
		&j.ID, &j.Name, &status, &configStr, &j.RecordCount, &errMsg,
		&createdStr, &updatedStr, &startStr, &endStr,
	)
	if err != nil {
		return nil, err
	}

	j.Status = domain.Status(status)
	if errMsg.Valid {
		j.ErrorMessage = errMsg.String
	}
	if err := json.Unmarshal([]byte(configStr), &j.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedStr)
	if startStr.Valid {
		t, _ := time.Parse(time.RFC3339, startStr.String)
		j.StartTime = &t
	}
	if endStr.Valid {
		t, _ := time.Parse(time.RFC3339, endStr.String)
		j.EndTime = &t
	}
	return j, nil
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
