package result

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"extraction-api/internal/extraction"
	"extraction-api/internal/source"
)

// insertBatchSize bounds how many rows go into a single INSERT statement.
const insertBatchSize = 500

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// SaveAll writes every record in one transaction, chunked into multi-row
// INSERTs. The transaction makes the batch atomic for the job: a failure
// rolls all rows back.
func (r *Repository) SaveAll(ctx context.Context, jobID string, records []source.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("save results: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createdAt := time.Now().UTC().Format(time.RFC3339)

	for start := 0; start < len(records); start += insertBatchSize {
		end := min(start+insertBatchSize, len(records))
		batch := records[start:end]

		placeholders := make([]string, 0, len(batch))
		args := make([]any, 0, len(batch)*4)
		for _, rec := range batch {
			data, err := json.Marshal(rec)
			if err != nil {
				return 0, fmt.Errorf("marshal record: %w", err)
			}
			placeholders = append(placeholders, "(?, ?, ?, ?)")
			args = append(args, uuid.NewString(), jobID, string(data), createdAt)
		}

		query := `INSERT INTO results (id, job_id, data, created_at) VALUES ` +
			strings.Join(placeholders, ", ")
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("insert results: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("save results: commit: %w", err)
	}
	return int64(len(records)), nil
}

// DeleteByJob removes every stored result for the job.
func (r *Repository) DeleteByJob(ctx context.Context, jobID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM results WHERE job_id = ?`, jobID); err != nil {
		return fmt.Errorf("delete results: %w", err)
	}
	return nil
}

// ListByJob returns one page of a job's results in insertion order plus the
// total count.
func (r *Repository) ListByJob(ctx context.Context, jobID string, page, perPage int) ([]extraction.Result, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM results WHERE job_id = ?`, jobID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count results: %w", err)
	}

	const query = `SELECT id, job_id, data, created_at FROM results
		WHERE job_id = ?
		ORDER BY created_at ASC, rowid ASC
		LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, jobID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []extraction.Result
	for rows.Next() {
		var res extraction.Result
		var dataStr, createdStr string
		if err := rows.Scan(&res.ID, &res.JobID, &dataStr, &createdStr); err != nil {
			return nil, 0, fmt.Errorf("scan result: %w", err)
		}
		if err := json.Unmarshal([]byte(dataStr), &res.Data); err != nil {
			return nil, 0, fmt.Errorf("unmarshal result data: %w", err)
		}
		res.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
		results = append(results, res)
	}
	return results, total, rows.Err()
}
