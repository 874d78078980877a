package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"extraction-api/internal/apperror"
	"extraction-api/internal/job"
	"extraction-api/internal/metrics"
	"extraction-api/internal/source"
)

// Service orchestrates extraction jobs: it accepts scan requests, hands the
// pending job to the worker pool, and runs the fetch-store-complete sequence
// as job.Processor. It also owns cancellation of in-flight extractions.
type Service struct {
	jobRepo job.Repository
	results ResultRepository
	fetcher *Fetcher
	metrics *metrics.Metrics
	notify  func() // optional: wake worker pool

	mu      sync.Mutex
	tokens  map[string]string             // job id -> full API token, never persisted
	cancels map[string]context.CancelFunc // job id -> abort for the running fetch
}

func NewService(jobRepo job.Repository, results ResultRepository, fetcher *Fetcher, m *metrics.Metrics) *Service {
	return &Service{
		jobRepo: jobRepo,
		results: results,
		fetcher: fetcher,
		metrics: m,
		tokens:  make(map[string]string),
		cancels: make(map[string]context.CancelFunc),
	}
}

// SetNotify sets a callback invoked when a new pending job is created.
func (s *Service) SetNotify(fn func()) { s.notify = fn }

// StartScan creates a pending job and returns immediately; a pool worker
// picks it up. Only a masked token fragment is stored in the job config, the
// full credential stays in memory until the job runs.
func (s *Service) StartScan(ctx context.Context, req StartScanRequest) (*job.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	name := req.Name
	if name == "" {
		name = "Extraction_" + time.Now().Format("20060102_150405")
	}

	j := &job.Job{
		ID:     uuid.NewString(),
		Name:   name,
		Status: job.StatusPending,
		Config: map[string]any{
			"record_type": req.RecordType,
			"api_token":   maskToken(req.APIToken),
		},
	}
	// The credential has to be in the vault before the job row is visible;
	// a worker woken by the poll ticker may claim the job the moment the
	// insert commits.
	s.mu.Lock()
	s.tokens[j.ID] = req.APIToken
	s.mu.Unlock()

	if err := s.jobRepo.Create(ctx, j); err != nil {
		s.dropToken(j.ID)
		return nil, fmt.Errorf("create job: %w", err)
	}

	s.metrics.JobAccepted()
	slog.Info("scan accepted", "job", j.ID, "name", j.Name, "record_type", req.RecordType)

	if s.notify != nil {
		s.notify()
	}
	return j, nil
}

// Results returns one page of a completed job's records. Jobs that are not
// completed yet answer with a conflict.
func (s *Service) Results(ctx context.Context, req ResultsRequest) ([]Result, int64, error) {
	if err := req.Validate(); err != nil {
		return nil, 0, err
	}

	j, err := s.jobRepo.Get(ctx, req.JobID)
	if err != nil {
		return nil, 0, err
	}
	if j.Status != job.StatusCompleted {
		return nil, 0, apperror.New(apperror.Conflict,
			fmt.Sprintf("job is not completed: results are only available for completed jobs (status: %s)", j.Status))
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	perPage := req.PerPage
	if perPage < 1 || perPage > 1000 {
		perPage = 100
	}
	return s.results.ListByJob(ctx, req.JobID, page, perPage)
}

// CancelScan flips the job to cancelled and signals a running extraction to
// stop at its next page boundary. Terminal jobs answer with a conflict and
// stay untouched.
func (s *Service) CancelScan(ctx context.Context, id string) error {
	if id == "" {
		return apperror.New(apperror.BadRequest, "invalid job id")
	}

	j, err := s.jobRepo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !j.CanCancel() {
		return apperror.New(apperror.Conflict,
			fmt.Sprintf("job with status %q cannot be cancelled, only pending or in_progress jobs can", j.Status))
	}

	ok, err := s.jobRepo.Cancel(ctx, id)
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	if !ok {
		// Lost the race against a terminal transition.
		return apperror.New(apperror.Conflict, "job already finished")
	}

	s.abort(id)
	s.dropToken(id)
	s.metrics.JobCancelled()
	slog.Info("scan cancelled", "job", id)
	return nil
}

// Process implements job.Processor. The job is already in_progress (claimed
// by the pool). Every failure path ends in the failed status with a
// human-readable message; a cancelled job's outcome is discarded.
func (s *Service) Process(ctx context.Context, j *job.Job) (err error) {
	start := time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancels[j.ID] = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		delete(s.cancels, j.ID)
		s.mu.Unlock()
		s.dropToken(j.ID)

		if r := recover(); r != nil {
			slog.Error("panic during extraction", "job", j.ID, "panic", r)
			s.failJob(context.WithoutCancel(ctx), j.ID, fmt.Sprintf("unexpected error: %v", r))
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	token, ok := s.takeToken(j.ID)
	if !ok {
		return s.failJob(ctx, j.ID, "missing credentials: job was interrupted before it could run")
	}
	recordType, _ := j.Config["record_type"].(string)
	if recordType == "" {
		recordType = source.RecordTypeContacts
	}

	slog.Info("extraction started", "job", j.ID, "record_type", recordType)

	records, err := s.fetcher.FetchAll(runCtx, token, recordType)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// CancelScan already wrote the terminal status.
			slog.Info("extraction aborted", "job", j.ID)
			return nil
		}
		return s.failJob(ctx, j.ID, err.Error())
	}

	count, err := s.results.SaveAll(ctx, j.ID, records)
	if err != nil {
		return s.failJob(ctx, j.ID, fmt.Sprintf("error storing results: %v", err))
	}

	if err := s.jobRepo.Complete(ctx, j.ID, count); err != nil {
		// Most likely cancelled while we were storing; the terminal status
		// wins and this run's outcome is dropped, stored rows included.
		slog.Warn("discarding extraction outcome", "job", j.ID, "records", count, "error", err)
		if derr := s.results.DeleteByJob(ctx, j.ID); derr != nil {
			slog.Error("failed to remove discarded results", "job", j.ID, "error", derr)
		}
		return nil
	}

	s.metrics.JobCompleted(time.Since(start), count)
	slog.Info("extraction completed", "job", j.ID, "records", count, "duration", time.Since(start).String())
	return nil
}

func (s *Service) failJob(ctx context.Context, id, message string) error {
	if err := s.jobRepo.Fail(ctx, id, message); err != nil {
		slog.Warn("discarding extraction failure", "job", id, "message", message, "error", err)
		return nil
	}
	s.metrics.JobFailed()
	slog.Error("extraction failed", "job", id, "error", message)
	return errors.New(message)
}

func (s *Service) abort(id string) {
	s.mu.Lock()
	cancel := s.cancels[id]
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Service) takeToken(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[id]
	return token, ok
}

func (s *Service) dropToken(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, id)
}

func maskToken(token string) string {
	if len(token) <= 10 {
		return token[:min(len(token), 3)] + "..."
	}
	return token[:10] + "..."
}
