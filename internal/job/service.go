package job

import (
	"context"
	"log/slog"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// FailInterruptedJobs marks jobs stranded in_progress by an earlier run as
// failed so they do not sit in a non-terminal state forever.
func (s *Service) FailInterruptedJobs(ctx context.Context) error {
	n, err := s.repo.FailInterrupted(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("failed interrupted jobs from previous run", "count", n)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, req GetJobRequest) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, req.ID)
}

func (s *Service) List(ctx context.Context, req ListJobsRequest) ([]Job, int64, error) {
	if err := req.Validate(); err != nil {
		return nil, 0, err
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	perPage := req.PerPage
	if perPage < 1 || perPage > 1000 {
		perPage = 100
	}
	return s.repo.List(ctx, Status(req.Status), page, perPage)
}

func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	return s.repo.Statistics(ctx)
}

// Remove deletes a job; its results go with it via cascade.
func (s *Service) Remove(ctx context.Context, req GetJobRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, req.ID); err != nil {
		return err
	}
	slog.Info("job removed", "job", req.ID)
	return nil
}
