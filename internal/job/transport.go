package job

import "extraction-api/internal/apperror"

type GetJobRequest struct {
	ID string
}

func (r GetJobRequest) Validate() *apperror.AppError {
	if r.ID == "" {
		return apperror.New(apperror.BadRequest, "invalid job id")
	}
	return nil
}

type ListJobsRequest struct {
	Status  string
	Page    int
	PerPage int
}

func (r ListJobsRequest) Validate() *apperror.AppError {
	if r.Status != "" && !Status(r.Status).Valid() {
		return apperror.New(apperror.BadRequest, "invalid status filter: "+r.Status)
	}
	if r.Page < 0 || r.PerPage < 0 {
		return apperror.New(apperror.BadRequest, "page and per_page must be positive")
	}
	return nil
}
