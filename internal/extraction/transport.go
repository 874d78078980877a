package extraction

import (
	"strings"

	"extraction-api/internal/apperror"
	"extraction-api/internal/source"
)

type StartScanRequest struct {
	APIToken   string `json:"api_token"`
	RecordType string `json:"record_type"`
	Name       string `json:"name"`
}

func (r *StartScanRequest) Validate() *apperror.AppError {
	if strings.TrimSpace(r.APIToken) == "" {
		return apperror.New(apperror.BadRequest, "api_token is required and cannot be empty")
	}
	if r.RecordType == "" {
		r.RecordType = source.RecordTypeContacts
	}
	if !source.ValidRecordType(r.RecordType) {
		return apperror.New(apperror.BadRequest, "invalid record_type: "+r.RecordType)
	}
	return nil
}

type ResultsRequest struct {
	JobID   string
	Page    int
	PerPage int
}

func (r ResultsRequest) Validate() *apperror.AppError {
	if r.JobID == "" {
		return apperror.New(apperror.BadRequest, "invalid job id")
	}
	if r.Page < 0 || r.PerPage < 0 {
		return apperror.New(apperror.BadRequest, "page and per_page must be positive")
	}
	return nil
}
