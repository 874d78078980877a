package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"extraction-api/internal/extraction"
	"extraction-api/internal/job"
)

const serviceVersion = "1.0.0"

type handler struct {
	scanSvc *extraction.Service
	jobSvc  *job.Service
	db      Pinger
}

func (h *handler) startScan(w http.ResponseWriter, r *http.Request) {
	var req extraction.StartScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", "invalid JSON body")
		return
	}

	j, err := h.scanSvc.StartScan(r.Context(), req)
	if err != nil {
		writeSvcError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  j.ID,
		"message": "extraction job started",
	})
}

type jobStatusResponse struct {
	ID           string     `json:"id"`
	Status       job.Status `json:"status"`
	RecordCount  int64      `json:"record_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	StartTime    *time.Time `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

func (h *handler) jobStatus(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobSvc.Get(r.Context(), job.GetJobRequest{ID: r.PathValue("id")})
	if err != nil {
		writeSvcError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, jobStatusResponse{
		ID:           j.ID,
		Status:       j.Status,
		RecordCount:  j.RecordCount,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		StartTime:    j.StartTime,
		EndTime:      j.EndTime,
		ErrorMessage: j.ErrorMessage,
	})
}

type resultItem struct {
	ID            string         `json:"id"`
	Data          map[string]any `json:"data"`
	CreatedAt     time.Time      `json:"created_at"`
	IDFromService any            `json:"id_from_service"`
	Email         any            `json:"email"`
	FirstName     any            `json:"first_name"`
	LastName      any            `json:"last_name"`
}

func (h *handler) jobResult(w http.ResponseWriter, r *http.Request) {
	req := extraction.ResultsRequest{
		JobID:   r.PathValue("id"),
		Page:    queryInt(r, "page", 1),
		PerPage: queryInt(r, "per_page", 100),
	}

	results, total, err := h.scanSvc.Results(r.Context(), req)
	if err != nil {
		writeSvcError(w, err)
		return
	}

	items := make([]resultItem, len(results))
	for i, res := range results {
		items[i] = resultItem{
			ID:            res.ID,
			Data:          res.Data,
			CreatedAt:     res.CreatedAt,
			IDFromService: res.Data["id_from_service"],
			Email:         res.Data["email"],
			FirstName:     res.Data["first_name"],
			LastName:      res.Data["last_name"],
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":    total,
		"page":     req.Page,
		"per_page": req.PerPage,
		"results":  items,
	})
}

func (h *handler) cancelScan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.scanSvc.CancelScan(r.Context(), id); err != nil {
		writeSvcError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("job %s has been cancelled", id),
	})
}

func (h *handler) removeJob(w http.ResponseWriter, r *http.Request) {
	if err := h.jobSvc.Remove(r.Context(), job.GetJobRequest{ID: r.PathValue("id")}); err != nil {
		writeSvcError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type jobListItem struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Status      job.Status `json:"status"`
	RecordCount int64      `json:"record_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (h *handler) listJobs(w http.ResponseWriter, r *http.Request) {
	req := job.ListJobsRequest{
		Status:  r.URL.Query().Get("status"),
		Page:    queryInt(r, "page", 1),
		PerPage: queryInt(r, "per_page", 100),
	}

	jobs, total, err := h.jobSvc.List(r.Context(), req)
	if err != nil {
		writeSvcError(w, err)
		return
	}

	items := make([]jobListItem, len(jobs))
	for i, j := range jobs {
		items[i] = jobListItem{
			ID:          j.ID,
			Name:        j.Name,
			Status:      j.Status,
			RecordCount: j.RecordCount,
			CreatedAt:   j.CreatedAt,
			UpdatedAt:   j.UpdatedAt,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":    total,
		"page":     req.Page,
		"per_page": req.PerPage,
		"jobs":     items,
	})
}

func (h *handler) jobStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.jobSvc.Statistics(r.Context())
	if err != nil {
		writeSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "Data Extraction Service",
		"version":   serviceVersion,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		resp["status"] = "unhealthy"
		resp["checks"] = map[string]string{"database": "unhealthy: " + err.Error()}
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	resp["checks"] = map[string]string{"database": "healthy"}
	writeJSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
