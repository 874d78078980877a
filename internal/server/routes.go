package server

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"extraction-api/internal/extraction"
	"extraction-api/internal/job"
)

// Pinger is the slice of the database the health check needs.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps carries everything the HTTP surface talks to.
type Deps struct {
	ScanSvc  *extraction.Service
	JobSvc   *job.Service
	DB       Pinger
	Gatherer prometheus.Gatherer
}

// NewHandler creates the full HTTP handler with routes and middleware.
// Exported for use in tests (e.g., httptest.NewServer).
func NewHandler(deps Deps) http.Handler {
	return newMux(deps)
}

func newMux(deps Deps) http.Handler {
	h := &handler{
		scanSvc: deps.ScanSvc,
		jobSvc:  deps.JobSvc,
		db:      deps.DB,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.health)
	mux.HandleFunc("POST /api/v1/scan/start", h.startScan)
	mux.HandleFunc("GET /api/v1/scan/status/{id}", h.jobStatus)
	mux.HandleFunc("GET /api/v1/scan/result/{id}", h.jobResult)
	mux.HandleFunc("POST /api/v1/scan/cancel/{id}", h.cancelScan)
	mux.HandleFunc("DELETE /api/v1/scan/remove/{id}", h.removeJob)
	mux.HandleFunc("GET /api/v1/jobs/jobs", h.listJobs)
	mux.HandleFunc("GET /api/v1/jobs/statistics", h.jobStatistics)

	if deps.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// Apply middleware stack: recovery -> requestID -> logging
	var handler http.Handler = mux
	handler = logging(handler)
	handler = requestID(handler)
	handler = recovery(handler)

	return handler
}
