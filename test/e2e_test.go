package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"extraction-api/internal/extraction"
	"extraction-api/internal/job"
	"extraction-api/internal/metrics"
	"extraction-api/internal/platform/sqlite"
	jobrepo "extraction-api/internal/repository/job"
	resultrepo "extraction-api/internal/repository/result"
	"extraction-api/internal/server"
	"extraction-api/internal/source/mockapi"
)

const validToken = "test_token_valid_12345"

type env struct {
	ts      *httptest.Server
	jobRepo *jobrepo.Repository
}

func setupE2E(t *testing.T, api *mockapi.API, fopts ...extraction.FetcherOption) *env {
	t.Helper()

	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	jobRepo := jobrepo.NewRepository(db.DB)
	resultRepo := resultrepo.NewRepository(db.DB)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	opts := append([]extraction.FetcherOption{extraction.WithPageDelay(time.Millisecond)}, fopts...)
	fetcher := extraction.NewFetcher(api, opts...)

	jobSvc := job.NewService(jobRepo)
	scanSvc := extraction.NewService(jobRepo, resultRepo, fetcher, m)

	// Start worker pool for background job processing
	poolCtx, poolCancel := context.WithCancel(context.Background())
	pool := job.NewWorkerPool(jobRepo, scanSvc, 2)
	scanSvc.SetNotify(pool.Notify)
	poolDone := make(chan struct{})
	go func() {
		pool.Run(poolCtx)
		close(poolDone)
	}()
	// Cleanup runs LIFO: cancel pool -> wait for drain -> then db.Close (registered earlier)
	t.Cleanup(func() {
		poolCancel()
		<-poolDone
	})

	ts := httptest.NewServer(server.NewHandler(server.Deps{
		ScanSvc:  scanSvc,
		JobSvc:   jobSvc,
		DB:       db.DB,
		Gatherer: registry,
	}))
	t.Cleanup(ts.Close)

	return &env{ts: ts, jobRepo: jobRepo}
}

func startScan(t *testing.T, baseURL, token string) string {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"api_token": token})
	resp, err := http.Post(baseURL+"/api/v1/scan/start", "application/json", bytes.NewReader(body)) //nolint:gosec // test URL
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var result struct {
		JobID   string `json:"job_id"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.JobID == "" {
		t.Fatal("expected job_id in response")
	}
	if result.Message != "extraction job started" {
		t.Errorf("unexpected message: %q", result.Message)
	}
	return result.JobID
}

type statusResponse struct {
	ID           string     `json:"id"`
	Status       job.Status `json:"status"`
	RecordCount  int64      `json:"record_count"`
	StartTime    *time.Time `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	ErrorMessage string     `json:"error_message"`
}

func getStatus(t *testing.T, baseURL, jobID string) (int, statusResponse) {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/scan/status/%s", baseURL, jobID)) //nolint:gosec // test URL
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var s statusResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode, s
}

// waitForJob polls the status endpoint until the job reaches a terminal state.
func waitForJob(t *testing.T, baseURL, jobID string) statusResponse {
	t.Helper()

	deadline := time.After(10 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for job %s to finish", jobID)
		default:
		}

		code, s := getStatus(t, baseURL, jobID)
		if code != http.StatusOK {
			t.Fatalf("status request returned %d", code)
		}
		if s.Status.Terminal() {
			return s
		}

		time.Sleep(25 * time.Millisecond)
	}
}

func TestE2E_Health(t *testing.T) {
	e := setupE2E(t, mockapi.New())

	resp, err := http.Get(e.ts.URL + "/api/v1/health") //nolint:gosec // test URL
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Status  string            `json:"status"`
		Service string            `json:"service"`
		Checks  map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" {
		t.Errorf("expected status ok, got %q", body.Status)
	}
	if body.Checks["database"] != "healthy" {
		t.Errorf("expected healthy database check, got %q", body.Checks["database"])
	}
}

func TestE2E_ExtractionFlow(t *testing.T) {
	e := setupE2E(t, mockapi.New(mockapi.WithSeed(1)))

	jobID := startScan(t, e.ts.URL, validToken)

	final := waitForJob(t, e.ts.URL, jobID)
	if final.Status != job.StatusCompleted {
		t.Fatalf("expected completed, got %s (error: %s)", final.Status, final.ErrorMessage)
	}
	// 3 pages of 100 records each
	if final.RecordCount != 300 {
		t.Errorf("expected 300 records, got %d", final.RecordCount)
	}
	if final.StartTime == nil || final.EndTime == nil {
		t.Error("expected start_time and end_time on a completed job")
	}

	// Results endpoint pages through the stored records.
	resp, err := http.Get(fmt.Sprintf("%s/api/v1/scan/result/%s?per_page=50", e.ts.URL, jobID)) //nolint:gosec // test URL
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var results struct {
		Count   int64 `json:"count"`
		Page    int   `json:"page"`
		PerPage int   `json:"per_page"`
		Results []struct {
			ID            string         `json:"id"`
			Data          map[string]any `json:"data"`
			IDFromService string         `json:"id_from_service"`
			Email         string         `json:"email"`
			FirstName     string         `json:"first_name"`
			LastName      string         `json:"last_name"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		t.Fatal(err)
	}
	if results.Count != 300 {
		t.Errorf("expected count 300, got %d", results.Count)
	}
	if len(results.Results) != 50 {
		t.Fatalf("expected 50 results on first page, got %d", len(results.Results))
	}
	first := results.Results[0]
	if first.IDFromService == "" || first.Email == "" || first.FirstName == "" || first.LastName == "" {
		t.Errorf("result missing promoted contact fields: %+v", first)
	}
}

func TestE2E_BlankTokenRejected(t *testing.T) {
	e := setupE2E(t, mockapi.New())

	body := []byte(`{"api_token": "   "}`)
	resp, err := http.Post(e.ts.URL+"/api/v1/scan/start", "application/json", bytes.NewReader(body)) //nolint:gosec // test URL
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatal(err)
	}
	if errResp.Error == "" {
		t.Error("expected error field in response")
	}
	if errResp.Message != "api_token is required and cannot be empty" {
		t.Errorf("unexpected message: %q", errResp.Message)
	}
}

func TestE2E_InvalidTokenFailsJob(t *testing.T) {
	e := setupE2E(t, mockapi.New())

	jobID := startScan(t, e.ts.URL, "definitely_not_valid")

	final := waitForJob(t, e.ts.URL, jobID)
	if final.Status != job.StatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.ErrorMessage == "" {
		t.Error("expected error_message on failed job")
	}
}

func TestE2E_ResultsConflictWhileRunning(t *testing.T) {
	e := setupE2E(t, mockapi.New())

	// Seed an in-progress job directly; the pool only claims pending ones.
	j := &job.Job{ID: uuid.NewString(), Name: "stuck", Status: job.StatusInProgress}
	if err := e.jobRepo.Create(context.Background(), j); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/scan/result/%s", e.ts.URL, j.ID)) //nolint:gosec // test URL
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatal(err)
	}
	if errResp.Error != "conflict" {
		t.Errorf("expected conflict error, got %q", errResp.Error)
	}
}

func TestE2E_CancelRunningJob(t *testing.T) {
	// Slow source so the job is still running when the cancel lands.
	api := mockapi.New(mockapi.WithTotalPages(100), mockapi.WithRequestDelay(20*time.Millisecond), mockapi.WithRateLimitThreshold(10000))
	e := setupE2E(t, api, extraction.WithMaxPages(100), extraction.WithPageDelay(20*time.Millisecond))

	jobID := startScan(t, e.ts.URL, validToken)

	// Wait until the pool picks the job up.
	deadline := time.After(5 * time.Second)
	for {
		_, s := getStatus(t, e.ts.URL, jobID)
		if s.Status == job.StatusInProgress {
			break
		}
		select {
		case <-deadline:
			t.Fatal("job never started")
		case <-time.After(10 * time.Millisecond):
		}
	}

	resp, err := http.Post(fmt.Sprintf("%s/api/v1/scan/cancel/%s", e.ts.URL, jobID), "application/json", nil) //nolint:gosec // test URL
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	final := waitForJob(t, e.ts.URL, jobID)
	if final.Status != job.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", final.Status)
	}

	// Cancelling a finished job conflicts.
	resp2, err := http.Post(fmt.Sprintf("%s/api/v1/scan/cancel/%s", e.ts.URL, jobID), "application/json", nil) //nolint:gosec // test URL
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	_ = resp2.Body.Close()
	if resp2.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 on second cancel, got %d", resp2.StatusCode)
	}
}

func TestE2E_RemoveJob(t *testing.T) {
	e := setupE2E(t, mockapi.New())

	jobID := startScan(t, e.ts.URL, validToken)
	waitForJob(t, e.ts.URL, jobID)

	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/v1/scan/remove/%s", e.ts.URL, jobID), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	code, _ := getStatus(t, e.ts.URL, jobID)
	if code != http.StatusNotFound {
		t.Errorf("expected 404 after removal, got %d", code)
	}
}

func TestE2E_UnknownJobIs404(t *testing.T) {
	e := setupE2E(t, mockapi.New())

	code, _ := getStatus(t, e.ts.URL, uuid.NewString())
	if code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestE2E_ListAndStatistics(t *testing.T) {
	e := setupE2E(t, mockapi.New())

	jobID := startScan(t, e.ts.URL, validToken)
	waitForJob(t, e.ts.URL, jobID)

	resp, err := http.Get(e.ts.URL + "/api/v1/jobs/jobs?status=completed") //nolint:gosec // test URL
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var list struct {
		Count int64 `json:"count"`
		Jobs  []struct {
			ID     string     `json:"id"`
			Status job.Status `json:"status"`
		} `json:"jobs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if list.Count != 1 || len(list.Jobs) != 1 {
		t.Fatalf("expected one completed job, got count=%d len=%d", list.Count, len(list.Jobs))
	}
	if list.Jobs[0].ID != jobID {
		t.Errorf("expected job %s in list, got %s", jobID, list.Jobs[0].ID)
	}

	resp2, err := http.Get(e.ts.URL + "/api/v1/jobs/statistics") //nolint:gosec // test URL
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer func() { _ = resp2.Body.Close() }()

	var stats job.Statistics
	if err := json.NewDecoder(resp2.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalJobs != 1 {
		t.Errorf("expected 1 total job, got %d", stats.TotalJobs)
	}
	if stats.CompletedJobs != 1 {
		t.Errorf("expected 1 completed job, got %d", stats.CompletedJobs)
	}
	if stats.AverageProcessingTime == nil {
		t.Error("expected average processing time for a completed job")
	}
}
