package mockapi

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"time"

	"extraction-api/internal/source"
)

// API simulates a third-party record source: token authentication, paginated
// record fetching, rate limiting, and switchable failure modes. All state is
// per-instance so concurrent tests stay isolated.
type API struct {
	mu                 sync.Mutex
	validTokens        []string
	totalPages         int
	requestDelay       time.Duration
	rateLimitCount     int
	rateLimitThreshold int
	available          bool
	failureMode        string // "", "auth" or "fetch"
	rnd                *rand.Rand
}

var defaultTokens = []string{
	"test_token_valid_12345",
	"valid_api_key_abc",
	"test_access_token_xyz",
}

func New(opts ...Option) *API {
	a := &API{
		validTokens:        defaultTokens,
		totalPages:         3,
		rateLimitThreshold: 100,
		available:          true,
		rnd:                rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

type Option func(*API)

// WithTotalPages sets how many pages of data the simulated service holds.
func WithTotalPages(n int) Option {
	return func(a *API) { a.totalPages = n }
}

// WithRequestDelay adds artificial latency to every call.
func WithRequestDelay(d time.Duration) Option {
	return func(a *API) { a.requestDelay = d }
}

// WithRateLimitThreshold sets how many fetch calls are allowed before the
// service starts returning rate-limit errors.
func WithRateLimitThreshold(n int) Option {
	return func(a *API) { a.rateLimitThreshold = n }
}

// WithValidTokens replaces the accepted token set.
func WithValidTokens(tokens ...string) Option {
	return func(a *API) { a.validTokens = tokens }
}

// WithSeed makes generated record data reproducible.
func WithSeed(seed int64) Option {
	return func(a *API) { a.rnd = rand.New(rand.NewSource(seed)) }
}

func (a *API) Authenticate(ctx context.Context, token string) error {
	a.mu.Lock()
	available := a.available
	mode := a.failureMode
	a.mu.Unlock()

	if !available {
		return fmt.Errorf("%w: external API is currently unavailable", source.ErrUnavailable)
	}
	if mode == "auth" {
		return fmt.Errorf("%w: service error", source.ErrAuthentication)
	}

	if err := a.sleep(ctx); err != nil {
		return err
	}

	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: empty or missing API token", source.ErrAuthentication)
	}
	if !slices.Contains(a.validTokens, token) {
		return fmt.Errorf("%w: invalid API token", source.ErrAuthentication)
	}
	return nil
}

func (a *API) FetchPage(ctx context.Context, token, recordType string, page, perPage int) (*source.Page, error) {
	if err := a.Authenticate(ctx, token); err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.rateLimitCount++
	limited := a.rateLimitCount > a.rateLimitThreshold
	failFetch := a.failureMode == "fetch"
	a.mu.Unlock()

	if limited {
		return nil, fmt.Errorf("%w: please try again later", source.ErrRateLimit)
	}
	if failFetch {
		return nil, fmt.Errorf("%w: failed to fetch data from external service", source.ErrUnavailable)
	}

	if err := a.sleep(ctx); err != nil {
		return nil, err
	}

	records := make([]source.Record, perPage)
	for i := range records {
		records[i] = a.generate(recordType, i)
	}

	return &source.Page{
		Records: records,
		HasMore: page < a.totalPages,
	}, nil
}

// SimulateFailure switches the API into a failure mode: "auth" fails
// authentication, "fetch" fails page fetches, "unavailable" takes the whole
// service down.
func (a *API) SimulateFailure(mode string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failureMode = mode
	if mode == "unavailable" {
		a.available = false
	}
}

// RestoreAvailability returns the API to normal operation.
func (a *API) RestoreAvailability() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failureMode = ""
	a.available = true
}

// ResetRateLimit clears the fetch call counter.
func (a *API) ResetRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rateLimitCount = 0
}

func (a *API) sleep(ctx context.Context) error {
	if a.requestDelay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(a.requestDelay):
		return nil
	}
}
