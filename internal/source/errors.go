package source

import "errors"

// Failure classes of the remote service. Callers classify with errors.Is;
// implementations wrap these with detail.
var (
	ErrAuthentication = errors.New("authentication failed")
	ErrRateLimit      = errors.New("rate limit exceeded")
	ErrUnavailable    = errors.New("service unavailable")
)
