package ports

import "errors"

// Standard application-level errors.
// Adapters wrap underlying infrastructure errors with these standard errors so
// the orchestrator can classify failures without knowing the vendor protocol.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Feed Specific Errors
	ErrFeedUnavailable      = errors.New("market data feed is unavailable")
	ErrConnectionFailed     = errors.New("failed to connect to the data vendor")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("vendor authentication failed (check API keys)")
	ErrInvalidAPIKeys       = errors.New("invalid API keys or permissions")
	ErrInvalidSymbol        = errors.New("symbol is unknown to the data vendor")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
)

// IsTransient reports whether err is worth retrying: the feed hiccuped but the
// symbol itself is fine.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrFeedUnavailable) ||
		errors.Is(err, ErrConnectionFailed)
}

// IsFatal reports whether err means the symbol cannot be served for the rest
// of the session. Fatal errors suspend the symbol, they are never retried.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvalidSymbol) ||
		errors.Is(err, ErrAuthenticationFailed) ||
		errors.Is(err, ErrInvalidAPIKeys) ||
		errors.Is(err, ErrPermissionDenied)
}
