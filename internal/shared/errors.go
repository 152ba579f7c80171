package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrRateLimited        = fmt.Errorf("rate limited")
	ErrSourceUnavailable  = fmt.Errorf("media server unreachable")
	ErrLibraryNotFound    = fmt.Errorf("music library not found")
	ErrTrackNotFound      = fmt.Errorf("track not found")

	// Relay errors
	ErrNoServices      = fmt.Errorf("no taste services configured")
	ErrNoRecordingID   = fmt.Errorf("no recording ID available")
	ErrNotResolvable   = fmt.Errorf("recording could not be resolved")
	ErrResetDeclined   = fmt.Errorf("reset not confirmed")
	ErrHateUnsupported = fmt.Errorf("service does not support hated tracks")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
