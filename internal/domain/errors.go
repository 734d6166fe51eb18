package domain

import "errors"

var (
	// ErrTransport marks network failures and timeouts. Retrying is left to the caller.
	ErrTransport = errors.New("transport error")
	// ErrLayoutMismatch marks a page whose structure no longer matches the parser.
	ErrLayoutMismatch = errors.New("layout mismatch")
	// ErrConfig marks an invalid configuration or rule file.
	ErrConfig = errors.New("config error")
	// ErrAlreadyRunning is returned when another instance holds the job lock.
	ErrAlreadyRunning = errors.New("already running")
	// ErrNotFound is returned by stores when no row matches.
	ErrNotFound = errors.New("not found")
	// ErrIntegrity is returned when persisted state breaks a ranking invariant.
	ErrIntegrity = errors.New("data integrity violation")
)
