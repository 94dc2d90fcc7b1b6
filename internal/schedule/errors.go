package schedule

import "errors"

var (
	// ErrFetchFailed wraps any transport or decoding failure reported by a
	// Fetcher. It is never fatal: the last good snapshot stays in place.
	ErrFetchFailed = errors.New("schedule fetch failed")

	// ErrNoFetcher is returned by New when no Fetcher is supplied.
	ErrNoFetcher = errors.New("no schedule fetcher configured")

	// ErrNoChannels is returned by New when the channel id list is empty.
	ErrNoChannels = errors.New("no channel ids configured")

	// ErrAlreadyStarted is returned when Start is called more than once.
	ErrAlreadyStarted = errors.New("scheduler already started")

	// ErrStopped is returned when Start is called after Stop.
	ErrStopped = errors.New("scheduler stopped")

	// ErrNotRunning is returned by operations that need the scheduler loop
	// when it has not been started or has been stopped.
	ErrNotRunning = errors.New("scheduler not running")
)
