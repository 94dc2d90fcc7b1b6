package schedule

import "context"

// Fetcher retrieves the schedules of the given channels. Implementations
// should return an error wrapping ErrFetchFailed on transport or decoding
// failures. The returned snapshot lists channels in the order of ids.
type Fetcher interface {
	FetchSchedules(ctx context.Context, channelIDs []string) (Snapshot, error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, channelIDs []string) (Snapshot, error)

// FetchSchedules implements Fetcher.FetchSchedules.
func (f FetcherFunc) FetchSchedules(ctx context.Context, channelIDs []string) (Snapshot, error) {
	return f(ctx, channelIDs)
}
