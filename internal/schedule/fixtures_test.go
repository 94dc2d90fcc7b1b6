package schedule

import (
	"context"
	"sync"
	"time"
)

func at(hhmm string) time.Time {
	t, err := time.Parse(time.RFC3339, "2022-07-15T"+hhmm+":00Z")
	if err != nil {
		panic(err)
	}
	return t
}

func program(id, start, end string) Program {
	return Program{ID: id, Title: "Program " + id, StartTime: at(start), EndTime: at(end)}
}

// baseSnapshot mirrors the schedule used throughout these tests:
// channel1 has program1 10:00-10:30 and program2 10:30-11:00,
// channel2 has program3 10:00-11:00 and program4 11:00-12:00.
func baseSnapshot() Snapshot {
	return Snapshot{Channels: []Channel{
		{ID: "channel1", Title: "Channel 1", Programs: []Program{
			program("program1", "10:00", "10:30"),
			program("program2", "10:30", "11:00"),
		}},
		{ID: "channel2", Title: "Channel 2", Programs: []Program{
			program("program3", "10:00", "11:00"),
			program("program4", "11:00", "12:00"),
		}},
	}}
}

// updatedSnapshot extends program1 to 10:45, adds program5 at 11:00 on
// channel1 and drops program2.
func updatedSnapshot() Snapshot {
	return Snapshot{Channels: []Channel{
		{ID: "channel1", Title: "Channel 1", Programs: []Program{
			program("program1", "10:00", "10:45"),
			program("program5", "11:00", "11:30"),
		}},
		{ID: "channel2", Title: "Channel 2", Programs: []Program{
			program("program3", "10:00", "11:00"),
			program("program4", "11:00", "12:00"),
		}},
	}}
}

func storeWith(snap Snapshot) *Store {
	s := NewStore()
	s.Load(snap)
	return s
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// scriptedFetcher answers fetches from a list of canned responses; once the
// list is exhausted the last response is repeated.
type scriptedFetcher struct {
	mu        sync.Mutex
	responses []fetchResult
	calls     int
	lastIDs   []string
}

func (f *scriptedFetcher) FetchSchedules(_ context.Context, ids []string) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	f.calls++
	f.lastIDs = ids
	return f.responses[i].snap, f.responses[i].err
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *scriptedFetcher) LastIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastIDs
}

// gatedFetcher blocks the n-th fetch until a snapshot is sent on gates[n].
type gatedFetcher struct {
	mu    sync.Mutex
	gates []chan Snapshot
	calls int
}

func newGatedFetcher(n int) *gatedFetcher {
	f := &gatedFetcher{gates: make([]chan Snapshot, n)}
	for i := range f.gates {
		f.gates[i] = make(chan Snapshot, 1)
	}
	return f
}

func (f *gatedFetcher) FetchSchedules(ctx context.Context, _ []string) (Snapshot, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	f.mu.Unlock()
	if i >= len(f.gates) {
		<-ctx.Done()
		return Snapshot{}, ctx.Err()
	}
	select {
	case snap := <-f.gates[i]:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (f *gatedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
