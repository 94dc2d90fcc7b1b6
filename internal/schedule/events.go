package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies what a change notification is about.
type EventKind string

const (
	// EventSelectionChanged is sent after the active channel or active
	// program changed identity.
	EventSelectionChanged EventKind = "selection_changed"
	// EventFetchFailed is sent when a schedule fetch failed. The previous
	// snapshot and selection remain in effect.
	EventFetchFailed EventKind = "fetch_failed"
)

// Event is a change notification delivered to subscribers.
type Event struct {
	Kind      EventKind `json:"kind"`
	ChannelID string    `json:"channelId,omitempty"`
	ProgramID string    `json:"programId,omitempty"`
	Mode      Mode      `json:"mode,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`

	Err error `json:"-"`
}

// notifier fans events out to subscriber callbacks on its own goroutine, in
// the order they were published. The queue is unbounded so publishing never
// waits for a callback.
type notifier struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]func(Event)

	qmu     sync.Mutex
	pending []Event
	wake    chan struct{}

	// dispatching is set while callbacks run on the notifier goroutine.
	dispatching atomic.Bool
}

func newNotifier() *notifier {
	return &notifier{
		subs: make(map[uuid.UUID]func(Event)),
		wake: make(chan struct{}, 1),
	}
}

func (n *notifier) subscribe(fn func(Event)) func() {
	id := uuid.New()

	n.mu.Lock()
	n.subs[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

// publish queues ev for delivery and returns immediately.
func (n *notifier) publish(ev Event) {
	n.qmu.Lock()
	n.pending = append(n.pending, ev)
	n.qmu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *notifier) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.wake:
		}

		n.qmu.Lock()
		batch := n.pending
		n.pending = nil
		n.qmu.Unlock()

		for _, ev := range batch {
			if ctx.Err() != nil {
				return
			}
			n.dispatch(ev)
		}
	}
}

func (n *notifier) dispatch(ev Event) {
	n.mu.RLock()
	fns := make([]func(Event), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	n.dispatching.Store(true)
	defer n.dispatching.Store(false)
	for _, fn := range fns {
		fn(ev)
	}
}
