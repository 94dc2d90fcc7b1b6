package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultFetchTimeout bounds a single FetchSchedules call.
	DefaultFetchTimeout = 10 * time.Second

	// maxTimerSleep caps every timer so wall-clock steps and system sleep
	// are noticed within a minute.
	maxTimerSleep = 60 * time.Second
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Recorder receives scheduler metrics. *metrics.Metrics implements it.
type Recorder interface {
	IncFetches()
	IncFetchFailures()
	IncStaleFetches()
	IncTransitions()
	IncSelectionChanges()
	SetChannels(n int)
}

type nopRecorder struct{}

func (nopRecorder) IncFetches()          {}
func (nopRecorder) IncFetchFailures()    {}
func (nopRecorder) IncStaleFetches()     {}
func (nopRecorder) IncTransitions()      {}
func (nopRecorder) IncSelectionChanges() {}
func (nopRecorder) SetChannels(int)      {}

// Config configures a Scheduler. Only ChannelIDs is required.
type Config struct {
	// ChannelIDs lists the channels to track, in display order.
	ChannelIDs []string
	// Refresh decides when periodic refetches happen. Defaults to
	// IntervalPolicy(DefaultRefreshInterval).
	Refresh RefreshPolicy
	// FetchTimeout bounds each fetch. Defaults to DefaultFetchTimeout.
	FetchTimeout time.Duration

	Clock   Clock
	Logger  *slog.Logger
	Metrics Recorder
}

type fetchResult struct {
	seq  uint64
	snap Snapshot
	err  error
}

// Scheduler keeps the on-air program of the active channel current. It
// periodically refetches schedules, and arms a one-shot timer for the exact
// instant the live program is next expected to change.
//
// All state transitions run on a single goroutine started by Start: fetch
// completions, timer firings and consumer calls are serialized there, so the
// Store and Selector need no locking.
type Scheduler struct {
	fetcher      Fetcher
	channelIDs   []string
	refresh      RefreshPolicy
	fetchTimeout time.Duration
	clock        Clock
	log          *slog.Logger
	metrics      Recorder

	calls    chan func()
	results  chan fetchResult
	notifier *notifier

	mu           sync.Mutex
	started      bool
	stopped      bool
	cancel       context.CancelFunc
	done         chan struct{}
	notifierDone chan struct{}
	wg           sync.WaitGroup

	// Owned by the loop goroutine.
	ctx          context.Context
	store        *Store
	selector     *Selector
	issued       uint64
	applied      uint64
	inFlight     int
	refreshAlarm alarm
	transition   alarm
}

// New returns a Scheduler that fetches schedules through fetcher. It does not
// start any goroutine; call Start for that.
func New(fetcher Fetcher, cfg Config) (*Scheduler, error) {
	if fetcher == nil {
		return nil, ErrNoFetcher
	}
	if len(cfg.ChannelIDs) == 0 {
		return nil, ErrNoChannels
	}

	s := &Scheduler{
		fetcher:      fetcher,
		channelIDs:   append([]string(nil), cfg.ChannelIDs...),
		refresh:      cfg.Refresh,
		fetchTimeout: cfg.FetchTimeout,
		clock:        cfg.Clock,
		log:          cfg.Logger,
		metrics:      cfg.Metrics,
		calls:        make(chan func()),
		results:      make(chan fetchResult),
		notifier:     newNotifier(),
		done:         make(chan struct{}),
		notifierDone: make(chan struct{}),
		ctx:          context.Background(),
		store:        NewStore(),
		selector:     NewSelector(""),
	}
	if s.refresh == nil {
		s.refresh = IntervalPolicy(DefaultRefreshInterval)
	}
	if s.fetchTimeout <= 0 {
		s.fetchTimeout = DefaultFetchTimeout
	}
	if s.clock == nil {
		s.clock = systemClock{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	return s, nil
}

// Start performs an immediate fetch and arms the periodic refresh timer.
// The selection is seeded from initialChannelID once the first snapshot
// arrives, falling back to the first channel. The scheduler runs until Stop
// is called or ctx is done.
func (s *Scheduler) Start(ctx context.Context, initialChannelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.ctx = ctx
	s.selector = NewSelector(initialChannelID)

	go func() {
		defer close(s.notifierDone)
		s.notifier.run(ctx)
	}()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.done)
		s.run(ctx)
	}()
	return nil
}

// Stop cancels both timers and any in-flight fetch, then waits for the
// scheduler goroutines to exit. It is safe to call more than once, before
// Start, and from a subscriber callback. A callback that is running when Stop
// is called may finish after Stop returns; no later callback starts.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	started := s.started
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	if started && !s.notifier.dispatching.Load() {
		<-s.notifierDone
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.refreshAlarm.stop()
	defer s.transition.stop()

	s.log.Info("scheduler started",
		slog.Int("channels", len(s.channelIDs)),
		slog.Duration("fetch_timeout", s.fetchTimeout))

	s.fetch()
	now := s.clock.Now()
	s.refreshAlarm.set(s.refresh.Next(now), now)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return

		case fn := <-s.calls:
			fn()

		case res := <-s.results:
			s.applyFetch(res)

		case <-s.refreshAlarm.C():
			now := s.clock.Now()
			if !s.refreshAlarm.due(now) {
				s.refreshAlarm.set(s.refreshAlarm.at, now)
				continue
			}
			if s.inFlight > 0 {
				s.log.Debug("periodic refresh skipped, fetch in flight", slog.Int("in_flight", s.inFlight))
			} else {
				s.fetch()
			}
			s.refreshAlarm.set(s.refresh.Next(now), now)

		case <-s.transition.C():
			now := s.clock.Now()
			if !s.transition.due(now) {
				s.transition.set(s.transition.at, now)
				continue
			}
			s.transition.stop()
			s.metrics.IncTransitions()
			s.reconcile()
		}

		s.armTransition()
	}
}

// fetch issues a schedule fetch tagged with the next sequence number. The
// result is delivered back to the loop through s.results.
func (s *Scheduler) fetch() {
	s.issued++
	seq := s.issued
	s.inFlight++
	s.metrics.IncFetches()

	ctx := s.ctx
	ids := s.channelIDs
	s.log.Debug("fetching schedules", slog.Uint64("seq", seq), slog.Int("channels", len(ids)))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		fctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()

		snap, err := s.fetcher.FetchSchedules(fctx, ids)
		select {
		case s.results <- fetchResult{seq: seq, snap: snap, err: err}:
		case <-ctx.Done():
		}
	}()
}

// applyFetch handles a completed fetch. Results older than the newest one
// already applied are dropped so a slow response cannot overwrite newer data.
func (s *Scheduler) applyFetch(res fetchResult) {
	if s.inFlight > 0 {
		s.inFlight--
	}

	if res.seq < s.applied {
		s.metrics.IncStaleFetches()
		s.log.Info("discarding stale schedule response",
			slog.Uint64("seq", res.seq),
			slog.Uint64("applied_seq", s.applied))
		return
	}

	if res.err != nil {
		s.metrics.IncFetchFailures()
		s.log.Warn("schedule fetch failed, keeping last snapshot",
			slog.Uint64("seq", res.seq),
			slog.String("error", res.err.Error()))
		s.notifier.publish(Event{
			Kind:  EventFetchFailed,
			Error: res.err.Error(),
			Err:   res.err,
			At:    s.clock.Now(),
		})
		s.reconcile()
		return
	}

	s.applied = res.seq
	s.store.Load(res.snap)
	s.metrics.SetChannels(s.store.Len())
	s.log.Debug("schedule snapshot loaded",
		slog.Uint64("seq", res.seq),
		slog.Int("channels", s.store.Len()))
	s.reconcile()
}

func (s *Scheduler) reconcile() {
	before := s.selector.identity()
	s.selector.Reconcile(s.store, s.clock.Now())
	s.notifyIfChanged(before)
}

func (s *Scheduler) notifyIfChanged(before identity) {
	after := s.selector.identity()
	if after == before {
		return
	}

	var mode Mode
	if sel := s.selector.Selection(); sel != nil {
		mode = sel.Mode()
	}

	s.metrics.IncSelectionChanges()
	s.log.Info("selection changed",
		slog.String("channel_id", after.channelID),
		slog.String("program_id", after.programID),
		slog.String("mode", string(mode)))
	s.notifier.publish(Event{
		Kind:      EventSelectionChanged,
		ChannelID: after.channelID,
		ProgramID: after.programID,
		Mode:      mode,
		At:        s.clock.Now(),
	})
}

// armTransition points the one-shot transition timer at the next instant the
// live program of the active channel can change.
func (s *Scheduler) armTransition() {
	now := s.clock.Now()
	ch, ok := s.selector.ActiveChannel()
	if !ok {
		s.transition.stop()
		return
	}
	next, ok := NextBoundary(ch, now)
	if !ok {
		s.transition.stop()
		return
	}
	if s.transition.armed && s.transition.at.Equal(next) {
		return
	}
	s.transition.set(next, now)
}

// call runs fn on the loop goroutine and waits for it to finish. It returns
// false when the loop is not running.
func (s *Scheduler) call(fn func()) bool {
	s.mu.Lock()
	running := s.started && !s.stopped
	s.mu.Unlock()
	if !running {
		return false
	}

	reply := make(chan struct{})
	select {
	case s.calls <- func() {
		fn()
		close(reply)
	}:
	case <-s.done:
		return false
	}
	<-reply
	return true
}

// Now returns the current time of the scheduler's clock.
func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// Channels returns the channels of the current snapshot in order.
func (s *Scheduler) Channels() []Channel {
	var out []Channel
	s.call(func() {
		out = s.store.Channels()
	})
	return out
}

// Channel returns one channel of the current snapshot.
func (s *Scheduler) Channel(id string) (Channel, bool) {
	var (
		ch Channel
		ok bool
	)
	s.call(func() {
		ch, ok = s.store.Channel(id)
	})
	return ch, ok
}

// ActiveChannel returns the active channel.
func (s *Scheduler) ActiveChannel() (Channel, bool) {
	var (
		ch Channel
		ok bool
	)
	s.call(func() {
		ch, ok = s.selector.ActiveChannel()
	})
	return ch, ok
}

// ActiveProgram returns the active program.
func (s *Scheduler) ActiveProgram() (Program, bool) {
	var (
		p  Program
		ok bool
	)
	s.call(func() {
		p, ok = s.selector.ActiveProgram()
	})
	return p, ok
}

// Selection returns the current selection, or nil if none exists yet.
func (s *Scheduler) Selection() Selection {
	var sel Selection
	s.call(func() {
		sel = s.selector.Selection()
	})
	return sel
}

// State is a consistent view of the selection and what it resolves to.
type State struct {
	Selection     Selection
	Channel       *Channel
	Program       *Program
	UpdatedAt     time.Time
	SnapshotSeq   uint64
	FetchInFlight bool
}

// State returns the selection, active channel and active program as seen at
// one instant.
func (s *Scheduler) State() State {
	var st State
	s.call(func() {
		st.Selection = s.selector.Selection()
		if ch, ok := s.selector.ActiveChannel(); ok {
			st.Channel = &ch
		}
		if p, ok := s.selector.ActiveProgram(); ok {
			st.Program = &p
		}
		st.UpdatedAt = s.clock.Now()
		st.SnapshotSeq = s.applied
		st.FetchInFlight = s.inFlight > 0
	})
	return st
}

// SetActiveChannel selects channelID. With an empty programID the selection
// follows the channel's live program (Auto mode); otherwise it is pinned to
// programID (Manual mode), which may be a future program. An unknown
// channelID is ignored and reported by returning false.
func (s *Scheduler) SetActiveChannel(channelID, programID string) bool {
	var ok bool
	s.call(func() {
		before := s.selector.identity()
		ok = s.selector.SetActiveChannel(s.store, channelID, programID, s.clock.Now())
		if !ok {
			s.log.Debug("ignoring selection of unknown channel", slog.String("channel_id", channelID))
			return
		}
		s.notifyIfChanged(before)
	})
	return ok
}

// ResumeLive switches the active channel back to Auto mode.
func (s *Scheduler) ResumeLive() bool {
	var ok bool
	s.call(func() {
		sel := s.selector.Selection()
		if sel == nil {
			return
		}
		before := s.selector.identity()
		ok = s.selector.SetActiveChannel(s.store, sel.Channel(), "", s.clock.Now())
		if ok {
			s.notifyIfChanged(before)
		}
	})
	return ok
}

// Refresh issues a fetch immediately, even if another one is in flight.
func (s *Scheduler) Refresh() error {
	if !s.call(s.fetch) {
		return ErrNotRunning
	}
	return nil
}

// Reevaluate reconciles the selection against the current snapshot and time
// without fetching, as the transition timer does.
func (s *Scheduler) Reevaluate() error {
	if !s.call(s.reconcile) {
		return ErrNotRunning
	}
	return nil
}

// TransitionDeadline returns the instant the transition timer is armed for.
func (s *Scheduler) TransitionDeadline() (time.Time, bool) {
	var (
		at    time.Time
		armed bool
	)
	s.call(func() {
		at, armed = s.transition.at, s.transition.armed
	})
	return at, armed
}

// Subscribe registers fn for change notifications and returns a function
// that removes it. Callbacks run one at a time on a notifier goroutine, never
// on the scheduler loop, so they may call back into the Scheduler.
func (s *Scheduler) Subscribe(fn func(Event)) (unsubscribe func()) {
	return s.notifier.subscribe(fn)
}

// alarm is a cancellable one-shot timer that remembers its deadline. Sleeps
// are capped at maxTimerSleep; callers check due on wake-up.
type alarm struct {
	timer *time.Timer
	at    time.Time
	armed bool
}

func (a *alarm) set(at, now time.Time) {
	if a.timer != nil {
		a.timer.Stop()
	}
	d := at.Sub(now)
	if d < 0 {
		d = 0
	}
	if d > maxTimerSleep {
		d = maxTimerSleep
	}
	a.at = at
	a.armed = true
	a.timer = time.NewTimer(d)
}

func (a *alarm) stop() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.armed = false
}

func (a *alarm) due(now time.Time) bool {
	return !now.Before(a.at)
}

// C returns the timer channel, or nil (blocks forever) when not armed.
func (a *alarm) C() <-chan time.Time {
	if a.timer == nil {
		return nil
	}
	return a.timer.C
}
