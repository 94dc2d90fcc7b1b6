package schedule

import "time"

// Selector tracks the active channel and program. It is not safe for
// concurrent use; the Scheduler drives it from its own goroutine.
//
// In Auto mode every Reconcile re-resolves the live program of the active
// channel. In Manual mode Reconcile only checks that the pinned program still
// exists; it never swaps in whatever happens to be live.
type Selector struct {
	initialChannelID string

	selection Selection
	channel   *Channel
	program   *Program
}

// NewSelector returns a selector that will prefer initialChannelID when it
// first sees a snapshot. An empty id means "first channel".
func NewSelector(initialChannelID string) *Selector {
	return &Selector{initialChannelID: initialChannelID}
}

// Init picks the initial channel from store in Auto mode: initialChannelID if
// the snapshot has it, otherwise the first channel. With an empty snapshot
// the selector stays uninitialized and Init returns false.
func (s *Selector) Init(store *Store, now time.Time) bool {
	ch, ok := store.Channel(s.initialChannelID)
	if !ok || s.initialChannelID == "" {
		ch, ok = store.First()
	}
	if !ok {
		return false
	}
	s.selection = AutoSelection{ChannelID: ch.ID}
	s.resolve(store, now)
	return true
}

// SetActiveChannel switches the selection to channelID. An empty programID
// selects Auto mode on that channel; otherwise the selection is pinned to
// programID in Manual mode without checking that the program exists.
// An unknown channelID leaves the selection untouched and returns false.
func (s *Selector) SetActiveChannel(store *Store, channelID, programID string, now time.Time) bool {
	if _, ok := store.Channel(channelID); !ok {
		return false
	}
	if programID == "" {
		s.selection = AutoSelection{ChannelID: channelID}
	} else {
		s.selection = ManualSelection{ChannelID: channelID, ProgramID: programID}
	}
	s.resolve(store, now)
	return true
}

// Reconcile brings the active channel and program in line with the current
// snapshot and time. An uninitialized selector initializes itself.
func (s *Selector) Reconcile(store *Store, now time.Time) {
	if s.selection == nil {
		s.Init(store, now)
		return
	}
	s.resolve(store, now)
}

func (s *Selector) resolve(store *Store, now time.Time) {
	s.channel, s.program = nil, nil

	ch, ok := store.Channel(s.selection.Channel())
	if !ok {
		return
	}
	s.channel = &ch

	var (
		p     Program
		found bool
	)
	switch sel := s.selection.(type) {
	case AutoSelection:
		p, found = ResolveLiveProgram(ch, now)
	case ManualSelection:
		p, found = ch.Program(sel.ProgramID)
	}
	if found {
		s.program = &p
	}
}

// Selection returns the current selection, or nil before initialization.
func (s *Selector) Selection() Selection {
	return s.selection
}

// ActiveChannel returns the active channel as of the last reconcile.
func (s *Selector) ActiveChannel() (Channel, bool) {
	if s.channel == nil {
		return Channel{}, false
	}
	return *s.channel, true
}

// ActiveProgram returns the active program as of the last reconcile.
func (s *Selector) ActiveProgram() (Program, bool) {
	if s.program == nil {
		return Program{}, false
	}
	return *s.program, true
}

// identity is the part of the selector state whose change is reported to
// subscribers.
type identity struct {
	channelID string
	programID string
}

func (s *Selector) identity() identity {
	var id identity
	if s.channel != nil {
		id.channelID = s.channel.ID
	}
	if s.program != nil {
		id.programID = s.program.ID
	}
	return id
}
