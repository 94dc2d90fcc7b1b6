package schedule

// Store holds the latest known schedule snapshot.
// It is a plain data holder: it has no timers, never blocks, and is not safe
// for concurrent use. The Scheduler only touches it from its own goroutine.
type Store struct {
	channels []Channel
	index    map[string]int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// Load replaces everything held by the store with snap. The previous snapshot
// is discarded; there is no merge. When a snapshot repeats a channel id the
// first occurrence is the one returned by Channel.
func (s *Store) Load(snap Snapshot) {
	s.channels = snap.Channels
	s.index = make(map[string]int, len(snap.Channels))
	for i, ch := range snap.Channels {
		if _, exists := s.index[ch.ID]; !exists {
			s.index[ch.ID] = i
		}
	}
}

// Channel returns the channel with the given id.
func (s *Store) Channel(id string) (Channel, bool) {
	i, ok := s.index[id]
	if !ok {
		return Channel{}, false
	}
	return s.channels[i], true
}

// Channels returns the snapshot's channels in their original order.
func (s *Store) Channels() []Channel {
	out := make([]Channel, len(s.channels))
	copy(out, s.channels)
	return out
}

// First returns the first channel of the snapshot.
func (s *Store) First() (Channel, bool) {
	if len(s.channels) == 0 {
		return Channel{}, false
	}
	return s.channels[0], true
}

// Len returns the number of channels in the snapshot.
func (s *Store) Len() int {
	return len(s.channels)
}
