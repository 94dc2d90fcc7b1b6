package schedule

import "time"

// Program is a scheduled segment within a channel's schedule.
// EndTime is always after StartTime for programs that reach the store.
type Program struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
}

// Covers reports whether t falls inside the program window.
// The start is inclusive and the end exclusive.
func (p Program) Covers(t time.Time) bool {
	return !t.Before(p.StartTime) && t.Before(p.EndTime)
}

// Channel is a live broadcast feed with its ordered program schedule.
// Programs are sorted ascending by StartTime.
type Channel struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	Programs    []Program `json:"programs"`
}

// Program returns the program with the given id, if the channel has one.
func (c Channel) Program(id string) (Program, bool) {
	for _, p := range c.Programs {
		if p.ID == id {
			return p, true
		}
	}
	return Program{}, false
}

// Snapshot is the full result of one schedule fetch. A new snapshot replaces
// the previous one wholesale.
type Snapshot struct {
	Channels []Channel `json:"channels"`
}

// Mode is the selection tracking mode.
type Mode string

const (
	// ModeAuto follows whatever program is live on the active channel.
	ModeAuto Mode = "auto"
	// ModeManual stays pinned to a program chosen by the consumer.
	ModeManual Mode = "manual"
)

// Selection is either an AutoSelection or a ManualSelection.
type Selection interface {
	Channel() string
	Mode() Mode
	isSelection()
}

// AutoSelection tracks the live program of a channel.
type AutoSelection struct {
	ChannelID string
}

func (s AutoSelection) Channel() string { return s.ChannelID }
func (s AutoSelection) Mode() Mode      { return ModeAuto }
func (AutoSelection) isSelection()      {}

// ManualSelection is pinned to one program of a channel, which need not be
// live (or even exist in the current snapshot).
type ManualSelection struct {
	ChannelID string
	ProgramID string
}

func (s ManualSelection) Channel() string { return s.ChannelID }
func (s ManualSelection) Mode() Mode      { return ModeManual }
func (ManualSelection) isSelection()      {}
