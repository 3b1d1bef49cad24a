package game

import (
	"time"

	"github.com/cardroom/holdemd/internal/deck"
)

// Event is the single outbound notification stream from a table. The
// session coordinator is the sole consumer. Events are emitted
// synchronously, in order, while the table lock is held; consumers
// must not call back into the table and should only enqueue.
type Event interface {
	event()
}

// StateChangedEvent carries a full unfiltered snapshot after any state
// transition. The coordinator derives per-viewer filtered views.
type StateChangedEvent struct {
	Snapshot Snapshot
}

// TimerStartEvent signals the base action timer starting for a seat.
type TimerStartEvent struct {
	Seat     int
	Identity string
	Duration time.Duration
}

// TimeBankStartEvent signals the time-bank phase starting for a seat,
// carrying the pool's remaining duration.
type TimeBankStartEvent struct {
	Seat      int
	Identity  string
	Remaining time.Duration
}

// LogLineEvent is one hand-history line. Private is the owning
// identity for "Dealt to" lines, empty for public lines.
type LogLineEvent struct {
	Line    string
	Private string
}

// HandCompleteEvent is emitted at hand end with the personalised hand
// history per participant identity.
type HandCompleteEvent struct {
	HandID uint64
	Logs   map[string]string
}

// PlayerLeavingEvent is emitted when a seat is vacated, with the chip
// total to persist.
type PlayerLeavingEvent struct {
	Seat     int
	Identity string
	Chips    int
}

// RebuyEvent is emitted after a successful rebuy.
type RebuyEvent struct {
	Seat     int
	Identity string
	Chips    int
}

// TableMaybeEmptyEvent is emitted when the last seat empties so the
// coordinator can reap idle tables.
type TableMaybeEmptyEvent struct{}

func (StateChangedEvent) event()  {}
func (TimerStartEvent) event()    {}
func (TimeBankStartEvent) event() {}
func (LogLineEvent) event()       {}
func (HandCompleteEvent) event()  {}
func (PlayerLeavingEvent) event() {}
func (RebuyEvent) event()         {}
func (TableMaybeEmptyEvent) event() {}

// Snapshot is a point-in-time copy of table state, safe to read after
// the emitting call returns. Hole cards are unfiltered; visibility is
// the coordinator's concern.
type Snapshot struct {
	TableID    string
	HandID     uint64
	Phase      Phase
	Board      []deck.Card
	Pot        int
	ChipPile   []int
	Dealer     int
	Actor      int
	SmallBlind int
	BigBlind   int
	CurrentBet int
	MinRaiseTo int
	Seats      []SeatView
}

// SeatView is one seat in a snapshot. Occupied false means the zero
// value for every other field.
type SeatView struct {
	Occupied     bool
	Identity     string
	Handle       string
	Stack        int
	Bet          int
	TotalBet     int
	Folded       bool
	AllIn        bool
	SittingOut   bool
	Disconnected bool
	HoleCards    []deck.Card
}
