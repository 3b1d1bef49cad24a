package game

import (
	"strings"
	"time"

	"github.com/cardroom/holdemd/internal/deck"
)

// logLine is one hand-history line. private holds the owning identity
// for "Dealt to" lines and is empty for public lines.
type logLine struct {
	text    string
	private string
}

// handLog accumulates the per-hand history.
type handLog struct {
	lines []logLine
}

func (hl *handLog) publicLine(text string) logLine {
	line := logLine{text: text}
	hl.lines = append(hl.lines, line)
	return line
}

func (hl *handLog) privateLine(identity, text string) logLine {
	line := logLine{text: text, private: identity}
	hl.lines = append(hl.lines, line)
	return line
}

// full renders the complete log including every private line. Used
// for the archive record.
func (hl *handLog) full() string {
	var b strings.Builder
	for _, line := range hl.lines {
		b.WriteString(line.text)
		b.WriteByte('\n')
	}
	return b.String()
}

// personalised renders the log for one identity: every public line
// plus that identity's own private lines.
func (hl *handLog) personalised(identity string) string {
	var b strings.Builder
	for _, line := range hl.lines {
		if line.private != "" && line.private != identity {
			continue
		}
		b.WriteString(line.text)
		b.WriteByte('\n')
	}
	return b.String()
}

// HandRecord is the archive row for a completed hand.
type HandRecord struct {
	HandID      uint64
	TableID     string
	StartedAt   time.Time
	CompletedAt time.Time
	SmallBlind  int
	BigBlind    int
	ButtonSeat  int
	PotTotal    int
	Community   []deck.Card
	History     string
	Players     []HandPlayerRecord
}

// HandPlayerRecord is one participant's archive row. WonAmount always
// satisfies WonAmount = EndingStack - StartingStack + TotalCommitted.
type HandPlayerRecord struct {
	Identity       string
	Handle         string
	Seat           int
	StartingStack  int
	EndingStack    int
	TotalCommitted int
	HoleCards      []deck.Card
	FinalHand      string
	Position       string
	Actions        string
	WonAmount      int
}

// PlayerUpdate adjusts a player's persisted chip and counter totals.
type PlayerUpdate struct {
	Identity   string
	Handle     string
	Chips      int
	HandsDelta int
	WonDelta   int
	Winnings   int
	Losses     int
}

// Archiver persists completed hands and chip totals. Archive failures
// must not stop the live game; the table logs and swallows them.
type Archiver interface {
	SaveHand(rec *HandRecord) error
	UpdatePlayer(u PlayerUpdate) error
}

// NopArchiver discards everything. Used in tests and when persistence
// is disabled.
type NopArchiver struct{}

func (NopArchiver) SaveHand(*HandRecord) error      { return nil }
func (NopArchiver) UpdatePlayer(PlayerUpdate) error { return nil }
