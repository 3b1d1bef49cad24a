package server

import (
	"encoding/json"
	"time"
)

// MessageType discriminates the framed messages on the websocket.
type MessageType string

// Client → server.
const (
	MessageTypeJoinTable    MessageType = "join-table"
	MessageTypeObserveTable MessageType = "observe-table"
	MessageTypeListTables   MessageType = "list-tables"
	MessageTypeAction       MessageType = "action"
	MessageTypeSitOut       MessageType = "sit-out"
	MessageTypeSitBackIn    MessageType = "sit-back-in"
	MessageTypeRebuy        MessageType = "rebuy"
	MessageTypeLeaveTable   MessageType = "leave-table"
	MessageTypeChat         MessageType = "chat-message"
)

// Server → client.
const (
	MessageTypeSeatAssigned   MessageType = "seat-assigned"
	MessageTypeGameState      MessageType = "game-state"
	MessageTypeTimerStart     MessageType = "action-timer-start"
	MessageTypeTimeBankStart  MessageType = "time-bank-start"
	MessageTypeHandLog        MessageType = "hand-log"
	MessageTypeHandComplete   MessageType = "hand-complete"
	MessageTypeProfileUpdated MessageType = "profile-updated"
	MessageTypeTableList      MessageType = "table-list"
	MessageTypeError          MessageType = "error"
	MessageTypeAuthError      MessageType = "auth-error"
)

// Message is the framed envelope on the wire.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage frames a payload with the current timestamp.
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// --- client → server payloads ---

// JoinTableData seats the authenticated identity. Seat is the
// preferred seat, -1 (or omitted) for the lowest open one.
type JoinTableData struct {
	SessionToken string `json:"session_token"`
	TableID      string `json:"table_id"`
	Seat         *int   `json:"seat,omitempty"`
	BuyIn        int    `json:"buy_in"`
}

// ObserveTableData subscribes the connection to a table's broadcast
// room. No authentication required; the observer gets a pseudonym.
type ObserveTableData struct {
	TableID string `json:"table_id"`
}

// ActionData is a betting action. Total is the total street commitment
// for raises, ignored otherwise.
type ActionData struct {
	TableID string `json:"table_id"`
	Kind    string `json:"kind"`
	Total   int    `json:"total,omitempty"`
}

// SitOutData toggles sitting out.
type SitOutData struct {
	TableID string `json:"table_id"`
}

// SitBackInData returns a sat-out player to play.
type SitBackInData struct {
	TableID string `json:"table_id"`
}

// RebuyData adds chips between hands.
type RebuyData struct {
	TableID string `json:"table_id"`
	Amount  int    `json:"amount"`
}

// LeaveTableData vacates the seat (or stops observing).
type LeaveTableData struct {
	TableID string `json:"table_id"`
}

// ChatData is a table chat line.
type ChatData struct {
	TableID string `json:"table_id"`
	Text    string `json:"text"`
}

// --- server → client payloads ---

// SeatAssignedData confirms a (re)join.
type SeatAssignedData struct {
	TableID string `json:"table_id"`
	Seat    int    `json:"seat"`
	Chips   int    `json:"chips"`
}

// GameStateData is the per-viewer filtered snapshot.
type GameStateData struct {
	TableID    string     `json:"table_id"`
	HandID     uint64     `json:"hand_id"`
	Phase      string     `json:"phase"`
	Board      []string   `json:"board"`
	Pot        int        `json:"pot"`
	ChipPile   []int      `json:"chip_pile"`
	Dealer     int        `json:"dealer"`
	Actor      int        `json:"actor"`
	SmallBlind int        `json:"small_blind"`
	BigBlind   int        `json:"big_blind"`
	CurrentBet int        `json:"current_bet"`
	MinRaiseTo int        `json:"min_raise_to"`
	Seats      []SeatData `json:"seats"`
}

// SeatData is one seat in a filtered snapshot. HoleCards is only
// populated for the viewer's own seat, or for not-folded seats at
// showdown.
type SeatData struct {
	Occupied     bool     `json:"occupied"`
	Handle       string   `json:"handle,omitempty"`
	Stack        int      `json:"stack,omitempty"`
	Bet          int      `json:"bet,omitempty"`
	TotalBet     int      `json:"total_bet,omitempty"`
	Folded       bool     `json:"folded,omitempty"`
	AllIn        bool     `json:"all_in,omitempty"`
	SittingOut   bool     `json:"sitting_out,omitempty"`
	Disconnected bool     `json:"disconnected,omitempty"`
	HoleCards    []string `json:"hole_cards,omitempty"`
}

// TimerStartData announces the base action timer.
type TimerStartData struct {
	TableID    string `json:"table_id"`
	Seat       int    `json:"seat"`
	DurationMs int64  `json:"duration_ms"`
}

// TimeBankStartData announces the time-bank phase.
type TimeBankStartData struct {
	TableID     string `json:"table_id"`
	Seat        int    `json:"seat"`
	RemainingMs int64  `json:"remaining_ms"`
}

// HandLogData is one hand-history line.
type HandLogData struct {
	TableID string `json:"table_id"`
	Line    string `json:"line"`
}

// HandCompleteData delivers the personalised hand history at hand end.
type HandCompleteData struct {
	TableID string `json:"table_id"`
	HandID  uint64 `json:"hand_id"`
	Log     string `json:"log"`
}

// ProfileUpdatedData pushes the viewer's refreshed chip total.
type ProfileUpdatedData struct {
	Identity string `json:"identity"`
	Handle   string `json:"handle"`
	Chips    int    `json:"chips"`
}

// TableSummary is one row of the table listing.
type TableSummary struct {
	TableID    string `json:"table_id"`
	SmallBlind int    `json:"small_blind"`
	BigBlind   int    `json:"big_blind"`
	NumSeats   int    `json:"num_seats"`
	Occupied   int    `json:"occupied"`
}

// TableListData lists the configured tables.
type TableListData struct {
	Tables []TableSummary `json:"tables"`
}

// ChatBroadcastData is a chat line fanned out to the room.
type ChatBroadcastData struct {
	TableID  string `json:"table_id"`
	From     string `json:"from"`
	Observer bool   `json:"observer,omitempty"`
	Text     string `json:"text"`
}

// ErrorData is an error delivered to the offending connection only.
type ErrorData struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
