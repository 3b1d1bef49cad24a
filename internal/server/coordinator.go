package server

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/cardroom/holdemd/internal/auth"
	"github.com/cardroom/holdemd/internal/deck"
	"github.com/cardroom/holdemd/internal/game"
)

// maxChatLen clamps chat lines before broadcast.
const maxChatLen = 500

// Persistence is the slice of the store the coordinator needs.
type Persistence interface {
	Banned(identity, ip string) (bool, string, error)
	RecordDeparture(identity, tableID string, chips int) error
	LastDeparture(identity, tableID string) (int, time.Time, error)
	UpdatePlayer(u game.PlayerUpdate) error
	LogAbuse(identity, ip, kind, detail string) error
}

// RateLimiter gates expensive operations per identity. The default
// implementation allows everything; deployments plug their own in.
type RateLimiter interface {
	Allow(identity, op string) bool
}

type nopRateLimiter struct{}

func (nopRateLimiter) Allow(string, string) bool { return true }

// Coordinator owns the connection↔identity↔seat mappings and fans the
// tables' event streams out as filtered messages.
type Coordinator struct {
	cfg    *Config
	logger *log.Logger
	clock  quartz.Clock
	auth   *auth.Service
	db     Persistence
	rate   RateLimiter

	mu          sync.Mutex
	rooms       map[string]*tableRoom
	observerSeq int
	closed      bool
}

// tableRoom is one table plus its subscribers. The room mutex guards
// the maps only; table state has its own lock.
type tableRoom struct {
	table *game.Table

	mu        sync.Mutex
	players   map[string]*Connection // identity -> current transport
	observers map[*Connection]string // conn -> pseudonym
	grace     map[string]*quartz.Timer

	events chan game.Event
	done   chan struct{}
}

// NewCoordinator builds the coordinator and its tables. rng may be a
// seeded source in tests; production passes deck.CryptoSource.
func NewCoordinator(cfg *Config, authSvc *auth.Service, db Persistence, archive game.Archiver,
	rng deck.Source, clock quartz.Clock, rate RateLimiter, logger *log.Logger) *Coordinator {

	if rate == nil {
		rate = nopRateLimiter{}
	}
	c := &Coordinator{
		cfg:    cfg,
		logger: logger.WithPrefix("coord"),
		clock:  clock,
		auth:   authSvc,
		db:     db,
		rate:   rate,
		rooms:  make(map[string]*tableRoom),
	}

	for _, tc := range cfg.Tables {
		room := &tableRoom{
			players:   make(map[string]*Connection),
			observers: make(map[*Connection]string),
			grace:     make(map[string]*quartz.Timer),
			events:    make(chan game.Event, 4096),
			done:      make(chan struct{}),
		}
		// The sink runs under the table lock: enqueue only.
		sink := func(ev game.Event) {
			select {
			case room.events <- ev:
			default:
				c.logger.Warn("event queue full, dropping event", "table", tc.Name)
			}
		}
		room.table = game.NewTable(tc.Name, cfg.GameConfig(tc), logger, clock, rng, archive, sink)
		c.rooms[tc.Name] = room
		go c.pumpEvents(room)
	}
	return c
}

// Close shuts down every table and subscriber.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	rooms := make([]*tableRoom, 0, len(c.rooms))
	for _, room := range c.rooms {
		rooms = append(rooms, room)
	}
	c.mu.Unlock()

	for _, room := range rooms {
		room.table.Close()
		close(room.done)

		room.mu.Lock()
		for _, conn := range room.players {
			conn.close()
		}
		for conn := range room.observers {
			conn.close()
		}
		room.mu.Unlock()
	}
}

func (c *Coordinator) room(tableID string) *tableRoom {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rooms[tableID]
}

// --- inbound operations ---

// JoinTable authenticates, applies ban and rate checks, then seats or
// reconnects the identity.
func (c *Coordinator) JoinTable(conn *Connection, data JoinTableData) {
	session, err := c.auth.Resolve(data.SessionToken)
	if err != nil {
		conn.sendPayload(MessageTypeAuthError, ErrorData{Kind: "unauthenticated", Message: "invalid session"})
		return
	}
	identity, handle := session.Identity, session.Profile.Handle

	if banned, reason, err := c.db.Banned(identity, conn.remoteIP); err != nil {
		c.logger.Error("ban lookup failed", "identity", identity, "error", err)
		conn.sendError("internal", "try again")
		return
	} else if banned {
		c.reportAbuse(conn, "banned-join-attempt", identity)
		conn.sendError("unauthorized", "banned: "+reason)
		return
	}

	if !c.rate.Allow(identity, "join-table") {
		conn.sendError("rate-limited", "slow down")
		return
	}

	room := c.room(data.TableID)
	if room == nil {
		conn.sendError("table-not-found", data.TableID)
		return
	}

	conn.setIdentity(identity, handle)

	// An existing seat means reconnection: swap the transport.
	if seat, ok := room.table.SeatOf(identity); ok {
		c.reconnect(room, conn, identity, seat)
		return
	}

	preferred := -1
	if data.Seat != nil {
		preferred = *data.Seat
	}
	buyIn := c.effectiveBuyIn(identity, room.table, data.BuyIn)

	seat, err := room.table.Join(identity, handle, preferred, buyIn)
	switch {
	case errors.Is(err, game.ErrAlreadySeated):
		c.reconnect(room, conn, identity, seat)
		return
	case errors.Is(err, game.ErrTableFull):
		conn.sendError("table-full", data.TableID)
		return
	case err != nil:
		conn.sendError("internal", err.Error())
		return
	}

	room.mu.Lock()
	room.players[identity] = conn
	room.mu.Unlock()
	conn.setTable(data.TableID, false)

	snap := room.table.Snapshot()
	conn.sendPayload(MessageTypeSeatAssigned, SeatAssignedData{
		TableID: data.TableID, Seat: seat, Chips: snap.Seats[seat].Stack,
	})
	conn.sendPayload(MessageTypeProfileUpdated, ProfileUpdatedData{
		Identity: identity, Handle: handle, Chips: snap.Seats[seat].Stack,
	})
	conn.sendPayload(MessageTypeGameState, filterSnapshot(snap, identity))
}

// reconnect swaps the transport under an existing seat. The old
// transport lingers for the swap grace, then is closed if it has not
// itself been replaced again; the cleanup is idempotent because it
// only fires while the recorded transport still matches.
func (c *Coordinator) reconnect(room *tableRoom, conn *Connection, identity string, seat int) {
	room.mu.Lock()
	old := room.players[identity]
	room.players[identity] = conn
	if timer, ok := room.grace[identity]; ok {
		timer.Stop()
		delete(room.grace, identity)
	}
	room.mu.Unlock()

	conn.setTable(room.table.ID(), false)
	room.table.SetDisconnected(identity, false)

	if old != nil && old != conn {
		stale := old
		c.clock.AfterFunc(c.cfg.ReconnectSwapGrace(), func() {
			room.mu.Lock()
			current := room.players[identity]
			room.mu.Unlock()
			if current != stale {
				stale.close()
			}
		})
	}

	snap := room.table.Snapshot()
	conn.sendPayload(MessageTypeSeatAssigned, SeatAssignedData{
		TableID: room.table.ID(), Seat: seat, Chips: snap.Seats[seat].Stack,
	})
	conn.sendPayload(MessageTypeGameState, filterSnapshot(snap, identity))
	c.logger.Info("reconnected", "identity", identity, "table", room.table.ID(), "seat", seat)
}

// effectiveBuyIn applies the anti-rathole clamp: returning to a table
// within the window forces at least the stack the player left with.
func (c *Coordinator) effectiveBuyIn(identity string, table *game.Table, requested int) int {
	cfg := table.Config()
	buyIn := requested
	if buyIn <= 0 {
		buyIn = cfg.StartingStack
	}
	buyIn = max(cfg.MinBuyIn, min(buyIn, cfg.MaxBuyIn))

	chips, leftAt, err := c.db.LastDeparture(identity, table.ID())
	if err != nil {
		return buyIn
	}
	if c.clock.Now().Sub(leftAt) < cfg.RatholeWindow && chips > buyIn {
		buyIn = min(chips, cfg.MaxBuyIn)
	}
	return buyIn
}

// ObserveTable subscribes an unauthenticated connection under a
// generated pseudonym.
func (c *Coordinator) ObserveTable(conn *Connection, data ObserveTableData) {
	room := c.room(data.TableID)
	if room == nil {
		conn.sendError("table-not-found", data.TableID)
		return
	}

	c.mu.Lock()
	c.observerSeq++
	pseudonym := fmt.Sprintf("railbird-%d", c.observerSeq)
	c.mu.Unlock()

	room.mu.Lock()
	room.observers[conn] = pseudonym
	room.mu.Unlock()

	conn.setIdentity("", pseudonym)
	conn.setTable(data.TableID, true)
	conn.sendPayload(MessageTypeGameState, filterSnapshot(room.table.Snapshot(), ""))
}

// ListTables answers with the configured tables and their occupancy.
func (c *Coordinator) ListTables(conn *Connection) {
	c.mu.Lock()
	rooms := make([]*tableRoom, 0, len(c.rooms))
	for _, room := range c.rooms {
		rooms = append(rooms, room)
	}
	c.mu.Unlock()

	var list TableListData
	for _, room := range rooms {
		snap := room.table.Snapshot()
		occupied := 0
		for _, s := range snap.Seats {
			if s.Occupied {
				occupied++
			}
		}
		list.Tables = append(list.Tables, TableSummary{
			TableID:    snap.TableID,
			SmallBlind: snap.SmallBlind,
			BigBlind:   snap.BigBlind,
			NumSeats:   len(snap.Seats),
			Occupied:   occupied,
		})
	}
	conn.sendPayload(MessageTypeTableList, list)
}

// seatedRoom resolves the room a connection plays at, or errors the
// connection.
func (c *Coordinator) seatedRoom(conn *Connection, tableID string) (*tableRoom, string, bool) {
	identity := conn.getIdentity()
	if identity == "" {
		conn.sendPayload(MessageTypeAuthError, ErrorData{Kind: "unauthenticated", Message: "join first"})
		return nil, "", false
	}
	room := c.room(tableID)
	if room == nil {
		conn.sendError("table-not-found", tableID)
		return nil, "", false
	}
	return room, identity, true
}

// HandleAction validates and applies a betting action.
func (c *Coordinator) HandleAction(conn *Connection, data ActionData) {
	room, identity, ok := c.seatedRoom(conn, data.TableID)
	if !ok {
		return
	}

	kind, err := game.ParseActionKind(data.Kind)
	if err != nil {
		conn.sendError("invalid-argument", err.Error())
		return
	}

	err = room.table.Act(identity, game.Action{Kind: kind, Total: data.Total})
	switch {
	case errors.Is(err, game.ErrNotSeated):
		conn.sendError("not-in-hand", "not seated")
	case errors.Is(err, game.ErrNotInHand):
		conn.sendError("not-in-hand", "no betting in progress")
	case errors.Is(err, game.ErrIllegalAction):
		conn.sendError("illegal-action", err.Error())
	case errors.Is(err, game.ErrInvalidArgument):
		conn.sendError("invalid-argument", err.Error())
	case err != nil:
		conn.sendError("internal", err.Error())
	}
}

// HandleSitOut toggles sitting out.
func (c *Coordinator) HandleSitOut(conn *Connection, data SitOutData) {
	room, identity, ok := c.seatedRoom(conn, data.TableID)
	if !ok {
		return
	}
	if err := room.table.SitOut(identity); err != nil {
		conn.sendError("not-in-hand", err.Error())
	}
}

// HandleSitBackIn returns a sat-out player to play.
func (c *Coordinator) HandleSitBackIn(conn *Connection, data SitBackInData) {
	room, identity, ok := c.seatedRoom(conn, data.TableID)
	if !ok {
		return
	}
	if err := room.table.SitBackIn(identity); err != nil {
		conn.sendError("not-in-hand", err.Error())
	}
}

// HandleRebuy adds chips between hands.
func (c *Coordinator) HandleRebuy(conn *Connection, data RebuyData) {
	room, identity, ok := c.seatedRoom(conn, data.TableID)
	if !ok {
		return
	}
	if !c.rate.Allow(identity, "rebuy") {
		conn.sendError("rate-limited", "slow down")
		return
	}
	if _, err := room.table.Rebuy(identity, data.Amount); err != nil {
		conn.sendError("illegal-action", err.Error())
	}
}

// LeaveTable vacates the seat or drops the observer subscription.
func (c *Coordinator) LeaveTable(conn *Connection, data LeaveTableData) {
	room := c.room(data.TableID)
	if room == nil {
		conn.sendError("table-not-found", data.TableID)
		return
	}

	if _, observing := conn.getTable(); observing {
		room.mu.Lock()
		delete(room.observers, conn)
		room.mu.Unlock()
		conn.setTable("", false)
		return
	}

	identity := conn.getIdentity()
	if identity == "" {
		return
	}
	if err := room.table.Leave(identity); err != nil {
		conn.sendError("not-in-hand", err.Error())
	}
}

// HandleChat length-clamps and fans a chat line out to the room.
func (c *Coordinator) HandleChat(conn *Connection, data ChatData) {
	room := c.room(data.TableID)
	if room == nil {
		conn.sendError("table-not-found", data.TableID)
		return
	}
	identity := conn.getIdentity()
	if !c.rate.Allow(identity, "chat") {
		conn.sendError("rate-limited", "slow down")
		return
	}

	text := data.Text
	if len(text) > maxChatLen {
		text = text[:maxChatLen]
	}
	if text == "" {
		return
	}

	_, observer := conn.getTable()
	from := conn.getHandle()
	msg, err := NewMessage(MessageTypeChat, ChatBroadcastData{
		TableID: data.TableID, From: from, Observer: observer, Text: text,
	})
	if err != nil {
		return
	}
	c.broadcast(room, msg)
}

// reportAbuse writes a protocol-abuse row. Failures only log.
func (c *Coordinator) reportAbuse(conn *Connection, kind, detail string) {
	if err := c.db.LogAbuse(conn.getIdentity(), conn.remoteIP, kind, detail); err != nil {
		c.logger.Error("abuse log failed", "error", err)
	}
}

// connectionClosed handles a dropped transport: observers unsubscribe,
// seated players get the disconnect grace before sit-out escalation.
func (c *Coordinator) connectionClosed(conn *Connection) {
	tableID, observing := conn.getTable()
	if tableID == "" {
		return
	}
	room := c.room(tableID)
	if room == nil {
		return
	}

	if observing {
		room.mu.Lock()
		delete(room.observers, conn)
		room.mu.Unlock()
		return
	}

	identity := conn.getIdentity()
	room.mu.Lock()
	// A reconnect may already have swapped the transport; only the
	// current one escalates.
	if room.players[identity] != conn {
		room.mu.Unlock()
		return
	}
	delete(room.players, identity)

	room.table.SetDisconnected(identity, true)
	if timer, ok := room.grace[identity]; ok {
		timer.Stop()
	}
	room.grace[identity] = c.clock.AfterFunc(c.cfg.DisconnectGrace(), func() {
		room.mu.Lock()
		_, reconnected := room.players[identity]
		delete(room.grace, identity)
		room.mu.Unlock()
		if !reconnected {
			c.logger.Info("disconnect grace expired", "identity", identity, "table", tableID)
			room.table.ForceSitOut(identity)
		}
	})
	room.mu.Unlock()

	c.logger.Info("player disconnected", "identity", identity, "table", tableID)
}

// --- event fan-out ---

// pumpEvents drains one table's event stream and fans it out. Events
// arrive in emission order, so log lines always precede the snapshot
// that reflects them.
func (c *Coordinator) pumpEvents(room *tableRoom) {
	for {
		select {
		case ev := <-room.events:
			c.dispatch(room, ev)
		case <-room.done:
			return
		}
	}
}

func (c *Coordinator) dispatch(room *tableRoom, ev game.Event) {
	tableID := room.table.ID()

	switch e := ev.(type) {
	case game.StateChangedEvent:
		c.broadcastState(room, e.Snapshot)

	case game.TimerStartEvent:
		msg, err := NewMessage(MessageTypeTimerStart, TimerStartData{
			TableID: tableID, Seat: e.Seat, DurationMs: e.Duration.Milliseconds(),
		})
		if err == nil {
			c.broadcast(room, msg)
		}

	case game.TimeBankStartEvent:
		msg, err := NewMessage(MessageTypeTimeBankStart, TimeBankStartData{
			TableID: tableID, Seat: e.Seat, RemainingMs: e.Remaining.Milliseconds(),
		})
		if err == nil {
			c.broadcast(room, msg)
		}

	case game.LogLineEvent:
		data := HandLogData{TableID: tableID, Line: e.Line}
		if e.Private != "" {
			room.mu.Lock()
			conn := room.players[e.Private]
			room.mu.Unlock()
			if conn != nil {
				conn.sendPayload(MessageTypeHandLog, data)
			}
			return
		}
		msg, err := NewMessage(MessageTypeHandLog, data)
		if err == nil {
			c.broadcast(room, msg)
		}

	case game.HandCompleteEvent:
		room.mu.Lock()
		conns := make(map[*Connection]string)
		for identity, logText := range e.Logs {
			if conn := room.players[identity]; conn != nil {
				conns[conn] = logText
			}
		}
		room.mu.Unlock()
		for conn, logText := range conns {
			conn.sendPayload(MessageTypeHandComplete, HandCompleteData{
				TableID: tableID, HandID: e.HandID, Log: logText,
			})
		}

	case game.PlayerLeavingEvent:
		if err := c.db.UpdatePlayer(game.PlayerUpdate{Identity: e.Identity, Chips: e.Chips}); err != nil {
			c.logger.Error("persist leaving chips failed", "identity", e.Identity, "error", err)
		}
		if err := c.db.RecordDeparture(e.Identity, tableID, e.Chips); err != nil {
			c.logger.Error("record departure failed", "identity", e.Identity, "error", err)
		}
		room.mu.Lock()
		conn := room.players[e.Identity]
		delete(room.players, e.Identity)
		if timer, ok := room.grace[e.Identity]; ok {
			timer.Stop()
			delete(room.grace, e.Identity)
		}
		room.mu.Unlock()
		if conn != nil {
			conn.setTable("", false)
			conn.sendPayload(MessageTypeProfileUpdated, ProfileUpdatedData{
				Identity: e.Identity, Handle: conn.getHandle(), Chips: e.Chips,
			})
		}

	case game.RebuyEvent:
		room.mu.Lock()
		conn := room.players[e.Identity]
		room.mu.Unlock()
		if conn != nil {
			conn.sendPayload(MessageTypeProfileUpdated, ProfileUpdatedData{
				Identity: e.Identity, Handle: conn.getHandle(), Chips: e.Chips,
			})
		}

	case game.TableMaybeEmptyEvent:
		// Tables are configured statically; an empty one just idles.
		c.logger.Debug("table empty", "table", tableID)
	}
}

// broadcastState sends each subscriber its own filtered view.
func (c *Coordinator) broadcastState(room *tableRoom, snap game.Snapshot) {
	room.mu.Lock()
	players := make(map[string]*Connection, len(room.players))
	for identity, conn := range room.players {
		players[identity] = conn
	}
	observers := make([]*Connection, 0, len(room.observers))
	for conn := range room.observers {
		observers = append(observers, conn)
	}
	room.mu.Unlock()

	for identity, conn := range players {
		conn.sendPayload(MessageTypeGameState, filterSnapshot(snap, identity))
	}
	if len(observers) > 0 {
		view := filterSnapshot(snap, "")
		for _, conn := range observers {
			conn.sendPayload(MessageTypeGameState, view)
		}
	}
}

// broadcast sends one message to every subscriber.
func (c *Coordinator) broadcast(room *tableRoom, msg *Message) {
	room.mu.Lock()
	conns := make([]*Connection, 0, len(room.players)+len(room.observers))
	for _, conn := range room.players {
		conns = append(conns, conn)
	}
	for conn := range room.observers {
		conns = append(conns, conn)
	}
	room.mu.Unlock()

	for _, conn := range conns {
		conn.sendMessage(msg)
	}
}

// filterSnapshot derives the view for one identity: hole cards are
// visible only on the viewer's own seat, or on every not-folded seat
// at showdown.
func filterSnapshot(snap game.Snapshot, viewer string) GameStateData {
	out := GameStateData{
		TableID:    snap.TableID,
		HandID:     snap.HandID,
		Phase:      snap.Phase.String(),
		Board:      cardStrings(snap.Board),
		Pot:        snap.Pot,
		ChipPile:   append([]int(nil), snap.ChipPile...),
		Dealer:     snap.Dealer,
		Actor:      snap.Actor,
		SmallBlind: snap.SmallBlind,
		BigBlind:   snap.BigBlind,
		CurrentBet: snap.CurrentBet,
		MinRaiseTo: snap.MinRaiseTo,
		Seats:      make([]SeatData, len(snap.Seats)),
	}
	for i, s := range snap.Seats {
		if !s.Occupied {
			continue
		}
		seat := SeatData{
			Occupied:     true,
			Handle:       s.Handle,
			Stack:        s.Stack,
			Bet:          s.Bet,
			TotalBet:     s.TotalBet,
			Folded:       s.Folded,
			AllIn:        s.AllIn,
			SittingOut:   s.SittingOut,
			Disconnected: s.Disconnected,
		}
		ownSeat := viewer != "" && s.Identity == viewer
		showdown := snap.Phase == game.PhaseShowdown && !s.Folded
		if ownSeat || showdown {
			seat.HoleCards = cardStrings(s.HoleCards)
		}
		out.Seats[i] = seat
	}
	return out
}

func cardStrings(cards []deck.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}
