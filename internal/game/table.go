// Package game implements the authoritative state machine for a single
// six-seat no-limit hold'em table: seating, blinds, dealing, betting
// rounds, side pots, showdown and hand history. The server alone owns
// the deck, the random source, chip accounting, timers and action
// validation; clients only ever submit actions and receive snapshots.
package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/cardroom/holdemd/internal/deck"
	"github.com/cardroom/holdemd/internal/evaluator"
)

// Phase is the table state machine phase.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePreflop
	PhaseFlop
	PhaseTurn
	PhaseRiver
	PhaseShowdown
)

// String returns the lowercase phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePreflop:
		return "preflop"
	case PhaseFlop:
		return "flop"
	case PhaseTurn:
		return "turn"
	case PhaseRiver:
		return "river"
	case PhaseShowdown:
		return "showdown"
	default:
		return "unknown"
	}
}

// betting reports whether the phase accepts player actions.
func (p Phase) betting() bool {
	return p >= PhasePreflop && p <= PhaseRiver
}

// Table is one poker table. All state is guarded by mu; scheduled
// callbacks (hand start, timer expiries, run-out steps, kick timers)
// re-acquire the lock and verify their preconditions still hold, so a
// stale callback is always a no-op.
type Table struct {
	mu sync.Mutex

	id      string
	cfg     Config
	logger  *log.Logger
	clock   quartz.Clock
	rng     deck.Source
	archive Archiver
	sink    func(Event)

	seats []*Player
	dck   *deck.Deck
	board []deck.Card
	burns []deck.Card

	pot      int
	chipPile []int

	dealer        int
	actor         int
	phase         Phase
	lastRaise     int
	lastAggressor int
	acted         map[int]bool

	handCounter uint64
	handStart   time.Time
	hl          handLog
	sbSeat      int
	bbSeat      int
	revealed    bool

	timer          *actionTimer
	handStartTimer *quartz.Timer
	runoutTimer    *quartz.Timer
	kickTimers     map[int]*quartz.Timer

	closed bool
}

// NewTable creates a table. sink receives the outbound event stream
// and may be nil; it is invoked under the table lock and must only
// enqueue, never call back in.
func NewTable(id string, cfg Config, logger *log.Logger, clock quartz.Clock, rng deck.Source, archive Archiver, sink func(Event)) *Table {
	cfg.ApplyDefaults()
	if archive == nil {
		archive = NopArchiver{}
	}
	t := &Table{
		id:            id,
		cfg:           cfg,
		logger:        logger.WithPrefix("table").With("table", id),
		clock:         clock,
		rng:           rng,
		archive:       archive,
		sink:          sink,
		seats:         make([]*Player, cfg.NumSeats),
		dealer:        -1,
		actor:         -1,
		lastAggressor: -1,
		acted:         make(map[int]bool),
		timer:         newActionTimer(clock),
		kickTimers:    make(map[int]*quartz.Timer),
	}
	return t
}

// ID returns the table identifier.
func (t *Table) ID() string { return t.id }

// Config returns the table configuration.
func (t *Table) Config() Config { return t.cfg }

// Close cancels every pending scheduled callback. The table must not
// be used afterwards.
func (t *Table) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.timer.stop()
	if t.handStartTimer != nil {
		t.handStartTimer.Stop()
		t.handStartTimer = nil
	}
	if t.runoutTimer != nil {
		t.runoutTimer.Stop()
		t.runoutTimer = nil
	}
	for seat, timer := range t.kickTimers {
		timer.Stop()
		delete(t.kickTimers, seat)
	}
}

func (t *Table) emit(ev Event) {
	if t.sink != nil {
		t.sink(ev)
	}
}

func (t *Table) emitState() {
	t.emit(StateChangedEvent{Snapshot: t.snapshotLocked()})
}

// SeatOf returns the seat index for an identity.
func (t *Table) SeatOf(identity string) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	seat := t.seatOf(identity)
	return seat, seat >= 0
}

func (t *Table) seatOf(identity string) int {
	for i, p := range t.seats {
		if p != nil && p.Identity == identity {
			return i
		}
	}
	return -1
}

// Snapshot returns a point-in-time unfiltered copy of table state.
func (t *Table) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Table) snapshotLocked() Snapshot {
	snap := Snapshot{
		TableID:    t.id,
		HandID:     t.handCounter,
		Phase:      t.phase,
		Board:      append([]deck.Card(nil), t.board...),
		Pot:        t.pot,
		ChipPile:   append([]int(nil), t.chipPile...),
		Dealer:     t.dealer,
		Actor:      t.actor,
		SmallBlind: t.cfg.SmallBlind,
		BigBlind:   t.cfg.BigBlind,
		CurrentBet: t.maxBet(),
		MinRaiseTo: t.minRaiseTo(),
		Seats:      make([]SeatView, len(t.seats)),
	}
	for i, p := range t.seats {
		if p == nil {
			continue
		}
		snap.Seats[i] = SeatView{
			Occupied:     true,
			Identity:     p.Identity,
			Handle:       p.Handle,
			Stack:        p.Stack,
			Bet:          p.Bet,
			TotalBet:     p.TotalBet,
			Folded:       p.Folded,
			AllIn:        p.AllIn,
			SittingOut:   p.SittingOut,
			Disconnected: p.Disconnected,
			HoleCards:    append([]deck.Card(nil), p.HoleCards...),
		}
	}
	return snap
}

// Join seats an identity. If the identity already holds a seat the
// existing seat is returned with ErrAlreadySeated (a soft no-op). The
// buy-in is clamped to the configured range; anti-rathole clamping is
// the caller's concern since it needs persisted history.
func (t *Table) Join(identity, handle string, preferredSeat, buyIn int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if seat := t.seatOf(identity); seat >= 0 {
		return seat, ErrAlreadySeated
	}

	seat := -1
	if preferredSeat >= 0 && preferredSeat < len(t.seats) && t.seats[preferredSeat] == nil {
		seat = preferredSeat
	} else {
		for i, p := range t.seats {
			if p == nil {
				seat = i
				break
			}
		}
	}
	if seat == -1 {
		return -1, ErrTableFull
	}

	buyIn = max(t.cfg.MinBuyIn, min(buyIn, t.cfg.MaxBuyIn))

	t.seats[seat] = &Player{
		Identity:     identity,
		Handle:       handle,
		Stack:        buyIn,
		PreflopBank:  t.cfg.DefaultTimeBank,
		PostflopBank: t.cfg.DefaultTimeBank,
	}
	t.logger.Info("player seated", "identity", identity, "handle", handle, "seat", seat, "buyin", buyIn)

	t.emitState()
	t.scheduleHandStart()
	return seat, nil
}

// Leave vacates an identity's seat. Mid-hand the player is folded and
// removal is deferred until the hand ends.
func (t *Table) Leave(identity string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	seat := t.seatOf(identity)
	if seat == -1 {
		return ErrNotSeated
	}
	p := t.seats[seat]

	if p.InHand && t.phase != PhaseIdle {
		// Deferred removal; set before folding because the fold can end
		// the hand synchronously.
		p.PendingRemoval = true
		if !p.Folded && t.phase.betting() {
			t.foldSeat(seat, "leaves and folds")
		}
		t.emitState()
		return nil
	}

	t.removeSeat(seat)
	t.emitState()
	return nil
}

// SetDisconnected flags a seated identity's transport state.
func (t *Table) SetDisconnected(identity string, disconnected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	seat := t.seatOf(identity)
	if seat == -1 {
		return
	}
	t.seats[seat].Disconnected = disconnected
	t.emitState()
}

// SitOut toggles the sit-out-next-hand flag for a player in a live
// hand, or sits the player out immediately between hands.
func (t *Table) SitOut(identity string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	seat := t.seatOf(identity)
	if seat == -1 {
		return ErrNotSeated
	}
	p := t.seats[seat]

	if p.InHand && !p.Folded && t.phase != PhaseIdle {
		p.SitOutNextHand = !p.SitOutNextHand
	} else {
		t.sitOutNow(seat)
	}
	t.emitState()
	return nil
}

// ForceSitOut sits a player out immediately, folding their live hand
// if any. Used by the coordinator when the disconnect grace expires.
func (t *Table) ForceSitOut(identity string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	seat := t.seatOf(identity)
	if seat == -1 {
		return
	}
	p := t.seats[seat]
	if p.InHand && !p.Folded && t.phase.betting() {
		t.foldSeat(seat, "folds (disconnected)")
	}
	t.sitOutNow(seat)
	t.emitState()
}

func (t *Table) sitOutNow(seat int) {
	p := t.seats[seat]
	p.SittingOut = true
	p.SitOutNextHand = false
	t.armKick(seat)
}

// SitBackIn clears sit-out state and cancels the pending kick.
func (t *Table) SitBackIn(identity string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	seat := t.seatOf(identity)
	if seat == -1 {
		return ErrNotSeated
	}
	p := t.seats[seat]
	p.SittingOut = false
	p.SitOutNextHand = false
	t.cancelKick(seat)
	t.emitState()
	t.scheduleHandStart()
	return nil
}

// Rebuy adds chips to a player who is not contesting a live hand. The
// amount is clamped to the buy-in range; busted and sitting-out flags
// are cleared and the new chip total persisted.
func (t *Table) Rebuy(identity string, amount int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	seat := t.seatOf(identity)
	if seat == -1 {
		return 0, ErrNotSeated
	}
	p := t.seats[seat]
	if p.InHand && !p.Folded && t.phase != PhaseIdle {
		return 0, ErrRebuyDenied
	}

	amount = max(t.cfg.MinBuyIn, min(amount, t.cfg.MaxBuyIn))
	p.Stack += amount
	p.Busted = false
	p.SittingOut = false
	p.SitOutNextHand = false
	t.cancelKick(seat)

	if err := t.archive.UpdatePlayer(PlayerUpdate{Identity: p.Identity, Handle: p.Handle, Chips: p.Stack}); err != nil {
		t.logger.Error("rebuy persist failed", "identity", p.Identity, "error", err)
	}

	t.logger.Info("rebuy", "identity", identity, "amount", amount, "stack", p.Stack)
	t.emit(RebuyEvent{Seat: seat, Identity: identity, Chips: p.Stack})
	t.emitState()
	t.scheduleHandStart()
	return p.Stack, nil
}

// Act validates and applies a player action. Validation happens before
// the action timer is touched so repeated invalid actions cannot reset
// the countdown.
func (t *Table) Act(identity string, action Action) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	seat := t.seatOf(identity)
	if seat == -1 {
		return ErrNotSeated
	}
	if !t.phase.betting() {
		return ErrNotInHand
	}
	if seat != t.actor {
		return fmt.Errorf("%w: not your turn", ErrIllegalAction)
	}
	p := t.seats[seat]
	if !p.CanAct() {
		return fmt.Errorf("%w: cannot act", ErrIllegalAction)
	}

	action, err := t.validate(seat, action)
	if err != nil {
		return err
	}

	// Only now touch the timer: deduct any time-bank burn and cancel.
	t.settleTimer(seat)

	t.apply(seat, action, false)
	return nil
}

// validate checks an action against the betting state without mutating
// anything. It may rewrite a raise into a call when no opponent can
// contest further chips.
func (t *Table) validate(seat int, a Action) (Action, error) {
	p := t.seats[seat]
	maxBet := t.maxBet()

	switch a.Kind {
	case Fold, Call:
		return a, nil

	case Check:
		if p.Bet != maxBet {
			return a, fmt.Errorf("%w: cannot check facing a bet of %d", ErrIllegalAction, maxBet)
		}
		return a, nil

	case Raise:
		if a.Total <= maxBet {
			return a, fmt.Errorf("%w: raise total %d must exceed current bet %d", ErrInvalidArgument, a.Total, maxBet)
		}
		if a.Total-p.Bet > p.Stack {
			return a, fmt.Errorf("%w: raise total %d exceeds stack", ErrInvalidArgument, a.Total)
		}
		// If every live opponent is already all-in for no more than the
		// current bet, further chips are uncontestable: cap to a call.
		if !t.anyContestableOpponent(seat, maxBet) {
			return Action{Kind: Call}, nil
		}
		minTotal := maxBet + max(t.cfg.BigBlind, t.lastRaise)
		if a.Total < minTotal && a.Total != p.Bet+p.Stack {
			return a, fmt.Errorf("%w: minimum raise is to %d", ErrInvalidArgument, minTotal)
		}
		return a, nil

	default:
		return a, fmt.Errorf("%w: unknown action", ErrInvalidArgument)
	}
}

// anyContestableOpponent reports whether any not-folded opponent could
// still put more chips in against a bet above maxBet.
func (t *Table) anyContestableOpponent(seat, maxBet int) bool {
	for i, p := range t.seats {
		if i == seat || p == nil || !p.InHand || p.Folded {
			continue
		}
		if !p.AllIn || p.Bet > maxBet {
			return true
		}
	}
	return false
}

// settleTimer deducts time-bank burn for the current phase and stops
// the action timer.
func (t *Table) settleTimer(seat int) {
	elapsed := t.timer.stop()
	if elapsed <= 0 {
		return
	}
	pool := t.seats[seat].bank(t.phase)
	*pool -= elapsed
	if *pool < 0 {
		*pool = 0
	}
}

// apply mutates state for a validated action and advances the hand.
func (t *Table) apply(seat int, a Action, timedOut bool) {
	p := t.seats[seat]
	maxBet := t.maxBet()
	suffix := ""
	if timedOut {
		suffix = " (timed out)"
	}

	switch a.Kind {
	case Fold:
		p.Folded = true
		p.foldPhase = t.phase
		t.acted[seat] = true
		if t.lastAggressor == seat {
			t.lastAggressor = -1
		}
		t.record(p, "folds"+suffix)

	case Check:
		t.acted[seat] = true
		t.record(p, "checks"+suffix)

	case Call:
		toCall := maxBet - p.Bet
		paid := p.commit(toCall)
		t.acted[seat] = true
		switch {
		case paid == 0:
			t.record(p, "checks"+suffix)
		case p.AllIn:
			t.record(p, fmt.Sprintf("calls %d and is all-in", paid))
		default:
			t.record(p, fmt.Sprintf("calls %d", paid))
		}

	case Raise:
		raiseSize := a.Total - maxBet
		legal := a.Total >= maxBet+max(t.cfg.BigBlind, t.lastRaise)
		p.commit(a.Total - p.Bet)
		t.lastAggressor = seat
		if legal {
			// A full raise reopens the betting line.
			t.lastRaise = raiseSize
			t.acted = map[int]bool{}
		}
		// An all-in under-raise does not reopen action: players who
		// already acted keep their acted mark and may only call or fold.
		t.acted[seat] = true
		if p.AllIn {
			t.record(p, fmt.Sprintf("raises to %d and is all-in", p.Bet))
		} else {
			t.record(p, fmt.Sprintf("raises to %d", p.Bet))
		}
	}

	t.advanceAfterAction(seat)
}

// advanceAfterAction moves the hand forward after seat acted or was
// force-folded.
func (t *Table) advanceAfterAction(seat int) {
	if t.notFoldedCount() == 1 {
		t.awardUncontested()
		return
	}

	if t.roundDone() {
		t.endStreet()
		return
	}

	next := t.nextActor(seat + 1)
	if next == -1 {
		t.endStreet()
		return
	}
	t.actor = next
	t.emitState()
	t.startActionTimer()
}

// foldSeat folds a seat immediately regardless of turn order. Used for
// disconnects and leaves. Assumes the lock is held.
func (t *Table) foldSeat(seat int, note string) {
	p := t.seats[seat]
	if p == nil || !p.InHand || p.Folded || !t.phase.betting() {
		return
	}
	wasActor := seat == t.actor
	if wasActor {
		t.settleTimer(seat)
	}
	p.Folded = true
	p.foldPhase = t.phase
	t.acted[seat] = true
	if t.lastAggressor == seat {
		t.lastAggressor = -1
	}
	t.record(p, note)

	if wasActor {
		t.advanceAfterAction(seat)
		return
	}
	if t.notFoldedCount() == 1 {
		t.awardUncontested()
		return
	}
	if t.roundDone() {
		t.endStreet()
	}
}

// --- betting state helpers ---

func (t *Table) maxBet() int {
	maxBet := 0
	for _, p := range t.seats {
		if p != nil && p.InHand && p.Bet > maxBet {
			maxBet = p.Bet
		}
	}
	return maxBet
}

func (t *Table) minRaiseTo() int {
	if !t.phase.betting() {
		return 0
	}
	return t.maxBet() + max(t.cfg.BigBlind, t.lastRaise)
}

func (t *Table) notFoldedCount() int {
	n := 0
	for _, p := range t.seats {
		if p != nil && p.InHand && !p.Folded {
			n++
		}
	}
	return n
}

func (t *Table) canActCount() int {
	n := 0
	for _, p := range t.seats {
		if p != nil && p.CanAct() {
			n++
		}
	}
	return n
}

// roundDone reports whether the current street's betting is finished:
// every seat that can still act has acted this round and matched the
// maximum committed bet.
func (t *Table) roundDone() bool {
	maxBet := t.maxBet()
	for i, p := range t.seats {
		if p == nil || !p.CanAct() {
			continue
		}
		if !t.acted[i] || p.Bet != maxBet {
			return false
		}
	}
	return true
}

// nextActor scans clockwise from seat for the next player able to act.
func (t *Table) nextActor(from int) int {
	n := len(t.seats)
	for i := 0; i < n; i++ {
		seat := (from + i) % n
		if p := t.seats[seat]; p != nil && p.CanAct() {
			return seat
		}
	}
	return -1
}

// nextParticipant scans clockwise from seat+1 for the next seat dealt
// into the current hand.
func (t *Table) nextParticipant(seat int) int {
	n := len(t.seats)
	for i := 1; i <= n; i++ {
		s := (seat + i) % n
		if p := t.seats[s]; p != nil && p.InHand {
			return s
		}
	}
	return -1
}

// --- hand lifecycle ---

// scheduleHandStart arms the debounced hand-start check. The delay
// gives rapid joins a chance to land in the same hand.
func (t *Table) scheduleHandStart() {
	if t.closed || t.handStartTimer != nil || t.phase != PhaseIdle {
		return
	}
	if t.eligibleCount() < 2 {
		return
	}
	t.handStartTimer = t.clock.AfterFunc(t.cfg.HandStartDelay, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.handStartTimer = nil
		if t.closed || t.phase != PhaseIdle {
			return
		}
		t.startHand()
	})
}

func (t *Table) eligibleCount() int {
	n := 0
	for _, p := range t.seats {
		if p != nil && p.Eligible() {
			n++
		}
	}
	return n
}

func (t *Table) startHand() {
	// Apply deferred sit-outs before checking eligibility.
	for seat, p := range t.seats {
		if p != nil && p.SitOutNextHand {
			t.sitOutNow(seat)
		}
	}
	if t.eligibleCount() < 2 {
		return
	}

	t.handCounter++
	t.handStart = t.clock.Now()
	t.hl = handLog{}
	t.board = nil
	t.burns = nil
	t.pot = 0
	t.chipPile = nil
	t.lastRaise = 0
	t.lastAggressor = -1
	t.acted = map[int]bool{}
	t.revealed = false

	for _, p := range t.seats {
		if p != nil && p.Eligible() {
			p.resetForHand()
			p.InHand = true
			p.HandsDealt++
			p.accrueTimeBank(t.cfg.TimeBankGrowthHands, t.cfg.TimeBankGrowth, t.cfg.TimeBankCap)
		}
	}

	// Button starts at the lowest eligible seat and then advances to
	// the next eligible seat each hand.
	if t.dealer == -1 {
		t.dealer = t.nextParticipant(len(t.seats) - 1)
	} else {
		t.dealer = t.nextParticipant(t.dealer)
	}

	t.dck = deck.New(t.rng)
	t.dck.Shuffle()

	t.logHeader()

	t.phase = PhasePreflop

	// Blinds: heads-up the button posts the small blind and acts first
	// preflop; multi-way the two seats after the button post.
	if t.participantCount() == 2 {
		t.sbSeat = t.dealer
		t.bbSeat = t.nextParticipant(t.dealer)
	} else {
		t.sbSeat = t.nextParticipant(t.dealer)
		t.bbSeat = t.nextParticipant(t.sbSeat)
	}
	t.postBlind(t.sbSeat, t.cfg.SmallBlind, "small")
	t.postBlind(t.bbSeat, t.cfg.BigBlind, "big")

	t.dealHoleCards()

	if t.participantCount() == 2 {
		t.actor = t.firstActorFrom(t.sbSeat)
	} else {
		t.actor = t.firstActorFrom(t.nextParticipant(t.bbSeat))
	}

	t.logger.Info("hand started", "hand", t.handCounter, "dealer", t.dealer, "players", t.participantCount())
	t.emitState()

	if t.actor == -1 || t.canActCount() <= 1 {
		// Blinds put someone all-in with no one left to act.
		if t.roundDone() {
			t.endStreet()
			return
		}
	}
	t.startActionTimer()
}

func (t *Table) participantCount() int {
	n := 0
	for _, p := range t.seats {
		if p != nil && p.InHand {
			n++
		}
	}
	return n
}

// firstActorFrom returns seat itself if it can act, else the next
// actor clockwise.
func (t *Table) firstActorFrom(seat int) int {
	if seat >= 0 {
		if p := t.seats[seat]; p != nil && p.CanAct() {
			return seat
		}
		return t.nextActor(seat + 1)
	}
	return -1
}

func (t *Table) logHeader() {
	t.emitLine(t.hl.publicLine(fmt.Sprintf("Hand #%d - No Limit Hold'em (%d/%d) - %s",
		t.handCounter, t.cfg.SmallBlind, t.cfg.BigBlind, t.handStart.UTC().Format("2006/01/02 15:04:05 MST"))))
	for seat, p := range t.seats {
		if p != nil && p.InHand {
			t.emitLine(t.hl.publicLine(fmt.Sprintf("Seat %d: %s (%d in chips)", seat, p.Handle, p.startStack)))
		}
	}
}

func (t *Table) postBlind(seat, amount int, which string) {
	p := t.seats[seat]
	paid := p.commit(amount)
	line := fmt.Sprintf("%s: posts %s blind %d", p.Handle, which, paid)
	if p.AllIn {
		line += " and is all-in"
	}
	p.actions = append(p.actions, t.phaseTag()+line)
	t.emitLine(t.hl.publicLine(line))

	switch {
	case which == "big":
		p.position = "big blind"
	case seat == t.dealer:
		p.position = "button"
	default:
		p.position = "small blind"
	}
}

func (t *Table) dealHoleCards() {
	// Two passes clockwise from the dealer's left.
	for round := 0; round < 2; round++ {
		seat := t.dealer
		for i := 0; i < t.participantCount(); i++ {
			seat = t.nextParticipant(seat)
			p := t.seats[seat]
			card, ok := t.dck.Draw()
			if !ok {
				// 6 players consume at most 17 cards with burns; a short
				// deck here means corrupted state.
				panic("game: deck exhausted dealing hole cards")
			}
			p.HoleCards = append(p.HoleCards, card)
		}
	}
	for seat, p := range t.seats {
		if p == nil || !p.InHand {
			continue
		}
		if p.position == "" {
			if seat == t.dealer {
				p.position = "button"
			} else {
				p.position = "other"
			}
		}
		t.emitLine(t.hl.privateLine(p.Identity, fmt.Sprintf("Dealt to %s [%s]", p.Handle, deck.FormatCards(p.HoleCards))))
	}
}

// --- street progression ---

// endStreet collects bets and either deals the next street, runs the
// board out without action, or goes to showdown.
func (t *Table) endStreet() {
	t.collectBets()
	t.actor = -1

	if t.phase == PhaseRiver {
		t.showdown()
		return
	}

	if t.canActCount() <= 1 {
		t.beginRunout()
		return
	}

	t.dealNextStreet()
	t.actor = t.firstActorFrom(t.nextParticipant(t.dealer))
	t.emitState()
	t.startActionTimer()
}

// collectBets sweeps street bets into the pot and the display chip
// pile. The pile always sums to the pot scalar.
func (t *Table) collectBets() {
	collected := 0
	for _, p := range t.seats {
		if p != nil && p.Bet > 0 {
			collected += p.Bet
			p.Bet = 0
		}
	}
	if collected > 0 {
		t.pot += collected
		t.chipPile = append(t.chipPile, breakDown(collected)...)
	}
	t.lastRaise = 0
	t.lastAggressor = -1
	t.acted = map[int]bool{}
}

// dealNextStreet burns one card and deals the next street's cards.
func (t *Table) dealNextStreet() {
	burn, _ := t.dck.Burn()
	t.burns = append(t.burns, burn)

	switch t.phase {
	case PhasePreflop:
		t.board = append(t.board, t.dck.DrawN(3)...)
		t.phase = PhaseFlop
		t.emitLine(t.hl.publicLine(fmt.Sprintf("*** FLOP *** [%s]", deck.FormatCards(t.board))))
	case PhaseFlop:
		t.board = append(t.board, t.dck.DrawN(1)...)
		t.phase = PhaseTurn
		t.emitLine(t.hl.publicLine(fmt.Sprintf("*** TURN *** [%s] [%s]",
			deck.FormatCards(t.board[:3]), t.board[3])))
	case PhaseTurn:
		t.board = append(t.board, t.dck.DrawN(1)...)
		t.phase = PhaseRiver
		t.emitLine(t.hl.publicLine(fmt.Sprintf("*** RIVER *** [%s] [%s]",
			deck.FormatCards(t.board[:4]), t.board[4])))
	}
}

// beginRunout starts the dramatic run-out: reveal the hole cards now,
// then deal the remaining streets on a human-perceivable schedule.
func (t *Table) beginRunout() {
	t.phase = PhaseShowdown
	t.revealShowdown(false)
	t.emitState()
	t.scheduleRunoutStep(t.cfg.RunoutReveal)
}

func (t *Table) scheduleRunoutStep(delay time.Duration) {
	hand := t.handCounter
	t.runoutTimer = t.clock.AfterFunc(delay, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.closed || t.handCounter != hand || t.phase != PhaseShowdown {
			return
		}
		t.runoutStep()
	})
}

// runoutStep deals the next missing street, or awards when the board
// is complete. Assumes the lock is held and phase is showdown.
func (t *Table) runoutStep() {
	if len(t.board) >= 5 {
		t.runoutTimer = nil
		t.showdown()
		return
	}

	burn, _ := t.dck.Burn()
	t.burns = append(t.burns, burn)

	var next time.Duration
	switch len(t.board) {
	case 0:
		t.board = append(t.board, t.dck.DrawN(3)...)
		t.emitLine(t.hl.publicLine(fmt.Sprintf("*** FLOP *** [%s]", deck.FormatCards(t.board))))
		next = t.cfg.RunoutTurn
	case 3:
		t.board = append(t.board, t.dck.DrawN(1)...)
		t.emitLine(t.hl.publicLine(fmt.Sprintf("*** TURN *** [%s] [%s]",
			deck.FormatCards(t.board[:3]), t.board[3])))
		next = t.cfg.RunoutRiver
	case 4:
		t.board = append(t.board, t.dck.DrawN(1)...)
		t.emitLine(t.hl.publicLine(fmt.Sprintf("*** RIVER *** [%s] [%s]",
			deck.FormatCards(t.board[:4]), t.board[4])))
		next = t.cfg.RunoutFlop
	}
	t.emitState()
	t.scheduleRunoutStep(next)
}

// revealShowdown logs the show lines. withValues includes the final
// hand names (only known once the board is complete).
func (t *Table) revealShowdown(withValues bool) {
	if t.revealed {
		return
	}
	t.revealed = true
	t.emitLine(t.hl.publicLine("*** SHOW DOWN ***"))
	for _, p := range t.seats {
		if p == nil || !p.InHand || p.Folded {
			continue
		}
		if withValues && p.handValue != nil {
			t.emitLine(t.hl.publicLine(fmt.Sprintf("%s: shows [%s] (%s)", p.Handle, deck.FormatCards(p.HoleCards), p.handValue.Name())))
		} else {
			t.emitLine(t.hl.publicLine(fmt.Sprintf("%s: shows [%s]", p.Handle, deck.FormatCards(p.HoleCards))))
		}
	}
}

// --- hand end ---

// awardUncontested gives the whole pot to the last not-folded player
// without consulting the evaluator.
func (t *Table) awardUncontested() {
	t.collectBets()
	t.actor = -1
	t.phase = PhaseShowdown

	for _, p := range t.seats {
		if p == nil || !p.InHand || p.Folded {
			continue
		}
		p.Stack += t.pot
		p.wonAmount = t.pot
		t.emitLine(t.hl.publicLine(fmt.Sprintf("%s collected %d from pot", p.Handle, t.pot)))
		break
	}
	t.finishHand()
}

// showdown evaluates all live hands, builds the pots and distributes
// them with deterministic odd-chip allocation.
func (t *Table) showdown() {
	t.phase = PhaseShowdown

	hands := make(map[int]evaluator.Value)
	for seat, p := range t.seats {
		if p == nil || !p.InHand || p.Folded {
			continue
		}
		value, err := evaluator.Evaluate(append(append([]deck.Card(nil), p.HoleCards...), t.board...))
		if err != nil {
			// 2 hole + 5 board cards; an error here is corrupted state.
			panic("game: showdown evaluation failed: " + err.Error())
		}
		p.handValue = &value
		hands[seat] = value
	}

	t.revealShowdown(true)

	var contribs []Contribution
	for seat, p := range t.seats {
		if p == nil || !p.InHand {
			continue
		}
		contribs = append(contribs, Contribution{Seat: seat, Committed: p.TotalBet, Folded: p.Folded})
	}

	pots := BuildPots(contribs)
	for i, pot := range pots {
		name := "pot"
		if len(pots) > 1 {
			if i == 0 {
				name = "main pot"
			} else {
				name = fmt.Sprintf("side pot %d", i)
			}
		}
		for _, award := range Distribute(pot, hands, t.dealer, len(t.seats)) {
			p := t.seats[award.Seat]
			p.Stack += award.Amount
			p.wonAmount += award.Amount
			t.emitLine(t.hl.publicLine(fmt.Sprintf("%s collected %d from %s", p.Handle, award.Amount, name)))
		}
	}

	t.finishHand()
}

// finishHand logs the summary, archives the hand, delivers the
// personalised histories, processes deferred removals and returns the
// table to idle.
func (t *Table) finishHand() {
	completed := t.clock.Now()

	t.emitLine(t.hl.publicLine("*** SUMMARY ***"))
	t.emitLine(t.hl.publicLine(fmt.Sprintf("Total pot %d", t.pot)))
	if len(t.board) > 0 {
		t.emitLine(t.hl.publicLine(fmt.Sprintf("Board [%s]", deck.FormatCards(t.board))))
	}
	for seat, p := range t.seats {
		if p == nil || !p.InHand {
			continue
		}
		switch {
		case p.Folded:
			t.emitLine(t.hl.publicLine(fmt.Sprintf("Seat %d: %s folded on the %s", seat, p.Handle, p.foldPhase)))
		case p.wonAmount > 0 && p.handValue != nil:
			t.emitLine(t.hl.publicLine(fmt.Sprintf("Seat %d: %s showed [%s] and won (%d) with %s",
				seat, p.Handle, deck.FormatCards(p.HoleCards), p.wonAmount, p.handValue.Name())))
		case p.wonAmount > 0:
			t.emitLine(t.hl.publicLine(fmt.Sprintf("Seat %d: %s won (%d)", seat, p.Handle, p.wonAmount)))
		case p.handValue != nil:
			t.emitLine(t.hl.publicLine(fmt.Sprintf("Seat %d: %s showed [%s] and lost with %s",
				seat, p.Handle, deck.FormatCards(p.HoleCards), p.handValue.Name())))
		}
	}

	rec := t.buildRecord(completed)
	if err := t.archive.SaveHand(rec); err != nil {
		// The live game continues even if archiving fails.
		t.logger.Error("hand archive failed", "hand", t.handCounter, "error", err)
	}
	logs := make(map[string]string)
	for _, p := range t.seats {
		if p == nil || !p.InHand {
			continue
		}
		logs[p.Identity] = t.hl.personalised(p.Identity)

		update := PlayerUpdate{Identity: p.Identity, Handle: p.Handle, Chips: p.Stack, HandsDelta: 1}
		net := p.Stack - p.startStack
		if p.wonAmount > 0 {
			update.WonDelta = 1
		}
		if net > 0 {
			update.Winnings = net
		} else {
			update.Losses = -net
		}
		if err := t.archive.UpdatePlayer(update); err != nil {
			t.logger.Error("player update failed", "identity", p.Identity, "error", err)
		}
	}
	t.emit(HandCompleteEvent{HandID: t.handCounter, Logs: logs})

	// Busted players sit out until they rebuy; the kick timer bounds
	// how long they hold the seat.
	for seat, p := range t.seats {
		if p == nil || !p.InHand {
			continue
		}
		if p.Stack == 0 {
			p.Busted = true
			t.sitOutNow(seat)
		}
	}

	// Deferred removals now that the hand is over.
	for seat, p := range t.seats {
		if p != nil && p.PendingRemoval {
			t.removeSeat(seat)
		}
	}

	for _, p := range t.seats {
		if p == nil {
			continue
		}
		p.HoleCards = nil
		p.Bet = 0
		p.TotalBet = 0
		p.Folded = false
		p.AllIn = false
		p.InHand = false
	}
	t.pot = 0
	t.chipPile = nil
	t.board = nil
	t.burns = nil
	t.phase = PhaseIdle
	t.actor = -1

	t.emitState()
	t.scheduleHandStart()
}

func (t *Table) buildRecord(completed time.Time) *HandRecord {
	rec := &HandRecord{
		HandID:      t.handCounter,
		TableID:     t.id,
		StartedAt:   t.handStart,
		CompletedAt: completed,
		SmallBlind:  t.cfg.SmallBlind,
		BigBlind:    t.cfg.BigBlind,
		ButtonSeat:  t.dealer,
		PotTotal:    t.pot,
		Community:   append([]deck.Card(nil), t.board...),
		History:     t.hl.full(),
	}
	for seat, p := range t.seats {
		if p == nil || !p.InHand {
			continue
		}
		finalHand := ""
		if p.handValue != nil {
			finalHand = p.handValue.Name()
		}
		rec.Players = append(rec.Players, HandPlayerRecord{
			Identity:       p.Identity,
			Handle:         p.Handle,
			Seat:           seat,
			StartingStack:  p.startStack,
			EndingStack:    p.Stack,
			TotalCommitted: p.TotalBet,
			HoleCards:      append([]deck.Card(nil), p.HoleCards...),
			FinalHand:      finalHand,
			Position:       p.position,
			Actions:        joinActions(p.actions),
			WonAmount:      p.wonAmount,
		})
	}
	return rec
}

// --- timers ---

func (t *Table) startActionTimer() {
	if t.actor == -1 {
		return
	}
	p := t.seats[t.actor]
	if p == nil || p.SittingOut {
		return
	}
	seat := t.actor
	t.emit(TimerStartEvent{Seat: seat, Identity: p.Identity, Duration: t.cfg.BaseAction})
	t.timer.start(seat, t.cfg.BaseAction, func(gen uint64) {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.onBaseExpiry(gen, seat)
	})
}

// onBaseExpiry opens the time-bank phase when the actor has chips at
// risk and pool balance, otherwise auto-acts.
func (t *Table) onBaseExpiry(gen uint64, seat int) {
	if t.closed || !t.timer.current(gen, seat) || seat != t.actor {
		return
	}
	p := t.seats[seat]
	if p == nil || !p.CanAct() {
		return
	}

	pool := *p.bank(t.phase)
	if p.TotalBet > 0 && pool > 0 {
		t.emit(TimeBankStartEvent{Seat: seat, Identity: p.Identity, Remaining: pool})
		t.timer.startBank(pool, func(bankGen uint64) {
			t.mu.Lock()
			defer t.mu.Unlock()
			t.onBankExpiry(bankGen, seat)
		})
		return
	}
	t.timeoutAct(seat)
}

func (t *Table) onBankExpiry(gen uint64, seat int) {
	if t.closed || !t.timer.current(gen, seat) || seat != t.actor {
		return
	}
	p := t.seats[seat]
	if p == nil || !p.CanAct() {
		return
	}
	t.timeoutAct(seat)
}

// timeoutAct auto-checks when possible, otherwise auto-folds, and
// applies the one-hand sit-out penalty.
func (t *Table) timeoutAct(seat int) {
	t.settleTimer(seat)
	p := t.seats[seat]
	p.SitOutNextHand = true

	if p.Bet == t.maxBet() {
		t.apply(seat, Action{Kind: Check}, true)
	} else {
		t.apply(seat, Action{Kind: Fold}, true)
	}
}

// --- kick timer ---

func (t *Table) armKick(seat int) {
	t.cancelKick(seat)
	p := t.seats[seat]
	if p == nil {
		return
	}
	identity := p.Identity
	t.kickTimers[seat] = t.clock.AfterFunc(t.cfg.SitOutKick, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.closed {
			return
		}
		delete(t.kickTimers, seat)
		cur := t.seats[seat]
		if cur == nil || cur.Identity != identity || !cur.SittingOut {
			return
		}
		if cur.InHand && t.phase != PhaseIdle {
			cur.PendingRemoval = true
			return
		}
		t.logger.Info("kicking sat-out player", "identity", identity, "seat", seat)
		t.removeSeat(seat)
		t.emitState()
	})
}

func (t *Table) cancelKick(seat int) {
	if timer, ok := t.kickTimers[seat]; ok {
		timer.Stop()
		delete(t.kickTimers, seat)
	}
}

// removeSeat vacates a seat and notifies the coordinator with the chip
// total to persist. Assumes the lock is held and no live hand depends
// on the seat.
func (t *Table) removeSeat(seat int) {
	p := t.seats[seat]
	if p == nil {
		return
	}
	t.cancelKick(seat)
	t.seats[seat] = nil
	t.emit(PlayerLeavingEvent{Seat: seat, Identity: p.Identity, Chips: p.Stack})
	t.logger.Info("seat vacated", "identity", p.Identity, "seat", seat, "chips", p.Stack)

	occupied := 0
	for _, q := range t.seats {
		if q != nil {
			occupied++
		}
	}
	if occupied == 0 {
		t.emit(TableMaybeEmptyEvent{})
	}
}

// --- logging helpers ---

func (t *Table) phaseTag() string {
	return t.phase.String() + ": "
}

// record logs a player action line and appends it to the archive
// action trail.
func (t *Table) record(p *Player, text string) {
	line := fmt.Sprintf("%s: %s", p.Handle, text)
	p.actions = append(p.actions, t.phaseTag()+text)
	t.emitLine(t.hl.publicLine(line))
}

func (t *Table) emitLine(line logLine) {
	t.emit(LogLineEvent{Line: line.text, Private: line.private})
}

func joinActions(actions []string) string {
	out := ""
	for i, a := range actions {
		if i > 0 {
			out += "; "
		}
		out += a
	}
	return out
}
