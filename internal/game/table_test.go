package game

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// orderedSource returns n-1 from Intn, which makes Fisher-Yates a
// no-op: the deck stays in canonical order (2h..Ah, 2d..Ad, ...).
type orderedSource struct{}

func (orderedSource) Intn(n int) int { return n - 1 }

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) sink(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *eventRecorder) logText() string {
	var b strings.Builder
	for _, ev := range r.all() {
		if line, ok := ev.(LogLineEvent); ok {
			b.WriteString(line.Line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (r *eventRecorder) timeBankStarts() []TimeBankStartEvent {
	var out []TimeBankStartEvent
	for _, ev := range r.all() {
		if e, ok := ev.(TimeBankStartEvent); ok {
			out = append(out, e)
		}
	}
	return out
}

func (r *eventRecorder) handCompletes() []HandCompleteEvent {
	var out []HandCompleteEvent
	for _, ev := range r.all() {
		if e, ok := ev.(HandCompleteEvent); ok {
			out = append(out, e)
		}
	}
	return out
}

func (r *eventRecorder) leavings() []PlayerLeavingEvent {
	var out []PlayerLeavingEvent
	for _, ev := range r.all() {
		if e, ok := ev.(PlayerLeavingEvent); ok {
			out = append(out, e)
		}
	}
	return out
}

func newTestTable(t *testing.T, cfg Config) (*Table, *quartz.Mock, *eventRecorder) {
	t.Helper()
	mock := quartz.NewMock(t)
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	rec := &eventRecorder{}
	tbl := NewTable("t1", cfg, logger, mock, orderedSource{}, nil, rec.sink)
	t.Cleanup(tbl.Close)
	return tbl, mock, rec
}

func advance(t *testing.T, mock *quartz.Mock, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mock.Advance(d).MustWait(ctx)
}

func join(t *testing.T, tbl *Table, identity string, buyIn int) int {
	t.Helper()
	seat, err := tbl.Join(identity, identity, -1, buyIn)
	require.NoError(t, err)
	return seat
}

func totalChips(snap Snapshot) int {
	total := snap.Pot
	for _, s := range snap.Seats {
		total += s.Stack + s.Bet
	}
	return total
}

func TestHeadsUpFoldToBlind(t *testing.T) {
	tbl, mock, _ := newTestTable(t, Config{})
	join(t, tbl, "alice", 10000)
	join(t, tbl, "bob", 10000)

	advance(t, mock, tbl.Config().HandStartDelay)

	snap := tbl.Snapshot()
	require.Equal(t, PhasePreflop, snap.Phase)
	// Heads-up: the button posts the small blind and acts first.
	require.Equal(t, 0, snap.Dealer)
	require.Equal(t, 0, snap.Actor)
	assert.Equal(t, 50, snap.Seats[0].Bet)
	assert.Equal(t, 100, snap.Seats[1].Bet)

	require.NoError(t, tbl.Act("alice", Action{Kind: Fold}))

	snap = tbl.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Equal(t, 9950, snap.Seats[0].Stack)
	assert.Equal(t, 10050, snap.Seats[1].Stack)
	assert.Equal(t, 20000, totalChips(snap))
}

func TestHeadsUpCheckdownSplitsBoardFlush(t *testing.T) {
	tbl, mock, rec := newTestTable(t, Config{})
	join(t, tbl, "alice", 10000)
	join(t, tbl, "bob", 10000)

	advance(t, mock, tbl.Config().HandStartDelay)

	// With the canonical deck the board runs 7h 8h 9h Jh Kh: a king
	// high flush plays off the board for both players.
	require.NoError(t, tbl.Act("alice", Action{Kind: Call}))
	require.NoError(t, tbl.Act("bob", Action{Kind: Check}))

	for _, phase := range []Phase{PhaseFlop, PhaseTurn, PhaseRiver} {
		snap := tbl.Snapshot()
		require.Equal(t, phase, snap.Phase)
		// Postflop the big blind acts first heads-up.
		require.Equal(t, 1, snap.Actor)
		require.NoError(t, tbl.Act("bob", Action{Kind: Check}))
		require.NoError(t, tbl.Act("alice", Action{Kind: Check}))
	}

	snap := tbl.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Equal(t, 10000, snap.Seats[0].Stack)
	assert.Equal(t, 10000, snap.Seats[1].Stack)

	logText := rec.logText()
	assert.Contains(t, logText, "*** SHOW DOWN ***")
	assert.Contains(t, logText, "Board [7h 8h 9h Jh Kh]")

	completes := rec.handCompletes()
	require.Len(t, completes, 1)
	require.Contains(t, completes[0].Logs, "alice")
	require.Contains(t, completes[0].Logs, "bob")
	// Each personalised log carries only that player's hole cards.
	assert.Contains(t, completes[0].Logs["alice"], "Dealt to alice")
	assert.NotContains(t, completes[0].Logs["alice"], "Dealt to bob")
	assert.Contains(t, completes[0].Logs["bob"], "Dealt to bob")
	assert.NotContains(t, completes[0].Logs["bob"], "Dealt to alice")
}

func TestAllInTriggersRunout(t *testing.T) {
	tbl, mock, rec := newTestTable(t, Config{})
	join(t, tbl, "alice", 10000)
	join(t, tbl, "bob", 10000)

	cfg := tbl.Config()
	advance(t, mock, cfg.HandStartDelay)

	require.NoError(t, tbl.Act("alice", Action{Kind: Raise, Total: 10000}))
	require.NoError(t, tbl.Act("bob", Action{Kind: Call}))

	// Both all-in: hole cards revealed, board not yet complete.
	snap := tbl.Snapshot()
	require.Equal(t, PhaseShowdown, snap.Phase)
	assert.Empty(t, snap.Board)
	assert.Equal(t, 20000, snap.Pot)
	assert.Contains(t, rec.logText(), "*** SHOW DOWN ***")

	advance(t, mock, cfg.RunoutReveal)
	require.Len(t, tbl.Snapshot().Board, 3)

	advance(t, mock, cfg.RunoutTurn)
	require.Len(t, tbl.Snapshot().Board, 4)

	advance(t, mock, cfg.RunoutRiver)
	require.Len(t, tbl.Snapshot().Board, 5)

	advance(t, mock, cfg.RunoutFlop)
	snap = tbl.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	// Board flush again: split pot, chips conserved.
	assert.Equal(t, 10000, snap.Seats[0].Stack)
	assert.Equal(t, 10000, snap.Seats[1].Stack)
	assert.Equal(t, 20000, totalChips(snap))
}

func TestMinRaiseEnforced(t *testing.T) {
	tbl, mock, _ := newTestTable(t, Config{})
	join(t, tbl, "alice", 10000)
	join(t, tbl, "bob", 10000)

	advance(t, mock, tbl.Config().HandStartDelay)

	// Opening raise must be to at least 200 over the 100 big blind.
	err := tbl.Act("alice", Action{Kind: Raise, Total: 150})
	require.ErrorIs(t, err, ErrInvalidArgument)

	require.NoError(t, tbl.Act("alice", Action{Kind: Raise, Total: 200}))

	// Re-raise must be to at least 300: last raise was 100.
	err = tbl.Act("bob", Action{Kind: Raise, Total: 250})
	require.ErrorIs(t, err, ErrInvalidArgument)

	require.NoError(t, tbl.Act("bob", Action{Kind: Raise, Total: 300}))
	assert.Equal(t, 400, tbl.Snapshot().MinRaiseTo)
}

func TestAllInUnderRaiseDoesNotReopenBetting(t *testing.T) {
	tbl, mock, _ := newTestTable(t, Config{MinBuyIn: 100})
	join(t, tbl, "alice", 10000)
	join(t, tbl, "bob", 10000)
	join(t, tbl, "carol", 250)

	advance(t, mock, tbl.Config().HandStartDelay)

	snap := tbl.Snapshot()
	require.Equal(t, 0, snap.Dealer)
	require.Equal(t, 0, snap.Actor) // under the gun with three players

	require.NoError(t, tbl.Act("alice", Action{Kind: Raise, Total: 200}))
	require.NoError(t, tbl.Act("bob", Action{Kind: Call}))

	// Carol shoves 250 total: above the bet but below the 300 minimum.
	// Legal only because it is her whole stack, and it does not reopen
	// the betting line.
	require.NoError(t, tbl.Act("carol", Action{Kind: Raise, Total: 250}))

	snap = tbl.Snapshot()
	assert.True(t, snap.Seats[2].AllIn)
	assert.Equal(t, 250, snap.CurrentBet)
	// Minimum raise still keyed off the last full raise of 100.
	assert.Equal(t, 350, snap.MinRaiseTo)

	require.NoError(t, tbl.Act("alice", Action{Kind: Call}))
	require.NoError(t, tbl.Act("bob", Action{Kind: Call}))

	snap = tbl.Snapshot()
	assert.Equal(t, PhaseFlop, snap.Phase)
	assert.Equal(t, 750, snap.Pot)
	assert.Equal(t, 20250, totalChips(snap))
}

func TestRaiseCappedToCallWhenUncontestable(t *testing.T) {
	tbl, mock, _ := newTestTable(t, Config{MinBuyIn: 100})
	join(t, tbl, "alice", 10000)
	join(t, tbl, "bob", 300)

	advance(t, mock, tbl.Config().HandStartDelay)

	// Bob shoves 300, alice "raises" to 1000: with bob all-in for less
	// the raise is uncontestable and becomes a call.
	require.NoError(t, tbl.Act("alice", Action{Kind: Raise, Total: 200}))
	require.NoError(t, tbl.Act("bob", Action{Kind: Raise, Total: 300}))
	require.NoError(t, tbl.Act("alice", Action{Kind: Raise, Total: 1000}))

	snap := tbl.Snapshot()
	require.Equal(t, PhaseShowdown, snap.Phase)
	assert.Equal(t, 600, snap.Pot)
}

func TestTimeoutWithoutInvestmentAutoFolds(t *testing.T) {
	tbl, mock, rec := newTestTable(t, Config{})
	join(t, tbl, "alice", 10000)
	join(t, tbl, "bob", 10000)
	join(t, tbl, "carol", 10000)

	cfg := tbl.Config()
	advance(t, mock, cfg.HandStartDelay)

	// Three-handed: seat 0 is the button and acts first preflop with
	// nothing invested.
	snap := tbl.Snapshot()
	require.Equal(t, 0, snap.Actor)
	require.Equal(t, 0, snap.Seats[0].TotalBet)

	advance(t, mock, cfg.BaseAction)

	snap = tbl.Snapshot()
	assert.True(t, snap.Seats[0].Folded)
	assert.Equal(t, 1, snap.Actor)
	assert.Empty(t, rec.timeBankStarts(), "no time bank without chips invested")
	assert.True(t, tbl.seats[0].SitOutNextHand)
	// Pool untouched.
	assert.Equal(t, cfg.DefaultTimeBank, tbl.seats[0].PreflopBank)
}

func TestTimeoutWithInvestmentBurnsBankThenFolds(t *testing.T) {
	tbl, mock, rec := newTestTable(t, Config{})
	join(t, tbl, "alice", 10000)
	join(t, tbl, "bob", 10000)
	join(t, tbl, "carol", 10000)

	cfg := tbl.Config()
	advance(t, mock, cfg.HandStartDelay)

	require.NoError(t, tbl.Act("alice", Action{Kind: Fold}))

	// Bob posted the small blind: forced chips count as investment, so
	// the base expiry opens the time bank instead of auto-acting.
	require.Equal(t, 1, tbl.Snapshot().Actor)
	advance(t, mock, cfg.BaseAction)

	banks := rec.timeBankStarts()
	require.Len(t, banks, 1)
	assert.Equal(t, 1, banks[0].Seat)
	assert.Equal(t, cfg.DefaultTimeBank, banks[0].Remaining)

	snap := tbl.Snapshot()
	require.Equal(t, 1, snap.Actor)
	require.False(t, snap.Seats[1].Folded)

	// Bank runs dry: facing the big blind, bob folds and carol wins.
	advance(t, mock, cfg.DefaultTimeBank)

	snap = tbl.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Equal(t, 9950, snap.Seats[1].Stack)
	assert.Equal(t, 10050, snap.Seats[2].Stack)
	assert.Equal(t, time.Duration(0), tbl.seats[1].PreflopBank)
	assert.True(t, tbl.seats[1].SitOutNextHand)
}

func TestActionDuringBankDeductsElapsed(t *testing.T) {
	tbl, mock, _ := newTestTable(t, Config{})
	join(t, tbl, "alice", 10000)
	join(t, tbl, "bob", 10000)
	join(t, tbl, "carol", 10000)

	cfg := tbl.Config()
	advance(t, mock, cfg.HandStartDelay)

	require.NoError(t, tbl.Act("alice", Action{Kind: Fold}))
	advance(t, mock, cfg.BaseAction)

	// Bob is 6 seconds into his bank when he finally calls.
	advance(t, mock, 6*time.Second)
	require.NoError(t, tbl.Act("bob", Action{Kind: Call}))

	assert.Equal(t, cfg.DefaultTimeBank-6*time.Second, tbl.seats[1].PreflopBank)
	assert.False(t, tbl.seats[1].SitOutNextHand)
}

func TestTimeoutAutoChecksWhenFree(t *testing.T) {
	tbl, mock, _ := newTestTable(t, Config{})
	join(t, tbl, "alice", 10000)
	join(t, tbl, "bob", 10000)

	cfg := tbl.Config()
	advance(t, mock, cfg.HandStartDelay)

	require.NoError(t, tbl.Act("alice", Action{Kind: Call}))
	require.NoError(t, tbl.Act("bob", Action{Kind: Check}))
	require.Equal(t, PhaseFlop, tbl.Snapshot().Phase)

	// Bob times out facing no bet: base, then bank, then auto-check.
	advance(t, mock, cfg.BaseAction)
	advance(t, mock, cfg.DefaultTimeBank)

	snap := tbl.Snapshot()
	assert.False(t, snap.Seats[1].Folded)
	assert.Equal(t, 0, snap.Actor)
	assert.Equal(t, time.Duration(0), tbl.seats[1].PostflopBank)
	// The preflop pool is untouched by a postflop timeout.
	assert.Equal(t, cfg.DefaultTimeBank, tbl.seats[1].PreflopBank)
}

func TestJoinIdempotentAndFullTable(t *testing.T) {
	tbl, _, _ := newTestTable(t, Config{NumSeats: 2})
	seat := join(t, tbl, "alice", 10000)

	again, err := tbl.Join("alice", "alice", -1, 10000)
	require.ErrorIs(t, err, ErrAlreadySeated)
	assert.Equal(t, seat, again)

	join(t, tbl, "bob", 10000)
	_, err = tbl.Join("carol", "carol", -1, 10000)
	require.ErrorIs(t, err, ErrTableFull)
}

func TestJoinPreferredSeat(t *testing.T) {
	tbl, _, _ := newTestTable(t, Config{})
	seat, err := tbl.Join("alice", "alice", 4, 10000)
	require.NoError(t, err)
	assert.Equal(t, 4, seat)

	// Occupied preferred seat falls back to the lowest open one.
	seat, err = tbl.Join("bob", "bob", 4, 10000)
	require.NoError(t, err)
	assert.Equal(t, 0, seat)
}

func TestActOutOfTurnRejected(t *testing.T) {
	tbl, mock, _ := newTestTable(t, Config{})
	join(t, tbl, "alice", 10000)
	join(t, tbl, "bob", 10000)

	advance(t, mock, tbl.Config().HandStartDelay)

	err := tbl.Act("bob", Action{Kind: Fold})
	require.ErrorIs(t, err, ErrIllegalAction)

	err = tbl.Act("carol", Action{Kind: Fold})
	require.ErrorIs(t, err, ErrNotSeated)
}

func TestCheckFacingBetRejected(t *testing.T) {
	tbl, mock, _ := newTestTable(t, Config{})
	join(t, tbl, "alice", 10000)
	join(t, tbl, "bob", 10000)

	advance(t, mock, tbl.Config().HandStartDelay)

	err := tbl.Act("alice", Action{Kind: Check})
	require.ErrorIs(t, err, ErrIllegalAction)
	// Invalid attempts leave the hand unchanged.
	assert.Equal(t, 0, tbl.Snapshot().Actor)
}

func TestLeaveMidHandFoldsAndDefersRemoval(t *testing.T) {
	tbl, mock, rec := newTestTable(t, Config{})
	join(t, tbl, "alice", 10000)
	join(t, tbl, "bob", 10000)

	advance(t, mock, tbl.Config().HandStartDelay)

	require.NoError(t, tbl.Leave("alice"))

	// The fold ends the hand; removal happens with it.
	snap := tbl.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.False(t, snap.Seats[0].Occupied)
	assert.Equal(t, 10050, snap.Seats[1].Stack)

	leavings := rec.leavings()
	require.Len(t, leavings, 1)
	assert.Equal(t, "alice", leavings[0].Identity)
	assert.Equal(t, 9950, leavings[0].Chips)
}

func TestSitOutNextHandAndKick(t *testing.T) {
	tbl, mock, rec := newTestTable(t, Config{})
	join(t, tbl, "alice", 10000)
	join(t, tbl, "bob", 10000)

	cfg := tbl.Config()
	advance(t, mock, cfg.HandStartDelay)

	// Mid-hand sit-out only flags the next hand.
	require.NoError(t, tbl.SitOut("bob"))
	snap := tbl.Snapshot()
	require.False(t, snap.Seats[1].SittingOut)

	require.NoError(t, tbl.Act("alice", Action{Kind: Fold}))

	// The next hand cannot start with one eligible player; bob is now
	// sitting out.
	advance(t, mock, cfg.HandStartDelay)
	snap = tbl.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.True(t, snap.Seats[1].SittingOut)

	// Kick fires after the sit-out window.
	advance(t, mock, cfg.SitOutKick)
	snap = tbl.Snapshot()
	assert.False(t, snap.Seats[1].Occupied)
	require.Len(t, rec.leavings(), 1)
	assert.Equal(t, "bob", rec.leavings()[0].Identity)
}

func TestSitBackInCancelsKick(t *testing.T) {
	tbl, mock, _ := newTestTable(t, Config{})
	join(t, tbl, "alice", 10000)

	require.NoError(t, tbl.SitOut("alice"))
	require.True(t, tbl.Snapshot().Seats[0].SittingOut)

	require.NoError(t, tbl.SitBackIn("alice"))
	require.False(t, tbl.Snapshot().Seats[0].SittingOut)

	advance(t, mock, tbl.Config().SitOutKick)
	assert.True(t, tbl.Snapshot().Seats[0].Occupied)
}

func TestRebuyRules(t *testing.T) {
	tbl, mock, _ := newTestTable(t, Config{})
	join(t, tbl, "alice", 10000)
	join(t, tbl, "bob", 10000)

	advance(t, mock, tbl.Config().HandStartDelay)

	// Contesting a live hand: denied.
	_, err := tbl.Rebuy("alice", 2000)
	require.ErrorIs(t, err, ErrRebuyDenied)

	// Folded players may top up immediately.
	require.NoError(t, tbl.Act("alice", Action{Kind: Fold}))
	stack, err := tbl.Rebuy("alice", 2000)
	require.NoError(t, err)
	assert.Equal(t, 11950, stack)

	// Amounts clamp to the buy-in range.
	stack, err = tbl.Rebuy("alice", 1)
	require.NoError(t, err)
	assert.Equal(t, 11950+tbl.Config().MinBuyIn, stack)
}

func TestThreeWaySidePots(t *testing.T) {
	tbl, mock, _ := newTestTable(t, Config{MinBuyIn: 100})
	join(t, tbl, "alice", 10000) // button
	join(t, tbl, "bob", 10000)   // small blind
	join(t, tbl, "carol", 1000)  // big blind, short

	cfg := tbl.Config()
	advance(t, mock, cfg.HandStartDelay)

	// Alice shoves, both call: carol for 1000, bob for 2000 after
	// alice's raise is capped by the table's deepest opponent... here
	// everyone simply commits what they can.
	require.NoError(t, tbl.Act("alice", Action{Kind: Raise, Total: 2000}))
	require.NoError(t, tbl.Act("bob", Action{Kind: Call}))
	require.NoError(t, tbl.Act("carol", Action{Kind: Call}))

	// Carol is all-in for 1000; alice and bob still have chips, so the
	// flop plays on between them.
	snap := tbl.Snapshot()
	require.Equal(t, PhaseFlop, snap.Phase)
	require.True(t, snap.Seats[2].AllIn)
	assert.Equal(t, 5000, snap.Pot)

	// Check it down.
	for tbl.Snapshot().Phase.betting() {
		actor := tbl.Snapshot().Actor
		identity := tbl.Snapshot().Seats[actor].Identity
		require.NoError(t, tbl.Act(identity, Action{Kind: Check}))
	}

	snap = tbl.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Equal(t, 21000, totalChips(snap))
}

func TestWonAmountInvariant(t *testing.T) {
	var records []*HandRecord
	archive := &recordingArchiver{saved: &records}

	mock := quartz.NewMock(t)
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	tbl := NewTable("t1", Config{}, logger, mock, orderedSource{}, archive, nil)
	t.Cleanup(tbl.Close)

	join(t, tbl, "alice", 10000)
	join(t, tbl, "bob", 10000)
	advance(t, mock, tbl.Config().HandStartDelay)

	require.NoError(t, tbl.Act("alice", Action{Kind: Call}))
	require.NoError(t, tbl.Act("bob", Action{Kind: Check}))
	for tbl.Snapshot().Phase.betting() {
		actor := tbl.Snapshot().Actor
		identity := tbl.Snapshot().Seats[actor].Identity
		require.NoError(t, tbl.Act(identity, Action{Kind: Check}))
	}

	require.Len(t, records, 1)
	rec := records[0]
	require.Len(t, rec.Players, 2)
	for _, p := range rec.Players {
		assert.Equal(t, p.WonAmount, p.EndingStack-p.StartingStack+p.TotalCommitted,
			"won amount invariant for %s", p.Identity)
	}
	assert.Equal(t, 200, rec.PotTotal)
	assert.Len(t, rec.Community, 5)
	assert.Contains(t, rec.History, "*** SUMMARY ***")
}

type recordingArchiver struct {
	saved *[]*HandRecord
}

func (a *recordingArchiver) SaveHand(rec *HandRecord) error {
	*a.saved = append(*a.saved, rec)
	return nil
}

func (a *recordingArchiver) UpdatePlayer(PlayerUpdate) error { return nil }

func TestButtonAdvancesEachHand(t *testing.T) {
	tbl, mock, _ := newTestTable(t, Config{})
	join(t, tbl, "alice", 10000)
	join(t, tbl, "bob", 10000)
	join(t, tbl, "carol", 10000)

	cfg := tbl.Config()
	advance(t, mock, cfg.HandStartDelay)
	require.Equal(t, 0, tbl.Snapshot().Dealer)

	// Fold the hand out: actor 0, then small blind folds too.
	require.NoError(t, tbl.Act("alice", Action{Kind: Fold}))
	require.NoError(t, tbl.Act("bob", Action{Kind: Fold}))

	advance(t, mock, cfg.HandStartDelay)
	assert.Equal(t, 1, tbl.Snapshot().Dealer)
}

func TestChipPileMatchesPot(t *testing.T) {
	tbl, mock, _ := newTestTable(t, Config{})
	join(t, tbl, "alice", 10000)
	join(t, tbl, "bob", 10000)

	advance(t, mock, tbl.Config().HandStartDelay)
	require.NoError(t, tbl.Act("alice", Action{Kind: Raise, Total: 300}))
	require.NoError(t, tbl.Act("bob", Action{Kind: Call}))

	snap := tbl.Snapshot()
	require.Equal(t, PhaseFlop, snap.Phase)
	assert.Equal(t, snap.Pot, sumChips(snap.ChipPile))
}
