package game

import (
	"time"

	"github.com/cardroom/holdemd/internal/deck"
	"github.com/cardroom/holdemd/internal/evaluator"
)

// Player is a seated player. All fields are owned by the table and
// must only be touched under the table lock.
type Player struct {
	Identity string // opaque persistent identity
	Handle   string

	Stack     int
	HoleCards []deck.Card
	Bet       int // committed this street
	TotalBet  int // committed this hand

	Folded         bool
	AllIn          bool
	SittingOut     bool
	SitOutNextHand bool
	Disconnected   bool
	PendingRemoval bool
	Busted         bool
	InHand         bool // dealt into the current hand

	// Two-phase time-bank pools. Both grow every timeBankGrowthHands
	// hands dealt, clamped to the cap.
	PreflopBank  time.Duration
	PostflopBank time.Duration

	HandsDealt int

	// Per-hand bookkeeping for the archive record.
	startStack int
	wonAmount  int
	position   string
	actions    []string
	handValue  *evaluator.Value
	foldPhase  Phase
}

// CanAct reports whether the player may take a betting action.
func (p *Player) CanAct() bool {
	return p.InHand && !p.Folded && !p.AllIn && !p.SittingOut
}

// Eligible reports whether the player can be dealt into the next hand.
func (p *Player) Eligible() bool {
	return !p.SittingOut && p.Stack > 0
}

// resetForHand clears per-hand state before dealing.
func (p *Player) resetForHand() {
	p.HoleCards = nil
	p.Bet = 0
	p.TotalBet = 0
	p.Folded = false
	p.AllIn = false
	p.InHand = false
	p.startStack = p.Stack
	p.wonAmount = 0
	p.position = ""
	p.actions = nil
	p.handValue = nil
	p.foldPhase = PhaseIdle
}

// commit moves up to amount chips from the stack into the street bet,
// returning the amount actually moved. Sets AllIn when the stack empties.
func (p *Player) commit(amount int) int {
	if amount > p.Stack {
		amount = p.Stack
	}
	p.Stack -= amount
	p.Bet += amount
	p.TotalBet += amount
	if p.Stack == 0 {
		p.AllIn = true
	}
	return amount
}

// bank returns a pointer to the time-bank pool for the given phase.
func (p *Player) bank(phase Phase) *time.Duration {
	if phase == PhasePreflop {
		return &p.PreflopBank
	}
	return &p.PostflopBank
}

// accrueTimeBank grows both pools by step every growthHands hands,
// clamped to cap. Called once per hand dealt, after HandsDealt is
// incremented.
func (p *Player) accrueTimeBank(growthHands int, step, cap time.Duration) {
	if growthHands <= 0 || p.HandsDealt%growthHands != 0 {
		return
	}
	p.PreflopBank = min(p.PreflopBank+step, cap)
	p.PostflopBank = min(p.PostflopBank+step, cap)
}
