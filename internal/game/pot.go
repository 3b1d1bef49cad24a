package game

import (
	"sort"

	"github.com/cardroom/holdemd/internal/evaluator"
)

// Contribution is one hand participant's input to pot construction.
type Contribution struct {
	Seat      int
	Committed int
	Folded    bool
}

// Pot is a main or side pot with its eligibility set.
type Pot struct {
	Amount   int
	Eligible []int // seats, ascending
	Level    int   // commitment level that closed this tier
}

// BuildPots splits the committed totals into a main pot and side pots.
// Tier levels are the distinct commitment totals of not-folded players;
// each tier collects min(commit, level) - min(commit, prev) from every
// participant, folded or not, so dead money lands in the lowest tiers.
// Eligibility for a tier is the not-folded players committed at or
// above its level. Zero-amount tiers are dropped.
func BuildPots(contribs []Contribution) []Pot {
	levelSet := make(map[int]bool)
	for _, c := range contribs {
		if !c.Folded && c.Committed > 0 {
			levelSet[c.Committed] = true
		}
	}
	levels := make([]int, 0, len(levelSet))
	for l := range levelSet {
		levels = append(levels, l)
	}
	sort.Ints(levels)

	var pots []Pot
	prev := 0
	for _, level := range levels {
		pot := Pot{Level: level}
		for _, c := range contribs {
			pot.Amount += min(c.Committed, level) - min(c.Committed, prev)
			if !c.Folded && c.Committed >= level {
				pot.Eligible = append(pot.Eligible, c.Seat)
			}
		}
		if pot.Amount > 0 {
			sort.Ints(pot.Eligible)
			pots = append(pots, pot)
		}
		prev = level
	}
	return pots
}

// Award is one seat's share of one pot.
type Award struct {
	Seat   int
	Amount int
}

// Distribute splits a pot among the eligible seats holding the best
// hand. Odd chips go one at a time to winners in clockwise order
// starting from the dealer's left. hands maps seat to evaluated value;
// seats absent from hands (folded) never win.
func Distribute(pot Pot, hands map[int]evaluator.Value, dealer, numSeats int) []Award {
	// Lone eligible player takes the pot without a showdown.
	if len(pot.Eligible) == 1 {
		return []Award{{Seat: pot.Eligible[0], Amount: pot.Amount}}
	}

	var best evaluator.Value
	var winners []int
	for _, seat := range pot.Eligible {
		hand, ok := hands[seat]
		if !ok {
			continue
		}
		if len(winners) == 0 {
			best = hand
			winners = []int{seat}
			continue
		}
		switch hand.Compare(best) {
		case 1:
			best = hand
			winners = []int{seat}
		case 0:
			winners = append(winners, seat)
		}
	}
	if len(winners) == 0 {
		return nil
	}

	// Order winners clockwise from the dealer's left for odd chips.
	sort.Slice(winners, func(i, j int) bool {
		return clockwiseDistance(dealer, winners[i], numSeats) < clockwiseDistance(dealer, winners[j], numSeats)
	})

	share := pot.Amount / len(winners)
	remainder := pot.Amount % len(winners)

	awards := make([]Award, len(winners))
	for i, seat := range winners {
		amount := share
		if i < remainder {
			amount++
		}
		awards[i] = Award{Seat: seat, Amount: amount}
	}
	return awards
}

// clockwiseDistance is the number of clockwise steps from the seat
// after the dealer to the target seat.
func clockwiseDistance(dealer, seat, numSeats int) int {
	return (seat - dealer - 1 + numSeats) % numSeats
}
