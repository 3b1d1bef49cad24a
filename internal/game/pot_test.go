package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardroom/holdemd/internal/deck"
	"github.com/cardroom/holdemd/internal/evaluator"
)

func mustEval(t *testing.T, cards string) evaluator.Value {
	t.Helper()
	parsed, err := deck.ParseCards(cards)
	require.NoError(t, err)
	value, err := evaluator.Evaluate(parsed)
	require.NoError(t, err)
	return value
}

func TestBuildPotsSinglePot(t *testing.T) {
	pots := BuildPots([]Contribution{
		{Seat: 0, Committed: 300},
		{Seat: 1, Committed: 300},
		{Seat: 2, Committed: 300},
	})
	require.Len(t, pots, 1)
	assert.Equal(t, 900, pots[0].Amount)
	assert.Equal(t, []int{0, 1, 2}, pots[0].Eligible)
}

func TestBuildPotsThreeWayAllIn(t *testing.T) {
	// Short stack all-in for 1000, two players with 2000 behind it.
	pots := BuildPots([]Contribution{
		{Seat: 0, Committed: 1000},
		{Seat: 1, Committed: 2000},
		{Seat: 2, Committed: 2000},
	})
	require.Len(t, pots, 2)

	assert.Equal(t, 3000, pots[0].Amount)
	assert.Equal(t, []int{0, 1, 2}, pots[0].Eligible)

	assert.Equal(t, 2000, pots[1].Amount)
	assert.Equal(t, []int{1, 2}, pots[1].Eligible)
}

func TestBuildPotsDeadMoneyInLowTiers(t *testing.T) {
	// A folder's 500 is dead money: it joins the tiers but the folder
	// is never eligible.
	pots := BuildPots([]Contribution{
		{Seat: 0, Committed: 1000},
		{Seat: 1, Committed: 2000},
		{Seat: 2, Committed: 500, Folded: true},
	})
	require.Len(t, pots, 2)

	assert.Equal(t, 2500, pots[0].Amount)
	assert.Equal(t, []int{0, 1}, pots[0].Eligible)

	// The excess 1000 belongs to seat 1 alone.
	assert.Equal(t, 1000, pots[1].Amount)
	assert.Equal(t, []int{1}, pots[1].Eligible)
}

func TestBuildPotsConservation(t *testing.T) {
	contribs := []Contribution{
		{Seat: 0, Committed: 175},
		{Seat: 1, Committed: 730},
		{Seat: 2, Committed: 730},
		{Seat: 3, Committed: 60, Folded: true},
		{Seat: 4, Committed: 445},
	}
	total := 0
	for _, c := range contribs {
		total += c.Committed
	}
	pots := BuildPots(contribs)
	got := 0
	for _, p := range pots {
		got += p.Amount
	}
	assert.Equal(t, total, got)
}

func TestDistributeLoneEligible(t *testing.T) {
	awards := Distribute(Pot{Amount: 800, Eligible: []int{3}}, nil, 0, 6)
	require.Len(t, awards, 1)
	assert.Equal(t, Award{Seat: 3, Amount: 800}, awards[0])
}

func TestDistributeBestHandWins(t *testing.T) {
	hands := map[int]evaluator.Value{
		0: mustEval(t, "As Ad Kh Qc 2d"), // pair of aces
		1: mustEval(t, "Ks Kd Ah Qc 2d"), // pair of kings
	}
	awards := Distribute(Pot{Amount: 600, Eligible: []int{0, 1}}, hands, 1, 6)
	require.Len(t, awards, 1)
	assert.Equal(t, Award{Seat: 0, Amount: 600}, awards[0])
}

func TestDistributeOddChipGoesClockwiseFromDealer(t *testing.T) {
	tie := mustEval(t, "As Ad Kh Qc 2d")
	hands := map[int]evaluator.Value{
		1: tie,
		4: tie,
	}

	// Dealer at seat 2: clockwise order from the dealer's left is 4
	// before 1, so seat 4 takes the extra chip.
	awards := Distribute(Pot{Amount: 101, Eligible: []int{1, 4}}, hands, 2, 6)
	require.Len(t, awards, 2)
	assert.Equal(t, Award{Seat: 4, Amount: 51}, awards[0])
	assert.Equal(t, Award{Seat: 1, Amount: 50}, awards[1])

	// Dealer at seat 5: seat 1 comes first instead.
	awards = Distribute(Pot{Amount: 101, Eligible: []int{1, 4}}, hands, 5, 6)
	require.Len(t, awards, 2)
	assert.Equal(t, Award{Seat: 1, Amount: 51}, awards[0])
	assert.Equal(t, Award{Seat: 4, Amount: 50}, awards[1])
}

func TestDistributeThreeWayRemainder(t *testing.T) {
	tie := mustEval(t, "As Ad Kh Qc 2d")
	hands := map[int]evaluator.Value{0: tie, 2: tie, 4: tie}

	awards := Distribute(Pot{Amount: 100, Eligible: []int{0, 2, 4}}, hands, 0, 6)
	require.Len(t, awards, 3)

	total := 0
	for _, a := range awards {
		total += a.Amount
	}
	assert.Equal(t, 100, total)
	// Remainder chip to the first winner clockwise from seat 1.
	assert.Equal(t, Award{Seat: 2, Amount: 34}, awards[0])
	assert.Equal(t, Award{Seat: 4, Amount: 33}, awards[1])
	assert.Equal(t, Award{Seat: 0, Amount: 33}, awards[2])
}
