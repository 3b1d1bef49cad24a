// Package evaluator ranks poker hands. It is pure: no I/O, no clock.
package evaluator

import (
	"fmt"
	"sort"

	"github.com/cardroom/holdemd/internal/deck"
)

// Category is the hand class, ascending in strength.
type Category int

const (
	HighCard Category = iota
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

// String returns the display name of the category.
func (c Category) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case Pair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	case RoyalFlush:
		return "Royal Flush"
	default:
		return "Unknown"
	}
}

// Value is a fully-ordered hand evaluation. Two values compare first by
// category, then lexicographically by tiebreaks.
type Value struct {
	Category  Category
	Tiebreaks []int
}

// Name returns the display name of the evaluated hand.
func (v Value) Name() string {
	return v.Category.String()
}

// Compare returns -1, 0 or 1 as v sorts below, equal to or above o.
func (v Value) Compare(o Value) int {
	if v.Category != o.Category {
		if v.Category < o.Category {
			return -1
		}
		return 1
	}
	for i := 0; i < len(v.Tiebreaks) && i < len(o.Tiebreaks); i++ {
		if v.Tiebreaks[i] != o.Tiebreaks[i] {
			if v.Tiebreaks[i] < o.Tiebreaks[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Evaluate returns the best 5-card hand value from 5 to 7 cards. For
// more than 5 cards, every 5-card combination is evaluated and the
// maximum under the (category, tiebreaks) order is returned.
func Evaluate(cards []deck.Card) (Value, error) {
	switch {
	case len(cards) < 5 || len(cards) > 7:
		return Value{}, fmt.Errorf("evaluator: need 5-7 cards, got %d", len(cards))
	case len(cards) == 5:
		var hand [5]deck.Card
		copy(hand[:], cards)
		return evaluate5(hand), nil
	}

	var best Value
	first := true
	var combo [5]deck.Card
	n := len(cards)
	for a := 0; a < n-4; a++ {
		for b := a + 1; b < n-3; b++ {
			for c := b + 1; c < n-2; c++ {
				for d := c + 1; d < n-1; d++ {
					for e := d + 1; e < n; e++ {
						combo[0] = cards[a]
						combo[1] = cards[b]
						combo[2] = cards[c]
						combo[3] = cards[d]
						combo[4] = cards[e]
						v := evaluate5(combo)
						if first || v.Compare(best) > 0 {
							best = v
							first = false
						}
					}
				}
			}
		}
	}
	return best, nil
}

func evaluate5(cards [5]deck.Card) Value {
	ranks := make([]int, 5)
	flush := true
	for i, c := range cards {
		ranks[i] = int(c.Rank)
		if c.Suit != cards[0].Suit {
			flush = false
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ranks)))

	straightTop := straightHigh(ranks)

	if flush && straightTop > 0 {
		if straightTop == int(deck.Ace) {
			return Value{Category: RoyalFlush, Tiebreaks: []int{straightTop}}
		}
		return Value{Category: StraightFlush, Tiebreaks: []int{straightTop}}
	}

	// Group ranks by multiplicity: counts sorted by (count desc, rank desc).
	type group struct{ rank, count int }
	byRank := make(map[int]int)
	for _, r := range ranks {
		byRank[r]++
	}
	groups := make([]group, 0, len(byRank))
	for r, c := range byRank {
		groups = append(groups, group{rank: r, count: c})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].rank > groups[j].rank
	})

	tiebreaks := make([]int, 0, 5)
	for _, g := range groups {
		tiebreaks = append(tiebreaks, g.rank)
	}

	switch {
	case groups[0].count == 4:
		return Value{Category: FourOfAKind, Tiebreaks: tiebreaks}
	case groups[0].count == 3 && groups[1].count == 2:
		return Value{Category: FullHouse, Tiebreaks: tiebreaks}
	case flush:
		return Value{Category: Flush, Tiebreaks: ranks}
	case straightTop > 0:
		return Value{Category: Straight, Tiebreaks: []int{straightTop}}
	case groups[0].count == 3:
		return Value{Category: ThreeOfAKind, Tiebreaks: tiebreaks}
	case groups[0].count == 2 && groups[1].count == 2:
		return Value{Category: TwoPair, Tiebreaks: tiebreaks}
	case groups[0].count == 2:
		return Value{Category: Pair, Tiebreaks: tiebreaks}
	default:
		return Value{Category: HighCard, Tiebreaks: ranks}
	}
}

// straightHigh returns the top rank of a straight formed by the given
// descending ranks, or 0 if they do not form one. The wheel
// (A-2-3-4-5) is recognised with a top rank of 5.
func straightHigh(desc []int) int {
	for i := 1; i < 5; i++ {
		if desc[i] != desc[i-1]-1 {
			// Wheel: A,5,4,3,2 sorted descending.
			if desc[0] == int(deck.Ace) && desc[1] == 5 && desc[2] == 4 && desc[3] == 3 && desc[4] == 2 {
				return 5
			}
			return 0
		}
	}
	return desc[0]
}
