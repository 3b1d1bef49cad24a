package game

// chipDenoms are the display denominations for the visual pot pile,
// highest first for the greedy breakdown.
var chipDenoms = []int{1000, 500, 100, 25, 5, 1}

// breakDown splits an amount into display denominations, greedy high
// to low. The returned values always sum to amount exactly.
func breakDown(amount int) []int {
	var out []int
	for _, d := range chipDenoms {
		for amount >= d {
			out = append(out, d)
			amount -= d
		}
	}
	return out
}

// sumChips totals a chip-pile slice.
func sumChips(chips []int) int {
	total := 0
	for _, c := range chips {
		total += c
	}
	return total
}
