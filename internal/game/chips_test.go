package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBreakDownSumsExactly(t *testing.T) {
	for _, amount := range []int{0, 1, 4, 5, 99, 100, 101, 150, 1776, 12345} {
		assert.Equal(t, amount, sumChips(breakDown(amount)), "amount %d", amount)
	}
}

func TestBreakDownGreedy(t *testing.T) {
	assert.Equal(t, []int{1000, 500, 100, 25, 5, 1}, breakDown(1631))
	assert.Equal(t, []int{100, 25, 25}, breakDown(150))
	assert.Nil(t, breakDown(0))
}
