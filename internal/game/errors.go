package game

import "errors"

var (
	// ErrIllegalAction indicates an action that is not legal in the
	// current game state: checking while facing a bet, acting out of
	// turn, acting while folded or sitting out.
	ErrIllegalAction = errors.New("game: illegal action")

	// ErrInvalidArgument indicates a malformed request such as a raise
	// below the minimum or above the player's stack.
	ErrInvalidArgument = errors.New("game: invalid argument")

	// ErrTableFull indicates no empty seat is available.
	ErrTableFull = errors.New("game: table full")

	// ErrNotSeated indicates the identity has no seat at this table.
	ErrNotSeated = errors.New("game: not seated")

	// ErrNotInHand indicates the player is not contesting a live hand.
	ErrNotInHand = errors.New("game: not in hand")

	// ErrAlreadySeated is a soft no-op: the identity already holds a
	// seat, which is returned alongside the error.
	ErrAlreadySeated = errors.New("game: already seated")

	// ErrRebuyDenied indicates a rebuy attempt during a live hand.
	ErrRebuyDenied = errors.New("game: rebuy denied while contesting a hand")
)
