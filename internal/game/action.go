package game

import "fmt"

// ActionKind discriminates the player action sum type.
type ActionKind int

const (
	Fold ActionKind = iota
	Check
	Call
	Raise
)

// String returns the wire name of the action kind.
func (k ActionKind) String() string {
	switch k {
	case Fold:
		return "fold"
	case Check:
		return "check"
	case Call:
		return "call"
	case Raise:
		return "raise"
	default:
		return "unknown"
	}
}

// ParseActionKind decodes a wire action name.
func ParseActionKind(s string) (ActionKind, error) {
	switch s {
	case "fold":
		return Fold, nil
	case "check":
		return Check, nil
	case "call":
		return Call, nil
	case "raise":
		return Raise, nil
	default:
		return 0, fmt.Errorf("%w: unknown action %q", ErrInvalidArgument, s)
	}
}

// Action is a player action. Total is only meaningful for Raise and is
// the total street commitment the player is raising to, not the delta.
type Action struct {
	Kind  ActionKind
	Total int
}
