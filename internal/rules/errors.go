package rules

import (
	"errors"
	"fmt"

	"github.com/dmmcquay/goban-mcp/internal/board"
)

// Rejection kinds. A rejected attempt reports exactly one of these, checked
// in the order out-of-bounds, occupied, finished, ko, suicide.
var (
	ErrOutOfBounds  = errors.New("point is off the board")
	ErrOccupiedCell = errors.New("intersection is occupied")
	ErrGameFinished = errors.New("game is finished")
	ErrKoViolation  = errors.New("move retakes a ko")
	ErrSuicideMove  = errors.New("move is suicide")
)

// MoveError carries the rejected point alongside its kind.
type MoveError struct {
	Kind  error
	Point board.Point
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("illegal move at %s: %v", e.Point, e.Kind)
}

func (e *MoveError) Unwrap() error {
	return e.Kind
}

func reject(kind error, p board.Point) error {
	return &MoveError{Kind: kind, Point: p}
}

// KindName returns a stable identifier for a rejection, or "" when err is
// not a rejection.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrOutOfBounds):
		return "OutOfBounds"
	case errors.Is(err, ErrOccupiedCell):
		return "OccupiedCell"
	case errors.Is(err, ErrGameFinished):
		return "GameFinished"
	case errors.Is(err, ErrKoViolation):
		return "KoViolation"
	case errors.Is(err, ErrSuicideMove):
		return "SuicideMove"
	default:
		return ""
	}
}
