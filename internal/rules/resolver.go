// Package rules decides move legality and resolves captures and ko.
package rules

import (
	"github.com/dmmcquay/goban-mcp/internal/board"
)

// Position is everything the resolver needs to judge a placement.
type Position struct {
	Board    *board.Board
	ToPlay   board.Stone
	Ko       board.Point
	Finished bool
}

// Outcome is the result of a legal placement. Board is a fresh copy; the
// position's board is never touched.
type Outcome struct {
	Board    *board.Board
	Captured []board.Point
	Ko       board.Point
}

// Check reports whether ToPlay may place at p, returning the first
// applicable rejection.
func Check(pos Position, p board.Point) error {
	if err := precheck(pos, p); err != nil {
		return err
	}

	// A stone next to an empty point always keeps a liberty.
	for _, n := range board.Neighbors(p, pos.Board.Size()) {
		if pos.Board.At(n) == board.Empty {
			return nil
		}
	}

	_, err := resolve(pos, p)
	return err
}

// Play validates and applies a placement.
func Play(pos Position, p board.Point) (Outcome, error) {
	if err := precheck(pos, p); err != nil {
		return Outcome{}, err
	}
	return resolve(pos, p)
}

// IsLegal is Check reduced to a bool.
func IsLegal(pos Position, p board.Point) bool {
	return Check(pos, p) == nil
}

// LegalMoves lists every legal placement in row-major order.
func LegalMoves(pos Position) []board.Point {
	if pos.Finished {
		return nil
	}
	var out []board.Point
	for _, p := range pos.Board.Empties() {
		if Check(pos, p) == nil {
			out = append(out, p)
		}
	}
	return out
}

func precheck(pos Position, p board.Point) error {
	if !pos.Board.Contains(p) {
		return reject(ErrOutOfBounds, p)
	}
	if pos.Board.At(p) != board.Empty {
		return reject(ErrOccupiedCell, p)
	}
	if pos.Finished {
		return reject(ErrGameFinished, p)
	}
	if !pos.Ko.IsNone() && pos.Ko == p {
		return reject(ErrKoViolation, p)
	}
	return nil
}

func resolve(pos Position, p board.Point) (Outcome, error) {
	next := pos.Board.Clone()
	next.Set(p, pos.ToPlay)

	captured := CheckCaptures(next, p, pos.ToPlay)
	if len(captured) == 0 && !next.GroupAt(p).HasLiberty() {
		return Outcome{}, reject(ErrSuicideMove, p)
	}

	ko := board.NoPoint
	if len(captured) == 1 {
		ko = captured[0]
	}

	return Outcome{
		Board:    next,
		Captured: captured,
		Ko:       ko,
	}, nil
}

// CheckCaptures removes every opponent group adjacent to p that has no
// liberties left and returns the removed points. b is modified in place.
func CheckCaptures(b *board.Board, p board.Point, player board.Stone) []board.Point {
	opponent := player.Opponent()
	var captured []board.Point

	for _, n := range board.Neighbors(p, b.Size()) {
		if b.At(n) != opponent {
			continue
		}
		g := b.GroupAt(n)
		if g.HasLiberty() {
			continue
		}
		captured = append(captured, g.Stones...)
		b.Remove(g)
	}

	return captured
}
