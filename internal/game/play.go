package game

import (
	"fmt"
	"time"

	"github.com/dmmcquay/goban-mcp/internal/board"
	"github.com/dmmcquay/goban-mcp/internal/rules"
)

// Place puts a stone for the player to move at p. A rejection leaves s
// untouched and returns a *rules.MoveError.
func (s *State) Place(p board.Point) (*State, error) {
	return s.place(p, s.opts.Clock())
}

func (s *State) place(p board.Point, at time.Time) (*State, error) {
	out, err := rules.Play(s.Position(), p)
	if err != nil {
		return nil, err
	}

	next := s.clone()
	next.board = out.Board
	next.ko = out.Ko
	next.passes = 0
	if s.toPlay == board.Black {
		next.captures.Black += len(out.Captured)
	} else {
		next.captures.White += len(out.Captured)
	}
	next.history = append(next.history, Move{
		Player:    s.toPlay,
		Point:     p,
		Timestamp: at,
		Captures:  len(out.Captured),
	})
	next.toPlay = s.toPlay.Opponent()

	return next, nil
}

// Pass records a pass for the player to move. The second consecutive pass
// finishes the game.
func (s *State) Pass() (*State, error) {
	return s.pass(s.opts.Clock())
}

func (s *State) pass(at time.Time) (*State, error) {
	if s.status == Finished {
		return nil, fmt.Errorf("failed to pass: %w", rules.ErrGameFinished)
	}

	next := s.clone()
	next.ko = board.NoPoint
	next.passes = s.passes + 1
	next.history = append(next.history, Move{
		Player:    s.toPlay,
		Point:     board.NoPoint,
		Timestamp: at,
		IsPass:    true,
	})
	next.toPlay = s.toPlay.Opponent()

	if next.passes >= 2 {
		next.status = Finished
		next.reason = TwoPasses
	}

	return next, nil
}

// Resign ends the game with the player to move conceding.
func (s *State) Resign() (*State, error) {
	if s.status == Finished {
		return nil, fmt.Errorf("failed to resign: %w", rules.ErrGameFinished)
	}

	next := s.clone()
	next.status = Finished
	next.reason = Resignation
	next.resigned = s.toPlay
	return next, nil
}

// Terminate ends the game early; the winner is decided by score.
func (s *State) Terminate() (*State, error) {
	if s.status == Finished {
		return nil, fmt.Errorf("failed to terminate: %w", rules.ErrGameFinished)
	}

	next := s.clone()
	next.status = Finished
	next.reason = Terminated
	return next, nil
}

// Apply plays m, which must be for the player to move.
func (s *State) Apply(m Move) (*State, error) {
	if m.Player != s.toPlay {
		return nil, fmt.Errorf("%w: %s to play, got %s", ErrOutOfTurn, s.toPlay, m.Player)
	}

	at := m.Timestamp
	if at.IsZero() {
		at = s.opts.Clock()
	}
	if m.IsPass || m.Point.IsNone() {
		return s.pass(at)
	}
	return s.place(m.Point, at)
}
