// Package game holds the immutable game state and its transitions.
//
// Every operation on *State returns a new *State and leaves the receiver
// valid, so snapshots can be handed to other goroutines without copying.
package game

import (
	"errors"
	"time"

	"github.com/dmmcquay/goban-mcp/internal/board"
	"github.com/dmmcquay/goban-mcp/internal/rules"
	"github.com/dmmcquay/goban-mcp/internal/scoring"
)

var (
	ErrInvalidBoardSize = errors.New("board size must be 9, 13 or 19")
	ErrInvalidHandicap  = errors.New("invalid handicap")
	ErrInvalidKomi      = errors.New("komi must be a finite number")
	ErrNothingToUndo    = errors.New("nothing to undo")
	ErrOutOfTurn        = errors.New("move played out of turn")
)

// Status is the lifecycle state of a game.
type Status int

const (
	Playing Status = iota
	Finished
)

func (s Status) String() string {
	if s == Finished {
		return "finished"
	}
	return "playing"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// EndReason says how a finished game ended.
type EndReason int

const (
	NotEnded EndReason = iota
	TwoPasses
	Resignation
	Terminated
)

func (r EndReason) String() string {
	switch r {
	case TwoPasses:
		return "two-passes"
	case Resignation:
		return "resignation"
	case Terminated:
		return "terminated"
	default:
		return ""
	}
}

func (r EndReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Move is one entry of the history. Passes carry board.NoPoint.
type Move struct {
	Player    board.Stone `json:"player"`
	Point     board.Point `json:"point"`
	Timestamp time.Time   `json:"timestamp"`
	Captures  int         `json:"captures"`
	IsPass    bool        `json:"isPass"`
}

// PassMove builds a history entry for a pass by player.
func PassMove(player board.Stone) Move {
	return Move{Player: player, Point: board.NoPoint, IsPass: true}
}

// State is one immutable game snapshot.
type State struct {
	opts  Options
	setup []board.Point

	board    *board.Board
	toPlay   board.Stone
	ko       board.Point
	status   Status
	reason   EndReason
	resigned board.Stone
	passes   int
	captures scoring.Captures
	history  []Move
}

func (s *State) Size() int { return s.opts.Size }
func (s *State) Komi() float64 { return s.opts.Komi }
func (s *State) ToPlay() board.Stone { return s.toPlay }
func (s *State) Ko() board.Point { return s.ko }
func (s *State) Status() Status { return s.status }
func (s *State) EndReason() EndReason { return s.reason }
func (s *State) Passes() int { return s.passes }
func (s *State) MoveNumber() int { return len(s.history) }
func (s *State) IsFinished() bool { return s.status == Finished }
func (s *State) Captures() scoring.Captures { return s.captures }

// Handicap returns the number of setup stones.
func (s *State) Handicap() int {
	return len(s.setup)
}

// HandicapStones returns the setup stones in placement order.
func (s *State) HandicapStones() []board.Point {
	return append([]board.Point(nil), s.setup...)
}

// Options returns the options the game was created with, normalized.
func (s *State) Options() Options {
	o := s.opts
	o.HandicapPoints = s.HandicapStones()
	o.Handicap = len(s.setup)
	return o
}

// Board returns a copy of the current board.
func (s *State) Board() *board.Board {
	return s.board.Clone()
}

// Position exposes the state to the resolver. The board is shared and must
// not be modified.
func (s *State) Position() rules.Position {
	return rules.Position{
		Board:    s.board,
		ToPlay:   s.toPlay,
		Ko:       s.ko,
		Finished: s.status == Finished,
	}
}

// History returns a copy of the move list.
func (s *State) History() []Move {
	return append([]Move(nil), s.history...)
}

// LastMove returns the most recent move, if any.
func (s *State) LastMove() (Move, bool) {
	if len(s.history) == 0 {
		return Move{}, false
	}
	return s.history[len(s.history)-1], true
}

// Score computes the score of the current board.
func (s *State) Score() scoring.Score {
	return scoring.Calculate(s.board, s.captures, s.opts.Komi)
}

// Winner returns the winner of a finished game, or Empty while playing or
// on a draw.
func (s *State) Winner() board.Stone {
	if s.status != Finished {
		return board.Empty
	}
	if s.reason == Resignation {
		return s.resigned.Opponent()
	}
	return s.Score().Winner()
}

// Result formats a finished game's outcome the way SGF RE does
// ("B+R", "W+6.5", "Draw"). It is "" while the game is in progress.
func (s *State) Result() string {
	if s.status != Finished {
		return ""
	}
	if s.reason == Resignation {
		return s.resigned.Opponent().String() + "+R"
	}
	return s.Score().Result()
}

// IsLegal reports whether the player to move may place at p.
func (s *State) IsLegal(p board.Point) bool {
	return rules.IsLegal(s.Position(), p)
}

// Check returns the rejection for placing at p, or nil.
func (s *State) Check(p board.Point) error {
	return rules.Check(s.Position(), p)
}

// LegalMoves lists legal placements for the player to move.
func (s *State) LegalMoves() []board.Point {
	return rules.LegalMoves(s.Position())
}

func (s *State) clone() *State {
	next := *s
	next.history = s.history[:len(s.history):len(s.history)]
	return &next
}
