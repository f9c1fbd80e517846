// Package ai picks moves for the player to move in a game snapshot.
package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/dmmcquay/goban-mcp/internal/board"
	"github.com/dmmcquay/goban-mcp/internal/game"
)

// Strategy names a move selector.
type Strategy string

const (
	Random    Strategy = "random"
	Heuristic Strategy = "heuristic"
	MCTS      Strategy = "mcts"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

// Strategies lists every supported selector.
var Strategies = []Strategy{Random, Heuristic, MCTS}

// ParseStrategy accepts a strategy name in any case.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case Random:
		return Random, nil
	case Heuristic:
		return Heuristic, nil
	case MCTS, "search":
		return MCTS, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// Params tunes the selectors. Zero values take the defaults.
type Params struct {
	// Seed drives every random choice. Zero seeds from the clock.
	Seed int64

	Iterations  int
	Exploration float64
	UsePrior    bool
	PriorWeight float64
	// MaxPlayoutMoves caps one simulation. Zero means 3 moves per cell.
	MaxPlayoutMoves int
	// Timeout stops the search early when positive.
	Timeout time.Duration
	// Candidates is how many ranked alternatives a Decision reports.
	Candidates int
}

const (
	DefaultIterations  = 1000
	DefaultPriorWeight = 1.0
	DefaultCandidates  = 5
)

// DefaultExploration is the UCT constant sqrt(2).
var DefaultExploration = math.Sqrt2

// NoExploration turns off the UCT exploration term. Any negative
// Exploration does the same.
const NoExploration = -1.0

func (p Params) withDefaults(size int) Params {
	if p.Iterations <= 0 {
		p.Iterations = DefaultIterations
	}
	switch {
	case p.Exploration == 0:
		p.Exploration = DefaultExploration
	case p.Exploration < 0:
		p.Exploration = 0
	}
	if p.PriorWeight <= 0 {
		p.PriorWeight = DefaultPriorWeight
	}
	if p.MaxPlayoutMoves <= 0 {
		p.MaxPlayoutMoves = 3 * size * size
	}
	if p.Candidates <= 0 {
		p.Candidates = DefaultCandidates
	}
	return p
}

func (p Params) rng() *rand.Rand {
	seed := p.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Deterministic reports whether two runs with p on the same position
// always agree.
func (p Params) Deterministic(s Strategy) bool {
	return s == Heuristic || (p.Seed != 0 && p.Timeout <= 0)
}

// Candidate is one ranked alternative.
type Candidate struct {
	Point   board.Point `json:"point"`
	Score   float64     `json:"score,omitempty"`
	Visits  int         `json:"visits,omitempty"`
	WinRate float64     `json:"winRate,omitempty"`
}

// Decision is a selector's answer. Pass is set iff the player to move had
// no legal placement (or, for mcts, the pass child was the most visited).
type Decision struct {
	Point      board.Point `json:"point"`
	Pass       bool        `json:"pass"`
	Player     board.Stone `json:"player"`
	Strategy   Strategy    `json:"strategy"`
	Iterations int         `json:"iterations,omitempty"`
	Visits     int         `json:"visits,omitempty"`
	WinRate    float64     `json:"winRate,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`
}

func passDecision(st *game.State, s Strategy) Decision {
	return Decision{Point: board.NoPoint, Pass: true, Player: st.ToPlay(), Strategy: s}
}

// Choose runs strategy s on st. st is only read.
func Choose(ctx context.Context, st *game.State, s Strategy, p Params) (Decision, error) {
	switch s {
	case Random, Heuristic, MCTS:
	default:
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
	p = p.withDefaults(st.Size())

	legal := st.LegalMoves()
	if len(legal) == 0 {
		return passDecision(st, s), nil
	}

	switch s {
	case Random:
		return chooseRandom(st, legal, p), nil
	case Heuristic:
		return chooseHeuristic(st, legal, p), nil
	default:
		return chooseMCTS(ctx, st, p)
	}
}

// Result is what SearchAsync delivers.
type Result struct {
	Decision Decision
	Err      error
}

// SearchAsync runs Choose on its own goroutine and delivers exactly one
// Result. The snapshot is never touched by anyone else, so no locking is
// needed.
func SearchAsync(ctx context.Context, snapshot *game.State, s Strategy, p Params) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		d, err := Choose(ctx, snapshot, s, p)
		out <- Result{Decision: d, Err: err}
	}()
	return out
}
