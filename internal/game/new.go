package game

import (
	"fmt"
	"math"
	"time"

	"github.com/dmmcquay/goban-mcp/internal/board"
)

// Options configures a new game. Komi and handicap placement are inputs;
// nothing here assumes a ruleset's default.
type Options struct {
	Size     int
	Komi     float64
	Handicap int
	// HandicapPoints overrides the default star-point placement. When set,
	// its length is the handicap.
	HandicapPoints []board.Point
	// Clock stamps moves. Defaults to time.Now.
	Clock func() time.Time
}

// NewGame starts a game. With two or more handicap stones White moves first.
func NewGame(opts Options) (*State, error) {
	if !board.ValidSize(opts.Size) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBoardSize, opts.Size)
	}
	if math.IsNaN(opts.Komi) || math.IsInf(opts.Komi, 0) {
		return nil, ErrInvalidKomi
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	setup, err := handicapStones(opts)
	if err != nil {
		return nil, err
	}
	opts.Handicap = len(setup)
	opts.HandicapPoints = nil

	b := board.New(opts.Size)
	for _, p := range setup {
		b.Set(p, board.Black)
	}

	toPlay := board.Black
	if len(setup) >= 2 {
		toPlay = board.White
	}

	return &State{
		opts:   opts,
		setup:  setup,
		board:  b,
		toPlay: toPlay,
		ko:     board.NoPoint,
		status: Playing,
	}, nil
}

func handicapStones(opts Options) ([]board.Point, error) {
	if len(opts.HandicapPoints) > 0 {
		return customHandicap(opts.Size, opts.HandicapPoints)
	}

	switch {
	case opts.Handicap == 0:
		return nil, nil
	case opts.Handicap < 2 || opts.Handicap > board.MaxHandicap(opts.Size):
		return nil, fmt.Errorf("%w: %d stones on %dx%d (allowed 0 or 2-%d)",
			ErrInvalidHandicap, opts.Handicap, opts.Size, opts.Size, board.MaxHandicap(opts.Size))
	default:
		return board.HandicapPoints(opts.Size, opts.Handicap), nil
	}
}

func customHandicap(size int, points []board.Point) ([]board.Point, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 stones, got %d", ErrInvalidHandicap, len(points))
	}

	seen := make(map[board.Point]bool, len(points))
	out := make([]board.Point, 0, len(points))
	for _, p := range points {
		if !board.InBounds(p.Row, p.Col, size) {
			return nil, fmt.Errorf("%w: stone %s is off the board", ErrInvalidHandicap, p)
		}
		if seen[p] {
			return nil, fmt.Errorf("%w: stone %s given twice", ErrInvalidHandicap, p)
		}
		seen[p] = true
		out = append(out, p)
	}
	return out, nil
}
