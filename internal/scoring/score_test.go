package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmmcquay/goban-mcp/internal/board"
)

func mustBoard(t *testing.T, rows ...string) *board.Board {
	t.Helper()
	b, err := board.FromRows(rows)
	require.NoError(t, err)
	return b
}

func TestEmptyBoardWithKomi(t *testing.T) {
	s := Calculate(board.New(9), Captures{}, 6.5)

	assert.Equal(t, 0.0, s.BlackScore)
	assert.Equal(t, 6.5, s.WhiteScore)
	assert.Zero(t, s.BlackTerritory)
	assert.Zero(t, s.WhiteTerritory)
	assert.Equal(t, 81, s.Neutral)
	assert.Equal(t, board.White, s.Winner())
	assert.Equal(t, 6.5, s.Margin())
	assert.Equal(t, "W+6.5", s.Result())
}

func TestTerritoryAndCaptures(t *testing.T) {
	// Black walls off column 0-1, White walls off column 7-8.
	b := mustBoard(t,
		".X.....O.",
		".X.....O.",
		".X.....O.",
		".X.....O.",
		".X.....O.",
		".X.....O.",
		".X.....O.",
		".X.....O.",
		".X.....O.",
	)

	s := Calculate(b, Captures{Black: 3, White: 1}, 0.5)
	assert.Equal(t, 9, s.BlackTerritory)
	assert.Equal(t, 9, s.WhiteTerritory)
	assert.Equal(t, 45, s.Neutral, "middle region touches both colors")
	assert.Equal(t, 12.0, s.BlackScore)
	assert.Equal(t, 10.5, s.WhiteScore)
	assert.Equal(t, board.Black, s.Winner())
	assert.Equal(t, "B+1.5", s.Result())
}

func TestDraw(t *testing.T) {
	b := mustBoard(t,
		".X.....O.",
		".X.....O.",
		".X.....O.",
		".X.....O.",
		".X.....O.",
		".X.....O.",
		".X.....O.",
		".X.....O.",
		".X.....O.",
	)

	s := Calculate(b, Captures{}, 0)
	assert.Equal(t, board.Empty, s.Winner())
	assert.Zero(t, s.Margin())
	assert.Equal(t, "Draw", s.Result())
}

func TestWholeNumberResult(t *testing.T) {
	s := Score{BlackScore: 10, WhiteScore: 3}
	assert.Equal(t, "B+7", s.Result())
}

func TestCalculateIsIdempotent(t *testing.T) {
	b := mustBoard(t,
		"..X.O....",
		".XX.OO...",
		"XX...O...",
		".........",
		"....X....",
		".........",
		"...O.....",
		"OO.......",
		".O.......",
	)
	before := b.Clone()

	first := Calculate(b, Captures{Black: 2}, 7.5)
	second := Calculate(b, Captures{Black: 2}, 7.5)
	assert.Equal(t, first, second)
	assert.True(t, before.Equal(b))
}

func TestOwnership(t *testing.T) {
	b := mustBoard(t,
		".X.......",
		"XX.......",
		".........",
		".........",
		".........",
		".........",
		".........",
		"OO.......",
		".O.......",
	)

	own := Ownership(b)
	assert.Equal(t, board.Black, own.At(board.Point{Row: 0, Col: 0}))
	assert.Equal(t, board.White, own.At(board.Point{Row: 8, Col: 0}))
	assert.Equal(t, board.Empty, own.At(board.Point{Row: 4, Col: 4}), "large region is neutral")
	assert.Equal(t, board.Empty, own.At(board.Point{Row: 0, Col: 1}), "stones are not territory")
}

func TestVisualize(t *testing.T) {
	b := mustBoard(t,
		".X.......",
		"XX.......",
		".........",
		".........",
		".........",
		".........",
		".........",
		".........",
		".........",
	)
	s := Calculate(b, Captures{}, 6.5)

	out := Visualize(b, s)
	assert.Contains(t, out, " 0  b X")
	assert.Contains(t, out, "Result: B+71.5")
}
