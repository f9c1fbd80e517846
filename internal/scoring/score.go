// Package scoring computes territory and final scores.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/dmmcquay/goban-mcp/internal/board"
)

// DrawEpsilon is the tolerance under which two scores are equal.
const DrawEpsilon = 1e-6

// Captures counts the stones each color has taken off the board.
type Captures struct {
	Black int `json:"black"`
	White int `json:"white"`
}

// Score is the derived result for one position.
type Score struct {
	BlackScore     float64  `json:"blackScore"`
	WhiteScore     float64  `json:"whiteScore"`
	BlackTerritory int      `json:"blackTerritory"`
	WhiteTerritory int      `json:"whiteTerritory"`
	Neutral        int      `json:"neutral"`
	Captures       Captures `json:"captures"`
	Komi           float64  `json:"komi"`
}

// Calculate scores b: each side gets its territory plus the stones it
// captured, and White also gets komi.
func Calculate(b *board.Board, captures Captures, komi float64) Score {
	own := Ownership(b)

	s := Score{
		Captures: captures,
		Komi:     komi,
	}
	for _, p := range b.Empties() {
		switch own.At(p) {
		case board.Black:
			s.BlackTerritory++
		case board.White:
			s.WhiteTerritory++
		default:
			s.Neutral++
		}
	}

	s.BlackScore = float64(s.BlackTerritory + captures.Black)
	s.WhiteScore = float64(s.WhiteTerritory+captures.White) + komi
	return s
}

// Ownership returns a board where every empty point bordered by exactly one
// color holds that color. Stones and neutral points are left empty.
func Ownership(b *board.Board) *board.Board {
	size := b.Size()
	out := board.New(size)
	visited := make([]bool, size*size)

	for _, start := range b.Empties() {
		if visited[start.Row*size+start.Col] {
			continue
		}

		region, borders := fillRegion(b, start, visited)
		if borders != bordersBlack && borders != bordersWhite {
			continue
		}
		owner := board.Black
		if borders == bordersWhite {
			owner = board.White
		}
		for _, p := range region {
			out.Set(p, owner)
		}
	}

	return out
}

const (
	bordersBlack = 1 << iota
	bordersWhite
)

func fillRegion(b *board.Board, start board.Point, visited []bool) ([]board.Point, int) {
	size := b.Size()
	var region []board.Point
	borders := 0

	stack := []board.Point{start}
	visited[start.Row*size+start.Col] = true

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		region = append(region, cur)

		for _, n := range board.Neighbors(cur, size) {
			switch b.At(n) {
			case board.Black:
				borders |= bordersBlack
			case board.White:
				borders |= bordersWhite
			default:
				idx := n.Row*size + n.Col
				if !visited[idx] {
					visited[idx] = true
					stack = append(stack, n)
				}
			}
		}
	}

	return region, borders
}

// Winner returns the leading color, or Empty for a draw.
func (s Score) Winner() board.Stone {
	diff := s.BlackScore - s.WhiteScore
	switch {
	case math.Abs(diff) < DrawEpsilon:
		return board.Empty
	case diff > 0:
		return board.Black
	default:
		return board.White
	}
}

// Margin is the winner's lead, zero on a draw.
func (s Score) Margin() float64 {
	if s.Winner() == board.Empty {
		return 0
	}
	return math.Abs(s.BlackScore - s.WhiteScore)
}

// Result formats the outcome as "B+3.5", "W+6.5" or "Draw".
func (s Score) Result() string {
	switch s.Winner() {
	case board.Black:
		return fmt.Sprintf("B+%s", formatPoints(s.Margin()))
	case board.White:
		return fmt.Sprintf("W+%s", formatPoints(s.Margin()))
	default:
		return "Draw"
	}
}

func formatPoints(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%g", v)
}

// Visualize draws the ownership map for b next to a score summary.
func Visualize(b *board.Board, s Score) string {
	own := Ownership(b)
	size := b.Size()

	var sb strings.Builder
	sb.WriteString("   ")
	for c := 0; c < size; c++ {
		sb.WriteString(fmt.Sprintf(" %c", 'a'+c))
	}
	sb.WriteString("\n")

	for r := 0; r < size; r++ {
		sb.WriteString(fmt.Sprintf("%2d ", r))
		for c := 0; c < size; c++ {
			p := board.Point{Row: r, Col: c}
			switch {
			case b.At(p) == board.Black:
				sb.WriteString(" X")
			case b.At(p) == board.White:
				sb.WriteString(" O")
			case own.At(p) == board.Black:
				sb.WriteString(" b")
			case own.At(p) == board.White:
				sb.WriteString(" w")
			default:
				sb.WriteString(" .")
			}
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Black: %d territory + %d captures = %g\n",
		s.BlackTerritory, s.Captures.Black, s.BlackScore))
	sb.WriteString(fmt.Sprintf("White: %d territory + %d captures + %g komi = %g\n",
		s.WhiteTerritory, s.Captures.White, s.Komi, s.WhiteScore))
	sb.WriteString(fmt.Sprintf("Neutral points: %d\n", s.Neutral))
	sb.WriteString(fmt.Sprintf("Result: %s\n", s.Result()))

	return sb.String()
}
