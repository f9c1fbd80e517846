package ai

import (
	"sort"

	"github.com/dmmcquay/goban-mcp/internal/board"
	"github.com/dmmcquay/goban-mcp/internal/game"
	"github.com/dmmcquay/goban-mcp/internal/rules"
)

// Heuristic weights.
const (
	weightCapture    = 100.0
	weightLiberty    = 5.0
	weightAdjacency  = 3.0
	penaltyEdge      = -8.0
	bonusStarPoint   = 6.0
	penaltySelfAtari = -20.0

	starPointStones = 4
)

// evaluate scores a placement for pos.ToPlay. ok is false when the
// placement is illegal.
func evaluate(pos rules.Position, p board.Point) (score float64, ok bool) {
	out, err := rules.Play(pos, p)
	if err != nil {
		return 0, false
	}

	size := pos.Board.Size()
	stones := pos.Board.Stones()
	captured := len(out.Captured)
	libs := len(out.Board.GroupAt(p).Liberties)

	adjacent := 0
	for _, n := range board.Neighbors(p, size) {
		if out.Board.At(n) == pos.ToPlay.Opponent() {
			adjacent++
		}
	}

	score = weightCapture*float64(captured) +
		weightLiberty*float64(libs) +
		weightAdjacency*float64(adjacent)

	if line(p, size) <= 1 && adjacent == 0 && stones < size {
		score += penaltyEdge
	}
	if stones < starPointStones && board.IsStarPoint(p, size) {
		score += bonusStarPoint
	}
	if libs == 1 && captured == 0 {
		score += penaltySelfAtari
	}

	return score, true
}

// line is the zero-based distance from p to the nearest edge.
func line(p board.Point, size int) int {
	return min(p.Row, p.Col, size-1-p.Row, size-1-p.Col)
}

func chooseHeuristic(st *game.State, legal []board.Point, p Params) Decision {
	pos := st.Position()

	ranked := make([]Candidate, 0, len(legal))
	for _, pt := range legal {
		score, ok := evaluate(pos, pt)
		if !ok {
			continue
		}
		ranked = append(ranked, Candidate{Point: pt, Score: score})
	}
	if len(ranked) == 0 {
		return passDecision(st, Heuristic)
	}

	// Stable sort keeps row-major order among equal scores.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return Decision{
		Point:      ranked[0].Point,
		Player:     st.ToPlay(),
		Strategy:   Heuristic,
		Candidates: top(ranked, p.Candidates),
	}
}

// priors returns the heuristic score of each move normalized to [0, 1].
func priors(pos rules.Position, moves []board.Point) map[board.Point]float64 {
	raw := make(map[board.Point]float64, len(moves))
	lo, hi := 0.0, 0.0
	first := true
	for _, m := range moves {
		if m.IsNone() {
			continue
		}
		s, ok := evaluate(pos, m)
		if !ok {
			continue
		}
		raw[m] = s
		if first || s < lo {
			lo = s
		}
		if first || s > hi {
			hi = s
		}
		first = false
	}

	out := make(map[board.Point]float64, len(raw))
	for m, s := range raw {
		if hi == lo {
			out[m] = 1
			continue
		}
		out[m] = (s - lo) / (hi - lo)
	}
	return out
}

func top(c []Candidate, n int) []Candidate {
	if len(c) > n {
		c = c[:n]
	}
	return append([]Candidate(nil), c...)
}
