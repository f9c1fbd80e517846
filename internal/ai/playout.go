package ai

import (
	"math/rand"

	"github.com/dmmcquay/goban-mcp/internal/board"
	"github.com/dmmcquay/goban-mcp/internal/rules"
	"github.com/dmmcquay/goban-mcp/internal/scoring"
)

// playout plays uniformly random legal moves from the given position until
// two consecutive passes or maxMoves, and returns the scored result.
// Moves that fill one of the mover's own single-point eyes are skipped so
// groups stay alive long enough for the score to mean something.
func playout(start rules.Position, passes int, captures scoring.Captures, komi float64, maxMoves int, rng *rand.Rand) scoring.Score {
	b := start.Board.Clone()
	toPlay := start.ToPlay
	ko := start.Ko

	cands := make([]board.Point, 0, b.Size()*b.Size())
	for moves := 0; moves < maxMoves && passes < 2; moves++ {
		cands = append(cands[:0], b.Empties()...)
		pos := rules.Position{Board: b, ToPlay: toPlay, Ko: ko}

		played := false
		for i := range cands {
			// Partial Fisher-Yates: each untried candidate is equally likely.
			j := i + rng.Intn(len(cands)-i)
			cands[i], cands[j] = cands[j], cands[i]
			p := cands[i]

			if b.IsEye(p, toPlay) || rules.Check(pos, p) != nil {
				continue
			}

			b.Set(p, toPlay)
			captured := rules.CheckCaptures(b, p, toPlay)
			if toPlay == board.Black {
				captures.Black += len(captured)
			} else {
				captures.White += len(captured)
			}
			ko = board.NoPoint
			if len(captured) == 1 {
				ko = captured[0]
			}
			played = true
			break
		}

		if played {
			passes = 0
		} else {
			passes++
			ko = board.NoPoint
		}
		toPlay = toPlay.Opponent()
	}

	return scoring.Calculate(b, captures, komi)
}
