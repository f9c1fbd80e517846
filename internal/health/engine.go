package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmmcquay/goban-mcp/internal/ai"
	"github.com/dmmcquay/goban-mcp/internal/board"
	"github.com/dmmcquay/goban-mcp/internal/game"
	"github.com/dmmcquay/goban-mcp/internal/rules"
)

// selfTestMoves capture a lone black stone at (4,4), leaving a ko there.
var selfTestMoves = []board.Point{
	{Row: 4, Col: 4}, {Row: 3, Col: 4},
	{Row: 0, Col: 0}, {Row: 4, Col: 3},
	{Row: 0, Col: 8}, {Row: 5, Col: 4},
	{Row: 8, Col: 0}, {Row: 4, Col: 5},
}

// EngineSelfTest plays a short fixed game through the rules engine and
// checks capture, ko, pass termination, scoring, undo and a heuristic move.
func EngineSelfTest(ctx context.Context) error {
	st, err := game.NewGame(game.Options{Size: 9, Komi: 6.5, Clock: func() time.Time { return time.Time{} }})
	if err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}

	for i, p := range selfTestMoves {
		if st, err = st.Place(p); err != nil {
			return fmt.Errorf("failed to play move %d: %w", i+1, err)
		}
	}

	ko := board.Point{Row: 4, Col: 4}
	if st.Captures().White != 1 || st.Ko() != ko {
		return fmt.Errorf("capture not resolved: captures=%+v ko=%s", st.Captures(), st.Ko())
	}
	if _, err := st.Place(ko); !errors.Is(err, rules.ErrKoViolation) {
		return fmt.Errorf("ko recapture not rejected: %v", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	d, err := ai.Choose(ctx, st, ai.Heuristic, ai.Params{})
	if err != nil {
		return fmt.Errorf("heuristic search failed: %w", err)
	}
	if d.Pass || !st.IsLegal(d.Point) {
		return fmt.Errorf("heuristic chose an illegal move %s", d.Point)
	}

	finished := st
	for i := 0; i < 2; i++ {
		if finished, err = finished.Pass(); err != nil {
			return err
		}
	}
	if !finished.IsFinished() || finished.EndReason() != game.TwoPasses {
		return errors.New("two passes did not finish the game")
	}
	if finished.Result() == "" {
		return errors.New("finished game has no result")
	}

	back, err := finished.Undo()
	if err != nil {
		return fmt.Errorf("failed to undo: %w", err)
	}
	if back.IsFinished() || back.Passes() != 1 {
		return errors.New("undo did not reopen the game")
	}

	return nil
}
