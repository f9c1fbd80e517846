package game

import (
	"fmt"

	"github.com/dmmcquay/goban-mcp/internal/board"
)

// Undo steps back one action. A resignation or termination is undone by
// reopening the game; otherwise the last move is dropped and the position
// is rebuilt by replaying the remaining history from the setup position.
func (s *State) Undo() (*State, error) {
	if s.status == Finished && (s.reason == Resignation || s.reason == Terminated) {
		next := s.clone()
		next.status = Playing
		next.reason = NotEnded
		next.resigned = board.Empty
		return next, nil
	}

	if len(s.history) == 0 {
		return nil, ErrNothingToUndo
	}

	opts := s.Options()
	return Replay(opts, s.history[:len(s.history)-1])
}

// Replay rebuilds a game from opts and a move list. Every move goes through
// the resolver; the first one it rejects aborts the replay.
func Replay(opts Options, moves []Move) (*State, error) {
	st, err := NewGame(opts)
	if err != nil {
		return nil, err
	}

	for i, m := range moves {
		next, err := st.Apply(m)
		if err != nil {
			return nil, fmt.Errorf("failed to replay move %d: %w", i+1, err)
		}
		st = next
	}

	return st, nil
}
