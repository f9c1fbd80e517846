package game

import (
	"github.com/dmmcquay/goban-mcp/internal/board"
	"github.com/dmmcquay/goban-mcp/internal/scoring"
)

// Snapshot is the JSON view of a State handed to clients.
type Snapshot struct {
	Size      int              `json:"size"`
	Komi      float64          `json:"komi"`
	Handicap  int              `json:"handicap"`
	Board     []string         `json:"board"`
	ToPlay    board.Stone      `json:"toPlay"`
	Ko        *board.Point     `json:"ko,omitempty"`
	Status    Status           `json:"status"`
	EndReason EndReason        `json:"endReason,omitempty"`
	Result    string           `json:"result,omitempty"`
	Passes    int              `json:"consecutivePasses"`
	Captures  scoring.Captures `json:"captures"`
	Moves     []Move           `json:"moves"`
}

// Snapshot renders s for serialization.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Size:      s.opts.Size,
		Komi:      s.opts.Komi,
		Handicap:  len(s.setup),
		Board:     s.board.Rows(),
		ToPlay:    s.toPlay,
		Status:    s.status,
		EndReason: s.reason,
		Result:    s.Result(),
		Passes:    s.passes,
		Captures:  s.captures,
		Moves:     s.History(),
	}
	if !s.ko.IsNone() {
		ko := s.ko
		snap.Ko = &ko
	}
	if snap.Moves == nil {
		snap.Moves = []Move{}
	}
	return snap
}
