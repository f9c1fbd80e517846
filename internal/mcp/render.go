package mcp

import (
	"fmt"
	"strings"

	"github.com/dmmcquay/goban-mcp/internal/board"
	"github.com/dmmcquay/goban-mcp/internal/game"
)

func colorName(s board.Stone) string {
	switch s {
	case board.Black:
		return "Black"
	case board.White:
		return "White"
	default:
		return "Nobody"
	}
}

// describe renders a game for tool output.
func describe(id string, st *game.State) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Game %s (%dx%d, komi %g", id, st.Size(), st.Size(), st.Komi())
	if n := st.Handicap(); n > 0 {
		fmt.Fprintf(&sb, ", handicap %d", n)
	}
	sb.WriteString(")\n")

	if m, ok := st.LastMove(); ok {
		fmt.Fprintf(&sb, "Move %d: %s %s", st.MoveNumber(), colorName(m.Player), moveText(m))
		if m.Captures > 0 {
			fmt.Fprintf(&sb, ", capturing %d", m.Captures)
		}
		sb.WriteString("\n")
	}

	caps := st.Captures()
	fmt.Fprintf(&sb, "Captures: Black %d, White %d\n", caps.Black, caps.White)

	if st.IsFinished() {
		fmt.Fprintf(&sb, "Game over (%s): %s\n", st.EndReason(), st.Result())
	} else {
		fmt.Fprintf(&sb, "%s to play", colorName(st.ToPlay()))
		if ko := st.Ko(); !ko.IsNone() {
			fmt.Fprintf(&sb, ", ko at %s", ko)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(st.Board().String())
	return sb.String()
}

func moveText(m game.Move) string {
	if m.IsPass {
		return "passes"
	}
	return "at " + m.Point.String()
}
