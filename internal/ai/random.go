package ai

import (
	"github.com/dmmcquay/goban-mcp/internal/board"
	"github.com/dmmcquay/goban-mcp/internal/game"
)

func chooseRandom(st *game.State, legal []board.Point, p Params) Decision {
	pick := legal[p.rng().Intn(len(legal))]
	return Decision{
		Point:    pick,
		Player:   st.ToPlay(),
		Strategy: Random,
	}
}
