package sgf

import (
	"fmt"
	"math"
	"strconv"

	"github.com/dmmcquay/goban-mcp/internal/board"
	"github.com/dmmcquay/goban-mcp/internal/game"
	"github.com/dmmcquay/goban-mcp/internal/rules"
)

// DefaultSize applies when a record has no SZ property.
const DefaultSize = 19

// Coord converts p to a two-letter SGF coordinate: column then row, 'a' = 0.
func Coord(p board.Point) string {
	if p.IsNone() {
		return ""
	}
	return string([]byte{byte('a' + p.Col), byte('a' + p.Row)})
}

// ParseCoord converts an SGF coordinate back to a point. "" and, on boards
// up to 19, "tt" are passes; ok is false for anything malformed or off the
// board.
func ParseCoord(v string, size int) (p board.Point, pass, ok bool) {
	if v == "" || (v == "tt" && size <= 19) {
		return board.NoPoint, true, true
	}
	if len(v) != 2 {
		return board.NoPoint, false, false
	}
	col, row := int(v[0])-'a', int(v[1])-'a'
	if !board.InBounds(row, col, size) {
		return board.NoPoint, false, false
	}
	return board.Point{Row: row, Col: col}, false, true
}

// Tree builds the record for st.
func Tree(st *game.State) *GameTree {
	root := Node{Properties: map[string][]string{
		"GM": {"1"},
		"FF": {"4"},
		"SZ": {strconv.Itoa(st.Size())},
		"KM": {formatKomi(st.Komi())},
	}}
	if stones := st.HandicapStones(); len(stones) > 0 {
		root.Properties["HA"] = []string{strconv.Itoa(len(stones))}
		for _, p := range stones {
			root.Properties["AB"] = append(root.Properties["AB"], Coord(p))
		}
	}
	if res := st.Result(); res != "" {
		root.Properties["RE"] = []string{res}
	}

	tree := &GameTree{Nodes: []Node{root}}
	for _, m := range st.History() {
		tree.Nodes = append(tree.Nodes, Node{Properties: map[string][]string{
			m.Player.String(): {Coord(m.Point)},
		}})
	}
	return tree
}

// formatKomi writes one decimal ("6.5", "0.0") unless more are needed.
func formatKomi(k float64) string {
	if k*10 == math.Trunc(k*10) {
		return strconv.FormatFloat(k, 'f', 1, 64)
	}
	return strconv.FormatFloat(k, 'f', -1, 64)
}

// Encode serializes st, e.g. "(;GM[1]FF[4]SZ[9]KM[6.5];B[cc];W[])".
func Encode(st *game.State) string {
	return Serialize(Tree(st))
}

// Decode rebuilds a game from a record. Bad move tokens, moves out of turn
// and illegal moves are skipped and reported; only a missing root node or
// an unsupported size fails. base supplies what a record cannot carry, such
// as the clock; its size, komi and handicap are ignored.
func Decode(content string, base game.Options) (*game.State, []Issue, error) {
	tree, issues, err := Parse(content)
	if err != nil {
		return nil, issues, err
	}

	root := tree.Nodes[0]
	opts := base
	opts.Size = DefaultSize
	opts.Komi = 0
	opts.Handicap = 0
	opts.HandicapPoints = nil

	if v, ok := root.Get("SZ"); ok {
		size, err := strconv.Atoi(v)
		if err != nil {
			return nil, issues, fmt.Errorf("%w: SZ[%s]", game.ErrInvalidBoardSize, v)
		}
		opts.Size = size
	}
	if !board.ValidSize(opts.Size) {
		return nil, issues, fmt.Errorf("%w: got %d", game.ErrInvalidBoardSize, opts.Size)
	}

	if v, ok := root.Get("KM"); ok {
		if komi, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(komi) && !math.IsInf(komi, 0) {
			opts.Komi = komi
		} else {
			issues = append(issues, Issue{Property: "KM", Value: v, Reason: "komi is not a number"})
		}
	}

	issues = append(issues, setup(root, &opts)...)
	if _, ok := root.Properties["AW"]; ok {
		issues = append(issues, Issue{Property: "AW", Reason: "white setup stones are not supported"})
	}

	st, err := game.NewGame(opts)
	if err != nil {
		issues = append(issues, Issue{Property: "HA", Reason: err.Error()})
		opts.Handicap = 0
		opts.HandicapPoints = nil
		if st, err = game.NewGame(opts); err != nil {
			return nil, issues, err
		}
	}

	for i, n := range tree.Nodes {
		st, issues = applyNode(st, i, n, issues)
	}
	return st, issues, nil
}

// setup reads HA and AB into opts. AB wins over HA when both are present.
func setup(root Node, opts *game.Options) []Issue {
	var issues []Issue

	for _, v := range root.Properties["AB"] {
		p, pass, ok := ParseCoord(v, opts.Size)
		if !ok || pass {
			issues = append(issues, Issue{Property: "AB", Value: v, Reason: "bad coordinate"})
			continue
		}
		opts.HandicapPoints = append(opts.HandicapPoints, p)
	}
	if len(opts.HandicapPoints) > 0 {
		return issues
	}

	if v, ok := root.Get("HA"); ok {
		n, err := strconv.Atoi(v)
		switch {
		case err != nil:
			issues = append(issues, Issue{Property: "HA", Value: v, Reason: "handicap is not a number"})
		case n >= 2:
			opts.Handicap = n
		}
	}
	return issues
}

func applyNode(st *game.State, idx int, n Node, issues []Issue) (*game.State, []Issue) {
	for _, prop := range []string{"B", "W"} {
		values, ok := n.Properties[prop]
		if !ok {
			continue
		}
		v := values[0]
		bad := func(reason string) {
			issues = append(issues, Issue{Node: idx, Property: prop, Value: v, Reason: reason})
		}

		color, _ := board.ParseStone(prop)
		if color != st.ToPlay() {
			bad(fmt.Sprintf("%s is not to play", color))
			continue
		}

		p, pass, ok := ParseCoord(v, st.Size())
		if !ok {
			bad("bad coordinate")
			continue
		}

		var next *game.State
		var err error
		if pass {
			next, err = st.Pass()
		} else {
			next, err = st.Place(p)
		}
		if err != nil {
			if kind := rules.KindName(err); kind != "" {
				bad(kind)
			} else {
				bad(err.Error())
			}
			continue
		}
		st = next
	}
	return st, issues
}
