package board

// Group is a maximal orthogonally connected set of same-colored stones
// together with its distinct liberties.
type Group struct {
	Color     Stone
	Stones    []Point
	Liberties []Point
}

// HasLiberty reports whether the group has at least one liberty.
func (g Group) HasLiberty() bool {
	return len(g.Liberties) > 0
}

// InAtari reports whether the group has exactly one liberty.
func (g Group) InAtari() bool {
	return len(g.Stones) > 0 && len(g.Liberties) == 1
}

// GroupAndLiberties flood-fills from (row, col).
func GroupAndLiberties(b *Board, row, col int) Group {
	return b.GroupAt(Point{Row: row, Col: col})
}

// GroupAt returns the group containing p. An empty or off-board origin
// yields an empty group with no liberties.
func (b *Board) GroupAt(p Point) Group {
	color := b.At(p)
	if !b.Contains(p) || color == Empty {
		return Group{Color: Empty}
	}

	g := Group{Color: color}
	seen := make([]bool, len(b.cells))
	libSeen := make([]bool, len(b.cells))

	queue := []Point{p}
	seen[p.Row*b.size+p.Col] = true

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		g.Stones = append(g.Stones, cur)

		for _, n := range Neighbors(cur, b.size) {
			idx := n.Row*b.size + n.Col
			switch b.cells[idx] {
			case color:
				if !seen[idx] {
					seen[idx] = true
					queue = append(queue, n)
				}
			case Empty:
				if !libSeen[idx] {
					libSeen[idx] = true
					g.Liberties = append(g.Liberties, n)
				}
			}
		}
	}

	return g
}

// Remove clears every stone of g from the board and returns how many were removed.
func (b *Board) Remove(g Group) int {
	for _, p := range g.Stones {
		b.Set(p, Empty)
	}
	return len(g.Stones)
}

// IsEye reports whether p is a single-point eye of color: every orthogonal
// neighbor holds color, and the diagonals do not falsify it (two opponent
// diagonals in the center, one on the edge or in the corner).
func (b *Board) IsEye(p Point, color Stone) bool {
	if b.At(p) != Empty || color == Empty {
		return false
	}
	for _, n := range Neighbors(p, b.size) {
		if b.At(n) != color {
			return false
		}
	}

	falsifiers := 0
	diags := Diagonals(p, b.size)
	for _, d := range diags {
		if b.At(d) == color.Opponent() {
			falsifiers++
		}
	}
	if len(diags) < 4 {
		falsifiers++
	}
	return falsifiers < 2
}
