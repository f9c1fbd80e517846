package board

import (
	"fmt"
	"strings"
)

// Stone is the content of a single intersection.
type Stone int8

const (
	Empty Stone = iota
	Black
	White
)

// Opponent returns the other color. Empty has no opponent.
func (s Stone) Opponent() Stone {
	switch s {
	case Black:
		return White
	case White:
		return Black
	default:
		return Empty
	}
}

// String returns the SGF-style color letter ("B", "W") or "." for empty.
func (s Stone) String() string {
	switch s {
	case Black:
		return "B"
	case White:
		return "W"
	default:
		return "."
	}
}

// ParseStone converts "B"/"W" (any case, or "black"/"white") into a Stone.
func ParseStone(s string) (Stone, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "b", "black":
		return Black, nil
	case "w", "white":
		return White, nil
	default:
		return Empty, fmt.Errorf("invalid color: %q", s)
	}
}

// MarshalText encodes the stone as its String form.
func (s Stone) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts anything ParseStone does, plus "." and "" for Empty.
func (s *Stone) UnmarshalText(text []byte) error {
	if t := strings.TrimSpace(string(text)); t == "" || t == "." {
		*s = Empty
		return nil
	}
	v, err := ParseStone(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Point is a zero-based (row, col) coordinate.
type Point struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// NoPoint is the sentinel used for passes and for "no ko".
var NoPoint = Point{Row: -1, Col: -1}

// IsNone reports whether p is the NoPoint sentinel.
func (p Point) IsNone() bool {
	return p == NoPoint
}

func (p Point) String() string {
	if p.IsNone() {
		return "pass"
	}
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// Board is a square grid of stones stored row-major.
type Board struct {
	size  int
	cells []Stone
}

// SupportedSizes lists the board sizes a game may be created with.
var SupportedSizes = []int{9, 13, 19}

// ValidSize reports whether size is one of SupportedSizes.
func ValidSize(size int) bool {
	for _, s := range SupportedSizes {
		if s == size {
			return true
		}
	}
	return false
}

// New returns an empty board. Size validation is the caller's job.
func New(size int) *Board {
	if size < 0 {
		size = 0
	}
	return &Board{
		size:  size,
		cells: make([]Stone, size*size),
	}
}

// Size returns the side length.
func (b *Board) Size() int {
	return b.size
}

// Clone returns a deep copy.
func (b *Board) Clone() *Board {
	cells := make([]Stone, len(b.cells))
	copy(cells, b.cells)
	return &Board{size: b.size, cells: cells}
}

// InBounds reports whether (r, c) lies on a board of the given size.
func InBounds(r, c, size int) bool {
	return r >= 0 && r < size && c >= 0 && c < size
}

// Contains reports whether p lies on the board.
func (b *Board) Contains(p Point) bool {
	return InBounds(p.Row, p.Col, b.size)
}

// At returns the stone at p, or Empty when p is off the board.
func (b *Board) At(p Point) Stone {
	if !b.Contains(p) {
		return Empty
	}
	return b.cells[p.Row*b.size+p.Col]
}

// Set writes s at p. Boards owned by a game state are never Set; callers
// mutate a Clone.
func (b *Board) Set(p Point, s Stone) {
	if !b.Contains(p) {
		return
	}
	b.cells[p.Row*b.size+p.Col] = s
}

// Neighbors returns the orthogonal in-bounds neighbors of p.
func Neighbors(p Point, size int) []Point {
	out := make([]Point, 0, 4)
	for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		r, c := p.Row+d[0], p.Col+d[1]
		if InBounds(r, c, size) {
			out = append(out, Point{Row: r, Col: c})
		}
	}
	return out
}

// Diagonals returns the diagonal in-bounds neighbors of p.
func Diagonals(p Point, size int) []Point {
	out := make([]Point, 0, 4)
	for _, d := range [4][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}} {
		r, c := p.Row+d[0], p.Col+d[1]
		if InBounds(r, c, size) {
			out = append(out, Point{Row: r, Col: c})
		}
	}
	return out
}

// Equal reports whether two boards have the same size and contents.
func (b *Board) Equal(o *Board) bool {
	if b == nil || o == nil {
		return b == o
	}
	if b.size != o.size {
		return false
	}
	for i := range b.cells {
		if b.cells[i] != o.cells[i] {
			return false
		}
	}
	return true
}

// Count returns the number of cells holding s.
func (b *Board) Count(s Stone) int {
	n := 0
	for _, c := range b.cells {
		if c == s {
			n++
		}
	}
	return n
}

// Stones returns the number of non-empty cells.
func (b *Board) Stones() int {
	return len(b.cells) - b.Count(Empty)
}

// Empties returns all empty points in row-major order.
func (b *Board) Empties() []Point {
	out := make([]Point, 0, len(b.cells))
	for i, c := range b.cells {
		if c == Empty {
			out = append(out, Point{Row: i / b.size, Col: i % b.size})
		}
	}
	return out
}

// Key returns a compact string encoding of the contents, one byte per cell.
func (b *Board) Key() string {
	buf := make([]byte, len(b.cells))
	for i, c := range b.cells {
		buf[i] = '0' + byte(c)
	}
	return string(buf)
}

// Rows renders each row as a string of ".", "X" (black) and "O" (white).
func (b *Board) Rows() []string {
	rows := make([]string, b.size)
	for r := 0; r < b.size; r++ {
		var sb strings.Builder
		for c := 0; c < b.size; c++ {
			sb.WriteByte(cellRune(b.cells[r*b.size+c]))
		}
		rows[r] = sb.String()
	}
	return rows
}

func cellRune(s Stone) byte {
	switch s {
	case Black:
		return 'X'
	case White:
		return 'O'
	default:
		return '.'
	}
}

// String draws the board with SGF-style column letters and zero-based row numbers.
func (b *Board) String() string {
	var sb strings.Builder

	sb.WriteString("   ")
	for c := 0; c < b.size; c++ {
		sb.WriteString(fmt.Sprintf(" %c", 'a'+c))
	}
	sb.WriteString("\n")

	for r, row := range b.Rows() {
		sb.WriteString(fmt.Sprintf("%2d ", r))
		for i := 0; i < len(row); i++ {
			sb.WriteByte(' ')
			sb.WriteByte(row[i])
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// FromRows builds a board from the Rows format. Any byte other than 'X'
// or 'O' is read as empty.
func FromRows(rows []string) (*Board, error) {
	b := New(len(rows))
	for r, row := range rows {
		if len(row) != len(rows) {
			return nil, fmt.Errorf("row %d has %d cells, want %d", r, len(row), len(rows))
		}
		for c := 0; c < len(row); c++ {
			switch row[c] {
			case 'X':
				b.cells[r*b.size+c] = Black
			case 'O':
				b.cells[r*b.size+c] = White
			}
		}
	}
	return b, nil
}
