package board

// StarPoints returns the conventional hoshi for a supported size, ordered the
// way handicap stones are placed: the four corners first (top-right,
// bottom-left, bottom-right, top-left), then sides, then the center.
func StarPoints(size int) []Point {
	switch size {
	case 9:
		return []Point{
			{2, 6}, {6, 2}, {6, 6}, {2, 2},
			{4, 4},
		}
	case 13:
		return []Point{
			{3, 9}, {9, 3}, {9, 9}, {3, 3},
			{6, 3}, {6, 9}, {3, 6}, {9, 6},
			{6, 6},
		}
	case 19:
		return []Point{
			{3, 15}, {15, 3}, {15, 15}, {3, 3},
			{9, 3}, {9, 15}, {3, 9}, {15, 9},
			{9, 9},
		}
	default:
		return nil
	}
}

// IsStarPoint reports whether p is one of the size's star points.
func IsStarPoint(p Point, size int) bool {
	for _, s := range StarPoints(size) {
		if s == p {
			return true
		}
	}
	return false
}

// HandicapPoints returns default handicap placement for n stones.
// Odd counts above four include the center; six and eight use the sides
// without the center.
func HandicapPoints(size, n int) []Point {
	stars := StarPoints(size)
	if n < 2 || n > len(stars) {
		return nil
	}
	center := stars[len(stars)-1]

	switch {
	case n <= 4:
		return append([]Point(nil), stars[:n]...)
	case len(stars) == 5:
		// 9x9 only has a center beyond the corners.
		return append([]Point(nil), stars[:5]...)
	case n%2 == 1:
		pts := append([]Point(nil), stars[:n-1]...)
		return append(pts, center)
	default:
		return append([]Point(nil), stars[:n]...)
	}
}

// MaxHandicap returns the largest supported handicap for size.
func MaxHandicap(size int) int {
	return len(StarPoints(size))
}
