package sgf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmmcquay/goban-mcp/internal/board"
	"github.com/dmmcquay/goban-mcp/internal/game"
)

func pt(r, c int) board.Point {
	return board.Point{Row: r, Col: c}
}

func TestCoord(t *testing.T) {
	assert.Equal(t, "cd", Coord(pt(3, 2)))
	assert.Equal(t, "", Coord(board.NoPoint))

	tests := []struct {
		in       string
		size     int
		wantP    board.Point
		wantPass bool
		wantOK   bool
	}{
		{"cd", 9, pt(3, 2), false, true},
		{"aa", 19, pt(0, 0), false, true},
		{"ss", 19, pt(18, 18), false, true},
		{"", 9, board.NoPoint, true, true},
		{"tt", 19, board.NoPoint, true, true},
		{"jj", 9, board.NoPoint, false, false},
		{"c", 9, board.NoPoint, false, false},
		{"cde", 9, board.NoPoint, false, false},
		{"C4", 9, board.NoPoint, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, pass, ok := ParseCoord(tt.in, tt.size)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantPass, pass)
			assert.Equal(t, tt.wantP, p)
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		sgf        string
		wantNodes  int
		wantIssues int
		wantErr    bool
	}{
		{
			name:      "basic game",
			sgf:       "(;GM[1]FF[4]SZ[9]KM[6.5];B[cc];W[gg];B[])",
			wantNodes: 4,
		},
		{
			name: "whitespace and comments",
			sgf: `(;GM[1]FF[4]SZ[13]KM[7.5]C[a comment with \] bracket]
				;B[dd]
				;W[jj])`,
			wantNodes: 3,
		},
		{
			name:       "variations follow the first branch",
			sgf:        "(;SZ[9];B[cc](;W[gg];B[gc])(;W[cg]))",
			wantNodes:  4,
			wantIssues: 1,
		},
		{
			name:       "property without value",
			sgf:        "(;SZ[9];B;W[gg])",
			wantNodes:  3,
			wantIssues: 1,
		},
		{
			name:       "stray characters",
			sgf:        "(;SZ[9]?;B[cc]#)",
			wantNodes:  2,
			wantIssues: 2,
		},
		{
			name:       "unclosed value truncates",
			sgf:        "(;SZ[9];B[cc];W[gg",
			wantNodes:  3,
			wantIssues: 1,
		},
		{
			name:      "old style names",
			sgf:       "(;SiZe[9];Black[cc])",
			wantNodes: 2,
		},
		{name: "no parenthesis", sgf: ";SZ[9];B[cc]", wantErr: true},
		{name: "no nodes", sgf: "()", wantErr: true},
		{name: "empty", sgf: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, issues, err := Parse(tt.sgf)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedRecord)
				return
			}
			require.NoError(t, err)
			assert.Len(t, tree.Nodes, tt.wantNodes)
			assert.Len(t, issues, tt.wantIssues, "issues: %v", issues)
		})
	}
}

func TestParseOldStyleNames(t *testing.T) {
	tree, _, err := Parse("(;SiZe[9];Black[cc])")
	require.NoError(t, err)
	size, ok := tree.Nodes[0].Get("SZ")
	require.True(t, ok)
	assert.Equal(t, "9", size)
	move, ok := tree.Nodes[1].Get("B")
	require.True(t, ok)
	assert.Equal(t, "cc", move)
}

func TestEncode(t *testing.T) {
	st, err := game.NewGame(game.Options{Size: 9, Komi: 6.5})
	require.NoError(t, err)
	st, err = st.Place(pt(2, 2))
	require.NoError(t, err)
	st, err = st.Pass()
	require.NoError(t, err)

	assert.Equal(t, "(;GM[1]FF[4]SZ[9]KM[6.5];B[cc];W[])", Encode(st))
}

func TestEncodeHandicapAndResult(t *testing.T) {
	st, err := game.NewGame(game.Options{Size: 19, Komi: 0.5, Handicap: 2})
	require.NoError(t, err)
	st, err = st.Resign()
	require.NoError(t, err)

	out := Encode(st)
	assert.True(t, strings.HasPrefix(out, "(;GM[1]FF[4]SZ[19]KM[0.5]HA[2]AB[pd][dp]RE[B+R]"), out)
}

func TestRoundTrip(t *testing.T) {
	st, err := game.NewGame(game.Options{Size: 13, Komi: 7.5, Handicap: 3})
	require.NoError(t, err)

	for _, p := range []board.Point{pt(3, 3), pt(9, 4), pt(6, 6), pt(2, 10)} {
		st, err = st.Place(p)
		require.NoError(t, err)
	}
	st, err = st.Pass()
	require.NoError(t, err)

	decoded, issues, err := Decode(Encode(st), game.Options{})
	require.NoError(t, err)
	assert.Empty(t, issues)

	assert.Equal(t, st.Size(), decoded.Size())
	assert.Equal(t, st.Komi(), decoded.Komi())
	assert.Equal(t, st.HandicapStones(), decoded.HandicapStones())
	assert.True(t, st.Board().Equal(decoded.Board()))
	assert.Equal(t, st.ToPlay(), decoded.ToPlay())

	want, got := st.History(), decoded.History()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Player, got[i].Player)
		assert.Equal(t, want[i].Point, got[i].Point)
		assert.Equal(t, want[i].IsPass, got[i].IsPass)
	}
}

func TestDecodeSkipsBadMoves(t *testing.T) {
	record := "(;GM[1]FF[4]SZ[9]KM[6.5]" +
		";B[cc]" + // ok
		";W[zz]" + // off board
		";W[cc]" + // occupied
		";B[dd]" + // out of turn
		";W[gg]" + // ok
		";B[x]" + // malformed
		";B[tt]" + // pass
		";W[]" + // pass, finishes the game
		";B[ee])" // game finished

	st, issues, err := Decode(record, game.Options{})
	require.NoError(t, err)

	assert.Equal(t, 4, st.MoveNumber())
	assert.Equal(t, game.Finished, st.Status())
	assert.Equal(t, board.Black, st.Board().At(pt(2, 2)))
	assert.Equal(t, board.White, st.Board().At(pt(6, 6)))

	reasons := make([]string, 0, len(issues))
	for _, is := range issues {
		reasons = append(reasons, is.Reason)
	}
	assert.Equal(t, []string{
		"bad coordinate",
		"OccupiedCell",
		"B is not to play",
		"bad coordinate",
		"GameFinished",
	}, reasons)
	assert.Equal(t, 2, issues[0].Node)
}

func TestDecodeRootErrors(t *testing.T) {
	_, _, err := Decode("(;SZ[10];B[aa])", game.Options{})
	assert.ErrorIs(t, err, game.ErrInvalidBoardSize)

	_, _, err = Decode("(;SZ[big])", game.Options{})
	assert.ErrorIs(t, err, game.ErrInvalidBoardSize)

	_, _, err = Decode("not a record", game.Options{})
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestDecodeDefaultsAndSetup(t *testing.T) {
	st, issues, err := Decode("(;KM[abc]AW[aa];B[dd])", game.Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultSize, st.Size())
	assert.Zero(t, st.Komi())
	assert.Len(t, issues, 2)

	// HA alone places stones on the default star points.
	st, _, err = Decode("(;SZ[9]HA[4])", game.Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, st.Handicap())
	assert.Equal(t, board.White, st.ToPlay())

	// A single AB stone is not a handicap; the game starts without it.
	st, issues, err = Decode("(;SZ[9]AB[cc];B[dd])", game.Options{})
	require.NoError(t, err)
	assert.Zero(t, st.Handicap())
	assert.Equal(t, 1, st.MoveNumber())
	assert.NotEmpty(t, issues)
}
