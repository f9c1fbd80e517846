package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmmcquay/goban-mcp/internal/ai"
	"github.com/dmmcquay/goban-mcp/internal/board"
	"github.com/dmmcquay/goban-mcp/internal/config"
	"github.com/dmmcquay/goban-mcp/internal/game"
	"github.com/dmmcquay/goban-mcp/internal/logging"
)

func play(t *testing.T, points ...board.Point) *game.State {
	t.Helper()
	st, err := game.NewGame(game.Options{Size: 9, Komi: 6.5})
	require.NoError(t, err)
	for _, p := range points {
		st, err = st.Place(p)
		require.NoError(t, err)
	}
	return st
}

func enabledManager() *Manager {
	return NewManager(&config.CacheConfig{Enabled: true, MaxItems: 10, TTL: time.Minute}, logging.NewNop())
}

func TestKey(t *testing.T) {
	a := play(t, board.Point{Row: 2, Col: 2}, board.Point{Row: 6, Col: 6}, board.Point{Row: 2, Col: 6})
	transposed := play(t, board.Point{Row: 2, Col: 6}, board.Point{Row: 6, Col: 6}, board.Point{Row: 2, Col: 2})
	other := play(t, board.Point{Row: 2, Col: 2}, board.Point{Row: 6, Col: 6}, board.Point{Row: 6, Col: 2})

	seeded := ai.Params{Seed: 7, Iterations: 50}

	keyA, ok, err := Key(a, ai.MCTS, seeded)
	require.NoError(t, err)
	require.True(t, ok)

	keyT, _, err := Key(transposed, ai.MCTS, seeded)
	require.NoError(t, err)
	assert.Equal(t, keyA, keyT, "same position reached by a different order")

	keyO, _, err := Key(other, ai.MCTS, seeded)
	require.NoError(t, err)
	assert.NotEqual(t, keyA, keyO)

	keySeed, _, err := Key(a, ai.MCTS, ai.Params{Seed: 8, Iterations: 50})
	require.NoError(t, err)
	assert.NotEqual(t, keyA, keySeed)

	keyRandom, _, err := Key(a, ai.Random, seeded)
	require.NoError(t, err)
	assert.NotEqual(t, keyA, keyRandom)

	h1, _, err := Key(a, ai.Heuristic, ai.Params{})
	require.NoError(t, err)
	h2, _, err := Key(a, ai.Heuristic, ai.Params{Seed: 99, Iterations: 5})
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "heuristic ignores search parameters")
}

func TestKeyNotReproducible(t *testing.T) {
	st := play(t)

	tests := []struct {
		name     string
		strategy ai.Strategy
		params   ai.Params
	}{
		{"unseeded mcts", ai.MCTS, ai.Params{}},
		{"unseeded random", ai.Random, ai.Params{}},
		{"mcts with timeout", ai.MCTS, ai.Params{Seed: 1, Timeout: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok, err := Key(st, tt.strategy, tt.params)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Empty(t, key)
		})
	}
}

func TestManager_GetPut(t *testing.T) {
	m := enabledManager()
	st := play(t, board.Point{Row: 4, Col: 4})
	params := ai.Params{Seed: 3, Iterations: 40}

	key, ok, err := Key(st, ai.MCTS, params)
	require.NoError(t, err)
	require.True(t, ok)

	_, hit := m.Get(key)
	assert.False(t, hit)

	d, err := ai.Choose(context.Background(), st, ai.MCTS, params)
	require.NoError(t, err)
	m.Put(key, d)

	cached, hit := m.Get(key)
	require.True(t, hit)
	assert.Equal(t, d, cached)

	again, err := ai.Choose(context.Background(), st, ai.MCTS, params)
	require.NoError(t, err)
	assert.Equal(t, again, cached, "seeded searches are reproducible")

	// Callers may mutate what they get back.
	require.NotEmpty(t, cached.Candidates)
	cached.Candidates[0].Visits = -1
	fresh, _ := m.Get(key)
	assert.NotEqual(t, -1, fresh.Candidates[0].Visits)

	stats := m.Stats()
	assert.Equal(t, 1, stats.Items)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)

	m.Clear()
	_, hit = m.Get(key)
	assert.False(t, hit)
}

func TestManager_Disabled(t *testing.T) {
	for _, cfg := range []*config.CacheConfig{nil, {Enabled: false, MaxItems: 10}} {
		m := NewManager(cfg, logging.NewNop())
		assert.False(t, m.IsEnabled())

		m.Put("key", ai.Decision{Strategy: ai.Heuristic})
		_, ok := m.Get("key")
		assert.False(t, ok)
		assert.Equal(t, Stats{}, m.Stats())
		m.Clear()
	}
}

func TestEstimateSize(t *testing.T) {
	small := EstimateSize(ai.Decision{Strategy: ai.Random})
	large := EstimateSize(ai.Decision{
		Strategy:   ai.MCTS,
		Candidates: make([]ai.Candidate, 20),
	})
	assert.Positive(t, small)
	assert.Greater(t, large, small)
	assert.Equal(t, int64(1024), EstimateSize(func() {}))
}
