package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/dmmcquay/goban-mcp/internal/ai"
	"github.com/dmmcquay/goban-mcp/internal/config"
	"github.com/dmmcquay/goban-mcp/internal/game"
	"github.com/dmmcquay/goban-mcp/internal/logging"
)

// Manager caches AI decisions by position fingerprint. Only searches whose
// answer is a pure function of the position and parameters are cached.
type Manager struct {
	cache   *LRU[ai.Decision]
	logger  logging.ContextLogger
	enabled bool
}

// NewManager creates a new cache manager. A nil or disabled config yields a
// manager that never stores anything.
func NewManager(cfg *config.CacheConfig, logger logging.ContextLogger) *Manager {
	if cfg == nil || !cfg.Enabled {
		return &Manager{logger: logger}
	}

	return &Manager{
		cache:   NewLRU[ai.Decision](cfg.MaxItems, cfg.MaxSizeBytes, cfg.TTL),
		logger:  logger,
		enabled: true,
	}
}

type fingerprint struct {
	Size        int     `json:"size"`
	Komi        float64 `json:"komi"`
	Board       string  `json:"board"`
	ToPlay      string  `json:"toPlay"`
	Ko          [2]int  `json:"ko"`
	Passes      int     `json:"passes"`
	Captures    [2]int  `json:"captures"`
	Finished    bool    `json:"finished"`
	Strategy    string  `json:"strategy"`
	Seed        int64   `json:"seed"`
	Iterations  int     `json:"iterations"`
	Exploration float64 `json:"exploration"`
	UsePrior    bool    `json:"usePrior"`
	PriorWeight float64 `json:"priorWeight"`
	MaxPlayout  int     `json:"maxPlayout"`
	Candidates  int     `json:"candidates"`
}

// Key fingerprints everything a search can observe. ok is false when the
// search is not reproducible and must not be cached.
func Key(st *game.State, s ai.Strategy, p ai.Params) (key string, ok bool, err error) {
	if !p.Deterministic(s) {
		return "", false, nil
	}

	ko := st.Ko()
	caps := st.Captures()
	fp := fingerprint{
		Size:        st.Size(),
		Komi:        st.Komi(),
		Board:       st.Position().Board.Key(),
		ToPlay:      st.ToPlay().String(),
		Ko:          [2]int{ko.Row, ko.Col},
		Passes:      st.Passes(),
		Captures:    [2]int{caps.Black, caps.White},
		Finished:    st.IsFinished(),
		Strategy:    string(s),
		Seed:        p.Seed,
		Iterations:  p.Iterations,
		Exploration: p.Exploration,
		UsePrior:    p.UsePrior,
		PriorWeight: p.PriorWeight,
		MaxPlayout:  p.MaxPlayoutMoves,
		Candidates:  p.Candidates,
	}
	if s == ai.Heuristic {
		// Only the candidate count changes a heuristic answer.
		candidates := fp.Candidates
		fp = fingerprint{
			Size: fp.Size, Komi: fp.Komi, Board: fp.Board, ToPlay: fp.ToPlay, Ko: fp.Ko,
			Passes: fp.Passes, Captures: fp.Captures, Finished: fp.Finished,
			Strategy: fp.Strategy, Candidates: candidates,
		}
	}

	data, err := json.Marshal(fp)
	if err != nil {
		return "", false, fmt.Errorf("failed to marshal cache key: %w", err)
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), true, nil
}

// Get retrieves a cached decision.
func (m *Manager) Get(key string) (ai.Decision, bool) {
	if !m.IsEnabled() {
		return ai.Decision{}, false
	}
	d, ok := m.cache.Get(key)
	if ok {
		d.Candidates = append([]ai.Candidate(nil), d.Candidates...)
	}
	return d, ok
}

// Put stores a decision.
func (m *Manager) Put(key string, d ai.Decision) {
	if !m.IsEnabled() {
		return
	}
	d.Candidates = append([]ai.Candidate(nil), d.Candidates...)
	size := EstimateSize(d)
	m.cache.Put(key, d, size)
	m.logger.Debug("Cached search result", "key", key, "size", size, "strategy", d.Strategy)
}

// Stats returns cache statistics.
func (m *Manager) Stats() Stats {
	if !m.IsEnabled() {
		return Stats{}
	}
	return m.cache.Stats()
}

// Clear clears the cache.
func (m *Manager) Clear() {
	if m.IsEnabled() {
		m.cache.Clear()
	}
}

// IsEnabled returns whether caching is enabled. A nil Manager is disabled.
func (m *Manager) IsEnabled() bool {
	return m != nil && m.enabled
}

// EstimateSize estimates the size of a value from its JSON encoding.
func EstimateSize(v interface{}) int64 {
	data, err := json.Marshal(v)
	if err != nil {
		return 1024
	}
	return int64(len(data))
}
