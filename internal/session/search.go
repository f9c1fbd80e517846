package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmmcquay/goban-mcp/internal/ai"
	"github.com/dmmcquay/goban-mcp/internal/board"
	"github.com/dmmcquay/goban-mcp/internal/cache"
	"github.com/dmmcquay/goban-mcp/internal/game"
	"github.com/dmmcquay/goban-mcp/internal/logging"
	"github.com/dmmcquay/goban-mcp/internal/retry"
)

// errStale means the game changed while a search was running and the answer
// no longer fits.
var errStale = errors.New("search result is stale")

// SearchRequest asks for an AI move. With Apply the move is played if it is
// still valid when the search returns.
type SearchRequest struct {
	Strategy ai.Strategy
	Params   ai.Params
	Apply    bool
}

// SearchOutcome reports what happened to a search.
type SearchOutcome struct {
	Decision ai.Decision
	// State is the session state after the search, including the applied
	// move if any.
	State    *game.State
	Applied  bool
	Cached   bool
	Attempts int
	// Abandoned is set when every attempt went stale. Decision is then a
	// pass suggestion and nothing was applied.
	Abandoned bool
}

// Suggest runs a search against a snapshot of the session without holding
// its lock, then re-locks to validate the answer. An answer that went stale
// is recomputed up to StaleRetries times.
func (m *Manager) Suggest(ctx context.Context, id string, req SearchRequest) (SearchOutcome, error) {
	sess, err := m.Get(id)
	if err != nil {
		return SearchOutcome{}, err
	}

	ctx = logging.ContextWithSessionID(ctx, id)
	logger := m.logger.WithContext(ctx)

	cfg := retry.ForStaleResults(m.opts.StaleRetries)
	cfg.OnRetry = func(attempt int, err error) {
		m.opts.Metrics.RecordStaleSearch("recomputed")
		logger.Info("Discarded stale search result", "attempt", attempt, "strategy", string(req.Strategy))
	}

	var out SearchOutcome
	err = retry.NewManager(cfg).Run(ctx, func(ctx context.Context, attempt int) error {
		out.Attempts = attempt

		snap, version := sess.Snapshot()
		d, cached, err := m.searchCached(ctx, snap, req)
		if err != nil {
			return retry.Permanent(err)
		}

		sess.mu.Lock()
		defer sess.mu.Unlock()

		if sess.version != version && !stillValid(sess.state, snap, d) {
			return errStale
		}

		out.Decision, out.Cached = d, cached
		if req.Apply {
			prev := sess.state
			next, err := apply(prev, d)
			m.observe(ctx, id, applyOp(d), prev, next, err)
			if err != nil {
				return retry.Permanent(err)
			}
			sess.swap(next, m.opts.Clock())
			out.Applied = true
		}
		out.State = sess.state
		return nil
	})

	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, retry.ErrExhausted):
		m.opts.Metrics.RecordStaleSearch("abandoned")
		current := sess.State()
		logger.Warn("Giving up on stale search", "attempts", out.Attempts, "strategy", string(req.Strategy))
		return SearchOutcome{
			Decision:  ai.Decision{Point: board.NoPoint, Pass: true, Player: current.ToPlay(), Strategy: req.Strategy},
			State:     current,
			Attempts:  out.Attempts,
			Abandoned: true,
		}, nil
	default:
		return SearchOutcome{}, fmt.Errorf("failed to search: %w", err)
	}
}

// stillValid accepts an answer computed on snap for current when the same
// player is to move and the chosen point is still legal. Pass answers only
// hold for the position they were computed on.
func stillValid(current, snap *game.State, d ai.Decision) bool {
	if current.ToPlay() != snap.ToPlay() || d.Pass {
		return false
	}
	return current.IsLegal(d.Point)
}

func apply(st *game.State, d ai.Decision) (*game.State, error) {
	if d.Pass {
		return st.Pass()
	}
	return st.Place(d.Point)
}

func applyOp(d ai.Decision) string {
	if d.Pass {
		return "pass"
	}
	return "place"
}

// searchCached consults the decision cache for reproducible searches.
func (m *Manager) searchCached(ctx context.Context, snap *game.State, req SearchRequest) (ai.Decision, bool, error) {
	key, cacheable, err := cache.Key(snap, req.Strategy, req.Params)
	if err != nil {
		m.logger.Warn("Failed to build cache key", "error", err)
		cacheable = false
	}

	if cacheable && m.cache.IsEnabled() {
		if d, ok := m.cache.Get(key); ok {
			m.opts.Metrics.RecordCacheHit()
			m.opts.Metrics.RecordSearch(string(req.Strategy), "cache", d.Iterations, 0)
			return d, true, nil
		}
		m.opts.Metrics.RecordCacheMiss()
	}

	start := time.Now()
	d, err := m.search(ctx, snap, req.Strategy, req.Params)
	if err != nil {
		return ai.Decision{}, false, err
	}
	elapsed := time.Since(start)
	m.opts.Metrics.RecordSearch(string(req.Strategy), "search", d.Iterations, elapsed)
	m.logger.WithContext(ctx).Debug("Search finished",
		"strategy", string(req.Strategy),
		"iterations", d.Iterations,
		"duration", elapsed,
		"point", d.Point.String(),
	)

	// A cancelled search may have stopped early.
	if cacheable && m.cache.IsEnabled() && ctx.Err() == nil {
		m.cache.Put(key, d)
		stats := m.cache.Stats()
		m.opts.Metrics.SetCacheStats(stats.Items, stats.Size)
	}
	return d, false, nil
}
