package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmmcquay/goban-mcp/internal/ai"
	"github.com/dmmcquay/goban-mcp/internal/board"
	"github.com/dmmcquay/goban-mcp/internal/cache"
	"github.com/dmmcquay/goban-mcp/internal/game"
	"github.com/dmmcquay/goban-mcp/internal/logging"
	"github.com/dmmcquay/goban-mcp/internal/metrics"
	"github.com/dmmcquay/goban-mcp/internal/rules"
	"github.com/dmmcquay/goban-mcp/internal/sgf"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrTooManySessions = errors.New("too many open sessions")
)

// DefaultMaxSessions applies when Options.MaxSessions is zero.
const DefaultMaxSessions = 100

type Options struct {
	MaxSessions int
	// StaleRetries is how many times a search is recomputed after the game
	// moved on underneath it.
	StaleRetries int

	Logger  logging.ContextLogger
	Cache   *cache.Manager
	Metrics *metrics.PrometheusCollector

	// NewID and Clock default to uuid.NewString and time.Now.
	NewID func() string
	Clock func() time.Time
}

// Manager owns every open session.
type Manager struct {
	opts   Options
	logger logging.ContextLogger
	cache  *cache.Manager

	// search runs one AI search on a snapshot, outside any session lock.
	search func(ctx context.Context, st *game.State, s ai.Strategy, p ai.Params) (ai.Decision, error)

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(opts Options) *Manager {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.StaleRetries < 0 {
		opts.StaleRetries = 0
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewManager(nil, opts.Logger)
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Manager{
		opts:     opts,
		logger:   opts.Logger,
		cache:    opts.Cache,
		search:   searchAsync,
		sessions: make(map[string]*Session),
	}
}

// searchAsync hands the snapshot to a worker goroutine and waits for its
// single result.
func searchAsync(ctx context.Context, st *game.State, s ai.Strategy, p ai.Params) (ai.Decision, error) {
	select {
	case res := <-ai.SearchAsync(ctx, st, s, p):
		return res.Decision, res.Err
	case <-ctx.Done():
		return ai.Decision{}, ctx.Err()
	}
}

// Create starts a new game. opts.Clock defaults to the manager's clock.
func (m *Manager) Create(ctx context.Context, opts game.Options) (*Session, error) {
	if opts.Clock == nil {
		opts.Clock = m.opts.Clock
	}
	st, err := game.NewGame(opts)
	if err != nil {
		return nil, err
	}
	return m.adopt(ctx, st)
}

// Import opens a session from an SGF record. Skipped moves are reported as
// issues.
func (m *Manager) Import(ctx context.Context, content string, base game.Options) (*Session, []sgf.Issue, error) {
	if base.Clock == nil {
		base.Clock = m.opts.Clock
	}
	st, issues, err := sgf.Decode(content, base)
	if err != nil {
		return nil, issues, fmt.Errorf("failed to import sgf: %w", err)
	}
	sess, err := m.adopt(ctx, st)
	if err != nil {
		return nil, issues, err
	}
	if len(issues) > 0 {
		m.logger.WithContext(logging.ContextWithSessionID(ctx, sess.ID)).Info("Imported game with issues", "issues", len(issues))
	}
	return sess, issues, nil
}

func (m *Manager) adopt(ctx context.Context, st *game.State) (*Session, error) {
	m.mu.Lock()
	if len(m.sessions) >= m.opts.MaxSessions {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: limit is %d", ErrTooManySessions, m.opts.MaxSessions)
	}
	now := m.opts.Clock()
	sess := &Session{ID: m.opts.NewID(), Created: now, state: st, updated: now}
	m.sessions[sess.ID] = sess
	count := len(m.sessions)
	m.mu.Unlock()

	m.opts.Metrics.RecordGameStarted()
	m.opts.Metrics.SetActiveSessions(count)
	m.logger.WithContext(logging.ContextWithSessionID(ctx, sess.ID)).Info("Game started",
		"size", st.Size(),
		"komi", st.Komi(),
		"handicap", st.Handicap(),
	)
	return sess, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sess, nil
}

// Close discards a session.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.sessions[id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.sessions, id)
	count := len(m.sessions)
	m.mu.Unlock()

	m.opts.Metrics.SetActiveSessions(count)
	m.logger.WithContext(logging.ContextWithSessionID(ctx, id)).Info("Game closed")
	return nil
}

// Len reports the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// MaxSessions reports the session cap.
func (m *Manager) MaxSessions() int {
	return m.opts.MaxSessions
}

// IDs lists open sessions in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// CloseAll drops every session. Used on shutdown.
func (m *Manager) CloseAll() int {
	m.mu.Lock()
	n := len(m.sessions)
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	m.opts.Metrics.SetActiveSessions(0)
	return n
}

// update runs fn on the session's current state and records the outcome.
func (m *Manager) update(ctx context.Context, id, op string, fn func(*game.State) (*game.State, error)) (*game.State, error) {
	sess, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	prev, next, err := sess.update(m.opts.Clock(), fn)
	m.observe(ctx, id, op, prev, next, err)
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (m *Manager) observe(ctx context.Context, id, op string, prev, next *game.State, err error) {
	logger := m.logger.WithContext(logging.ContextWithSessionID(ctx, id))

	if op == "place" {
		outcome := "accepted"
		if err != nil {
			if outcome = rules.KindName(err); outcome == "" {
				outcome = "error"
			}
		}
		m.opts.Metrics.RecordMove(outcome)
	}

	if err != nil {
		logger.Debug("Operation rejected", "op", op, "error", err)
		return
	}

	logger.Debug("Operation applied", "op", op, "move", next.MoveNumber(), "toPlay", next.ToPlay().String())
	if !prev.IsFinished() && next.IsFinished() {
		m.opts.Metrics.RecordGameFinished(next.EndReason().String())
		logger.Info("Game finished", "reason", next.EndReason().String(), "result", next.Result())
	}
}

// Place plays a stone for the player to move.
func (m *Manager) Place(ctx context.Context, id string, p board.Point) (*game.State, error) {
	return m.update(ctx, id, "place", func(st *game.State) (*game.State, error) {
		return st.Place(p)
	})
}

func (m *Manager) Pass(ctx context.Context, id string) (*game.State, error) {
	return m.update(ctx, id, "pass", func(st *game.State) (*game.State, error) {
		return st.Pass()
	})
}

func (m *Manager) Undo(ctx context.Context, id string) (*game.State, error) {
	return m.update(ctx, id, "undo", func(st *game.State) (*game.State, error) {
		return st.Undo()
	})
}

// Resign concedes the game for the player to move.
func (m *Manager) Resign(ctx context.Context, id string) (*game.State, error) {
	return m.update(ctx, id, "resign", func(st *game.State) (*game.State, error) {
		return st.Resign()
	})
}

// Terminate ends the game without a resignation; the winner is decided by
// score.
func (m *Manager) Terminate(ctx context.Context, id string) (*game.State, error) {
	return m.update(ctx, id, "terminate", func(st *game.State) (*game.State, error) {
		return st.Terminate()
	})
}
