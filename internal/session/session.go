// Package session owns the authoritative game state for each open game and
// serializes every operation on it.
package session

import (
	"sync"
	"time"

	"github.com/dmmcquay/goban-mcp/internal/game"
)

// Session holds one game. The state pointer and version change together
// under mu; states themselves are immutable, so a pointer read under the
// lock is a consistent snapshot.
type Session struct {
	ID      string
	Created time.Time

	mu      sync.Mutex
	state   *game.State
	version uint64
	updated time.Time
}

// Snapshot returns the current state and its version.
func (s *Session) Snapshot() (*game.State, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.version
}

// State returns the current state.
func (s *Session) State() *game.State {
	st, _ := s.Snapshot()
	return st
}

// update replaces the state with fn's result. On error nothing changes.
func (s *Session) update(now time.Time, fn func(*game.State) (*game.State, error)) (prev, next *game.State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev = s.state
	next, err = fn(prev)
	if err != nil {
		return prev, prev, err
	}
	s.swap(next, now)
	return prev, next, nil
}

// swap must be called with mu held.
func (s *Session) swap(next *game.State, now time.Time) {
	s.state = next
	s.version++
	s.updated = now
}

// View is the JSON form of a session served over HTTP.
type View struct {
	ID      string        `json:"id"`
	Version uint64        `json:"version"`
	Created time.Time     `json:"created"`
	Updated time.Time     `json:"updated"`
	Game    game.Snapshot `json:"game"`
}

func (s *Session) View() View {
	s.mu.Lock()
	st, version, updated := s.state, s.version, s.updated
	s.mu.Unlock()

	return View{
		ID:      s.ID,
		Version: version,
		Created: s.Created,
		Updated: updated,
		Game:    st.Snapshot(),
	}
}
