// Package session holds the in-memory registry of running games and the
// per-game serialization that keeps concurrent steps and human actions
// from interleaving.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/efreeman/ai-mafia/internal/decider"
	"github.com/efreeman/ai-mafia/pkg/mafia"
)

// ErrNotFound is returned when a game id is unknown.
var ErrNotFound = errors.New("game not found")

// Session is one live game plus everything around the canonical state:
// decider wiring, human seats, and the buffers that accumulate human
// input while the orchestrator is suspended.
type Session struct {
	ID        string
	State     *mafia.GameState
	CreatedAt time.Time

	// Decider is the game default; PlayerDeciders is seat-indexed and
	// overrides it per player (nil entries fall back to the default).
	Decider        decider.Config
	PlayerDeciders []*decider.Config

	Humans             map[string]bool
	Spectate           bool
	MaxDiscussionTurns int

	// Prompts overlays the default prompt texts for this game.
	Prompts map[string]string

	// PendingNight accumulates night targets while waiting for human
	// night roles; PendingNightIDs tracks which humans still owe one.
	PendingNight    *mafia.NightActions
	PendingNightIDs map[string]bool

	// PendingVotes accumulates ballots while waiting for human voters.
	PendingVotes []mafia.Ballot
}

// IsHuman reports whether the player id belongs to a human seat.
func (s *Session) IsHuman(id string) bool { return s.Humans[id] }

// DeciderConfigFor resolves the decider config for a seat index, falling
// back to the game default.
func (s *Session) DeciderConfigFor(index int) decider.Config {
	if index >= 0 && index < len(s.PlayerDeciders) && s.PlayerDeciders[index] != nil {
		return *s.PlayerDeciders[index]
	}
	return s.Decider
}

// ClearPendingNight drops the night buffer after it has been applied.
func (s *Session) ClearPendingNight() {
	s.PendingNight = nil
	s.PendingNightIDs = nil
}

// ClearPendingVotes drops the vote buffer after it has been applied.
func (s *Session) ClearPendingVotes() {
	s.PendingVotes = nil
}

// Manager is the in-memory session registry. Reads and writes of the
// registry itself are guarded by mu; mutation of an individual session
// requires holding its lease.
type Manager struct {
	mu    sync.RWMutex
	games map[string]*Session

	locks sync.Map // gameID -> *sync.Mutex
}

// NewManager returns an empty registry.
func NewManager() *Manager {
	return &Manager{games: make(map[string]*Session)}
}

// Put registers a session under its id.
func (m *Manager) Put(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[s.ID] = s
}

// Get returns the session for id, or ErrNotFound.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// List returns all sessions, unordered.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.games))
	for _, s := range m.games {
		out = append(out, s)
	}
	return out
}

// Delete removes a session and its lock.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[id]; !ok {
		return ErrNotFound
	}
	delete(m.games, id)
	m.locks.Delete(id)
	return nil
}

// Lease takes the per-game lock for id and returns its release func.
// Every step and human action for a game runs under its lease, so a
// game progresses strictly one mutation at a time.
func (m *Manager) Lease(id string) func() {
	mu, _ := m.locks.LoadOrStore(id, &sync.Mutex{})
	lock := mu.(*sync.Mutex)
	lock.Lock()
	return lock.Unlock
}
