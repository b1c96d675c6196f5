package session

import (
	"sync"
	"testing"

	"github.com/efreeman/ai-mafia/internal/decider"
	"github.com/efreeman/ai-mafia/pkg/mafia"
)

func TestManager_PutGetDelete(t *testing.T) {
	m := NewManager()
	s := &Session{ID: "g1", State: &mafia.GameState{GameID: "g1"}}
	m.Put(s)

	got, err := m.Get("g1")
	if err != nil {
		t.Fatal(err)
	}
	if got != s {
		t.Error("Get should return the stored session")
	}

	if _, err := m.Get("missing"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := m.Delete("g1"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get("g1"); err != ErrNotFound {
		t.Error("deleted session should be gone")
	}
	if err := m.Delete("g1"); err != ErrNotFound {
		t.Error("double delete should report ErrNotFound")
	}
}

func TestManager_List(t *testing.T) {
	m := NewManager()
	m.Put(&Session{ID: "a"})
	m.Put(&Session{ID: "b"})
	if len(m.List()) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(m.List()))
	}
}

func TestManager_LeaseSerializes(t *testing.T) {
	m := NewManager()
	m.Put(&Session{ID: "g1"})

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lease("g1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Errorf("lease did not serialize mutations, counter=%d", counter)
	}
}

func TestSession_DeciderConfigFor(t *testing.T) {
	s := &Session{
		Decider:        decider.Config{Provider: "openai", Model: "gpt-4o-mini"},
		PlayerDeciders: []*decider.Config{nil, {Provider: "ollama", Model: "llama3.2"}},
	}
	if got := s.DeciderConfigFor(0); got.Provider != "openai" {
		t.Errorf("nil override should fall back to default, got %+v", got)
	}
	if got := s.DeciderConfigFor(1); got.Provider != "ollama" {
		t.Errorf("seat override should win, got %+v", got)
	}
	if got := s.DeciderConfigFor(9); got.Provider != "openai" {
		t.Errorf("out of range should fall back to default, got %+v", got)
	}
}

func TestSession_PendingBuffers(t *testing.T) {
	s := &Session{
		PendingNight:    &mafia.NightActions{MafiaTarget: "player_1"},
		PendingNightIDs: map[string]bool{"player_2": true},
		PendingVotes:    []mafia.Ballot{{VoterID: "player_0", Target: mafia.Abstain()}},
	}
	s.ClearPendingNight()
	if s.PendingNight != nil || s.PendingNightIDs != nil {
		t.Error("night buffer should be cleared")
	}
	s.ClearPendingVotes()
	if s.PendingVotes != nil {
		t.Error("vote buffer should be cleared")
	}
}
