package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/efreeman/ai-mafia/internal/decider"
)

// newTestClient returns a Client pointed at a server that always replies
// with the given chat message content.
func newTestClient(t *testing.T, content string, status int) (*Client, *http.Request) {
	t.Helper()
	var captured http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = *r
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return &Client{
		baseURL: srv.URL,
		apiKey:  "test-key",
		model:   "test-model",
		httpc:   &http.Client{Timeout: 5 * time.Second},
	}, &captured
}

func TestNightAction(t *testing.T) {
	c, req := newTestClient(t, `{"target_id":"player_2","private_reason":"too quiet"}`, http.StatusOK)
	got, err := c.NightAction(context.Background(), "pick")
	if err != nil {
		t.Fatal(err)
	}
	if got.TargetID != "player_2" || got.PrivateReason != "too quiet" {
		t.Errorf("unexpected action %+v", got)
	}
	if req.Header.Get("Authorization") != "Bearer test-key" {
		t.Error("missing bearer token")
	}
}

func TestNightAction_EmptyTarget(t *testing.T) {
	c, _ := newTestClient(t, `{"target_id":""}`, http.StatusOK)
	if _, err := c.NightAction(context.Background(), "pick"); err == nil {
		t.Fatal("expected error for empty target_id")
	}
}

func TestVote_AbstainSentinel(t *testing.T) {
	c, _ := newTestClient(t, `{"player_id":"abstain","reason":"unsure"}`, http.StatusOK)
	got, err := c.Vote(context.Background(), "vote")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Target.Abstain {
		t.Errorf("expected abstention, got %+v", got.Target)
	}
	if got.Reason != "unsure" {
		t.Errorf("unexpected reason %q", got.Reason)
	}
}

func TestVote_Target(t *testing.T) {
	c, _ := newTestClient(t, `{"player_id":"player_1","reason":"suspicious"}`, http.StatusOK)
	got, err := c.Vote(context.Background(), "vote")
	if err != nil {
		t.Fatal(err)
	}
	if got.Target.Abstain || got.Target.PlayerID != "player_1" {
		t.Errorf("unexpected target %+v", got.Target)
	}
}

func TestDiscussion_CodeFencedReply(t *testing.T) {
	c, _ := newTestClient(t, "```json\n{\"statement\":\"I trust Bob.\",\"request_another_turn\":true}\n```", http.StatusOK)
	got, err := c.Discussion(context.Background(), "speak")
	if err != nil {
		t.Fatal(err)
	}
	if got.Statement != "I trust Bob." || !got.RequestAnotherTurn {
		t.Errorf("unexpected discussion %+v", got)
	}
}

func TestSummarize(t *testing.T) {
	c, _ := newTestClient(t, `{"summary":"Nobody died."}`, http.StatusOK)
	got, err := c.Summarize(context.Background(), "sum")
	if err != nil {
		t.Fatal(err)
	}
	if got.Summary != "Nobody died." {
		t.Errorf("unexpected summary %+v", got)
	}
}

func TestComplete_ServerError(t *testing.T) {
	c, _ := newTestClient(t, "", http.StatusBadGateway)
	if _, err := c.Summarize(context.Background(), "sum"); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

func TestFactory_UnknownProvider(t *testing.T) {
	if _, err := (Factory{}).New(decider.Config{Provider: "nope"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestFactory_Defaults(t *testing.T) {
	t.Setenv("DEFAULT_PROVIDER", "ollama")
	t.Setenv("DEFAULT_MODEL", "")
	t.Setenv("OLLAMA_BASE_URL", "http://example.test/v1")
	d, err := (Factory{}).New(decider.Config{})
	if err != nil {
		t.Fatal(err)
	}
	c := d.(*Client)
	if c.baseURL != "http://example.test/v1" {
		t.Errorf("base url override not applied: %q", c.baseURL)
	}
	if c.model != "llama3.2" {
		t.Errorf("unexpected default model %q", c.model)
	}
}

func TestResolve_KeyPrecedence(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	_, _, key, err := resolve("openai", "", "explicit")
	if err != nil {
		t.Fatal(err)
	}
	if key != "explicit" {
		t.Error("explicit key should win over env")
	}
	_, _, key, err = resolve("openai", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if key != "env-key" {
		t.Error("env key should apply when no explicit key")
	}
}
