// Package llm implements the decider contract on top of OpenAI-compatible
// chat completions endpoints. Every supported provider is reached through
// the same wire format, differing only in base URL, key and model.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/efreeman/ai-mafia/internal/decider"
	"github.com/efreeman/ai-mafia/pkg/mafia"
)

const requestTimeout = 60 * time.Second

// Client is a Decider backed by one chat completions endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	httpc   *http.Client
}

var _ decider.Decider = (*Client)(nil)

// Factory builds Clients, resolving provider names against the provider
// table and the environment.
type Factory struct{}

var _ decider.Factory = Factory{}

// New resolves cfg into a concrete Client. An empty provider resolves to
// the environment default.
func (Factory) New(cfg decider.Config) (decider.Decider, error) {
	name := cfg.Provider
	if name == "" {
		name = DefaultProvider()
	}
	baseURL, model, key, err := resolve(name, cfg.Model, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  key,
		model:   model,
		httpc:   &http.Client{Timeout: requestTimeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
	Temperature float64 `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// complete performs one JSON-mode chat call and unmarshals the reply
// content into out.
func (c *Client) complete(ctx context.Context, system, user string, out any) error {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: &struct {
			Type string `json:"type"`
		}{Type: "json_object"},
		Temperature: 0.8,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Str("model", c.model).Msg("chat completion failed")
		return fmt.Errorf("chat completion: status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("decode chat response: %w", err)
	}
	if parsed.Error != nil {
		return fmt.Errorf("chat completion: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return fmt.Errorf("chat completion: empty choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	content = stripCodeFence(content)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("decode model reply: %w", err)
	}
	return nil
}

// stripCodeFence removes a surrounding markdown code fence, which some
// models emit even in JSON mode.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

type nightActionReply struct {
	TargetID      string `json:"target_id"`
	PrivateReason string `json:"private_reason"`
}

// NightAction asks for a night target.
func (c *Client) NightAction(ctx context.Context, prompt string) (decider.NightAction, error) {
	var reply nightActionReply
	system := prompt + "\n\nReply with JSON: {\"target_id\": \"...\", \"private_reason\": \"...\"}."
	if err := c.complete(ctx, system, "Choose your target now.", &reply); err != nil {
		return decider.NightAction{}, err
	}
	if reply.TargetID == "" {
		return decider.NightAction{}, fmt.Errorf("night action: empty target_id")
	}
	return decider.NightAction{TargetID: reply.TargetID, PrivateReason: reply.PrivateReason}, nil
}

type voteReply struct {
	PlayerID string `json:"player_id"`
	Reason   string `json:"reason"`
}

// Vote asks for a ballot. The wire sentinel "abstain" maps to an
// abstaining target.
func (c *Client) Vote(ctx context.Context, prompt string) (decider.Vote, error) {
	var reply voteReply
	system := prompt + "\n\nReply with JSON: {\"player_id\": \"... or abstain\", \"reason\": \"...\"}."
	if err := c.complete(ctx, system, "Cast your vote now.", &reply); err != nil {
		return decider.Vote{}, err
	}
	target := mafia.TargetPlayer(reply.PlayerID)
	if strings.EqualFold(strings.TrimSpace(reply.PlayerID), "abstain") || reply.PlayerID == "" {
		target = mafia.Abstain()
	}
	return decider.Vote{Target: target, Reason: reply.Reason}, nil
}

type discussionReply struct {
	Statement          string `json:"statement"`
	RequestAnotherTurn bool   `json:"request_another_turn"`
}

// Discussion asks for a public statement.
func (c *Client) Discussion(ctx context.Context, prompt string) (decider.Discussion, error) {
	var reply discussionReply
	system := prompt + "\n\nReply with JSON: {\"statement\": \"...\", \"request_another_turn\": false}."
	if err := c.complete(ctx, system, "Give your statement now.", &reply); err != nil {
		return decider.Discussion{}, err
	}
	if strings.TrimSpace(reply.Statement) == "" {
		return decider.Discussion{}, fmt.Errorf("discussion: empty statement")
	}
	return decider.Discussion{Statement: reply.Statement, RequestAnotherTurn: reply.RequestAnotherTurn}, nil
}

type summaryReply struct {
	Summary string `json:"summary"`
}

// Summarize asks for a round recap.
func (c *Client) Summarize(ctx context.Context, prompt string) (decider.Summary, error) {
	var reply summaryReply
	system := prompt + "\n\nReply with JSON: {\"summary\": \"...\"}."
	if err := c.complete(ctx, system, "Summarize the round now.", &reply); err != nil {
		return decider.Summary{}, err
	}
	if strings.TrimSpace(reply.Summary) == "" {
		return decider.Summary{}, fmt.Errorf("summary: empty text")
	}
	return decider.Summary{Summary: reply.Summary}, nil
}
