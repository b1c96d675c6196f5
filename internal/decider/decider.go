// Package decider defines the decision-making contract between the game
// orchestrator and whatever produces player decisions, along with the
// provider configuration used to construct concrete deciders.
package decider

import (
	"context"

	"github.com/efreeman/ai-mafia/pkg/mafia"
)

// NightAction is a night target choice. PrivateReason is optional and
// shown only to spectators.
type NightAction struct {
	TargetID      string
	PrivateReason string
}

// Vote is a day ballot: a target (or abstention) with a short public reason.
type Vote struct {
	Target mafia.VoteTarget
	Reason string
}

// Discussion is one public statement. RequestAnotherTurn asks the
// orchestrator to extend the speaking queue by one slot, granted only
// while the round is under its turn cap.
type Discussion struct {
	Statement          string
	RequestAnotherTurn bool
}

// Summary is a neutral recap of a finished round.
type Summary struct {
	Summary string
}

// Decider produces decisions for one player (or, for Summarize, for the
// game). Implementations must honor ctx cancellation. Any error returned
// is absorbed by the orchestrator with a role-appropriate fallback; it
// never aborts the game.
type Decider interface {
	NightAction(ctx context.Context, prompt string) (NightAction, error)
	Vote(ctx context.Context, prompt string) (Vote, error)
	Discussion(ctx context.Context, prompt string) (Discussion, error)
	Summarize(ctx context.Context, prompt string) (Summary, error)
}

// Config identifies a provider endpoint and model for one decider.
// Zero fields fall back to game defaults, then environment defaults.
type Config struct {
	Provider string
	Model    string
	APIKey   string
}

// Factory builds a Decider from a resolved config.
type Factory interface {
	New(cfg Config) (Decider, error)
}
