// Package prompts builds the plain-text briefs and instructions handed to
// deciders. Context is deterministic for a given state and reveals only
// public information; private channels are appended by the orchestrator
// for the actors entitled to them.
package prompts

import (
	"fmt"
	"strings"

	"github.com/efreeman/ai-mafia/pkg/mafia"
)

// RulesSummary is the default rules preamble shared by every decider call.
const RulesSummary = `You are playing Mafia (Werewolf). There are two sides: Town (villagers, doctor, sheriff) and Mafia.
- At night: Mafia choose one player to eliminate. Doctor chooses one player to protect (saves from mafia kill). Sheriff checks one player and learns if they are mafia or town.
- By day: Everyone discusses, then votes to eliminate one player. Majority wins; ties mean no elimination.
- Town wins when all Mafia are dead. Mafia win when they outnumber or equal Town.
- You must never reveal your secret role in your public statements unless you are eliminated.`

// Default instruction templates. Placeholders use {name} syntax so
// per-game overlays stay compatible across clients.
const (
	DiscussionTemplate = "You are {player_name}, a {role_name}. " +
		"Give one short statement (1-3 sentences) to the town. " +
		"Do not reveal your role. Try to help your side win."
	VoteTemplate = "You are a {role_name}. You must cast a vote. " +
		"Valid choices: {targets} (or 'abstain' to not vote for anyone). " +
		"Provide the player_id you vote for (or 'abstain') and a short public reason (1-2 sentences)."
	NightActionTemplate = "You are {role_name}. Choose exactly one target from the following player IDs: {targets}. " +
		"Reply with the target's player_id only. You may add optional private_reason (for mafia)."
	SummarizerInstructions = "Summarize this round in 2-4 neutral sentences: who died (if anyone), who was voted out (if anyone), " +
		"and the main discussion points. Do not reveal any player's secret role. " +
		"Write in past tense, factual only."
)

// Overlay keys recognized in a per-game prompt overlay.
const (
	KeyRulesSummary        = "rules_summary"
	KeyDiscussionTemplate  = "discussion_instructions_template"
	KeyVoteTemplate        = "vote_instructions_template"
	KeyNightActionTemplate = "night_action_instructions_template"
	KeySummarizer          = "summarizer_instructions"
)

// Defaults returns the default prompt texts, keyed like the per-game overlay.
func Defaults() map[string]string {
	return map[string]string{
		KeyRulesSummary:        RulesSummary,
		KeyDiscussionTemplate:  DiscussionTemplate,
		KeyVoteTemplate:        VoteTemplate,
		KeyNightActionTemplate: NightActionTemplate,
		KeySummarizer:          SummarizerInstructions,
	}
}

// GameContext renders the public situation report for a decider: round,
// phase, alive roster, the last three round summaries, the last 15 event
// messages, and this round's recent discussion window.
func GameContext(gs *mafia.GameState) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Round %d. Phase: %s.\n", gs.Round+1, gs.Phase)
	var roster []string
	for _, p := range gs.AlivePlayers() {
		roster = append(roster, fmt.Sprintf("%s (%s)", p.Name, p.ID))
	}
	fmt.Fprintf(&b, "Alive players: %s.", strings.Join(roster, ", "))

	if n := len(gs.RoundSummaries); n > 0 {
		b.WriteString("\nPrevious rounds summary:")
		start := n - 3
		if start < 0 {
			start = 0
		}
		for i := start; i < n; i++ {
			fmt.Fprintf(&b, "\n  Round %d: %s", i+1, gs.RoundSummaries[i])
		}
	}

	events := gs.Events
	if len(events) > 15 {
		events = events[len(events)-15:]
	}
	if len(events) > 0 {
		b.WriteString("\nRecent events:")
		for _, e := range events {
			fmt.Fprintf(&b, "\n  - %s", e.Message)
		}
	}

	window := gs.RoundDiscussion()
	if len(window) > mafia.DiscussionWindowSize {
		window = window[len(window)-mafia.DiscussionWindowSize:]
	}
	if len(window) > 0 {
		b.WriteString("\nDiscussion this round:")
		for _, m := range window {
			fmt.Fprintf(&b, "\n  %s: %s", m.PlayerName, m.Statement)
		}
	}

	return b.String()
}

// WithRules prepends the rules preamble (overlay-aware) to a context.
func WithRules(ctx string, overlay map[string]string) string {
	rules := RulesSummary
	if overlay != nil {
		if v, ok := overlay[KeyRulesSummary]; ok {
			rules = strings.TrimSpace(v)
		}
	}
	return rules + "\n\n" + ctx
}

// MafiaTranscript renders this round's private mafia channel for mafia
// night dispatch.
func MafiaTranscript(header string, msgs []mafia.MafiaMessage) string {
	if len(msgs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n")
	b.WriteString(header)
	for _, m := range msgs {
		fmt.Fprintf(&b, "\n  %s: %s", m.PlayerName, m.Statement)
	}
	return b.String()
}

// NightActionInstructions renders the night action instruction for a role
// and its valid targets. A non-empty template overrides the default.
func NightActionInstructions(roleName string, targetIDs []string, template string) string {
	if template == "" {
		template = NightActionTemplate
	}
	return strings.NewReplacer(
		"{role_name}", roleName,
		"{targets}", strings.Join(targetIDs, ", "),
	).Replace(template)
}

// DiscussionInstructions renders the day discussion instruction.
func DiscussionInstructions(playerName, roleName, template string) string {
	if template == "" {
		template = DiscussionTemplate
	}
	return strings.NewReplacer(
		"{player_name}", playerName,
		"{role_name}", roleName,
	).Replace(template)
}

// VoteInstructions renders the day vote instruction with valid targets.
func VoteInstructions(roleName string, targetIDs []string, template string) string {
	if template == "" {
		template = VoteTemplate
	}
	return strings.NewReplacer(
		"{role_name}", roleName,
		"{targets}", strings.Join(targetIDs, ", "),
	).Replace(template)
}

// Summarizer returns the round summarizer instruction, honoring an overlay.
func Summarizer(overlay map[string]string) string {
	if overlay != nil {
		if v, ok := overlay[KeySummarizer]; ok {
			return v
		}
	}
	return SummarizerInstructions
}

// Template looks up an instruction template override in the overlay,
// returning "" when unset.
func Template(overlay map[string]string, key string) string {
	if overlay == nil {
		return ""
	}
	return overlay[key]
}
