// Package orchestrator drives a game forward one logical step at a time:
// a whole night, one discussion turn, or one vote. AI decisions come from
// deciders; when a human must act the step suspends and reports who is
// owed input. A decider failure never aborts a step, it degrades to a
// role-appropriate fallback.
package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/efreeman/ai-mafia/internal/decider"
	"github.com/efreeman/ai-mafia/internal/metrics"
	"github.com/efreeman/ai-mafia/internal/prompts"
	"github.com/efreeman/ai-mafia/pkg/mafia"
)

// Fallback texts used when a decider fails or returns nothing usable.
const (
	fallbackDiscussion      = "I have nothing to add."
	fallbackMafiaDelib      = "I defer to the group."
	fallbackMafiaNoOpinion  = "I have no strong opinion."
	fallbackAbstainReason   = "Abstain"
	fallbackRoundSummary    = "Round concluded."
	mafiaDeliberationPrompt = "You are mafia. You are discussing with your mafia partners (they will see this) who to eliminate tonight. " +
		"Give one short message (1-2 sentences) with your suggestion or opinion. Do not reveal your role to the rest of the game."
)

// Options carries the per-game wiring for a step.
type Options struct {
	// Default is the game-wide decider config; PlayerConfigs overrides it
	// per seat (nil entries fall back).
	Default       decider.Config
	PlayerConfigs []*decider.Config

	Humans             map[string]bool
	MaxDiscussionTurns int

	// Prompts overlays the default prompt texts.
	Prompts map[string]string

	// PendingVotes carries ballots collected so far during day vote.
	PendingVotes []mafia.Ballot
}

// StepResult reports a step that did not complete a clean transition:
// either the game is suspended on human input, or buffered vote progress
// must be persisted by the caller.
type StepResult struct {
	WaitingForHuman bool
	CurrentActorID  string

	// PendingNightIDs lists human night roles that still owe a target.
	// NightActions holds the AI targets already collected alongside them.
	PendingNightIDs []string
	NightActions    *mafia.NightActions

	// Votes holds the ballots collected so far this vote phase. It is
	// non-nil on every vote-phase suspension, even with zero ballots, so
	// the caller knows to persist the returned state: the phase may have
	// just transitioned to day vote.
	Votes []mafia.Ballot
}

// Orchestrator steps games using deciders built by its factory.
type Orchestrator struct {
	factory decider.Factory
}

func New(factory decider.Factory) *Orchestrator {
	return &Orchestrator{factory: factory}
}

// Step runs one logical step and returns the resulting state. A nil
// result means the step advanced cleanly; otherwise the caller must
// persist the buffers it carries before stepping again. When the step
// suspends for human input, the returned state is the input state:
// nothing an AI decided mid-step is committed until the humans answer.
func (o *Orchestrator) Step(ctx context.Context, gs *mafia.GameState, opts Options) (*mafia.GameState, *StepResult) {
	if gs.IsGameOver() {
		return gs, nil
	}
	metrics.Steps.Inc()

	switch gs.Phase {
	case mafia.PhaseNight:
		next, actions, pending := o.runNight(ctx, gs, opts)
		if len(pending) > 0 {
			return gs, &StepResult{
				WaitingForHuman: true,
				CurrentActorID:  pending[0],
				PendingNightIDs: pending,
				NightActions:    actions,
			}
		}
		return next, nil

	case mafia.PhaseDayDiscussion:
		if gs.DiscussionDone(opts.MaxDiscussionTurns) {
			gs = mafia.AdvancePhase(gs)
			next, ballots, pending := o.runVoteTurn(ctx, gs, nil, opts)
			if len(pending) > 0 {
				return gs, &StepResult{
					WaitingForHuman: true,
					Votes:           nonNilBallots(ballots),
				}
			}
			if next.Phase == mafia.PhaseDayVote && len(ballots) > 0 {
				return next, &StepResult{Votes: ballots}
			}
			return next, nil
		}
		next, waitingSpeaker := o.runDiscussionTurn(ctx, gs, opts)
		if waitingSpeaker != "" {
			return gs, &StepResult{
				WaitingForHuman: true,
				CurrentActorID:  waitingSpeaker,
			}
		}
		return next, nil

	case mafia.PhaseDayVote:
		next, ballots, pending := o.runVoteTurn(ctx, gs, opts.PendingVotes, opts)
		if len(pending) > 0 {
			return next, &StepResult{
				WaitingForHuman: true,
				Votes:           nonNilBallots(ballots),
			}
		}
		if next.Phase == mafia.PhaseDayVote && len(ballots) > 0 {
			return next, &StepResult{Votes: ballots}
		}
		return next, nil
	}
	return gs, nil
}

// FinishVote applies collected ballots and appends the round summary.
// The handler calls this directly when the last human ballot arrives.
func (o *Orchestrator) FinishVote(ctx context.Context, gs *mafia.GameState, ballots []mafia.Ballot, opts Options) *mafia.GameState {
	gs = mafia.ApplyVote(gs, ballots)
	return o.runRoundSummary(ctx, gs, opts)
}

// deciderFor builds a decider for a seat, resolving the seat override
// against the game default.
func (o *Orchestrator) deciderFor(playerID string, opts Options) (decider.Decider, error) {
	cfg := opts.Default
	if idx, ok := seatIndex(playerID); ok && idx < len(opts.PlayerConfigs) && opts.PlayerConfigs[idx] != nil {
		cfg = *opts.PlayerConfigs[idx]
	}
	return o.factory.New(cfg)
}

func seatIndex(playerID string) (int, bool) {
	rest, ok := strings.CutPrefix(playerID, "player_")
	if !ok {
		return 0, false
	}
	idx, err := strconv.Atoi(rest)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

func (o *Orchestrator) runNight(ctx context.Context, gs *mafia.GameState, opts Options) (*mafia.GameState, *mafia.NightActions, []string) {
	aliveIDs := make([]string, 0)
	aliveSet := gs.AliveIDs()
	for _, p := range gs.AlivePlayers() {
		aliveIDs = append(aliveIDs, p.ID)
	}

	mafiaPlayers := gs.PlayersByRole(mafia.RoleMafia)
	doctors := gs.PlayersByRole(mafia.RoleDoctor)
	sheriffs := gs.PlayersByRole(mafia.RoleSheriff)

	actions := &mafia.NightActions{}
	var pending []string

	// Multiple mafia, all AI: one round of private deliberation before the
	// first mafia picks the target. Any human mafia seat disables it.
	if len(mafiaPlayers) > 1 && !anyHuman(mafiaPlayers, opts.Humans) {
		for _, m := range mafiaPlayers {
			stmt := o.mafiaDeliberation(ctx, gs, m, opts)
			gs = mafia.AddMafiaMessage(gs, m.ID, m.Name, stmt)
		}
	}

	if len(mafiaPlayers) > 0 {
		first := mafiaPlayers[0]
		if opts.Humans[first.ID] {
			pending = append(pending, first.ID)
		} else {
			targets := excludeSelf(aliveIDs, first.ID)
			prompt := o.nightPrompt(gs, opts, "Mafia (choose who to eliminate)", targets)
			if transcript := prompts.MafiaTranscript("Mafia discussion this night:", gs.RoundMafiaDiscussion()); transcript != "" {
				prompt += transcript
			}
			action, err := o.callNightAction(ctx, first.ID, prompt, opts)
			switch {
			case err == nil && aliveSet[action.TargetID]:
				actions.MafiaTarget = action.TargetID
			case err != nil && len(targets) > 0:
				log.Warn().Err(err).Str("player_id", first.ID).Msg("mafia night action failed, picking random target")
				actions.MafiaTarget = targets[rand.Intn(len(targets))]
			}
			if len(mafiaPlayers) == 1 {
				stmt := action.PrivateReason
				if stmt == "" {
					stmt = fmt.Sprintf("Eliminating %s.", targetName(gs, actions.MafiaTarget))
				}
				gs = mafia.AddMafiaMessage(gs, first.ID, first.Name, stmt)
			}
			if actions.MafiaTarget != "" {
				gs = mafia.AddNightNote(gs, mafia.NightNote{
					Round:      gs.Round,
					Role:       mafia.RoleMafia,
					PlayerID:   first.ID,
					PlayerName: first.Name,
					TargetID:   actions.MafiaTarget,
					TargetName: targetName(gs, actions.MafiaTarget),
					Reason:     action.PrivateReason,
				})
			}
		}
	}

	if len(doctors) > 0 {
		doc := doctors[0]
		if opts.Humans[doc.ID] {
			pending = append(pending, doc.ID)
		} else {
			targets := excludeSelf(aliveIDs, doc.ID)
			prompt := o.nightPrompt(gs, opts, "Doctor (choose who to protect)", targets)
			action, err := o.callNightAction(ctx, doc.ID, prompt, opts)
			switch {
			case err == nil && aliveSet[action.TargetID]:
				actions.DoctorTarget = action.TargetID
			case err != nil && len(targets) > 0:
				log.Warn().Err(err).Str("player_id", doc.ID).Msg("doctor night action failed, picking random target")
				actions.DoctorTarget = targets[rand.Intn(len(targets))]
			}
			if actions.DoctorTarget != "" {
				gs = mafia.AddNightNote(gs, mafia.NightNote{
					Round:      gs.Round,
					Role:       mafia.RoleDoctor,
					PlayerID:   doc.ID,
					PlayerName: doc.Name,
					TargetID:   actions.DoctorTarget,
					TargetName: targetName(gs, actions.DoctorTarget),
					Reason:     action.PrivateReason,
				})
			}
		}
	}

	if len(sheriffs) > 0 {
		sher := sheriffs[0]
		if opts.Humans[sher.ID] {
			pending = append(pending, sher.ID)
		} else {
			// The sheriff never self-checks; alone alive, they skip the night.
			targets := filterOut(aliveIDs, sher.ID)
			if len(targets) > 0 {
				prompt := o.nightPrompt(gs, opts, "Sheriff (choose who to investigate)", targets)
				action, err := o.callNightAction(ctx, sher.ID, prompt, opts)
				switch {
				case err == nil && aliveSet[action.TargetID]:
					actions.SheriffTarget = action.TargetID
				case err != nil:
					log.Warn().Err(err).Str("player_id", sher.ID).Msg("sheriff night action failed, picking random target")
					actions.SheriffTarget = targets[rand.Intn(len(targets))]
				}
				if actions.SheriffTarget != "" {
					gs = mafia.AddNightNote(gs, mafia.NightNote{
						Round:      gs.Round,
						Role:       mafia.RoleSheriff,
						PlayerID:   sher.ID,
						PlayerName: sher.Name,
						TargetID:   actions.SheriffTarget,
						TargetName: targetName(gs, actions.SheriffTarget),
						Reason:     action.PrivateReason,
					})
				}
			}
		}
	}

	if len(pending) > 0 {
		return gs, actions, pending
	}
	return mafia.ApplyNightActions(gs, *actions), nil, nil
}

func (o *Orchestrator) mafiaDeliberation(ctx context.Context, gs *mafia.GameState, m mafia.Player, opts Options) string {
	prompt := prompts.WithRules(prompts.GameContext(gs), opts.Prompts)
	if transcript := prompts.MafiaTranscript("Mafia discussion so far this night:", gs.RoundMafiaDiscussion()); transcript != "" {
		prompt += transcript
	}
	prompt += "\n\n" + mafiaDeliberationPrompt

	metrics.DeciderCalls.WithLabelValues("discussion").Inc()
	d, err := o.deciderFor(m.ID, opts)
	if err == nil {
		var res decider.Discussion
		res, err = d.Discussion(ctx, prompt)
		if err == nil {
			if stmt := strings.TrimSpace(res.Statement); stmt != "" {
				return stmt
			}
			return fallbackMafiaNoOpinion
		}
	}
	metrics.DeciderFailures.WithLabelValues("discussion").Inc()
	log.Warn().Err(err).Str("player_id", m.ID).Msg("mafia deliberation failed")
	return fallbackMafiaDelib
}

func (o *Orchestrator) nightPrompt(gs *mafia.GameState, opts Options, roleLabel string, targets []string) string {
	ctx := prompts.WithRules(prompts.GameContext(gs), opts.Prompts)
	inst := prompts.NightActionInstructions(roleLabel, targets, prompts.Template(opts.Prompts, prompts.KeyNightActionTemplate))
	return ctx + "\n\n" + inst
}

func (o *Orchestrator) callNightAction(ctx context.Context, playerID, prompt string, opts Options) (decider.NightAction, error) {
	metrics.DeciderCalls.WithLabelValues("night_action").Inc()
	d, err := o.deciderFor(playerID, opts)
	if err != nil {
		metrics.DeciderFailures.WithLabelValues("night_action").Inc()
		return decider.NightAction{}, err
	}
	action, err := d.NightAction(ctx, prompt)
	if err != nil {
		metrics.DeciderFailures.WithLabelValues("night_action").Inc()
		return decider.NightAction{}, err
	}
	return action, nil
}

// runDiscussionTurn runs one speaker. An empty waiting id means the turn
// completed (or the queue was already exhausted).
func (o *Orchestrator) runDiscussionTurn(ctx context.Context, gs *mafia.GameState, opts Options) (*mafia.GameState, string) {
	speaker := gs.NextSpeaker()
	if speaker == nil {
		return gs, ""
	}
	if opts.Humans[speaker.ID] {
		return gs, speaker.ID
	}

	prompt := prompts.WithRules(prompts.GameContext(gs), opts.Prompts) + "\n\n" +
		prompts.DiscussionInstructions(speaker.Name, string(speaker.Role), prompts.Template(opts.Prompts, prompts.KeyDiscussionTemplate))

	statement := fallbackDiscussion
	requestAnother := false
	metrics.DeciderCalls.WithLabelValues("discussion").Inc()
	d, err := o.deciderFor(speaker.ID, opts)
	if err == nil {
		var res decider.Discussion
		res, err = d.Discussion(ctx, prompt)
		if err == nil {
			if s := strings.TrimSpace(res.Statement); s != "" {
				statement = s
			}
			requestAnother = res.RequestAnotherTurn
		}
	}
	if err != nil {
		metrics.DeciderFailures.WithLabelValues("discussion").Inc()
		log.Warn().Err(err).Str("player_id", speaker.ID).Msg("discussion turn failed")
	}

	next := mafia.AddDiscussionMessage(gs, speaker.ID, speaker.Name, statement)
	if requestAnother && opts.MaxDiscussionTurns > 0 && len(next.RoundDiscussion()) < opts.MaxDiscussionTurns {
		next = mafia.AppendDiscussionSpeaker(next, speaker.ID)
	}
	return next, ""
}

// runVoteTurn runs at most one AI voter. Non-empty pending ids mean the
// next voter is human; when the order is exhausted the ballots are
// applied and the round summarized.
func (o *Orchestrator) runVoteTurn(ctx context.Context, gs *mafia.GameState, ballots []mafia.Ballot, opts Options) (*mafia.GameState, []mafia.Ballot, []string) {
	if gs.VotePhaseDone() {
		return o.FinishVote(ctx, gs, ballots, opts), nil, nil
	}
	voter := gs.NextVoter()
	if voter == nil {
		return o.FinishVote(ctx, gs, ballots, opts), nil, nil
	}
	if opts.Humans[voter.ID] {
		return gs, ballots, []string{voter.ID}
	}

	aliveSet := gs.AliveIDs()
	var targets []string
	for _, p := range gs.AlivePlayers() {
		if p.ID != voter.ID {
			targets = append(targets, p.ID)
		}
	}
	promptTargets := append(append([]string{}, targets...), "abstain")
	prompt := prompts.WithRules(prompts.GameContext(gs), opts.Prompts) + "\n\n" +
		prompts.VoteInstructions(string(voter.Role), promptTargets, prompts.Template(opts.Prompts, prompts.KeyVoteTemplate))

	ballot := mafia.Ballot{VoterID: voter.ID, Target: mafia.Abstain(), Reason: fallbackAbstainReason}
	metrics.DeciderCalls.WithLabelValues("vote").Inc()
	d, err := o.deciderFor(voter.ID, opts)
	if err == nil {
		var res decider.Vote
		res, err = d.Vote(ctx, prompt)
		if err == nil {
			switch {
			case res.Target.Abstain:
				if res.Reason != "" {
					ballot.Reason = res.Reason
				}
			case res.Target.PlayerID != voter.ID && aliveSet[res.Target.PlayerID]:
				ballot.Target = res.Target
				ballot.Reason = res.Reason
			default:
				// Invalid target coerces to an abstention.
				if res.Reason != "" {
					ballot.Reason = res.Reason
				}
			}
		}
	}
	if err != nil {
		metrics.DeciderFailures.WithLabelValues("vote").Inc()
		log.Warn().Err(err).Str("player_id", voter.ID).Msg("vote failed, abstaining")
	}
	ballots = append(ballots, ballot)

	next := mafia.AdvanceVoteOrder(gs)
	if next.VotePhaseDone() {
		return o.FinishVote(ctx, next, ballots, opts), nil, nil
	}
	return next, ballots, nil
}

// runRoundSummary appends a neutral recap of the round that just ended.
func (o *Orchestrator) runRoundSummary(ctx context.Context, gs *mafia.GameState, opts Options) *mafia.GameState {
	prompt := prompts.WithRules(prompts.GameContext(gs), opts.Prompts) + "\n\n" + prompts.Summarizer(opts.Prompts)

	summary := fallbackRoundSummary
	metrics.DeciderCalls.WithLabelValues("summary").Inc()
	d, err := o.deciderFor(mafia.PlayerID(0), opts)
	if err == nil {
		var res decider.Summary
		res, err = d.Summarize(ctx, prompt)
		if err == nil && strings.TrimSpace(res.Summary) != "" {
			summary = res.Summary
		}
	}
	if err != nil {
		metrics.DeciderFailures.WithLabelValues("summary").Inc()
		log.Warn().Err(err).Msg("round summary failed")
	}
	return mafia.AppendRoundSummary(gs, summary)
}

func nonNilBallots(ballots []mafia.Ballot) []mafia.Ballot {
	if ballots == nil {
		return []mafia.Ballot{}
	}
	return ballots
}

func anyHuman(players []mafia.Player, humans map[string]bool) bool {
	for _, p := range players {
		if humans[p.ID] {
			return true
		}
	}
	return false
}

func excludeSelf(ids []string, self string) []string {
	out := filterOut(ids, self)
	if len(out) == 0 {
		return ids
	}
	return out
}

func filterOut(ids []string, self string) []string {
	var out []string
	for _, id := range ids {
		if id != self {
			out = append(out, id)
		}
	}
	return out
}

func targetName(gs *mafia.GameState, id string) string {
	if id == "" {
		return "someone"
	}
	if p := gs.Player(id); p != nil {
		return p.Name
	}
	return id
}
