package handler

import (
	"github.com/efreeman/ai-mafia/pkg/mafia"
)

// Wire sentinel for an abstaining vote.
const abstainWire = "abstain"

// PlayerPublic is a player as shown to clients. Role is revealed only on
// death, or always in spectator mode.
type PlayerPublic struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Alive bool   `json:"alive"`
	Role  string `json:"role,omitempty"`
}

type EventPublic struct {
	Kind       string `json:"kind"`
	RoundIndex int    `json:"round_index"`
	Phase      string `json:"phase"`
	Message    string `json:"message"`
	PlayerID   string `json:"player_id,omitempty"`
	TargetID   string `json:"target_id,omitempty"`
}

type DiscussionMessagePublic struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Statement  string `json:"statement"`
	RoundIndex int    `json:"round_index"`
}

type VotePublic struct {
	VoterID    string `json:"voter_id"`
	VoterName  string `json:"voter_name"`
	TargetID   string `json:"target_id"`
	TargetName string `json:"target_name"`
	Reason     string `json:"reason"`
}

// MafiaMessagePublic is a private mafia channel message, spectate only.
type MafiaMessagePublic struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Statement  string `json:"statement"`
	RoundIndex int    `json:"round_index"`
}

// NightNotePublic is one night action's private reasoning, spectate only.
type NightNotePublic struct {
	Role       string `json:"role"`
	PlayerName string `json:"player_name"`
	TargetName string `json:"target_name"`
	Reason     string `json:"reason"`
}

// GameStateResponse is the public projection of a game.
type GameStateResponse struct {
	GameID               string                    `json:"game_id"`
	Players              []PlayerPublic            `json:"players"`
	RoundIndex           int                       `json:"round_index"`
	Phase                string                    `json:"phase"`
	Events               []EventPublic             `json:"events"`
	Discussion           []DiscussionMessagePublic `json:"discussion"`
	RoundSummaries       []string                  `json:"round_summaries"`
	Started              bool                      `json:"started"`
	Winner               string                    `json:"winner,omitempty"`
	WaitingForHuman      bool                      `json:"waiting_for_human"`
	CurrentActorID       string                    `json:"current_actor_id,omitempty"`
	PendingHumanVoteIDs  []string                  `json:"pending_human_vote_ids"`
	PendingHumanNightIDs []string                  `json:"pending_human_night_ids"`
	HumanPlayerIDs       []string                  `json:"human_player_ids"`
	CurrentRoundVotes    []VotePublic              `json:"current_round_votes"`
	Spectate             bool                      `json:"spectate"`
	SpectatorMafiaChat   []MafiaMessagePublic      `json:"spectator_mafia_discussion"`
	SpectatorNightNotes  []NightNotePublic         `json:"spectator_night_reasoning"`
}

// projection carries the waiting flags and buffers the handler resolves
// before projecting a state.
type projection struct {
	WaitingForHuman      bool
	CurrentActorID       string
	PendingHumanVoteIDs  []string
	PendingHumanNightIDs []string
	HumanPlayerIDs       []string
	PendingVotes         []mafia.Ballot
	Spectate             bool
}

// project builds the public view of a state. Alive players keep their
// roles hidden unless spectate is on; current-round votes come from the
// pending buffer during day vote and from the previous round's records
// otherwise.
func project(gs *mafia.GameState, p projection) GameStateResponse {
	resp := GameStateResponse{
		GameID:               gs.GameID,
		RoundIndex:           gs.Round,
		Phase:                string(gs.Phase),
		Started:              gs.Started,
		WaitingForHuman:      p.WaitingForHuman,
		CurrentActorID:       p.CurrentActorID,
		PendingHumanVoteIDs:  emptyIfNil(p.PendingHumanVoteIDs),
		PendingHumanNightIDs: emptyIfNil(p.PendingHumanNightIDs),
		HumanPlayerIDs:       emptyIfNil(p.HumanPlayerIDs),
		CurrentRoundVotes:    []VotePublic{},
		Spectate:             p.Spectate,
		Players:              make([]PlayerPublic, 0, len(gs.Players)),
		Events:               make([]EventPublic, 0, len(gs.Events)),
		Discussion:           make([]DiscussionMessagePublic, 0, len(gs.Discussion)),
		RoundSummaries:       emptyIfNil(gs.RoundSummaries),
		SpectatorMafiaChat:   []MafiaMessagePublic{},
		SpectatorNightNotes:  []NightNotePublic{},
	}

	names := make(map[string]string, len(gs.Players))
	for _, pl := range gs.Players {
		names[pl.ID] = pl.Name
		role := ""
		if p.Spectate || !pl.Alive {
			role = string(pl.Role)
		}
		resp.Players = append(resp.Players, PlayerPublic{ID: pl.ID, Name: pl.Name, Alive: pl.Alive, Role: role})
	}

	for _, e := range gs.Events {
		resp.Events = append(resp.Events, EventPublic{
			Kind:       string(e.Kind),
			RoundIndex: e.Round,
			Phase:      string(e.Phase),
			Message:    e.Message,
			PlayerID:   e.PlayerID,
			TargetID:   e.TargetID,
		})
	}

	for _, m := range gs.Discussion {
		resp.Discussion = append(resp.Discussion, DiscussionMessagePublic{
			PlayerID:   m.PlayerID,
			PlayerName: m.PlayerName,
			Statement:  m.Statement,
			RoundIndex: m.Round,
		})
	}

	if gs.Started && gs.IsGameOver() {
		resp.Winner = gs.Winner()
	}

	if gs.Phase == mafia.PhaseDayVote && len(p.PendingVotes) > 0 {
		for _, b := range p.PendingVotes {
			resp.CurrentRoundVotes = append(resp.CurrentRoundVotes, votePublic(b.VoterID, b.Target, b.Reason, names))
		}
	} else {
		roundToShow := gs.Round - 1
		if gs.Phase == mafia.PhaseDayVote {
			roundToShow = gs.Round
		}
		for _, v := range gs.Votes {
			if v.Round == roundToShow {
				resp.CurrentRoundVotes = append(resp.CurrentRoundVotes, votePublic(v.VoterID, v.Target, v.Reason, names))
			}
		}
	}

	if p.Spectate {
		for _, m := range gs.MafiaDiscussion {
			resp.SpectatorMafiaChat = append(resp.SpectatorMafiaChat, MafiaMessagePublic{
				PlayerID:   m.PlayerID,
				PlayerName: m.PlayerName,
				Statement:  m.Statement,
				RoundIndex: m.Round,
			})
		}
		for _, n := range gs.NightNotes {
			resp.SpectatorNightNotes = append(resp.SpectatorNightNotes, NightNotePublic{
				Role:       string(n.Role),
				PlayerName: n.PlayerName,
				TargetName: n.TargetName,
				Reason:     n.Reason,
			})
		}
	}

	return resp
}

func votePublic(voterID string, target mafia.VoteTarget, reason string, names map[string]string) VotePublic {
	v := VotePublic{
		VoterID:   voterID,
		VoterName: nameOr(names, voterID),
		Reason:    reason,
	}
	if target.Abstain {
		v.TargetID = abstainWire
		v.TargetName = "Abstain"
	} else {
		v.TargetID = target.PlayerID
		v.TargetName = nameOr(names, target.PlayerID)
	}
	return v
}

func nameOr(names map[string]string, id string) string {
	if n, ok := names[id]; ok {
		return n
	}
	return id
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
