package mafia

import "fmt"

// Player is one seat in the game. ID and Role are fixed at game start;
// Alive only ever flips from true to false.
type Player struct {
	ID    string
	Name  string
	Role  Role
	Alive bool
}

// EventKind tags an entry in the game's audit log.
type EventKind string

const (
	EventGameStart    EventKind = "game_start"
	EventPhaseChange  EventKind = "phase_change"
	EventNightKill    EventKind = "night_kill"
	EventNightProtect EventKind = "night_protect"
	EventNightCheck   EventKind = "night_check"
	EventDiscussion   EventKind = "discussion"
	EventVote         EventKind = "vote"
	EventEliminated   EventKind = "eliminated"
)

// Event is one append-only entry in the game history. Extra carries
// kind-specific details: "alignment" for night checks, "role" for
// eliminations.
type Event struct {
	Kind     EventKind
	Round    int
	Phase    Phase
	Message  string
	PlayerID string
	TargetID string
	Extra    map[string]string
}

// DiscussionMessage is one public statement during day discussion.
type DiscussionMessage struct {
	PlayerID   string
	PlayerName string
	Statement  string
	Round      int
}

// VoteTarget is the closed target variant of a ballot: either a player id
// or an abstention. The "abstain" sentinel string exists only at the wire
// surface.
type VoteTarget struct {
	PlayerID string
	Abstain  bool
}

// Abstain returns an abstaining vote target.
func Abstain() VoteTarget { return VoteTarget{Abstain: true} }

// TargetPlayer returns a vote target naming a player.
func TargetPlayer(id string) VoteTarget { return VoteTarget{PlayerID: id} }

// Ballot is one voter's input to ApplyVote.
type Ballot struct {
	VoterID string
	Target  VoteTarget
	Reason  string
}

// VoteRecord is one recorded vote during day vote.
type VoteRecord struct {
	VoterID string
	Target  VoteTarget
	Reason  string
	Round   int
}

// MafiaMessage is one mafia player's statement in the private night
// channel. Visible only to spectators.
type MafiaMessage struct {
	PlayerID   string
	PlayerName string
	Statement  string
	Round      int
}

// NightNote records the private reasoning behind one night action,
// for spectator playback.
type NightNote struct {
	Round      int
	Role       Role
	PlayerID   string
	PlayerName string
	TargetID   string
	TargetName string
	Reason     string
}

// NightActions is the transient triple of night targets collected during
// one night. Empty string means the role did not act. It is consumed by
// ApplyNightActions and never stored in the canonical state.
type NightActions struct {
	MafiaTarget   string
	DoctorTarget  string
	SheriffTarget string
}

// GameState is the full canonical state of one game.
type GameState struct {
	GameID  string
	Players []Player
	Round   int
	Phase   Phase

	Events     []Event
	Discussion []DiscussionMessage
	Votes      []VoteRecord

	RoundSummaries []string

	// Turn cursors for the day phases. DiscussionOrder is fixed when the
	// round's discussion starts; VoteOrder is its reverse.
	DiscussionOrder      []string
	DiscussionOrderIndex int
	VoteOrder            []string
	VoteOrderIndex       int

	// Spectator-only artifacts.
	MafiaDiscussion []MafiaMessage
	NightNotes      []NightNote

	Seed    int64
	Started bool
}

// PlayerID synthesizes the canonical id for a seat index.
func PlayerID(index int) string { return fmt.Sprintf("player_%d", index) }

// Player returns the player with the given id, or nil.
func (gs *GameState) Player(id string) *Player {
	for i := range gs.Players {
		if gs.Players[i].ID == id {
			return &gs.Players[i]
		}
	}
	return nil
}

// AlivePlayers returns all players still alive, in seat order.
func (gs *GameState) AlivePlayers() []Player {
	var alive []Player
	for _, p := range gs.Players {
		if p.Alive {
			alive = append(alive, p)
		}
	}
	return alive
}

// AliveIDs returns the set of alive player ids.
func (gs *GameState) AliveIDs() map[string]bool {
	ids := make(map[string]bool)
	for _, p := range gs.Players {
		if p.Alive {
			ids[p.ID] = true
		}
	}
	return ids
}

// PlayersByRole returns the alive players with the given role, in seat order.
func (gs *GameState) PlayersByRole(role Role) []Player {
	var out []Player
	for _, p := range gs.Players {
		if p.Alive && p.Role == role {
			out = append(out, p)
		}
	}
	return out
}

// RoundDiscussion returns this round's discussion messages.
func (gs *GameState) RoundDiscussion() []DiscussionMessage {
	var out []DiscussionMessage
	for _, m := range gs.Discussion {
		if m.Round == gs.Round {
			out = append(out, m)
		}
	}
	return out
}

// RoundMafiaDiscussion returns this round's private mafia messages.
func (gs *GameState) RoundMafiaDiscussion() []MafiaMessage {
	var out []MafiaMessage
	for _, m := range gs.MafiaDiscussion {
		if m.Round == gs.Round {
			out = append(out, m)
		}
	}
	return out
}

// Clone returns a deep copy of the GameState. Transition functions clone
// first so callers never observe torn state.
func (gs *GameState) Clone() *GameState {
	c := &GameState{
		GameID:               gs.GameID,
		Round:                gs.Round,
		Phase:                gs.Phase,
		DiscussionOrderIndex: gs.DiscussionOrderIndex,
		VoteOrderIndex:       gs.VoteOrderIndex,
		Seed:                 gs.Seed,
		Started:              gs.Started,
	}
	if gs.Players != nil {
		c.Players = make([]Player, len(gs.Players))
		copy(c.Players, gs.Players)
	}
	if gs.Events != nil {
		c.Events = make([]Event, len(gs.Events))
		copy(c.Events, gs.Events)
		for i, e := range c.Events {
			if e.Extra != nil {
				extra := make(map[string]string, len(e.Extra))
				for k, v := range e.Extra {
					extra[k] = v
				}
				c.Events[i].Extra = extra
			}
		}
	}
	if gs.Discussion != nil {
		c.Discussion = make([]DiscussionMessage, len(gs.Discussion))
		copy(c.Discussion, gs.Discussion)
	}
	if gs.Votes != nil {
		c.Votes = make([]VoteRecord, len(gs.Votes))
		copy(c.Votes, gs.Votes)
	}
	if gs.RoundSummaries != nil {
		c.RoundSummaries = make([]string, len(gs.RoundSummaries))
		copy(c.RoundSummaries, gs.RoundSummaries)
	}
	if gs.DiscussionOrder != nil {
		c.DiscussionOrder = make([]string, len(gs.DiscussionOrder))
		copy(c.DiscussionOrder, gs.DiscussionOrder)
	}
	if gs.VoteOrder != nil {
		c.VoteOrder = make([]string, len(gs.VoteOrder))
		copy(c.VoteOrder, gs.VoteOrder)
	}
	if gs.MafiaDiscussion != nil {
		c.MafiaDiscussion = make([]MafiaMessage, len(gs.MafiaDiscussion))
		copy(c.MafiaDiscussion, gs.MafiaDiscussion)
	}
	if gs.NightNotes != nil {
		c.NightNotes = make([]NightNote, len(gs.NightNotes))
		copy(c.NightNotes, gs.NightNotes)
	}
	return c
}
