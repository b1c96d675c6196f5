package mafia

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ErrPlayerRoleMismatch is returned by StartGame when the name and role
// lists differ in length.
var ErrPlayerRoleMismatch = errors.New("mafia: player names and role assignments must have same length")

// StartGame creates a started game in night phase, round 0. Players get
// ids by seat index; roles are taken as given. Seed drives the per-round
// discussion order shuffle.
func StartGame(gameID string, names []string, roles []Role, seed int64) (*GameState, error) {
	if len(names) != len(roles) {
		return nil, ErrPlayerRoleMismatch
	}
	gs := &GameState{
		GameID:  gameID,
		Phase:   PhaseNight,
		Seed:    seed,
		Started: true,
	}
	for i, name := range names {
		gs.Players = append(gs.Players, Player{
			ID:    PlayerID(i),
			Name:  name,
			Role:  roles[i],
			Alive: true,
		})
	}
	emit(gs, Event{
		Kind:    EventGameStart,
		Round:   0,
		Phase:   PhaseNight,
		Message: fmt.Sprintf("Game started with %d players.", len(gs.Players)),
	})
	return gs, nil
}

func emit(gs *GameState, e Event) {
	gs.Events = append(gs.Events, e)
}

// ApplyNightActions resolves the night: mafia kill (unless the doctor
// protected the target), doctor protect, sheriff check. Targets that are
// not alive are silently dropped. The state then advances to day
// discussion with a fresh seeded discussion order.
func ApplyNightActions(gs *GameState, actions NightActions) *GameState {
	gs = gs.Clone()
	alive := gs.AliveIDs()

	if actions.MafiaTarget != "" && !alive[actions.MafiaTarget] {
		actions.MafiaTarget = ""
	}
	if actions.DoctorTarget != "" && !alive[actions.DoctorTarget] {
		actions.DoctorTarget = ""
	}
	if actions.SheriffTarget != "" && !alive[actions.SheriffTarget] {
		actions.SheriffTarget = ""
	}

	var killedID string
	if actions.MafiaTarget != "" {
		if actions.DoctorTarget == actions.MafiaTarget {
			emit(gs, Event{
				Kind:    EventNightProtect,
				Round:   gs.Round,
				Phase:   PhaseNight,
				Message: "Doctor protected the mafia target; no one died.",
			})
		} else {
			killedID = actions.MafiaTarget
			emit(gs, Event{
				Kind:     EventNightKill,
				Round:    gs.Round,
				Phase:    PhaseNight,
				Message:  "Mafia eliminated a player.",
				TargetID: killedID,
			})
		}
	}

	if actions.DoctorTarget != "" && killedID == "" {
		emit(gs, Event{
			Kind:     EventNightProtect,
			Round:    gs.Round,
			Phase:    PhaseNight,
			Message:  "Doctor protected a player.",
			TargetID: actions.DoctorTarget,
		})
	}

	if actions.SheriffTarget != "" {
		// The check reflects the target's role at resolution time; the kill
		// above does not change roles, so order is kill then check.
		alignment := AlignmentTown
		if t := gs.Player(actions.SheriffTarget); t != nil && t.Role == RoleMafia {
			alignment = AlignmentMafia
		}
		emit(gs, Event{
			Kind:     EventNightCheck,
			Round:    gs.Round,
			Phase:    PhaseNight,
			Message:  fmt.Sprintf("Sheriff investigated; result is %s.", alignment),
			TargetID: actions.SheriffTarget,
			Extra:    map[string]string{"alignment": string(alignment)},
		})
	}

	if killedID != "" {
		if p := gs.Player(killedID); p != nil {
			p.Alive = false
		}
	}

	// Fix the discussion order for this round: seeded shuffle of alive ids.
	gs.Phase = PhaseDayDiscussion
	gs.DiscussionOrderIndex = 0
	var order []string
	for _, p := range gs.AlivePlayers() {
		order = append(order, p.ID)
	}
	rng := rand.New(rand.NewSource(gs.Seed + int64(gs.Round)*1000))
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	gs.DiscussionOrder = order
	emit(gs, Event{
		Kind:    EventPhaseChange,
		Round:   gs.Round,
		Phase:   PhaseDayDiscussion,
		Message: fmt.Sprintf("Day %d: discussion phase.", gs.Round+1),
	})
	return gs
}

// AddDiscussionMessage appends one public statement and advances the
// speaker cursor.
func AddDiscussionMessage(gs *GameState, playerID, playerName, statement string) *GameState {
	gs = gs.Clone()
	gs.Discussion = append(gs.Discussion, DiscussionMessage{
		PlayerID:   playerID,
		PlayerName: playerName,
		Statement:  statement,
		Round:      gs.Round,
	})
	gs.DiscussionOrderIndex++
	return gs
}

// AddMafiaMessage appends one private mafia channel statement.
func AddMafiaMessage(gs *GameState, playerID, playerName, statement string) *GameState {
	gs = gs.Clone()
	gs.MafiaDiscussion = append(gs.MafiaDiscussion, MafiaMessage{
		PlayerID:   playerID,
		PlayerName: playerName,
		Statement:  statement,
		Round:      gs.Round,
	})
	return gs
}

// AddNightNote appends one night reasoning record for spectator playback.
func AddNightNote(gs *GameState, note NightNote) *GameState {
	gs = gs.Clone()
	gs.NightNotes = append(gs.NightNotes, note)
	return gs
}

// AppendDiscussionSpeaker pushes a player onto the tail of this round's
// discussion order, granting them another turn.
func AppendDiscussionSpeaker(gs *GameState, playerID string) *GameState {
	gs = gs.Clone()
	gs.DiscussionOrder = append(gs.DiscussionOrder, playerID)
	return gs
}

// NextSpeaker returns the player at the discussion cursor, or nil when the
// phase is not day discussion or the queue is exhausted.
func (gs *GameState) NextSpeaker() *Player {
	if gs.Phase != PhaseDayDiscussion || len(gs.DiscussionOrder) == 0 {
		return nil
	}
	if gs.DiscussionOrderIndex >= len(gs.DiscussionOrder) {
		return nil
	}
	return gs.Player(gs.DiscussionOrder[gs.DiscussionOrderIndex])
}

// DiscussionDone reports whether the discussion phase is complete: the
// queue is empty or exhausted, or this round's message count reached
// maxTurns (maxTurns <= 0 means uncapped).
func (gs *GameState) DiscussionDone(maxTurns int) bool {
	if len(gs.DiscussionOrder) == 0 {
		return true
	}
	if maxTurns > 0 && len(gs.RoundDiscussion()) >= maxTurns {
		return true
	}
	return gs.DiscussionOrderIndex >= len(gs.DiscussionOrder)
}

// AdvancePhase moves to the next phase in the cycle. Entering day vote
// fixes the vote order as the reverse of the discussion order; entering
// night starts the next round.
func AdvancePhase(gs *GameState) *GameState {
	gs = gs.Clone()
	gs.Phase = nextPhase(gs.Phase)
	switch gs.Phase {
	case PhaseNight:
		gs.Round++
	case PhaseDayVote:
		order := make([]string, len(gs.DiscussionOrder))
		for i, id := range gs.DiscussionOrder {
			order[len(order)-1-i] = id
		}
		gs.VoteOrder = order
		gs.VoteOrderIndex = 0
	}
	return gs
}

// NextVoter returns the player at the vote cursor, or nil when the phase
// is not day vote or everyone has voted.
func (gs *GameState) NextVoter() *Player {
	if gs.Phase != PhaseDayVote || len(gs.VoteOrder) == 0 {
		return nil
	}
	if gs.VoteOrderIndex >= len(gs.VoteOrder) {
		return nil
	}
	return gs.Player(gs.VoteOrder[gs.VoteOrderIndex])
}

// VotePhaseDone reports whether every voter in the vote order has voted.
func (gs *GameState) VotePhaseDone() bool {
	if len(gs.VoteOrder) == 0 {
		return true
	}
	return gs.VoteOrderIndex >= len(gs.VoteOrder)
}

// AdvanceVoteOrder increments the vote cursor after one voter has voted.
func AdvanceVoteOrder(gs *GameState) *GameState {
	gs = gs.Clone()
	gs.VoteOrderIndex++
	return gs
}

// VoteThreshold is the minimum vote count a unique top target needs to be
// eliminated: ceil(0.51 * alive).
func VoteThreshold(aliveCount int) int {
	return int(math.Ceil(0.51 * float64(aliveCount)))
}

// ApplyVote records the collected ballots, eliminates the unique
// top-voted player when the threshold is met, and advances to the next
// night. Dead voters, self-votes, and dead targets are silently dropped;
// abstentions are recorded but never count toward a target.
func ApplyVote(gs *GameState, ballots []Ballot) *GameState {
	gs = gs.Clone()
	alive := gs.AliveIDs()

	for _, b := range ballots {
		if !alive[b.VoterID] {
			continue
		}
		if !b.Target.Abstain && (!alive[b.Target.PlayerID] || b.Target.PlayerID == b.VoterID) {
			continue
		}
		gs.Votes = append(gs.Votes, VoteRecord{
			VoterID: b.VoterID,
			Target:  b.Target,
			Reason:  b.Reason,
			Round:   gs.Round,
		})
	}

	var roundVotes []VoteRecord
	for _, v := range gs.Votes {
		if v.Round == gs.Round {
			roundVotes = append(roundVotes, v)
		}
	}
	if len(roundVotes) == 0 {
		gs.Phase = PhaseNight
		gs.Round++
		gs.DiscussionOrderIndex = 0
		emit(gs, Event{
			Kind:    EventPhaseChange,
			Round:   gs.Round,
			Phase:   PhaseNight,
			Message: "No votes; night falls.",
		})
		return gs
	}

	counts := make(map[string]int)
	for _, v := range roundVotes {
		if !v.Target.Abstain {
			counts[v.Target.PlayerID]++
		}
	}
	maxVotes := 0
	for _, c := range counts {
		if c > maxVotes {
			maxVotes = c
		}
	}
	var tied []string
	for id, c := range counts {
		if c == maxVotes {
			tied = append(tied, id)
		}
	}

	if len(tied) == 1 && maxVotes >= VoteThreshold(len(alive)) {
		eliminatedID := tied[0]
		target := gs.Player(eliminatedID)
		name := eliminatedID
		role := ""
		if target != nil {
			name = target.Name
			role = string(target.Role)
		}
		emit(gs, Event{
			Kind:     EventEliminated,
			Round:    gs.Round,
			Phase:    PhaseDayVote,
			Message:  fmt.Sprintf("%s was eliminated by vote.", name),
			PlayerID: eliminatedID,
			Extra:    map[string]string{"role": role},
		})
		if target != nil {
			target.Alive = false
		}
	}

	gs.Phase = PhaseNight
	gs.Round++
	gs.DiscussionOrderIndex = 0
	emit(gs, Event{
		Kind:    EventPhaseChange,
		Round:   gs.Round,
		Phase:   PhaseNight,
		Message: fmt.Sprintf("Night %d.", gs.Round+1),
	})
	return gs
}

// AppendRoundSummary appends a neutral round summary.
func AppendRoundSummary(gs *GameState, summary string) *GameState {
	gs = gs.Clone()
	gs.RoundSummaries = append(gs.RoundSummaries, summary)
	return gs
}

// IsGameOver reports whether either side has won: no mafia alive, or
// mafia count at least equal to town count.
func (gs *GameState) IsGameOver() bool {
	mafiaAlive, townAlive := gs.aliveByAlignment()
	return mafiaAlive == 0 || mafiaAlive >= townAlive
}

// Winner returns "town" or "mafia" when the game is over, else "".
func (gs *GameState) Winner() string {
	if !gs.IsGameOver() {
		return ""
	}
	mafiaAlive, _ := gs.aliveByAlignment()
	if mafiaAlive > 0 {
		return string(AlignmentMafia)
	}
	return string(AlignmentTown)
}

func (gs *GameState) aliveByAlignment() (mafiaAlive, townAlive int) {
	for _, p := range gs.Players {
		if !p.Alive {
			continue
		}
		if p.Role == RoleMafia {
			mafiaAlive++
		} else {
			townAlive++
		}
	}
	return mafiaAlive, townAlive
}
