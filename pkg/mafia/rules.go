// Package mafia implements the pure rule engine for a Mafia (Werewolf)
// game: the data model, phase cycle, and state transition functions. The
// package has no I/O and no knowledge of who decides an action — every
// transition takes a state, returns a fresh state, and never mutates its
// input.
package mafia

// Role is a player's secret role.
type Role string

const (
	RoleVillager Role = "villager"
	RoleDoctor   Role = "doctor"
	RoleSheriff  Role = "sheriff"
	RoleMafia    Role = "mafia"
)

// Alignment is the side a role belongs to, as reported by sheriff checks.
type Alignment string

const (
	AlignmentMafia Alignment = "mafia"
	AlignmentTown  Alignment = "town"
)

// Alignment returns the side the role plays for.
func (r Role) Alignment() Alignment {
	if r == RoleMafia {
		return AlignmentMafia
	}
	return AlignmentTown
}

// Phase is the current game phase.
type Phase string

const (
	PhaseNight         Phase = "night"
	PhaseDayDiscussion Phase = "day_discussion"
	PhaseDayVote       Phase = "day_vote"
)

// PhaseOrder is the cycle of phases within a round
// (night -> discussion -> vote -> next round night).
var PhaseOrder = [...]Phase{PhaseNight, PhaseDayDiscussion, PhaseDayVote}

// NightRoles act at night, in resolution order: mafia kill, then doctor
// protect, then sheriff check.
var NightRoles = [...]Role{RoleMafia, RoleDoctor, RoleSheriff}

// MinPlayers is the minimum number of players to start a game.
const MinPlayers = 4

// DiscussionWindowSize is how many current-round discussion messages are
// included in a decision context.
const DiscussionWindowSize = 20

func nextPhase(p Phase) Phase {
	for i, ph := range PhaseOrder {
		if ph == p {
			return PhaseOrder[(i+1)%len(PhaseOrder)]
		}
	}
	return PhaseNight
}
