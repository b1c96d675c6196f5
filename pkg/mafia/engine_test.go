package mafia

import (
	"testing"
)

// 5 players: villager, mafia, doctor, sheriff, mafia.
func makeGame(t *testing.T, seed int64) *GameState {
	t.Helper()
	names := []string{"Alice", "Bob", "Carol", "Dave", "Eve"}
	roles := []Role{RoleVillager, RoleMafia, RoleDoctor, RoleSheriff, RoleMafia}
	gs, err := StartGame("g1", names, roles, seed)
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	return gs
}

func eventKinds(gs *GameState) map[EventKind]int {
	kinds := make(map[EventKind]int)
	for _, e := range gs.Events {
		kinds[e.Kind]++
	}
	return kinds
}

func TestStartGame(t *testing.T) {
	gs, err := StartGame("g1", []string{"A", "B", "C"}, []Role{RoleVillager, RoleMafia, RoleVillager}, 1)
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if gs.GameID != "g1" || !gs.Started {
		t.Error("game should be started with the given id")
	}
	if gs.Phase != PhaseNight || gs.Round != 0 {
		t.Errorf("expected night round 0, got %s round %d", gs.Phase, gs.Round)
	}
	for i, p := range gs.Players {
		if p.ID != PlayerID(i) {
			t.Errorf("player %d id = %q, want %q", i, p.ID, PlayerID(i))
		}
		if !p.Alive {
			t.Errorf("player %s should start alive", p.ID)
		}
	}
	if len(gs.Events) != 1 || gs.Events[0].Kind != EventGameStart {
		t.Errorf("expected single game_start event, got %v", gs.Events)
	}
}

func TestStartGame_LengthMismatch(t *testing.T) {
	if _, err := StartGame("g1", []string{"A", "B"}, []Role{RoleMafia}, 1); err == nil {
		t.Fatal("expected error for mismatched names/roles")
	}
}

func TestApplyNightActions_Kill(t *testing.T) {
	gs := makeGame(t, 42)
	gs2 := ApplyNightActions(gs, NightActions{MafiaTarget: "player_0"})

	if gs2.Phase != PhaseDayDiscussion {
		t.Errorf("expected day_discussion, got %s", gs2.Phase)
	}
	victim := gs2.Player("player_0")
	if victim == nil || victim.Alive {
		t.Error("player_0 should be dead")
	}
	if len(gs2.DiscussionOrder) != 4 {
		t.Errorf("discussion order should hold the 4 alive players, got %d", len(gs2.DiscussionOrder))
	}
	for _, id := range gs2.DiscussionOrder {
		if id == "player_0" {
			t.Error("dead player must not appear in discussion order")
		}
	}
	// Input state untouched.
	if !gs.Player("player_0").Alive || gs.Phase != PhaseNight {
		t.Error("ApplyNightActions must not mutate its input")
	}
}

func TestApplyNightActions_DoctorSave(t *testing.T) {
	// Scenario: mafia and doctor both target player_0 — everyone lives.
	gs := makeGame(t, 42)
	gs2 := ApplyNightActions(gs, NightActions{MafiaTarget: "player_0", DoctorTarget: "player_0"})

	for _, p := range gs2.Players {
		if !p.Alive {
			t.Errorf("player %s should be alive after doctor save", p.ID)
		}
	}
	if gs2.Phase != PhaseDayDiscussion {
		t.Errorf("expected day_discussion, got %s", gs2.Phase)
	}
	kinds := eventKinds(gs2)
	if kinds[EventNightKill] != 0 {
		t.Error("no night_kill expected when the doctor saved the target")
	}
	if kinds[EventNightProtect] != 1 {
		t.Errorf("expected exactly one night_protect, got %d", kinds[EventNightProtect])
	}
}

func TestApplyNightActions_OrphanProtect(t *testing.T) {
	// Doctor protects someone the mafia did not target: protect event still emitted.
	gs := makeGame(t, 42)
	gs2 := ApplyNightActions(gs, NightActions{MafiaTarget: "player_0", DoctorTarget: "player_3"})

	kinds := eventKinds(gs2)
	if kinds[EventNightKill] != 1 || kinds[EventNightProtect] != 1 {
		t.Errorf("expected one kill and one protect, got %v", kinds)
	}
}

func TestApplyNightActions_SheriffCheck(t *testing.T) {
	gs := makeGame(t, 42)
	gs2 := ApplyNightActions(gs, NightActions{SheriffTarget: "player_1"})

	var check *Event
	for i := range gs2.Events {
		if gs2.Events[i].Kind == EventNightCheck {
			check = &gs2.Events[i]
		}
	}
	if check == nil {
		t.Fatal("expected a night_check event")
	}
	if check.Extra["alignment"] != "mafia" {
		t.Errorf("player_1 is mafia, alignment = %q", check.Extra["alignment"])
	}

	gs3 := ApplyNightActions(gs, NightActions{SheriffTarget: "player_0"})
	for _, e := range gs3.Events {
		if e.Kind == EventNightCheck && e.Extra["alignment"] != "town" {
			t.Errorf("player_0 is a villager, alignment = %q", e.Extra["alignment"])
		}
	}
}

func TestApplyNightActions_SheriffSeesKilledMafia(t *testing.T) {
	// Kill resolves before the check but the check reflects role, not liveness.
	gs := makeGame(t, 42)
	gs2 := ApplyNightActions(gs, NightActions{MafiaTarget: "player_3", SheriffTarget: "player_3"})
	for _, e := range gs2.Events {
		if e.Kind == EventNightCheck && e.Extra["alignment"] != "town" {
			t.Errorf("sheriff check should report role alignment, got %q", e.Extra["alignment"])
		}
	}
}

func TestApplyNightActions_DeadTargetsDropped(t *testing.T) {
	gs := makeGame(t, 42)
	gs = ApplyNightActions(gs, NightActions{MafiaTarget: "player_0"})
	gs.Phase = PhaseNight

	gs2 := ApplyNightActions(gs, NightActions{MafiaTarget: "player_0", SheriffTarget: "player_0"})
	for _, e := range gs2.Events[len(gs.Events):] {
		if e.Kind == EventNightKill || e.Kind == EventNightCheck {
			t.Errorf("actions against a dead target must be dropped, got %s", e.Kind)
		}
	}
}

func TestDiscussionOrder_Deterministic(t *testing.T) {
	actions := NightActions{MafiaTarget: "player_0"}
	a := ApplyNightActions(makeGame(t, 7), actions)
	b := ApplyNightActions(makeGame(t, 7), actions)
	if len(a.DiscussionOrder) != len(b.DiscussionOrder) {
		t.Fatal("orders differ in length")
	}
	for i := range a.DiscussionOrder {
		if a.DiscussionOrder[i] != b.DiscussionOrder[i] {
			t.Fatalf("same seed must give same discussion order: %v vs %v", a.DiscussionOrder, b.DiscussionOrder)
		}
	}
}

func TestNextSpeakerAndDiscussionDone(t *testing.T) {
	gs := ApplyNightActions(makeGame(t, 42), NightActions{MafiaTarget: "player_0"})
	if gs.DiscussionDone(0) {
		t.Fatal("discussion should not be done before anyone spoke")
	}
	for range gs.DiscussionOrder {
		sp := gs.NextSpeaker()
		if sp == nil {
			t.Fatal("expected a next speaker")
		}
		gs = AddDiscussionMessage(gs, sp.ID, sp.Name, "I have nothing to add.")
	}
	if !gs.DiscussionDone(0) {
		t.Error("discussion should be done after everyone spoke")
	}
	if gs.NextSpeaker() != nil {
		t.Error("no speaker expected once the queue is exhausted")
	}
}

func TestDiscussionDone_Cap(t *testing.T) {
	gs := ApplyNightActions(makeGame(t, 42), NightActions{})
	sp := gs.NextSpeaker()
	gs = AddDiscussionMessage(gs, sp.ID, sp.Name, "one")
	if gs.DiscussionDone(2) {
		t.Error("cap of 2 with 1 message should not be done")
	}
	sp = gs.NextSpeaker()
	gs = AddDiscussionMessage(gs, sp.ID, sp.Name, "two")
	if !gs.DiscussionDone(2) {
		t.Error("cap of 2 with 2 messages should be done")
	}
}

func TestAppendDiscussionSpeaker(t *testing.T) {
	gs := ApplyNightActions(makeGame(t, 42), NightActions{})
	n := len(gs.DiscussionOrder)
	gs = AppendDiscussionSpeaker(gs, "player_2")
	if len(gs.DiscussionOrder) != n+1 || gs.DiscussionOrder[n] != "player_2" {
		t.Errorf("player_2 should be appended at the tail, got %v", gs.DiscussionOrder)
	}
}

func TestAdvancePhase_VoteOrderIsReversedDiscussionOrder(t *testing.T) {
	gs := ApplyNightActions(makeGame(t, 42), NightActions{MafiaTarget: "player_0"})
	gs2 := AdvancePhase(gs)
	if gs2.Phase != PhaseDayVote {
		t.Fatalf("expected day_vote, got %s", gs2.Phase)
	}
	if len(gs2.VoteOrder) != len(gs.DiscussionOrder) {
		t.Fatal("vote order length mismatch")
	}
	for i, id := range gs2.VoteOrder {
		want := gs.DiscussionOrder[len(gs.DiscussionOrder)-1-i]
		if id != want {
			t.Errorf("vote order[%d] = %s, want %s", i, id, want)
		}
	}
	if gs2.VoteOrderIndex != 0 {
		t.Error("vote cursor should reset on entering day_vote")
	}
}

func TestAdvancePhase_NightIncrementsRound(t *testing.T) {
	gs := makeGame(t, 42)
	gs.Phase = PhaseDayVote
	gs2 := AdvancePhase(gs)
	if gs2.Phase != PhaseNight || gs2.Round != gs.Round+1 {
		t.Errorf("vote -> night must increment round: phase %s round %d", gs2.Phase, gs2.Round)
	}
}

// Scenario: 4 alive, two votes for player_1. Threshold is ceil(0.51*4)=3,
// so nobody is eliminated and the game moves on.
func TestApplyVote_SubThreshold(t *testing.T) {
	gs := ApplyNightActions(makeGame(t, 42), NightActions{MafiaTarget: "player_0"})
	gs = AdvancePhase(gs)
	round := gs.Round

	gs2 := ApplyVote(gs, []Ballot{
		{VoterID: "player_2", Target: TargetPlayer("player_1"), Reason: "sus"},
		{VoterID: "player_3", Target: TargetPlayer("player_1"), Reason: "agreed"},
	})
	if !gs2.Player("player_1").Alive {
		t.Error("player_1 must survive a sub-threshold vote")
	}
	if gs2.Phase != PhaseNight || gs2.Round != round+1 {
		t.Errorf("expected night round %d, got %s round %d", round+1, gs2.Phase, gs2.Round)
	}
}

func TestApplyVote_SuperThreshold(t *testing.T) {
	gs := ApplyNightActions(makeGame(t, 42), NightActions{MafiaTarget: "player_0"})
	gs = AdvancePhase(gs)

	gs2 := ApplyVote(gs, []Ballot{
		{VoterID: "player_2", Target: TargetPlayer("player_1"), Reason: ""},
		{VoterID: "player_3", Target: TargetPlayer("player_1"), Reason: ""},
		{VoterID: "player_4", Target: TargetPlayer("player_1"), Reason: ""},
	})
	if gs2.Player("player_1").Alive {
		t.Error("player_1 should be eliminated at threshold")
	}
	var elim *Event
	for i := range gs2.Events {
		if gs2.Events[i].Kind == EventEliminated {
			elim = &gs2.Events[i]
		}
	}
	if elim == nil {
		t.Fatal("expected an eliminated event")
	}
	if elim.Extra["role"] != string(RoleMafia) {
		t.Errorf("eliminated event should carry the role, got %q", elim.Extra["role"])
	}
}

func TestApplyVote_TieNoElimination(t *testing.T) {
	gs := ApplyNightActions(makeGame(t, 42), NightActions{})
	gs = AdvancePhase(gs)

	gs2 := ApplyVote(gs, []Ballot{
		{VoterID: "player_0", Target: TargetPlayer("player_1")},
		{VoterID: "player_1", Target: TargetPlayer("player_0")},
		{VoterID: "player_2", Target: TargetPlayer("player_1")},
		{VoterID: "player_3", Target: TargetPlayer("player_0")},
	})
	for _, p := range gs2.Players {
		if !p.Alive {
			t.Errorf("tie must not eliminate anyone, %s is dead", p.ID)
		}
	}
}

func TestApplyVote_InvalidBallotsDropped(t *testing.T) {
	gs := ApplyNightActions(makeGame(t, 42), NightActions{MafiaTarget: "player_0"})
	gs = AdvancePhase(gs)

	gs2 := ApplyVote(gs, []Ballot{
		{VoterID: "player_0", Target: TargetPlayer("player_1")}, // dead voter
		{VoterID: "player_1", Target: TargetPlayer("player_1")}, // self vote
		{VoterID: "player_2", Target: TargetPlayer("player_0")}, // dead target
		{VoterID: "player_3", Target: Abstain(), Reason: "unsure"},
	})
	var recorded []VoteRecord
	for _, v := range gs2.Votes {
		if v.Round == gs.Round {
			recorded = append(recorded, v)
		}
	}
	if len(recorded) != 1 || !recorded[0].Target.Abstain {
		t.Errorf("only the abstention should be recorded, got %v", recorded)
	}
}

func TestApplyVote_NoVotes(t *testing.T) {
	gs := ApplyNightActions(makeGame(t, 42), NightActions{})
	gs = AdvancePhase(gs)
	round := gs.Round

	gs2 := ApplyVote(gs, nil)
	if gs2.Phase != PhaseNight || gs2.Round != round+1 {
		t.Errorf("empty vote still transitions to night: %s round %d", gs2.Phase, gs2.Round)
	}
	last := gs2.Events[len(gs2.Events)-1]
	if last.Kind != EventPhaseChange {
		t.Errorf("expected phase_change, got %s", last.Kind)
	}
}

// Scenario: 3 players [villager, mafia, villager]; the first night kill
// puts mafia at parity — game over, mafia win.
func TestMafiaVictory(t *testing.T) {
	gs, err := StartGame("g1", []string{"A", "B", "C"}, []Role{RoleVillager, RoleMafia, RoleVillager}, 3)
	if err != nil {
		t.Fatal(err)
	}
	gs = ApplyNightActions(gs, NightActions{MafiaTarget: "player_0"})
	if !gs.IsGameOver() {
		t.Fatal("1 mafia vs 1 villager is parity; game should be over")
	}
	if gs.Winner() != "mafia" {
		t.Errorf("winner = %q, want mafia", gs.Winner())
	}
}

func TestMafiaVictory_Parity(t *testing.T) {
	gs, err := StartGame("g1", []string{"A", "B", "C", "D"}, []Role{RoleVillager, RoleMafia, RoleVillager, RoleVillager}, 3)
	if err != nil {
		t.Fatal(err)
	}
	gs = ApplyNightActions(gs, NightActions{MafiaTarget: "player_0"})
	gs = AdvancePhase(gs)
	gs = ApplyVote(gs, nil)
	gs = ApplyNightActions(gs, NightActions{MafiaTarget: "player_2"})
	if !gs.IsGameOver() {
		t.Fatal("game should be over at mafia parity")
	}
	if gs.Winner() != "mafia" {
		t.Errorf("winner = %q, want mafia", gs.Winner())
	}
}

// Scenario: 4 players [villager, mafia, villager, villager]; night kills
// player_0, the rest vote out the mafia — town wins.
func TestTownVictory(t *testing.T) {
	gs, err := StartGame("g1", []string{"A", "B", "C", "D"}, []Role{RoleVillager, RoleMafia, RoleVillager, RoleVillager}, 5)
	if err != nil {
		t.Fatal(err)
	}
	gs = ApplyNightActions(gs, NightActions{MafiaTarget: "player_0"})
	gs = AdvancePhase(gs)
	gs = ApplyVote(gs, []Ballot{
		{VoterID: "player_2", Target: TargetPlayer("player_1")},
		{VoterID: "player_3", Target: TargetPlayer("player_1")},
	})
	if !gs.IsGameOver() {
		t.Fatal("game should be over once the only mafia is eliminated")
	}
	if gs.Winner() != "town" {
		t.Errorf("winner = %q, want town", gs.Winner())
	}
}

func TestRoundMonotonic(t *testing.T) {
	gs := makeGame(t, 42)
	prev := gs.Round
	gs = ApplyNightActions(gs, NightActions{MafiaTarget: "player_0"})
	if gs.Round < prev {
		t.Fatal("round decreased")
	}
	prev = gs.Round
	gs = AdvancePhase(gs)
	gs = ApplyVote(gs, nil)
	if gs.Round != prev+1 {
		t.Fatalf("round should increment exactly on vote -> night, got %d", gs.Round)
	}
}

func TestVoteThreshold(t *testing.T) {
	cases := []struct{ alive, want int }{
		{4, 3}, {5, 3}, {6, 4}, {7, 4}, {10, 6},
	}
	for _, c := range cases {
		if got := VoteThreshold(c.alive); got != c.want {
			t.Errorf("VoteThreshold(%d) = %d, want %d", c.alive, got, c.want)
		}
	}
}

func TestAppendRoundSummary(t *testing.T) {
	gs := makeGame(t, 42)
	gs2 := AppendRoundSummary(gs, "Quiet night.")
	if len(gs2.RoundSummaries) != 1 || gs2.RoundSummaries[0] != "Quiet night." {
		t.Errorf("unexpected summaries %v", gs2.RoundSummaries)
	}
	if len(gs.RoundSummaries) != 0 {
		t.Error("AppendRoundSummary must not mutate its input")
	}
}
