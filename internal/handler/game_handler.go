package handler

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/efreeman/ai-mafia/internal/decider"
	"github.com/efreeman/ai-mafia/internal/metrics"
	"github.com/efreeman/ai-mafia/internal/orchestrator"
	"github.com/efreeman/ai-mafia/internal/session"
	"github.com/efreeman/ai-mafia/pkg/mafia"
)

// Payload limits for human actions.
const (
	maxStatementLength  = 500
	maxVoteReasonLength = 300
	maxPlayerNameLength = 50
)

// defaultNames is the pool used when the request names no players.
var defaultNames = []string{
	"Alice", "Bob", "Carol", "Dave", "Eve", "Frank", "Grace", "Henry",
	"Ivy", "Jack", "Kate", "Leo", "Mia", "Noah", "Olivia",
}

// LLMConfigBody selects a provider, model and optional key. The key is
// never echoed back to clients.
type LLMConfigBody struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"api_key"`
}

// PlayerConfigRequest is one seat's setup at creation.
type PlayerConfigRequest struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"api_key"`
	IsHuman  bool   `json:"is_human"`
}

// GameCreateRequest is the body for POST /games.
type GameCreateRequest struct {
	NumPlayers         int                   `json:"num_players"`
	NumMafia           int                   `json:"num_mafia"`
	NumDoctor          *int                  `json:"num_doctor"`
	NumSheriff         *int                  `json:"num_sheriff"`
	MaxDiscussionTurns *int                  `json:"max_discussion_turns"`
	CustomPrompts      map[string]string     `json:"custom_prompts"`
	Spectate           bool                  `json:"spectate"`
	LLMConfig          *LLMConfigBody        `json:"llm_config"`
	Players            []PlayerConfigRequest `json:"players"`
}

// ActionPayload is the payload of a human action. Discussion uses
// Statement; vote uses TargetID and Reason; night_action uses TargetID.
type ActionPayload struct {
	Statement string `json:"statement"`
	TargetID  string `json:"target_id"`
	Reason    string `json:"reason"`
}

// HumanActionRequest is the body for POST /games/{id}/action.
type HumanActionRequest struct {
	PlayerID   string        `json:"player_id"`
	ActionType string        `json:"action_type"`
	Payload    ActionPayload `json:"payload"`
}

// GameHandler serves the game endpoints.
type GameHandler struct {
	store *session.Manager
	orch  *orchestrator.Orchestrator
	hub   *Hub
}

// NewGameHandler creates a GameHandler.
func NewGameHandler(store *session.Manager, orch *orchestrator.Orchestrator, hub *Hub) *GameHandler {
	return &GameHandler{store: store, orch: orch, hub: hub}
}

func (h *GameHandler) validateCreate(req *GameCreateRequest) error {
	if req.NumPlayers < mafia.MinPlayers || req.NumPlayers > 15 {
		return fmt.Errorf("num_players must be between %d and 15", mafia.MinPlayers)
	}
	if req.NumMafia < 1 || req.NumMafia > 4 {
		return fmt.Errorf("num_mafia must be between 1 and 4")
	}
	if req.NumMafia >= req.NumPlayers {
		return fmt.Errorf("num_mafia must be less than num_players")
	}
	numDoctor := intOr(req.NumDoctor, 1)
	numSheriff := intOr(req.NumSheriff, 1)
	if numDoctor < 0 || numDoctor > 4 || numSheriff < 0 || numSheriff > 4 {
		return fmt.Errorf("num_doctor and num_sheriff must be between 0 and 4")
	}
	townSize := req.NumPlayers - req.NumMafia
	if numDoctor+numSheriff > townSize {
		return fmt.Errorf("num_doctor (%d) + num_sheriff (%d) must be <= town size (%d)", numDoctor, numSheriff, townSize)
	}
	if req.Players != nil && len(req.Players) != req.NumPlayers {
		return fmt.Errorf("players length (%d) must equal num_players (%d)", len(req.Players), req.NumPlayers)
	}
	for _, p := range req.Players {
		if p.Name == "" || len(p.Name) > maxPlayerNameLength {
			return fmt.Errorf("player name must be 1-%d characters", maxPlayerNameLength)
		}
	}
	if req.MaxDiscussionTurns != nil {
		if *req.MaxDiscussionTurns < req.NumPlayers {
			return fmt.Errorf("max_discussion_turns (%d) must be >= num_players (%d)", *req.MaxDiscussionTurns, req.NumPlayers)
		}
		if *req.MaxDiscussionTurns > 100 {
			return fmt.Errorf("max_discussion_turns must be <= 100")
		}
	}
	return nil
}

// assignRoles builds the role list: mafia first, then doctor(s),
// sheriff(s), and villagers for the rest.
func assignRoles(numPlayers, numMafia, numDoctor, numSheriff int) []mafia.Role {
	roles := make([]mafia.Role, 0, numPlayers)
	for i := 0; i < numMafia; i++ {
		roles = append(roles, mafia.RoleMafia)
	}
	for i := 0; i < numDoctor; i++ {
		roles = append(roles, mafia.RoleDoctor)
	}
	for i := 0; i < numSheriff; i++ {
		roles = append(roles, mafia.RoleSheriff)
	}
	for len(roles) < numPlayers {
		roles = append(roles, mafia.RoleVillager)
	}
	return roles[:numPlayers]
}

// CreateGame handles POST /games.
func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req GameCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.NumPlayers == 0 {
		req.NumPlayers = 6
	}
	if req.NumMafia == 0 {
		req.NumMafia = 1
	}
	if err := h.validateCreate(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	gameID := uuid.NewString()
	roles := assignRoles(req.NumPlayers, req.NumMafia, intOr(req.NumDoctor, 1), intOr(req.NumSheriff, 1))

	var names []string
	var playerDeciders []*decider.Config
	humans := make(map[string]bool)
	var gameDefault decider.Config
	if req.LLMConfig != nil {
		gameDefault = decider.Config{Provider: req.LLMConfig.Provider, Model: req.LLMConfig.Model, APIKey: req.LLMConfig.APIKey}
	}

	if req.Players != nil {
		for i, p := range req.Players {
			names = append(names, p.Name)
			if p.Provider != "" || p.Model != "" || p.APIKey != "" {
				playerDeciders = append(playerDeciders, &decider.Config{Provider: p.Provider, Model: p.Model, APIKey: p.APIKey})
			} else {
				playerDeciders = append(playerDeciders, nil)
			}
			if p.IsHuman {
				humans[mafia.PlayerID(i)] = true
			}
		}
	} else {
		names = append(names, defaultNames[:req.NumPlayers]...)
	}

	state, err := mafia.StartGame(gameID, names, roles, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	maxTurns := req.NumPlayers
	if req.MaxDiscussionTurns != nil {
		maxTurns = *req.MaxDiscussionTurns
	}
	h.store.Put(&session.Session{
		ID:                 gameID,
		State:              state,
		CreatedAt:          time.Now().UTC(),
		Decider:            gameDefault,
		PlayerDeciders:     playerDeciders,
		Humans:             humans,
		Spectate:           req.Spectate,
		MaxDiscussionTurns: maxTurns,
		Prompts:            req.CustomPrompts,
	})
	metrics.GamesCreated.Inc()
	log.Info().Str("gameId", gameID).Int("players", req.NumPlayers).Int("mafia", req.NumMafia).Bool("spectate", req.Spectate).Msg("Game created")

	writeJSON(w, http.StatusOK, map[string]string{"game_id": gameID})
}

// ListGames handles GET /games.
func (h *GameHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	ids := make([]string, 0)
	for _, s := range h.store.List() {
		ids = append(ids, s.ID)
	}
	writeJSON(w, http.StatusOK, ids)
}

// GetGame handles GET /games/{id}.
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	sess, unlock, ok := h.lease(w, r)
	if !ok {
		return
	}
	defer unlock()
	writeJSON(w, http.StatusOK, h.responseWithWaiting(sess))
}

// StartGame handles POST /games/{id}/start. Games start at creation, so
// this is an idempotent read kept for client compatibility.
func (h *GameHandler) StartGame(w http.ResponseWriter, r *http.Request) {
	h.GetGame(w, r)
}

// DeleteGame handles DELETE /games/{id}.
func (h *GameHandler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.Delete(id); err != nil {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	h.hub.BroadcastToGame(id, WSEvent{Type: EventGameDeleted, GameID: id})
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// StepGame handles POST /games/{id}/step. When the game is already
// waiting on a human, the call degrades to a read.
func (h *GameHandler) StepGame(w http.ResponseWriter, r *http.Request) {
	sess, unlock, ok := h.lease(w, r)
	if !ok {
		return
	}
	defer unlock()

	state := sess.State
	if state.IsGameOver() {
		writeJSON(w, http.StatusOK, project(state, projection{
			HumanPlayerIDs: humanIDList(sess),
			Spectate:       sess.Spectate,
		}))
		return
	}

	if len(sess.PendingNightIDs) > 0 {
		writeJSON(w, http.StatusOK, h.responseWithWaiting(sess))
		return
	}
	if state.Phase == mafia.PhaseDayVote && len(sess.PendingVotes) > 0 && len(pendingHumanVoters(sess)) > 0 {
		writeJSON(w, http.StatusOK, h.responseWithWaiting(sess))
		return
	}

	opts := h.options(sess)
	if state.Phase == mafia.PhaseDayVote {
		opts.PendingVotes = sess.PendingVotes
	}
	next, res := h.orch.Step(r.Context(), state, opts)

	if res != nil {
		if len(res.PendingNightIDs) > 0 {
			sess.PendingNight = res.NightActions
			sess.PendingNightIDs = idSet(res.PendingNightIDs)
			writeJSON(w, http.StatusOK, h.responseWithWaiting(sess))
			return
		}
		if res.Votes != nil {
			sess.PendingVotes = res.Votes
			sess.State = next
			h.broadcast(sess)
			writeJSON(w, http.StatusOK, h.responseWithWaiting(sess))
			return
		}
		// Waiting on a human speaker; nothing to persist.
		writeJSON(w, http.StatusOK, h.responseWithWaiting(sess))
		return
	}

	sess.ClearPendingNight()
	sess.ClearPendingVotes()
	sess.State = next
	recordFinished(state, next)
	h.broadcast(sess)
	writeJSON(w, http.StatusOK, project(next, projection{
		HumanPlayerIDs: humanIDList(sess),
		Spectate:       sess.Spectate,
	}))
}

// SubmitAction handles POST /games/{id}/action.
func (h *GameHandler) SubmitAction(w http.ResponseWriter, r *http.Request) {
	sess, unlock, ok := h.lease(w, r)
	if !ok {
		return
	}
	defer unlock()

	var req HumanActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if sess.State.IsGameOver() {
		writeError(w, http.StatusBadRequest, "game is over")
		return
	}
	if !sess.IsHuman(req.PlayerID) {
		writeError(w, http.StatusForbidden, "player is not a human slot")
		return
	}

	switch req.ActionType {
	case "discussion":
		h.submitDiscussion(w, sess, req)
	case "vote":
		h.submitVote(w, r, sess, req)
	case "night_action":
		h.submitNightAction(w, sess, req)
	default:
		writeError(w, http.StatusBadRequest, "invalid action_type")
	}
}

func (h *GameHandler) submitDiscussion(w http.ResponseWriter, sess *session.Session, req HumanActionRequest) {
	state := sess.State
	if state.Phase != mafia.PhaseDayDiscussion {
		writeError(w, http.StatusBadRequest, "discussion only in day_discussion phase")
		return
	}
	speaker := state.NextSpeaker()
	if speaker == nil || speaker.ID != req.PlayerID {
		writeError(w, http.StatusBadRequest, "not your turn to speak")
		return
	}
	statement := strings.TrimSpace(req.Payload.Statement)
	if statement == "" {
		writeError(w, http.StatusBadRequest, "statement is required and non-empty")
		return
	}
	if len(statement) > maxStatementLength {
		statement = statement[:maxStatementLength]
	}
	sess.State = mafia.AddDiscussionMessage(state, speaker.ID, speaker.Name, statement)
	h.broadcast(sess)
	writeJSON(w, http.StatusOK, h.responseWithWaiting(sess))
}

func (h *GameHandler) submitVote(w http.ResponseWriter, r *http.Request, sess *session.Session, req HumanActionRequest) {
	state := sess.State
	if state.Phase != mafia.PhaseDayVote {
		writeError(w, http.StatusBadRequest, "vote only in day_vote phase")
		return
	}
	for _, b := range sess.PendingVotes {
		if b.VoterID == req.PlayerID {
			writeError(w, http.StatusBadRequest, "already voted")
			return
		}
	}
	targetID := req.Payload.TargetID
	if targetID == "" {
		writeError(w, http.StatusBadRequest, "target_id required (alive player or 'abstain')")
		return
	}
	target := mafia.Abstain()
	if targetID != abstainWire {
		if !state.AliveIDs()[targetID] || targetID == req.PlayerID {
			writeError(w, http.StatusBadRequest, "valid target_id required (alive, not self) or 'abstain'")
			return
		}
		target = mafia.TargetPlayer(targetID)
	}
	reason := strings.TrimSpace(req.Payload.Reason)
	if len(reason) > maxVoteReasonLength {
		reason = reason[:maxVoteReasonLength]
	}

	sess.PendingVotes = append(sess.PendingVotes, mafia.Ballot{VoterID: req.PlayerID, Target: target, Reason: reason})
	sess.State = mafia.AdvanceVoteOrder(state)

	if len(pendingHumanVoters(sess)) == 0 {
		next := h.orch.FinishVote(r.Context(), sess.State, sess.PendingVotes, h.options(sess))
		sess.ClearPendingVotes()
		sess.ClearPendingNight()
		sess.State = next
		recordFinished(state, next)
		h.broadcast(sess)
		writeJSON(w, http.StatusOK, project(next, projection{
			HumanPlayerIDs: humanIDList(sess),
			Spectate:       sess.Spectate,
		}))
		return
	}
	h.broadcast(sess)
	writeJSON(w, http.StatusOK, h.responseWithWaiting(sess))
}

func (h *GameHandler) submitNightAction(w http.ResponseWriter, sess *session.Session, req HumanActionRequest) {
	state := sess.State
	if state.Phase != mafia.PhaseNight {
		writeError(w, http.StatusBadRequest, "night action only in night phase")
		return
	}
	if !sess.PendingNightIDs[req.PlayerID] {
		writeError(w, http.StatusBadRequest, "not waiting for your night action or already submitted")
		return
	}
	targetID := req.Payload.TargetID
	if targetID == "" || !state.AliveIDs()[targetID] {
		writeError(w, http.StatusBadRequest, "valid target_id required (alive player)")
		return
	}
	player := state.Player(req.PlayerID)
	if player == nil {
		writeError(w, http.StatusBadRequest, "player not found")
		return
	}
	if sess.PendingNight == nil {
		sess.PendingNight = &mafia.NightActions{}
	}
	switch player.Role {
	case mafia.RoleMafia:
		sess.PendingNight.MafiaTarget = targetID
	case mafia.RoleDoctor:
		sess.PendingNight.DoctorTarget = targetID
	case mafia.RoleSheriff:
		sess.PendingNight.SheriffTarget = targetID
	default:
		writeError(w, http.StatusBadRequest, "your role has no night action")
		return
	}
	delete(sess.PendingNightIDs, req.PlayerID)

	if len(sess.PendingNightIDs) == 0 {
		next := mafia.ApplyNightActions(state, *sess.PendingNight)
		sess.ClearPendingNight()
		sess.ClearPendingVotes()
		sess.State = next
		recordFinished(state, next)
		h.broadcast(sess)
		writeJSON(w, http.StatusOK, project(next, projection{
			HumanPlayerIDs: humanIDList(sess),
			Spectate:       sess.Spectate,
		}))
		return
	}
	writeJSON(w, http.StatusOK, h.responseWithWaiting(sess))
}

// responseWithWaiting projects the session's state with waiting flags
// derived from the buffers: pending night ids first, then unvoted alive
// humans during day vote, then a human next speaker during discussion.
func (h *GameHandler) responseWithWaiting(sess *session.Session) GameStateResponse {
	state := sess.State
	p := projection{
		HumanPlayerIDs: humanIDList(sess),
		PendingVotes:   sess.PendingVotes,
		Spectate:       sess.Spectate,
	}

	if len(sess.PendingNightIDs) > 0 {
		ids := sortedIDs(sess.PendingNightIDs)
		p.WaitingForHuman = true
		p.CurrentActorID = ids[0]
		p.PendingHumanNightIDs = ids
		return project(state, p)
	}

	if state.Phase == mafia.PhaseDayVote && len(sess.Humans) > 0 {
		if pending := pendingHumanVoters(sess); len(pending) > 0 {
			p.WaitingForHuman = true
			p.PendingHumanVoteIDs = pending
			return project(state, p)
		}
	}

	if state.Phase == mafia.PhaseDayDiscussion && len(sess.Humans) > 0 {
		if speaker := state.NextSpeaker(); speaker != nil && sess.IsHuman(speaker.ID) {
			p.WaitingForHuman = true
			p.CurrentActorID = speaker.ID
			return project(state, p)
		}
	}

	return project(state, p)
}

func (h *GameHandler) options(sess *session.Session) orchestrator.Options {
	return orchestrator.Options{
		Default:            sess.Decider,
		PlayerConfigs:      sess.PlayerDeciders,
		Humans:             sess.Humans,
		MaxDiscussionTurns: sess.MaxDiscussionTurns,
		Prompts:            sess.Prompts,
	}
}

// lease resolves the game id and takes its per-game lock. The caller
// must invoke the returned unlock when ok.
func (h *GameHandler) lease(w http.ResponseWriter, r *http.Request) (*session.Session, func(), bool) {
	id := r.PathValue("id")
	unlock := h.store.Lease(id)
	sess, err := h.store.Get(id)
	if err != nil {
		unlock()
		writeError(w, http.StatusNotFound, "game not found")
		return nil, nil, false
	}
	return sess, unlock, true
}

// recordFinished counts a game the moment it first reaches a terminal state.
func recordFinished(prev, next *mafia.GameState) {
	if !prev.IsGameOver() && next.IsGameOver() {
		metrics.GamesFinished.WithLabelValues(next.Winner()).Inc()
	}
}

func (h *GameHandler) broadcast(sess *session.Session) {
	h.hub.BroadcastToGame(sess.ID, WSEvent{
		Type:   EventStateChanged,
		GameID: sess.ID,
		Data:   h.responseWithWaiting(sess),
	})
}

// pendingHumanVoters lists alive human seats that have not yet voted
// this round, in seat order.
func pendingHumanVoters(sess *session.Session) []string {
	voted := make(map[string]bool, len(sess.PendingVotes))
	for _, b := range sess.PendingVotes {
		voted[b.VoterID] = true
	}
	var pending []string
	for _, pl := range sess.State.AlivePlayers() {
		if sess.IsHuman(pl.ID) && !voted[pl.ID] {
			pending = append(pending, pl.ID)
		}
	}
	return pending
}

func humanIDList(sess *session.Session) []string {
	return sortedIDs(sess.Humans)
}

func sortedIDs(set map[string]bool) []string {
	ids := make([]string, 0, len(set))
	for id, ok := range set {
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func intOr(v *int, fallback int) int {
	if v != nil {
		return *v
	}
	return fallback
}
