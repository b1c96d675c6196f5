// Command simulate runs batches of all-AI games from the command line and
// prints win rates. With no provider it uses a built-in random decider, so
// batches run offline and reproducibly from a seed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"regexp"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/efreeman/ai-mafia/internal/decider"
	"github.com/efreeman/ai-mafia/internal/decider/llm"
	"github.com/efreeman/ai-mafia/internal/orchestrator"
	"github.com/efreeman/ai-mafia/pkg/mafia"
)

var playerNames = []string{
	"Alice", "Bob", "Carol", "Dave", "Eve", "Frank", "Grace", "Henry",
	"Ivy", "Jack", "Kate", "Leo", "Mia", "Noah", "Olivia",
}

type gameResult struct {
	Winner string `json:"winner"`
	Rounds int    `json:"rounds"`
	Steps  int    `json:"steps"`
}

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var (
		numGames   int
		workers    int
		numPlayers int
		numMafia   int
		numDoctor  int
		numSheriff int
		maxRounds  int
		seed       int64
		provider   string
		model      string
		jsonOut    bool
	)

	flag.IntVar(&numGames, "n", 1, "Number of games to run")
	flag.IntVar(&workers, "workers", 1, "Concurrency (parallel games)")
	flag.IntVar(&numPlayers, "players", 6, "Players per game")
	flag.IntVar(&numMafia, "mafia", 1, "Mafia per game")
	flag.IntVar(&numDoctor, "doctor", 1, "Doctors per game")
	flag.IntVar(&numSheriff, "sheriff", 1, "Sheriffs per game")
	flag.IntVar(&maxRounds, "max-rounds", 30, "Max rounds before the game is called a draw")
	flag.Int64Var(&seed, "seed", 0, "Base seed (0 = random)")
	flag.StringVar(&provider, "provider", "", "LLM provider (empty = built-in random decider)")
	flag.StringVar(&model, "model", "", "Model override for the provider")
	flag.BoolVar(&jsonOut, "json", false, "Output results as JSON")
	flag.Parse()

	if numPlayers < mafia.MinPlayers || numPlayers > len(playerNames) {
		log.Fatal().Msgf("players must be between %d and %d", mafia.MinPlayers, len(playerNames))
	}
	if numMafia < 1 || numMafia >= numPlayers || numMafia+numDoctor+numSheriff > numPlayers {
		log.Fatal().Msg("invalid role counts")
	}
	if seed == 0 {
		seed = rand.Int63()
	}

	var factory decider.Factory = llm.Factory{}
	if provider == "" {
		factory = randomFactory{seed: seed}
	}
	orch := orchestrator.New(factory)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("Shutting down...")
		cancel()
	}()

	results := make([]*gameResult, numGames)
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	errCount := 0

	for i := 0; i < numGames; i++ {
		wg.Add(1)
		sem <- struct{}{}

		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			cfg := runConfig{
				NumPlayers: numPlayers,
				NumMafia:   numMafia,
				NumDoctor:  numDoctor,
				NumSheriff: numSheriff,
				MaxRounds:  maxRounds,
				Seed:       seed + int64(idx),
				Provider:   provider,
				Model:      model,
			}
			result, err := runGame(ctx, orch, cfg, idx)
			if err != nil {
				log.Error().Err(err).Int("game", idx+1).Msg("Game failed")
				mu.Lock()
				errCount++
				mu.Unlock()
				return
			}

			mu.Lock()
			results[idx] = result
			mu.Unlock()
			log.Info().Int("game", idx+1).Str("winner", result.Winner).Int("rounds", result.Rounds).Msg("Game completed")
		}(i)
	}

	wg.Wait()

	if jsonOut {
		printJSON(results, numGames, errCount)
	} else {
		printSummary(results, errCount)
	}
}

type runConfig struct {
	NumPlayers int
	NumMafia   int
	NumDoctor  int
	NumSheriff int
	MaxRounds  int
	Seed       int64
	Provider   string
	Model      string
}

// runGame steps one all-AI game to completion. Buffered votes from the
// discussion-to-vote transition are fed back into the next step, mirroring
// what the HTTP boundary does with its session buffer.
func runGame(ctx context.Context, orch *orchestrator.Orchestrator, cfg runConfig, idx int) (*gameResult, error) {
	roles := make([]mafia.Role, 0, cfg.NumPlayers)
	for i := 0; i < cfg.NumMafia; i++ {
		roles = append(roles, mafia.RoleMafia)
	}
	for i := 0; i < cfg.NumDoctor; i++ {
		roles = append(roles, mafia.RoleDoctor)
	}
	for i := 0; i < cfg.NumSheriff; i++ {
		roles = append(roles, mafia.RoleSheriff)
	}
	for len(roles) < cfg.NumPlayers {
		roles = append(roles, mafia.RoleVillager)
	}

	gs, err := mafia.StartGame(fmt.Sprintf("sim-%d", idx+1), playerNames[:cfg.NumPlayers], roles, cfg.Seed)
	if err != nil {
		return nil, err
	}

	opts := orchestrator.Options{
		Default:            decider.Config{Provider: cfg.Provider, Model: cfg.Model},
		MaxDiscussionTurns: cfg.NumPlayers,
	}

	steps := 0
	for !gs.IsGameOver() && gs.Round < cfg.MaxRounds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, res := orch.Step(ctx, gs, opts)
		steps++
		if res != nil && res.WaitingForHuman {
			return nil, fmt.Errorf("game %d suspended with no human players", idx+1)
		}
		if res != nil {
			opts.PendingVotes = res.Votes
		} else {
			opts.PendingVotes = nil
		}
		gs = next
	}

	winner := ""
	if gs.IsGameOver() {
		winner = gs.Winner()
	}
	return &gameResult{Winner: winner, Rounds: gs.Round, Steps: steps}, nil
}

func printSummary(results []*gameResult, errCount int) {
	completed, townWins, mafiaWins, draws, totalRounds := 0, 0, 0, 0, 0
	for _, r := range results {
		if r == nil {
			continue
		}
		completed++
		totalRounds += r.Rounds
		switch r.Winner {
		case string(mafia.AlignmentTown):
			townWins++
		case string(mafia.AlignmentMafia):
			mafiaWins++
		default:
			draws++
		}
	}

	fmt.Printf("\nResults (%d games):\n", completed)
	if errCount > 0 {
		fmt.Printf("  (%d games failed)\n", errCount)
	}
	if completed == 0 {
		return
	}
	fmt.Printf("  town:  %d wins\n", townWins)
	fmt.Printf("  mafia: %d wins\n", mafiaWins)
	if draws > 0 {
		fmt.Printf("  draws: %d (round cap reached)\n", draws)
	}
	fmt.Printf("  avg rounds: %.1f\n", float64(totalRounds)/float64(completed))
}

func printJSON(results []*gameResult, total, errCount int) {
	out := struct {
		Total   int           `json:"total"`
		Errors  int           `json:"errors"`
		Results []*gameResult `json:"results"`
	}{Total: total, Errors: errCount, Results: results}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}

// --- Random decider ---

var playerIDPattern = regexp.MustCompile(`player_\d+`)

// randomDecider picks uniformly among the legal targets named in the
// prompt. Good enough to exercise the full engine without a model.
type randomDecider struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (d *randomDecider) pickTarget(prompt string) string {
	ids := playerIDPattern.FindAllString(prompt, -1)
	seen := make(map[string]bool)
	var unique []string
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	if len(unique) == 0 {
		return ""
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return unique[d.rng.Intn(len(unique))]
}

func (d *randomDecider) NightAction(_ context.Context, prompt string) (decider.NightAction, error) {
	target := d.pickTarget(prompt)
	if target == "" {
		return decider.NightAction{}, fmt.Errorf("no targets in prompt")
	}
	return decider.NightAction{TargetID: target}, nil
}

func (d *randomDecider) Vote(_ context.Context, prompt string) (decider.Vote, error) {
	target := d.pickTarget(prompt)
	if target == "" {
		return decider.Vote{Target: mafia.Abstain(), Reason: "No read on anyone."}, nil
	}
	return decider.Vote{Target: mafia.TargetPlayer(target), Reason: "Gut feeling."}, nil
}

func (d *randomDecider) Discussion(_ context.Context, _ string) (decider.Discussion, error) {
	statements := []string{
		"I have nothing concrete yet.",
		"Someone is being too quiet.",
		"Let's compare notes on last night.",
		"I trust my neighbors for now.",
	}
	d.mu.Lock()
	s := statements[d.rng.Intn(len(statements))]
	d.mu.Unlock()
	return decider.Discussion{Statement: s}, nil
}

func (d *randomDecider) Summarize(_ context.Context, _ string) (decider.Summary, error) {
	return decider.Summary{Summary: "The town debated and the night passed."}, nil
}

type randomFactory struct {
	seed int64
}

func (f randomFactory) New(decider.Config) (decider.Decider, error) {
	return &randomDecider{rng: rand.New(rand.NewSource(f.seed))}, nil
}
