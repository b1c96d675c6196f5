package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/efreeman/ai-mafia/internal/config"
	"github.com/efreeman/ai-mafia/internal/decider/llm"
	"github.com/efreeman/ai-mafia/internal/handler"
	"github.com/efreeman/ai-mafia/internal/logger"
	"github.com/efreeman/ai-mafia/internal/middleware"
	"github.com/efreeman/ai-mafia/internal/orchestrator"
	"github.com/efreeman/ai-mafia/internal/session"
)

func main() {
	// Provider keys and defaults may live in a local .env.
	_ = godotenv.Load()

	logger.Init()
	cfg := config.Load()
	log.Info().Str("defaultProvider", cfg.DefaultProvider).Msg("Config loaded")

	store := session.NewManager()
	orch := orchestrator.New(llm.Factory{})

	wsHub := handler.NewHub()
	gameHandler := handler.NewGameHandler(store, orch, wsHub)
	settingsHandler := handler.NewSettingsHandler()
	wsHandler := handler.NewWSHandler(wsHub)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /games", gameHandler.CreateGame)
	mux.HandleFunc("GET /games", gameHandler.ListGames)
	mux.HandleFunc("GET /games/{id}", gameHandler.GetGame)
	mux.HandleFunc("POST /games/{id}/start", gameHandler.StartGame)
	mux.HandleFunc("POST /games/{id}/step", gameHandler.StepGame)
	mux.HandleFunc("POST /games/{id}/action", gameHandler.SubmitAction)
	mux.HandleFunc("DELETE /games/{id}", gameHandler.DeleteGame)

	mux.HandleFunc("GET /settings/prompts", settingsHandler.GetPrompts)
	mux.HandleFunc("GET /settings/env-keys", settingsHandler.GetEnvKeys)

	// WebSocket spectator feed
	mux.HandleFunc("GET /ws", wsHandler.ServeWS)

	root := middleware.Chain(mux, middleware.Logger, middleware.CORS(cfg.AllowedOrigins), middleware.JSON)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // a step may wait on slow model calls
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}
