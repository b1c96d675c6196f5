package handler

import (
	"net/http"
	"os"

	"github.com/efreeman/ai-mafia/internal/decider/llm"
	"github.com/efreeman/ai-mafia/internal/prompts"
)

// SettingsHandler serves read-only server configuration.
type SettingsHandler struct{}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler() *SettingsHandler {
	return &SettingsHandler{}
}

// GetPrompts handles GET /settings/prompts. Returns the default prompt
// texts so clients can prefill an overlay editor.
func (h *SettingsHandler) GetPrompts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, prompts.Defaults())
}

// GetEnvKeys handles GET /settings/env-keys. Reports which provider API
// keys are present in the server environment as booleans; key values are
// never exposed. Ollama runs keyless, so it is always available.
func (h *SettingsHandler) GetEnvKeys(w http.ResponseWriter, r *http.Request) {
	out := map[string]bool{"ollama": true}
	for name, envVar := range llm.KeyEnvVars() {
		out[name] = os.Getenv(envVar) != ""
	}
	writeJSON(w, http.StatusOK, out)
}
