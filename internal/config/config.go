package config

import "os"

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port            string
	AllowedOrigins  string
	DefaultProvider string
}

// Load reads configuration from environment variables with sensible defaults.
// Provider API keys and model defaults are read by the decider layer, not here.
func Load() *Config {
	return &Config{
		Port:            envOrDefault("PORT", "8000"),
		AllowedOrigins:  envOrDefault("ALLOWED_ORIGINS", "*"),
		DefaultProvider: envOrDefault("DEFAULT_PROVIDER", "openai"),
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
