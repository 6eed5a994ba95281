// Package config loads the engine configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every runtime setting of the interview engine.
type Config struct {
	HTTPPort string

	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	// DataDir is the Badger database directory. Empty means in-memory.
	DataDir string

	// SessionTTL is how long an idle session stays cached before it is
	// dropped and reloaded from the store on the next request.
	SessionTTL time.Duration

	// ValuesMax caps the value nodes per stimulus chat. 0 or negative
	// disables the cap.
	ValuesMax int

	// MaxRetries caps the probes per node without progress. -1 disables
	// the cap.
	MaxRetries int

	// MinNodes is the minimum graph size before the closing question is
	// allowed to end the interview. 0 disables the check.
	MinNodes int

	Topic   string
	Stimuli []string
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:   getEnv("HTTP_PORT", "8080"),
		LLMBaseURL: getEnv("LLM_BASE_URL", ""),
		LLMAPIKey:  getEnv("LLM_API_KEY", ""),
		LLMModel:   getEnv("LLM_MODEL", "gpt-4o-mini"),
		DataDir:    getEnv("DATA_DIR", "./data"),
		Topic:      getEnv("TOPIC", ""),
	}

	var err error
	if cfg.SessionTTL, err = getEnvDuration("SESSION_CACHE_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ValuesMax, err = getEnvInt("VALUES_MAX", 0); err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = getEnvInt("MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.MinNodes, err = getEnvInt("MIN_NODES", 0); err != nil {
		return nil, err
	}

	for _, s := range strings.Split(getEnv("STIMULI", ""), ",") {
		if s = strings.TrimSpace(s); s != "" {
			cfg.Stimuli = append(cfg.Stimuli, s)
		}
	}

	if cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("config: LLM_API_KEY is required")
	}
	if len(cfg.Stimuli) == 0 {
		return nil, fmt.Errorf("config: STIMULI is required (comma-separated list)")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
