// Package config loads runtime configuration from the environment, with an
// optional .env file found by walking up to the project root.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the process reads at startup. Values come from
// environment variables with the defaults below; Load validates the result.
type Config struct {
	// Turn behavior.
	MaxHistory       int           // AGENT_MAX_HISTORY
	PlanSuffix       string        // AGENT_PLAN_SUFFIX
	SearchPlanSuffix string        // AGENT_SEARCH_PLAN_SUFFIX
	VerifierPrompt   string        // AGENT_VERIFIER_USER_PROMPT, empty means built-in
	ReplanLimit      int           // AGENT_REPLAN_LIMIT
	RejectConcurrent bool          // AGENT_REJECT_CONCURRENT, false queues instead
	PersistTruncated bool          // AGENT_PERSIST_TRUNCATED
	CallTimeout      time.Duration // AGENT_CALL_TIMEOUT
	MaxModelCalls    int           // AGENT_MAX_MODEL_CALLS, 0 uncaps

	// Completion client.
	PromptMaxTokens int     // LLM_PROMPT_MAX_TOKEN
	Temperature     float64 // LLM_TEMPERATURE
	Endpoint        string  // LLM_ENDPOINT, empty keeps the SDK default
	Model           string  // LLM_MODEL

	// Search client.
	SerpAPIKey        string // SEARCH_SERP_API_KEY
	SearchResultLimit int    // SEARCH_RESULT_LIMIT

	// Provider retries.
	RetryMaxAttempts int           // RETRY_MAX_ATTEMPTS, total including the first
	RetryBaseDelay   time.Duration // RETRY_BASE_DELAY, doubles per retry

	// Infrastructure.
	DBPath    string // DB_PATH
	LogLevel  string // LOG_LEVEL
	LogFormat string // LOG_FORMAT, "json" or "text"
}

// FindProjectRoot walks up from the working directory until it finds a
// go.mod.
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

// LoadEnv loads the .env file at the project root into the process
// environment. Existing variables win over file values.
func LoadEnv() error {
	root, err := FindProjectRoot()
	if err != nil {
		return err
	}
	return godotenv.Load(filepath.Join(root, ".env"))
}

// Load reads the environment into a validated Config. A .env file at the
// project root is merged in first when one exists; a missing file is not an
// error. Malformed or out-of-range values fail the load so misconfiguration
// is caught at startup, not mid-turn.
func Load() (*Config, error) {
	if err := LoadEnv(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		PlanSuffix:       getEnv("AGENT_PLAN_SUFFIX", "[PLAN]"),
		SearchPlanSuffix: getEnv("AGENT_SEARCH_PLAN_SUFFIX", "[SEARCH_PLAN]"),
		VerifierPrompt:   getEnv("AGENT_VERIFIER_USER_PROMPT", ""),
		Endpoint:         getEnv("LLM_ENDPOINT", ""),
		Model:            getEnv("LLM_MODEL", "gpt-4o-mini"),
		SerpAPIKey:       getEnv("SEARCH_SERP_API_KEY", ""),
		DBPath:           getEnv("DB_PATH", "answermesh.db"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.MaxHistory, err = getIntEnv("AGENT_MAX_HISTORY", 20); err != nil {
		return nil, err
	}
	if cfg.ReplanLimit, err = getIntEnv("AGENT_REPLAN_LIMIT", 1); err != nil {
		return nil, err
	}
	if cfg.MaxModelCalls, err = getIntEnv("AGENT_MAX_MODEL_CALLS", 8); err != nil {
		return nil, err
	}
	if cfg.PromptMaxTokens, err = getIntEnv("LLM_PROMPT_MAX_TOKEN", 3072); err != nil {
		return nil, err
	}
	if cfg.SearchResultLimit, err = getIntEnv("SEARCH_RESULT_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.RetryMaxAttempts, err = getIntEnv("RETRY_MAX_ATTEMPTS", 2); err != nil {
		return nil, err
	}
	if cfg.Temperature, err = getFloatEnv("LLM_TEMPERATURE", 0.7); err != nil {
		return nil, err
	}
	if cfg.CallTimeout, err = getDurationEnv("AGENT_CALL_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryBaseDelay, err = getDurationEnv("RETRY_BASE_DELAY", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.RejectConcurrent, err = getBoolEnv("AGENT_REJECT_CONCURRENT", false); err != nil {
		return nil, err
	}
	if cfg.PersistTruncated, err = getBoolEnv("AGENT_PERSIST_TRUNCATED", false); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MaxHistory <= 0 {
		return fmt.Errorf("AGENT_MAX_HISTORY must be positive, got %d", c.MaxHistory)
	}
	if c.PromptMaxTokens <= 0 {
		return fmt.Errorf("LLM_PROMPT_MAX_TOKEN must be positive, got %d", c.PromptMaxTokens)
	}
	if c.ReplanLimit < 0 {
		return fmt.Errorf("AGENT_REPLAN_LIMIT must not be negative, got %d", c.ReplanLimit)
	}
	if c.MaxModelCalls < 0 {
		return fmt.Errorf("AGENT_MAX_MODEL_CALLS must not be negative, got %d", c.MaxModelCalls)
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("AGENT_CALL_TIMEOUT must not be negative, got %s", c.CallTimeout)
	}
	if c.SearchResultLimit <= 0 {
		return fmt.Errorf("SEARCH_RESULT_LIMIT must be positive, got %d", c.SearchResultLimit)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.RetryMaxAttempts)
	}
	if c.RetryBaseDelay < 0 {
		return fmt.Errorf("RETRY_BASE_DELAY must not be negative, got %s", c.RetryBaseDelay)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be between 0 and 2, got %g", c.Temperature)
	}
	if c.PlanSuffix == "" || c.SearchPlanSuffix == "" {
		return fmt.Errorf("plan suffixes must not be empty")
	}
	if c.PlanSuffix == c.SearchPlanSuffix {
		return fmt.Errorf("AGENT_PLAN_SUFFIX and AGENT_SEARCH_PLAN_SUFFIX must differ, both are %q", c.PlanSuffix)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, v)
	}
	return n, nil
}

func getFloatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", key, v)
	}
	return f, nil
}

func getBoolEnv(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %q is not a boolean", key, v)
	}
	return b, nil
}

func getDurationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a duration", key, v)
	}
	return d, nil
}
