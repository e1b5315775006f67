package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"AGENT_MAX_HISTORY", "AGENT_PLAN_SUFFIX", "AGENT_SEARCH_PLAN_SUFFIX",
	"AGENT_VERIFIER_USER_PROMPT", "AGENT_REPLAN_LIMIT", "AGENT_REJECT_CONCURRENT",
	"AGENT_PERSIST_TRUNCATED", "AGENT_CALL_TIMEOUT", "AGENT_MAX_MODEL_CALLS",
	"LLM_PROMPT_MAX_TOKEN", "LLM_TEMPERATURE", "LLM_ENDPOINT", "LLM_MODEL",
	"SEARCH_SERP_API_KEY", "SEARCH_RESULT_LIMIT",
	"RETRY_MAX_ATTEMPTS", "RETRY_BASE_DELAY",
	"DB_PATH", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv pins every config key to empty so the host environment and any
// .env file cannot leak into the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.MaxHistory)
	assert.Equal(t, "[PLAN]", cfg.PlanSuffix)
	assert.Equal(t, "[SEARCH_PLAN]", cfg.SearchPlanSuffix)
	assert.Empty(t, cfg.VerifierPrompt)
	assert.Equal(t, 1, cfg.ReplanLimit)
	assert.False(t, cfg.RejectConcurrent)
	assert.False(t, cfg.PersistTruncated)
	assert.Equal(t, 30*time.Second, cfg.CallTimeout)
	assert.Equal(t, 8, cfg.MaxModelCalls)
	assert.Equal(t, 3072, cfg.PromptMaxTokens)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-9)
	assert.Empty(t, cfg.Endpoint)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Empty(t, cfg.SerpAPIKey)
	assert.Equal(t, 5, cfg.SearchResultLimit)
	assert.Equal(t, 2, cfg.RetryMaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, "answermesh.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("AGENT_MAX_HISTORY", "50")
	t.Setenv("AGENT_PLAN_SUFFIX", "<<plan>>")
	t.Setenv("AGENT_SEARCH_PLAN_SUFFIX", "<<search>>")
	t.Setenv("AGENT_VERIFIER_USER_PROMPT", "Check {question} against {search_result}.")
	t.Setenv("AGENT_REPLAN_LIMIT", "3")
	t.Setenv("AGENT_REJECT_CONCURRENT", "true")
	t.Setenv("AGENT_PERSIST_TRUNCATED", "1")
	t.Setenv("AGENT_CALL_TIMEOUT", "45s")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("LLM_MODEL", "gpt-4o")
	t.Setenv("SEARCH_SERP_API_KEY", "secret")
	t.Setenv("RETRY_MAX_ATTEMPTS", "4")
	t.Setenv("RETRY_BASE_DELAY", "250ms")
	t.Setenv("DB_PATH", "/tmp/test.db")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.MaxHistory)
	assert.Equal(t, "<<plan>>", cfg.PlanSuffix)
	assert.Equal(t, "<<search>>", cfg.SearchPlanSuffix)
	assert.Equal(t, "Check {question} against {search_result}.", cfg.VerifierPrompt)
	assert.Equal(t, 3, cfg.ReplanLimit)
	assert.True(t, cfg.RejectConcurrent)
	assert.True(t, cfg.PersistTruncated)
	assert.Equal(t, 45*time.Second, cfg.CallTimeout)
	assert.InDelta(t, 0.2, cfg.Temperature, 1e-9)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, "secret", cfg.SerpAPIKey)
	assert.Equal(t, 4, cfg.RetryMaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	cases := []struct {
		key   string
		value string
	}{
		{"AGENT_MAX_HISTORY", "twenty"},
		{"LLM_PROMPT_MAX_TOKEN", "3k"},
		{"LLM_TEMPERATURE", "warm"},
		{"AGENT_CALL_TIMEOUT", "30"},
		{"AGENT_REJECT_CONCURRENT", "yes please"},
		{"RETRY_BASE_DELAY", "half a second"},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.key)
		})
	}
}

func TestLoadRejectsOutOfRangeValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"zero history", "AGENT_MAX_HISTORY", "0"},
		{"negative replan limit", "AGENT_REPLAN_LIMIT", "-1"},
		{"zero retry attempts", "RETRY_MAX_ATTEMPTS", "0"},
		{"temperature too high", "LLM_TEMPERATURE", "3.5"},
		{"zero search limit", "SEARCH_RESULT_LIMIT", "0"},
		{"unknown log format", "LOG_FORMAT", "xml"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsIdenticalSuffixes(t *testing.T) {
	clearEnv(t)
	t.Setenv("AGENT_PLAN_SUFFIX", "[X]")
	t.Setenv("AGENT_SEARCH_PLAN_SUFFIX", "[X]")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestFindProjectRoot(t *testing.T) {
	root, err := FindProjectRoot()
	require.NoError(t, err)
	assert.NotEmpty(t, root)
}
