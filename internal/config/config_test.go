package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultConfig(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 19, cfg.Engine.DefaultSize)
	assert.InDelta(t, 6.5, cfg.Engine.DefaultKomi, 1e-9)
	assert.Equal(t, 100, cfg.Engine.MaxSessions)
	assert.Equal(t, "mcts", cfg.AI.Strategy)
	assert.Equal(t, 1000, cfg.AI.Iterations)
	assert.Equal(t, DefaultMaxIterations, cfg.AI.MaxIterations)
	assert.Equal(t, 10*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 2, cfg.AI.StaleRetries)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 30, cfg.RateLimit.PerToolLimits["aimove"])
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `{
		"engine": {"defaultSize": 9, "maxSessions": 5},
		"ai": {"strategy": "heuristic", "iterations": 250, "timeout": "2s"},
		"logging": {"level": "debug", "format": "text"},
		"rateLimit": {"enabled": false, "requestsPerMin": 500},
		"cache": {"ttl": "30m"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Engine.DefaultSize)
	assert.Equal(t, 5, cfg.Engine.MaxSessions)
	assert.InDelta(t, 6.5, cfg.Engine.DefaultKomi, 1e-9, "unset keys keep defaults")
	assert.Equal(t, "heuristic", cfg.AI.Strategy)
	assert.Equal(t, 250, cfg.AI.Iterations)
	assert.Equal(t, 2*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerMin)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `{"ai": {"iterations": 250}, "logging": {"level": "warn"}}`)

	t.Setenv("GOBAN_AI_ITERATIONS", "42")
	t.Setenv("GOBAN_LOGGING_LEVEL", "error")
	t.Setenv("GOBAN_RATELIMIT_ENABLED", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 42, cfg.AI.Iterations)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"engine": `},
		{"unsupported board size", `{"engine": {"defaultSize": 15}}`},
		{"unknown strategy", `{"ai": {"strategy": "alphago"}}`},
		{"unknown log format", `{"logging": {"format": "xml"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestValidationClamps(t *testing.T) {
	path := writeConfig(t, `{
		"engine": {"maxSessions": 0},
		"ai": {"iterations": -5, "staleRetries": -1, "exploration": -1},
		"rateLimit": {"enabled": true, "requestsPerMin": 0, "burstSize": 0},
		"server": {"shutdownTimeout": "1ms"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Engine.MaxSessions)
	assert.Equal(t, 1, cfg.AI.Iterations)
	assert.Equal(t, 0, cfg.AI.StaleRetries)
	assert.Zero(t, cfg.AI.Exploration)
	assert.Equal(t, 1, cfg.RateLimit.RequestsPerMin)
	assert.Equal(t, 1, cfg.RateLimit.BurstSize)
	assert.Equal(t, time.Second, cfg.Server.ShutdownTimeout)
}

func TestIterationsCap(t *testing.T) {
	tests := []struct {
		name     string
		ai       string
		wantIter int
		wantMax  int
	}{
		{"default above cap", `{"iterations": 500, "maxIterations": 100}`, 100, 100},
		{"within cap", `{"iterations": 50, "maxIterations": 100}`, 50, 100},
		{"missing cap", `{"iterations": 50, "maxIterations": 0}`, 50, DefaultMaxIterations},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, `{"ai": `+tt.ai+`}`))
			require.NoError(t, err)
			assert.Equal(t, tt.wantIter, cfg.AI.Iterations)
			assert.Equal(t, tt.wantMax, cfg.AI.MaxIterations)
		})
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Run("environment variable", func(t *testing.T) {
		t.Setenv("GOBAN_MCP_CONFIG", "/custom/config.json")
		assert.Equal(t, "/custom/config.json", GetConfigPath())
	})

	t.Run("current directory", func(t *testing.T) {
		t.Setenv("GOBAN_MCP_CONFIG", "")
		t.Setenv("HOME", t.TempDir())

		wd, err := os.Getwd()
		require.NoError(t, err)
		dir := t.TempDir()
		require.NoError(t, os.Chdir(dir))
		t.Cleanup(func() { _ = os.Chdir(wd) })

		assert.Equal(t, "", GetConfigPath())

		require.NoError(t, os.WriteFile("config.json", []byte("{}"), 0o644))
		assert.Equal(t, "config.json", GetConfigPath())
	})
}
