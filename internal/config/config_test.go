package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "./data/pick27.db", cfg.DBPath)
	assert.Equal(t, 60*time.Second, cfg.Draw.Open)
	assert.Equal(t, 5*time.Second, cfg.Draw.Complete)
	assert.Equal(t, 10, cfg.Wallet.EntryCost)
	assert.Equal(t, 1000, cfg.Wallet.StartingBalance)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	assert.InDelta(t, 0.7, cfg.OpenAI.Temperature, 1e-9)
	assert.Equal(t, 500, cfg.OpenAI.MaxTokens)
	assert.False(t, cfg.Reasoner.ServeHTTP)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DRAW_OPEN_DURATION", "2m")
	t.Setenv("ENTRY_COST", "25")
	t.Setenv("RNG_SEED", "99")
	t.Setenv("SERVE_REASONER", "yes")
	t.Setenv("OPENAI_TEMPERATURE", "0.2")
	t.Setenv("FRONTEND_URL", "https://pick27.example.com")
	t.Setenv("STARTING_BALANCE", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.Draw.Open)
	assert.Equal(t, 25, cfg.Wallet.EntryCost)
	assert.Equal(t, uint64(99), cfg.RNGSeed)
	assert.True(t, cfg.Reasoner.ServeHTTP)
	assert.InDelta(t, 0.2, cfg.OpenAI.Temperature, 1e-9)
	assert.Equal(t, 1000, cfg.Wallet.StartingBalance)
	assert.False(t, cfg.IsDevelopment())
}

func TestValidate(t *testing.T) {
	t.Setenv("DRAW_REVEAL_DURATION", "500ms")
	_, err := Load()
	assert.ErrorContains(t, err, "DRAW_REVEAL_DURATION")

	t.Setenv("DRAW_REVEAL_DURATION", "10s")
	t.Setenv("PORT", "")
	_, err = Load()
	assert.ErrorContains(t, err, "PORT")
}
