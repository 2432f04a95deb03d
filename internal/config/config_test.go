package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.IsSimulated())
	assert.True(t, cfg.IsSandbox())
	assert.Equal(t, 100000.0, cfg.Trading.InitialCash)
	assert.Equal(t, 60, cfg.Window.LookbackDays)
	assert.Equal(t, 0.05, cfg.Window.HalfWidth)
	assert.Equal(t, 20, cfg.Risk.MaxPositions)
	assert.Equal(t, 10*time.Minute, cfg.Schedule.PollInterval)
}

func TestScoringWeightsSumToOne(t *testing.T) {
	cfg := Default()
	sum := cfg.Scoring.WeightPE + cfg.Scoring.WeightEPSGrowth + cfg.Scoring.WeightRevenueGrowth +
		cfg.Scoring.WeightProfitMargin + cfg.Scoring.WeightDebtEquity + cfg.Scoring.WeightFairValueGap
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestValidateRejectsBadMode(t *testing.T) {
	cfg := Default()
	cfg.Trading.Mode = "YOLO"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnbalancedWeights(t *testing.T) {
	cfg := Default()
	cfg.Scoring.WeightPE = 0.50
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadAllocationBounds(t *testing.T) {
	cfg := Default()
	cfg.Rotation.MinAllocation = 0.60
	cfg.Rotation.MaxAllocation = 0.55
	assert.Error(t, cfg.Validate())
}

func TestLoadCreatesTemplatesOnFirstRun(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "config.toml"))
	assert.FileExists(t, filepath.Join(dir, "credentials.toml"))
	assert.True(t, cfg.IsSimulated(), "template run starts simulated")
	assert.Equal(t, filepath.Join(dir, "data"), cfg.Trading.DataDir)
}

func TestLoadDoesNotOverwriteExistingConfig(t *testing.T) {
	dir := t.TempDir()
	custom := []byte("[trading]\nmode = \"LIVE\"\nenvironment = \"production\"\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), custom, 0600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "LIVE", cfg.Trading.Mode)

	data, err := os.ReadFile(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, custom, data)
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ETRADE_CONSUMER_KEY", "key-from-env")
	t.Setenv("ETRADE_CONSUMER_SECRET", "secret-from-env")
	t.Setenv("TRADING_MODE", "SIMULATED")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "key-from-env", cfg.Credentials.ETrade.ConsumerKey)
	assert.Equal(t, "secret-from-env", cfg.Credentials.ETrade.ConsumerSecret)
}
