package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "http://localhost:5000", cfg.Backend.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Flow.PollInterval)
	assert.Equal(t, 1280, cfg.Flow.CameraWidth)
	assert.Equal(t, 720, cfg.Flow.CameraHeight)
	assert.Equal(t, "user", cfg.Flow.CameraFacing)
	assert.False(t, cfg.Resume.Enabled)
	assert.Equal(t, "5000", cfg.Sim.Port)

	require.NoError(t, cfg.ValidateCore())
	require.NoError(t, cfg.ValidateSim())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KYC_BACKEND_URL", "https://kyc.example.com")
	t.Setenv("KYC_POLL_INTERVAL", "10s")
	t.Setenv("KYC_RESUME_ENABLED", "true")
	t.Setenv("REDIS_URL", "redis://cache.internal:6380")
	t.Setenv("SIM_PORT", "8085")

	cfg := Load()
	assert.Equal(t, "https://kyc.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Flow.PollInterval)
	assert.True(t, cfg.Resume.Enabled)
	assert.Equal(t, "cache.internal:6380", cfg.Resume.RedisURL, "redis scheme is stripped")
	assert.Equal(t, "8085", cfg.Sim.Port)
}

func TestValidateCoreFailures(t *testing.T) {
	t.Setenv("KYC_BACKEND_URL", " ")
	cfg := Load()
	cfg.Backend.BaseURL = ""
	assert.Error(t, cfg.ValidateCore())

	cfg = Load()
	cfg.Backend.BaseURL = "http://localhost:5000"
	cfg.Flow.PollInterval = 0
	assert.Error(t, cfg.ValidateCore())

	cfg = Load()
	cfg.Backend.BaseURL = "http://localhost:5000"
	cfg.Flow.PollInterval = time.Second
	cfg.Resume.Enabled = true
	cfg.Resume.RedisURL = ""
	assert.Error(t, cfg.ValidateCore())
}
