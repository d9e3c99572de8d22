package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddress)
	assert.Equal(t, "https://api.weatherapi.com", cfg.WeatherAPIURL)
	assert.Equal(t, time.Hour, cfg.WeatherCacheDuration)
	assert.Equal(t, "Dhaka", cfg.DefaultDistrict)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATA_DIR", "/var/lib/shekor")
	t.Setenv("WEATHER_CACHE_DURATION", "15m")
	t.Setenv("SESSION_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.WeatherCacheDuration)
	assert.Equal(t, "/var/lib/shekor/batches.json", cfg.BatchesFilePath())
	assert.Equal(t, "/var/lib/shekor/weather-cache.json", cfg.WeatherCacheFilePath())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("WEATHER_CACHE_DURATION", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{WeatherCacheDuration: time.Hour}
	assert.ErrorIs(t, cfg.Validate(), ErrMissingSessionSecret)

	cfg.SessionSecret = "x"
	cfg.WeatherCacheDuration = 0
	assert.Error(t, cfg.Validate())
}

func TestLoad_EmptyServiceKeysStayEmpty(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ELEVENLABS_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.GeminiAPIKey)
	assert.Empty(t, cfg.ElevenLabsAPIKey)
}
