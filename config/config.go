package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment.
type Config struct {
	ListenAddress string `env:"LISTEN_ADDRESS" envDefault:":8080"`
	DataDir       string `env:"DATA_DIR" envDefault:"."`

	WeatherAPIKey        string        `env:"WEATHER_API_KEY"`
	WeatherAPIURL        string        `env:"WEATHER_API_URL" envDefault:"https://api.weatherapi.com"`
	WeatherCacheDuration time.Duration `env:"WEATHER_CACHE_DURATION" envDefault:"1h"`
	DefaultDistrict      string        `env:"DEFAULT_DISTRICT" envDefault:"Dhaka"`

	GeminiAPIKey     string `env:"GEMINI_API_KEY"`
	ElevenLabsAPIKey string `env:"ELEVENLABS_API_KEY"`

	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	ApplicationInsightsInstrumentationKey string `env:"APPLICATIONINSIGHTS_INSTRUMENTATION_KEY"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

var ErrMissingSessionSecret = errors.New("SESSION_SECRET must be set")

// LoadDotEnv loads .env from the working directory if the file exists.
func LoadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	if err := godotenv.Load(); err != nil {
		return fmt.Errorf("error loading .env file: %w", err)
	}
	return nil
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings the HTTP server cannot run without.
func (c *Config) Validate() error {
	if c.SessionSecret == "" {
		return ErrMissingSessionSecret
	}
	if c.WeatherCacheDuration <= 0 {
		return fmt.Errorf("WEATHER_CACHE_DURATION must be positive, got %s", c.WeatherCacheDuration)
	}
	return nil
}

func (c *Config) ProfilesFilePath() string {
	return path.Join(c.DataDir, "profiles.json")
}

func (c *Config) BatchesFilePath() string {
	return path.Join(c.DataDir, "batches.json")
}

func (c *Config) NotificationsFilePath() string {
	return path.Join(c.DataDir, "notifications.json")
}

func (c *Config) WeatherCacheFilePath() string {
	return path.Join(c.DataDir, "weather-cache.json")
}
