package app

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Engine names accepted by SCORING_ENGINE.
const (
	EngineRule = "rule"
	EngineAI   = "ai"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8000"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"120s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"120s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	ERPNextURL       string        `envconfig:"ERPNEXT_URL" default:"http://localhost:8080"`
	ERPNextAPIKey    string        `envconfig:"ERPNEXT_API_KEY"`
	ERPNextAPISecret string        `envconfig:"ERPNEXT_API_SECRET"`
	ERPNextTimeout   time.Duration `envconfig:"ERPNEXT_TIMEOUT" default:"30s"`

	ScoringEngine      string `envconfig:"SCORING_ENGINE" default:"rule"`
	MinTransactions    int    `envconfig:"MIN_TRANSACTIONS_FOR_SCORING" default:"1"`
	ScoreWindowDays    int    `envconfig:"SCORE_WINDOW_DAYS" default:"365"`
	FollowUpWindowDays int    `envconfig:"FOLLOWUP_WINDOW_DAYS" default:"120"`

	OpenAIAPIKey     string        `envconfig:"OPENAI_API_KEY"`
	OpenAIModel      string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	AITimeout        time.Duration `envconfig:"AI_TIMEOUT" default:"30s"`
	AIMaxConcurrency int           `envconfig:"AI_MAX_CONCURRENCY" default:"4"`
	AITopK           int           `envconfig:"AI_TOPK" default:"0"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.ScoringEngine != EngineRule && cfg.ScoringEngine != EngineAI {
		return nil, errors.New("scoring engine must be \"rule\" or \"ai\"")
	}
	if cfg.ScoringEngine == EngineAI && cfg.OpenAIAPIKey == "" {
		return nil, errors.New("openai api key must be provided for the ai engine")
	}
	if cfg.MinTransactions < 0 {
		return nil, errors.New("minimum transactions must not be negative")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// ScoreWindow returns the invoice filter window for score endpoints.
func (c *Config) ScoreWindow() time.Duration {
	return time.Duration(c.ScoreWindowDays) * 24 * time.Hour
}

// FollowUpWindow returns the invoice filter window for follow-up grouping.
func (c *Config) FollowUpWindow() time.Duration {
	return time.Duration(c.FollowUpWindowDays) * 24 * time.Hour
}
