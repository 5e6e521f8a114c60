// Package config loads pawnbroker.yaml and overlays environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked for in the working directory.
const DefaultPath = "pawnbroker.yaml"

type Config struct {
	StoryDir string `yaml:"story_dir" env:"PAWNBROKER_STORY_DIR"`
	MailFile string `yaml:"mail_file" env:"PAWNBROKER_MAIL_FILE"`
	SavePath string `yaml:"save_path" env:"PAWNBROKER_SAVE_PATH"`
	Seed     int64  `yaml:"seed" env:"PAWNBROKER_SEED"` // 0 = random each run

	Game    GameConfig    `yaml:"game"`
	LLM     LLMConfig     `yaml:"llm"`
	Entropy EntropyConfig `yaml:"entropy"`
	Tracing TracingConfig `yaml:"tracing"`
	API     APIConfig     `yaml:"api"`
}

type GameConfig struct {
	StartCash          float64 `yaml:"start_cash" env:"PAWNBROKER_START_CASH"`
	ActionPointsPerDay int     `yaml:"action_points_per_day" env:"PAWNBROKER_ACTION_POINTS"`
	CustomersPerDay    int     `yaml:"customers_per_day" env:"PAWNBROKER_CUSTOMERS_PER_DAY"`
	PawnTermDays       int     `yaml:"pawn_term_days" env:"PAWNBROKER_PAWN_TERM_DAYS"`
	StrictCorpus       bool    `yaml:"strict_corpus" env:"PAWNBROKER_STRICT_CORPUS"`
}

type LLMConfig struct {
	APIKey    string        `yaml:"api_key" env:"OPENAI_API_KEY"`
	BaseURL   string        `yaml:"base_url" env:"OPENAI_BASE_URL"`
	Model     string        `yaml:"model" env:"PAWNBROKER_LLM_MODEL"`
	Timeout   time.Duration `yaml:"timeout" env:"PAWNBROKER_LLM_TIMEOUT"`
	MaxPerMin int           `yaml:"max_per_min" env:"PAWNBROKER_LLM_MAX_PER_MIN"`
}

type EntropyConfig struct {
	RandomOrgKey string `yaml:"random_org_key" env:"RANDOM_ORG_API_KEY"`
}

type TracingConfig struct {
	Enabled  bool              `yaml:"enabled" env:"PAWNBROKER_TRACING_ENABLED"`
	Endpoint string            `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"`
	Headers  map[string]string `yaml:"headers" env:"OTEL_EXPORTER_OTLP_HEADERS" envKeyValSeparator:"="`
	Insecure bool              `yaml:"insecure" env:"PAWNBROKER_TRACING_INSECURE"`
}

type APIConfig struct {
	Port     int           `yaml:"port" env:"PAWNBROKER_PORT"`
	AdminKey string        `yaml:"admin_key" env:"PAWNBROKER_ADMIN_KEY"`
	Autosave time.Duration `yaml:"autosave" env:"PAWNBROKER_AUTOSAVE"` // 0 disables
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		StoryDir: "stories",
		MailFile: "stories/mail.yaml",
		SavePath: "pawnbroker.db",
		Game: GameConfig{
			StartCash:          1000,
			ActionPointsPerDay: 5,
			CustomersPerDay:    4,
			PawnTermDays:       7,
		},
		LLM: LLMConfig{
			Model:     "gpt-4o-mini",
			Timeout:   10 * time.Second,
			MaxPerMin: 20,
		},
		API: APIConfig{Port: 8080, Autosave: 5 * time.Minute},
	}
}

// Load reads the config file at path over the defaults, then applies
// environment overrides. A missing file is not an error. Relative paths in
// the file are resolved against the file's directory.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg.resolvePaths(filepath.Dir(path))
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := ParseEnv(cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// ParseEnv overlays environment variables onto target. Unset variables
// leave fields untouched.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *Config) resolvePaths(base string) {
	for _, p := range []*string{&c.StoryDir, &c.MailFile, &c.SavePath} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

func validateConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.StoryDir) == "" {
		return fmt.Errorf("story_dir is required")
	}
	if strings.TrimSpace(cfg.SavePath) == "" {
		return fmt.Errorf("save_path is required")
	}
	g := cfg.Game
	if g.StartCash <= 0 {
		return fmt.Errorf("game.start_cash must be positive, got %v", g.StartCash)
	}
	if g.ActionPointsPerDay < 1 {
		return fmt.Errorf("game.action_points_per_day must be at least 1, got %d", g.ActionPointsPerDay)
	}
	if g.CustomersPerDay < 1 {
		return fmt.Errorf("game.customers_per_day must be at least 1, got %d", g.CustomersPerDay)
	}
	if g.PawnTermDays < 1 {
		return fmt.Errorf("game.pawn_term_days must be at least 1, got %d", g.PawnTermDays)
	}
	if cfg.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive")
	}
	if cfg.Tracing.Enabled && strings.TrimSpace(cfg.Tracing.Endpoint) == "" {
		return fmt.Errorf("tracing.endpoint is required when tracing is enabled")
	}
	if cfg.API.Port < 1 || cfg.API.Port > 65535 {
		return fmt.Errorf("api.port out of range: %d", cfg.API.Port)
	}
	if cfg.API.Autosave < 0 {
		return fmt.Errorf("api.autosave must not be negative")
	}
	return nil
}
