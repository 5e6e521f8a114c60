package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pawnbroker.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("missing file uses defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.StoryDir != "stories" || cfg.Game.StartCash != 1000 || cfg.LLM.Timeout != 10*time.Second || cfg.API.Autosave != 5*time.Minute {
			t.Fatalf("unexpected defaults: %+v", cfg)
		}
	})

	t.Run("file overrides defaults and resolves paths", func(t *testing.T) {
		path := writeTempConfig(t, "story_dir: tales\nseed: 42\ngame:\n  start_cash: 250\n  strict_corpus: true\nllm:\n  timeout: 3s\n")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.StoryDir != filepath.Join(filepath.Dir(path), "tales") {
			t.Fatalf("story dir = %q", cfg.StoryDir)
		}
		if cfg.Seed != 42 || cfg.Game.StartCash != 250 || !cfg.Game.StrictCorpus {
			t.Fatalf("game = %+v", cfg.Game)
		}
		if cfg.Game.ActionPointsPerDay != 5 {
			t.Fatalf("unset field lost its default: %+v", cfg.Game)
		}
		if cfg.LLM.Timeout != 3*time.Second {
			t.Fatalf("timeout = %v", cfg.LLM.Timeout)
		}
	})

	t.Run("environment wins over file", func(t *testing.T) {
		path := writeTempConfig(t, "game:\n  customers_per_day: 2\n")
		t.Setenv("PAWNBROKER_CUSTOMERS_PER_DAY", "6")
		t.Setenv("OPENAI_API_KEY", "sk-test")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.Game.CustomersPerDay != 6 || cfg.LLM.APIKey != "sk-test" {
			t.Fatalf("env not applied: %+v", cfg)
		}
	})

	t.Run("bad environment value", func(t *testing.T) {
		t.Setenv("PAWNBROKER_PORT", "eighty")
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		if err == nil || !strings.Contains(err.Error(), "parse env:") {
			t.Fatalf("expected parse env error, got %v", err)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		if _, err := Load(writeTempConfig(t, "game: [1, 2\n")); err == nil {
			t.Fatalf("expected error")
		}
	})

	for name, content := range map[string]string{
		"zero action points":       "game:\n  action_points_per_day: -1\n",
		"negative cash":            "game:\n  start_cash: -5\n",
		"tracing without target":   "tracing:\n  enabled: true\n",
		"port out of range":        "api:\n  port: 70000\n",
		"empty story dir":          "story_dir: \"\"\n",
		"non-positive llm timeout": "llm:\n  timeout: 0s\n",
		"negative autosave":        "api:\n  autosave: -1m\n",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeTempConfig(t, content)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
