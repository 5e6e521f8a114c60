package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/talgya/pawnbroker/internal/config"
	"github.com/talgya/pawnbroker/internal/entropy"
	"github.com/talgya/pawnbroker/internal/game"
	"github.com/talgya/pawnbroker/internal/llm"
	"github.com/talgya/pawnbroker/internal/mail"
	"github.com/talgya/pawnbroker/internal/observability"
	"github.com/talgya/pawnbroker/internal/persistence"
	"github.com/talgya/pawnbroker/internal/story"
)

// session is a loaded game with everything it holds open.
type session struct {
	cfg    *config.Config
	game   *game.Game
	db     *persistence.DB
	tracer *observability.TracerProvider
}

func (s *session) Close(ctx context.Context) {
	if s.db != nil {
		s.db.Close()
	}
	if s.tracer != nil {
		if err := s.tracer.Shutdown(ctx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}
}

// openSession loads config, the corpus and mail, sets up tracing and the
// customer source, then resumes the saved game or starts a new one. With
// fresh set any existing save is ignored.
func openSession(ctx context.Context, seedOverride int64, fresh bool) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if seedOverride != 0 {
		cfg.Seed = seedOverride
	}

	tp, err := observability.InitTracing(ctx, observability.Config{
		ServiceName:    "pawnbroker",
		ServiceVersion: version,
		Enabled:        cfg.Tracing.Enabled,
		Endpoint:       cfg.Tracing.Endpoint,
		Headers:        cfg.Tracing.Headers,
		Insecure:       cfg.Tracing.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	s := &session{cfg: cfg, tracer: tp}

	corpus, err := story.LoadDir(cfg.StoryDir)
	if err != nil {
		s.Close(ctx)
		return nil, fmt.Errorf("load stories: %w", err)
	}
	reg, err := mail.LoadRegistry(cfg.MailFile)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = entropy.NewSeed()
	}
	var src entropy.Source = entropy.NewSeeded(seed)
	if pool := entropy.NewPool(cfg.Entropy.RandomOrgKey); pool != nil {
		src = pool
		slog.Info("using random.org entropy")
	}

	client := llm.NewClient(cfg.LLM.APIKey, llm.ClientOptions{
		Model:     cfg.LLM.Model,
		BaseURL:   cfg.LLM.BaseURL,
		MaxPerMin: cfg.LLM.MaxPerMin,
	})
	var primary llm.Source
	if client.Enabled() {
		primary = llm.NewGenerator(client)
	}
	customers := llm.WithFallback(primary, llm.NewLibrary(seed), cfg.LLM.Timeout)

	deps := game.Deps{Corpus: corpus, Mail: reg, Customers: customers, Random: src}
	opts := game.Options{
		StartCash:          cfg.Game.StartCash,
		ActionPointsPerDay: cfg.Game.ActionPointsPerDay,
		CustomersPerDay:    cfg.Game.CustomersPerDay,
		PawnTermDays:       cfg.Game.PawnTermDays,
		Strict:             cfg.Game.StrictCorpus,
	}

	db, err := persistence.Open(cfg.SavePath)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	s.db = db

	if saved, ok := db.LoadGame(); ok && !fresh {
		s.game, err = game.Resume(saved, deps, opts)
		if err == nil {
			slog.Info("resumed saved game", "day", saved.Stats.Day, "path", cfg.SavePath)
		}
	} else {
		s.game, err = game.New(deps, opts)
		if err == nil {
			slog.Info("new game", "seed", seed, "chains", len(corpus.Chains), "events", len(corpus.Events), "llm", client.Enabled())
		}
	}
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	return s, nil
}
