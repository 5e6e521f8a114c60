package game

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel/attribute"

	"github.com/talgya/pawnbroker/internal/mail"
	"github.com/talgya/pawnbroker/internal/shop"
	"github.com/talgya/pawnbroker/internal/story"
)

// DayReport summarizes a closed day.
type DayReport struct {
	Day       int      `json:"day"` // The day that just ended
	Cash      float64  `json:"cash"`
	Forfeited []string `json:"forfeited,omitempty"` // Item ids
	GameOver  bool     `json:"game_over"`
}

// StartDay opens the shop: every chain ticks once in corpus order, chain
// side effects are realized, due mail is delivered and action points reset.
// Returns the letters delivered this morning.
func (g *Game) StartDay(ctx context.Context) ([]mail.Letter, error) {
	st := g.state
	switch st.Phase {
	case PhaseGameOver:
		return nil, ErrGameOver
	case PhaseOpen:
		return nil, ErrWrongPhase
	}

	_, span := g.tracer.Start(ctx, "game.start_day")
	defer span.End()
	span.SetAttributes(attribute.Int("game.day", st.Stats.Day))

	for i, cs := range st.Chains {
		def, ok := g.corpus.Chain(cs.ID)
		if !ok {
			continue
		}
		res, err := story.Tick(cs, def.Rules, st.Stats.Reputation, g.src, st.Stats.Day)
		if err != nil {
			slog.Warn("chain tick had failing rules", "chain", cs.ID, "day", st.Stats.Day, "error", err)
		}
		st.Chains[i] = res.Chain
		g.realize(cs.ID, "", res.SideEffects)
	}

	letters := st.Mail.Deliver(st.Stats.Day, g.mail)
	for _, l := range letters {
		if l.Missing {
			slog.Warn("undeliverable mail", "template", l.TemplateID, "day", st.Stats.Day)
			continue
		}
		st.logf("Mail from " + l.Sender + ": " + l.Subject)
	}

	st.Stats.ActionPoints = st.Stats.MaxActionPoints
	st.CustomersToday = 0
	st.VisitedChains = nil
	st.Phase = PhaseOpen
	g.visit = nil

	slog.Info("day started",
		"day", st.Stats.Day,
		"cash", humanize.Comma(int64(st.Stats.Cash)),
		"mail", len(letters),
		"reputation", st.Stats.Reputation.Bucket(),
	)
	return letters, nil
}

// EndDay closes the shop. Whoever is at the counter leaves, active pawns
// whose due day has passed are forfeited, and the day advances. Negative
// cash ends the game.
func (g *Game) EndDay(ctx context.Context) (DayReport, error) {
	if err := g.requireOpen(); err != nil {
		return DayReport{}, err
	}
	st := g.state

	_, span := g.tracer.Start(ctx, "game.end_day")
	defer span.End()
	span.SetAttributes(attribute.Int("game.day", st.Stats.Day))

	g.visit = nil
	report := DayReport{Day: st.Stats.Day}
	for _, it := range st.Inventory {
		if it.Status != shop.StatusActive || it.Pawn == nil || it.Pawn.DueDay > st.Stats.Day {
			continue
		}
		if it.SetStatus(shop.StatusForfeit) {
			report.Forfeited = append(report.Forfeited, it.ID)
			st.logf(fmt.Sprintf("%s was forfeited", it.Name))
		}
	}

	st.Stats.Day++
	st.Phase = PhaseClosed
	if st.Stats.Cash < 0 {
		st.Phase = PhaseGameOver
		report.GameOver = true
		st.logf("The shop is bankrupt.")
	}
	report.Cash = st.Stats.Cash

	slog.Info("day ended",
		"day", report.Day,
		"cash", humanize.Comma(int64(st.Stats.Cash)),
		"forfeited", len(report.Forfeited),
		"game_over", report.GameOver,
	)
	return report, nil
}
