// Package engine runs a game without a player: each day the shop opens, a
// strategy serves every customer, and the shop closes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/pawnbroker/internal/game"
	"github.com/talgya/pawnbroker/internal/shop"
)

// DayResult summarizes one simulated day.
type DayResult struct {
	Day        int             `json:"day"`
	Letters    int             `json:"letters"`
	Visits     map[Outcome]int `json:"visits"`
	Forfeited  int             `json:"forfeited"`
	Cash       float64         `json:"cash"`
	Reputation shop.Reputation `json:"reputation"`
	GameOver   bool            `json:"game_over"`
}

// Summary totals a run.
type Summary struct {
	Days       int             `json:"days"`
	Visits     map[Outcome]int `json:"visits"`
	Forfeited  int             `json:"forfeited"`
	Cash       float64         `json:"cash"`
	Reputation shop.Reputation `json:"reputation"`
	GameOver   bool            `json:"game_over"`
}

// Engine drives a game day by day.
type Engine struct {
	Game     *game.Game
	Strategy Strategy      // Default Steady{}
	Interval time.Duration // Pause between days; 0 = no pause

	OnDay func(DayResult) // Called after every closed day
}

// NewEngine creates an engine with the default strategy.
func NewEngine(g *game.Game) *Engine {
	return &Engine{Game: g, Strategy: Steady{}}
}

// Run plays up to days days. It stops early when the game is over or ctx is
// cancelled; a cancelled run still returns the summary so far.
func (e *Engine) Run(ctx context.Context, days int) (Summary, error) {
	if e.Strategy == nil {
		e.Strategy = Steady{}
	}
	sum := Summary{Visits: make(map[Outcome]int)}
	slog.Info("autopilot started", "day", e.Game.Stats().Day, "days", days)

	for i := 0; i < days; i++ {
		res, err := e.step(ctx)
		if err != nil {
			return e.finish(sum), err
		}
		sum.Days++
		sum.Forfeited += res.Forfeited
		for k, n := range res.Visits {
			sum.Visits[k] += n
		}
		if e.OnDay != nil {
			e.OnDay(res)
		}
		if res.GameOver {
			break
		}
		if e.Interval > 0 && i < days-1 {
			select {
			case <-ctx.Done():
				return e.finish(sum), ctx.Err()
			case <-time.After(e.Interval):
			}
		}
	}
	return e.finish(sum), nil
}

func (e *Engine) finish(sum Summary) Summary {
	stats := e.Game.Stats()
	sum.Cash = stats.Cash
	sum.Reputation = stats.Reputation
	sum.GameOver = e.Game.Phase() == game.PhaseGameOver
	slog.Info("autopilot stopped",
		"days", sum.Days,
		"cash", humanize.Comma(int64(sum.Cash)),
		"deals", sum.Visits[OutcomeDeal],
		"game_over", sum.GameOver,
	)
	return sum
}

// step plays one full day.
func (e *Engine) step(ctx context.Context) (DayResult, error) {
	if err := ctx.Err(); err != nil {
		return DayResult{}, err
	}
	letters, err := e.Game.StartDay(ctx)
	if err != nil {
		return DayResult{}, fmt.Errorf("start day: %w", err)
	}
	res := DayResult{Day: e.Game.Stats().Day, Letters: len(letters), Visits: make(map[Outcome]int)}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		a, err := e.Game.NextCustomer(ctx)
		if errors.Is(err, game.ErrNoCustomer) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("next customer: %w", err)
		}
		outcome, err := e.Strategy.Play(ctx, e.Game, a)
		if err != nil {
			return res, fmt.Errorf("day %d, %s: %w", res.Day, a.Customer.Name, err)
		}
		res.Visits[outcome]++
		slog.Debug("visit", "day", res.Day, "customer", a.Customer.Name, "chain", a.ChainID, "outcome", outcome)
	}

	report, err := e.Game.EndDay(ctx)
	if err != nil {
		return res, fmt.Errorf("end day: %w", err)
	}
	stats := e.Game.Stats()
	res.Forfeited = len(report.Forfeited)
	res.Cash = report.Cash
	res.Reputation = stats.Reputation
	res.GameOver = report.GameOver
	return res, nil
}
