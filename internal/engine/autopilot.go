package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/talgya/pawnbroker/internal/game"
	"github.com/talgya/pawnbroker/internal/negotiation"
	"github.com/talgya/pawnbroker/internal/shop"
	"github.com/talgya/pawnbroker/internal/valuation"
)

// Outcome is how one visit ended.
type Outcome string

const (
	OutcomeDeal      Outcome = "deal"
	OutcomeWalkout   Outcome = "walkout"
	OutcomeRejected  Outcome = "rejected"
	OutcomeSettled   Outcome = "settled"
	OutcomeConcluded Outcome = "concluded"
)

// Strategy plays one visit to completion. It must leave the counter empty:
// accepted, walked out, rejected, settled or concluded.
type Strategy interface {
	Play(ctx context.Context, g *game.Game, a game.Arrival) (Outcome, error)
}

// Steady is a cautious broker. It appraises once while the customer can
// spare the patience, plays every revealed trait, refuses known fakes and
// never lends more than a share of the item's apparent value or of the till.
type Steady struct {
	ValueShare float64 // Of the current range midpoint; default 0.75
	CashShare  float64 // Of cash on hand; default 0.5
	Rate       float64 // Opening rate; default 0.05
}

func (s Steady) withDefaults() Steady {
	if s.ValueShare <= 0 {
		s.ValueShare = 0.75
	}
	if s.CashShare <= 0 {
		s.CashShare = 0.5
	}
	if s.Rate <= 0 {
		s.Rate = 0.05
	}
	return s
}

const (
	minAppraisalPatience = 3
	insultRaise          = 1.25
)

func (s Steady) Play(ctx context.Context, g *game.Game, a game.Arrival) (Outcome, error) {
	s = s.withDefaults()
	if a.Customer.Interaction == shop.InteractionRedeem {
		if _, err := g.SettleRedemption(); err != nil {
			return "", fmt.Errorf("settle: %w", err)
		}
		return OutcomeSettled, nil
	}
	if a.ChainID != "" && a.Customer.Item == nil {
		if _, err := g.Conclude(); err != nil {
			return "", fmt.Errorf("conclude: %w", err)
		}
		return OutcomeConcluded, nil
	}

	if c := g.Customer(); c != nil && c.Patience >= minAppraisalPatience {
		if _, err := g.Appraise(); err != nil {
			return "", fmt.Errorf("appraise: %w", err)
		}
	}

	c := g.Customer()
	if c == nil || c.Item == nil {
		return s.reject(g)
	}
	if c.Item.KnownFake() {
		return s.reject(g)
	}
	for _, t := range c.Item.RevealedTraits {
		if _, err := g.UseTrait(t.ID); err != nil && !errors.Is(err, negotiation.ErrWrongTraitKind) {
			return "", fmt.Errorf("use trait %s: %w", t.ID, err)
		}
	}

	c = g.Customer()
	r := c.Item.CurrentRange
	ceiling := math.Min((r.Min()+r.Max())/2*s.ValueShare, g.Stats().Cash*s.CashShare)
	principal := math.Min(valuation.HumanRound(c.DesiredAmount), ceiling)
	rate := s.Rate
	if c.HasTag(shop.TagHighRisk) || c.Style == shop.StyleDesperate {
		rate *= 2
	}

	for {
		if principal < 1 || principal > ceiling {
			return s.reject(g)
		}
		out, err := g.SubmitOffer(principal, rate)
		if err != nil {
			return "", fmt.Errorf("offer: %w", err)
		}
		switch out.State {
		case negotiation.StateAccepted:
			return OutcomeDeal, nil
		case negotiation.StateWalkAway:
			return OutcomeWalkout, nil
		}

		switch out.Verdict {
		case negotiation.VerdictInsult:
			principal = valuation.HumanRound(principal * insultRaise)
		case negotiation.VerdictPrincipalTooLow:
			if !out.MinimumRevealed {
				return s.reject(g)
			}
			principal = out.Minimum
		case negotiation.VerdictInterestTooHigh, negotiation.VerdictRateMismatch:
			if rate == 0 {
				return s.reject(g)
			}
			rate = math.Floor(rate*100/2) / 100
		}
	}
}

func (s Steady) reject(g *game.Game) (Outcome, error) {
	if _, err := g.Reject(); err != nil {
		return "", fmt.Errorf("reject: %w", err)
	}
	return OutcomeRejected, nil
}
