package game

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/talgya/pawnbroker/internal/shop"
	"github.com/talgya/pawnbroker/internal/story"
)

// Deal-tier thresholds.
const (
	aidMaxRate   = 0.05
	sharkMinRate = 0.20
	sharkRatio   = 0.85
)

// ClassifyDeal picks the story outcome tier of an accepted pawn.
func ClassifyDeal(principal, rate, desired float64) story.DealTier {
	switch {
	case rate == 0:
		return story.DealCharity
	case principal >= desired && rate <= aidMaxRate:
		return story.DealAid
	case rate >= sharkMinRate || principal < desired*sharkRatio:
		return story.DealShark
	}
	return story.DealStandard
}

// applyStory runs an effect list against a chain and realizes the side
// effects. targetItemID scopes the *_TARGET dispositions. A failing list
// leaves the chain unchanged and realizes nothing.
func (g *Game) applyStory(chainID, targetItemID string, effects story.Effects) error {
	if len(effects) == 0 {
		return nil
	}
	idx := -1
	for i, c := range g.state.Chains {
		if c.ID == chainID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("chain %q has no state", chainID)
	}

	next, side, err := story.ApplyEffects(g.state.Chains[idx], effects)
	if err != nil {
		slog.Warn("story effects failed", "chain", chainID, "error", err)
		return err
	}
	g.state.Chains[idx] = next
	g.realize(chainID, targetItemID, side)
	return nil
}

// realize applies effects that reach outside the chain.
func (g *Game) realize(chainID, targetItemID string, side []story.Effect) {
	st := g.state
	for _, e := range side {
		switch e := e.(type) {
		case story.AddFunds:
			st.Stats.Cash += e.Amount
			st.logf(fmt.Sprintf("%s: cash %s$%s", chainID, sign(e.Amount), humanize.Comma(int64(abs(e.Amount)))))
		case story.ModifyRep:
			if err := st.Stats.Reputation.Adjust(e.Axis, e.Delta); err != nil {
				slog.Warn("reputation effect skipped", "chain", chainID, "error", err)
			}
		case story.ScheduleMail:
			st.Mail.Schedule(e.TemplateID, e.DelayDays, st.Stats.Day, e.Metadata)
		case story.Disposition:
			g.dispose(chainID, targetItemID, e.Action)
		default:
			slog.Warn("unhandled side effect", "chain", chainID, "kind", e.Kind())
		}
	}
}

// dispose changes the status of a chain's ACTIVE items. Items already in a
// terminal status are never touched.
func (g *Game) dispose(chainID, targetItemID string, action story.EffectKind) {
	for _, it := range g.state.Inventory {
		if it.ChainID != chainID {
			continue
		}
		isTarget := targetItemID != "" && it.ID == targetItemID

		var status shop.ItemStatus
		switch action {
		case story.EffectRedeemAll:
			status = shop.StatusRedeemed
		case story.EffectRedeemTargetOnly:
			if !isTarget {
				continue
			}
			status = shop.StatusRedeemed
		case story.EffectAbandonOthers:
			if isTarget {
				continue
			}
			status = shop.StatusForfeit
		case story.EffectAbandonAll:
			status = shop.StatusForfeit
		case story.EffectForceSellAll:
			status = shop.StatusSold
		case story.EffectForceSellTarget:
			if !isTarget {
				continue
			}
			status = shop.StatusSold
		default:
			continue
		}
		if !it.SetStatus(status) {
			continue
		}
		if status == shop.StatusSold {
			it.ForceSold = true
		}
		g.state.logf(fmt.Sprintf("%s is now %s", it.Name, status))
	}
}

func sign(v float64) string {
	if v < 0 {
		return "-"
	}
	return "+"
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
