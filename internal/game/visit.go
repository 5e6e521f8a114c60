package game

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel/attribute"

	"github.com/talgya/pawnbroker/internal/appraisal"
	"github.com/talgya/pawnbroker/internal/instinct"
	"github.com/talgya/pawnbroker/internal/negotiation"
	"github.com/talgya/pawnbroker/internal/shop"
	"github.com/talgya/pawnbroker/internal/story"
)

// Arrival describes the customer who just walked in.
type Arrival struct {
	Customer *shop.Customer `json:"customer"`
	ChainID  string         `json:"chain_id,omitempty"`
	EventID  string         `json:"event_id,omitempty"`
	Flow     story.FlowKey  `json:"flow,omitempty"`
}

// NextCustomer brings in the next customer. An eligible story event wins
// (one per chain per day); otherwise the customer source is asked.
func (g *Game) NextCustomer(ctx context.Context) (Arrival, error) {
	if err := g.requireOpen(); err != nil {
		return Arrival{}, err
	}
	if g.visit != nil && !g.visit.done {
		return Arrival{}, ErrVisitInProgress
	}
	st := g.state
	if st.CustomersToday >= g.opts.CustomersPerDay {
		return Arrival{}, ErrNoCustomer
	}

	ctx, span := g.tracer.Start(ctx, "game.next_customer")
	defer span.End()

	var candidates []*story.ChainState
	for _, c := range st.Chains {
		if !st.visited(c.ID) {
			candidates = append(candidates, c)
		}
	}

	v := &visit{}
	var customer *shop.Customer
	if m := story.FindEligible(candidates, g.corpus, st.Stats.Reputation, g.src); m != nil {
		sv := story.Instantiate(m.Event, m.Chain, st.Stats.Reputation, st.Inventory)
		v.story = sv
		v.chainID = m.Chain.ID
		customer = sv.Customer
		st.VisitedChains = append(st.VisitedChains, m.Chain.ID)
		span.SetAttributes(attribute.String("story.chain", m.Chain.ID), attribute.String("story.event", m.Event.ID))
	} else if g.customers != nil {
		customer = g.customers.Customer(ctx, st.Stats.Day, st.CustomersToday, st.Stats.Reputation)
	}
	if customer == nil {
		return Arrival{}, ErrNoCustomer
	}

	v.session = negotiation.NewSession(customer)
	g.visit = v
	st.CustomersToday++

	a := Arrival{Customer: customer.Clone(), ChainID: v.chainID}
	if v.story != nil {
		a.EventID = v.story.Event.ID
		a.Flow = v.story.Flow
	}
	slog.Info("customer arrived", "name", customer.Name, "chain", a.ChainID, "event", a.EventID, "interaction", customer.Interaction)
	return a, nil
}

// Appraise examines the item on the counter. A refused appraisal (no action
// points, no patience) is reported in the result, not as an error.
func (g *Game) Appraise() (appraisal.Result, error) {
	v, err := g.bargain()
	if err != nil {
		return appraisal.Result{}, err
	}
	c := v.session.Customer()
	res := appraisal.Perform(c.Item, c, g.state.Stats.ActionPoints, g.src)
	if !res.OK {
		return res, nil
	}
	g.state.Stats.ActionPoints -= res.ActionPointCost
	v.session.SpendPatience(res.PatienceCost)
	v.session.ReplaceItem(res.Item)
	return res, nil
}

// Instinct reads the counter before an offer is made. It changes nothing.
func (g *Game) Instinct(principal, rate float64) (instinct.Feeling, error) {
	v, err := g.bargain()
	if err != nil {
		return instinct.Feeling{}, err
	}
	c := v.session.Customer()
	return instinct.Read(principal, rate, c, c.Item), nil
}

// OfferOutcome is the result of an offer and what it did to the shop.
type OfferOutcome struct {
	negotiation.Result
	DealTier story.DealTier `json:"deal_tier,omitempty"` // Set for accepted story pawns
	Item     *shop.Item     `json:"item,omitempty"`      // The pawned item, once accepted
}

// SubmitOffer puts a principal and flat interest rate to the customer. On
// acceptance the item enters inventory with its loan terms and the cash is
// paid out; story customers then apply the outcome for the deal's tier. A
// walk-out applies the event's rejection effects.
func (g *Game) SubmitOffer(principal, rate float64) (OfferOutcome, error) {
	v, err := g.bargain()
	if err != nil {
		return OfferOutcome{}, err
	}
	if principal > g.state.Stats.Cash {
		return OfferOutcome{}, ErrInsufficientFunds
	}
	ask := v.session.Ask()

	res, err := v.session.SubmitOffer(principal, rate)
	if err != nil {
		return OfferOutcome{}, err
	}
	out := OfferOutcome{Result: res}

	switch res.State {
	case negotiation.StateAccepted:
		out.Item = g.pawn(v, principal, rate)
		if v.story != nil {
			out.DealTier = ClassifyDeal(principal, rate, ask)
			if err := g.applyStory(v.chainID, out.Item.ID, v.story.Event.Outcomes[out.DealTier]); err != nil {
				return out, fmt.Errorf("apply %s outcome: %w", out.DealTier, err)
			}
		}
		v.done = true
	case negotiation.StateWalkAway:
		v.done = true
		g.state.logf(v.session.Customer().Name + " walked out.")
		if err := g.rejected(v); err != nil {
			return out, err
		}
	}
	return out, nil
}

// pawn moves the customer's item into inventory under loan terms.
func (g *Game) pawn(v *visit, principal, rate float64) *shop.Item {
	st := g.state
	c := v.session.Customer()
	it := c.Item.Clone()
	if it == nil {
		it = &shop.Item{Name: "Unnamed item"}
	}
	it.Status = shop.StatusActive
	it.ChainID = v.chainID
	it.Pawn = &shop.PawnInfo{
		Principal: principal,
		Rate:      rate,
		StartDay:  st.Stats.Day,
		DueDay:    st.Stats.Day + g.opts.PawnTermDays,
	}
	st.Inventory = append(st.Inventory, it)
	st.Stats.Cash -= principal
	st.logf(fmt.Sprintf("Pawned %s from %s for $%s at %.0f%%", it.Name, c.Name, humanize.Comma(int64(principal)), rate*100))
	return it.Clone()
}

// UseTrait plays a revealed trait against the customer's ask: flaws and
// fakes as leverage, story traits as a narrative trigger.
func (g *Game) UseTrait(traitID string) (negotiation.LeverageResult, error) {
	v, err := g.bargain()
	if err != nil {
		return negotiation.LeverageResult{}, err
	}
	if it := v.session.Customer().Item; it != nil {
		if t, ok := it.Trait(traitID); ok && t.Kind == shop.TraitStory {
			return v.session.ApplyNarrativeTrigger(traitID)
		}
	}
	return v.session.ApplyLeverage(traitID)
}

// Reject sends the customer away. Story customers apply their rejection
// effects.
func (g *Game) Reject() (negotiation.Result, error) {
	v, err := g.negotiation()
	if err != nil {
		return negotiation.Result{}, err
	}
	res, err := v.session.Reject()
	if err != nil {
		return negotiation.Result{}, err
	}
	v.done = true
	return res, g.rejected(v)
}

func (g *Game) rejected(v *visit) error {
	if v.story == nil {
		return nil
	}
	if err := g.applyStory(v.chainID, "", v.story.Event.OnReject); err != nil {
		return fmt.Errorf("apply rejection effects: %w", err)
	}
	return nil
}

// RedemptionOutcome reports how a returning customer settled.
type RedemptionOutcome struct {
	Intent   shop.RedemptionIntent `json:"intent"`
	Flow     story.FlowKey         `json:"flow"`
	Paid     float64               `json:"paid"`
	Dialogue string                `json:"dialogue"`
}

// SettleRedemption completes a redemption visit. A customer who can pay
// redeems the target item, one who can only cover the interest extends the
// loan by another term, anyone else leaves it. The event's completion
// effects then apply, followed by the resolved flow's effects.
func (g *Game) SettleRedemption() (RedemptionOutcome, error) {
	v, err := g.activeVisit()
	if err != nil {
		return RedemptionOutcome{}, err
	}
	c := v.session.Customer()
	if c.Interaction != shop.InteractionRedeem || v.story == nil {
		return RedemptionOutcome{}, ErrNotRedemption
	}
	st := g.state
	ev := v.story.Event

	out := RedemptionOutcome{Intent: c.Intent, Flow: v.story.Flow, Dialogue: c.Dialogue.Greeting}
	target := shop.FindItem(st.Inventory, ev.TargetItemID)
	if target != nil && target.Status == shop.StatusActive && target.Pawn != nil {
		switch c.Intent {
		case shop.IntentRedeem:
			out.Paid = target.Pawn.Repayment()
			target.SetStatus(shop.StatusRedeemed)
			st.logf(fmt.Sprintf("%s redeemed %s for $%s", c.Name, target.Name, humanize.Comma(int64(out.Paid))))
		case shop.IntentExtend:
			out.Paid = target.Pawn.Interest()
			target.Pawn.StartDay = st.Stats.Day
			target.Pawn.DueDay = st.Stats.Day + g.opts.PawnTermDays
			st.logf(fmt.Sprintf("%s extended the loan on %s", c.Name, target.Name))
		}
		st.Stats.Cash += out.Paid
	}
	v.done = true

	if err := g.applyStory(v.chainID, ev.TargetItemID, ev.OnComplete); err != nil {
		return out, fmt.Errorf("apply completion effects: %w", err)
	}
	if err := g.applyStory(v.chainID, ev.TargetItemID, v.story.Effects); err != nil {
		return out, fmt.Errorf("apply %s flow: %w", out.Flow, err)
	}
	return out, nil
}

// Conclude ends a story visit that brings nothing to the counter. The
// customer says their piece and the event's completion effects apply.
// Returns the customer's greeting.
func (g *Game) Conclude() (string, error) {
	v, err := g.activeVisit()
	if err != nil {
		return "", err
	}
	c := v.session.Customer()
	if v.story == nil || c.Item != nil || c.Interaction == shop.InteractionRedeem {
		return "", ErrNotConversation
	}
	v.done = true
	ev := v.story.Event
	if err := g.applyStory(v.chainID, ev.TargetItemID, ev.OnComplete); err != nil {
		return c.Dialogue.Greeting, fmt.Errorf("apply completion effects: %w", err)
	}
	return c.Dialogue.Greeting, nil
}
