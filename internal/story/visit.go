package story

import (
	"github.com/google/uuid"

	"github.com/talgya/pawnbroker/internal/entropy"
	"github.com/talgya/pawnbroker/internal/shop"
	"github.com/talgya/pawnbroker/internal/valuation"
)

const defaultPatience = 3

// Match is an eligible event and the chain it belongs to.
type Match struct {
	Event *Event
	Chain *ChainState
}

// FindEligible scans active chains in a shuffled order and returns the first
// event, in authored order within its chain, whose trigger holds. Returns nil
// when nothing is eligible. The chains slice is not reordered.
func FindEligible(chains []*ChainState, corpus *Corpus, rep shop.Reputation, src entropy.Source) *Match {
	order := make([]*ChainState, len(chains))
	copy(order, chains)
	src.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	for _, ch := range order {
		if !ch.Active {
			continue
		}
		scope := Scope{Chain: ch, Reputation: rep}
		for _, ev := range corpus.EventsFor(ch.ID) {
			if ok, err := scope.All(ev.Trigger); err == nil && ok {
				return &Match{Event: ev, Chain: ch}
			}
		}
	}
	return nil
}

// Visit is an instantiated story event, ready to play.
type Visit struct {
	Customer *shop.Customer
	Event    *Event
	Flow     FlowKey // Set for redemption checks
	Effects  Effects // Effects of the resolved flow
}

// Instantiate builds a fresh customer (and item, if any) from an event's
// templates. Dialogue is resolved against the chain and reputation. The
// templates are never modified. Redemption checks also resolve their flow
// against inventory and compute the customer's intent.
func Instantiate(ev *Event, chain *ChainState, rep shop.Reputation, inventory []*shop.Item) *Visit {
	scope := Scope{Chain: chain, Reputation: rep}
	tpl := ev.Customer
	if tpl == nil {
		tpl = &CustomerTemplate{Name: "A stranger"}
	}

	c := &shop.Customer{
		ID:            uuid.NewString(),
		Name:          tpl.Name,
		Description:   tpl.Description,
		Style:         tpl.Style,
		Tags:          append([]string(nil), tpl.Tags...),
		Patience:      tpl.Patience,
		MinimumAmount: tpl.MinimumAmount,
		DesiredAmount: tpl.DesiredAmount,
		MaxRepayment:  tpl.MaxRepayment,
		Wallet:        tpl.Wallet,
		Interaction:   tpl.Interaction,
		Mood:          shop.MoodNeutral,
		Dialogue:      tpl.Dialogue.Resolve(scope),
		ChainID:       ev.ChainID,
		EventID:       ev.ID,
	}
	if c.Style == "" {
		c.Style = shop.StyleProfessional
	}
	if c.Patience <= 0 {
		c.Patience = defaultPatience
	}
	c.MaxPatience = c.Patience
	if c.Interaction == "" {
		c.Interaction = shop.InteractionPawn
	}
	if ev.Item != nil {
		c.Item = NewItem(ev.Item, ev.ChainID)
	}

	v := &Visit{Customer: c, Event: ev}
	if ev.Type != EventRedemptionCheck {
		return v
	}

	c.Interaction = shop.InteractionRedeem
	if target := shop.FindItem(inventory, ev.TargetItemID); target != nil {
		c.Item = target.Clone()
		c.Intent = RedemptionIntentFor(c.Wallet, target.Pawn)
	} else {
		c.Intent = shop.IntentLeave
	}
	v.Flow = ResolveRedemptionFlow(ev, inventory)
	if f := ev.Flows[v.Flow]; f != nil {
		if line := f.Dialogue.Resolve(scope); line != "" {
			c.Dialogue.Greeting = line
		}
		v.Effects = append(Effects(nil), f.Effects...)
	}
	return v
}

// NewItem creates a fresh ACTIVE item from a template.
func NewItem(tpl *ItemTemplate, chainID string) *shop.Item {
	it := &shop.Item{
		ID:           tpl.ID,
		Name:         tpl.Name,
		Description:  tpl.Description,
		ChainID:      chainID,
		RealValue:    tpl.RealValue,
		Uncertainty:  tpl.Uncertainty,
		HiddenTraits: append([]shop.ItemTrait(nil), tpl.Traits...),
		Status:       shop.StatusActive,
	}
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if tpl.PerceivedValue != nil {
		pv := *tpl.PerceivedValue
		it.PerceivedValue = &pv
	}
	it.InitialRange = valuation.ComputeRange(it.RealValue, it.PerceivedValue, it.Uncertainty)
	it.CurrentRange = it.InitialRange
	return it
}

// RedemptionIntentFor decides what a returning customer will do: redeem if
// they can pay principal and interest, extend if they can cover the
// interest, otherwise leave.
func RedemptionIntentFor(wallet float64, pawn *shop.PawnInfo) shop.RedemptionIntent {
	if pawn == nil {
		return shop.IntentLeave
	}
	switch {
	case wallet >= pawn.Repayment():
		return shop.IntentRedeem
	case wallet >= pawn.Interest():
		return shop.IntentExtend
	}
	return shop.IntentLeave
}

// ResolveRedemptionFlow picks the redemption branch from the state of the
// chain's items. A force-sold target is a hostile takeover; a target that is
// sold, redeemed or missing is lost; otherwise the branch depends on whether
// any sibling item from the chain was sold.
func ResolveRedemptionFlow(ev *Event, inventory []*shop.Item) FlowKey {
	target := shop.FindItem(inventory, ev.TargetItemID)
	if target == nil {
		return FlowCoreLost
	}
	switch target.Status {
	case shop.StatusSold:
		if target.ForceSold {
			return FlowHostileTakeover
		}
		return FlowCoreLost
	case shop.StatusRedeemed:
		return FlowCoreLost
	}
	for _, it := range inventory {
		if it.ChainID == ev.ChainID && it.ID != target.ID && it.Status == shop.StatusSold {
			return FlowCoreSafe
		}
	}
	return FlowAllSafe
}
