package story

import "github.com/talgya/pawnbroker/internal/shop"

// EventType selects how a story event plays out.
type EventType string

const (
	EventStandard        EventType = "STANDARD"
	EventRedemptionCheck EventType = "REDEMPTION_CHECK"
)

// DealTier classifies an accepted pawn deal for story outcomes.
type DealTier string

const (
	DealCharity  DealTier = "deal_charity"
	DealAid      DealTier = "deal_aid"
	DealStandard DealTier = "deal_standard"
	DealShark    DealTier = "deal_shark"
)

// DealTiers lists every tier an outcomes map must cover.
var DealTiers = []DealTier{DealCharity, DealAid, DealStandard, DealShark}

// FlowKey names a redemption flow branch.
type FlowKey string

const (
	FlowAllSafe         FlowKey = "all_safe"
	FlowCoreSafe        FlowKey = "core_safe"
	FlowCoreLost        FlowKey = "core_lost"
	FlowHostileTakeover FlowKey = "hostile_takeover"
)

// FlowKeys lists every redemption flow branch.
var FlowKeys = []FlowKey{FlowAllSafe, FlowCoreSafe, FlowCoreLost, FlowHostileTakeover}

// Effects is an ordered effect list.
type Effects []Effect

// Flow is the dialogue and effects of one redemption branch.
type Flow struct {
	Dialogue DialogueText `yaml:"dialogue"`
	Effects  Effects      `yaml:"effects"`
}

// CustomerTemplate is the immutable authored customer of a story event.
type CustomerTemplate struct {
	Name          string                `yaml:"name"`
	Description   string                `yaml:"description"`
	Style         shop.NegotiationStyle `yaml:"style"`
	Tags          []string              `yaml:"tags"`
	Patience      int                   `yaml:"patience"`
	MinimumAmount float64               `yaml:"minimum_amount"`
	DesiredAmount float64               `yaml:"desired_amount"`
	MaxRepayment  float64               `yaml:"max_repayment"`
	Wallet        float64               `yaml:"wallet"`
	Interaction   shop.InteractionType  `yaml:"interaction"`
	Dialogue      DialogueSet           `yaml:"dialogue"`
}

// ItemTemplate is the immutable authored item of a story event.
type ItemTemplate struct {
	ID             string           `yaml:"id"`
	Name           string           `yaml:"name"`
	Description    string           `yaml:"description"`
	RealValue      float64          `yaml:"real_value"`
	PerceivedValue *float64         `yaml:"perceived_value"`
	Uncertainty    float64          `yaml:"uncertainty"`
	Traits         []shop.ItemTrait `yaml:"traits"`
}

// Event is one authored story beat.
type Event struct {
	ID       string
	ChainID  string
	Type     EventType
	Trigger  []Condition
	Customer *CustomerTemplate
	Item     *ItemTemplate

	// Outcomes of an accepted pawn, by deal tier. Nil when the event
	// defines no outcomes at all.
	Outcomes   map[DealTier]Effects
	OnReject   Effects
	OnComplete Effects

	TargetItemID string
	Flows        map[FlowKey]*Flow

	SourceFile string
}

// EffectSite is one effect and where it was authored.
type EffectSite struct {
	Where  string
	Effect Effect
}

// EffectSites returns every effect the event can apply, with its location.
func (e *Event) EffectSites() []EffectSite {
	var out []EffectSite
	add := func(where string, list Effects) {
		for _, eff := range list {
			out = append(out, EffectSite{Where: where, Effect: eff})
		}
	}
	for _, tier := range DealTiers {
		add("outcomes."+string(tier), e.Outcomes[tier])
	}
	add("on_reject", e.OnReject)
	add("on_complete", e.OnComplete)
	for _, key := range FlowKeys {
		if f := e.Flows[key]; f != nil {
			add("dynamic_flows."+string(key), f.Effects)
		}
	}
	return out
}
