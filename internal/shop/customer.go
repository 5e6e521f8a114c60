package shop

import "strings"

// InteractionType selects which visit flow applies to a customer.
type InteractionType string

const (
	InteractionPawn        InteractionType = "PAWN"
	InteractionRedeem      InteractionType = "REDEEM"
	InteractionNegotiation InteractionType = "NEGOTIATION"
	InteractionRenewal     InteractionType = "RENEWAL"
	InteractionPostForfeit InteractionType = "POST_FORFEIT"
)

// Mood is derived display state. It never drives logic.
type Mood string

const (
	MoodNeutral Mood = "Neutral"
	MoodAnnoyed Mood = "Annoyed"
	MoodAngry   Mood = "Angry"
	MoodHappy   Mood = "Happy"
)

// NegotiationStyle shapes how easily a customer takes offence.
type NegotiationStyle string

const (
	StyleProfessional NegotiationStyle = "Professional"
	StyleAggressive   NegotiationStyle = "Aggressive"
	StyleDesperate    NegotiationStyle = "Desperate"
	StyleDeceptive    NegotiationStyle = "Deceptive"
)

// TagHighRisk marks customers who are vulnerable to predatory rates.
const TagHighRisk = "HighRisk"

// InsultMultiplier returns the fraction of the minimum below which an
// offer is taken as an insult.
func InsultMultiplier(style NegotiationStyle) float64 {
	switch style {
	case StyleAggressive:
		return 0.8
	case StyleDesperate:
		return 0.6
	case StyleDeceptive:
		return 0.75
	default:
		return 0.7
	}
}

// RedemptionIntent is what a returning customer plans to do with their loan.
type RedemptionIntent string

const (
	IntentRedeem RedemptionIntent = "REDEEM"
	IntentExtend RedemptionIntent = "EXTEND"
	IntentLeave  RedemptionIntent = "LEAVE"
)

// Dialogue is the resolved line set for one visit.
type Dialogue struct {
	Greeting    string `json:"greeting"`
	Pitch       string `json:"pitch,omitempty"`
	Fair        string `json:"fair,omitempty"`
	Fleeced     string `json:"fleeced,omitempty"`
	Premium     string `json:"premium,omitempty"`
	Insulted    string `json:"insulted,omitempty"`
	TooLow      string `json:"too_low,omitempty"`
	RateTooHigh string `json:"rate_too_high,omitempty"`
	WalkAway    string `json:"walk_away,omitempty"`
	Rejected    string `json:"rejected,omitempty"`
}

// Customer is the negotiation counterpart for a single shop visit.
type Customer struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Style       NegotiationStyle `json:"style"`
	Tags        []string         `json:"tags,omitempty"`

	Patience    int  `json:"patience"` // 0 = walks away
	MaxPatience int  `json:"max_patience"`
	Mood        Mood `json:"mood"`

	MinimumAmount float64 `json:"minimum_amount"`
	DesiredAmount float64 `json:"desired_amount"`
	MaxRepayment  float64 `json:"max_repayment"`
	Wallet        float64 `json:"wallet"`

	Interaction InteractionType  `json:"interaction"`
	Intent      RedemptionIntent `json:"intent,omitempty"`
	Item        *Item            `json:"item,omitempty"`
	Dialogue    Dialogue         `json:"dialogue"`

	ChainID string `json:"chain_id,omitempty"` // Empty for generated customers
	EventID string `json:"event_id,omitempty"`
}

// HasTag reports whether the customer carries a tag (case-insensitive).
func (c *Customer) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the customer and its item.
func (c *Customer) Clone() *Customer {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Tags = append([]string(nil), c.Tags...)
	cp.Item = c.Item.Clone()
	return &cp
}
