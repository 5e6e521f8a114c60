// Package shop provides the pawn shop data model: items and their hidden
// traits, the customers who bring them in, and the shop's reputation.
package shop

// ItemStatus is the lifecycle state of an item held by the shop.
// ACTIVE is the only non-terminal state.
type ItemStatus string

const (
	StatusActive   ItemStatus = "ACTIVE"
	StatusRedeemed ItemStatus = "REDEEMED"
	StatusForfeit  ItemStatus = "FORFEIT"
	StatusSold     ItemStatus = "SOLD"
)

// Terminal reports whether no further status change is allowed.
func (s ItemStatus) Terminal() bool {
	return s != StatusActive
}

// TraitKind classifies an item trait.
type TraitKind string

const (
	TraitFlaw  TraitKind = "FLAW"  // Negotiation leverage, negative value impact
	TraitStory TraitKind = "STORY" // Narrative trigger, neutral or positive
	TraitFake  TraitKind = "FAKE"  // Breaks authenticity, collapses value when revealed
)

// ItemTrait is an immutable fact about an item.
type ItemTrait struct {
	ID                  string    `json:"id" yaml:"id"`
	Kind                TraitKind `json:"type" yaml:"type"`
	Description         string    `json:"description" yaml:"description"`
	DiscoveryDifficulty float64   `json:"discovery_difficulty" yaml:"discovery_difficulty"` // 0–1, higher = harder to surface
	LeveragePower       float64   `json:"leverage_power" yaml:"leverage_power"`             // Fraction of the ask removed when used
}

// Range is a visible [min, max] price estimate.
type Range [2]float64

// Min returns the lower bound.
func (r Range) Min() float64 { return r[0] }

// Max returns the upper bound.
func (r Range) Max() float64 { return r[1] }

// Width returns max - min.
func (r Range) Width() float64 { return r[1] - r[0] }

// Normalize collapses an inverted range to its midpoint.
func (r Range) Normalize() Range {
	if r[0] <= r[1] {
		return r
	}
	mid := (r[0] + r[1]) / 2
	return Range{mid, mid}
}

// PawnInfo holds the loan terms once an item has been pawned.
type PawnInfo struct {
	Principal float64 `json:"principal"`
	Rate      float64 `json:"rate"`
	StartDay  int     `json:"start_day"`
	DueDay    int     `json:"due_day"`
}

// Interest returns the flat interest owed on the loan.
func (p PawnInfo) Interest() float64 {
	return p.Principal * p.Rate
}

// Repayment returns principal plus interest.
func (p PawnInfo) Repayment() float64 {
	return p.Principal + p.Interest()
}

// Item is a physical object in the shop.
type Item struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Description    string      `json:"description,omitempty"`
	ChainID        string      `json:"chain_id,omitempty"` // Story chain that created the item, if any
	RealValue      float64     `json:"real_value"`         // Ground truth, never shown
	PerceivedValue *float64    `json:"perceived_value,omitempty"`
	Uncertainty    float64     `json:"uncertainty"`
	InitialRange   Range       `json:"initial_range"`
	CurrentRange   Range       `json:"current_range"`
	HiddenTraits   []ItemTrait `json:"hidden_traits"`   // Every trait the item carries
	RevealedTraits []ItemTrait `json:"revealed_traits"` // Subset of HiddenTraits by id
	Status         ItemStatus  `json:"status"`
	Pawn           *PawnInfo   `json:"pawn,omitempty"`

	AppraisalCount   int  `json:"appraisal_count"`
	HadNegativeEvent bool `json:"had_negative_event"` // A mishap or impatience already happened
	ForceSold        bool `json:"force_sold,omitempty"`
}

// Anchor returns the value the visible range is centred on.
func (it *Item) Anchor() float64 {
	if it.PerceivedValue != nil {
		return *it.PerceivedValue
	}
	return it.RealValue
}

// IsRevealed reports whether a trait with the given id has been discovered.
func (it *Item) IsRevealed(id string) bool {
	for _, t := range it.RevealedTraits {
		if t.ID == id {
			return true
		}
	}
	return false
}

// Undiscovered returns hidden traits not yet revealed, in authored order.
func (it *Item) Undiscovered() []ItemTrait {
	var out []ItemTrait
	for _, t := range it.HiddenTraits {
		if !it.IsRevealed(t.ID) {
			out = append(out, t)
		}
	}
	return out
}

// Reveal adds a trait to the revealed set. Returns false if already revealed.
func (it *Item) Reveal(t ItemTrait) bool {
	if it.IsRevealed(t.ID) {
		return false
	}
	it.RevealedTraits = append(it.RevealedTraits, t)
	return true
}

// Trait looks up a trait the item carries by id.
func (it *Item) Trait(id string) (ItemTrait, bool) {
	for _, t := range it.HiddenTraits {
		if t.ID == id {
			return t, true
		}
	}
	return ItemTrait{}, false
}

// KnownFake reports whether a FAKE trait has been revealed.
func (it *Item) KnownFake() bool {
	for _, t := range it.RevealedTraits {
		if t.Kind == TraitFake {
			return true
		}
	}
	return false
}

// SetStatus moves an ACTIVE item to a new status.
// Terminal states are final; returns false if the item was not ACTIVE.
func (it *Item) SetStatus(s ItemStatus) bool {
	if it.Status.Terminal() {
		return false
	}
	it.Status = s
	return true
}

// Clone returns a deep copy of the item.
func (it *Item) Clone() *Item {
	if it == nil {
		return nil
	}
	c := *it
	if it.PerceivedValue != nil {
		v := *it.PerceivedValue
		c.PerceivedValue = &v
	}
	if it.Pawn != nil {
		p := *it.Pawn
		c.Pawn = &p
	}
	c.HiddenTraits = append([]ItemTrait(nil), it.HiddenTraits...)
	c.RevealedTraits = append([]ItemTrait(nil), it.RevealedTraits...)
	return &c
}

// FindItem returns the item with the given id, or nil.
func FindItem(items []*Item, id string) *Item {
	for _, it := range items {
		if it.ID == id {
			return it
		}
	}
	return nil
}
