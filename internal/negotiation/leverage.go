package negotiation

import (
	"fmt"

	"github.com/talgya/pawnbroker/internal/shop"
)

// LeverageResult reports how a revealed trait moved the customer's ask.
type LeverageResult struct {
	TraitID  string  `json:"trait_id"`
	OldAsk   float64 `json:"old_ask"`
	NewAsk   float64 `json:"new_ask"`
	Floored  bool    `json:"floored"` // The ask hit the customer's minimum
	Dialogue string  `json:"dialogue"`
}

// ApplyLeverage uses a revealed FLAW or FAKE trait to push the ask (the
// customer's desired amount) down by the trait's leverage power. The ask
// never drops below the minimum and each trait can be used once per session.
// Leverage does not cost an offer.
func (s *Session) ApplyLeverage(traitID string) (LeverageResult, error) {
	t, err := s.usable(traitID)
	if err != nil {
		return LeverageResult{}, err
	}
	if t.Kind != shop.TraitFlaw && t.Kind != shop.TraitFake {
		return LeverageResult{}, fmt.Errorf("%w: %s is a %s trait", ErrWrongTraitKind, t.ID, t.Kind)
	}
	return s.lower(t, fmt.Sprintf("You point out the %s.", t.Description)), nil
}

// ApplyNarrativeTrigger uses a revealed STORY trait. The customer softens in
// the same way, framed as a shared moment rather than a criticism.
func (s *Session) ApplyNarrativeTrigger(traitID string) (LeverageResult, error) {
	t, err := s.usable(traitID)
	if err != nil {
		return LeverageResult{}, err
	}
	if t.Kind != shop.TraitStory {
		return LeverageResult{}, fmt.Errorf("%w: %s is a %s trait", ErrWrongTraitKind, t.ID, t.Kind)
	}
	return s.lower(t, fmt.Sprintf("You ask about the %s. They tell you the story.", t.Description)), nil
}

func (s *Session) usable(traitID string) (shop.ItemTrait, error) {
	if s.Closed() {
		return shop.ItemTrait{}, ErrSessionClosed
	}
	if s.usedTraits[traitID] {
		return shop.ItemTrait{}, fmt.Errorf("%w: %s", ErrTraitUsed, traitID)
	}
	it := s.customer.Item
	if it == nil || !it.IsRevealed(traitID) {
		return shop.ItemTrait{}, fmt.Errorf("%w: %s", ErrTraitNotRevealed, traitID)
	}
	for _, t := range it.RevealedTraits {
		if t.ID == traitID {
			return t, nil
		}
	}
	return shop.ItemTrait{}, fmt.Errorf("%w: %s", ErrTraitNotRevealed, traitID)
}

func (s *Session) lower(t shop.ItemTrait, line string) LeverageResult {
	s.usedTraits[t.ID] = true
	old := s.customer.DesiredAmount
	next := old * (1 - shop.Clamp(t.LeveragePower, 0, 1))
	floored := false
	if next <= s.customer.MinimumAmount {
		next = s.customer.MinimumAmount
		floored = true
	}
	s.customer.DesiredAmount = next
	return LeverageResult{
		TraitID:  t.ID,
		OldAsk:   old,
		NewAsk:   next,
		Floored:  floored,
		Dialogue: line,
	}
}
