// Package negotiation runs the offer/counter-offer loop with a single
// customer. A Session owns its own copy of the customer; patience and mood
// changes are visible through Session.Customer.
package negotiation

import (
	"errors"
	"fmt"

	"github.com/talgya/pawnbroker/internal/shop"
)

var (
	// ErrSessionClosed is returned for any action after the session reached
	// ACCEPTED or WALK_AWAY.
	ErrSessionClosed = errors.New("negotiation: session closed")

	ErrTraitNotRevealed = errors.New("negotiation: trait not revealed")
	ErrTraitUsed        = errors.New("negotiation: trait already used")
	ErrWrongTraitKind   = errors.New("negotiation: trait cannot be used that way")
)

// State is the session's lifecycle state.
type State string

const (
	StateActive   State = "ACTIVE"
	StateAccepted State = "ACCEPTED"
	StateWalkAway State = "WALK_AWAY"
)

// Verdict is the customer's response to one offer.
type Verdict string

const (
	VerdictInsult          Verdict = "INSULT"
	VerdictPrincipalTooLow Verdict = "PRINCIPAL_TOO_LOW"
	VerdictInterestTooHigh Verdict = "INTEREST_TOO_HIGH"
	VerdictRateMismatch    Verdict = "RATE_MISMATCH"
	VerdictAccepted        Verdict = "ACCEPTED"
	VerdictWalkAway        Verdict = "WALK_AWAY"
)

// Tier picks the acceptance dialogue. It is unrelated to the story deal tiers.
type Tier string

const (
	TierFleeced Tier = "fleeced"
	TierFair    Tier = "fair"
	TierPremium Tier = "premium"
)

const (
	// Rates at or above this are refused unless the principal clears the
	// customer's minimum by mismatchMargin.
	highRate       = 0.10
	mismatchMargin = 1.1

	fleecedBelow = 0.85 // Principal under desired by this ratio
	premiumAbove = 1.05

	historyDepth = 3
)

// Offer is one submitted pair of terms.
type Offer struct {
	Principal float64 `json:"principal"`
	Rate      float64 `json:"rate"`
	Verdict   Verdict `json:"verdict"`
}

// Result is the customer's response to an offer or rejection.
type Result struct {
	Verdict      Verdict   `json:"verdict"`
	State        State     `json:"state"`
	Tier         Tier      `json:"tier,omitempty"`
	Mood         shop.Mood `json:"mood"`
	PatienceCost int       `json:"patience_cost"`
	PatienceLeft int       `json:"patience_left"`
	Dialogue     string    `json:"dialogue"`

	MinimumRevealed bool    `json:"minimum_revealed"`
	Minimum         float64 `json:"minimum,omitempty"` // Set once revealed
}

// Session is one negotiation.
type Session struct {
	customer *shop.Customer
	state    State
	history  []Offer

	minimumRevealed bool
	usedTraits      map[string]bool
}

// NewSession starts negotiating with a copy of c.
func NewSession(c *shop.Customer) *Session {
	cp := c.Clone()
	if cp.Mood == "" {
		cp.Mood = shop.MoodNeutral
	}
	return &Session{
		customer:   cp,
		state:      StateActive,
		usedTraits: make(map[string]bool),
	}
}

// Customer returns the session's customer. Callers must not retain it past
// the session.
func (s *Session) Customer() *shop.Customer { return s.customer }

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Closed reports whether the session reached a terminal state.
func (s *Session) Closed() bool { return s.state != StateActive }

// History returns up to the last three offers, oldest first.
func (s *Session) History() []Offer {
	return append([]Offer(nil), s.history...)
}

// Ask returns the customer's current asking price, their desired amount
// after any leverage.
func (s *Session) Ask() float64 { return s.customer.DesiredAmount }

// MinimumRevealed reports whether the customer has named their floor.
func (s *Session) MinimumRevealed() bool { return s.minimumRevealed }

// SubmitOffer evaluates an offer. The first failing gate decides the verdict:
// insult, principal below minimum, repayment above max, high rate from a
// customer who can't justify it. Anything else is accepted.
func (s *Session) SubmitOffer(principal, rate float64) (Result, error) {
	if s.Closed() {
		return Result{}, ErrSessionClosed
	}
	c := s.customer

	var (
		verdict Verdict
		cost    int
		mood    shop.Mood
		line    string
		tier    Tier
	)
	switch {
	case principal < c.MinimumAmount*shop.InsultMultiplier(c.Style):
		verdict, cost, mood = VerdictInsult, 2, shop.MoodAngry
		line = or(c.Dialogue.Insulted, "Are you joking? That's insulting.")
	case principal < c.MinimumAmount:
		verdict, cost, mood = VerdictPrincipalTooLow, 1, shop.MoodAnnoyed
		s.minimumRevealed = true
		line = or(c.Dialogue.TooLow, fmt.Sprintf("I can't go below $%.0f.", c.MinimumAmount))
	case rate > 0 && principal*(1+rate) > c.MaxRepayment:
		verdict, cost, mood = VerdictInterestTooHigh, 1, shop.MoodAnnoyed
		line = or(c.Dialogue.RateTooHigh, "I'd never be able to pay that back.")
	case rate >= highRate && principal < c.MinimumAmount*mismatchMargin:
		verdict, cost, mood = VerdictRateMismatch, 1, shop.MoodAnnoyed
		line = or(c.Dialogue.RateTooHigh, "That rate is too steep for what you're offering.")
	default:
		verdict, mood = VerdictAccepted, shop.MoodHappy
		tier = tierFor(principal, c.DesiredAmount)
		line = acceptLine(c.Dialogue, tier)
	}

	c.Patience -= cost
	if c.Patience < 0 {
		c.Patience = 0
	}
	c.Mood = mood

	switch {
	case verdict == VerdictAccepted:
		s.state = StateAccepted
	case c.Patience <= 0:
		verdict = VerdictWalkAway
		c.Mood = shop.MoodAngry
		s.state = StateWalkAway
		line = or(c.Dialogue.WalkAway, "Forget it. I'll go somewhere else.")
	}

	s.record(Offer{Principal: principal, Rate: rate, Verdict: verdict})
	return s.result(verdict, tier, cost, line), nil
}

// Reject ends the session from the shop's side.
func (s *Session) Reject() (Result, error) {
	if s.Closed() {
		return Result{}, ErrSessionClosed
	}
	s.state = StateWalkAway
	s.customer.Mood = shop.MoodAnnoyed
	line := or(s.customer.Dialogue.Rejected, "Fine. Your loss.")
	return s.result(VerdictWalkAway, "", 0, line), nil
}

// SpendPatience removes patience outside of an offer, e.g. while the item is
// being appraised. Patience never drops below zero.
func (s *Session) SpendPatience(n int) int {
	if s.Closed() || n <= 0 {
		return s.customer.Patience
	}
	s.customer.Patience -= n
	if s.customer.Patience < 0 {
		s.customer.Patience = 0
	}
	if s.customer.Patience <= 1 && s.customer.Mood == shop.MoodNeutral {
		s.customer.Mood = shop.MoodAnnoyed
	}
	return s.customer.Patience
}

// ReplaceItem swaps in an updated copy of the customer's item.
func (s *Session) ReplaceItem(it *shop.Item) {
	s.customer.Item = it
}

func (s *Session) record(o Offer) {
	s.history = append(s.history, o)
	if len(s.history) > historyDepth {
		s.history = s.history[len(s.history)-historyDepth:]
	}
}

func (s *Session) result(v Verdict, tier Tier, cost int, line string) Result {
	r := Result{
		Verdict:         v,
		State:           s.state,
		Tier:            tier,
		Mood:            s.customer.Mood,
		PatienceCost:    cost,
		PatienceLeft:    s.customer.Patience,
		Dialogue:        line,
		MinimumRevealed: s.minimumRevealed,
	}
	if s.minimumRevealed {
		r.Minimum = s.customer.MinimumAmount
	}
	return r
}

func tierFor(principal, desired float64) Tier {
	if desired <= 0 {
		return TierFair
	}
	ratio := principal / desired
	switch {
	case ratio < fleecedBelow:
		return TierFleeced
	case ratio > premiumAbove:
		return TierPremium
	}
	return TierFair
}

func acceptLine(d shop.Dialogue, tier Tier) string {
	switch tier {
	case TierFleeced:
		return or(d.Fleeced, or(d.Fair, "I suppose it'll have to do."))
	case TierPremium:
		return or(d.Premium, or(d.Fair, "That's more than I hoped for. Thank you."))
	}
	return or(d.Fair, "Deal.")
}

func or(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
