package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/talgya/pawnbroker/internal/shop"
	"github.com/talgya/pawnbroker/internal/valuation"
)

// Source produces walk-in customers for a day. slot is the customer's
// position in the day's queue.
type Source interface {
	NewCustomer(ctx context.Context, day, slot int, rep shop.Reputation) (*shop.Customer, error)
}

// Generator asks a chat model for a customer and validates the result.
type Generator struct {
	completer Completer
	maxTokens int
}

// NewGenerator wraps a completer. A nil completer yields a generator that
// always fails, which the fallback wrapper turns into library customers.
func NewGenerator(c Completer) *Generator {
	return &Generator{completer: c, maxTokens: 700}
}

const customerSystem = `You write walk-in customers for a pawn shop story game. Each customer brings one item to pawn.

Respond ONLY with a JSON object:
{
  "name": "Full name",
  "description": "One sentence about who they are",
  "style": "Professional",
  "tags": [],
  "patience": 3,
  "minimum_amount": 120,
  "desired_amount": 180,
  "max_repayment": 240,
  "dialogue": {"greeting": "...", "pitch": "...", "fair": "...", "fleeced": "...", "premium": "...", "insulted": "...", "too_low": "...", "rate_too_high": "...", "walk_away": "...", "rejected": "..."},
  "item": {
    "name": "Item name",
    "description": "What it looks like",
    "real_value": 250,
    "perceived_value": 300,
    "uncertainty": 0.3,
    "traits": [{"id": "short_id", "type": "FLAW", "description": "...", "discovery_difficulty": 0.4, "leverage_power": 0.1}]
  }
}

Rules:
- style: one of "Professional", "Aggressive", "Desperate", "Deceptive"
- tags: may include "HighRisk" for customers in real trouble
- patience: 1 to 6
- minimum_amount <= desired_amount, both in dollars
- uncertainty: 0.05 to 0.6
- trait type: one of "FLAW", "STORY", "FAKE"; at most one FAKE
- perceived_value may be omitted when the customer has no strong belief about the price
- Keep every line of dialogue under 25 words`

// customerDoc is the model's JSON answer.
type customerDoc struct {
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Style         string        `json:"style"`
	Tags          []string      `json:"tags"`
	Patience      int           `json:"patience"`
	MinimumAmount float64       `json:"minimum_amount"`
	DesiredAmount float64       `json:"desired_amount"`
	MaxRepayment  float64       `json:"max_repayment"`
	Dialogue      shop.Dialogue `json:"dialogue"`
	Item          *struct {
		Name           string           `json:"name"`
		Description    string           `json:"description"`
		RealValue      float64          `json:"real_value"`
		PerceivedValue *float64         `json:"perceived_value"`
		Uncertainty    float64          `json:"uncertainty"`
		Traits         []shop.ItemTrait `json:"traits"`
	} `json:"item"`
}

// NewCustomer generates one customer. The prompt carries the day and the
// shop's reputation so the model can pitch the clientele accordingly.
func (g *Generator) NewCustomer(ctx context.Context, day, slot int, rep shop.Reputation) (*shop.Customer, error) {
	if g == nil || g.completer == nil {
		return nil, fmt.Errorf("LLM client not configured")
	}
	if c, ok := g.completer.(*Client); ok && !c.Enabled() {
		return nil, fmt.Errorf("LLM client not configured")
	}

	prompt := fmt.Sprintf(
		"Day %d, customer #%d.\nShop reputation (0-100): humanity %.0f, credibility %.0f, underworld %.0f.\n%s\n\nWho walks in?",
		day, slot+1, rep.Humanity, rep.Credibility, rep.Underworld, clientele(rep))

	response, err := g.completer.Complete(ctx, customerSystem, prompt, g.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("generate customer: %w", err)
	}
	return parseCustomer(response)
}

// clientele describes who a reputation attracts.
func clientele(rep shop.Reputation) string {
	var notes []string
	if rep.Underworld >= 60 {
		notes = append(notes, "Word on the street is this shop asks no questions; shady sellers and stolen goods are common.")
	}
	if rep.Humanity >= 60 {
		notes = append(notes, "The shop is known for kindness; desperate people come hoping for help.")
	}
	if rep.Credibility >= 60 {
		notes = append(notes, "Collectors trust the appraisals here; bring better pieces.")
	}
	if rep.Credibility <= 20 {
		notes = append(notes, "Nobody trusts the shop's appraisals; expect fakes and hard bargaining.")
	}
	if len(notes) == 0 {
		return "An ordinary neighbourhood crowd."
	}
	return strings.Join(notes, " ")
}

func parseCustomer(response string) (*shop.Customer, error) {
	// Find JSON object in response.
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	var doc customerDoc
	if err := json.Unmarshal([]byte(response[start:end+1]), &doc); err != nil {
		return nil, fmt.Errorf("parse customer: %w", err)
	}
	if strings.TrimSpace(doc.Name) == "" {
		return nil, fmt.Errorf("customer has no name")
	}
	if doc.Item == nil || strings.TrimSpace(doc.Item.Name) == "" {
		return nil, fmt.Errorf("customer %q brought no item", doc.Name)
	}
	if doc.Item.RealValue <= 0 {
		return nil, fmt.Errorf("item %q has no value", doc.Item.Name)
	}

	it := &shop.Item{
		ID:          uuid.NewString(),
		Name:        doc.Item.Name,
		Description: doc.Item.Description,
		RealValue:   doc.Item.RealValue,
		Uncertainty: shop.Clamp(doc.Item.Uncertainty, 0.05, 0.6),
		Status:      shop.StatusActive,
	}
	if pv := doc.Item.PerceivedValue; pv != nil && *pv > 0 {
		v := *pv
		it.PerceivedValue = &v
	}
	it.HiddenTraits = cleanTraits(doc.Item.Traits)
	it.InitialRange = valuation.ComputeRange(it.RealValue, it.PerceivedValue, it.Uncertainty)
	it.CurrentRange = it.InitialRange

	c := &shop.Customer{
		ID:            uuid.NewString(),
		Name:          doc.Name,
		Description:   doc.Description,
		Style:         parseStyle(doc.Style),
		Tags:          cleanTags(doc.Tags),
		Patience:      shop.Clamp(doc.Patience, 1, 6),
		Mood:          shop.MoodNeutral,
		MinimumAmount: doc.MinimumAmount,
		DesiredAmount: doc.DesiredAmount,
		MaxRepayment:  doc.MaxRepayment,
		Interaction:   shop.InteractionPawn,
		Item:          it,
		Dialogue:      doc.Dialogue,
	}
	if doc.Patience == 0 {
		c.Patience = defaultPatience
	}
	c.MaxPatience = c.Patience

	// Keep the money consistent with the item.
	if c.DesiredAmount <= 0 {
		c.DesiredAmount = valuation.HumanRound(it.Anchor() * 0.6)
	}
	if c.MinimumAmount <= 0 || c.MinimumAmount > c.DesiredAmount {
		c.MinimumAmount = valuation.HumanRound(c.DesiredAmount * 0.7)
	}
	if c.MaxRepayment < c.DesiredAmount {
		c.MaxRepayment = valuation.HumanRound(c.DesiredAmount * 1.3)
	}
	if c.Dialogue.Greeting == "" {
		c.Dialogue.Greeting = "Hello. I was hoping you could take a look at this."
	}
	return c, nil
}

const defaultPatience = 3

func parseStyle(s string) shop.NegotiationStyle {
	for _, st := range []shop.NegotiationStyle{shop.StyleProfessional, shop.StyleAggressive, shop.StyleDesperate, shop.StyleDeceptive} {
		if strings.EqualFold(s, string(st)) {
			return st
		}
	}
	return shop.StyleProfessional
}

func cleanTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		if strings.EqualFold(t, shop.TagHighRisk) {
			out = append(out, shop.TagHighRisk)
		}
	}
	return out
}

// cleanTraits drops traits of unknown kind, keeps at most one FAKE, gives
// every trait a unique id and clamps the numeric fields.
func cleanTraits(in []shop.ItemTrait) []shop.ItemTrait {
	var out []shop.ItemTrait
	seen := make(map[string]bool)
	hasFake := false
	for i, t := range in {
		t.Kind = shop.TraitKind(strings.ToUpper(string(t.Kind)))
		switch t.Kind {
		case shop.TraitFlaw, shop.TraitStory:
		case shop.TraitFake:
			if hasFake {
				continue
			}
			hasFake = true
		default:
			continue
		}
		if t.ID == "" || seen[t.ID] {
			t.ID = fmt.Sprintf("trait_%d", i+1)
		}
		seen[t.ID] = true
		t.DiscoveryDifficulty = shop.Clamp(t.DiscoveryDifficulty, 0, 1)
		t.LeveragePower = shop.Clamp(t.LeveragePower, 0, 0.5)
		out = append(out, t)
	}
	return out
}
