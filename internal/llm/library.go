package llm

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/pawnbroker/internal/shop"
	"github.com/talgya/pawnbroker/internal/valuation"
)

// archetype is a hand-written customer the library can always produce.
type archetype struct {
	name, description string
	style             shop.NegotiationStyle
	tags              []string
	patience          int
	affinity          shop.Axis // Reputation axis that draws this customer in
	item              string
	itemDescription   string
	realValue         float64
	perceivedRatio    float64 // 0 = no perceived anchor
	uncertainty       float64
	traits            []shop.ItemTrait
	dialogue          shop.Dialogue
}

var archetypes = []archetype{
	{
		name: "Walt Brenner", description: "A retired machinist with grease still under his nails.",
		style: shop.StyleProfessional, patience: 4,
		item: "Pocket watch", itemDescription: "Gold-plated, engraved on the back.", realValue: 240, perceivedRatio: 1.25, uncertainty: 0.3,
		traits: []shop.ItemTrait{
			{ID: "worn_plating", Kind: shop.TraitFlaw, Description: "The plating is worn through at the crown.", DiscoveryDifficulty: 0.3, LeveragePower: 0.1},
			{ID: "railroad_engraving", Kind: shop.TraitStory, Description: "Engraved for forty years of service on the railroad.", DiscoveryDifficulty: 0.5, LeveragePower: 0.05},
		},
		dialogue: shop.Dialogue{Greeting: "Afternoon. This watch kept time for my father.", Fair: "That's honest. Thank you.", Insulted: "I know what it's worth, son.", WalkAway: "I'll try across town."},
	},
	{
		name: "Dana Ruiz", description: "A nurse between double shifts, counting every dollar.",
		style: shop.StyleDesperate, tags: []string{shop.TagHighRisk}, patience: 3, affinity: shop.AxisHumanity,
		item: "Engagement ring", itemDescription: "A small diamond in a white-gold band.", realValue: 420, perceivedRatio: 1.4, uncertainty: 0.35,
		traits: []shop.ItemTrait{
			{ID: "chipped_stone", Kind: shop.TraitFlaw, Description: "A chip on the girdle of the stone.", DiscoveryDifficulty: 0.6, LeveragePower: 0.15},
		},
		dialogue: shop.Dialogue{Greeting: "I need rent by Friday. Please, just look at it.", Fair: "Thank you. You don't know what this means.", Fleeced: "I guess I don't have a choice.", RateTooHigh: "I can't pay that back. Not with that rate."},
	},
	{
		name: "Vincent Kole", description: "Sharp suit, no receipts, too many rings.",
		style: shop.StyleDeceptive, patience: 2, affinity: shop.AxisUnderworld,
		item: "Designer handbag", itemDescription: "Monogrammed leather with gold hardware.", realValue: 90, perceivedRatio: 9, uncertainty: 0.45,
		traits: []shop.ItemTrait{
			{ID: "bad_stitching", Kind: shop.TraitFake, Description: "The stitching count is wrong for the brand.", DiscoveryDifficulty: 0.5, LeveragePower: 0.3},
		},
		dialogue: shop.Dialogue{Greeting: "Genuine article. Retail's two grand easy.", Insulted: "You're wasting my time.", WalkAway: "Plenty of shops on this street."},
	},
	{
		name: "Mei Tanaka", description: "An antiques dealer who knows exactly what she has.",
		style: shop.StyleAggressive, patience: 3, affinity: shop.AxisCredibility,
		item: "Porcelain vase", itemDescription: "Blue-and-white, hairline crack near the base.", realValue: 1100, perceivedRatio: 1.1, uncertainty: 0.25,
		traits: []shop.ItemTrait{
			{ID: "hairline_crack", Kind: shop.TraitFlaw, Description: "A restored hairline crack.", DiscoveryDifficulty: 0.4, LeveragePower: 0.2},
			{ID: "estate_provenance", Kind: shop.TraitStory, Description: "Came from the Whitcombe estate sale.", DiscoveryDifficulty: 0.7, LeveragePower: 0.05},
		},
		dialogue: shop.Dialogue{Greeting: "I don't haggle twice. Make it a good number.", Premium: "Now that is a professional.", Insulted: "Don't insult either of us."},
	},
	{
		name: "Tommy Hale", description: "A college kid who needs a plane ticket home.",
		style: shop.StyleProfessional, patience: 5,
		item: "Electric guitar", itemDescription: "A scuffed sunburst solid-body.", realValue: 310, uncertainty: 0.2,
		traits: []shop.ItemTrait{
			{ID: "replaced_pickups", Kind: shop.TraitFlaw, Description: "The original pickups were swapped out.", DiscoveryDifficulty: 0.5, LeveragePower: 0.1},
		},
		dialogue: shop.Dialogue{Greeting: "Hey. Any chance you take guitars?", Fair: "Sweet, that works."},
	},
	{
		name: "Rosa Delgado", description: "A grandmother with a folded envelope of photographs.",
		style: shop.StyleDesperate, tags: []string{shop.TagHighRisk}, patience: 4, affinity: shop.AxisHumanity,
		item: "Silver locket", itemDescription: "Tarnished silver, a photograph inside.", realValue: 160, perceivedRatio: 1.5, uncertainty: 0.3,
		traits: []shop.ItemTrait{
			{ID: "wedding_photo", Kind: shop.TraitStory, Description: "A wedding photograph from 1962.", DiscoveryDifficulty: 0.2, LeveragePower: 0.05},
		},
		dialogue: shop.Dialogue{Greeting: "My husband gave me this. I'll come back for it, I promise.", Fair: "God bless you."},
	},
}

// Library is the deterministic fallback source. The same seed, day, slot
// and reputation bucket always yield the same customer, so calls are safe
// to retry.
type Library struct {
	seed  int64
	noise opensimplex.Noise
}

// NewLibrary creates a library whose day-to-day drift is seeded by seed.
func NewLibrary(seed int64) *Library {
	return &Library{seed: seed, noise: opensimplex.NewNormalized(seed)}
}

var libraryNamespace = uuid.MustParse("6f1f9a8e-3b7c-4d2e-9a51-2c8e7d4b0f11")

// NewCustomer never fails.
func (l *Library) NewCustomer(_ context.Context, day, slot int, rep shop.Reputation) (*shop.Customer, error) {
	return l.Customer(day, slot, rep), nil
}

// Customer builds the library customer for a queue position.
func (l *Library) Customer(day, slot int, rep shop.Reputation) *shop.Customer {
	key := fmt.Sprintf("%d:%d:%d:%s", l.seed, day, slot, rep.Bucket())
	pool := l.pool(rep)
	a := pool[pick(key, len(pool))]

	// Smooth drift: prices and tempers wander from day to day.
	value := 0.85 + 0.3*l.noise.Eval2(float64(day)*0.15, float64(slot)*1.7)
	temper := l.noise.Eval2(float64(day)*0.15+100, float64(slot)*1.7)

	it := &shop.Item{
		ID:           uuid.NewSHA1(libraryNamespace, []byte("item:"+key)).String(),
		Name:         a.item,
		Description:  a.itemDescription,
		RealValue:    valuation.HumanRound(a.realValue * value),
		Uncertainty:  a.uncertainty,
		HiddenTraits: append([]shop.ItemTrait(nil), a.traits...),
		Status:       shop.StatusActive,
	}
	if a.perceivedRatio > 0 {
		pv := valuation.HumanRound(it.RealValue * a.perceivedRatio)
		it.PerceivedValue = &pv
	}
	it.InitialRange = valuation.ComputeRange(it.RealValue, it.PerceivedValue, it.Uncertainty)
	it.CurrentRange = it.InitialRange

	patience := a.patience
	switch {
	case temper < 0.25:
		patience--
	case temper > 0.75:
		patience++
	}

	desired := valuation.HumanRound(it.Anchor() * 0.6)
	c := &shop.Customer{
		ID:            uuid.NewSHA1(libraryNamespace, []byte("customer:"+key)).String(),
		Name:          a.name,
		Description:   a.description,
		Style:         a.style,
		Tags:          append([]string(nil), a.tags...),
		Patience:      shop.Clamp(patience, 1, 6),
		Mood:          shop.MoodNeutral,
		MinimumAmount: valuation.HumanRound(desired * 0.7),
		DesiredAmount: desired,
		MaxRepayment:  valuation.HumanRound(desired * 1.3),
		Interaction:   shop.InteractionPawn,
		Item:          it,
		Dialogue:      a.dialogue,
	}
	c.MaxPatience = c.Patience
	return c
}

// pool returns the archetypes a reputation attracts. Customers whose
// affinity axis is at 60 or more appear twice as often.
func (l *Library) pool(rep shop.Reputation) []archetype {
	out := make([]archetype, 0, len(archetypes)*2)
	for _, a := range archetypes {
		out = append(out, a)
		if a.affinity == "" {
			continue
		}
		if v, ok := rep.Get(a.affinity); ok && v >= 60 {
			out = append(out, a)
		}
	}
	return out
}

func pick(key string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
