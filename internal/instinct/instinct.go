// Package instinct gives the player a gut read on an offer before it is
// submitted. Reads are pure: the same offer, rate and customer always produce
// the same feeling.
package instinct

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/talgya/pawnbroker/internal/shop"
)

// Category names the situation the advisor recognised.
type Category string

const (
	CategoryFakeBargain     Category = "fake_bargain"
	CategoryHighUncertainty Category = "high_uncertainty"
	CategoryPremium         Category = "premium"
	CategoryCharity         Category = "charity"
	CategoryInsult          Category = "insult"
	CategoryPredatory       Category = "predatory"
	CategoryHaggling        Category = "haggling"
	CategoryStandard        Category = "standard"
)

// Tone colours how the feeling is presented.
type Tone string

const (
	TonePositive Tone = "positive"
	ToneNeutral  Tone = "neutral"
	ToneWarning  Tone = "warning"
	ToneDanger   Tone = "danger"
)

// Feeling is a single instinct read.
type Feeling struct {
	Category Category `json:"category"`
	Tone     Tone     `json:"tone"`
	Text     string   `json:"text"`
}

const (
	fakeOfferRatio      = 0.5  // Under half the real value of a known fake is a bargain
	uncertainRangeRatio = 3.0  // Range max/min above this is a blind guess
	premiumRatio        = 1.15 // Over desired by this much is generous
	predatoryRate       = 0.20
)

var tones = map[Category]Tone{
	CategoryFakeBargain:     ToneWarning,
	CategoryHighUncertainty: ToneWarning,
	CategoryPremium:         TonePositive,
	CategoryCharity:         TonePositive,
	CategoryInsult:          ToneDanger,
	CategoryPredatory:       ToneWarning,
	CategoryHaggling:        ToneNeutral,
	CategoryStandard:        ToneNeutral,
}

// Flavour lines per category. %[1]s is the offer, %[2]s the customer's name.
var lines = map[Category][]string{
	CategoryFakeBargain: {
		"%[1]s for a fake. Cheap enough that %[2]s might not argue.",
		"You know it's paste, and %[1]s is a paste price.",
		"A knockoff at %[1]s. You could move it to someone less careful.",
	},
	CategoryHighUncertainty: {
		"You honestly have no idea what this is worth yet.",
		"The estimate is all over the place. Another look might help.",
		"Offering blind. The range is too wide to trust.",
	},
	CategoryPremium: {
		"%[2]s will walk out smiling. %[1]s is more than they hoped for.",
		"Generous. Maybe too generous.",
		"That's well past what %[2]s needs.",
	},
	CategoryCharity: {
		"No interest at all? That's a gift, not a loan.",
		"Zero percent. The ledger won't thank you, but %[2]s might.",
		"You'd be lending %[1]s for nothing in return.",
	},
	CategoryInsult: {
		"%[1]s? %[2]s is going to take that personally.",
		"That's not an offer, that's an insult.",
		"Way too low. Expect a reaction.",
	},
	CategoryPredatory: {
		"That rate will bury %[2]s.",
		"They're in no position to refuse. That's the problem.",
		"Steep terms for someone this desperate.",
	},
	CategoryHaggling: {
		"A little under what %[2]s needs. They might push back.",
		"Close, but %[2]s is holding out for more.",
		"They'll haggle at %[1]s.",
	},
	CategoryStandard: {
		"Feels like a fair deal.",
		"Nothing unusual about %[1]s for this.",
		"A normal day's business.",
	},
}

// Read classifies an offer at a rate for a customer and item. The first
// matching check wins, in this order: cheap known fake, wide range, premium,
// charity, insult, predatory, haggling, standard.
func Read(offer, rate float64, customer *shop.Customer, item *shop.Item) Feeling {
	if customer == nil {
		return feeling(CategoryStandard, offer, rate, "", "")
	}
	if item == nil {
		item = customer.Item
	}
	cat := classify(offer, rate, customer, item)
	return feeling(cat, offer, rate, customer.ID, customer.Name)
}

func classify(offer, rate float64, c *shop.Customer, item *shop.Item) Category {
	if item != nil {
		if item.KnownFake() && offer < item.RealValue*fakeOfferRatio {
			return CategoryFakeBargain
		}
		lo, hi := item.CurrentRange.Min(), item.CurrentRange.Max()
		if lo <= 0 || hi/lo > uncertainRangeRatio {
			return CategoryHighUncertainty
		}
	}
	switch {
	case offer > c.DesiredAmount*premiumRatio:
		return CategoryPremium
	case rate == 0:
		return CategoryCharity
	case offer < c.MinimumAmount*shop.InsultMultiplier(c.Style):
		return CategoryInsult
	case rate >= predatoryRate && (c.Style == shop.StyleDesperate || c.HasTag(shop.TagHighRisk)):
		return CategoryPredatory
	case offer < c.MinimumAmount:
		return CategoryHaggling
	}
	return CategoryStandard
}

func feeling(cat Category, offer, rate float64, customerID, name string) Feeling {
	options := lines[cat]
	idx := int(pick(offer, rate, customerID) % uint32(len(options)))
	if name == "" {
		name = "they"
	}
	text := options[idx]
	if strings.Contains(text, "%[") {
		text = fmt.Sprintf(text, "$"+humanize.CommafWithDigits(offer, 2), name)
	}
	return Feeling{Category: cat, Tone: tones[cat], Text: text}
}

// pick hashes the inputs so repeated reads of the same offer agree.
func pick(offer, rate float64, customerID string) uint32 {
	h := fnv.New32a()
	fmt.Fprintf(h, "%.2f|%.4f|%s", offer, rate, customerID)
	return h.Sum32()
}
