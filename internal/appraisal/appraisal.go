// Package appraisal resolves a single appraisal action: it rolls for a random
// event, attempts trait discovery, and narrows or widens the visible range.
//
// Draw order from the Source is fixed: one event roll (skipped on the first
// appraisal), one Intn for a lucky find, then one roll per undiscovered trait.
package appraisal

import (
	"fmt"
	"math"
	"strings"

	"github.com/talgya/pawnbroker/internal/entropy"
	"github.com/talgya/pawnbroker/internal/shop"
	"github.com/talgya/pawnbroker/internal/valuation"
)

// Event is the random outcome attached to an appraisal.
type Event string

const (
	EventNormal    Event = "NORMAL"
	EventMishap    Event = "MISHAP"
	EventImpatient Event = "IMPATIENT"
	EventLuckyFind Event = "LUCKY_FIND"
)

// Failure names why an appraisal could not be performed.
type Failure string

const (
	FailNoCustomer Failure = "NO_CUSTOMER"
	FailNoItem     Failure = "NO_ITEM"
	FailNoAP       Failure = "NO_AP"
	FailNoPatience Failure = "NO_PATIENCE"
)

// Event bands over a single uniform roll.
const (
	mishapBand    = 0.05
	impatientBand = 0.15
	luckyBand     = 0.20

	recoveryLuckyChance      = 0.10 // Only event possible after a negative one
	mishapUncertaintyCeiling = 0.15 // Mishaps need a confident appraiser
	impatientMinAppraisals   = 2
)

const (
	convergence      = 0.15 // Fraction of the gap to the anchor closed per appraisal
	uncertaintyDecay = 0.85
	uncertaintyFloor = 0.05

	mishapWiden    = 0.05 // Of the anchor, each side
	mishapCeiling  = 3.0  // Max bound as a multiple of the anchor
	mishapPenalty  = 0.05
	uncertaintyMax = 0.5

	discoveryBase  = 0.5
	discoverySlope = 0.3
)

// Result is the outcome of one appraisal. Item is an updated copy; the input
// item is never modified.
type Result struct {
	OK      bool    `json:"ok"`
	Failure Failure `json:"failure,omitempty"`

	Event      Event            `json:"event,omitempty"`
	Item       *shop.Item       `json:"item,omitempty"`
	Discovered []shop.ItemTrait `json:"discovered,omitempty"`

	ActionPointCost int    `json:"action_point_cost"`
	PatienceCost    int    `json:"patience_cost"`
	Log             string `json:"log"`
}

// Perform runs one appraisal of item for customer, given the shop's remaining
// action points.
func Perform(item *shop.Item, customer *shop.Customer, actionPoints int, src entropy.Source) Result {
	switch {
	case customer == nil:
		return fail(FailNoCustomer, "Nobody is at the counter.")
	case item == nil:
		return fail(FailNoItem, "There is nothing on the counter to appraise.")
	case actionPoints <= 0:
		return fail(FailNoAP, "You're out of time for today.")
	case customer.Patience <= 0:
		return fail(FailNoPatience, customer.Name+" has run out of patience.")
	}

	next := item.Clone()
	event := rollEvent(item, src)

	res := Result{
		OK:              true,
		Event:           event,
		ActionPointCost: 1,
		PatienceCost:    1,
	}
	if event == EventImpatient {
		res.PatienceCost++
	}
	if event == EventMishap || event == EventImpatient {
		next.HadNegativeEvent = true
	}

	if event == EventLuckyFind {
		if undiscovered := next.Undiscovered(); len(undiscovered) > 0 {
			t := undiscovered[src.Intn(len(undiscovered))]
			if next.Reveal(t) {
				res.Discovered = append(res.Discovered, t)
			}
		}
	}
	if event != EventMishap {
		for _, t := range next.Undiscovered() {
			if src.Float64() < discoveryChance(t) && next.Reveal(t) {
				res.Discovered = append(res.Discovered, t)
			}
		}
	}

	if event == EventMishap {
		widen(next)
	} else {
		converge(next)
	}

	for _, t := range res.Discovered {
		if t.Kind == shop.TraitFake {
			next.PerceivedValue = nil
			next.CurrentRange = valuation.ComputeRange(next.RealValue, nil, next.Uncertainty)
			break
		}
	}

	next.AppraisalCount++
	res.Item = next
	res.Log = describe(next, event, res.Discovered)
	return res
}

func fail(f Failure, msg string) Result {
	return Result{Failure: f, Log: msg}
}

// rollEvent picks the event for this appraisal. The count used for the
// impatience gate is the count before this appraisal.
func rollEvent(item *shop.Item, src entropy.Source) Event {
	if item.AppraisalCount == 0 {
		return EventNormal
	}
	r := src.Float64()
	if item.HadNegativeEvent {
		if r < recoveryLuckyChance {
			return EventLuckyFind
		}
		return EventNormal
	}
	switch {
	case r < mishapBand:
		if item.Uncertainty < mishapUncertaintyCeiling {
			return EventMishap
		}
	case r < impatientBand:
		if item.AppraisalCount >= impatientMinAppraisals {
			return EventImpatient
		}
	case r < luckyBand:
		return EventLuckyFind
	}
	return EventNormal
}

func discoveryChance(t shop.ItemTrait) float64 {
	return discoveryBase - t.DiscoveryDifficulty*discoverySlope
}

// converge pulls both bounds toward the anchor and tightens uncertainty.
// Bounds never move outward.
func converge(it *shop.Item) {
	anchor := it.Anchor()
	lo, hi := it.CurrentRange.Min(), it.CurrentRange.Max()

	newLo := lo + (anchor-lo)*convergence
	newHi := hi - (hi-anchor)*convergence
	newLo = math.Max(newLo, lo)
	newHi = math.Min(newHi, hi)

	it.CurrentRange = shop.Range{newLo, newHi}.Normalize()
	it.Uncertainty = math.Max(it.Uncertainty*uncertaintyDecay, uncertaintyFloor)
}

// widen pushes both bounds out after a mishap.
func widen(it *shop.Item) {
	anchor := it.Anchor()
	step := anchor * mishapWiden
	ceiling := anchor * mishapCeiling
	if ceiling < 0 {
		ceiling = 0
	}

	lo := shop.Clamp(it.CurrentRange.Min()-step, 0, ceiling)
	hi := shop.Clamp(it.CurrentRange.Max()+step, 0, ceiling)

	it.CurrentRange = shop.Range{lo, hi}.Normalize()
	it.Uncertainty = math.Min(it.Uncertainty+mishapPenalty, uncertaintyMax)
}

func describe(it *shop.Item, event Event, found []shop.ItemTrait) string {
	var b strings.Builder
	switch event {
	case EventMishap:
		fmt.Fprintf(&b, "Your loupe slips while examining the %s. The estimate gets worse.", it.Name)
	case EventImpatient:
		fmt.Fprintf(&b, "You take your time with the %s. The customer taps the counter.", it.Name)
	case EventLuckyFind:
		fmt.Fprintf(&b, "Something about the %s catches your eye.", it.Name)
	default:
		fmt.Fprintf(&b, "You examine the %s.", it.Name)
	}
	for _, t := range found {
		fmt.Fprintf(&b, " Found: %s.", t.Description)
	}
	fmt.Fprintf(&b, " Estimate now $%.0f–$%.0f.", it.CurrentRange.Min(), it.CurrentRange.Max())
	return b.String()
}
