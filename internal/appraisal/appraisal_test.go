package appraisal

import (
	"math"
	"testing"

	"github.com/talgya/pawnbroker/internal/entropy"
	"github.com/talgya/pawnbroker/internal/shop"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func newItem(count int, uncertainty float64, rng shop.Range, traits ...shop.ItemTrait) *shop.Item {
	pv := 1000.0
	return &shop.Item{
		ID:             "watch",
		Name:           "pocket watch",
		RealValue:      400,
		PerceivedValue: &pv,
		Uncertainty:    uncertainty,
		InitialRange:   rng,
		CurrentRange:   rng,
		HiddenTraits:   traits,
		Status:         shop.StatusActive,
		AppraisalCount: count,
	}
}

func newCustomer() *shop.Customer {
	return &shop.Customer{ID: "c1", Name: "Marta", Patience: 5, MaxPatience: 5}
}

func TestFirstAppraisalIsNormalAndConverges(t *testing.T) {
	trait := shop.ItemTrait{ID: "engraving", Kind: shop.TraitStory, Description: "a faded engraving"}
	item := newItem(0, 0.3, shop.Range{700, 1300}, trait)
	src := &entropy.Script{Floats: []float64{0.4}, Fallback: 0.99}

	res := Perform(item, newCustomer(), 3, src)
	if !res.OK || res.Event != EventNormal {
		t.Fatalf("got ok=%v event=%s", res.OK, res.Event)
	}
	if len(res.Discovered) != 1 || res.Discovered[0].ID != "engraving" {
		t.Fatalf("discovered = %+v", res.Discovered)
	}
	if !near(res.Item.CurrentRange.Min(), 745) || !near(res.Item.CurrentRange.Max(), 1255) {
		t.Fatalf("range = %v, want [745 1255]", res.Item.CurrentRange)
	}
	if !near(res.Item.Uncertainty, 0.255) {
		t.Fatalf("uncertainty = %v", res.Item.Uncertainty)
	}
	if res.ActionPointCost != 1 || res.PatienceCost != 1 {
		t.Fatalf("costs = %d AP, %d patience", res.ActionPointCost, res.PatienceCost)
	}
	if res.Item.AppraisalCount != 1 {
		t.Fatalf("count = %d", res.Item.AppraisalCount)
	}
	if item.AppraisalCount != 0 || len(item.RevealedTraits) != 0 {
		t.Fatal("input item was mutated")
	}
}

func TestMishapWidensAndSkipsDiscovery(t *testing.T) {
	item := newItem(1, 0.1, shop.Range{900, 1100}, shop.ItemTrait{ID: "chip", Kind: shop.TraitFlaw})
	src := &entropy.Script{Floats: []float64{0.01, 0.0}}

	res := Perform(item, newCustomer(), 3, src)
	if res.Event != EventMishap {
		t.Fatalf("event = %s, want MISHAP", res.Event)
	}
	if !near(res.Item.CurrentRange.Min(), 850) || !near(res.Item.CurrentRange.Max(), 1150) {
		t.Fatalf("range = %v, want [850 1150]", res.Item.CurrentRange)
	}
	if !near(res.Item.Uncertainty, 0.15) {
		t.Fatalf("uncertainty = %v", res.Item.Uncertainty)
	}
	if !res.Item.HadNegativeEvent {
		t.Fatal("mishap should flag a negative event")
	}
	if len(res.Discovered) != 0 || src.Remaining() != 1 {
		t.Fatal("mishap must not roll for discovery")
	}
}

func TestEventGates(t *testing.T) {
	tests := []struct {
		name        string
		count       int
		uncertainty float64
		negative    bool
		roll        float64
		want        Event
		patience    int
	}{
		{"mishap needs low uncertainty", 1, 0.3, false, 0.01, EventNormal, 1},
		{"impatient needs two prior appraisals", 1, 0.3, false, 0.10, EventNormal, 1},
		{"impatient costs extra patience", 2, 0.3, false, 0.10, EventImpatient, 2},
		{"lucky band", 1, 0.3, false, 0.17, EventLuckyFind, 1},
		{"normal band", 1, 0.3, false, 0.5, EventNormal, 1},
		{"recovery lucky find", 3, 0.3, true, 0.05, EventLuckyFind, 1},
		{"no second negative event", 3, 0.05, true, 0.01, EventLuckyFind, 1},
		{"recovery otherwise normal", 3, 0.3, true, 0.12, EventNormal, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := newItem(tt.count, tt.uncertainty, shop.Range{700, 1300})
			item.HadNegativeEvent = tt.negative
			res := Perform(item, newCustomer(), 3, &entropy.Script{Floats: []float64{tt.roll}, Fallback: 0.99})
			if res.Event != tt.want {
				t.Fatalf("event = %s, want %s", res.Event, tt.want)
			}
			if res.PatienceCost != tt.patience {
				t.Fatalf("patience cost = %d, want %d", res.PatienceCost, tt.patience)
			}
		})
	}
}

func TestLuckyFindForcesReveal(t *testing.T) {
	hard := []shop.ItemTrait{
		{ID: "a", Kind: shop.TraitFlaw, DiscoveryDifficulty: 1},
		{ID: "b", Kind: shop.TraitFlaw, DiscoveryDifficulty: 1},
	}
	item := newItem(2, 0.3, shop.Range{700, 1300}, hard...)
	item.HadNegativeEvent = true
	src := &entropy.Script{Floats: []float64{0.05}, Ints: []int{1}, Fallback: 0.99}

	res := Perform(item, newCustomer(), 1, src)
	if res.Event != EventLuckyFind {
		t.Fatalf("event = %s", res.Event)
	}
	if len(res.Discovered) != 1 || res.Discovered[0].ID != "b" {
		t.Fatalf("discovered = %+v, want [b]", res.Discovered)
	}
}

func TestFakeRevealCollapsesToRealValue(t *testing.T) {
	fake := shop.ItemTrait{ID: "paste", Kind: shop.TraitFake, Description: "paste stones"}
	item := newItem(0, 0.3, shop.Range{700, 1300}, fake)

	res := Perform(item, newCustomer(), 2, &entropy.Script{Floats: []float64{0.0}})
	if res.Item.PerceivedValue != nil {
		t.Fatal("perceived value should be cleared")
	}
	if res.Item.CurrentRange != (shop.Range{300, 500}) {
		t.Fatalf("range = %v, want [300 500]", res.Item.CurrentRange)
	}
	if !res.Item.KnownFake() {
		t.Fatal("fake should be known")
	}
}

func TestPreconditions(t *testing.T) {
	item := newItem(0, 0.3, shop.Range{700, 1300})
	tired := newCustomer()
	tired.Patience = 0

	cases := []struct {
		name     string
		item     *shop.Item
		customer *shop.Customer
		ap       int
		want     Failure
	}{
		{"no customer", item, nil, 3, FailNoCustomer},
		{"no item", nil, newCustomer(), 3, FailNoItem},
		{"no action points", item, newCustomer(), 0, FailNoAP},
		{"no patience", item, tired, 3, FailNoPatience},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			res := Perform(tt.item, tt.customer, tt.ap, &entropy.Script{})
			if res.OK || res.Failure != tt.want {
				t.Fatalf("got ok=%v failure=%s", res.OK, res.Failure)
			}
			if res.Item != nil {
				t.Fatal("failed appraisal should not return an item")
			}
		})
	}
}

func TestRangeNeverWidensWithoutMishap(t *testing.T) {
	src := entropy.NewSeeded(7)
	for run := 0; run < 50; run++ {
		item := newItem(0, 0.4, shop.Range{600, 1400},
			shop.ItemTrait{ID: "t1", Kind: shop.TraitFlaw, DiscoveryDifficulty: 0.5},
			shop.ItemTrait{ID: "t2", Kind: shop.TraitStory, DiscoveryDifficulty: 0.2},
		)
		for i := 0; i < 10; i++ {
			prev := item.CurrentRange
			res := Perform(item, newCustomer(), 10, src)
			next := res.Item.CurrentRange
			if res.Event != EventMishap && next.Width() > prev.Width()+1e-9 {
				t.Fatalf("run %d step %d: widened from %v to %v on %s", run, i, prev, next, res.Event)
			}
			if next.Min() > next.Max() || next.Min() < 0 {
				t.Fatalf("invalid range %v", next)
			}
			if res.Item.Uncertainty < uncertaintyFloor-1e-12 {
				t.Fatalf("uncertainty below floor: %v", res.Item.Uncertainty)
			}
			seen := map[string]bool{}
			for _, tr := range res.Item.RevealedTraits {
				if seen[tr.ID] {
					t.Fatalf("duplicate revealed trait %s", tr.ID)
				}
				seen[tr.ID] = true
			}
			item = res.Item
		}
	}
}
