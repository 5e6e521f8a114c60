package shop

import "testing"

func TestReputationAdjustClamps(t *testing.T) {
	r := Reputation{Humanity: 95, Credibility: 3}
	if err := r.Adjust(AxisHumanity, 20); err != nil {
		t.Fatal(err)
	}
	if err := r.Adjust(AxisCredibility, -10); err != nil {
		t.Fatal(err)
	}
	if r.Humanity != 100 || r.Credibility != 0 {
		t.Fatalf("got %+v, want humanity 100 credibility 0", r)
	}
	if err := r.Adjust("Charisma", 1); err == nil {
		t.Fatal("expected error for unknown axis")
	}
	if a, ok := ParseAxis("underworld"); !ok || a != AxisUnderworld {
		t.Fatalf("ParseAxis = %q, %v", a, ok)
	}
}

func TestItemStatusIsTerminal(t *testing.T) {
	it := &Item{Status: StatusActive}
	if !it.SetStatus(StatusSold) {
		t.Fatal("ACTIVE -> SOLD should succeed")
	}
	if it.SetStatus(StatusRedeemed) {
		t.Fatal("SOLD -> REDEEMED should be refused")
	}
	if it.Status != StatusSold {
		t.Fatalf("status = %s", it.Status)
	}
}

func TestRevealDedupesByID(t *testing.T) {
	scratch := ItemTrait{ID: "scratch", Kind: TraitFlaw}
	it := &Item{HiddenTraits: []ItemTrait{scratch, {ID: "paste", Kind: TraitFake}}}
	if !it.Reveal(scratch) || it.Reveal(scratch) {
		t.Fatal("second reveal of the same id should be a no-op")
	}
	if len(it.RevealedTraits) != 1 {
		t.Fatalf("revealed = %d, want 1", len(it.RevealedTraits))
	}
	if u := it.Undiscovered(); len(u) != 1 || u[0].ID != "paste" {
		t.Fatalf("undiscovered = %+v", u)
	}
	if it.KnownFake() {
		t.Fatal("fake not yet revealed")
	}
}

func TestCloneIsDeep(t *testing.T) {
	pv := 500.0
	c := &Customer{Tags: []string{"HighRisk"}, Item: &Item{PerceivedValue: &pv, HiddenTraits: []ItemTrait{{ID: "a"}}}}
	cp := c.Clone()
	*cp.Item.PerceivedValue = 1
	cp.Item.HiddenTraits[0].ID = "b"
	cp.Tags[0] = "x"
	if *c.Item.PerceivedValue != 500 || c.Item.HiddenTraits[0].ID != "a" || c.Tags[0] != "HighRisk" {
		t.Fatal("clone shares memory with original")
	}
	if !c.HasTag("highrisk") {
		t.Fatal("HasTag should be case-insensitive")
	}
}

func TestPawnRepayment(t *testing.T) {
	p := PawnInfo{Principal: 200, Rate: 0.1}
	if p.Interest() != 20 || p.Repayment() != 220 {
		t.Fatalf("interest %v repayment %v", p.Interest(), p.Repayment())
	}
}
