package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/talgya/pawnbroker/internal/shop"
)

type fakeCompleter struct {
	response string
	err      error
	calls    int
	prompts  []string
}

func (f *fakeCompleter) Complete(_ context.Context, _, prompt string, _ int) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

const goodResponse = `Sure! {
  "name": "Ada Quill",
  "description": "A typesetter with ink-stained cuffs.",
  "style": "desperate",
  "tags": ["highrisk", "Regular"],
  "patience": 9,
  "minimum_amount": 400,
  "desired_amount": 300,
  "max_repayment": 100,
  "dialogue": {"greeting": "Please, it's all I have."},
  "item": {
    "name": "Typewriter",
    "real_value": 200,
    "uncertainty": 2,
    "traits": [
      {"id": "a", "type": "flaw", "discovery_difficulty": 3, "leverage_power": 0.9},
      {"id": "a", "type": "FAKE"},
      {"id": "c", "type": "FAKE"},
      {"id": "d", "type": "CURSED"}
    ]
  }
}`

func TestParseCustomerRepairsFields(t *testing.T) {
	c, err := parseCustomer(goodResponse)
	if err != nil {
		t.Fatal(err)
	}
	if c.Style != shop.StyleDesperate {
		t.Errorf("style = %s", c.Style)
	}
	if len(c.Tags) != 1 || c.Tags[0] != shop.TagHighRisk {
		t.Errorf("tags = %v", c.Tags)
	}
	if c.Patience != 6 || c.MaxPatience != 6 {
		t.Errorf("patience = %d/%d", c.Patience, c.MaxPatience)
	}
	if c.MinimumAmount > c.DesiredAmount {
		t.Errorf("minimum %v above desired %v", c.MinimumAmount, c.DesiredAmount)
	}
	if c.MaxRepayment < c.DesiredAmount {
		t.Errorf("max repayment %v below desired %v", c.MaxRepayment, c.DesiredAmount)
	}
	it := c.Item
	if it.Uncertainty != 0.6 {
		t.Errorf("uncertainty = %v", it.Uncertainty)
	}
	if len(it.HiddenTraits) != 2 {
		t.Fatalf("traits = %+v", it.HiddenTraits)
	}
	if it.HiddenTraits[0].DiscoveryDifficulty != 1 || it.HiddenTraits[0].LeveragePower != 0.5 {
		t.Errorf("trait not clamped: %+v", it.HiddenTraits[0])
	}
	if it.HiddenTraits[1].ID == "a" {
		t.Error("duplicate trait id kept")
	}
	if it.CurrentRange != it.InitialRange || it.InitialRange.Min() > it.InitialRange.Max() {
		t.Errorf("range = %v", it.InitialRange)
	}
	if c.ID == "" || it.ID == "" || it.Status != shop.StatusActive {
		t.Errorf("customer = %+v", c)
	}
}

func TestParseCustomerRejects(t *testing.T) {
	for name, resp := range map[string]string{
		"no json":  "I can't help with that.",
		"bad json": "{name: }",
		"no name":  `{"item": {"name": "x", "real_value": 5}}`,
		"no item":  `{"name": "Ada"}`,
		"no value": `{"name": "Ada", "item": {"name": "x"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := parseCustomer(resp); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestGeneratorPromptCarriesReputation(t *testing.T) {
	fc := &fakeCompleter{response: goodResponse}
	g := NewGenerator(fc)
	if _, err := g.NewCustomer(context.Background(), 4, 1, shop.Reputation{Underworld: 80}); err != nil {
		t.Fatal(err)
	}
	p := fc.prompts[0]
	if !strings.Contains(p, "Day 4, customer #2") || !strings.Contains(p, "underworld 80") || !strings.Contains(p, "no questions") {
		t.Fatalf("prompt = %q", p)
	}
}

func TestGeneratorWithoutClient(t *testing.T) {
	var c *Client
	if NewClient("", ClientOptions{}) != nil {
		t.Fatal("client without key should be nil")
	}
	if _, err := NewGenerator(c).NewCustomer(context.Background(), 1, 0, shop.Reputation{}); err == nil {
		t.Fatal("expected error from disabled client")
	}
	if _, err := NewGenerator(nil).NewCustomer(context.Background(), 1, 0, shop.Reputation{}); err == nil {
		t.Fatal("expected error from nil completer")
	}
}

func TestLibraryIsDeterministic(t *testing.T) {
	rep := shop.Reputation{Humanity: 50, Credibility: 50, Underworld: 50}
	a := NewLibrary(7).Customer(3, 0, rep)
	b := NewLibrary(7).Customer(3, 0, rep)
	if a.ID != b.ID || a.Name != b.Name || a.Item.RealValue != b.Item.RealValue || a.Patience != b.Patience {
		t.Fatalf("library not deterministic: %+v vs %+v", a, b)
	}
	c := NewLibrary(7).Customer(3, 1, rep)
	if c.ID == a.ID {
		t.Fatal("different slots share an id")
	}
}

func TestLibraryCustomersAreConsistent(t *testing.T) {
	lib := NewLibrary(1)
	for day := 1; day <= 30; day++ {
		for slot := 0; slot < 3; slot++ {
			c := lib.Customer(day, slot, shop.Reputation{Humanity: 90, Underworld: 90})
			if c.MinimumAmount > c.DesiredAmount || c.MaxRepayment < c.DesiredAmount {
				t.Fatalf("day %d slot %d: money out of order: %+v", day, slot, c)
			}
			if c.Patience < 1 || c.Patience > 6 || c.MaxPatience != c.Patience {
				t.Fatalf("day %d slot %d: patience %d", day, slot, c.Patience)
			}
			r := c.Item.InitialRange
			if r.Min() < 0 || r.Min() > r.Max() {
				t.Fatalf("day %d slot %d: range %v", day, slot, r)
			}
		}
	}
}

func TestLibraryPoolFavoursAffinity(t *testing.T) {
	lib := NewLibrary(1)
	base := len(lib.pool(shop.Reputation{}))
	if got := len(lib.pool(shop.Reputation{Humanity: 60})); got != base+2 {
		t.Fatalf("pool = %d, want %d", got, base+2)
	}
}

func TestFallbackUsesLibraryOnError(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("boom")}
	f := WithFallback(NewGenerator(fc), NewLibrary(3), 0)
	rep := shop.Reputation{Humanity: 40}

	got := f.Customer(context.Background(), 2, 0, rep)
	want := NewLibrary(3).Customer(2, 0, rep)
	if got == nil || got.ID != want.ID {
		t.Fatalf("got %+v, want library customer %s", got, want.ID)
	}
}

func TestFallbackCachesAndCopies(t *testing.T) {
	fc := &fakeCompleter{response: goodResponse}
	f := WithFallback(NewGenerator(fc), NewLibrary(3), 0)
	rep := shop.Reputation{Humanity: 40}

	a := f.Customer(context.Background(), 2, 0, rep)
	a.Patience = 0
	a.Item.Name = "changed"
	b := f.Customer(context.Background(), 2, 0, rep)
	if fc.calls != 1 {
		t.Fatalf("calls = %d, want 1", fc.calls)
	}
	if b.Name != "Ada Quill" || b.Patience == 0 || b.Item.Name != "Typewriter" {
		t.Fatalf("cached customer was mutated: %+v", b)
	}

	// Same bucket, same customer.
	f.Customer(context.Background(), 2, 0, shop.Reputation{Humanity: 45})
	if fc.calls != 1 {
		t.Fatalf("calls = %d after same-bucket request", fc.calls)
	}
	f.Customer(context.Background(), 2, 1, rep)
	if fc.calls != 2 {
		t.Fatalf("calls = %d after new slot", fc.calls)
	}
}

func TestFallbackWithoutPrimary(t *testing.T) {
	f := WithFallback(nil, NewLibrary(9), 0)
	if c := f.Customer(context.Background(), 1, 0, shop.Reputation{}); c == nil || c.Item == nil {
		t.Fatal("expected library customer")
	}
}
