package persistence

import (
	"path/filepath"
	"testing"

	"github.com/talgya/pawnbroker/internal/game"
	"github.com/talgya/pawnbroker/internal/shop"
	"github.com/talgya/pawnbroker/internal/story"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "save.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleState() *game.State {
	return &game.State{
		Stats: game.Stats{Day: 4, Cash: 725.5, ActionPoints: 2, MaxActionPoints: 5,
			Reputation: shop.Reputation{Humanity: 60, Credibility: 40, Underworld: 10}},
		Inventory: []*shop.Item{{
			ID: "ring", Name: "ring", RealValue: 300, Status: shop.StatusActive,
			Pawn: &shop.PawnInfo{Principal: 200, Rate: 0.05, StartDay: 1, DueDay: 8},
		}},
		Chains: []*story.ChainState{{ID: "loan", Stage: 1, Active: true, Variables: map[string]float64{"debt": 150}}},
		Phase:  game.PhaseClosed,
		Log:    []game.Entry{{Day: 1, Text: "Pawned ring"}, {Day: 3, Text: "Mail from First Bank"}},
	}
}

func TestSaveAndLoad(t *testing.T) {
	db := openTemp(t)
	if db.HasSaveGame() {
		t.Fatal("fresh database has a save")
	}
	if _, ok := db.LoadGame(); ok {
		t.Fatal("load from empty database succeeded")
	}

	if err := db.SaveGame(sampleState()); err != nil {
		t.Fatal(err)
	}
	if !db.HasSaveGame() {
		t.Fatal("save not found")
	}
	st, ok := db.LoadGame()
	if !ok {
		t.Fatal("load failed")
	}
	if st.Stats.Day != 4 || st.Stats.Cash != 725.5 || st.Stats.Reputation.Humanity != 60 {
		t.Fatalf("stats = %+v", st.Stats)
	}
	if len(st.Inventory) != 1 || st.Inventory[0].Pawn.DueDay != 8 {
		t.Fatalf("inventory = %+v", st.Inventory)
	}
	if st.Chains[0].Variables["debt"] != 150 {
		t.Fatalf("chains = %+v", st.Chains)
	}

	day, err := db.GetMeta("day")
	if err != nil || day != "4" {
		t.Fatalf("meta day = %q, %v", day, err)
	}
	ledger, err := db.RecentLedger(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ledger) != 2 || ledger[0].Day != 3 {
		t.Fatalf("ledger = %+v", ledger)
	}
}

func TestSaveOverwrites(t *testing.T) {
	db := openTemp(t)
	st := sampleState()
	if err := db.SaveGame(st); err != nil {
		t.Fatal(err)
	}
	st.Stats.Day = 5
	st.Log = st.Log[:1]
	if err := db.SaveGame(st); err != nil {
		t.Fatal(err)
	}
	got, ok := db.LoadGame()
	if !ok || got.Stats.Day != 5 {
		t.Fatalf("got %+v", got)
	}
	if ledger, _ := db.RecentLedger(10); len(ledger) != 1 {
		t.Fatalf("ledger not replaced: %+v", ledger)
	}
}

func TestLoadRejectsMalformedSaves(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":       "{{{",
		"array":          "[1, 2]",
		"no stats":       `{"inventory": []}`,
		"no inventory":   `{"stats": {"day": 1}}`,
		"null inventory": `{"stats": {"day": 1}, "inventory": null}`,
		"wrong types":    `{"stats": "monday", "inventory": []}`,
	} {
		t.Run(name, func(t *testing.T) {
			db := openTemp(t)
			if err := db.Put(SaveKey, raw); err != nil {
				t.Fatal(err)
			}
			if _, ok := db.LoadGame(); ok {
				t.Fatal("malformed save loaded")
			}
		})
	}
}

func TestClearSave(t *testing.T) {
	db := openTemp(t)
	if err := db.ClearSave(); err != nil {
		t.Fatalf("clear on empty database: %v", err)
	}
	if err := db.SaveGame(sampleState()); err != nil {
		t.Fatal(err)
	}
	if err := db.ClearSave(); err != nil {
		t.Fatal(err)
	}
	if db.HasSaveGame() {
		t.Fatal("save survived clear")
	}
	if ledger, _ := db.RecentLedger(10); len(ledger) != 0 {
		t.Fatalf("ledger survived clear: %+v", ledger)
	}
}

func TestReopenKeepsSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "save.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.SaveGame(sampleState()); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, ok := db.LoadGame(); !ok {
		t.Fatal("save lost after reopen")
	}
}
