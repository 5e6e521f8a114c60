package game

import (
	"context"
	"errors"
	"testing"

	"github.com/talgya/pawnbroker/internal/entropy"
	"github.com/talgya/pawnbroker/internal/mail"
	"github.com/talgya/pawnbroker/internal/negotiation"
	"github.com/talgya/pawnbroker/internal/shop"
	"github.com/talgya/pawnbroker/internal/story"
)

const loanCorpus = `
chain:
  id: loan
  variables: [ { name: debt, default: 100 } ]
  rules:
    - kind: DELTA
      var: debt
      delta: 50
      when: { var: stage, op: "==", value: 1 }
    - kind: THRESHOLD
      id: letter
      policy: fire_once
      when: { var: debt, op: ">=", value: 200 }
      effects:
        - { type: SCHEDULE_MAIL, template: reminder, delay: 0 }
        - { type: ADD_FUNDS, amount: 25 }
events:
  - id: opener
    trigger: { var: stage, op: "==", value: 0 }
    customer: { name: Ida, style: Professional, patience: 3, minimum_amount: 100, desired_amount: 200, max_repayment: 400 }
    item: { id: ring, name: ring, real_value: 300, uncertainty: 0.2 }
    outcomes:
      deal_charity: [ { type: SET_STAGE, stage: 1 }, { type: MODIFY_REP, axis: Humanity, delta: 10 } ]
      deal_aid: [ { type: SET_STAGE, stage: 1 } ]
      deal_standard: [ { type: SET_STAGE, stage: 1 } ]
      deal_shark: [ { type: SET_STAGE, stage: 1 }, { type: MODIFY_REP, axis: Underworld, delta: 5 } ]
    on_reject: [ { type: SET_STAGE, stage: 5 } ]
  - id: payback
    type: REDEMPTION_CHECK
    target_item_id: ring
    trigger:
      - { var: stage, op: "==", value: 1 }
      - { var: debt, op: ">=", value: 200 }
    customer: { name: Ida, wallet: 500 }
    dynamic_flows:
      all_safe: { dialogue: "You kept it. Thanks.", effects: [ { type: SET_STAGE, stage: 2 } ] }
      core_safe: { effects: [ { type: SET_STAGE, stage: 2 } ] }
      core_lost: { effects: [ { type: DEACTIVATE_CHAIN } ] }
      hostile_takeover: { effects: [ { type: DEACTIVATE_CHAIN } ] }
    on_complete: [ { type: ADD_FUNDS, amount: 10 } ]
  - id: farewell
    trigger: { var: stage, op: "==", value: 5 }
    customer: { name: Ida, dialogue: { greeting: "No hard feelings." } }
    on_complete: [ { type: MODIFY_REP, axis: Humanity, delta: 3 }, { type: DEACTIVATE_CHAIN } ]
`

type fakeCustomers struct {
	customer *shop.Customer
	calls    int
}

func (f *fakeCustomers) Customer(_ context.Context, _, _ int, _ shop.Reputation) *shop.Customer {
	f.calls++
	if f.customer == nil {
		return nil
	}
	return f.customer.Clone()
}

func newGame(t *testing.T, doc string, customers CustomerSource, opts Options) *Game {
	t.Helper()
	corpus, err := story.Parse([]byte(doc), "test.yaml")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	deps := Deps{
		Corpus:    corpus,
		Mail:      mail.NewRegistry(mail.Template{ID: "reminder", Sender: "First Bank", Subject: "Payment due"}),
		Customers: customers,
		Random:    &entropy.Script{Fallback: 0.99},
	}
	g, err := New(deps, opts)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return g
}

func chainStage(g *Game, id string) int {
	return story.FindChainState(g.state.Chains, id).Stage
}

func TestStoryLoop(t *testing.T) {
	ctx := context.Background()
	g := newGame(t, loanCorpus, nil, Options{})

	if _, err := g.NextCustomer(ctx); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("customer before opening: %v", err)
	}
	if _, err := g.StartDay(ctx); err != nil {
		t.Fatal(err)
	}

	a, err := g.NextCustomer(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if a.EventID != "opener" || a.Customer.Name != "Ida" || a.Customer.Item == nil {
		t.Fatalf("arrival = %+v", a)
	}

	ap, err := g.Appraise()
	if err != nil || !ap.OK {
		t.Fatalf("appraise: %+v %v", ap, err)
	}
	if g.Stats().ActionPoints != 4 || g.Customer().Patience != 2 {
		t.Fatalf("ap = %d, patience = %d", g.Stats().ActionPoints, g.Customer().Patience)
	}

	out, err := g.SubmitOffer(200, 0.05)
	if err != nil {
		t.Fatal(err)
	}
	if out.State != negotiation.StateAccepted || out.DealTier != story.DealAid {
		t.Fatalf("offer = %+v", out)
	}
	if g.Stats().Cash != 800 || chainStage(g, "loan") != 1 {
		t.Fatalf("cash = %v, stage = %d", g.Stats().Cash, chainStage(g, "loan"))
	}
	inv := g.State().Inventory
	if len(inv) != 1 || inv[0].ID != "ring" || inv[0].Pawn.DueDay != 8 || inv[0].ChainID != "loan" {
		t.Fatalf("inventory = %+v", inv[0])
	}

	// One visit per chain per day, and no walk-in source.
	if _, err := g.NextCustomer(ctx); !errors.Is(err, ErrNoCustomer) {
		t.Fatalf("second customer: %v", err)
	}
	if _, err := g.EndDay(ctx); err != nil {
		t.Fatal(err)
	}

	// Day 2: debt 150. Day 3: debt 200, the letter fires and arrives.
	for day := 2; day <= 3; day++ {
		letters, err := g.StartDay(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if day == 2 {
			if len(letters) != 0 {
				t.Fatalf("day 2 letters = %v", letters)
			}
			if _, err := g.EndDay(ctx); err != nil {
				t.Fatal(err)
			}
			continue
		}
		if len(letters) != 1 || letters[0].Subject != "Payment due" {
			t.Fatalf("day 3 letters = %+v", letters)
		}
	}
	if g.Stats().Cash != 825 {
		t.Fatalf("cash after threshold = %v", g.Stats().Cash)
	}

	a, err = g.NextCustomer(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if a.EventID != "payback" || a.Flow != story.FlowAllSafe || a.Customer.Intent != shop.IntentRedeem {
		t.Fatalf("arrival = %+v", a)
	}
	if _, err := g.SubmitOffer(10, 0); !errors.Is(err, ErrNotNegotiable) {
		t.Fatalf("offer on redemption: %v", err)
	}

	r, err := g.SettleRedemption()
	if err != nil {
		t.Fatal(err)
	}
	if r.Paid != 210 || r.Dialogue != "You kept it. Thanks." {
		t.Fatalf("redemption = %+v", r)
	}
	if g.Stats().Cash != 1045 {
		t.Fatalf("cash = %v", g.Stats().Cash)
	}
	if g.State().Inventory[0].Status != shop.StatusRedeemed || chainStage(g, "loan") != 2 {
		t.Fatal("redemption did not complete the chain")
	}
	if _, err := g.SettleRedemption(); !errors.Is(err, ErrNoVisit) {
		t.Fatalf("second settle: %v", err)
	}
}

func TestRejectAppliesRejectionEffects(t *testing.T) {
	ctx := context.Background()
	g := newGame(t, loanCorpus, nil, Options{})
	if _, err := g.StartDay(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := g.NextCustomer(ctx); err != nil {
		t.Fatal(err)
	}
	res, err := g.Reject()
	if err != nil {
		t.Fatal(err)
	}
	if res.State != negotiation.StateWalkAway || chainStage(g, "loan") != 5 {
		t.Fatalf("res = %+v, stage = %d", res, chainStage(g, "loan"))
	}
	if _, err := g.Reject(); !errors.Is(err, ErrNoVisit) {
		t.Fatalf("second reject: %v", err)
	}

	if _, err := g.EndDay(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := g.StartDay(ctx); err != nil {
		t.Fatal(err)
	}
	a, err := g.NextCustomer(ctx)
	if err != nil || a.EventID != "farewell" {
		t.Fatalf("arrival = %+v, %v", a, err)
	}
	if _, err := g.Appraise(); err == nil {
		t.Fatal("appraised an empty counter")
	}
	if _, err := g.SubmitOffer(50, 0.1); !errors.Is(err, ErrNotNegotiable) {
		t.Fatalf("offer to a caller with nothing to pawn: %v", err)
	}

	humanity := g.Stats().Reputation.Humanity
	line, err := g.Conclude()
	if err != nil || line != "No hard feelings." {
		t.Fatalf("conclude = %q, %v", line, err)
	}
	if g.Stats().Reputation.Humanity != humanity+3 {
		t.Fatalf("humanity = %v, want %v", g.Stats().Reputation.Humanity, humanity+3)
	}
	if story.FindChainState(g.state.Chains, "loan").Active {
		t.Fatal("chain still active after farewell")
	}
	if _, err := g.Conclude(); !errors.Is(err, ErrNoVisit) {
		t.Fatalf("second conclude: %v", err)
	}
}

func TestConcludeRefusesItemVisits(t *testing.T) {
	ctx := context.Background()
	g := newGame(t, loanCorpus, nil, Options{})
	if _, err := g.StartDay(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := g.NextCustomer(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Conclude(); !errors.Is(err, ErrNotConversation) {
		t.Fatalf("conclude with an item on the counter: %v", err)
	}
}

func TestWalkInCustomersAndLeverage(t *testing.T) {
	ctx := context.Background()
	clasp := shop.ItemTrait{ID: "clasp", Kind: shop.TraitFlaw, LeveragePower: 0.25}
	walkIn := &shop.Customer{
		Name: "Bo", Style: shop.StyleProfessional, Patience: 3, MaxPatience: 3,
		MinimumAmount: 100, DesiredAmount: 200, MaxRepayment: 400,
		Interaction: shop.InteractionPawn,
		Item: &shop.Item{
			ID: "bo-watch", Name: "watch", RealValue: 250, Status: shop.StatusActive,
			HiddenTraits: []shop.ItemTrait{clasp}, RevealedTraits: []shop.ItemTrait{clasp},
		},
	}
	src := &fakeCustomers{customer: walkIn}
	g := newGame(t, "chain: { id: empty }\n", src, Options{CustomersPerDay: 2})
	if _, err := g.StartDay(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := g.NextCustomer(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := g.NextCustomer(ctx); !errors.Is(err, ErrVisitInProgress) {
		t.Fatalf("overlapping customer: %v", err)
	}

	lev, err := g.UseTrait("clasp")
	if err != nil {
		t.Fatal(err)
	}
	if lev.NewAsk != 150 {
		t.Fatalf("leverage = %+v", lev)
	}
	if _, err := g.UseTrait("clasp"); !errors.Is(err, negotiation.ErrTraitUsed) {
		t.Fatalf("reuse: %v", err)
	}

	if f, err := g.Instinct(20, 0); err != nil || f.Category == "" {
		t.Fatalf("instinct = %+v, %v", f, err)
	}
	if _, err := g.SubmitOffer(5000, 0); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("overdraft: %v", err)
	}
	out, err := g.SubmitOffer(160, 0.05)
	if err != nil || out.State != negotiation.StateAccepted {
		t.Fatalf("offer = %+v, %v", out, err)
	}
	if out.DealTier != "" || out.Item.ChainID != "" {
		t.Fatalf("walk-in pawn touched a story: %+v", out)
	}

	if _, err := g.NextCustomer(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Reject(); err != nil {
		t.Fatal(err)
	}
	if _, err := g.NextCustomer(ctx); !errors.Is(err, ErrNoCustomer) {
		t.Fatalf("over the daily limit: %v", err)
	}
	if src.calls != 2 {
		t.Fatalf("source calls = %d", src.calls)
	}
}

func TestForfeitAndGameOver(t *testing.T) {
	ctx := context.Background()
	doc := `
chain:
  id: tax
  rules:
    - kind: THRESHOLD
      when: { var: stage, op: "==", value: 0 }
      effects: [ { type: ADD_FUNDS, amount: -600 } ]
`
	g := newGame(t, doc, nil, Options{StartCash: 1000, PawnTermDays: 1})
	g.state.Inventory = append(g.state.Inventory, &shop.Item{
		ID: "old", Name: "old radio", Status: shop.StatusActive,
		Pawn: &shop.PawnInfo{Principal: 10, StartDay: 0, DueDay: 1},
	})

	if _, err := g.StartDay(ctx); err != nil {
		t.Fatal(err)
	}
	rep, err := g.EndDay(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Forfeited) != 1 || rep.GameOver || g.Phase() != PhaseClosed {
		t.Fatalf("day 1 report = %+v", rep)
	}
	if g.State().Inventory[0].Status != shop.StatusForfeit {
		t.Fatal("overdue item not forfeited")
	}

	if _, err := g.StartDay(ctx); err != nil {
		t.Fatal(err)
	}
	rep, err = g.EndDay(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !rep.GameOver || rep.Cash != -200 || g.Phase() != PhaseGameOver {
		t.Fatalf("day 2 report = %+v", rep)
	}
	if _, err := g.StartDay(ctx); !errors.Is(err, ErrGameOver) {
		t.Fatalf("start after game over: %v", err)
	}
}

func TestClassifyDeal(t *testing.T) {
	tests := []struct {
		principal, rate, desired float64
		want                     story.DealTier
	}{
		{100, 0, 200, story.DealCharity},
		{200, 0.05, 200, story.DealAid},
		{250, 0.03, 200, story.DealAid},
		{200, 0.20, 200, story.DealShark},
		{160, 0.05, 200, story.DealShark},
		{180, 0.10, 200, story.DealStandard},
		{200, 0.08, 200, story.DealStandard},
	}
	for _, tt := range tests {
		if got := ClassifyDeal(tt.principal, tt.rate, tt.desired); got != tt.want {
			t.Errorf("ClassifyDeal(%v, %v, %v) = %s, want %s", tt.principal, tt.rate, tt.desired, got, tt.want)
		}
	}
}

func TestDispositions(t *testing.T) {
	items := func() []*shop.Item {
		return []*shop.Item{
			{ID: "target", ChainID: "c", Status: shop.StatusActive},
			{ID: "other", ChainID: "c", Status: shop.StatusActive},
			{ID: "done", ChainID: "c", Status: shop.StatusRedeemed},
			{ID: "foreign", ChainID: "d", Status: shop.StatusActive},
		}
	}
	tests := []struct {
		action story.EffectKind
		want   map[string]shop.ItemStatus
	}{
		{story.EffectRedeemAll, map[string]shop.ItemStatus{"target": shop.StatusRedeemed, "other": shop.StatusRedeemed}},
		{story.EffectRedeemTargetOnly, map[string]shop.ItemStatus{"target": shop.StatusRedeemed, "other": shop.StatusActive}},
		{story.EffectAbandonOthers, map[string]shop.ItemStatus{"target": shop.StatusActive, "other": shop.StatusForfeit}},
		{story.EffectAbandonAll, map[string]shop.ItemStatus{"target": shop.StatusForfeit, "other": shop.StatusForfeit}},
		{story.EffectForceSellAll, map[string]shop.ItemStatus{"target": shop.StatusSold, "other": shop.StatusSold}},
		{story.EffectForceSellTarget, map[string]shop.ItemStatus{"target": shop.StatusSold, "other": shop.StatusActive}},
	}
	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			g := newGame(t, "chain: { id: c }\n", nil, Options{})
			g.state.Inventory = items()
			g.realize("c", "target", []story.Effect{story.Disposition{Action: tt.action}})

			for _, it := range g.state.Inventory {
				want, ok := tt.want[it.ID]
				if !ok {
					// Terminal and foreign items never move.
					if (it.ID == "done" && it.Status != shop.StatusRedeemed) || (it.ID == "foreign" && it.Status != shop.StatusActive) {
						t.Fatalf("%s moved to %s", it.ID, it.Status)
					}
					continue
				}
				if it.Status != want {
					t.Fatalf("%s = %s, want %s", it.ID, it.Status, want)
				}
				if it.ForceSold != (want == shop.StatusSold) {
					t.Fatalf("%s force sold = %v", it.ID, it.ForceSold)
				}
			}
		})
	}
}

func TestRealizeReputationAndMail(t *testing.T) {
	g := newGame(t, "chain: { id: c }\n", nil, Options{})
	g.realize("c", "", []story.Effect{
		story.ModifyRep{Axis: shop.AxisHumanity, Delta: 80},
		story.ScheduleMail{TemplateID: "reminder", DelayDays: 2},
		story.AddFunds{Amount: -50},
	})
	st := g.State()
	if st.Stats.Reputation.Humanity != 100 {
		t.Fatalf("humanity = %v", st.Stats.Reputation.Humanity)
	}
	if len(st.Mail.Pending) != 1 || st.Mail.Pending[0].DeliverDay != 3 {
		t.Fatalf("mail = %+v", st.Mail.Pending)
	}
	if st.Stats.Cash != 950 {
		t.Fatalf("cash = %v", st.Stats.Cash)
	}
}

func TestStrictRefusesBrokenCorpus(t *testing.T) {
	doc := `
chain: { id: c }
events:
  - id: e
    item: { id: x, name: x, real_value: 5 }
    outcomes:
      deal_aid: []
`
	corpus, err := story.Parse([]byte(doc), "bad.yaml")
	if err != nil {
		t.Fatal(err)
	}
	_, err = New(Deps{Corpus: corpus, Random: &entropy.Script{}}, Options{Strict: true})
	if !errors.Is(err, ErrCorpusInvalid) {
		t.Fatalf("err = %v", err)
	}
	if _, err := New(Deps{Corpus: corpus, Random: &entropy.Script{}}, Options{}); err != nil {
		t.Fatalf("lenient mode: %v", err)
	}
}

func TestResumeAddsNewChains(t *testing.T) {
	g := newGame(t, loanCorpus, nil, Options{})
	saved := g.State()
	saved.Chains = nil
	saved.Stats.Day = 9

	corpus, _ := story.Parse([]byte(loanCorpus), "test.yaml")
	r, err := Resume(saved, Deps{Corpus: corpus, Random: &entropy.Script{}}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	st := r.State()
	if st.Stats.Day != 9 || len(st.Chains) != 1 || st.Chains[0].Variables["debt"] != 100 {
		t.Fatalf("resumed state = %+v", st)
	}
}

func TestStateCloneIsDeep(t *testing.T) {
	g := newGame(t, loanCorpus, nil, Options{})
	g.state.Inventory = []*shop.Item{{ID: "a", Status: shop.StatusActive}}
	cp := g.State()
	cp.Inventory[0].Status = shop.StatusSold
	cp.Chains[0].Variables["debt"] = 0
	if g.state.Inventory[0].Status != shop.StatusActive || g.state.Chains[0].Variables["debt"] != 100 {
		t.Fatal("clone shares memory with the game")
	}
}
