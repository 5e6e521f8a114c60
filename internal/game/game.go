package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/talgya/pawnbroker/internal/entropy"
	"github.com/talgya/pawnbroker/internal/mail"
	"github.com/talgya/pawnbroker/internal/negotiation"
	"github.com/talgya/pawnbroker/internal/shop"
	"github.com/talgya/pawnbroker/internal/story"
	"github.com/talgya/pawnbroker/internal/validate"
)

var (
	ErrNoCustomer        = errors.New("game: no customer available")
	ErrGameOver          = errors.New("game: game over")
	ErrInsufficientFunds = errors.New("game: not enough cash")
	ErrWrongPhase        = errors.New("game: action not allowed in this phase")
	ErrNoVisit           = errors.New("game: nobody at the counter")
	ErrVisitInProgress   = errors.New("game: a customer is still at the counter")
	ErrNotNegotiable     = errors.New("game: this visit is not a pawn negotiation")
	ErrNotRedemption     = errors.New("game: this visit is not a redemption")
	ErrNotConversation   = errors.New("game: this visit is not a story conversation")
	ErrCorpusInvalid     = errors.New("game: story corpus has blocking issues")
)

// CustomerSource supplies walk-in customers when no story event is eligible.
type CustomerSource interface {
	Customer(ctx context.Context, day, slot int, rep shop.Reputation) *shop.Customer
}

// Options configures a new game. Zero values pick defaults.
type Options struct {
	StartCash          float64
	StartReputation    shop.Reputation
	ActionPointsPerDay int
	CustomersPerDay    int
	PawnTermDays       int
	Strict             bool // Refuse corpora with CONTRACT_GAP or BROKEN_LINK issues
}

func (o Options) withDefaults() Options {
	if o.StartCash == 0 {
		o.StartCash = 1000
	}
	if o.StartReputation == (shop.Reputation{}) {
		o.StartReputation = shop.Reputation{Humanity: 50, Credibility: 50, Underworld: 50}
	}
	if o.ActionPointsPerDay <= 0 {
		o.ActionPointsPerDay = 5
	}
	if o.CustomersPerDay <= 0 {
		o.CustomersPerDay = 4
	}
	if o.PawnTermDays <= 0 {
		o.PawnTermDays = 7
	}
	return o
}

// Deps are the collaborators a game needs.
type Deps struct {
	Corpus    *story.Corpus
	Mail      *mail.Registry
	Customers CustomerSource // Optional; without it only story customers arrive
	Random    entropy.Source
}

// Game applies actions to a State. It is not safe for concurrent use.
type Game struct {
	state     *State
	corpus    *story.Corpus
	mail      *mail.Registry
	customers CustomerSource
	src       entropy.Source
	opts      Options
	tracer    trace.Tracer

	visit *visit
}

// visit is the customer currently at the counter.
type visit struct {
	session *negotiation.Session
	story   *story.Visit // Nil for generated customers
	chainID string
	done    bool
}

// New starts a fresh game on day 1 with the shop closed.
func New(deps Deps, opts Options) (*Game, error) {
	opts = opts.withDefaults()
	if deps.Corpus == nil {
		deps.Corpus = &story.Corpus{}
	}
	st := &State{
		Stats: Stats{
			Day:             1,
			Cash:            opts.StartCash,
			MaxActionPoints: opts.ActionPointsPerDay,
			Reputation:      opts.StartReputation,
		},
		Inventory: []*shop.Item{},
		Chains:    deps.Corpus.InitialStates(),
		Phase:     PhaseClosed,
	}
	return Resume(st, deps, opts)
}

// Resume continues from a saved state. Chains added to the corpus since the
// save start fresh; saved chains the corpus no longer defines are kept but
// never tick.
func Resume(st *State, deps Deps, opts Options) (*Game, error) {
	opts = opts.withDefaults()
	if deps.Corpus == nil {
		deps.Corpus = &story.Corpus{}
	}
	if deps.Random == nil {
		deps.Random = entropy.NewSeeded(entropy.NewSeed())
	}
	if opts.Strict {
		report := validate.Run(deps.Corpus, deps.Mail.IDs())
		if report.HasBlocking() {
			for _, is := range report.Errors() {
				slog.Error("corpus issue", "type", is.Type, "chain", is.Chain, "event", is.Event, "message", is.Message)
			}
			return nil, fmt.Errorf("%w: %d errors", ErrCorpusInvalid, len(report.Errors()))
		}
	}

	st = st.Clone()
	for _, ch := range deps.Corpus.Chains {
		if story.FindChainState(st.Chains, ch.ID) == nil {
			st.Chains = append(st.Chains, ch.NewState())
		}
	}
	if st.Phase == "" {
		st.Phase = PhaseClosed
	}

	return &Game{
		state:     st,
		corpus:    deps.Corpus,
		mail:      deps.Mail,
		customers: deps.Customers,
		src:       deps.Random,
		opts:      opts,
		tracer:    otel.Tracer("pawnbroker/game"),
	}, nil
}

// State returns a deep copy of the current state.
func (g *Game) State() *State { return g.state.Clone() }

// Stats returns the headline numbers.
func (g *Game) Stats() Stats { return g.state.Stats }

// Phase returns the daily-cycle phase.
func (g *Game) Phase() Phase { return g.state.Phase }

// Customer returns a copy of the customer at the counter, or nil.
func (g *Game) Customer() *shop.Customer {
	if g.visit == nil || g.visit.done {
		return nil
	}
	return g.visit.session.Customer().Clone()
}

func (g *Game) requireOpen() error {
	switch g.state.Phase {
	case PhaseGameOver:
		return ErrGameOver
	case PhaseOpen:
		return nil
	}
	return ErrWrongPhase
}

// activeVisit returns the customer at the counter if one is still there.
func (g *Game) activeVisit() (*visit, error) {
	if err := g.requireOpen(); err != nil {
		return nil, err
	}
	if g.visit == nil || g.visit.done {
		return nil, ErrNoVisit
	}
	return g.visit, nil
}

func (g *Game) negotiation() (*visit, error) {
	v, err := g.activeVisit()
	if err != nil {
		return nil, err
	}
	if v.session.Customer().Interaction == shop.InteractionRedeem {
		return nil, ErrNotNegotiable
	}
	return v, nil
}

// bargain is negotiation with an item on the counter.
func (g *Game) bargain() (*visit, error) {
	v, err := g.negotiation()
	if err != nil {
		return nil, err
	}
	if v.session.Customer().Item == nil {
		return nil, ErrNotNegotiable
	}
	return v, nil
}
