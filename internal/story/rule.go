package story

import (
	"errors"
	"fmt"

	"github.com/talgya/pawnbroker/internal/entropy"
	"github.com/talgya/pawnbroker/internal/shop"
)

// RuleKind names a simulation rule in the authored corpus.
type RuleKind string

const (
	RuleDelta     RuleKind = "DELTA"
	RuleChance    RuleKind = "CHANCE"
	RuleThreshold RuleKind = "THRESHOLD"
	RuleCompound  RuleKind = "COMPOUND"
)

// ThresholdPolicy decides whether a threshold rule re-fires on later ticks.
type ThresholdPolicy string

const (
	PolicyEveryTick ThresholdPolicy = "every_tick" // Fires on every tick the condition holds
	PolicyFireOnce  ThresholdPolicy = "fire_once"
)

// Rule is one per-day simulation rule. The set of rules is closed.
type Rule interface {
	Kind() RuleKind
	isRule()
}

// DeltaRule adds Delta to Var every tick, optionally gated by When.
type DeltaRule struct {
	Var   string
	Delta float64
	When  []Condition
}

// ChanceRule rolls once per tick. The probability is Chance, or the current
// value of ChanceVar when set (values above 1 are read as percentages).
type ChanceRule struct {
	Chance    float64
	ChanceVar string
	OnSuccess []Effect
	OnFail    []Effect
}

// ThresholdRule applies Effects when every condition in When holds.
type ThresholdRule struct {
	ID      string
	When    []Condition
	Policy  ThresholdPolicy
	Effects []Effect
}

// CompoundRule adds Delta to Target while Source holds, clamped to Min/Max.
type CompoundRule struct {
	Source Condition
	Target string
	Delta  float64
	Min    *float64
	Max    *float64
}

func (DeltaRule) Kind() RuleKind     { return RuleDelta }
func (ChanceRule) Kind() RuleKind    { return RuleChance }
func (ThresholdRule) Kind() RuleKind { return RuleThreshold }
func (CompoundRule) Kind() RuleKind  { return RuleCompound }

func (DeltaRule) isRule()     {}
func (ChanceRule) isRule()    {}
func (ThresholdRule) isRule() {}
func (CompoundRule) isRule()  {}

// Rules is an ordered rule list.
type Rules []Rule

// TickResult is the outcome of one daily tick of a chain.
type TickResult struct {
	Chain       *ChainState
	SideEffects []Effect
}

// Tick runs every rule of an active chain once, in authored order. Each rule
// sees the state left by the rules before it. A failing rule is skipped and
// reported; the rest still run. Only CHANCE rules draw from src.
func Tick(chain *ChainState, rules Rules, rep shop.Reputation, src entropy.Source, day int) (TickResult, error) {
	state := chain.Clone()
	if !state.Active {
		return TickResult{Chain: state}, nil
	}

	var side []Effect
	var errs []error
	for i, r := range rules {
		next, effects, err := tickRule(state, r, rep, src, day)
		if err != nil {
			errs = append(errs, fmt.Errorf("chain %s rule %d (%s): %w", chain.ID, i, r.Kind(), err))
			continue
		}
		state = next
		side = append(side, effects...)
		if !state.Active {
			break
		}
	}
	return TickResult{Chain: state, SideEffects: side}, errors.Join(errs...)
}

func tickRule(state *ChainState, r Rule, rep shop.Reputation, src entropy.Source, day int) (*ChainState, []Effect, error) {
	scope := Scope{Chain: state, Reputation: rep}
	switch r := r.(type) {
	case DeltaRule:
		ok, err := scope.All(r.When)
		if err != nil || !ok {
			return state, nil, err
		}
		return ApplyEffects(state, []Effect{ModifyVar{Var: r.Var, Delta: r.Delta}})

	case ChanceRule:
		p := r.Chance
		if r.ChanceVar != "" {
			v, err := scope.Lookup(r.ChanceVar)
			if err != nil {
				return state, nil, err
			}
			p = v
			if p > 1 {
				p /= 100
			}
		}
		p = shop.Clamp(p, 0, 1)
		if src.Float64() < p {
			next, side, err := ApplyEffects(state, r.OnSuccess)
			if err == nil {
				next.logf(day, "chance succeeded")
			}
			return next, side, err
		}
		return ApplyEffects(state, r.OnFail)

	case ThresholdRule:
		if r.Policy == PolicyFireOnce && state.HasFired(r.ID) {
			return state, nil, nil
		}
		ok, err := scope.All(r.When)
		if err != nil || !ok {
			return state, nil, err
		}
		next, side, err := ApplyEffects(state, r.Effects)
		if err != nil {
			return state, nil, err
		}
		if r.Policy == PolicyFireOnce {
			next.Fired = append(next.Fired, r.ID)
		}
		next.logf(day, "threshold "+r.ID+" triggered")
		return next, side, nil

	case CompoundRule:
		ok, err := scope.Eval(r.Source)
		if err != nil || !ok {
			return state, nil, err
		}
		next, _, err := ApplyEffects(state, []Effect{ModifyVar{Var: r.Target, Delta: r.Delta}})
		if err != nil {
			return state, nil, err
		}
		name := VarName(r.Target)
		v := next.Variables[name]
		if r.Min != nil && v < *r.Min {
			v = *r.Min
		}
		if r.Max != nil && v > *r.Max {
			v = *r.Max
		}
		next.Variables[name] = v
		return next, nil, nil
	}
	return state, nil, fmt.Errorf("unsupported rule %T", r)
}
