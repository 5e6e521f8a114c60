package story

import (
	"fmt"

	"github.com/talgya/pawnbroker/internal/shop"
)

// EffectKind names an effect in the authored corpus.
type EffectKind string

const (
	EffectSetStage        EffectKind = "SET_STAGE"
	EffectModifyVar       EffectKind = "MODIFY_VAR"
	EffectDeactivateChain EffectKind = "DEACTIVATE_CHAIN"
	EffectScheduleMail    EffectKind = "SCHEDULE_MAIL"
	EffectAddFunds        EffectKind = "ADD_FUNDS"
	EffectModifyRep       EffectKind = "MODIFY_REP"

	EffectRedeemAll        EffectKind = "REDEEM_ALL"
	EffectRedeemTargetOnly EffectKind = "REDEEM_TARGET_ONLY"
	EffectAbandonOthers    EffectKind = "ABANDON_OTHERS"
	EffectAbandonAll       EffectKind = "ABANDON_ALL"
	EffectForceSellAll     EffectKind = "FORCE_SELL_ALL"
	EffectForceSellTarget  EffectKind = "FORCE_SELL_TARGET"
)

// Effect is one authored state change. The set of effects is closed: every
// implementation lives in this package.
type Effect interface {
	Kind() EffectKind
	isEffect()
}

// SetStage moves the chain to a new stage.
type SetStage struct{ Stage int }

// ModifyVar adds Delta to a declared chain variable.
type ModifyVar struct {
	Var   string
	Delta float64
}

// DeactivateChain stops the chain from ticking or offering events.
type DeactivateChain struct{}

// ScheduleMail queues a mail template for delivery DelayDays from now.
type ScheduleMail struct {
	TemplateID string
	DelayDays  int
	Metadata   map[string]string
}

// AddFunds adds (or with a negative amount, removes) shop cash.
type AddFunds struct{ Amount float64 }

// ModifyRep adjusts one reputation axis.
type ModifyRep struct {
	Axis  shop.Axis
	Delta float64
}

// Disposition changes the status of the chain's items in inventory.
// Action is one of the REDEEM_*, ABANDON_* or FORCE_SELL_* kinds.
type Disposition struct{ Action EffectKind }

func (SetStage) Kind() EffectKind        { return EffectSetStage }
func (ModifyVar) Kind() EffectKind       { return EffectModifyVar }
func (DeactivateChain) Kind() EffectKind { return EffectDeactivateChain }
func (ScheduleMail) Kind() EffectKind    { return EffectScheduleMail }
func (AddFunds) Kind() EffectKind        { return EffectAddFunds }
func (ModifyRep) Kind() EffectKind       { return EffectModifyRep }
func (d Disposition) Kind() EffectKind   { return d.Action }

func (SetStage) isEffect()        {}
func (ModifyVar) isEffect()       {}
func (DeactivateChain) isEffect() {}
func (ScheduleMail) isEffect()    {}
func (AddFunds) isEffect()        {}
func (ModifyRep) isEffect()       {}
func (Disposition) isEffect()     {}

// IsDisposition reports whether k is an item disposition kind.
func IsDisposition(k EffectKind) bool {
	switch k {
	case EffectRedeemAll, EffectRedeemTargetOnly, EffectAbandonOthers,
		EffectAbandonAll, EffectForceSellAll, EffectForceSellTarget:
		return true
	}
	return false
}

// ApplyEffects applies effects to a copy of chain. Chain-local effects
// (stage, variables, deactivation) change the returned state; everything
// else is returned in order as side effects for the caller to realize.
// The list is atomic: on error the input is returned unchanged.
func ApplyEffects(chain *ChainState, effects []Effect) (*ChainState, []Effect, error) {
	next := chain.Clone()
	var side []Effect
	for i, e := range effects {
		switch e := e.(type) {
		case SetStage:
			next.Stage = e.Stage
		case ModifyVar:
			name := VarName(e.Var)
			v, ok := next.Variables[name]
			if !ok {
				return chain, nil, fmt.Errorf("effect %d: %w: %s in chain %s", i, ErrUnknownVariable, e.Var, chain.ID)
			}
			next.Variables[name] = v + e.Delta
		case DeactivateChain:
			next.Active = false
		case ScheduleMail, AddFunds, ModifyRep, Disposition:
			side = append(side, e)
		default:
			return chain, nil, fmt.Errorf("effect %d: unsupported effect %T", i, e)
		}
	}
	return next, side, nil
}
