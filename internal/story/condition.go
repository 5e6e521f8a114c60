// Package story is the event chain engine: authored chains of story events,
// typed chain variables, per-day simulation rules, effect application and
// redemption flow resolution.
package story

import (
	"errors"
	"fmt"
	"strings"

	"github.com/talgya/pawnbroker/internal/shop"
)

// ErrUnknownVariable is returned when a condition, rule or effect names a
// variable the chain never declared.
var ErrUnknownVariable = errors.New("story: unknown variable")

// Operator is a comparison in a condition.
type Operator string

const (
	OpEq  Operator = "=="
	OpNe  Operator = "!="
	OpGt  Operator = ">"
	OpGte Operator = ">="
	OpLt  Operator = "<"
	OpLte Operator = "<="
)

// Valid reports whether op is a known comparison.
func (op Operator) Valid() bool {
	switch op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// Condition compares a variable against a number.
// Var is "stage", "reputation.<Axis>", or a declared chain variable.
type Condition struct {
	Var   string   `yaml:"var" json:"var"`
	Op    Operator `yaml:"op" json:"op"`
	Value float64  `yaml:"value" json:"value"`
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %g", c.Var, c.Op, c.Value)
}

// Compare applies op to a and b.
func Compare(a float64, op Operator, b float64) (bool, error) {
	switch op {
	case OpEq:
		return a == b, nil
	case OpNe:
		return a != b, nil
	case OpGt:
		return a > b, nil
	case OpGte:
		return a >= b, nil
	case OpLt:
		return a < b, nil
	case OpLte:
		return a <= b, nil
	}
	return false, fmt.Errorf("story: unknown operator %q", op)
}

// Scope resolves variable names during evaluation.
type Scope struct {
	Chain      *ChainState
	Reputation shop.Reputation
}

const (
	varStage         = "stage"
	reputationPrefix = "reputation."
	variablesPrefix  = "variables."
)

// Lookup returns the current value of a variable.
func (s Scope) Lookup(name string) (float64, error) {
	if name == varStage {
		if s.Chain == nil {
			return 0, fmt.Errorf("%w: %s (no chain)", ErrUnknownVariable, name)
		}
		return float64(s.Chain.Stage), nil
	}
	if axisName, ok := strings.CutPrefix(name, reputationPrefix); ok {
		axis, ok := shop.ParseAxis(axisName)
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
		}
		v, _ := s.Reputation.Get(axis)
		return v, nil
	}
	if s.Chain == nil {
		return 0, fmt.Errorf("%w: %s (no chain)", ErrUnknownVariable, name)
	}
	v, ok := s.Chain.Variables[strings.TrimPrefix(name, variablesPrefix)]
	if !ok {
		return 0, fmt.Errorf("%w: %s in chain %s", ErrUnknownVariable, name, s.Chain.ID)
	}
	return v, nil
}

// Eval evaluates a single condition.
func (s Scope) Eval(c Condition) (bool, error) {
	v, err := s.Lookup(c.Var)
	if err != nil {
		return false, err
	}
	return Compare(v, c.Op, c.Value)
}

// All reports whether every condition holds. An empty list holds.
func (s Scope) All(conds []Condition) (bool, error) {
	for _, c := range conds {
		ok, err := s.Eval(c)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// IsBuiltin reports whether name resolves without a chain declaration.
func IsBuiltin(name string) bool {
	if name == varStage {
		return true
	}
	if axisName, ok := strings.CutPrefix(name, reputationPrefix); ok {
		_, known := shop.ParseAxis(axisName)
		return known
	}
	return false
}

// VarName strips the optional "variables." prefix.
func VarName(name string) string {
	return strings.TrimPrefix(name, variablesPrefix)
}
