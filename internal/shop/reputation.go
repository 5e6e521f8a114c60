package shop

import (
	"fmt"
	"strings"

	"golang.org/x/exp/constraints"
)

// Axis names one dimension of the shop's reputation.
type Axis string

const (
	AxisHumanity    Axis = "Humanity"
	AxisCredibility Axis = "Credibility"
	AxisUnderworld  Axis = "Underworld"
)

const (
	reputationFloor   = 0
	reputationCeiling = 100
)

// Reputation is the three-axis standing of the shop. Every axis stays in [0, 100].
type Reputation struct {
	Humanity    float64 `json:"humanity"`
	Credibility float64 `json:"credibility"`
	Underworld  float64 `json:"underworld"`
}

// ParseAxis resolves an axis name case-insensitively.
func ParseAxis(name string) (Axis, bool) {
	for _, a := range []Axis{AxisHumanity, AxisCredibility, AxisUnderworld} {
		if strings.EqualFold(string(a), name) {
			return a, true
		}
	}
	return "", false
}

// Get returns the value of an axis.
func (r Reputation) Get(axis Axis) (float64, bool) {
	switch axis {
	case AxisHumanity:
		return r.Humanity, true
	case AxisCredibility:
		return r.Credibility, true
	case AxisUnderworld:
		return r.Underworld, true
	}
	return 0, false
}

// Adjust adds delta to an axis and clamps the result.
func (r *Reputation) Adjust(axis Axis, delta float64) error {
	var p *float64
	switch axis {
	case AxisHumanity:
		p = &r.Humanity
	case AxisCredibility:
		p = &r.Credibility
	case AxisUnderworld:
		p = &r.Underworld
	default:
		return fmt.Errorf("unknown reputation axis %q", axis)
	}
	*p = Clamp(*p+delta, reputationFloor, reputationCeiling)
	return nil
}

// Bucket coarsens the profile into 20-point bands per axis.
func (r Reputation) Bucket() string {
	return fmt.Sprintf("%d-%d-%d", int(r.Humanity)/20, int(r.Credibility)/20, int(r.Underworld)/20)
}

// Clamp bounds v to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
