package story

import "github.com/talgya/pawnbroker/internal/shop"

// Variant is one candidate line, used when every condition in When holds.
type Variant struct {
	When []Condition
	Text string
}

// DialogueText is an ordered list of variants. The first variant whose
// conditions hold wins; if none do, the last variant is used.
type DialogueText struct {
	Variants []Variant
}

// Line returns plain, unconditional dialogue.
func Line(text string) DialogueText {
	return DialogueText{Variants: []Variant{{Text: text}}}
}

// Empty reports whether there is no text at all.
func (d DialogueText) Empty() bool {
	return len(d.Variants) == 0
}

// Conditional reports whether the final fallback variant carries conditions.
func (d DialogueText) Conditional() bool {
	return len(d.Variants) > 0 && len(d.Variants[len(d.Variants)-1].When) > 0
}

// Resolve picks the text for the given scope. A variant whose condition
// cannot be evaluated is treated as not matching.
func (d DialogueText) Resolve(scope Scope) string {
	if len(d.Variants) == 0 {
		return ""
	}
	for _, v := range d.Variants {
		if ok, err := scope.All(v.When); err == nil && ok {
			return v.Text
		}
	}
	return d.Variants[len(d.Variants)-1].Text
}

// DialogueSet is the authored dialogue of a story customer.
type DialogueSet struct {
	Greeting    DialogueText `yaml:"greeting"`
	Pitch       DialogueText `yaml:"pitch"`
	Fair        DialogueText `yaml:"fair"`
	Fleeced     DialogueText `yaml:"fleeced"`
	Premium     DialogueText `yaml:"premium"`
	Insulted    DialogueText `yaml:"insulted"`
	TooLow      DialogueText `yaml:"too_low"`
	RateTooHigh DialogueText `yaml:"rate_too_high"`
	WalkAway    DialogueText `yaml:"walk_away"`
	Rejected    DialogueText `yaml:"rejected"`
}

// Resolve renders every line for the scope.
func (d DialogueSet) Resolve(scope Scope) shop.Dialogue {
	return shop.Dialogue{
		Greeting:    d.Greeting.Resolve(scope),
		Pitch:       d.Pitch.Resolve(scope),
		Fair:        d.Fair.Resolve(scope),
		Fleeced:     d.Fleeced.Resolve(scope),
		Premium:     d.Premium.Resolve(scope),
		Insulted:    d.Insulted.Resolve(scope),
		TooLow:      d.TooLow.Resolve(scope),
		RateTooHigh: d.RateTooHigh.Resolve(scope),
		WalkAway:    d.WalkAway.Resolve(scope),
		Rejected:    d.Rejected.Resolve(scope),
	}
}

// Fields lists every dialogue field by its authored key.
func (d DialogueSet) Fields() map[string]DialogueText {
	return map[string]DialogueText{
		"greeting":      d.Greeting,
		"pitch":         d.Pitch,
		"fair":          d.Fair,
		"fleeced":       d.Fleeced,
		"premium":       d.Premium,
		"insulted":      d.Insulted,
		"too_low":       d.TooLow,
		"rate_too_high": d.RateTooHigh,
		"walk_away":     d.WalkAway,
		"rejected":      d.Rejected,
	}
}
