package story

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/talgya/pawnbroker/internal/shop"
)

// fileDoc is one story file: an optional chain definition and its events.
type fileDoc struct {
	Chain  *chainDoc  `yaml:"chain"`
	Events []eventDoc `yaml:"events"`
}

type chainDoc struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	StartStage  int       `yaml:"start_stage"`
	Active      *bool     `yaml:"active"`
	Variables   []VarDecl `yaml:"variables"`
	Rules       Rules     `yaml:"rules"`
}

type eventDoc struct {
	ID           string               `yaml:"id"`
	Chain        string               `yaml:"chain"` // Defaults to the file's chain
	Type         EventType            `yaml:"type"`
	Trigger      Conditions           `yaml:"trigger"`
	Customer     *CustomerTemplate    `yaml:"customer"`
	Item         *ItemTemplate        `yaml:"item"`
	Outcomes     map[DealTier]Effects `yaml:"outcomes"`
	OnReject     Effects              `yaml:"on_reject"`
	OnComplete   Effects              `yaml:"on_complete"`
	TargetItemID string               `yaml:"target_item_id"`
	DynamicFlows map[FlowKey]*Flow    `yaml:"dynamic_flows"`
}

func decodeFile(data []byte, source string) (*Chain, []*Event, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", source, err)
	}

	var chain *Chain
	defaultChain := ""
	if doc.Chain != nil {
		d := doc.Chain
		if d.ID == "" {
			return nil, nil, fmt.Errorf("%s: chain id is required", source)
		}
		seen := map[string]bool{}
		for _, v := range d.Variables {
			if v.Name == "" || IsBuiltin(v.Name) || seen[v.Name] {
				return nil, nil, fmt.Errorf("%s: chain %s: invalid or duplicate variable %q", source, d.ID, v.Name)
			}
			seen[v.Name] = true
		}
		chain = &Chain{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			StartStage:  d.StartStage,
			StartActive: d.Active == nil || *d.Active,
			Variables:   d.Variables,
			Rules:       d.Rules,
			SourceFile:  source,
		}
		defaultChain = d.ID
	}

	events := make([]*Event, 0, len(doc.Events))
	for i, d := range doc.Events {
		if d.ID == "" {
			return nil, nil, fmt.Errorf("%s: events[%d]: id is required", source, i)
		}
		ev := &Event{
			ID:           d.ID,
			ChainID:      d.Chain,
			Type:         d.Type,
			Trigger:      d.Trigger,
			Customer:     d.Customer,
			Item:         d.Item,
			Outcomes:     d.Outcomes,
			OnReject:     d.OnReject,
			OnComplete:   d.OnComplete,
			TargetItemID: d.TargetItemID,
			Flows:        d.DynamicFlows,
			SourceFile:   source,
		}
		if ev.ChainID == "" {
			ev.ChainID = defaultChain
		}
		if ev.ChainID == "" {
			return nil, nil, fmt.Errorf("%s: event %s: no chain", source, d.ID)
		}
		switch ev.Type {
		case "":
			ev.Type = EventStandard
		case EventStandard, EventRedemptionCheck:
		default:
			return nil, nil, fmt.Errorf("%s: event %s: unknown type %q", source, d.ID, d.Type)
		}
		for key := range ev.Flows {
			if !validFlow(key) {
				return nil, nil, fmt.Errorf("%s: event %s: unknown flow %q", source, d.ID, key)
			}
		}
		for tier := range ev.Outcomes {
			if !validTier(tier) {
				return nil, nil, fmt.Errorf("%s: event %s: unknown deal tier %q", source, d.ID, tier)
			}
		}
		events = append(events, ev)
	}
	return chain, events, nil
}

func validFlow(k FlowKey) bool {
	for _, f := range FlowKeys {
		if f == k {
			return true
		}
	}
	return false
}

func validTier(t DealTier) bool {
	for _, d := range DealTiers {
		if d == t {
			return true
		}
	}
	return false
}

// Conditions accepts either a single condition mapping or a list.
type Conditions []Condition

func (c *Conditions) UnmarshalYAML(node *yaml.Node) error {
	var list []Condition
	switch node.Kind {
	case yaml.MappingNode:
		var one Condition
		if err := node.Decode(&one); err != nil {
			return err
		}
		list = []Condition{one}
	case yaml.SequenceNode:
		if err := node.Decode(&list); err != nil {
			return err
		}
	default:
		return fmt.Errorf("line %d: condition must be a mapping or a list", node.Line)
	}
	for _, cond := range list {
		if cond.Var == "" {
			return fmt.Errorf("line %d: condition without var", node.Line)
		}
		if !cond.Op.Valid() {
			return fmt.Errorf("line %d: unknown operator %q", node.Line, cond.Op)
		}
	}
	*c = list
	return nil
}

// UnmarshalYAML accepts a plain string or a list of {when|condition, text}.
func (d *DialogueText) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*d = Line(node.Value)
		return nil
	case yaml.SequenceNode:
	default:
		return fmt.Errorf("line %d: dialogue must be a string or a list", node.Line)
	}

	var out DialogueText
	for _, n := range node.Content {
		if n.Kind == yaml.ScalarNode {
			out.Variants = append(out.Variants, Variant{Text: n.Value})
			continue
		}
		var raw struct {
			When      Conditions `yaml:"when"`
			Condition Conditions `yaml:"condition"`
			Text      string     `yaml:"text"`
		}
		if err := n.Decode(&raw); err != nil {
			return err
		}
		out.Variants = append(out.Variants, Variant{
			When: append(raw.When, raw.Condition...),
			Text: raw.Text,
		})
	}
	*d = out
	return nil
}

type effectDoc struct {
	Type     EffectKind        `yaml:"type"`
	Stage    *int              `yaml:"stage"`
	Var      string            `yaml:"var"`
	Delta    float64           `yaml:"delta"`
	Template string            `yaml:"template"`
	Delay    int               `yaml:"delay"`
	Metadata map[string]string `yaml:"metadata"`
	Amount   float64           `yaml:"amount"`
	Axis     string            `yaml:"axis"`
}

func (e *Effects) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: effects must be a list", node.Line)
	}
	out := make(Effects, 0, len(node.Content))
	for _, n := range node.Content {
		var d effectDoc
		if err := n.Decode(&d); err != nil {
			return err
		}
		eff, err := d.effect()
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		out = append(out, eff)
	}
	*e = out
	return nil
}

func (d effectDoc) effect() (Effect, error) {
	switch d.Type {
	case EffectSetStage:
		if d.Stage == nil {
			return nil, fmt.Errorf("SET_STAGE needs stage")
		}
		return SetStage{Stage: *d.Stage}, nil
	case EffectModifyVar, "MOD_VAR":
		if d.Var == "" {
			return nil, fmt.Errorf("MODIFY_VAR needs var")
		}
		return ModifyVar{Var: d.Var, Delta: d.Delta}, nil
	case EffectDeactivateChain, "DEACTIVATE":
		return DeactivateChain{}, nil
	case EffectScheduleMail:
		if d.Template == "" {
			return nil, fmt.Errorf("SCHEDULE_MAIL needs template")
		}
		if d.Delay < 0 {
			return nil, fmt.Errorf("SCHEDULE_MAIL delay must not be negative")
		}
		return ScheduleMail{TemplateID: d.Template, DelayDays: d.Delay, Metadata: d.Metadata}, nil
	case EffectAddFunds:
		return AddFunds{Amount: d.Amount}, nil
	case EffectModifyRep:
		axis, ok := shop.ParseAxis(d.Axis)
		if !ok {
			return nil, fmt.Errorf("MODIFY_REP: unknown axis %q", d.Axis)
		}
		return ModifyRep{Axis: axis, Delta: d.Delta}, nil
	}
	if IsDisposition(d.Type) {
		return Disposition{Action: d.Type}, nil
	}
	return nil, fmt.Errorf("unknown effect type %q", d.Type)
}

type ruleDoc struct {
	Kind      RuleKind        `yaml:"kind"`
	ID        string          `yaml:"id"`
	Var       string          `yaml:"var"`
	Delta     float64         `yaml:"delta"`
	When      Conditions      `yaml:"when"`
	Chance    *float64        `yaml:"chance"`
	ChanceVar string          `yaml:"chance_var"`
	OnSuccess Effects         `yaml:"on_success"`
	OnFail    Effects         `yaml:"on_fail"`
	Policy    ThresholdPolicy `yaml:"policy"`
	Effects   Effects         `yaml:"effects"`
	Source    *Condition      `yaml:"source"`
	Target    string          `yaml:"target"`
	Min       *float64        `yaml:"min"`
	Max       *float64        `yaml:"max"`
}

func (r *Rules) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: rules must be a list", node.Line)
	}
	out := make(Rules, 0, len(node.Content))
	for _, n := range node.Content {
		var d ruleDoc
		if err := n.Decode(&d); err != nil {
			return err
		}
		rule, err := d.rule()
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		out = append(out, rule)
	}
	*r = out
	return nil
}

func (d ruleDoc) rule() (Rule, error) {
	switch d.Kind {
	case RuleDelta:
		if d.Var == "" {
			return nil, fmt.Errorf("DELTA needs var")
		}
		return DeltaRule{Var: d.Var, Delta: d.Delta, When: d.When}, nil
	case RuleChance:
		if d.Chance == nil && d.ChanceVar == "" {
			return nil, fmt.Errorf("CHANCE needs chance or chance_var")
		}
		r := ChanceRule{ChanceVar: d.ChanceVar, OnSuccess: d.OnSuccess, OnFail: d.OnFail}
		if d.Chance != nil {
			r.Chance = *d.Chance
		}
		return r, nil
	case RuleThreshold:
		if len(d.When) == 0 {
			return nil, fmt.Errorf("THRESHOLD needs when")
		}
		policy := d.Policy
		switch policy {
		case "":
			policy = PolicyEveryTick
		case PolicyEveryTick:
		case PolicyFireOnce:
			if d.ID == "" {
				return nil, fmt.Errorf("fire_once THRESHOLD needs id")
			}
		default:
			return nil, fmt.Errorf("unknown threshold policy %q", d.Policy)
		}
		return ThresholdRule{ID: d.ID, When: d.When, Policy: policy, Effects: d.Effects}, nil
	case RuleCompound:
		if d.Source == nil || d.Target == "" {
			return nil, fmt.Errorf("COMPOUND needs source and target")
		}
		if !d.Source.Op.Valid() {
			return nil, fmt.Errorf("COMPOUND: unknown operator %q", d.Source.Op)
		}
		return CompoundRule{Source: *d.Source, Target: d.Target, Delta: d.Delta, Min: d.Min, Max: d.Max}, nil
	}
	return nil, fmt.Errorf("unknown rule kind %q", d.Kind)
}
