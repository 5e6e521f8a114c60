package story

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Corpus is the full authored story content: chain definitions and their
// events, in file and authored order.
type Corpus struct {
	Chains []*Chain
	Events []*Event

	chainIndex map[string]*Chain
	byChain    map[string][]*Event
}

// ReadDir parses every .yaml/.yml file under dir, in lexical order, without
// checking variable references. Use LoadDir for play and ReadDir for tools
// that want to report defects instead of failing on them.
func ReadDir(dir string) (*Corpus, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read story dir: %w", err)
	}
	sort.Strings(paths)

	c := &Corpus{}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		if err := c.Add(data, p); err != nil {
			return nil, err
		}
	}
	c.index()
	return c, nil
}

// LoadDir reads a corpus and rejects undeclared variable references.
func LoadDir(dir string) (*Corpus, error) {
	c, err := ReadDir(dir)
	if err != nil {
		return nil, err
	}
	if err := c.Bind(); err != nil {
		return nil, err
	}
	return c, nil
}

// Parse builds a corpus from a single document.
func Parse(data []byte, source string) (*Corpus, error) {
	c := &Corpus{}
	if err := c.Add(data, source); err != nil {
		return nil, err
	}
	c.index()
	return c, nil
}

// Add parses one document and appends its chain and events.
func (c *Corpus) Add(data []byte, source string) error {
	ch, events, err := decodeFile(data, source)
	if err != nil {
		return err
	}
	if ch != nil {
		c.Chains = append(c.Chains, ch)
	}
	c.Events = append(c.Events, events...)
	c.index()
	return nil
}

func (c *Corpus) index() {
	c.chainIndex = make(map[string]*Chain, len(c.Chains))
	for _, ch := range c.Chains {
		c.chainIndex[ch.ID] = ch
	}
	c.byChain = make(map[string][]*Event)
	for _, ev := range c.Events {
		c.byChain[ev.ChainID] = append(c.byChain[ev.ChainID], ev)
	}
}

// Chain returns a chain definition by id.
func (c *Corpus) Chain(id string) (*Chain, bool) {
	ch, ok := c.chainIndex[id]
	return ch, ok
}

// EventsFor returns a chain's events in authored order.
func (c *Corpus) EventsFor(chainID string) []*Event {
	return c.byChain[chainID]
}

// Event returns an event by id.
func (c *Corpus) Event(id string) (*Event, bool) {
	for _, ev := range c.Events {
		if ev.ID == id {
			return ev, true
		}
	}
	return nil, false
}

// InitialStates returns fresh runtime state for every chain.
func (c *Corpus) InitialStates() []*ChainState {
	out := make([]*ChainState, 0, len(c.Chains))
	for _, ch := range c.Chains {
		out = append(out, ch.NewState())
	}
	return out
}

// VarRef is a reference to a variable the owning chain does not declare.
type VarRef struct {
	ChainID string
	EventID string // Empty for simulation rules
	Where   string
	Var     string
}

func (r VarRef) String() string {
	if r.EventID == "" {
		return fmt.Sprintf("chain %s %s: %s", r.ChainID, r.Where, r.Var)
	}
	return fmt.Sprintf("event %s %s: %s", r.EventID, r.Where, r.Var)
}

// UnknownVariables lists every reference to an undeclared variable.
func (c *Corpus) UnknownVariables() []VarRef {
	var out []VarRef
	check := func(chainID, eventID, where, name string) {
		if name == "" || IsBuiltin(name) {
			return
		}
		ch, ok := c.Chain(chainID)
		if ok && ch.Declares(name) {
			return
		}
		out = append(out, VarRef{ChainID: chainID, EventID: eventID, Where: where, Var: name})
	}
	checkConds := func(chainID, eventID, where string, conds []Condition) {
		for _, cond := range conds {
			check(chainID, eventID, where, cond.Var)
		}
	}
	checkEffects := func(chainID, eventID, where string, effects []Effect) {
		for _, e := range effects {
			if mv, ok := e.(ModifyVar); ok {
				check(chainID, eventID, where, mv.Var)
			}
		}
	}
	checkDialogue := func(chainID, eventID, where string, d DialogueText) {
		for _, v := range d.Variants {
			checkConds(chainID, eventID, where, v.When)
		}
	}

	for _, ch := range c.Chains {
		for i, r := range ch.Rules {
			where := fmt.Sprintf("rules[%d]", i)
			switch r := r.(type) {
			case DeltaRule:
				check(ch.ID, "", where, r.Var)
				checkConds(ch.ID, "", where, r.When)
			case ChanceRule:
				check(ch.ID, "", where, r.ChanceVar)
				checkEffects(ch.ID, "", where, r.OnSuccess)
				checkEffects(ch.ID, "", where, r.OnFail)
			case ThresholdRule:
				checkConds(ch.ID, "", where, r.When)
				checkEffects(ch.ID, "", where, r.Effects)
			case CompoundRule:
				check(ch.ID, "", where, r.Source.Var)
				check(ch.ID, "", where, r.Target)
			}
		}
	}
	for _, ev := range c.Events {
		checkConds(ev.ChainID, ev.ID, "trigger", ev.Trigger)
		for _, site := range ev.EffectSites() {
			checkEffects(ev.ChainID, ev.ID, site.Where, []Effect{site.Effect})
		}
		for key, f := range ev.Flows {
			checkDialogue(ev.ChainID, ev.ID, "dynamic_flows."+string(key), f.Dialogue)
		}
		if ev.Customer != nil {
			for name, d := range ev.Customer.Dialogue.Fields() {
				checkDialogue(ev.ChainID, ev.ID, "dialogue."+name, d)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ChainID != b.ChainID {
			return a.ChainID < b.ChainID
		}
		if a.EventID != b.EventID {
			return a.EventID < b.EventID
		}
		if a.Where != b.Where {
			return a.Where < b.Where
		}
		return a.Var < b.Var
	})
	return out
}

// Bind rejects the corpus if any reference names an undeclared variable.
func (c *Corpus) Bind() error {
	refs := c.UnknownVariables()
	if len(refs) == 0 {
		return nil
	}
	errs := make([]error, 0, len(refs))
	for _, r := range refs {
		errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownVariable, r))
	}
	return errors.Join(errs...)
}
