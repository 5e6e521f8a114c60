package story

import "maps"

// maxChainLog bounds the per-chain simulation log.
const maxChainLog = 50

// VarDecl declares a chain variable and its starting value.
type VarDecl struct {
	Name    string  `yaml:"name" json:"name"`
	Default float64 `yaml:"default" json:"default"`
}

// Chain is the authored definition of a story chain.
type Chain struct {
	ID          string
	Name        string
	Description string
	StartStage  int
	StartActive bool
	Variables   []VarDecl
	Rules       Rules
	SourceFile  string
}

// Declares reports whether the chain declares the named variable.
func (c *Chain) Declares(name string) bool {
	name = VarName(name)
	for _, v := range c.Variables {
		if v.Name == name {
			return true
		}
	}
	return false
}

// NewState returns the chain's starting runtime state.
func (c *Chain) NewState() *ChainState {
	vars := make(map[string]float64, len(c.Variables))
	for _, v := range c.Variables {
		vars[v.Name] = v.Default
	}
	return &ChainState{
		ID:        c.ID,
		Stage:     c.StartStage,
		Variables: vars,
		Active:    c.StartActive,
	}
}

// LogEntry is one line in a chain's simulation log.
type LogEntry struct {
	Day  int    `json:"day"`
	Text string `json:"text"`
}

// ChainState is the runtime state of one chain. It is part of the save.
type ChainState struct {
	ID        string             `json:"id"`
	Stage     int                `json:"stage"`
	Variables map[string]float64 `json:"variables"`
	Active    bool               `json:"active"`
	Fired     []string           `json:"fired,omitempty"` // fire_once threshold rules already triggered
	Log       []LogEntry         `json:"log,omitempty"`
}

// Clone returns a deep copy.
func (s *ChainState) Clone() *ChainState {
	c := *s
	c.Variables = maps.Clone(s.Variables)
	if c.Variables == nil {
		c.Variables = map[string]float64{}
	}
	c.Fired = append([]string(nil), s.Fired...)
	c.Log = append([]LogEntry(nil), s.Log...)
	return &c
}

// HasFired reports whether a fire_once rule already triggered.
func (s *ChainState) HasFired(ruleID string) bool {
	for _, id := range s.Fired {
		if id == ruleID {
			return true
		}
	}
	return false
}

func (s *ChainState) logf(day int, text string) {
	s.Log = append(s.Log, LogEntry{Day: day, Text: text})
	if len(s.Log) > maxChainLog {
		s.Log = s.Log[len(s.Log)-maxChainLog:]
	}
}

// FindChainState returns the state with the given id, or nil.
func FindChainState(states []*ChainState, id string) *ChainState {
	for _, s := range states {
		if s.ID == id {
			return s
		}
	}
	return nil
}
