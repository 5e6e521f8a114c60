// Package game is the shop's reducer: it owns the saveable game state and
// applies player actions (start day, serve a customer, appraise, offer,
// leverage, reject, settle a redemption, conclude a conversation, end day)
// on top of the story, appraisal and negotiation packages.
package game

import (
	"github.com/talgya/pawnbroker/internal/mail"
	"github.com/talgya/pawnbroker/internal/shop"
	"github.com/talgya/pawnbroker/internal/story"
)

// Phase is where the shop is in its daily cycle.
type Phase string

const (
	PhaseClosed   Phase = "CLOSED" // Between days; StartDay opens the shop
	PhaseOpen     Phase = "OPEN"
	PhaseGameOver Phase = "GAME_OVER"
)

// Stats are the shop's headline numbers.
type Stats struct {
	Day             int             `json:"day"`
	Cash            float64         `json:"cash"`
	ActionPoints    int             `json:"action_points"`
	MaxActionPoints int             `json:"max_action_points"`
	Reputation      shop.Reputation `json:"reputation"`
}

// Entry is one line of the shop's ledger.
type Entry struct {
	Day  int    `json:"day"`
	Text string `json:"text"`
}

const maxLog = 200

// State is everything that survives a save. The customer at the counter is
// not part of it.
type State struct {
	Stats          Stats               `json:"stats"`
	Inventory      []*shop.Item        `json:"inventory"`
	Chains         []*story.ChainState `json:"chains"`
	Mail           mail.Queue          `json:"mail"`
	Phase          Phase               `json:"phase"`
	CustomersToday int                 `json:"customers_today"`
	VisitedChains  []string            `json:"visited_chains,omitempty"` // Chains that sent someone today
	Log            []Entry             `json:"log,omitempty"`
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	cp := *s
	cp.Inventory = make([]*shop.Item, len(s.Inventory))
	for i, it := range s.Inventory {
		cp.Inventory[i] = it.Clone()
	}
	cp.Chains = make([]*story.ChainState, len(s.Chains))
	for i, c := range s.Chains {
		cp.Chains[i] = c.Clone()
	}
	cp.Mail.Pending = append([]mail.Scheduled(nil), s.Mail.Pending...)
	cp.Mail.Inbox = append([]mail.Letter(nil), s.Mail.Inbox...)
	cp.VisitedChains = append([]string(nil), s.VisitedChains...)
	cp.Log = append([]Entry(nil), s.Log...)
	return &cp
}

// ItemsByStatus returns inventory items in a status, in inventory order.
func (s *State) ItemsByStatus(status shop.ItemStatus) []*shop.Item {
	var out []*shop.Item
	for _, it := range s.Inventory {
		if it.Status == status {
			out = append(out, it)
		}
	}
	return out
}

func (s *State) logf(text string) {
	s.Log = append(s.Log, Entry{Day: s.Stats.Day, Text: text})
	if len(s.Log) > maxLog {
		s.Log = s.Log[len(s.Log)-maxLog:]
	}
}

func (s *State) visited(chainID string) bool {
	for _, id := range s.VisitedChains {
		if id == chainID {
			return true
		}
	}
	return false
}
