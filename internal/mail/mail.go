// Package mail holds the letters stories send to the shop: a registry of
// authored templates and a queue of scheduled deliveries.
package mail

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template is an authored letter.
type Template struct {
	ID      string `yaml:"id" json:"id"`
	Sender  string `yaml:"sender" json:"sender"`
	Subject string `yaml:"subject" json:"subject"`
	Body    string `yaml:"body" json:"body"`
}

// Registry indexes templates by id.
type Registry struct {
	templates map[string]Template
}

// NewRegistry builds a registry from templates. Later duplicates win.
func NewRegistry(templates ...Template) *Registry {
	r := &Registry{templates: make(map[string]Template, len(templates))}
	for _, t := range templates {
		r.templates[t.ID] = t
	}
	return r
}

// LoadRegistry reads a YAML file with a top-level "templates" list.
// A missing file yields an empty registry.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewRegistry(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read mail templates: %w", err)
	}
	var doc struct {
		Templates []Template `yaml:"templates"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse mail templates %s: %w", path, err)
	}
	for i, t := range doc.Templates {
		if t.ID == "" {
			return nil, fmt.Errorf("parse mail templates %s: templates[%d] has no id", path, i)
		}
	}
	return NewRegistry(doc.Templates...), nil
}

// Lookup returns a template by id.
func (r *Registry) Lookup(id string) (Template, bool) {
	if r == nil {
		return Template{}, false
	}
	t, ok := r.templates[id]
	return t, ok
}

// IDs returns every template id, sorted.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.templates))
	for id := range r.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Scheduled is a letter waiting for its delivery day.
type Scheduled struct {
	TemplateID string            `json:"template_id"`
	DeliverDay int               `json:"deliver_day"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Letter is a delivered, rendered letter.
type Letter struct {
	TemplateID string `json:"template_id"`
	Day        int    `json:"day"`
	Sender     string `json:"sender"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	Missing    bool   `json:"missing,omitempty"` // Template id had no registry entry
	Read       bool   `json:"read"`
}

// Queue holds pending and delivered letters. It is part of the save.
type Queue struct {
	Pending []Scheduled `json:"pending"`
	Inbox   []Letter    `json:"inbox"`
}

// Schedule queues a template for delivery delayDays after today.
func (q *Queue) Schedule(templateID string, delayDays, today int, metadata map[string]string) {
	if delayDays < 0 {
		delayDays = 0
	}
	q.Pending = append(q.Pending, Scheduled{
		TemplateID: templateID,
		DeliverDay: today + delayDays,
		Metadata:   metadata,
	})
}

// Deliver moves every letter due on or before today into the inbox and
// returns the newly delivered letters in scheduling order.
func (q *Queue) Deliver(today int, reg *Registry) []Letter {
	var due []Letter
	keep := q.Pending[:0]
	for _, s := range q.Pending {
		if s.DeliverDay > today {
			keep = append(keep, s)
			continue
		}
		due = append(due, render(s, today, reg))
	}
	q.Pending = keep
	q.Inbox = append(q.Inbox, due...)
	return due
}

// Unread counts letters not yet read.
func (q *Queue) Unread() int {
	n := 0
	for _, l := range q.Inbox {
		if !l.Read {
			n++
		}
	}
	return n
}

func render(s Scheduled, today int, reg *Registry) Letter {
	t, ok := reg.Lookup(s.TemplateID)
	if !ok {
		return Letter{TemplateID: s.TemplateID, Day: today, Subject: "(undeliverable)", Missing: true}
	}
	pairs := make([]string, 0, len(s.Metadata)*2)
	for k, v := range s.Metadata {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	rep := strings.NewReplacer(pairs...)
	return Letter{
		TemplateID: s.TemplateID,
		Day:        today,
		Sender:     rep.Replace(t.Sender),
		Subject:    rep.Replace(t.Subject),
		Body:       rep.Replace(t.Body),
	}
}
