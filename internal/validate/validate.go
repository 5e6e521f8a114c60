// Package validate statically checks a story corpus for authoring defects:
// missing deal outcomes, broken mail and item references, dead-end stages
// and variable misuse.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/talgya/pawnbroker/internal/story"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
)

// IssueType classifies a defect.
type IssueType string

const (
	ContractGap   IssueType = "CONTRACT_GAP"
	BrokenLink    IssueType = "BROKEN_LINK"
	DeadEnd       IssueType = "DEAD_END"
	LogicConflict IssueType = "LOGIC_CONFLICT"
)

// IssueTypes lists every type in report order.
var IssueTypes = []IssueType{ContractGap, BrokenLink, DeadEnd, LogicConflict}

// Blocking reports whether the type prevents strict play.
func (t IssueType) Blocking() bool {
	return t == ContractGap || t == BrokenLink
}

type Issue struct {
	Severity   Severity  `json:"severity"`
	Type       IssueType `json:"type"`
	Message    string    `json:"message"`
	Chain      string    `json:"chain,omitempty"`
	Event      string    `json:"event,omitempty"`
	FilePath   string    `json:"file,omitempty"`
	Suggestion string    `json:"suggestion,omitempty"`
}

type Report struct {
	Issues []Issue  `json:"issues"`
	Logs   []string `json:"logs"`
}

// ByType groups issues by type.
func (r *Report) ByType() map[IssueType][]Issue {
	out := make(map[IssueType][]Issue)
	for _, is := range r.Issues {
		out[is.Type] = append(out[is.Type], is)
	}
	return out
}

// Errors returns error-severity issues.
func (r *Report) Errors() []Issue { return r.filter(SeverityError) }

// Warnings returns warning-severity issues.
func (r *Report) Warnings() []Issue { return r.filter(SeverityWarn) }

// HasBlocking reports whether any CONTRACT_GAP or BROKEN_LINK was found.
func (r *Report) HasBlocking() bool {
	for _, is := range r.Issues {
		if is.Type.Blocking() {
			return true
		}
	}
	return false
}

func (r *Report) filter(s Severity) []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Severity == s {
			out = append(out, is)
		}
	}
	return out
}

func (r *Report) add(is Issue) {
	r.Issues = append(r.Issues, is)
	loc := is.Event
	if loc == "" {
		loc = "chain " + is.Chain
	}
	line := fmt.Sprintf("[%s] %s: %s", is.Type, loc, is.Message)
	if is.Suggestion != "" {
		line += " (" + is.Suggestion + ")"
	}
	r.Logs = append(r.Logs, line)
}

// Run checks corpus against the available mail template ids.
func Run(corpus *story.Corpus, mailIDs []string) *Report {
	r := &Report{Issues: make([]Issue, 0)}

	checkOutcomes(r, corpus)
	checkStages(r, corpus)
	checkMail(r, corpus, mailIDs)
	checkTargets(r, corpus)
	checkChains(r, corpus)
	checkVariables(r, corpus)
	checkDialogue(r, corpus)

	if len(r.Issues) == 0 {
		r.Logs = append(r.Logs, fmt.Sprintf("%d chains, %d events: no issues", len(corpus.Chains), len(corpus.Events)))
	}
	return r
}

// checkOutcomes flags events whose outcomes omit a deal tier.
func checkOutcomes(r *Report, c *story.Corpus) {
	for _, ev := range c.Events {
		if ev.Outcomes == nil {
			continue
		}
		var missing []string
		for _, tier := range story.DealTiers {
			if _, ok := ev.Outcomes[tier]; !ok {
				missing = append(missing, string(tier))
			}
		}
		if len(missing) == 0 {
			continue
		}
		r.add(Issue{
			Severity: SeverityError,
			Type:     ContractGap,
			Message:  "outcomes missing " + strings.Join(missing, ", "),
			Chain:    ev.ChainID,
			Event:    ev.ID,
			FilePath: ev.SourceFile,
		})
	}
}

// checkStages flags SET_STAGE targets that no event in the chain listens for
// with a "stage == N" trigger.
func checkStages(r *Report, c *story.Corpus) {
	listeners := make(map[string]map[int]bool)
	for _, ev := range c.Events {
		for _, cond := range ev.Trigger {
			if cond.Var == "stage" && cond.Op == story.OpEq {
				if listeners[ev.ChainID] == nil {
					listeners[ev.ChainID] = make(map[int]bool)
				}
				listeners[ev.ChainID][int(cond.Value)] = true
			}
		}
	}

	report := func(chainID, eventID, where, file string, stage int) {
		if listeners[chainID][stage] {
			return
		}
		r.add(Issue{
			Severity: SeverityWarn,
			Type:     DeadEnd,
			Message:  fmt.Sprintf("%s sets stage %d but no event triggers on stage == %d", where, stage, stage),
			Chain:    chainID,
			Event:    eventID,
			FilePath: file,
		})
	}

	for _, ev := range c.Events {
		for _, site := range ev.EffectSites() {
			if s, ok := site.Effect.(story.SetStage); ok {
				report(ev.ChainID, ev.ID, site.Where, ev.SourceFile, s.Stage)
			}
		}
	}
	for _, ch := range c.Chains {
		for i, rule := range ch.Rules {
			for _, e := range ruleEffects(rule) {
				if s, ok := e.(story.SetStage); ok {
					report(ch.ID, "", fmt.Sprintf("rules[%d]", i), ch.SourceFile, s.Stage)
				}
			}
		}
	}
}

// checkMail flags SCHEDULE_MAIL effects naming unknown templates.
func checkMail(r *Report, c *story.Corpus, mailIDs []string) {
	known := make(map[string]bool, len(mailIDs))
	for _, id := range mailIDs {
		known[id] = true
	}
	report := func(chainID, eventID, file string, m story.ScheduleMail) {
		if known[m.TemplateID] {
			return
		}
		r.add(Issue{
			Severity:   SeverityError,
			Type:       BrokenLink,
			Message:    fmt.Sprintf("mail template %q does not exist", m.TemplateID),
			Chain:      chainID,
			Event:      eventID,
			FilePath:   file,
			Suggestion: suggest(m.TemplateID, mailIDs),
		})
	}
	for _, ev := range c.Events {
		for _, site := range ev.EffectSites() {
			if m, ok := site.Effect.(story.ScheduleMail); ok {
				report(ev.ChainID, ev.ID, ev.SourceFile, m)
			}
		}
	}
	for _, ch := range c.Chains {
		for _, rule := range ch.Rules {
			for _, e := range ruleEffects(rule) {
				if m, ok := e.(story.ScheduleMail); ok {
					report(ch.ID, "", ch.SourceFile, m)
				}
			}
		}
	}
}

// checkTargets flags redemption checks whose target item is missing, never
// created, or only created by a later event.
func checkTargets(r *Report, c *story.Corpus) {
	firstCreated := make(map[string]int)
	var itemIDs []string
	for i, ev := range c.Events {
		if ev.Item == nil || ev.Item.ID == "" {
			continue
		}
		if _, seen := firstCreated[ev.Item.ID]; !seen {
			firstCreated[ev.Item.ID] = i
			itemIDs = append(itemIDs, ev.Item.ID)
		}
	}

	for i, ev := range c.Events {
		if ev.Type != story.EventRedemptionCheck {
			continue
		}
		is := Issue{Chain: ev.ChainID, Event: ev.ID, FilePath: ev.SourceFile}
		created, ok := firstCreated[ev.TargetItemID]
		switch {
		case ev.TargetItemID == "":
			is.Severity, is.Type = SeverityError, BrokenLink
			is.Message = "redemption check has no target_item_id"
		case !ok:
			is.Severity, is.Type = SeverityError, BrokenLink
			is.Message = fmt.Sprintf("target item %q is never created", ev.TargetItemID)
			is.Suggestion = suggest(ev.TargetItemID, itemIDs)
		case created > i:
			is.Severity, is.Type = SeverityError, LogicConflict
			is.Message = fmt.Sprintf("target item %q is only created by a later event (%s)", ev.TargetItemID, c.Events[created].ID)
		default:
			continue
		}
		r.add(is)
	}
}

// checkChains flags events attached to undefined chains.
func checkChains(r *Report, c *story.Corpus) {
	var ids []string
	for _, ch := range c.Chains {
		ids = append(ids, ch.ID)
	}
	for _, ev := range c.Events {
		if _, ok := c.Chain(ev.ChainID); ok {
			continue
		}
		r.add(Issue{
			Severity:   SeverityError,
			Type:       BrokenLink,
			Message:    fmt.Sprintf("chain %q is not defined", ev.ChainID),
			Chain:      ev.ChainID,
			Event:      ev.ID,
			FilePath:   ev.SourceFile,
			Suggestion: suggest(ev.ChainID, ids),
		})
	}
}

// checkVariables flags references to undeclared chain variables.
func checkVariables(r *Report, c *story.Corpus) {
	for _, ref := range c.UnknownVariables() {
		if _, ok := c.Chain(ref.ChainID); !ok {
			continue // Already reported as a broken chain link
		}
		ch, _ := c.Chain(ref.ChainID)
		declared := make([]string, 0, len(ch.Variables))
		for _, v := range ch.Variables {
			declared = append(declared, v.Name)
		}
		r.add(Issue{
			Severity:   SeverityError,
			Type:       LogicConflict,
			Message:    fmt.Sprintf("%s references undeclared variable %q", ref.Where, ref.Var),
			Chain:      ref.ChainID,
			Event:      ref.EventID,
			FilePath:   ch.SourceFile,
			Suggestion: suggest(story.VarName(ref.Var), declared),
		})
	}
}

// checkDialogue warns when a line list has no unconditional fallback.
func checkDialogue(r *Report, c *story.Corpus) {
	for _, ev := range c.Events {
		var fields []string
		if ev.Customer != nil {
			for name, d := range ev.Customer.Dialogue.Fields() {
				if d.Conditional() {
					fields = append(fields, name)
				}
			}
		}
		for key, f := range ev.Flows {
			if f.Dialogue.Conditional() {
				fields = append(fields, "dynamic_flows."+string(key))
			}
		}
		sort.Strings(fields)
		for _, name := range fields {
			r.add(Issue{
				Severity: SeverityWarn,
				Type:     LogicConflict,
				Message:  name + " has no unconditional fallback line",
				Chain:    ev.ChainID,
				Event:    ev.ID,
				FilePath: ev.SourceFile,
			})
		}
	}
}

func ruleEffects(rule story.Rule) []story.Effect {
	switch r := rule.(type) {
	case story.ChanceRule:
		return append(append([]story.Effect(nil), r.OnSuccess...), r.OnFail...)
	case story.ThresholdRule:
		return r.Effects
	}
	return nil
}

// suggest returns a "did you mean" hint for the closest candidate.
func suggest(name string, candidates []string) string {
	if name == "" || len(candidates) == 0 {
		return ""
	}
	matches := fuzzy.Find(name, candidates)
	if len(matches) == 0 {
		// Try the other direction for typos that drop characters.
		for _, cand := range candidates {
			if len(fuzzy.Find(cand, []string{name})) > 0 {
				return fmt.Sprintf("did you mean %q?", cand)
			}
		}
		return ""
	}
	return fmt.Sprintf("did you mean %q?", matches[0].Str)
}
