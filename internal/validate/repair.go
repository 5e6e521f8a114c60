package validate

import (
	"fmt"
	"strings"
)

var repairHints = map[IssueType]string{
	ContractGap:   "Add the missing deal tiers to each event's outcomes (deal_charity, deal_aid, deal_standard, deal_shark). Every tier needs at least an empty effect list.",
	BrokenLink:    "Point each reference at something that exists: a mail template id, an item id created by an earlier event, or a defined chain.",
	DeadEnd:       "Either add an event whose trigger is stage == N for each stage that is set, or change the SET_STAGE effect to a stage that has a listener.",
	LogicConflict: "Declare every variable in the chain's variables list, move item-creating events before the redemption checks that target them, and end conditional dialogue with an unconditional line.",
}

// RepairPrompt renders a report as instructions for an authoring assistant.
// Returns an empty string when there is nothing to fix.
func RepairPrompt(r *Report) string {
	if len(r.Issues) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("The story corpus failed validation. Fix the following problems in the YAML files without changing story content that is not mentioned.\n")

	groups := r.ByType()
	for _, t := range IssueTypes {
		issues := groups[t]
		if len(issues) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s (%d)\n%s\n", t, len(issues), repairHints[t])
		for _, is := range issues {
			loc := is.Event
			if loc == "" {
				loc = "chain " + is.Chain
			}
			if is.FilePath != "" {
				loc += " in " + is.FilePath
			}
			fmt.Fprintf(&b, "- %s: %s", loc, is.Message)
			if is.Suggestion != "" {
				fmt.Fprintf(&b, " (%s)", is.Suggestion)
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\nReturn only the corrected YAML for each file you change.\n")
	return b.String()
}
