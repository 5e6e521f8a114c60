package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sahilm/fuzzy"

	"github.com/talgya/pawnbroker/internal/story"
	"github.com/talgya/pawnbroker/internal/validate"
)

type ValidateCorpusInput struct{}

type RepairPromptInput struct{}

type ListChainsInput struct {
	Query string `json:"query,omitempty" jsonschema:"fuzzy match against chain id and name"`
}

type ValidateCorpusOutput struct {
	Chains   int              `json:"chains"`
	Events   int              `json:"events"`
	Blocking bool             `json:"blocking"`
	Errors   int              `json:"errors"`
	Warnings int              `json:"warnings"`
	Issues   []validate.Issue `json:"issues"`
	Logs     []string         `json:"logs"`
}

type RepairPromptOutput struct {
	Clean  bool   `json:"clean"`
	Prompt string `json:"prompt,omitempty"`
}

type ChainSummaryOutput struct {
	ID         string   `json:"id"`
	Name       string   `json:"name,omitempty"`
	SourceFile string   `json:"source_file"`
	Variables  []string `json:"variables"`
	Rules      int      `json:"rules"`
	Events     []string `json:"events"`
}

type ListChainsOutput struct {
	Chains []ChainSummaryOutput `json:"chains"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "validate_corpus",
		Description: "Check the story corpus for missing outcomes, broken references, dead-end stages and variable misuse",
	}, s.handleValidateCorpus)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "repair_prompt",
		Description: "Describe every corpus defect as fix instructions for the story files",
	}, s.handleRepairPrompt)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_chains",
		Description: "List story chains with their variables and events",
	}, s.handleListChains)
}

func (s *Server) handleValidateCorpus(ctx context.Context, req *sdk.CallToolRequest, input ValidateCorpusInput) (*sdk.CallToolResult, ValidateCorpusOutput, error) {
	corpus, mailIDs, err := s.load(ctx)
	if err != nil {
		return nil, ValidateCorpusOutput{}, err
	}
	report := validate.Run(corpus, mailIDs)
	return nil, ValidateCorpusOutput{
		Chains:   len(corpus.Chains),
		Events:   len(corpus.Events),
		Blocking: report.HasBlocking(),
		Errors:   len(report.Errors()),
		Warnings: len(report.Warnings()),
		Issues:   report.Issues,
		Logs:     report.Logs,
	}, nil
}

func (s *Server) handleRepairPrompt(ctx context.Context, req *sdk.CallToolRequest, input RepairPromptInput) (*sdk.CallToolResult, RepairPromptOutput, error) {
	corpus, mailIDs, err := s.load(ctx)
	if err != nil {
		return nil, RepairPromptOutput{}, err
	}
	prompt := validate.RepairPrompt(validate.Run(corpus, mailIDs))
	return nil, RepairPromptOutput{Clean: prompt == "", Prompt: prompt}, nil
}

func (s *Server) handleListChains(ctx context.Context, req *sdk.CallToolRequest, input ListChainsInput) (*sdk.CallToolResult, ListChainsOutput, error) {
	corpus, _, err := s.load(ctx)
	if err != nil {
		return nil, ListChainsOutput{}, err
	}

	chains := corpus.Chains
	if input.Query != "" {
		chains = matchChains(input.Query, chains)
	}

	output := make([]ChainSummaryOutput, 0, len(chains))
	for _, ch := range chains {
		output = append(output, chainSummaryOutput(ch, corpus.EventsFor(ch.ID)))
	}
	return nil, ListChainsOutput{Chains: output}, nil
}

// chainSource adapts chains to fuzzy.Source, matching on "id name".
type chainSource []*story.Chain

func (c chainSource) String(i int) string { return c[i].ID + " " + c[i].Name }
func (c chainSource) Len() int            { return len(c) }

func matchChains(query string, chains []*story.Chain) []*story.Chain {
	matches := fuzzy.FindFrom(query, chainSource(chains))
	out := make([]*story.Chain, 0, len(matches))
	for _, m := range matches {
		out = append(out, chains[m.Index])
	}
	return out
}

func chainSummaryOutput(ch *story.Chain, events []*story.Event) ChainSummaryOutput {
	vars := make([]string, 0, len(ch.Variables))
	for _, v := range ch.Variables {
		vars = append(vars, v.Name)
	}
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	return ChainSummaryOutput{
		ID:         ch.ID,
		Name:       ch.Name,
		SourceFile: ch.SourceFile,
		Variables:  vars,
		Rules:      len(ch.Rules),
		Events:     ids,
	}
}
