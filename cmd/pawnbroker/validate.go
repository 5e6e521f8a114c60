package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/talgya/pawnbroker/internal/config"
	"github.com/talgya/pawnbroker/internal/mail"
	"github.com/talgya/pawnbroker/internal/story"
	"github.com/talgya/pawnbroker/internal/validate"
)

var (
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func validateCmd() *cobra.Command {
	var (
		dir      string
		mailFile string
		prompt   bool
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the story corpus for authoring defects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.StoryDir
			}
			if mailFile == "" {
				mailFile = cfg.MailFile
			}
			return runValidate(os.Stdout, dir, mailFile, prompt)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "story directory (default from config)")
	cmd.Flags().StringVar(&mailFile, "mail", "", "mail template file (default from config)")
	cmd.Flags().BoolVar(&prompt, "prompt", false, "also print the repair prompt")
	return cmd
}

func runValidate(out io.Writer, dir, mailFile string, prompt bool) error {
	corpus, err := story.ReadDir(dir)
	if err != nil {
		return err
	}
	reg, err := mail.LoadRegistry(mailFile)
	if err != nil {
		return err
	}
	report := validate.Run(corpus, reg.IDs())

	errorIssues := report.Errors()
	warnIssues := report.Warnings()

	if len(errorIssues) == 0 && len(warnIssues) == 0 {
		fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("No issues found (%d chains, %d events).", len(corpus.Chains), len(corpus.Events))))
		return nil
	}

	if len(errorIssues) > 0 {
		fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("Errors (%d):", len(errorIssues))))
		printIssues(out, errorIssues)
	}
	if len(warnIssues) > 0 {
		if len(errorIssues) > 0 {
			fmt.Fprintln(out, "")
		}
		fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("Warnings (%d):", len(warnIssues))))
		printIssues(out, warnIssues)
	}

	if prompt {
		fmt.Fprintln(out, "")
		fmt.Fprintln(out, validate.RepairPrompt(report))
	}

	if len(errorIssues) > 0 {
		return fmt.Errorf("validation found errors")
	}
	return nil
}

func printIssues(out io.Writer, issues []validate.Issue) {
	for _, issue := range issues {
		location := issue.Event
		if location == "" {
			location = "chain " + issue.Chain
		}
		if issue.FilePath != "" {
			location = fmt.Sprintf("%s (%s)", location, issue.FilePath)
		}
		fmt.Fprintf(out, "  - %s: %s (%s)\n", location, issue.Message, issue.Type)
		if issue.Suggestion != "" {
			fmt.Fprintf(out, "    %s\n", hintStyle.Render(issue.Suggestion))
		}
	}
}
