package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/pawnbroker/internal/engine"
)

func simulateCmd() *cobra.Command {
	var (
		days     int
		seed     int64
		interval time.Duration
		resume   bool
		save     bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Play days on autopilot with a fixed strategy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := openSession(ctx, seed, !resume)
			if err != nil {
				return err
			}
			defer s.Close(context.Background())

			eng := engine.NewEngine(s.game)
			eng.Interval = interval
			eng.OnDay = func(r engine.DayResult) {
				fmt.Fprintf(cmd.OutOrStdout(), "day %3d  cash $%-10s deals %d  walkouts %d  rejected %d  settled %d  concluded %d  forfeited %d  rep %s\n",
					r.Day, humanize.Comma(int64(r.Cash)),
					r.Visits[engine.OutcomeDeal], r.Visits[engine.OutcomeWalkout],
					r.Visits[engine.OutcomeRejected], r.Visits[engine.OutcomeSettled], r.Visits[engine.OutcomeConcluded],
					r.Forfeited, r.Reputation.Bucket())
			}

			sum, runErr := eng.Run(ctx, days)
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d days, final cash $%s, %d deals", sum.Days, humanize.Comma(int64(sum.Cash)), sum.Visits[engine.OutcomeDeal])
			if sum.GameOver {
				fmt.Fprint(cmd.OutOrStdout(), ", bankrupt")
			}
			fmt.Fprintln(cmd.OutOrStdout())

			if save {
				if err := s.db.SaveGame(s.game.State()); err != nil {
					return err
				}
			}
			if runErr != nil && ctx.Err() == nil {
				return runErr
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "number of days to play")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (default from config, else random)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "pause between days")
	cmd.Flags().BoolVar(&resume, "resume", false, "continue the saved game instead of starting fresh")
	cmd.Flags().BoolVar(&save, "save", false, "save the game when done")
	return cmd
}
