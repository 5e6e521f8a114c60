package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/pawnbroker/internal/api"
)

func serveCmd() *cobra.Command {
	var fresh bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the game over the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := openSession(ctx, 0, fresh)
			if err != nil {
				return err
			}
			defer s.Close(context.Background())

			srv := &api.Server{
				Game:     s.game,
				DB:       s.db,
				Port:     s.cfg.API.Port,
				AdminKey: s.cfg.API.AdminKey,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := srv.Start(gctx); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error { return srv.Autosave(gctx, s.cfg.API.Autosave) })
			err = g.Wait()

			// Save on the way out so a restart resumes where play stopped.
			if saveErr := s.db.SaveGame(s.game.State()); saveErr != nil {
				slog.Error("final save failed", "error", saveErr)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&fresh, "new", false, "start a new game even if a save exists")
	return cmd
}
