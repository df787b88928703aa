package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ersonp/spellstock-core/internal/application/api"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var (
		addr     string
		schedule bool
		feedDir  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the action lifecycle over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				if addr == "" {
					addr = d.Config.Server.Addr
				}

				srv := &http.Server{
					Addr: addr,
					Handler: api.NewServer(api.Handlers{
						Actions:   d.ActionsHandler,
						Query:     d.QueryHandler,
						Alerts:    d.AlertsHandler,
						Autopilot: d.AutopilotHandler,
						Agent:     d.AgentHandler,
						Ingest:    d.IngestHandler,
					}, d.Logger).Router(),
					ReadHeaderTimeout: 10 * time.Second,
				}

				// The scheduler must stop before the store closes.
				schedCtx, stopScheduler := context.WithCancel(ctx)
				schedDone := make(chan struct{})
				defer func() {
					stopScheduler()
					<-schedDone
				}()
				go func() {
					defer close(schedDone)
					if !schedule {
						return
					}
					s := newFeedScheduler(d.IngestHandler, d.AutopilotHandler, feedDir, DefaultFeedPattern, "", d.Logger)
					if err := s.run(schedCtx, d.Config.Autopilot.Schedule); err != nil {
						d.Logger.Error("scheduler", "error", err)
					}
				}()

				errCh := make(chan error, 1)
				go func() {
					d.Logger.Info("api listening", "addr", addr, "restaurant", d.RestaurantName)
					errCh <- srv.ListenAndServe()
				}()

				select {
				case err := <-errCh:
					if errors.Is(err, http.ErrServerClosed) {
						return nil
					}
					return fmt.Errorf("serving http: %w", err)
				case <-ctx.Done():
				}

				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("shutting down: %w", err)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().BoolVar(&schedule, "schedule", false, "Also run the feed scheduler")
	cmd.Flags().StringVar(&feedDir, "feeds", "", "Feed directory for --schedule")
	return cmd
}
