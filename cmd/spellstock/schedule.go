package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/ersonp/spellstock-core/internal/application/handlers"
)

type scheduleFlags struct {
	spec    string
	feedDir string
	pattern string
	mode    string
}

func newScheduleCmd() *cobra.Command {
	var flags scheduleFlags

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Periodically ingest new feeds and run the autopilot",
		Long: `Runs on a cron spec (autopilot.schedule by default). Each run ingests feed
files that appeared or changed in --feeds since the last run, then runs one
autopilot pass.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				spec := flags.spec
				if spec == "" {
					spec = d.Config.Autopilot.Schedule
				}
				s := newFeedScheduler(d.IngestHandler, d.AutopilotHandler, flags.feedDir, flags.pattern, flags.mode, d.Logger)
				return s.run(ctx, spec)
			})
		},
	}

	cmd.Flags().StringVar(&flags.spec, "cron", "", "Cron spec (default from config)")
	cmd.Flags().StringVar(&flags.feedDir, "feeds", "", "Directory polled for prediction feeds")
	cmd.Flags().StringVarP(&flags.pattern, "pattern", "p", DefaultFeedPattern, "Feed file pattern")
	cmd.Flags().StringVarP(&flags.mode, "mode", "m", "", "Autopilot mode (default from config)")
	return cmd
}

// feedScheduler ingests unseen feed files and runs the autopilot on a cron
// schedule. Runs never overlap.
type feedScheduler struct {
	ingest    *handlers.IngestHandler
	autopilot *handlers.AutopilotHandler
	feedDir   string
	pattern   string
	mode      string
	logger    *slog.Logger

	mu   sync.Mutex
	seen map[string]time.Time
}

func newFeedScheduler(ingest *handlers.IngestHandler, autopilot *handlers.AutopilotHandler, feedDir, pattern, mode string, logger *slog.Logger) *feedScheduler {
	return &feedScheduler{
		ingest:    ingest,
		autopilot: autopilot,
		feedDir:   feedDir,
		pattern:   pattern,
		mode:      mode,
		logger:    logger,
		seen:      make(map[string]time.Time),
	}
}

func (s *feedScheduler) run(ctx context.Context, spec string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn)))))
	if _, err := c.AddFunc(spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}

	s.logger.Info("scheduler started", "cron", spec, "feeds", s.feedDir, "pattern", s.pattern)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// tick runs one scheduled pass and reports how many files it ingested.
func (s *feedScheduler) tick(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ingested := 0
	files, err := s.pendingFeeds()
	if err != nil {
		s.logger.Error("listing feeds", "dir", s.feedDir, "error", err)
	}
	for _, f := range files {
		res, err := s.ingest.Handle(ctx, f.path, "")
		if err != nil {
			s.logger.Error("ingesting feed", "file", f.path, "error", err)
			continue
		}
		s.seen[f.path] = f.modTime
		ingested++
		s.logger.Info("feed ingested", "file", f.path,
			"admitted", res.Summary.Admitted, "escalated", res.Summary.Escalated,
			"suppressed", res.Summary.Suppressed, "actions", res.Summary.ActionsProposed)
	}

	res, err := s.autopilot.Handle(ctx, s.mode)
	if err != nil {
		s.logger.Error("autopilot run", "error", err)
		return ingested
	}
	s.logger.Info("autopilot run", "mode", res.Mode,
		"executed", len(res.AutoExecuted), "held", len(res.HeldForApproval), "failed", len(res.Failed))
	return ingested
}

type feedFile struct {
	path    string
	modTime time.Time
}

// pendingFeeds lists matching files that are new or modified since they
// were last ingested, in name order.
func (s *feedScheduler) pendingFeeds() ([]feedFile, error) {
	if s.feedDir == "" {
		return nil, nil
	}
	matches, err := filepath.Glob(filepath.Join(s.feedDir, s.pattern))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	var out []feedFile
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if last, ok := s.seen[path]; ok && !info.ModTime().After(last) {
			continue
		}
		out = append(out, feedFile{path: path, modTime: info.ModTime()})
	}
	return out, nil
}
