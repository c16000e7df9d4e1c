package service

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"loan-widget/apperr"
)

// Scheduler runs the periodic widget jobs.
type Scheduler struct {
	cron            *cron.Cron
	widgets         *WidgetService
	syncer          *ProgressSyncer
	refreshSchedule string
	syncSchedule    string
	logger          *slog.Logger
}

// NewScheduler creates a scheduler. An empty schedule disables its job; a nil
// syncer disables progress sync.
func NewScheduler(widgets *WidgetService, syncer *ProgressSyncer, refreshSchedule, syncSchedule string, logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:            c,
		widgets:         widgets,
		syncer:          syncer,
		refreshSchedule: refreshSchedule,
		syncSchedule:    syncSchedule,
		logger:          logger,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if s.refreshSchedule != "" {
		if _, err := s.cron.AddFunc(s.refreshSchedule, func() {
			s.widgets.RefreshAll(context.Background())
		}); err != nil {
			return err
		}
		s.logger.Info("scheduled widget refresh job", "schedule", s.refreshSchedule)
	}

	if s.syncSchedule != "" && s.syncer != nil {
		if _, err := s.cron.AddFunc(s.syncSchedule, func() {
			s.syncer.SyncProgress(context.Background())
		}); err != nil {
			return err
		}
		s.logger.Info("scheduled progress sync job", "schedule", s.syncSchedule)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler; the returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// ProgressSyncer pulls the loan record from the server into the cache.
type ProgressSyncer struct {
	remote  ProgressFetcher
	cache   ProgressStore
	refresh RefreshSignaler
	logger  *slog.Logger
}

func NewProgressSyncer(remote ProgressFetcher, cache ProgressStore, refresh RefreshSignaler, logger *slog.Logger) *ProgressSyncer {
	return &ProgressSyncer{
		remote:  remote,
		cache:   cache,
		refresh: refresh,
		logger:  logger,
	}
}

// SyncProgress fetches the loan record once. An absent record or a failed
// fetch leaves the cache as it was.
func (s *ProgressSyncer) SyncProgress(ctx context.Context) {
	p, err := s.remote.GetLoanProgress(ctx)
	if err != nil {
		s.logger.Error("failed to fetch loan progress", "error", err, "kind", apperr.Kind(err))
		return
	}
	if p == nil {
		s.logger.Debug("server has no loan progress")
		return
	}

	if err := s.cache.SetLoanProgress(ctx, *p); err != nil {
		s.logger.Error("failed to store loan progress", "error", err)
		return
	}
	s.refresh.Broadcast()
}
