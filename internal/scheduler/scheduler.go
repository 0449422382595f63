/**
 * @description
 * Cron scheduler setup for the billing jobs.
 */
package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/clublibertad/billing-service/internal/config"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *slog.Logger
	config config.SchedulerConfig
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *slog.Logger, cfg config.SchedulerConfig) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
		config: cfg,
	}
}

// Start registers the jobs and starts the cron scheduler. It returns the
// number of jobs that were scheduled.
func (s *Scheduler) Start() int {
	scheduled := 0

	if _, err := s.cron.AddFunc(s.config.RefreshJobSchedule, s.jobs.RefreshBilling); err != nil {
		s.logger.Error("failed to schedule billing refresh job", "error", err)
	} else {
		scheduled++
		s.logger.Info("scheduled billing refresh job", "schedule", s.config.RefreshJobSchedule)
	}

	if _, err := s.cron.AddFunc(s.config.GenerateJobSchedule, s.jobs.GenerateFees); err != nil {
		s.logger.Error("failed to schedule fee generation job", "error", err)
	} else {
		scheduled++
		s.logger.Info("scheduled fee generation job", "schedule", s.config.GenerateJobSchedule)
	}

	s.cron.Start()
	return scheduled
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
