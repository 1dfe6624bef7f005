package services

import (
	"fmt"
	"log/slog"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the backlog sweep once a day at midnight.
const DefaultSweepSchedule = "@daily"

// sprintSweeper is the part of SprintService the sweeper drives.
type sprintSweeper interface {
	SweepEndedSprints() (int, error)
}

// BacklogSweeper periodically returns unfinished stories of ended sprints to
// the product backlog.
type BacklogSweeper struct {
	sprints  sprintSweeper
	logger   *slog.Logger
	schedule string
	cron     *rcron.Cron
}

// NewBacklogSweeper creates a sweeper. An empty schedule uses
// DefaultSweepSchedule.
func NewBacklogSweeper(sprints sprintSweeper, logger *slog.Logger, schedule string) *BacklogSweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BacklogSweeper{
		sprints:  sprints,
		logger:   logger,
		schedule: schedule,
	}
}

// Start registers the sweep and starts the scheduler. It also sweeps once
// immediately so a restart never leaves stories behind.
func (s *BacklogSweeper) Start() error {
	s.cron = rcron.New()
	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce() }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	s.RunOnce()
	s.cron.Start()
	s.logger.Info("backlog sweeper started", "schedule", s.schedule)
	return nil
}

// RunOnce performs a single sweep and reports how many stories moved.
func (s *BacklogSweeper) RunOnce() int {
	moved, err := s.sprints.SweepEndedSprints()
	if err != nil {
		s.logger.Error("backlog sweep failed", "error", err, "moved", moved)
		return moved
	}
	if moved > 0 {
		s.logger.Info("returned unfinished stories to backlog", "moved", moved)
	}
	return moved
}

// Stop halts the scheduler and waits briefly for a running sweep.
func (s *BacklogSweeper) Stop() {
	if s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		s.logger.Warn("backlog sweeper stop timed out waiting for a running sweep")
	}
	s.logger.Info("backlog sweeper stopped")
}
