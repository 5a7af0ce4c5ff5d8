package archive

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the archiver on a cron schedule. It is used by the
// long-running watch mode; one-shot CLI invocations call Archiver.Run
// directly.
type Scheduler struct {
	cron     *cron.Cron
	archiver *Archiver
	logger   *slog.Logger
}

// NewScheduler wires the archiver onto the given cron expression.
func NewScheduler(archiver *Archiver, schedule string, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(),
		archiver: archiver,
		logger:   logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid archive schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	report, err := s.archiver.Run(false)
	if err != nil {
		s.logger.Error("scheduled archive pass failed", "error", err)
		return
	}
	s.logger.Info("scheduled archive pass finished",
		"examined", report.Examined,
		"archived", report.Archived)
}

// Start begins running the schedule in the cron's own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("archive scheduler started")
}

// Stop halts the schedule and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("archive scheduler stopped")
}
