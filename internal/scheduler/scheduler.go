// Package scheduler provides cron-based background jobs for CareVoice, such
// as sweeping finished report sessions out of the in-memory registry once
// their post-session edit window has passed.
package scheduler

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler runs registered jobs on cron expressions.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a scheduler using the standard 5-field cron
// syntax (minute, hour, day of month, month, day of week). Panicking jobs are
// recovered and logged rather than taking the process down.
func NewScheduler() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	slog.Debug("scheduler.NewScheduler: scheduler started")
	return &Scheduler{cron: c}
}

// AddJob schedules a task on the given cron expression.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	if err != nil {
		return err
	}
	slog.Debug("Scheduler.AddJob: job scheduled", "expr", expr)
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
