// Package maintenance runs periodic housekeeping jobs.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/btouchard/readyalert/internal/config"
)

const jobTimeout = 30 * time.Second

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Pinger checks the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Resetter wipes the demo data set.
type Resetter interface {
	ResetDemo(ctx context.Context) (int64, error)
}

// Scheduler owns the cron runner.
type Scheduler struct {
	c *cron.Cron
}

// New schedules the configured jobs. An empty schedule disables its job.
// resetter may be nil when no demo reset is wanted.
func New(cfg config.MaintenanceConfig, loc *time.Location, pinger Pinger, resetter Resetter) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{c: cron.New(cron.WithParser(parser), cron.WithLocation(loc))}

	if cfg.KeepaliveSchedule != "" {
		if _, err := s.c.AddFunc(cfg.KeepaliveSchedule, func() { Keepalive(pinger) }); err != nil {
			return nil, fmt.Errorf("keepalive schedule %q: %w", cfg.KeepaliveSchedule, err)
		}
	}

	if cfg.DemoResetSchedule != "" && resetter != nil {
		if _, err := s.c.AddFunc(cfg.DemoResetSchedule, func() { DemoReset(resetter) }); err != nil {
			return nil, fmt.Errorf("demo reset schedule %q: %w", cfg.DemoResetSchedule, err)
		}
	}

	return s, nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.c.Start()
	slog.Info("maintenance scheduler started", "jobs", len(s.c.Entries()))
}

// Stop stops scheduling and waits for running jobs to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.c.Stop().Done():
	case <-ctx.Done():
	}
}

// Jobs returns the number of scheduled jobs.
func (s *Scheduler) Jobs() int {
	return len(s.c.Entries())
}

// Keepalive pings the store so hosted databases are not suspended for inactivity.
func Keepalive(p Pinger) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		slog.Warn("keepalive ping failed", "error", err)
		return
	}
	slog.Debug("keepalive ping ok")
}

// DemoReset clears all events.
func DemoReset(r Resetter) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := r.ResetDemo(ctx)
	if err != nil {
		slog.Warn("scheduled demo reset failed", "error", err)
		return
	}
	slog.Info("scheduled demo reset", "events_deleted", n)
}
