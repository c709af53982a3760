// Package scheduler drives the periodic recheck pass: once at startup, then
// on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/robfig/cron/v3"

	"github.com/goliatone/go-cart-recovery/core"
)

// PassRunner is the recheck entry point the scheduler ticks.
type PassRunner interface {
	RunPass(ctx context.Context) (core.PassStats, error)
}

type Scheduler struct {
	runner   PassRunner
	interval time.Duration
	logger   core.Logger
	cron     *cron.Cron
}

func New(runner PassRunner, interval time.Duration) (*Scheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("scheduler: pass runner is required")
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   glog.Nop(),
		cron:     cron.New(),
	}, nil
}

func (s *Scheduler) WithLogger(logger core.Logger) *Scheduler {
	if s != nil && logger != nil {
		s.logger = logger
	}
	return s
}

// Start runs one pass immediately so a restart never waits a full interval,
// then ticks until Stop is called. A failed pass is logged and the schedule
// keeps going; the next tick is the retry.
func (s *Scheduler) Start(ctx context.Context) error {
	if s == nil || s.runner == nil {
		return fmt.Errorf("scheduler: not configured")
	}
	s.runOnce(ctx)
	s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		s.runOnce(ctx)
	}))
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for an in-flight pass to finish.
func (s *Scheduler) Stop() {
	if s == nil || s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	stats, err := s.runner.RunPass(ctx)
	if err != nil {
		s.logger.Error("recheck pass failed", "error", err.Error())
		return
	}
	s.logger.Debug("recheck pass completed",
		"scanned", stats.Scanned,
		"notified", stats.Notified,
	)
}
