/*
sweeper.go - Scheduled alert sweeps

PURPOSE:
  Runs the reconciler on a cron schedule so alerts stay current without
  anyone pressing the sweep button. The default cadence is daily shortly
  after midnight, when "today" has just rolled over and every due-date
  classification can change.

DESIGN:
  - robfig/cron drives the cadence; the spec is configurable at startup
  - One sweep also runs immediately on Start so a fresh deployment does
    not wait a day for its first alerts
  - Sweeps are safe to overlap with manual /api/alerts/sweep calls; the
    store's dedupe key arbitrates

USAGE:
  sweeper := NewSweeper(reconciler, "15 0 * * *", log)
  if err := sweeper.Start(); err != nil { ... }
  defer sweeper.Stop()

SEE ALSO:
  - alerts/reconciler.go: The sweep itself
*/
package api

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/haven/compliance-engine/alerts"
	"github.com/haven/compliance-engine/engine"
)

// DefaultSweepSpec runs the sweep at 00:15 local time every day.
const DefaultSweepSpec = "15 0 * * *"

// Sweeper schedules recurring alert sweeps.
type Sweeper struct {
	reconciler *alerts.Reconciler
	spec       string
	log        *logrus.Logger
	cron       *cron.Cron
}

// NewSweeper creates a sweeper on the given cron spec. An empty spec uses
// DefaultSweepSpec.
func NewSweeper(rec *alerts.Reconciler, spec string, log *logrus.Logger) *Sweeper {
	if spec == "" {
		spec = DefaultSweepSpec
	}
	if log == nil {
		log = logrus.New()
	}
	return &Sweeper{
		reconciler: rec,
		spec:       spec,
		log:        log,
		cron:       cron.New(),
	}
}

// Start registers the cron entry, runs one immediate sweep, and begins the
// schedule.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.sweep); err != nil {
		return err
	}
	go s.sweep()
	s.cron.Start()
	s.log.WithField("spec", s.spec).Info("sweep schedule started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("sweep schedule stopped")
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	today := engine.DateOf(time.Now())
	if _, err := s.reconciler.Reconcile(ctx, today); err != nil {
		s.log.WithError(err).Error("scheduled sweep failed")
	}
}
