package schedule

import (
	"context"
	"time"

	"github.com/pborman/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/groupmate/groupmate/internal/config"
	"github.com/groupmate/groupmate/internal/infra"
)

// Scheduler fires the daily reminder pass at the configured hour and runs the
// graduation purge after it. Implements lifecycle.Component.
type Scheduler struct {
	service *Service
	cfg     config.Schedule
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewScheduler(service *Service, cfg config.Schedule) *Scheduler {
	return &Scheduler{service: service, cfg: cfg}
}

func (s *Scheduler) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})

	// done is closed on the cancellation branch only: a recovered panic
	// restarts the loop body, and a deferred close would fire once per
	// restart.
	go infra.GoRecoverable(-1, "scheduler", func() {
		for {
			next := s.nextRun()
			timer := time.NewTimer(time.Until(next))
			select {
			case <-runCtx.Done():
				timer.Stop()
				close(s.done)
				return
			case <-timer.C:
			}
			s.runOnce(runCtx)
		}
	})
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	runID := uuid.New()
	l := log.WithField("run_id", runID)

	l.Info("reminder pass starts")
	if err := s.service.RunReminders(ctx); err != nil {
		l.WithError(err).Error("reminder pass failed")
	}
	if err := s.service.PurgeGraduated(ctx, s.cfg); err != nil {
		l.WithError(err).Error("graduation purge failed")
	}
	l.Info("reminder pass finishes")
}

// nextRun is today at the reminder hour, or tomorrow when that has passed.
func (s *Scheduler) nextRun() time.Time {
	now := s.service.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.cfg.ReminderHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
