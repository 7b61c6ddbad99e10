// Package scheduler runs the periodic preventive-maintenance sweep. It wraps
// a cron runner around the engine's due-schedule generation so a long-running
// server keeps opening work orders without operator action.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"plantline/internal/engine"
)

type Scheduler struct {
	Engine  engine.Engine
	Spec    string
	ActorID string
	Logger  *logrus.Logger

	cron *cron.Cron
}

func New(e engine.Engine, spec string, logger *logrus.Logger) *Scheduler {
	if spec == "" {
		spec = "0 6 * * *"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Scheduler{
		Engine:  e,
		Spec:    spec,
		ActorID: "scheduler",
		Logger:  logger,
	}
}

// Start registers the sweep and launches the cron loop. It runs one sweep
// immediately so a freshly started server catches up on anything past due.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.Spec, func() { s.sweep(ctx) }); err != nil {
		return err
	}
	s.sweep(ctx)
	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	created, err := s.Engine.GenerateDueWorkOrders(ctx, s.ActorID)
	if err != nil {
		s.Logger.WithError(err).Error("preventive maintenance sweep failed")
		return
	}
	if len(created) > 0 {
		s.Logger.WithField("work_orders", len(created)).Info("generated preventive work orders")
	}
}
