package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ContentFactory/internal/ports"
)

// Scheduler wires the daily drivers to the factory: one plans the day, the
// other writes the day-end report.
type Scheduler struct {
	planning ports.Scheduler
	report   ports.Scheduler
	factory  *Factory
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop the daily jobs.
func NewScheduler(planning, report ports.Scheduler, factory *Factory, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{planning: planning, report: report, factory: factory, logger: logger}
}

// Start registers the planning and report jobs with their drivers.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.factory == nil {
		return nil
	}

	if s.planning != nil {
		err := s.planning.Start(ctx, func(trigger time.Time) {
			if _, err := s.factory.RunPlanningCycle(ctx, trigger); err != nil {
				s.logger.Error("daily planning failed", "error", err)
			}
		})
		if err != nil {
			return err
		}
	}

	if s.report != nil {
		err := s.report.Start(ctx, func(time.Time) {
			if _, err := s.factory.FlushReport(ctx, "daily"); err != nil {
				s.logger.Error("daily report failed", "error", err)
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Stop gracefully tears down both drivers.
func (s *Scheduler) Stop(ctx context.Context) error {
	var errs []error
	if s.planning != nil {
		errs = append(errs, s.planning.Stop(ctx))
	}
	if s.report != nil {
		errs = append(errs, s.report.Stop(ctx))
	}
	return errors.Join(errs...)
}
