package scheduler

import (
	"context"
	"fmt"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"github.com/codr1/venuecal/internal/booking"
	"github.com/codr1/venuecal/internal/db"
	"github.com/codr1/venuecal/internal/metrics"
)

const StatusSweepJobName = "booking_status_sweep"

// Sweeper moves bookings whose time has passed into a terminal status.
type Sweeper interface {
	SweepStatuses(ctx context.Context) (db.SweepResult, error)
}

// RegisterStatusSweep runs the sweep on cronExpr. m may be nil.
func RegisterStatusSweep(s *Service, sweeper Sweeper, cronExpr string, m *metrics.Store) (gocron.Job, error) {
	if sweeper == nil {
		return nil, fmt.Errorf("status sweep requires a sweeper")
	}
	if m == nil {
		m = metrics.NewStore(nil)
	}
	return s.AddJob(StatusSweepJobName, cronExpr, func(ctx context.Context) {
		RunStatusSweep(ctx, sweeper, m)
	})
}

// RunStatusSweep runs one sweep and records what it changed.
func RunStatusSweep(ctx context.Context, sweeper Sweeper, m *metrics.Store) (db.SweepResult, error) {
	logger := zerolog.Ctx(ctx)
	result, err := sweeper.SweepStatuses(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Booking status sweep failed")
		return db.SweepResult{}, err
	}
	m.StatusSweeps.WithLabelValues(string(booking.StatusExpired)).Add(float64(result.Expired))
	m.StatusSweeps.WithLabelValues(string(booking.StatusFinished)).Add(float64(result.Finished))
	if result.Expired > 0 || result.Finished > 0 {
		logger.Info().
			Int64("expired", result.Expired).
			Int64("finished", result.Finished).
			Msg("Booking statuses swept")
	}
	return result, nil
}
