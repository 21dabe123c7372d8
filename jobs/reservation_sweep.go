package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/stockpile-erp/stockpile/internal/inventory"
	jobmetrics "github.com/stockpile-erp/stockpile/internal/jobs"
)

const defaultSweepLimit = 100

// ReservationSweepJob releases expired reservations back to available stock.
type ReservationSweepJob struct {
	Inventory *inventory.Service
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewReservationSweepJob wires dependencies for the sweep handler.
func NewReservationSweepJob(inventorySvc *inventory.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReservationSweepJob {
	return &ReservationSweepJob{
		Inventory: inventorySvc,
		Logger:    logger,
		Metrics:   metrics,
	}
}

// Handle processes reservation sweep tasks.
func (j *ReservationSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Inventory == nil {
		return errors.New("reservation sweep: handler not configured")
	}
	var payload ReservationSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Limit <= 0 {
		payload.Limit = defaultSweepLimit
	}

	tracker := j.metrics().Track(TaskReservationSweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	expired, err := j.Inventory.ListExpiredReservations(ctx, payload.Limit)
	if err != nil {
		resultErr = err
		logger.Error("list expired reservations", slog.Any("error", err))
		return resultErr
	}
	if len(expired) == 0 {
		return resultErr
	}

	released := 0
	for _, res := range expired {
		if err := j.Inventory.ReleaseExpired(ctx, res.ID); err != nil {
			resultErr = err
			logger.Error("release expired reservation",
				slog.Int64("reservation_id", res.ID),
				slog.Int64("business_id", res.TenantID),
				slog.Any("error", err))
			return resultErr
		}
		released++
	}
	logger.Info("reservation sweep complete", slog.Int("released", released))
	return resultErr
}

func (j *ReservationSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *ReservationSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
