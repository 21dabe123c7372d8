package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpile-erp/stockpile/internal/inventory"
	jobmetrics "github.com/stockpile-erp/stockpile/internal/jobs"
)

// ValuationWarmupJob pre-populates the valuation cache for active businesses.
type ValuationWarmupJob struct {
	Inventory *inventory.Service
	Pool      *pgxpool.Pool
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewValuationWarmupJob wires dependencies for the warmup handler.
func NewValuationWarmupJob(inventorySvc *inventory.Service, pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *ValuationWarmupJob {
	return &ValuationWarmupJob{Inventory: inventorySvc, Pool: pool, Logger: logger, Metrics: metrics}
}

// Handle processes valuation warmup tasks.
func (j *ValuationWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Inventory == nil {
		return errors.New("valuation warmup: handler not configured")
	}
	var payload ValuationWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskValuationWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	if j.Pool == nil {
		resultErr = errors.New("valuation warmup: pool not configured")
		return resultErr
	}
	rows, err := j.Pool.Query(ctx, `SELECT id FROM businesses WHERE is_active ORDER BY id`)
	if err != nil {
		resultErr = err
		logger.Error("load business scopes", slog.Any("error", err))
		return resultErr
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			resultErr = err
			return resultErr
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		resultErr = err
		return resultErr
	}

	warmed := 0
	for _, businessID := range ids {
		if _, err := j.Inventory.Valuate(ctx, businessID); err != nil {
			resultErr = err
			logger.Error("warm valuation", slog.Int64("business_id", businessID), slog.Any("error", err))
			return resultErr
		}
		warmed++
	}
	logger.Info("valuation warmup complete", slog.Int("businesses", warmed))
	return resultErr
}

func (j *ValuationWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *ValuationWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
