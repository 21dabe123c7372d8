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

// LowStockScanJob walks active businesses and raises alerts for items at or
// below their reorder level.
type LowStockScanJob struct {
	Inventory *inventory.Service
	Pool      *pgxpool.Pool
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewLowStockScanJob wires dependencies for the scan handler.
func NewLowStockScanJob(inventorySvc *inventory.Service, pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Inventory: inventorySvc, Pool: pool, Logger: logger, Metrics: metrics}
}

// Handle processes low stock scan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Inventory == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskLowStockScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	businessIDs, err := j.businessIDs(ctx, payload.BusinessID)
	if err != nil {
		resultErr = err
		logger.Error("load business scopes", slog.Any("error", err))
		return resultErr
	}

	for _, businessID := range businessIDs {
		low, err := j.Inventory.ListLowStock(ctx, businessID)
		if err != nil {
			resultErr = err
			logger.Error("scan low stock", slog.Int64("business_id", businessID), slog.Any("error", err))
			return resultErr
		}
		out, err := j.Inventory.ListOutOfStock(ctx, businessID)
		if err != nil {
			resultErr = err
			logger.Error("scan out of stock", slog.Int64("business_id", businessID), slog.Any("error", err))
			return resultErr
		}
		for _, rec := range low {
			logger.Warn("low stock",
				slog.Int64("business_id", businessID),
				slog.Int64("product_id", rec.ProductID),
				slog.Int64("available", rec.Available()),
				slog.Int64("reorder_level", rec.ReorderLevel))
		}
		for _, rec := range out {
			logger.Warn("out of stock",
				slog.Int64("business_id", businessID),
				slog.Int64("product_id", rec.ProductID))
		}
		j.metrics().AddStockAlerts("low", businessID, len(low))
		j.metrics().AddStockAlerts("out", businessID, len(out))
	}
	return resultErr
}

func (j *LowStockScanJob) businessIDs(ctx context.Context, only int64) ([]int64, error) {
	if only > 0 {
		return []int64{only}, nil
	}
	if j.Pool == nil {
		return nil, errors.New("low stock scan: pool not configured")
	}
	rows, err := j.Pool.Query(ctx, `SELECT id FROM businesses WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (j *LowStockScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
