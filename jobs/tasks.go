package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReservationSweep releases reservations whose hold deadline passed.
	TaskReservationSweep = "inventory:reservation-sweep"
	// TaskLowStockScan inspects all businesses for low and out-of-stock items.
	TaskLowStockScan = "inventory:low-stock-scan"
	// TaskValuationWarmup pre-populates the valuation cache per business.
	TaskValuationWarmup = "inventory:valuation-warmup"
)

// ReservationSweepPayload bounds a single sweep run.
type ReservationSweepPayload struct {
	Limit        int       `json:"limit"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewReservationSweepTask constructs an Asynq task for the reservation sweep.
func NewReservationSweepTask(limit int, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ReservationSweepPayload{Limit: limit, ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReservationSweep, body, asynq.Queue(QueueDefault)), nil
}

// LowStockScanPayload optionally narrows the scan to one business.
type LowStockScanPayload struct {
	BusinessID int64 `json:"business_id,omitempty"`
}

// NewLowStockScanTask constructs an Asynq task for the low stock scan.
func NewLowStockScanTask(businessID int64) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{BusinessID: businessID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// ValuationWarmupPayload carries scheduling metadata.
type ValuationWarmupPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewValuationWarmupTask constructs an Asynq task for the valuation warmup.
func NewValuationWarmupTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ValuationWarmupPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskValuationWarmup, body, asynq.Queue(QueueDefault)), nil
}
