package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/stockpile-erp/stockpile/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, tenantID, id int64) (Record, error)
	GetByProduct(ctx context.Context, tenantID, productID int64) (Record, error)
	List(ctx context.Context, filter ListFilter) ([]Record, int, error)
	Update(ctx context.Context, tenantID, id int64, input UpdateRecordInput) (Record, error)
	Delete(ctx context.Context, tenantID, id int64) error
	ListMovements(ctx context.Context, tenantID, recordID int64, limit int) ([]Movement, error)
	ValuationLines(ctx context.Context, tenantID int64) ([]ValuationLine, error)
	ListExpiredReservations(ctx context.Context, cutoff time.Time, limit int) ([]Reservation, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MovementRecorder receives a signal per posted movement, used for metrics.
type MovementRecorder interface {
	RecordMovement(movementType string)
}

// Service coordinates inventory operations. All quantity invariants are
// enforced here inside a single transaction per operation.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	cache   *ValuationCache
	metrics MovementRecorder
	now     func() time.Time
}

// NewService builds Service. audit, cache and metrics may be nil.
func NewService(repo RepositoryPort, audit AuditPort, cache *ValuationCache, metrics MovementRecorder) *Service {
	return &Service{repo: repo, audit: audit, cache: cache, metrics: metrics, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Create registers a new stock record. A positive initial quantity is posted
// as an IN movement so the ledger stays complete from the first unit.
func (s *Service) Create(ctx context.Context, input CreateRecordInput) (Record, error) {
	if input.TenantID == 0 || input.ProductID == 0 {
		return Record{}, fmt.Errorf("%w: tenant and product required", ErrInvalidQuantity)
	}
	if input.OnHand < 0 {
		return Record{}, ErrInsufficientStock
	}
	if input.ReorderLevel < 0 || input.MaxStockLevel < 0 {
		return Record{}, fmt.Errorf("inventory: levels must be >= 0")
	}
	if input.UnitCost < 0 {
		return Record{}, ErrInvalidUnitCost
	}

	var created Record
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec := Record{
			TenantID:      input.TenantID,
			ProductID:     input.ProductID,
			OnHand:        input.OnHand,
			ReorderLevel:  input.ReorderLevel,
			MaxStockLevel: input.MaxStockLevel,
			Location:      input.Location,
			AvgUnitCost:   input.UnitCost,
		}
		var err error
		created, err = tx.CreateRecord(ctx, rec)
		if err != nil {
			return err
		}
		if input.OnHand > 0 {
			m := s.movement(created, MovementIn, input.OnHand, ReasonManualCorrection, input.UnitCost, "", input.ActorID, "initial stock")
			if _, err := tx.InsertMovement(ctx, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	s.afterWrite(ctx, created.TenantID, "inventory:create", created, input.ActorID, map[string]any{
		"product_id": created.ProductID,
		"on_hand":    created.OnHand,
	})
	return created, nil
}

// Get fetches one record by id.
func (s *Service) Get(ctx context.Context, tenantID, id int64) (Record, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// GetByProduct fetches the record tracking the given product.
func (s *Service) GetByProduct(ctx context.Context, tenantID, productID int64) (Record, error) {
	return s.repo.GetByProduct(ctx, tenantID, productID)
}

// List returns filtered records for a tenant.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Record, int, error) {
	if filter.TenantID == 0 {
		return nil, 0, fmt.Errorf("inventory: tenant scope required")
	}
	return s.repo.List(ctx, filter)
}

// ListLowStock returns records whose available quantity sits in (0, reorderLevel].
func (s *Service) ListLowStock(ctx context.Context, tenantID int64) ([]Record, error) {
	records, _, err := s.List(ctx, ListFilter{TenantID: tenantID, LowStock: true})
	return records, err
}

// ListOutOfStock returns records with zero available quantity.
func (s *Service) ListOutOfStock(ctx context.Context, tenantID int64) ([]Record, error) {
	records, _, err := s.List(ctx, ListFilter{TenantID: tenantID, OutOfStock: true})
	return records, err
}

// Update changes levels and location. Quantities are out of reach on purpose.
func (s *Service) Update(ctx context.Context, tenantID, id int64, input UpdateRecordInput) (Record, error) {
	if input.ReorderLevel != nil && *input.ReorderLevel < 0 {
		return Record{}, fmt.Errorf("inventory: reorder level must be >= 0")
	}
	if input.MaxStockLevel != nil && *input.MaxStockLevel < 0 {
		return Record{}, fmt.Errorf("inventory: max stock level must be >= 0")
	}
	return s.repo.Update(ctx, tenantID, id, input)
}

// Delete removes a record from tracking.
func (s *Service) Delete(ctx context.Context, tenantID, id int64) error {
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Bump(ctx, tenantID)
	}
	return nil
}

// ListMovements returns the stock card for one record.
func (s *Service) ListMovements(ctx context.Context, tenantID, recordID int64, limit int) ([]Movement, error) {
	if _, err := s.repo.Get(ctx, tenantID, recordID); err != nil {
		return nil, err
	}
	return s.repo.ListMovements(ctx, tenantID, recordID, limit)
}

// Adjust applies a signed delta to on-hand quantity. The record is left
// unchanged when the delta would drive on-hand negative, and a sale may not
// consume stock that is still reserved.
func (s *Service) Adjust(ctx context.Context, input AdjustmentInput) (Record, error) {
	if err := validateAdjustment(input.TenantID, input.ProductID, input.Delta, input.Reason, input.UnitCost, input.RefID); err != nil {
		return Record{}, err
	}

	var updated Record
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		updated, err = s.applyDelta(ctx, tx, input)
		return err
	})
	if err != nil {
		return Record{}, err
	}
	s.afterWrite(ctx, input.TenantID, "inventory:adjust", updated, input.ActorID, map[string]any{
		"product_id": input.ProductID,
		"delta":      input.Delta,
		"reason":     string(input.Reason),
	})
	return updated, nil
}

// BulkAdjust applies a batch of adjustments all-or-nothing: the first failing
// item aborts the transaction and nothing commits. The error names the
// offending item index.
func (s *Service) BulkAdjust(ctx context.Context, tenantID int64, items []BulkAdjustmentItem, actorID int64) ([]Record, error) {
	if tenantID == 0 {
		return nil, fmt.Errorf("inventory: tenant scope required")
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrInvalidDelta)
	}
	for i, item := range items {
		if err := validateAdjustment(tenantID, item.ProductID, item.Delta, item.Reason, item.UnitCost, ""); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}

	updated := make([]Record, 0, len(items))
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for i, item := range items {
			rec, err := s.applyDelta(ctx, tx, AdjustmentInput{
				TenantID:  tenantID,
				ProductID: item.ProductID,
				Delta:     item.Delta,
				Reason:    item.Reason,
				UnitCost:  item.UnitCost,
				ActorID:   actorID,
				Note:      item.Note,
			})
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			updated = append(updated, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx, tenantID, "inventory:bulk-adjust", Record{TenantID: tenantID}, actorID, map[string]any{
		"items": len(items),
	})
	return updated, nil
}

// Reserve earmarks available stock. The check and the update happen under a
// row lock so two concurrent reservations cannot both win the same units.
func (s *Service) Reserve(ctx context.Context, input ReservationInput) (Record, error) {
	if input.TenantID == 0 || input.ProductID == 0 {
		return Record{}, fmt.Errorf("inventory: tenant and product required")
	}
	if input.Qty <= 0 {
		return Record{}, ErrInvalidQuantity
	}
	if err := validateRef(input.RefID); err != nil {
		return Record{}, err
	}

	var updated Record
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.GetRecordForUpdate(ctx, input.TenantID, input.ProductID)
		if err != nil {
			return err
		}
		if rec.Reserved+input.Qty > rec.OnHand {
			return ErrInsufficientAvailable
		}
		rec.Reserved += input.Qty

		m := s.movement(rec, MovementReserve, input.Qty, ReasonSale, rec.AvgUnitCost, input.RefID, input.ActorID, input.Note)
		if _, err := tx.InsertMovement(ctx, m); err != nil {
			return err
		}
		res := Reservation{
			RecordID:  rec.ID,
			TenantID:  rec.TenantID,
			ProductID: rec.ProductID,
			Qty:       input.Qty,
			RefID:     input.RefID,
		}
		if input.TTL > 0 {
			res.ExpiresAt = s.now().UTC().Add(input.TTL)
		}
		if _, err := tx.InsertReservation(ctx, res); err != nil {
			return err
		}
		if err := tx.UpdateQuantities(ctx, rec); err != nil {
			return err
		}
		updated = rec
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	s.recordMovement(MovementReserve)
	s.auditLog(ctx, input.TenantID, "inventory:reserve", updated, input.ActorID, map[string]any{
		"product_id": input.ProductID,
		"qty":        input.Qty,
		"ref_id":     input.RefID,
	})
	return updated, nil
}

// Release returns reserved stock to the available pool. Reservations
// carrying the reference are consumed oldest first; a partially consumed
// reservation keeps its remaining qty and expiry deadline.
func (s *Service) Release(ctx context.Context, input ReleaseInput) (Record, error) {
	if input.TenantID == 0 || input.ProductID == 0 {
		return Record{}, fmt.Errorf("inventory: tenant and product required")
	}
	if input.Qty <= 0 {
		return Record{}, ErrInvalidQuantity
	}
	if err := validateRef(input.RefID); err != nil {
		return Record{}, err
	}

	var updated Record
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.GetRecordForUpdate(ctx, input.TenantID, input.ProductID)
		if err != nil {
			return err
		}
		if input.Qty > rec.Reserved {
			return ErrInvalidRelease
		}
		rec.Reserved -= input.Qty

		m := s.movement(rec, MovementRelease, input.Qty, ReasonSale, rec.AvgUnitCost, input.RefID, input.ActorID, input.Note)
		if _, err := tx.InsertMovement(ctx, m); err != nil {
			return err
		}
		if err := tx.ReduceReservationsByRef(ctx, rec.ID, input.RefID, input.Qty); err != nil {
			return err
		}
		if err := tx.UpdateQuantities(ctx, rec); err != nil {
			return err
		}
		updated = rec
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	s.recordMovement(MovementRelease)
	s.auditLog(ctx, input.TenantID, "inventory:release", updated, input.ActorID, map[string]any{
		"product_id": input.ProductID,
		"qty":        input.Qty,
		"ref_id":     input.RefID,
	})
	return updated, nil
}

// Fulfill ships reserved stock: reserved and on-hand both decrease by qty in
// one transaction. This is the combined form of release-then-adjust.
func (s *Service) Fulfill(ctx context.Context, input FulfillInput) (Record, error) {
	if input.TenantID == 0 || input.ProductID == 0 {
		return Record{}, fmt.Errorf("inventory: tenant and product required")
	}
	if input.Qty <= 0 {
		return Record{}, ErrInvalidQuantity
	}
	if err := validateRef(input.RefID); err != nil {
		return Record{}, err
	}

	var updated Record
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.GetRecordForUpdate(ctx, input.TenantID, input.ProductID)
		if err != nil {
			return err
		}
		if input.Qty > rec.Reserved {
			return ErrInvalidRelease
		}
		// reserved <= onHand holds, so onHand cannot go negative here.
		rec.Reserved -= input.Qty
		rec.OnHand -= input.Qty
		unitCost := rec.AvgUnitCost
		if rec.OnHand == 0 {
			rec.AvgUnitCost = 0
		}

		m := s.movement(rec, MovementFulfill, input.Qty, ReasonFulfillment, unitCost, input.RefID, input.ActorID, input.Note)
		if _, err := tx.InsertMovement(ctx, m); err != nil {
			return err
		}
		if err := tx.ReduceReservationsByRef(ctx, rec.ID, input.RefID, input.Qty); err != nil {
			return err
		}
		if err := tx.UpdateQuantities(ctx, rec); err != nil {
			return err
		}
		updated = rec
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	s.afterWrite(ctx, input.TenantID, "inventory:fulfill", updated, input.ActorID, map[string]any{
		"product_id": input.ProductID,
		"qty":        input.Qty,
		"ref_id":     input.RefID,
	})
	s.recordMovement(MovementFulfill)
	return updated, nil
}

// ReleaseExpired releases one expired reservation. Safe to call concurrently:
// the reservation row is locked and re-checked inside the transaction.
func (s *Service) ReleaseExpired(ctx context.Context, reservationID int64) error {
	now := s.now().UTC()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		res, err := tx.GetReservationForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if res.Released || !res.Expired(now) {
			return nil
		}
		rec, err := tx.GetRecordForUpdate(ctx, res.TenantID, res.ProductID)
		if err != nil {
			return err
		}
		qty := res.Qty
		if qty > rec.Reserved {
			qty = rec.Reserved
		}
		rec.Reserved -= qty

		m := s.movement(rec, MovementRelease, qty, ReasonSale, rec.AvgUnitCost, res.RefID, 0, "reservation expired")
		if _, err := tx.InsertMovement(ctx, m); err != nil {
			return err
		}
		if err := tx.MarkReservationReleased(ctx, res.ID); err != nil {
			return err
		}
		return tx.UpdateQuantities(ctx, rec)
	})
	if err != nil {
		return err
	}
	s.recordMovement(MovementRelease)
	return nil
}

// ListExpiredReservations exposes expired, still-active reservations for the sweep job.
func (s *Service) ListExpiredReservations(ctx context.Context, limit int) ([]Reservation, error) {
	return s.repo.ListExpiredReservations(ctx, s.now().UTC(), limit)
}

// Valuate aggregates on-hand quantity times weighted-average cost for a
// tenant. Served from the versioned cache when one is configured.
func (s *Service) Valuate(ctx context.Context, tenantID int64) (Valuation, error) {
	if tenantID == 0 {
		return Valuation{}, fmt.Errorf("inventory: tenant scope required")
	}
	loader := func(ctx context.Context) (Valuation, error) {
		lines, err := s.repo.ValuationLines(ctx, tenantID)
		if err != nil {
			return Valuation{}, err
		}
		val := Valuation{TenantID: tenantID, Lines: lines, ComputedAt: s.now().UTC()}
		for _, line := range lines {
			val.TotalValue += line.Value
		}
		return val, nil
	}
	if s.cache == nil {
		return loader(ctx)
	}
	return s.cache.Fetch(ctx, tenantID, loader)
}

// Summarize gathers classification counts and valuation in parallel.
func (s *Service) Summarize(ctx context.Context, tenantID int64) (Summary, error) {
	if tenantID == 0 {
		return Summary{}, fmt.Errorf("inventory: tenant scope required")
	}
	var (
		summary   Summary
		valuation Valuation
	)
	summary.TenantID = tenantID

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, total, err := s.repo.List(gctx, ListFilter{TenantID: tenantID, LowStock: true})
		if err != nil {
			return err
		}
		summary.LowStockCount = total
		return nil
	})
	g.Go(func() error {
		_, total, err := s.repo.List(gctx, ListFilter{TenantID: tenantID, OutOfStock: true})
		if err != nil {
			return err
		}
		summary.OutOfStock = total
		return nil
	})
	g.Go(func() error {
		_, total, err := s.repo.List(gctx, ListFilter{TenantID: tenantID})
		if err != nil {
			return err
		}
		summary.RecordCount = total
		return nil
	})
	g.Go(func() error {
		var err error
		valuation, err = s.Valuate(gctx, tenantID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	summary.TotalValue = valuation.TotalValue
	return summary, nil
}

// applyDelta holds the single write path for on-hand changes. Caller must
// have validated the input and be inside a transaction.
func (s *Service) applyDelta(ctx context.Context, tx TxRepository, input AdjustmentInput) (Record, error) {
	rec, err := tx.GetRecordForUpdate(ctx, input.TenantID, input.ProductID)
	if err != nil {
		return Record{}, err
	}
	newOnHand := rec.OnHand + input.Delta
	if newOnHand < 0 {
		return Record{}, ErrInsufficientStock
	}
	if input.Reason == ReasonSale && input.Delta < 0 && newOnHand < rec.Reserved {
		// Shipping must not eat into reserved units; release or fulfill first.
		return Record{}, ErrInsufficientAvailable
	}

	unitCost := input.UnitCost
	if input.Delta > 0 {
		totalCost := float64(rec.OnHand)*rec.AvgUnitCost + float64(input.Delta)*unitCost
		rec.AvgUnitCost = totalCost / float64(newOnHand)
	} else {
		unitCost = rec.AvgUnitCost
		if newOnHand == 0 {
			rec.AvgUnitCost = 0
		}
	}
	rec.OnHand = newOnHand

	movementType := MovementIn
	qty := input.Delta
	if input.Delta < 0 {
		movementType = MovementOut
		qty = -input.Delta
	}
	m := s.movement(rec, movementType, qty, input.Reason, unitCost, input.RefID, input.ActorID, input.Note)
	if _, err := tx.InsertMovement(ctx, m); err != nil {
		return Record{}, err
	}
	if err := tx.UpdateQuantities(ctx, rec); err != nil {
		return Record{}, err
	}
	s.recordMovement(movementType)
	return rec, nil
}

func (s *Service) movement(rec Record, movementType MovementType, qty int64, reason Reason, unitCost float64, refID string, actorID int64, note string) Movement {
	return Movement{
		RecordID:        rec.ID,
		TenantID:        rec.TenantID,
		ProductID:       rec.ProductID,
		Type:            movementType,
		Qty:             qty,
		Reason:          reason,
		UnitCost:        unitCost,
		BalanceOnHand:   rec.OnHand,
		BalanceReserved: rec.Reserved,
		RefID:           refID,
		ActorID:         actorID,
		Note:            note,
		PostedAt:        s.now().UTC(),
	}
}

func (s *Service) afterWrite(ctx context.Context, tenantID int64, action string, rec Record, actorID int64, meta map[string]any) {
	if s.cache != nil {
		_ = s.cache.Bump(ctx, tenantID)
	}
	s.auditLog(ctx, tenantID, action, rec, actorID, meta)
}

func (s *Service) auditLog(ctx context.Context, tenantID int64, action string, rec Record, actorID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		TenantID: tenantID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "inventory_record",
		EntityID: fmt.Sprintf("%d:%d", tenantID, rec.ProductID),
		Meta:     meta,
	})
}

func (s *Service) recordMovement(movementType MovementType) {
	if s.metrics != nil {
		s.metrics.RecordMovement(string(movementType))
	}
}

func validateAdjustment(tenantID, productID, delta int64, reason Reason, unitCost float64, refID string) error {
	if tenantID == 0 || productID == 0 {
		return fmt.Errorf("inventory: tenant and product required")
	}
	if delta == 0 {
		return ErrInvalidDelta
	}
	if !reason.Valid() {
		return ErrUnknownReason
	}
	if delta > 0 && unitCost < 0 {
		return ErrInvalidUnitCost
	}
	return validateRef(refID)
}

func validateRef(refID string) error {
	if refID == "" {
		return nil
	}
	if _, err := uuid.Parse(refID); err != nil {
		return fmt.Errorf("inventory: invalid ref id: %w", err)
	}
	return nil
}
