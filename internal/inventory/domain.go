package inventory

import (
	"errors"
	"time"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementIn represents an inbound on-hand increase.
	MovementIn MovementType = "IN"
	// MovementOut represents an outbound on-hand decrease.
	MovementOut MovementType = "OUT"
	// MovementReserve earmarks on-hand stock for an order.
	MovementReserve MovementType = "RESERVE"
	// MovementRelease returns reserved stock to the available pool.
	MovementRelease MovementType = "RELEASE"
	// MovementFulfill ships reserved stock: release and on-hand decrease in one step.
	MovementFulfill MovementType = "FULFILL"
)

// Reason classifies why a quantity changed.
type Reason string

const (
	ReasonPurchase         Reason = "purchase"
	ReasonSale             Reason = "sale"
	ReasonManualCorrection Reason = "manual_correction"
	ReasonDamage           Reason = "damage"
	ReasonTransfer         Reason = "transfer"
	ReasonFulfillment      Reason = "fulfillment"
)

// Valid reports whether the reason is a known classification tag.
func (r Reason) Valid() bool {
	switch r {
	case ReasonPurchase, ReasonSale, ReasonManualCorrection, ReasonDamage, ReasonTransfer, ReasonFulfillment:
		return true
	}
	return false
}

// Record holds per-tenant, per-product stock state.
type Record struct {
	ID            int64
	TenantID      int64
	ProductID     int64
	OnHand        int64
	Reserved      int64
	ReorderLevel  int64
	MaxStockLevel int64
	Location      string
	AvgUnitCost   float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Available returns the sellable quantity: on hand minus reserved.
func (r Record) Available() int64 {
	return r.OnHand - r.Reserved
}

// OutOfStock reports whether no sellable quantity remains.
func (r Record) OutOfStock() bool {
	return r.Available() == 0
}

// LowStock reports whether the available quantity sits at or below the reorder level.
func (r Record) LowStock() bool {
	available := r.Available()
	return available > 0 && available <= r.ReorderLevel
}

// Movement is one immutable row of the stock ledger.
type Movement struct {
	ID              int64
	RecordID        int64
	TenantID        int64
	ProductID       int64
	Type            MovementType
	Qty             int64
	Reason          Reason
	UnitCost        float64
	BalanceOnHand   int64
	BalanceReserved int64
	RefID           string
	ActorID         int64
	Note            string
	PostedAt        time.Time
}

// Reservation tracks one reservation against a record. The aggregate
// Record.Reserved is authoritative; rows exist for auditing and expiry.
type Reservation struct {
	ID         int64
	RecordID   int64
	TenantID   int64
	ProductID  int64
	Qty        int64
	RefID      string
	ExpiresAt  time.Time
	Released   bool
	ReleasedAt time.Time
	CreatedAt  time.Time
}

// Expired reports whether the reservation has a deadline that passed.
func (r Reservation) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && r.ExpiresAt.Before(now)
}

// AdjustmentInput describes a signed on-hand change.
type AdjustmentInput struct {
	TenantID  int64
	ProductID int64
	Delta     int64
	Reason    Reason
	UnitCost  float64
	RefID     string
	ActorID   int64
	Note      string
}

// BulkAdjustmentItem is one entry of a bulk adjustment batch.
type BulkAdjustmentItem struct {
	ProductID int64
	Delta     int64
	Reason    Reason
	UnitCost  float64
	Note      string
}

// ReservationInput describes a reserve request.
type ReservationInput struct {
	TenantID  int64
	ProductID int64
	Qty       int64
	RefID     string
	TTL       time.Duration
	ActorID   int64
	Note      string
}

// ReleaseInput describes a release request.
type ReleaseInput struct {
	TenantID  int64
	ProductID int64
	Qty       int64
	RefID     string
	ActorID   int64
	Note      string
}

// FulfillInput describes a combined release-and-ship request.
type FulfillInput struct {
	TenantID  int64
	ProductID int64
	Qty       int64
	RefID     string
	ActorID   int64
	Note      string
}

// CreateRecordInput describes a new stock record.
type CreateRecordInput struct {
	TenantID      int64
	ProductID     int64
	OnHand        int64
	ReorderLevel  int64
	MaxStockLevel int64
	Location      string
	UnitCost      float64
	ActorID       int64
}

// UpdateRecordInput carries optional field updates. Quantities are never
// updated here; they only move through the ledger operations.
type UpdateRecordInput struct {
	ReorderLevel  *int64
	MaxStockLevel *int64
	Location      *string
}

// ListFilter filters record listings for one tenant.
type ListFilter struct {
	TenantID   int64
	LowStock   bool
	OutOfStock bool
	Location   string
	Page       int
	Limit      int
}

// ValuationLine is one product's contribution to the stock value.
type ValuationLine struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	OnHand      int64   `json:"quantity_on_hand"`
	AvgUnitCost float64 `json:"avg_unit_cost"`
	Value       float64 `json:"value"`
}

// Valuation aggregates quantity times weighted-average cost per tenant.
type Valuation struct {
	TenantID   int64           `json:"business_id"`
	TotalValue float64         `json:"total_value"`
	Lines      []ValuationLine `json:"per_product_breakdown"`
	ComputedAt time.Time       `json:"computed_at"`
}

// Summary condenses stock health for one tenant.
type Summary struct {
	TenantID      int64   `json:"business_id"`
	RecordCount   int     `json:"record_count"`
	LowStockCount int     `json:"low_stock_count"`
	OutOfStock    int     `json:"out_of_stock_count"`
	TotalValue    float64 `json:"total_value"`
}

// ErrRecordNotFound indicates no stock record for the product/tenant pair.
var ErrRecordNotFound = errors.New("inventory: record not found")

// ErrDuplicateRecord indicates a record already tracks the product for the tenant.
var ErrDuplicateRecord = errors.New("inventory: record already exists for product")

// ErrInsufficientStock triggered when a movement would drive on-hand negative.
var ErrInsufficientStock = errors.New("inventory: insufficient stock on hand")

// ErrInsufficientAvailable triggered when a request exceeds the unreserved quantity.
var ErrInsufficientAvailable = errors.New("inventory: insufficient available stock")

// ErrInvalidRelease triggered when a release exceeds the reserved quantity.
var ErrInvalidRelease = errors.New("inventory: release exceeds reserved quantity")

// ErrInvalidQuantity indicates a non-positive quantity.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

// ErrInvalidDelta indicates a zero adjustment delta.
var ErrInvalidDelta = errors.New("inventory: delta must be non zero")

// ErrInvalidUnitCost indicates a negative cost value.
var ErrInvalidUnitCost = errors.New("inventory: unit cost must be >= 0")

// ErrUnknownReason indicates an unrecognised movement reason.
var ErrUnknownReason = errors.New("inventory: unknown movement reason")
