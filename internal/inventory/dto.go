package inventory

import (
	"time"

	"github.com/stockpile-erp/stockpile/internal/shared"
)

// RecordView is the JSON shape of a stock record. Available quantity and the
// classifications are derived at render time, never stored.
type RecordView struct {
	ID                int64     `json:"id"`
	BusinessID        int64     `json:"businessId"`
	ProductID         int64     `json:"productId"`
	QuantityOnHand    int64     `json:"quantityOnHand"`
	QuantityReserved  int64     `json:"quantityReserved"`
	AvailableQuantity int64     `json:"availableQuantity"`
	ReorderLevel      int64     `json:"reorderLevel"`
	MaxStockLevel     int64     `json:"maxStockLevel"`
	Location          string    `json:"location"`
	AvgUnitCost       float64   `json:"avgUnitCost"`
	LowStock          bool      `json:"lowStock"`
	OutOfStock        bool      `json:"outOfStock"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// NewRecordView renders a record for the API.
func NewRecordView(rec Record) RecordView {
	return RecordView{
		ID:                rec.ID,
		BusinessID:        rec.TenantID,
		ProductID:         rec.ProductID,
		QuantityOnHand:    rec.OnHand,
		QuantityReserved:  rec.Reserved,
		AvailableQuantity: rec.Available(),
		ReorderLevel:      rec.ReorderLevel,
		MaxStockLevel:     rec.MaxStockLevel,
		Location:          rec.Location,
		AvgUnitCost:       rec.AvgUnitCost,
		LowStock:          rec.LowStock(),
		OutOfStock:        rec.OutOfStock(),
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}
}

func newRecordViews(records []Record) []RecordView {
	views := make([]RecordView, 0, len(records))
	for _, rec := range records {
		views = append(views, NewRecordView(rec))
	}
	return views
}

// MovementView is the JSON shape of a stock card entry.
type MovementView struct {
	ID              int64     `json:"id"`
	Type            string    `json:"type"`
	Qty             int64     `json:"qty"`
	Reason          string    `json:"reason"`
	UnitCost        float64   `json:"unitCost"`
	BalanceOnHand   int64     `json:"balanceOnHand"`
	BalanceReserved int64     `json:"balanceReserved"`
	RefID           string    `json:"refId,omitempty"`
	Note            string    `json:"note,omitempty"`
	PostedAt        time.Time `json:"postedAt"`
}

func newMovementViews(movements []Movement) []MovementView {
	views := make([]MovementView, 0, len(movements))
	for _, m := range movements {
		views = append(views, MovementView{
			ID:              m.ID,
			Type:            string(m.Type),
			Qty:             m.Qty,
			Reason:          string(m.Reason),
			UnitCost:        m.UnitCost,
			BalanceOnHand:   m.BalanceOnHand,
			BalanceReserved: m.BalanceReserved,
			RefID:           m.RefID,
			Note:            m.Note,
			PostedAt:        m.PostedAt,
		})
	}
	return views
}

type listResponse struct {
	Data       []RecordView      `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

type createRequest struct {
	BusinessID    int64      `json:"businessId" validate:"required,gt=0"`
	InventoryData createData `json:"inventoryData" validate:"required"`
}

type createData struct {
	ProductID      int64   `json:"productId" validate:"required,gt=0"`
	QuantityOnHand int64   `json:"quantityOnHand" validate:"gte=0"`
	ReorderLevel   int64   `json:"reorderLevel" validate:"gte=0"`
	MaxStockLevel  int64   `json:"maxStockLevel" validate:"gte=0"`
	Location       string  `json:"location"`
	UnitCost       float64 `json:"unitCost" validate:"gte=0"`
}

type updateRequest struct {
	BusinessID    int64   `json:"businessId" validate:"required,gt=0"`
	ReorderLevel  *int64  `json:"reorderLevel" validate:"omitempty,gte=0"`
	MaxStockLevel *int64  `json:"maxStockLevel" validate:"omitempty,gte=0"`
	Location      *string `json:"location"`
}

type adjustRequest struct {
	BusinessID int64          `json:"businessId" validate:"required,gt=0"`
	Adjustment adjustmentBody `json:"adjustment" validate:"required"`
}

type adjustmentBody struct {
	Delta    int64   `json:"delta" validate:"required"`
	Reason   string  `json:"reason" validate:"required,oneof=purchase sale manual_correction damage transfer fulfillment"`
	UnitCost float64 `json:"unitCost" validate:"gte=0"`
	RefID    string  `json:"refId" validate:"omitempty,uuid"`
	Note     string  `json:"note"`
}

type bulkAdjustRequest struct {
	BusinessID  int64                `json:"businessId" validate:"required,gt=0"`
	Adjustments []bulkAdjustmentBody `json:"adjustments" validate:"required,min=1,dive"`
}

type bulkAdjustmentBody struct {
	ProductID int64   `json:"productId" validate:"required,gt=0"`
	Delta     int64   `json:"delta" validate:"required"`
	Reason    string  `json:"reason" validate:"required,oneof=purchase sale manual_correction damage transfer fulfillment"`
	UnitCost  float64 `json:"unitCost" validate:"gte=0"`
	Note      string  `json:"note"`
}

type reserveRequest struct {
	BusinessID int64  `json:"businessId" validate:"required,gt=0"`
	Quantity   int64  `json:"quantity" validate:"required,gt=0"`
	RefID      string `json:"refId" validate:"omitempty,uuid"`
	TTLSeconds int64  `json:"ttlSeconds" validate:"gte=0"`
	Note       string `json:"note"`
}

type releaseRequest struct {
	BusinessID int64  `json:"businessId" validate:"required,gt=0"`
	Quantity   int64  `json:"quantity" validate:"required,gt=0"`
	RefID      string `json:"refId" validate:"omitempty,uuid"`
	Note       string `json:"note"`
}

type fulfillRequest struct {
	BusinessID int64  `json:"businessId" validate:"required,gt=0"`
	Quantity   int64  `json:"quantity" validate:"required,gt=0"`
	RefID      string `json:"refId" validate:"omitempty,uuid"`
	Note       string `json:"note"`
}
