package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/stockpile-erp/stockpile/internal/platform/httpx"
	"github.com/stockpile-erp/stockpile/internal/shared"
)

// Handler wires HTTP endpoints for the inventory module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/inventory", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/low-stock", h.handleLowStock)
		r.Get("/out-of-stock", h.handleOutOfStock)
		r.Get("/valuation", h.handleValuation)
		r.Get("/valuation/export.csv", h.handleValuationCSV)
		r.Get("/summary", h.handleSummary)
		r.Get("/product/{productID}", h.handleGetByProduct)

		r.Group(func(r chi.Router) {
			// Bulk writes are heavier than single movements; keep them off
			// the hot path for any single caller.
			r.Use(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
			r.Post("/bulk-adjust", h.handleBulkAdjust)
		})

		// The path segment is the product id for the movement endpoints and
		// the record id for the resource endpoints; chi requires one shared
		// wildcard name per position.
		r.Post("/{id}/adjust", h.handleAdjust)
		r.Post("/{id}/reserve", h.handleReserve)
		r.Post("/{id}/release", h.handleRelease)
		r.Post("/{id}/fulfill", h.handleFulfill)

		r.Get("/{id}", h.handleGet)
		r.Get("/{id}/movements", h.handleMovements)
		r.Patch("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromQuery(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 {
		limit = 20
	}
	filter := ListFilter{
		TenantID:   tenantID,
		LowStock:   q.Get("lowStock") == "true",
		OutOfStock: q.Get("outOfStock") == "true",
		Location:   q.Get("location"),
		Page:       page,
		Limit:      limit,
	}

	records, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list records", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{
		Data:       newRecordViews(records),
		Pagination: shared.NewPagination(page, limit, total),
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.service.Create(r.Context(), CreateRecordInput{
		TenantID:      req.BusinessID,
		ProductID:     req.InventoryData.ProductID,
		OnHand:        req.InventoryData.QuantityOnHand,
		ReorderLevel:  req.InventoryData.ReorderLevel,
		MaxStockLevel: req.InventoryData.MaxStockLevel,
		Location:      req.InventoryData.Location,
		UnitCost:      req.InventoryData.UnitCost,
	})
	if err != nil {
		h.respondError(w, "create record", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, NewRecordView(rec))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromQuery(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid record id")
		return
	}
	rec, err := h.service.Get(r.Context(), tenantID, id)
	if err != nil {
		h.respondError(w, "get record", err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewRecordView(rec))
}

func (h *Handler) handleGetByProduct(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromQuery(w, r)
	if !ok {
		return
	}
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	rec, err := h.service.GetByProduct(r.Context(), tenantID, productID)
	if err != nil {
		h.respondError(w, "get record by product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewRecordView(rec))
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromQuery(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid record id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := h.service.ListMovements(r.Context(), tenantID, id, limit)
	if err != nil {
		h.respondError(w, "list movements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": newMovementViews(movements)})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid record id")
		return
	}
	var req updateRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.service.Update(r.Context(), req.BusinessID, id, UpdateRecordInput{
		ReorderLevel:  req.ReorderLevel,
		MaxStockLevel: req.MaxStockLevel,
		Location:      req.Location,
	})
	if err != nil {
		h.respondError(w, "update record", err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewRecordView(rec))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromQuery(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid record id")
		return
	}
	if err := h.service.Delete(r.Context(), tenantID, id); err != nil {
		h.respondError(w, "delete record", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromQuery(w, r)
	if !ok {
		return
	}
	records, err := h.service.ListLowStock(r.Context(), tenantID)
	if err != nil {
		h.respondError(w, "list low stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": newRecordViews(records)})
}

func (h *Handler) handleOutOfStock(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromQuery(w, r)
	if !ok {
		return
	}
	records, err := h.service.ListOutOfStock(r.Context(), tenantID)
	if err != nil {
		h.respondError(w, "list out of stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": newRecordViews(records)})
}

func (h *Handler) handleValuation(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromQuery(w, r)
	if !ok {
		return
	}
	valuation, err := h.service.Valuate(r.Context(), tenantID)
	if err != nil {
		h.respondError(w, "valuate", err)
		return
	}
	httpx.JSON(w, http.StatusOK, valuation)
}

func (h *Handler) handleValuationCSV(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromQuery(w, r)
	if !ok {
		return
	}
	valuation, err := h.service.Valuate(r.Context(), tenantID)
	if err != nil {
		h.respondError(w, "valuate", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="valuation.csv"`)
	if err := WriteValuationCSV(w, valuation); err != nil {
		h.logger.Error("write valuation csv", slog.Any("error", err))
	}
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromQuery(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Summarize(r.Context(), tenantID)
	if err != nil {
		h.respondError(w, "summarize", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	var req adjustRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.service.Adjust(r.Context(), AdjustmentInput{
		TenantID:  req.BusinessID,
		ProductID: productID,
		Delta:     req.Adjustment.Delta,
		Reason:    Reason(req.Adjustment.Reason),
		UnitCost:  req.Adjustment.UnitCost,
		RefID:     req.Adjustment.RefID,
		Note:      req.Adjustment.Note,
	})
	if err != nil {
		h.respondError(w, "adjust", err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewRecordView(rec))
}

func (h *Handler) handleBulkAdjust(w http.ResponseWriter, r *http.Request) {
	var req bulkAdjustRequest
	if !h.decode(w, r, &req) {
		return
	}
	items := make([]BulkAdjustmentItem, 0, len(req.Adjustments))
	for _, a := range req.Adjustments {
		items = append(items, BulkAdjustmentItem{
			ProductID: a.ProductID,
			Delta:     a.Delta,
			Reason:    Reason(a.Reason),
			UnitCost:  a.UnitCost,
			Note:      a.Note,
		})
	}
	records, err := h.service.BulkAdjust(r.Context(), req.BusinessID, items, 0)
	if err != nil {
		h.respondError(w, "bulk adjust", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": newRecordViews(records)})
}

func (h *Handler) handleReserve(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	var req reserveRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.service.Reserve(r.Context(), ReservationInput{
		TenantID:  req.BusinessID,
		ProductID: productID,
		Qty:       req.Quantity,
		RefID:     req.RefID,
		TTL:       time.Duration(req.TTLSeconds) * time.Second,
		Note:      req.Note,
	})
	if err != nil {
		h.respondError(w, "reserve", err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewRecordView(rec))
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	var req releaseRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.service.Release(r.Context(), ReleaseInput{
		TenantID:  req.BusinessID,
		ProductID: productID,
		Qty:       req.Quantity,
		RefID:     req.RefID,
		Note:      req.Note,
	})
	if err != nil {
		h.respondError(w, "release", err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewRecordView(rec))
}

func (h *Handler) handleFulfill(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	var req fulfillRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.service.Fulfill(r.Context(), FulfillInput{
		TenantID:  req.BusinessID,
		ProductID: productID,
		Qty:       req.Quantity,
		RefID:     req.RefID,
		Note:      req.Note,
	})
	if err != nil {
		h.respondError(w, "fulfill", err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewRecordView(rec))
}

func (h *Handler) tenantFromQuery(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("businessId")
	if raw == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "businessId is required")
		return 0, false
	}
	tenantID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || tenantID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "businessId must be a positive integer")
		return 0, false
	}
	return tenantID, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrRecordNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateRecord):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrInsufficientAvailable),
		errors.Is(err, ErrInvalidRelease):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidDelta),
		errors.Is(err, ErrInvalidUnitCost),
		errors.Is(err, ErrUnknownReason):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
