package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*chi.Mux, *Service) {
	t.Helper()
	repo := newMockRepository()
	svc := NewService(repo, nil, nil, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, svc)

	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r, svc
}

func doJSON(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func seedViaService(t *testing.T, svc *Service, tenantID, productID, onHand, reorderLevel int64) Record {
	t.Helper()
	rec, err := svc.Create(context.Background(), CreateRecordInput{
		TenantID:     tenantID,
		ProductID:    productID,
		OnHand:       onHand,
		ReorderLevel: reorderLevel,
	})
	require.NoError(t, err)
	return rec
}

func TestHandleCreate(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/inventory", map[string]any{
		"businessId": 1,
		"inventoryData": map[string]any{
			"productId":      100,
			"quantityOnHand": 25,
			"reorderLevel":   5,
			"location":       "MAIN",
			"unitCost":       3.5,
		},
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	var view RecordView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, int64(1), view.BusinessID)
	assert.Equal(t, int64(100), view.ProductID)
	assert.Equal(t, int64(25), view.QuantityOnHand)
	assert.Equal(t, int64(25), view.AvailableQuantity)
	assert.Equal(t, 3.5, view.AvgUnitCost)
	assert.False(t, view.LowStock)
}

func TestHandleCreateValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	// Missing businessId.
	rr := doJSON(t, router, http.MethodPost, "/inventory", map[string]any{
		"inventoryData": map[string]any{"productId": 100},
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	// Malformed body.
	req := httptest.NewRequest(http.MethodPost, "/inventory", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreateDuplicate(t *testing.T) {
	router, svc := newTestRouter(t)
	seedViaService(t, svc, 1, 100, 10, 0)

	rr := doJSON(t, router, http.MethodPost, "/inventory", map[string]any{
		"businessId":    1,
		"inventoryData": map[string]any{"productId": 100, "quantityOnHand": 1},
	})
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestHandleListRequiresBusinessID(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/inventory", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestHandleListScopesTenant(t *testing.T) {
	router, svc := newTestRouter(t)
	seedViaService(t, svc, 1, 100, 10, 0)
	seedViaService(t, svc, 2, 100, 99, 0)

	req := httptest.NewRequest(http.MethodGet, "/inventory?businessId=1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data []RecordView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, int64(1), resp.Data[0].BusinessID)
}

func TestHandleAdjust(t *testing.T) {
	router, svc := newTestRouter(t)
	seedViaService(t, svc, 1, 100, 50, 0)

	rr := doJSON(t, router, http.MethodPost, "/inventory/100/adjust", map[string]any{
		"businessId": 1,
		"adjustment": map[string]any{"delta": -20, "reason": "sale"},
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var view RecordView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, int64(30), view.QuantityOnHand)
}

func TestHandleAdjustConflict(t *testing.T) {
	router, svc := newTestRouter(t)
	seedViaService(t, svc, 1, 100, 10, 0)

	rr := doJSON(t, router, http.MethodPost, "/inventory/100/adjust", map[string]any{
		"businessId": 1,
		"adjustment": map[string]any{"delta": -11, "reason": "damage"},
	})
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestHandleAdjustUnknownReason(t *testing.T) {
	router, svc := newTestRouter(t)
	seedViaService(t, svc, 1, 100, 10, 0)

	rr := doJSON(t, router, http.MethodPost, "/inventory/100/adjust", map[string]any{
		"businessId": 1,
		"adjustment": map[string]any{"delta": 5, "reason": "shrinkage"},
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleAdjustUnknownProduct(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/inventory/999/adjust", map[string]any{
		"businessId": 1,
		"adjustment": map[string]any{"delta": 5, "reason": "purchase"},
	})
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleBulkAdjust(t *testing.T) {
	router, svc := newTestRouter(t)
	seedViaService(t, svc, 1, 100, 50, 0)
	seedViaService(t, svc, 1, 101, 50, 0)

	rr := doJSON(t, router, http.MethodPost, "/inventory/bulk-adjust", map[string]any{
		"businessId": 1,
		"adjustments": []map[string]any{
			{"productId": 100, "delta": -10, "reason": "sale"},
			{"productId": 101, "delta": 5, "reason": "purchase", "unitCost": 2},
		},
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data []RecordView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, int64(40), resp.Data[0].QuantityOnHand)
	assert.Equal(t, int64(55), resp.Data[1].QuantityOnHand)
}

func TestHandleBulkAdjustEmptyBatch(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/inventory/bulk-adjust", map[string]any{
		"businessId":  1,
		"adjustments": []map[string]any{},
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleReserveReleaseFulfill(t *testing.T) {
	router, svc := newTestRouter(t)
	seedViaService(t, svc, 1, 100, 100, 0)

	rr := doJSON(t, router, http.MethodPost, "/inventory/100/reserve", map[string]any{
		"businessId": 1,
		"quantity":   40,
	})
	require.Equal(t, http.StatusOK, rr.Code)
	var view RecordView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, int64(40), view.QuantityReserved)
	assert.Equal(t, int64(60), view.AvailableQuantity)

	rr = doJSON(t, router, http.MethodPost, "/inventory/100/release", map[string]any{
		"businessId": 1,
		"quantity":   10,
	})
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, int64(30), view.QuantityReserved)

	rr = doJSON(t, router, http.MethodPost, "/inventory/100/fulfill", map[string]any{
		"businessId": 1,
		"quantity":   30,
	})
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, int64(70), view.QuantityOnHand)
	assert.Equal(t, int64(0), view.QuantityReserved)
}

func TestHandleReserveBeyondAvailable(t *testing.T) {
	router, svc := newTestRouter(t)
	seedViaService(t, svc, 1, 100, 10, 0)

	rr := doJSON(t, router, http.MethodPost, "/inventory/100/reserve", map[string]any{
		"businessId": 1,
		"quantity":   11,
	})
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestHandleLowStockEndpoint(t *testing.T) {
	router, svc := newTestRouter(t)
	seedViaService(t, svc, 1, 100, 5, 10)
	seedViaService(t, svc, 1, 101, 50, 10)

	req := httptest.NewRequest(http.MethodGet, "/inventory/low-stock?businessId=1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data []RecordView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.True(t, resp.Data[0].LowStock)
	assert.Equal(t, int64(100), resp.Data[0].ProductID)
}

func TestHandleGetAndMovements(t *testing.T) {
	router, svc := newTestRouter(t)
	rec := seedViaService(t, svc, 1, 100, 10, 0)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/inventory/%d?businessId=1", rec.ID), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/inventory/%d/movements?businessId=1", rec.ID), nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data []MovementView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "IN", resp.Data[0].Type)
}

func TestHandleGetByProduct(t *testing.T) {
	router, svc := newTestRouter(t)
	seedViaService(t, svc, 1, 100, 10, 0)

	req := httptest.NewRequest(http.MethodGet, "/inventory/product/100?businessId=1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var view RecordView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, int64(100), view.ProductID)

	req = httptest.NewRequest(http.MethodGet, "/inventory/product/999?businessId=1", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleUpdateAndDelete(t *testing.T) {
	router, svc := newTestRouter(t)
	rec := seedViaService(t, svc, 1, 100, 10, 0)

	rr := doJSON(t, router, http.MethodPatch, fmt.Sprintf("/inventory/%d", rec.ID), map[string]any{
		"businessId":   1,
		"reorderLevel": 25,
		"location":     "WH-2",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	var view RecordView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, int64(25), view.ReorderLevel)
	assert.Equal(t, "WH-2", view.Location)

	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/inventory/%d?businessId=1", rec.ID), nil)
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	require.Equal(t, http.StatusNoContent, rec2.Code)

	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/inventory/%d?businessId=1", rec.ID), nil)
	rec2 = httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	require.Equal(t, http.StatusNotFound, rec2.Code)
}

func TestHandleSummary(t *testing.T) {
	router, svc := newTestRouter(t)
	seedViaService(t, svc, 1, 100, 5, 10)
	seedViaService(t, svc, 1, 101, 0, 10)

	req := httptest.NewRequest(http.MethodGet, "/inventory/summary?businessId=1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var summary Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.RecordCount)
	assert.Equal(t, 1, summary.LowStockCount)
	assert.Equal(t, 1, summary.OutOfStock)
}

func TestHandleValuationCSV(t *testing.T) {
	router, svc := newTestRouter(t)
	seedRecordWithCost(t, svc, 1, 100, 10, 2.5)

	req := httptest.NewRequest(http.MethodGet, "/inventory/valuation/export.csv?businessId=1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "valuation.csv")
	assert.Contains(t, rr.Body.String(), "25.00")
}

func seedRecordWithCost(t *testing.T, svc *Service, tenantID, productID, onHand int64, unitCost float64) {
	t.Helper()
	_, err := svc.Create(context.Background(), CreateRecordInput{
		TenantID:  tenantID,
		ProductID: productID,
		OnHand:    onHand,
		UnitCost:  unitCost,
	})
	require.NoError(t, err)
}
