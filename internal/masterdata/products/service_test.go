package products

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpile-erp/stockpile/internal/masterdata/shared"
	"github.com/stockpile-erp/stockpile/internal/platform/httpx"
)

type mockRepo struct {
	products map[int64]*Product
	byCode   map[string]*Product
	nextID   int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		products: make(map[int64]*Product),
		byCode:   make(map[string]*Product),
		nextID:   1,
	}
}

func (m *mockRepo) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	var result []Product
	for _, p := range m.products {
		if filters.IsActive != nil && p.IsActive != *filters.IsActive {
			continue
		}
		if filters.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filters.Search)) {
			continue
		}
		result = append(result, *p)
	}
	return result, len(result), nil
}

func (m *mockRepo) Get(ctx context.Context, id int64) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, httpx.ErrNotFound
	}
	return *p, nil
}

func (m *mockRepo) Create(ctx context.Context, product Product) (Product, error) {
	if _, exists := m.byCode[product.Code]; exists {
		return Product{}, httpx.ErrDuplicate
	}
	product.ID = m.nextID
	m.nextID++
	product.CreatedAt = time.Now().UTC()
	product.UpdatedAt = product.CreatedAt
	stored := product
	m.products[product.ID] = &stored
	m.byCode[product.Code] = &stored
	return product, nil
}

func (m *mockRepo) Update(ctx context.Context, id int64, product Product) error {
	stored, ok := m.products[id]
	if !ok {
		return httpx.ErrNotFound
	}
	stored.Code = product.Code
	stored.Name = product.Name
	stored.UnitPrice = product.UnitPrice
	stored.CostPrice = product.CostPrice
	stored.IsActive = product.IsActive
	return nil
}

func (m *mockRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.products[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func TestCreateProduct(t *testing.T) {
	svc := NewService(newMockRepo())

	created, err := svc.Create(context.Background(), Product{
		Code:      "SKU-1001",
		Name:      "Steel Shelf Bracket",
		UnitPrice: 12.5,
		CostPrice: 7.1,
		IsActive:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "SKU-1001", created.Code)
}

func TestCreateProductValidation(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, Product{Name: "No Code"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(ctx, Product{Code: "SKU-1", Name: "  "})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(ctx, Product{Code: "SKU-1", Name: "Negative", UnitPrice: -1})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateProductDuplicateCode(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, Product{Code: "SKU-1", Name: "First"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, Product{Code: "SKU-1", Name: "Second"})
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestUpdateProduct(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, Product{Code: "SKU-1", Name: "Before"})
	require.NoError(t, err)

	require.NoError(t, svc.Update(ctx, created.ID, Product{Code: "SKU-1", Name: "After", UnitPrice: 9.99}))
	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "After", got.Name)
	assert.Equal(t, 9.99, got.UnitPrice)

	err = svc.Update(ctx, 999, Product{Code: "SKU-2", Name: "Ghost"})
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestListProductsFilters(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, Product{Code: "SKU-1", Name: "Oak Plank", IsActive: true})
	require.NoError(t, err)
	_, err = svc.Create(ctx, Product{Code: "SKU-2", Name: "Pine Plank", IsActive: false})
	require.NoError(t, err)

	active := true
	items, total, err := svc.List(ctx, shared.ListFilters{IsActive: &active})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "SKU-1", items[0].Code)

	items, _, err = svc.List(ctx, shared.ListFilters{Search: "plank"})
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestDeleteProduct(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	created, err := svc.Create(ctx, Product{Code: "SKU-1", Name: "Gone Soon"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}
