package tenants

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpile-erp/stockpile/internal/masterdata/shared"
	"github.com/stockpile-erp/stockpile/internal/platform/httpx"
)

type mockRepo struct {
	businesses map[int64]*Business
	nextID     int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{businesses: make(map[int64]*Business), nextID: 1}
}

func (m *mockRepo) List(ctx context.Context, filters shared.ListFilters) ([]Business, int, error) {
	var result []Business
	for _, b := range m.businesses {
		if filters.IsActive != nil && b.IsActive != *filters.IsActive {
			continue
		}
		result = append(result, *b)
	}
	return result, len(result), nil
}

func (m *mockRepo) Get(ctx context.Context, id int64) (Business, error) {
	b, ok := m.businesses[id]
	if !ok {
		return Business{}, httpx.ErrNotFound
	}
	return *b, nil
}

func (m *mockRepo) Create(ctx context.Context, business Business) (Business, error) {
	business.ID = m.nextID
	m.nextID++
	business.CreatedAt = time.Now().UTC()
	business.UpdatedAt = business.CreatedAt
	stored := business
	m.businesses[business.ID] = &stored
	return business, nil
}

func (m *mockRepo) Update(ctx context.Context, id int64, business Business) error {
	stored, ok := m.businesses[id]
	if !ok {
		return httpx.ErrNotFound
	}
	stored.Name = business.Name
	stored.Currency = business.Currency
	stored.IsActive = business.IsActive
	return nil
}

func (m *mockRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.businesses[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.businesses, id)
	return nil
}

func TestCreateBusiness(t *testing.T) {
	svc := NewService(newMockRepo())

	created, err := svc.Create(context.Background(), Business{Name: "Harbor Trading Co", IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "USD", created.Currency, "currency defaults when omitted")
}

func TestCreateBusinessValidation(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, Business{Name: "   "})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(ctx, Business{Name: "Bad Currency", Currency: "EURO"})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestUpdateBusiness(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	created, err := svc.Create(ctx, Business{Name: "Before", Currency: "EUR"})
	require.NoError(t, err)

	require.NoError(t, svc.Update(ctx, created.ID, Business{Name: "After", Currency: "GBP", IsActive: true}))
	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "After", got.Name)
	assert.Equal(t, "GBP", got.Currency)

	err = svc.Update(ctx, 999, Business{Name: "Ghost"})
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestDeleteBusiness(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	created, err := svc.Create(ctx, Business{Name: "Temporary"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}
