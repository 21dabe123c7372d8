package tenants

import (
	"context"
	"fmt"
	"strings"

	"github.com/stockpile-erp/stockpile/internal/masterdata/shared"
	"github.com/stockpile-erp/stockpile/internal/platform/httpx"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Business, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Business, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, business Business) (Business, error) {
	if err := s.validate(business); err != nil {
		return Business{}, err
	}
	if business.Currency == "" {
		business.Currency = "USD"
	}
	return s.repo.Create(ctx, business)
}

func (s *Service) Update(ctx context.Context, id int64, business Business) error {
	if err := s.validate(business); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, business)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) validate(b Business) error {
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("%w: business name is required", httpx.ErrValidation)
	}
	if b.Currency != "" && len(b.Currency) != 3 {
		return fmt.Errorf("%w: currency must be a 3-letter code", httpx.ErrValidation)
	}
	return nil
}
