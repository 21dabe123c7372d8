package products

import (
	"fmt"
	"strings"

	"github.com/stockpile-erp/stockpile/internal/platform/httpx"
)

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.Code) == "" {
		return fmt.Errorf("%w: product code is required", httpx.ErrValidation)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product name is required", httpx.ErrValidation)
	}
	if p.UnitPrice < 0 || p.CostPrice < 0 {
		return fmt.Errorf("%w: prices must be >= 0", httpx.ErrValidation)
	}
	return nil
}
