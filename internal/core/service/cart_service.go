package service

import (
	"context"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

type availabilityChecker interface {
	CheckAvailability(ctx context.Context, productID string, quantity int) (domain.Availability, error)
	CheckAvailabilityBatch(ctx context.Context, items []domain.Item) ([]domain.Availability, error)
}

// CartService gates cart quantity changes on current stock. Nothing is
// reserved, so checkout can still be rejected later.
type CartService struct {
	checker availabilityChecker
}

func NewCartService(checker availabilityChecker) *CartService {
	return &CartService{checker: checker}
}

// ValidateQuantities returns the cart lines that cannot currently be fulfilled.
func (s *CartService) ValidateQuantities(ctx context.Context, items []domain.Item) ([]domain.Availability, error) {
	if err := domain.ValidateItems(items); err != nil {
		return nil, err
	}
	results, err := s.checker.CheckAvailabilityBatch(ctx, domain.MergeItems(items))
	if err != nil {
		return nil, err
	}

	shortages := make([]domain.Availability, 0)
	for _, result := range results {
		if !result.Available {
			shortages = append(shortages, result)
		}
	}
	return shortages, nil
}

// CanSetQuantity reports whether a cart line may grow to quantity.
func (s *CartService) CanSetQuantity(ctx context.Context, productID string, quantity int) (bool, error) {
	result, err := s.checker.CheckAvailability(ctx, productID, quantity)
	if err != nil {
		return false, err
	}
	return result.Available, nil
}
