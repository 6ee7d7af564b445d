package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

var ErrItemsUnavailable = errors.New("items unavailable")

// ItemsUnavailableError aborts an order and names every short or missing item.
type ItemsUnavailableError struct {
	OrderID string
	Items   []domain.FailedItem
}

func (e *ItemsUnavailableError) Error() string {
	ids := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		ids = append(ids, item.ProductID)
	}
	return fmt.Sprintf("order %s: items unavailable: %s", e.OrderID, strings.Join(ids, ", "))
}

func (e *ItemsUnavailableError) Unwrap() error {
	return ErrItemsUnavailable
}

type CheckoutService struct {
	ledger   *Ledger
	restock  *RestockQueue
	security zerolog.Logger
	log      zerolog.Logger
	now      func() time.Time
}

// NewCheckoutService wires order placement and cancellation to the ledger.
// restock may be nil, in which case failed restorations are only audited.
func NewCheckoutService(ledger *Ledger, restock *RestockQueue, security, log zerolog.Logger) *CheckoutService {
	return &CheckoutService{
		ledger:   ledger,
		restock:  restock,
		security: security,
		log:      log.With().Str("component", "checkout").Logger(),
		now:      time.Now,
	}
}

// PlaceOrder deducts every line item or none. The order id doubles as the
// idempotency key, so a retried checkout never deducts twice.
func (s *CheckoutService) PlaceOrder(ctx context.Context, orderID string, items []domain.Item) (domain.Order, error) {
	if err := domain.ValidateItems(items); err != nil {
		return domain.Order{}, err
	}
	if orderID == "" {
		orderID = uuid.NewString()
	}

	order := domain.Order{
		ID:        orderID,
		Items:     items,
		Status:    domain.OrderStatusRejected,
		CreatedAt: s.now().UTC(),
	}

	result, err := s.ledger.DecrementBatch(ctx, items, WithOperationKey(orderID))
	if err != nil {
		return order, fmt.Errorf("place order %s: %w", orderID, err)
	}
	if !result.Success {
		s.log.Info().Str("order_id", orderID).Interface("failed_items", result.FailedItems).Msg("order rejected")
		return order, &ItemsUnavailableError{OrderID: orderID, Items: result.FailedItems}
	}

	order.Status = domain.OrderStatusConfirmed
	s.log.Info().Str("order_id", orderID).Int("items", len(items)).Bool("replayed", result.Replayed).Msg("order confirmed")
	return order, nil
}

// CancelOrder restores the order's stock. The cancellation completes even if
// restoration fails; the failure is audited and retried in the background.
func (s *CheckoutService) CancelOrder(ctx context.Context, orderID string, items []domain.Item) (domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, domain.ErrInvalidOrderID
	}
	if err := domain.ValidateItems(items); err != nil {
		return domain.Order{}, err
	}

	order := domain.Order{
		ID:        orderID,
		Items:     items,
		Status:    domain.OrderStatusCancelled,
		CreatedAt: s.now().UTC(),
	}

	result, err := s.ledger.IncrementBatch(ctx, items, WithOperationKey(orderID))
	if err != nil {
		return domain.Order{}, fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	order.StockRestored = result.Success
	if result.Success {
		s.log.Info().Str("order_id", orderID).Bool("replayed", result.Replayed).Msg("order cancelled")
		return order, nil
	}

	s.security.Warn().
		Str("event", "stock_restoration_failed").
		Str("order_id", orderID).
		Interface("items", items).
		Interface("failed_items", result.FailedItems).
		Msg("order cancelled without full stock restoration")

	if s.restock != nil && retryable(result) {
		s.restock.Enqueue(ctx, RestockJob{OrderID: orderID, Items: items})
	}
	return order, nil
}
