package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrProductExists     = errors.New("product already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInvalidProductID  = errors.New("product id is required")
	ErrEmptyBatch        = errors.New("batch has no items")
	ErrInvalidThreshold  = errors.New("threshold must not be negative")
	ErrInvalidStock      = errors.New("initial stock must not be negative")
	ErrInvalidOrderID    = errors.New("order id is required")

	ErrQuantityTooLarge = fmt.Errorf("%w: more than %d of one product", ErrInvalidQuantity, MaxQuantity)
)

// StorageFaultError reports a transaction that could not complete for
// infrastructural reasons.
type StorageFaultError struct {
	Op        string
	ProductID string
	Quantity  int
	Err       error
}

func (e *StorageFaultError) Error() string {
	if e.ProductID == "" {
		return fmt.Sprintf("%s: storage fault: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s (qty %d): storage fault: %v", e.Op, e.ProductID, e.Quantity, e.Err)
}

func (e *StorageFaultError) Unwrap() error {
	return e.Err
}

// IsClientError reports whether err is caused by the request rather than the system.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidProductID) ||
		errors.Is(err, ErrEmptyBatch) ||
		errors.Is(err, ErrInvalidThreshold) ||
		errors.Is(err, ErrInvalidStock) ||
		errors.Is(err, ErrInvalidOrderID)
}
