package domain

import (
	"math"
	"strings"
	"time"
)

type StockRecord struct {
	ProductID string
	Stock     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MaxQuantity bounds a single item and the merged total of one product in a
// batch. It matches the int32 stock columns and wire fields.
const MaxQuantity = math.MaxInt32

// Item is a requested stock delta for one product.
type Item struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (i Item) Validate() error {
	if strings.TrimSpace(i.ProductID) == "" {
		return ErrInvalidProductID
	}
	if i.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if i.Quantity > MaxQuantity {
		return ErrQuantityTooLarge
	}
	return nil
}

// ValidateItems rejects an empty batch, any malformed item, or a product whose
// repeated lines add up to more than MaxQuantity.
func ValidateItems(items []Item) error {
	if len(items) == 0 {
		return ErrEmptyBatch
	}
	totals := make(map[string]int, len(items))
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
		if totals[item.ProductID] > MaxQuantity-item.Quantity {
			return ErrQuantityTooLarge
		}
		totals[item.ProductID] += item.Quantity
	}
	return nil
}

type Availability struct {
	ProductID    string `json:"product_id"`
	Requested    int    `json:"requested"`
	Found        bool   `json:"found"`
	Available    bool   `json:"available"`
	CurrentStock int    `json:"current_stock"`
}

type StockChange struct {
	ProductID string `json:"product_id"`
	Success   bool   `json:"success"`
	NewStock  int    `json:"new_stock"`
}

type FailureReason string

const (
	FailureInsufficientStock FailureReason = "insufficient_stock"
	FailureNotFound          FailureReason = "not_found"
	FailureStorage           FailureReason = "storage_fault"
)

type FailedItem struct {
	ProductID    string        `json:"product_id"`
	Requested    int           `json:"requested"`
	CurrentStock int           `json:"current_stock"`
	Reason       FailureReason `json:"reason"`
}

type BatchResult struct {
	Success     bool         `json:"success"`
	FailedItems []FailedItem `json:"failed_items,omitempty"`
	// Replayed is set when the operation key was already committed; nothing was
	// mutated. The outcome of the committed call is not stored with the key, so
	// a replay reports Success even if that call skipped not_found items. Those
	// were reported, logged and alerted when the key was first committed.
	Replayed bool `json:"replayed,omitempty"`
}

type OperationKind string

const (
	OperationCheckout OperationKind = "checkout"
	OperationRestock  OperationKind = "restock"
)

// MergeItems sums quantities of repeated products, keeping first-seen order.
// Callers pass batches that already went through ValidateItems, so the sums
// stay within MaxQuantity.
func MergeItems(items []Item) []Item {
	index := make(map[string]int, len(items))
	merged := make([]Item, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged
}
