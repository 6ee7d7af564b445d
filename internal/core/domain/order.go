package domain

import "time"

type OrderStatus string

const (
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type Order struct {
	ID        string      `json:"id"`
	Items     []Item      `json:"items"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	// StockRestored is only meaningful for cancelled orders.
	StockRestored bool `json:"stock_restored"`
}
