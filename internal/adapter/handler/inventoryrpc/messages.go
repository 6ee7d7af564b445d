package inventoryrpc

type Item struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type CheckAvailabilityRequest struct {
	Items []Item `json:"items"`
}

type Availability struct {
	ProductID    string `json:"product_id"`
	Requested    int32  `json:"requested"`
	Found        bool   `json:"found"`
	Available    bool   `json:"available"`
	CurrentStock int32  `json:"current_stock"`
}

type CheckAvailabilityResponse struct {
	Results []Availability `json:"results"`
}

type StockRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type StockChangeResponse struct {
	ProductID string `json:"product_id"`
	Success   bool   `json:"success"`
	NewStock  int32  `json:"new_stock"`
}

type BatchRequest struct {
	// OperationKey makes the batch idempotent, usually the order id.
	OperationKey string `json:"operation_key,omitempty"`
	Items        []Item `json:"items"`
}

type FailedItem struct {
	ProductID    string `json:"product_id"`
	Requested    int32  `json:"requested"`
	CurrentStock int32  `json:"current_stock"`
	Reason       string `json:"reason"`
}

type BatchResponse struct {
	Success     bool         `json:"success"`
	Replayed    bool         `json:"replayed,omitempty"`
	FailedItems []FailedItem `json:"failed_items,omitempty"`
}

type LowStockRequest struct {
	// Threshold falls back to the configured default when unset.
	Threshold *int32 `json:"threshold,omitempty"`
}

type OutOfStockRequest struct{}

type StockLevel struct {
	ProductID string `json:"product_id"`
	Stock     int32  `json:"stock"`
	UpdatedAt string `json:"updated_at"`
}

type StockListResponse struct {
	Products []StockLevel `json:"products"`
}
