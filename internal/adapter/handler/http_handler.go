package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/core/service"
	"github.com/rl1809/inventory-ledger/internal/logger"
)

const maxRequestBodySize = 1 << 20 // 1MB

type HTTPHandler struct {
	ledger   *service.Ledger
	checkout *service.CheckoutService
	cart     *service.CartService
	reports  *service.ReportService
}

func NewHTTPHandler(ledger *service.Ledger, checkout *service.CheckoutService, cart *service.CartService, reports *service.ReportService) *HTTPHandler {
	return &HTTPHandler{ledger: ledger, checkout: checkout, cart: cart, reports: reports}
}

type ItemsRequest struct {
	Items []domain.Item `json:"items"`
}

type CheckoutRequest struct {
	OrderID string        `json:"order_id"`
	Items   []domain.Item `json:"items"`
}

type RestockRequest struct {
	Quantity int `json:"quantity"`
}

type CreateProductRequest struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
}

type AvailabilityResponse struct {
	Available bool                  `json:"available"`
	Results   []domain.Availability `json:"results"`
}

type CartValidationResponse struct {
	Valid     bool                  `json:"valid"`
	Shortages []domain.Availability `json:"shortages"`
}

type StockLevelDTO struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
	UpdatedAt string `json:"updated_at"`
}

type StockReportResponse struct {
	Threshold *int            `json:"threshold,omitempty"`
	Products  []StockLevelDTO `json:"products"`
}

type ErrorResponse struct {
	Error       string              `json:"error"`
	Code        string              `json:"code"`
	FailedItems []domain.FailedItem `json:"failed_items,omitempty"`
}

// Routes builds the HTTP API. gatherer serves /metrics.
func (h *HTTPHandler) Routes(log zerolog.Logger, gatherer prometheus.Gatherer, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}

	r.Get("/health", h.HealthCheck)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/inventory", func(r chi.Router) {
			r.Post("/availability", h.CheckAvailabilityBatch)
			r.Get("/{productID}/availability", h.CheckAvailability)
			r.Post("/{productID}/restock", h.Restock)
		})
		r.Post("/checkout", h.PlaceOrder)
		r.Post("/orders/{orderID}/cancel", h.CancelOrder)
		r.Post("/cart/validate", h.ValidateCart)

		r.Route("/admin/inventory", func(r chi.Router) {
			r.Post("/", h.CreateProduct)
			r.Get("/low-stock", h.LowStock)
			r.Get("/out-of-stock", h.OutOfStock)
		})
	})

	return otelhttp.NewHandler(r, "inventory-ledger")
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /api/v1/inventory/{productID}/availability?quantity=N
func (h *HTTPHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	quantity := 1
	if raw := r.URL.Query().Get("quantity"); raw != "" {
		q, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be an integer")
			return
		}
		quantity = q
	}

	result, err := h.ledger.CheckAvailability(r.Context(), chi.URLParam(r, "productID"), quantity)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// POST /api/v1/inventory/availability
func (h *HTTPHandler) CheckAvailabilityBatch(w http.ResponseWriter, r *http.Request) {
	var req ItemsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	results, err := h.ledger.CheckAvailabilityBatch(r.Context(), req.Items)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	available := true
	for _, result := range results {
		available = available && result.Available
	}
	respondJSON(w, http.StatusOK, AvailabilityResponse{Available: available, Results: results})
}

// POST /api/v1/inventory/{productID}/restock
func (h *HTTPHandler) Restock(w http.ResponseWriter, r *http.Request) {
	var req RestockRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	change, err := h.ledger.Increment(r.Context(), chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if !change.Success {
		respondError(w, http.StatusInternalServerError, "restock_failed", "stock could not be updated")
		return
	}
	respondJSON(w, http.StatusOK, change)
}

// POST /api/v1/checkout
func (h *HTTPHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.checkout.PlaceOrder(r.Context(), req.OrderID, req.Items)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

// POST /api/v1/orders/{orderID}/cancel
func (h *HTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var req ItemsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.checkout.CancelOrder(r.Context(), chi.URLParam(r, "orderID"), req.Items)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// POST /api/v1/cart/validate
func (h *HTTPHandler) ValidateCart(w http.ResponseWriter, r *http.Request) {
	var req ItemsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	shortages, err := h.cart.ValidateQuantities(r.Context(), req.Items)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CartValidationResponse{Valid: len(shortages) == 0, Shortages: shortages})
}

// POST /api/v1/admin/inventory
func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rec, err := h.ledger.RegisterProduct(r.Context(), req.ProductID, req.Stock)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toStockLevel(rec))
}

// GET /api/v1/admin/inventory/low-stock?threshold=N
func (h *HTTPHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	threshold := h.reports.DefaultThreshold()
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		t, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_threshold", "threshold must be an integer")
			return
		}
		threshold = t
	}

	records, err := h.reports.LowStock(r.Context(), threshold)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, StockReportResponse{Threshold: &threshold, Products: toStockLevels(records)})
}

// GET /api/v1/admin/inventory/out-of-stock
func (h *HTTPHandler) OutOfStock(w http.ResponseWriter, r *http.Request) {
	records, err := h.reports.OutOfStock(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, StockReportResponse{Products: toStockLevels(records)})
}

func (h *HTTPHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var unavailable *service.ItemsUnavailableError

	switch {
	case errors.As(err, &unavailable):
		respondJSON(w, http.StatusConflict, ErrorResponse{
			Error:       "some items are out of stock",
			Code:        "items_unavailable",
			FailedItems: unavailable.Items,
		})
	case domain.IsClientError(err):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domain.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
	case errors.Is(err, domain.ErrProductExists):
		respondError(w, http.StatusConflict, "product_exists", "product already exists")
	default:
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func toStockLevel(rec domain.StockRecord) StockLevelDTO {
	return StockLevelDTO{
		ProductID: rec.ProductID,
		Stock:     rec.Stock,
		UpdatedAt: rec.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toStockLevels(records []domain.StockRecord) []StockLevelDTO {
	out := make([]StockLevelDTO, 0, len(records))
	for _, rec := range records {
		out = append(out, toStockLevel(rec))
	}
	return out
}
