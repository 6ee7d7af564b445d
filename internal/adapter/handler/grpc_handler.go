package handler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/inventory-ledger/internal/adapter/handler/inventoryrpc"
	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/core/service"
)

// GRPCHandler exposes the ledger to internal services.
type GRPCHandler struct {
	ledger  *service.Ledger
	reports *service.ReportService
	log     zerolog.Logger
}

var _ inventoryrpc.InventoryLedgerServer = (*GRPCHandler)(nil)

func NewGRPCHandler(ledger *service.Ledger, reports *service.ReportService, log zerolog.Logger) *GRPCHandler {
	return &GRPCHandler{ledger: ledger, reports: reports, log: log.With().Str("component", "grpc").Logger()}
}

// CheckAvailability checks a single item strictly, reporting a missing
// product as NotFound, and several items without failing fast.
func (h *GRPCHandler) CheckAvailability(ctx context.Context, req *inventoryrpc.CheckAvailabilityRequest) (*inventoryrpc.CheckAvailabilityResponse, error) {
	items := toDomainItems(req.Items)

	if len(items) == 1 {
		result, err := h.ledger.CheckAvailability(ctx, items[0].ProductID, items[0].Quantity)
		if err != nil {
			return nil, h.mapError(err)
		}
		return &inventoryrpc.CheckAvailabilityResponse{Results: []inventoryrpc.Availability{toRPCAvailability(result)}}, nil
	}

	results, err := h.ledger.CheckAvailabilityBatch(ctx, items)
	if err != nil {
		return nil, h.mapError(err)
	}
	resp := &inventoryrpc.CheckAvailabilityResponse{Results: make([]inventoryrpc.Availability, 0, len(results))}
	for _, result := range results {
		resp.Results = append(resp.Results, toRPCAvailability(result))
	}
	return resp, nil
}

func (h *GRPCHandler) Decrement(ctx context.Context, req *inventoryrpc.StockRequest) (*inventoryrpc.StockChangeResponse, error) {
	change, err := h.ledger.Decrement(ctx, req.ProductID, int(req.Quantity))
	if err != nil {
		return nil, h.mapError(err)
	}
	return toRPCChange(change), nil
}

func (h *GRPCHandler) DecrementBatch(ctx context.Context, req *inventoryrpc.BatchRequest) (*inventoryrpc.BatchResponse, error) {
	result, err := h.ledger.DecrementBatch(ctx, toDomainItems(req.Items), service.WithOperationKey(req.OperationKey))
	if err != nil {
		return nil, h.mapError(err)
	}
	return toRPCBatch(result), nil
}

func (h *GRPCHandler) Increment(ctx context.Context, req *inventoryrpc.StockRequest) (*inventoryrpc.StockChangeResponse, error) {
	change, err := h.ledger.Increment(ctx, req.ProductID, int(req.Quantity))
	if err != nil {
		return nil, h.mapError(err)
	}
	return toRPCChange(change), nil
}

func (h *GRPCHandler) IncrementBatch(ctx context.Context, req *inventoryrpc.BatchRequest) (*inventoryrpc.BatchResponse, error) {
	result, err := h.ledger.IncrementBatch(ctx, toDomainItems(req.Items), service.WithOperationKey(req.OperationKey))
	if err != nil {
		return nil, h.mapError(err)
	}
	return toRPCBatch(result), nil
}

func (h *GRPCHandler) LowStock(ctx context.Context, req *inventoryrpc.LowStockRequest) (*inventoryrpc.StockListResponse, error) {
	threshold := h.reports.DefaultThreshold()
	if req.Threshold != nil {
		threshold = int(*req.Threshold)
	}

	records, err := h.reports.LowStock(ctx, threshold)
	if err != nil {
		return nil, h.mapError(err)
	}
	return toRPCStockList(records), nil
}

func (h *GRPCHandler) OutOfStock(ctx context.Context, _ *inventoryrpc.OutOfStockRequest) (*inventoryrpc.StockListResponse, error) {
	records, err := h.reports.OutOfStock(ctx)
	if err != nil {
		return nil, h.mapError(err)
	}
	return toRPCStockList(records), nil
}

// mapError converts ledger errors to gRPC status codes. Storage details stay in the log.
func (h *GRPCHandler) mapError(err error) error {
	switch {
	case domain.IsClientError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrProductNotFound):
		return status.Error(codes.NotFound, "product not found")
	case errors.Is(err, domain.ErrProductExists):
		return status.Error(codes.AlreadyExists, "product already exists")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	default:
		h.log.Error().Err(err).Msg("request failed")
		return status.Error(codes.Internal, "internal error")
	}
}

func toDomainItems(items []inventoryrpc.Item) []domain.Item {
	out := make([]domain.Item, 0, len(items))
	for _, item := range items {
		out = append(out, domain.Item{ProductID: item.ProductID, Quantity: int(item.Quantity)})
	}
	return out
}

func toRPCAvailability(a domain.Availability) inventoryrpc.Availability {
	return inventoryrpc.Availability{
		ProductID:    a.ProductID,
		Requested:    int32(a.Requested),
		Found:        a.Found,
		Available:    a.Available,
		CurrentStock: int32(a.CurrentStock),
	}
}

func toRPCChange(c domain.StockChange) *inventoryrpc.StockChangeResponse {
	return &inventoryrpc.StockChangeResponse{ProductID: c.ProductID, Success: c.Success, NewStock: int32(c.NewStock)}
}

func toRPCBatch(r domain.BatchResult) *inventoryrpc.BatchResponse {
	resp := &inventoryrpc.BatchResponse{Success: r.Success, Replayed: r.Replayed}
	for _, item := range r.FailedItems {
		resp.FailedItems = append(resp.FailedItems, inventoryrpc.FailedItem{
			ProductID:    item.ProductID,
			Requested:    int32(item.Requested),
			CurrentStock: int32(item.CurrentStock),
			Reason:       string(item.Reason),
		})
	}
	return resp
}

func toRPCStockList(records []domain.StockRecord) *inventoryrpc.StockListResponse {
	resp := &inventoryrpc.StockListResponse{Products: make([]inventoryrpc.StockLevel, 0, len(records))}
	for _, rec := range records {
		resp.Products = append(resp.Products, inventoryrpc.StockLevel{
			ProductID: rec.ProductID,
			Stock:     int32(rec.Stock),
			UpdatedAt: rec.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return resp
}
