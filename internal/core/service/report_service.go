package service

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

const (
	DefaultLowStockThreshold = 10
	defaultReportTimeout     = 10 * time.Second
)

type stockReporter interface {
	LowStockProducts(ctx context.Context, threshold int) ([]domain.StockRecord, error)
	OutOfStockProducts(ctx context.Context) ([]domain.StockRecord, error)
}

// ReportService serves the admin dashboard. Identical concurrent queries
// share one storage round trip.
type ReportService struct {
	reporter         stockReporter
	defaultThreshold int
	timeout          time.Duration
	group            singleflight.Group
}

func NewReportService(reporter stockReporter, defaultThreshold int) *ReportService {
	if defaultThreshold <= 0 {
		defaultThreshold = DefaultLowStockThreshold
	}
	return &ReportService{reporter: reporter, defaultThreshold: defaultThreshold, timeout: defaultReportTimeout}
}

func (s *ReportService) DefaultThreshold() int {
	return s.defaultThreshold
}

func (s *ReportService) LowStock(ctx context.Context, threshold int) ([]domain.StockRecord, error) {
	return s.shared(ctx, "low:"+strconv.Itoa(threshold), func(ctx context.Context) ([]domain.StockRecord, error) {
		return s.reporter.LowStockProducts(ctx, threshold)
	})
}

func (s *ReportService) OutOfStock(ctx context.Context) ([]domain.StockRecord, error) {
	return s.shared(ctx, "out", s.reporter.OutOfStockProducts)
}

// shared runs query once for all concurrent callers of key. The query is
// detached from any single caller, so one client going away does not fail the
// others; each caller still stops waiting when its own ctx is done.
func (s *ReportService) shared(ctx context.Context, key string, query func(context.Context) ([]domain.StockRecord, error)) ([]domain.StockRecord, error) {
	ch := s.group.DoChan(key, func() (any, error) {
		queryCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return query(queryCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]domain.StockRecord), nil
	}
}
