package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/port"
)

const (
	opCheck          = "check_availability"
	opCheckBatch     = "check_availability_batch"
	opDecrement      = "decrement"
	opDecrementBatch = "decrement_batch"
	opIncrement      = "increment"
	opIncrementBatch = "increment_batch"
	opLowStock       = "low_stock"
	opOutOfStock     = "out_of_stock"
	opRegister       = "register_product"
)

var tracer = otel.Tracer("github.com/rl1809/inventory-ledger/internal/core/service")

// errBatchRejected rolls back a decrement batch that could not be fulfilled.
var errBatchRejected = errors.New("batch rejected")

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.Alert) error { return nil }

// Ledger is the only writer of product stock. Every mutation runs inside a
// store transaction and relies on the store's conditional update for
// concurrency control; there is no in-process lock or cache.
type Ledger struct {
	store        port.StockStore
	alerts       port.AlertPublisher
	metrics      *Metrics
	log          zerolog.Logger
	txTimeout    time.Duration
	alertTimeout time.Duration
	now          func() time.Time
}

type LedgerOption func(*Ledger)

func WithAlerts(p port.AlertPublisher) LedgerOption {
	return func(l *Ledger) { l.alerts = p }
}

func WithMetrics(m *Metrics) LedgerOption {
	return func(l *Ledger) { l.metrics = m }
}

func WithLogger(log zerolog.Logger) LedgerOption {
	return func(l *Ledger) { l.log = log.With().Str("component", "ledger").Logger() }
}

// WithTxTimeout bounds each ledger transaction.
func WithTxTimeout(d time.Duration) LedgerOption {
	return func(l *Ledger) { l.txTimeout = d }
}

func WithAlertTimeout(d time.Duration) LedgerOption {
	return func(l *Ledger) { l.alertTimeout = d }
}

func NewLedger(store port.StockStore, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		store:        store,
		alerts:       nopPublisher{},
		log:          zerolog.Nop(),
		alertTimeout: 2 * time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type BatchOption func(*batchOptions)

type batchOptions struct {
	operationKey string
}

// WithOperationKey makes a batch idempotent: once a batch with this key has
// committed, replays report success without touching stock.
func WithOperationKey(key string) BatchOption {
	return func(o *batchOptions) { o.operationKey = key }
}

func collectBatchOptions(opts []BatchOption) batchOptions {
	var o batchOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (l *Ledger) CheckAvailability(ctx context.Context, productID string, quantity int) (domain.Availability, error) {
	done := l.metrics.observe(opCheck)
	item := domain.Item{ProductID: productID, Quantity: quantity}
	if err := item.Validate(); err != nil {
		done(outcomeInvalid)
		return domain.Availability{}, err
	}

	ctx, span := l.startSpan(ctx, opCheck, item)
	defer span.End()

	rec, err := l.store.GetStock(ctx, productID)
	if errors.Is(err, domain.ErrProductNotFound) {
		done(outcomeNotFound)
		return domain.Availability{}, err
	}
	if err != nil {
		done(outcomeFault)
		return domain.Availability{}, l.fault(ctx, span, opCheck, "", []domain.Item{item}, err)
	}

	availability := availabilityOf(item, rec)
	if availability.Available {
		done(outcomeOK)
	} else {
		done(outcomeInsufficient)
	}
	return availability, nil
}

// CheckAvailabilityBatch checks every item independently so callers can report
// all shortages at once. Missing products are reported with Found=false.
func (l *Ledger) CheckAvailabilityBatch(ctx context.Context, items []domain.Item) ([]domain.Availability, error) {
	done := l.metrics.observe(opCheckBatch)
	if err := domain.ValidateItems(items); err != nil {
		done(outcomeInvalid)
		return nil, err
	}

	ctx, span := l.startSpan(ctx, opCheckBatch, items...)
	defer span.End()

	results := make([]domain.Availability, 0, len(items))
	allAvailable := true
	for _, item := range items {
		rec, err := l.store.GetStock(ctx, item.ProductID)
		if errors.Is(err, domain.ErrProductNotFound) {
			results = append(results, domain.Availability{ProductID: item.ProductID, Requested: item.Quantity})
			allAvailable = false
			continue
		}
		if err != nil {
			done(outcomeFault)
			return nil, l.fault(ctx, span, opCheckBatch, "", []domain.Item{item}, err)
		}

		availability := availabilityOf(item, rec)
		allAvailable = allAvailable && availability.Available
		results = append(results, availability)
	}

	if allAvailable {
		done(outcomeOK)
	} else {
		done(outcomeInsufficient)
	}
	return results, nil
}

// Decrement reduces stock by quantity if enough is available at commit time.
// Insufficient stock is reported as Success=false with a nil error.
func (l *Ledger) Decrement(ctx context.Context, productID string, quantity int) (domain.StockChange, error) {
	done := l.metrics.observe(opDecrement)
	item := domain.Item{ProductID: productID, Quantity: quantity}
	if err := item.Validate(); err != nil {
		done(outcomeInvalid)
		return domain.StockChange{}, err
	}

	ctx, span := l.startSpan(ctx, opDecrement, item)
	defer span.End()

	change := domain.StockChange{ProductID: productID}
	err := l.withinTx(ctx, func(tx port.StockTx) error {
		rec, err := tx.GetStock(ctx, productID)
		if err != nil {
			return err
		}
		change.NewStock = rec.Stock
		if rec.Stock < quantity {
			return nil
		}

		ok, err := tx.DecrementIfAvailable(ctx, productID, quantity)
		if err != nil || !ok {
			return err
		}

		after, err := tx.GetStock(ctx, productID)
		if err != nil {
			return err
		}
		change.Success = true
		change.NewStock = after.Stock
		return nil
	})

	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		done(outcomeNotFound)
		return domain.StockChange{ProductID: productID}, err
	case err != nil:
		done(outcomeFault)
		return domain.StockChange{ProductID: productID}, l.fault(ctx, span, opDecrement, "", []domain.Item{item}, err)
	case !change.Success:
		done(outcomeInsufficient)
		l.log.Info().Str("product_id", productID).Int("quantity", quantity).Int("stock", change.NewStock).Msg("decrement rejected: insufficient stock")
	default:
		done(outcomeOK)
	}
	return change, nil
}

// DecrementBatch applies every item in one transaction, all or nothing. A
// rejected batch reports each missing or short product in FailedItems.
func (l *Ledger) DecrementBatch(ctx context.Context, items []domain.Item, opts ...BatchOption) (domain.BatchResult, error) {
	done := l.metrics.observe(opDecrementBatch)
	if err := domain.ValidateItems(items); err != nil {
		done(outcomeInvalid)
		return domain.BatchResult{}, err
	}
	o := collectBatchOptions(opts)

	ctx, span := l.startSpan(ctx, opDecrementBatch, items...)
	defer span.End()
	span.SetAttributes(attribute.String("inventory.operation_key", o.operationKey))

	var result domain.BatchResult
	err := l.withinTx(ctx, func(tx port.StockTx) error {
		var err error
		result, err = l.applyDecrements(ctx, tx, items, o.operationKey)
		return err
	})

	switch {
	case errors.Is(err, errBatchRejected):
		done(outcomeInsufficient)
		l.log.Info().
			Str("operation_key", o.operationKey).
			Interface("failed_items", result.FailedItems).
			Msg("decrement batch rolled back")
		return result, nil
	case err != nil:
		done(outcomeFault)
		return domain.BatchResult{}, l.fault(ctx, span, opDecrementBatch, o.operationKey, items, err)
	case result.Replayed:
		done(outcomeReplayed)
	default:
		done(outcomeOK)
	}
	return result, nil
}

// DecrementBatchTx runs a decrement batch inside a caller-owned transaction.
// A rejected batch returns domain.ErrInsufficientStock together with the
// result; the caller must return that error from its WithinTx callback so
// the partial deduction is rolled back.
func (l *Ledger) DecrementBatchTx(ctx context.Context, tx port.StockTx, items []domain.Item, opts ...BatchOption) (domain.BatchResult, error) {
	if err := domain.ValidateItems(items); err != nil {
		return domain.BatchResult{}, err
	}
	o := collectBatchOptions(opts)

	result, err := l.applyDecrements(ctx, tx, items, o.operationKey)
	if errors.Is(err, errBatchRejected) {
		return result, domain.ErrInsufficientStock
	}
	return result, err
}

func (l *Ledger) applyDecrements(ctx context.Context, tx port.StockTx, items []domain.Item, key string) (domain.BatchResult, error) {
	if key != "" {
		claimed, err := tx.ClaimOperation(ctx, key, domain.OperationCheckout)
		if err != nil {
			return domain.BatchResult{}, err
		}
		if !claimed {
			return domain.BatchResult{Success: true, Replayed: true}, nil
		}
	}

	var failed []domain.FailedItem
	for _, item := range domain.MergeItems(items) {
		rec, err := tx.GetStock(ctx, item.ProductID)
		if errors.Is(err, domain.ErrProductNotFound) {
			failed = append(failed, domain.FailedItem{ProductID: item.ProductID, Requested: item.Quantity, Reason: domain.FailureNotFound})
			continue
		}
		if err != nil {
			return domain.BatchResult{}, err
		}

		short := domain.FailedItem{
			ProductID:    item.ProductID,
			Requested:    item.Quantity,
			CurrentStock: rec.Stock,
			Reason:       domain.FailureInsufficientStock,
		}
		if rec.Stock < item.Quantity {
			failed = append(failed, short)
			continue
		}
		if len(failed) > 0 {
			// The batch is already lost; keep reading only to report every shortage.
			continue
		}

		ok, err := tx.DecrementIfAvailable(ctx, item.ProductID, item.Quantity)
		if err != nil {
			return domain.BatchResult{}, err
		}
		if !ok {
			failed = append(failed, short)
		}
	}

	if len(failed) > 0 {
		return domain.BatchResult{FailedItems: failed}, errBatchRejected
	}
	return domain.BatchResult{Success: true}, nil
}

// Increment adds stock back for restocks and cancellations. Storage faults are
// logged, alerted and reported as Success=false rather than returned.
func (l *Ledger) Increment(ctx context.Context, productID string, quantity int) (domain.StockChange, error) {
	done := l.metrics.observe(opIncrement)
	item := domain.Item{ProductID: productID, Quantity: quantity}
	if err := item.Validate(); err != nil {
		done(outcomeInvalid)
		return domain.StockChange{}, err
	}

	ctx, span := l.startSpan(ctx, opIncrement, item)
	defer span.End()

	change := domain.StockChange{ProductID: productID}
	err := l.withinTx(ctx, func(tx port.StockTx) error {
		ok, err := tx.Increment(ctx, productID, quantity)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrProductNotFound
		}

		after, err := tx.GetStock(ctx, productID)
		if err != nil {
			return err
		}
		change.Success = true
		change.NewStock = after.Stock
		return nil
	})

	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		done(outcomeNotFound)
		return domain.StockChange{ProductID: productID}, err
	case err != nil:
		done(outcomeFault)
		fault := l.fault(ctx, span, opIncrement, "", []domain.Item{item}, err)
		l.alert(ctx, domain.SeverityWarning, opIncrement, "", []domain.Item{item}, fault.Error())
		return domain.StockChange{ProductID: productID}, nil
	}

	done(outcomeOK)
	return change, nil
}

// IncrementBatch applies all increments in one transaction. Products that no
// longer exist are skipped and reported; the rest are restored. A storage
// fault aborts the whole batch and is alerted, never returned as an error.
func (l *Ledger) IncrementBatch(ctx context.Context, items []domain.Item, opts ...BatchOption) (domain.BatchResult, error) {
	done := l.metrics.observe(opIncrementBatch)
	if err := domain.ValidateItems(items); err != nil {
		done(outcomeInvalid)
		return domain.BatchResult{}, err
	}
	o := collectBatchOptions(opts)

	ctx, span := l.startSpan(ctx, opIncrementBatch, items...)
	defer span.End()
	span.SetAttributes(attribute.String("inventory.operation_key", o.operationKey))

	var result domain.BatchResult
	err := l.withinTx(ctx, func(tx port.StockTx) error {
		var err error
		result, err = l.applyIncrements(ctx, tx, items, o.operationKey)
		return err
	})

	if err != nil {
		done(outcomeFault)
		fault := l.fault(ctx, span, opIncrementBatch, o.operationKey, items, err)
		l.alert(ctx, domain.SeverityWarning, opIncrementBatch, o.operationKey, items, fault.Error())
		return faultedBatch(items), nil
	}

	switch {
	case result.Replayed:
		done(outcomeReplayed)
	case !result.Success:
		done(outcomeNotFound)
		l.log.Error().
			Str("operation_key", o.operationKey).
			Interface("failed_items", result.FailedItems).
			Msg("increment batch skipped unknown products")
		l.alert(ctx, domain.SeverityWarning, opIncrementBatch, o.operationKey, items, "stock restoration skipped unknown products")
	default:
		done(outcomeOK)
	}
	return result, nil
}

// IncrementBatchTx runs an increment batch inside a caller-owned transaction.
func (l *Ledger) IncrementBatchTx(ctx context.Context, tx port.StockTx, items []domain.Item, opts ...BatchOption) (domain.BatchResult, error) {
	if err := domain.ValidateItems(items); err != nil {
		return domain.BatchResult{}, err
	}
	o := collectBatchOptions(opts)
	return l.applyIncrements(ctx, tx, items, o.operationKey)
}

func (l *Ledger) applyIncrements(ctx context.Context, tx port.StockTx, items []domain.Item, key string) (domain.BatchResult, error) {
	if key != "" {
		claimed, err := tx.ClaimOperation(ctx, key, domain.OperationRestock)
		if err != nil {
			return domain.BatchResult{}, err
		}
		if !claimed {
			return domain.BatchResult{Success: true, Replayed: true}, nil
		}
	}

	var failed []domain.FailedItem
	for _, item := range domain.MergeItems(items) {
		ok, err := tx.Increment(ctx, item.ProductID, item.Quantity)
		if err != nil {
			return domain.BatchResult{}, err
		}
		if !ok {
			failed = append(failed, domain.FailedItem{ProductID: item.ProductID, Requested: item.Quantity, Reason: domain.FailureNotFound})
		}
	}

	return domain.BatchResult{Success: len(failed) == 0, FailedItems: failed}, nil
}

// LowStockProducts returns products with 0 < stock <= threshold, ascending by stock.
func (l *Ledger) LowStockProducts(ctx context.Context, threshold int) ([]domain.StockRecord, error) {
	done := l.metrics.observe(opLowStock)
	if threshold < 0 {
		done(outcomeInvalid)
		return nil, domain.ErrInvalidThreshold
	}

	ctx, span := tracer.Start(ctx, "Ledger."+opLowStock, trace.WithAttributes(attribute.Int("inventory.threshold", threshold)))
	defer span.End()

	records, err := l.store.ListLowStock(ctx, threshold)
	if err != nil {
		done(outcomeFault)
		return nil, l.fault(ctx, span, opLowStock, "", nil, err)
	}
	done(outcomeOK)
	return records, nil
}

func (l *Ledger) OutOfStockProducts(ctx context.Context) ([]domain.StockRecord, error) {
	done := l.metrics.observe(opOutOfStock)

	ctx, span := tracer.Start(ctx, "Ledger."+opOutOfStock)
	defer span.End()

	records, err := l.store.ListOutOfStock(ctx)
	if err != nil {
		done(outcomeFault)
		return nil, l.fault(ctx, span, opOutOfStock, "", nil, err)
	}
	done(outcomeOK)
	return records, nil
}

// RegisterProduct creates the stock row for a new catalog product.
func (l *Ledger) RegisterProduct(ctx context.Context, productID string, initialStock int) (domain.StockRecord, error) {
	done := l.metrics.observe(opRegister)
	if err := (domain.Item{ProductID: productID, Quantity: 1}).Validate(); err != nil {
		done(outcomeInvalid)
		return domain.StockRecord{}, err
	}
	if initialStock < 0 {
		done(outcomeInvalid)
		return domain.StockRecord{}, domain.ErrInvalidStock
	}

	ctx, span := l.startSpan(ctx, opRegister, domain.Item{ProductID: productID, Quantity: initialStock})
	defer span.End()

	err := l.store.CreateProduct(ctx, productID, initialStock)
	if errors.Is(err, domain.ErrProductExists) {
		done(outcomeExists)
		return domain.StockRecord{}, err
	}
	if err != nil {
		done(outcomeFault)
		return domain.StockRecord{}, l.fault(ctx, span, opRegister, "", []domain.Item{{ProductID: productID, Quantity: initialStock}}, err)
	}

	rec, err := l.store.GetStock(ctx, productID)
	if err != nil {
		done(outcomeFault)
		return domain.StockRecord{}, l.fault(ctx, span, opRegister, "", nil, err)
	}
	done(outcomeOK)
	return rec, nil
}

func (l *Ledger) withinTx(ctx context.Context, fn func(tx port.StockTx) error) error {
	if l.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.txTimeout)
		defer cancel()
	}
	return l.store.WithinTx(ctx, fn)
}

func (l *Ledger) startSpan(ctx context.Context, op string, items ...domain.Item) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.Int("inventory.items", len(items))}
	if len(items) == 1 {
		attrs = append(attrs,
			attribute.String("inventory.product_id", items[0].ProductID),
			attribute.Int("inventory.quantity", items[0].Quantity),
		)
	}
	return tracer.Start(ctx, "Ledger."+op, trace.WithAttributes(attrs...))
}

// fault logs a storage failure with its full context and wraps it.
func (l *Ledger) fault(ctx context.Context, span trace.Span, op, key string, items []domain.Item, err error) *domain.StorageFaultError {
	fault := &domain.StorageFaultError{Op: op, Err: err}
	if len(items) == 1 {
		fault.ProductID = items[0].ProductID
		fault.Quantity = items[0].Quantity
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "storage fault")

	l.log.Error().
		Err(err).
		Str("operation", op).
		Str("operation_key", key).
		Interface("items", items).
		Msg("inventory storage fault")
	return fault
}

// alert publishes to the operational channel. Delivery must not depend on
// the caller's context, which may already be cancelled.
func (l *Ledger) alert(ctx context.Context, severity domain.Severity, op, key string, items []domain.Item, reason string) {
	alert := domain.Alert{
		ID:           uuid.NewString(),
		Severity:     severity,
		Operation:    op,
		OperationKey: key,
		Items:        items,
		Reason:       reason,
		OccurredAt:   l.now().UTC(),
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.alertTimeout)
	defer cancel()

	if err := l.alerts.Publish(pubCtx, alert); err != nil {
		l.log.Error().Err(err).Str("alert_id", alert.ID).Str("operation", op).Msg("alert delivery failed")
	}
}

func availabilityOf(item domain.Item, rec domain.StockRecord) domain.Availability {
	return domain.Availability{
		ProductID:    item.ProductID,
		Requested:    item.Quantity,
		Found:        true,
		Available:    rec.Stock >= item.Quantity,
		CurrentStock: rec.Stock,
	}
}

func faultedBatch(items []domain.Item) domain.BatchResult {
	failed := make([]domain.FailedItem, 0, len(items))
	for _, item := range domain.MergeItems(items) {
		failed = append(failed, domain.FailedItem{ProductID: item.ProductID, Requested: item.Quantity, Reason: domain.FailureStorage})
	}
	return domain.BatchResult{FailedItems: failed}
}
