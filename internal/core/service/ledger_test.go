package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/port"
)

func TestCheckAvailability(t *testing.T) {
	store := setupTestStore(t, map[string]int{"p1": 5})
	ledger := NewLedger(store)
	ctx := context.Background()

	got, err := ledger.CheckAvailability(ctx, "p1", 5)
	require.NoError(t, err)
	assert.Equal(t, domain.Availability{ProductID: "p1", Requested: 5, Found: true, Available: true, CurrentStock: 5}, got)

	got, err = ledger.CheckAvailability(ctx, "p1", 6)
	require.NoError(t, err)
	assert.False(t, got.Available)
	assert.Equal(t, 5, got.CurrentStock)

	_, err = ledger.CheckAvailability(ctx, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	_, err = ledger.CheckAvailability(ctx, "p1", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = ledger.CheckAvailability(ctx, "", 1)
	assert.ErrorIs(t, err, domain.ErrInvalidProductID)
}

func TestCheckAvailability_ZeroStock(t *testing.T) {
	store := setupTestStore(t, map[string]int{"p": 0})
	ledger := NewLedger(store)

	got, err := ledger.CheckAvailability(context.Background(), "p", 1)
	require.NoError(t, err)
	assert.False(t, got.Available)
	assert.Equal(t, 0, got.CurrentStock)
}

func TestCheckAvailability_DoesNotMutate(t *testing.T) {
	store := setupTestStore(t, map[string]int{"p": 3})
	ledger := NewLedger(store)

	for i := 0; i < 20; i++ {
		_, err := ledger.CheckAvailability(context.Background(), "p", 2)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, stockOf(t, store, "p"))
}

func TestCheckAvailability_StorageFault(t *testing.T) {
	store := newMockStockStore(map[string]int{"p": 3})
	store.failReads = errDiskGone
	ledger := NewLedger(store)

	_, err := ledger.CheckAvailability(context.Background(), "p", 1)
	var fault *domain.StorageFaultError
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "p", fault.ProductID)
	assert.Equal(t, 1, fault.Quantity)
	assert.ErrorIs(t, err, errDiskGone)
}

func TestCheckAvailabilityBatch_ReportsEveryItem(t *testing.T) {
	store := setupTestStore(t, map[string]int{"p1": 5, "p2": 1})
	ledger := NewLedger(store)

	got, err := ledger.CheckAvailabilityBatch(context.Background(), []domain.Item{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 2},
		{ProductID: "ghost", Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.True(t, got[0].Available)
	assert.False(t, got[1].Available)
	assert.Equal(t, 1, got[1].CurrentStock)
	assert.False(t, got[2].Found)
	assert.False(t, got[2].Available)

	_, err = ledger.CheckAvailabilityBatch(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrEmptyBatch)
}

func TestDecrement(t *testing.T) {
	store := setupTestStore(t, map[string]int{"p": 5})
	ledger := NewLedger(store)
	ctx := context.Background()

	change, err := ledger.Decrement(ctx, "p", 3)
	require.NoError(t, err)
	assert.True(t, change.Success)
	assert.Equal(t, 2, change.NewStock)

	change, err = ledger.Decrement(ctx, "p", 3)
	require.NoError(t, err, "insufficient stock is not an error")
	assert.False(t, change.Success)
	assert.Equal(t, 2, change.NewStock)
	assert.Equal(t, 2, stockOf(t, store, "p"))

	_, err = ledger.Decrement(ctx, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	_, err = ledger.Decrement(ctx, "p", -1)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestDecrement_Concurrent(t *testing.T) {
	initialStock := 20
	totalRequests := 50

	store := setupTestStore(t, map[string]int{"item": initialStock})
	ledger := NewLedger(store)

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			change, err := ledger.Decrement(context.Background(), "item", 1)
			assert.NoError(t, err)
			if change.Success {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(initialStock), successCount.Load())
	assert.Equal(t, 0, stockOf(t, store, "item"))
}

func TestDecrement_NoDoubleSell(t *testing.T) {
	store := setupTestStore(t, map[string]int{"last": 1})
	ledger := NewLedger(store)

	results := make(chan bool, 2)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			change, err := ledger.Decrement(context.Background(), "last", 1)
			assert.NoError(t, err)
			results <- change.Success
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	var successes int
	for ok := range results {
		if ok {
			successes++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 0, stockOf(t, store, "last"))
}

func TestDecrement_StorageFault(t *testing.T) {
	store := newMockStockStore(map[string]int{"p": 5})
	store.setFailOn("p", errDiskGone)
	ledger := NewLedger(store)

	_, err := ledger.Decrement(context.Background(), "p", 1)
	var fault *domain.StorageFaultError
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, opDecrement, fault.Op)
	assert.Equal(t, 5, store.stockOf("p"))
}

func TestDecrementIncrement_RoundTrip(t *testing.T) {
	store := setupTestStore(t, map[string]int{"p": 9})
	ledger := NewLedger(store)
	ctx := context.Background()

	for _, qty := range []int{1, 4, 9} {
		dec, err := ledger.Decrement(ctx, "p", qty)
		require.NoError(t, err)
		require.True(t, dec.Success)

		inc, err := ledger.Increment(ctx, "p", qty)
		require.NoError(t, err)
		require.True(t, inc.Success)
		assert.Equal(t, 9, inc.NewStock)
	}
	assert.Equal(t, 9, stockOf(t, store, "p"))
}

func TestDecrementBatch_Success(t *testing.T) {
	store := setupTestStore(t, map[string]int{"p1": 5, "p2": 5})
	ledger := NewLedger(store)

	result, err := ledger.DecrementBatch(context.Background(), []domain.Item{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 5},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.FailedItems)
	assert.Equal(t, 3, stockOf(t, store, "p1"))
	assert.Equal(t, 0, stockOf(t, store, "p2"))
}

func TestDecrementBatch_Atomic(t *testing.T) {
	store := setupTestStore(t, map[string]int{"p1": 5, "p2": 1, "p3": 5})
	ledger := NewLedger(store)

	result, err := ledger.DecrementBatch(context.Background(), []domain.Item{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p2", Quantity: 2},
		{ProductID: "p3", Quantity: 1},
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, []domain.FailedItem{
		{ProductID: "p2", Requested: 2, CurrentStock: 1, Reason: domain.FailureInsufficientStock},
	}, result.FailedItems)

	assert.Equal(t, 5, stockOf(t, store, "p1"))
	assert.Equal(t, 1, stockOf(t, store, "p2"))
	assert.Equal(t, 5, stockOf(t, store, "p3"))
}

func TestDecrementBatch_RollsBackScenario(t *testing.T) {
	store := setupTestStore(t, map[string]int{"p": 5, "p2": 2})
	ledger := NewLedger(store)

	result, err := ledger.DecrementBatch(context.Background(), []domain.Item{
		{ProductID: "p", Quantity: 3},
		{ProductID: "p2", Quantity: 10},
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 5, stockOf(t, store, "p"))
	assert.Equal(t, 2, stockOf(t, store, "p2"))
}

func TestDecrementBatch_ReportsAllFailures(t *testing.T) {
	store := setupTestStore(t, map[string]int{"a": 0, "b": 10, "c": 1})
	ledger := NewLedger(store)

	result, err := ledger.DecrementBatch(context.Background(), []domain.Item{
		{ProductID: "a", Quantity: 1},
		{ProductID: "ghost", Quantity: 1},
		{ProductID: "b", Quantity: 1},
		{ProductID: "c", Quantity: 2},
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.FailedItems, 3)
	assert.Equal(t, "a", result.FailedItems[0].ProductID)
	assert.Equal(t, domain.FailureNotFound, result.FailedItems[1].Reason)
	assert.Equal(t, "c", result.FailedItems[2].ProductID)
	assert.Equal(t, 10, stockOf(t, store, "b"))
}

func TestDecrementBatch_MergesDuplicateItems(t *testing.T) {
	store := setupTestStore(t, map[string]int{"p": 5})
	ledger := NewLedger(store)

	result, err := ledger.DecrementBatch(context.Background(), []domain.Item{
		{ProductID: "p", Quantity: 3},
		{ProductID: "p", Quantity: 3},
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 6, result.FailedItems[0].Requested)
	assert.Equal(t, 5, stockOf(t, store, "p"))
}

func TestDecrementBatch_RejectsOverflowingMergedQuantity(t *testing.T) {
	store := setupTestStore(t, map[string]int{"p": 5})
	ledger := NewLedger(store)
	items := []domain.Item{
		{ProductID: "p", Quantity: domain.MaxQuantity},
		{ProductID: "p", Quantity: domain.MaxQuantity},
	}

	_, err := ledger.DecrementBatch(context.Background(), items, WithOperationKey("order-1"))
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	assert.Equal(t, 5, stockOf(t, store, "p"))

	// The key was never claimed, so a corrected request still goes through.
	result, err := ledger.DecrementBatch(context.Background(), []domain.Item{{ProductID: "p", Quantity: 2}}, WithOperationKey("order-1"))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.Replayed)
	assert.Equal(t, 3, stockOf(t, store, "p"))
}

func TestIncrementBatch_RejectsOverflowingMergedQuantity(t *testing.T) {
	store := setupTestStore(t, map[string]int{"p": 5})
	ledger := NewLedger(store)

	_, err := ledger.IncrementBatch(context.Background(), []domain.Item{
		{ProductID: "p", Quantity: domain.MaxQuantity},
		{ProductID: "p", Quantity: domain.MaxQuantity},
	})
	assert.ErrorIs(t, err, domain.ErrQuantityTooLarge)
	assert.Equal(t, 5, stockOf(t, store, "p"))

	_, err = ledger.Decrement(context.Background(), "p", domain.MaxQuantity+1)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestDecrementBatch_ReplayedKey(t *testing.T) {
	store := setupTestStore(t, map[string]int{"p": 5})
	ledger := NewLedger(store)
	items := []domain.Item{{ProductID: "p", Quantity: 2}}

	first, err := ledger.DecrementBatch(context.Background(), items, WithOperationKey("order-1"))
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.False(t, first.Replayed)

	second, err := ledger.DecrementBatch(context.Background(), items, WithOperationKey("order-1"))
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.True(t, second.Replayed)

	assert.Equal(t, 3, stockOf(t, store, "p"))
}

func TestDecrementBatch_RejectedKeyCanRetry(t *testing.T) {
	store := setupTestStore(t, map[string]int{"p": 1})
	ledger := NewLedger(store)
	items := []domain.Item{{ProductID: "p", Quantity: 2}}

	result, err := ledger.DecrementBatch(context.Background(), items, WithOperationKey("order-1"))
	require.NoError(t, err)
	require.False(t, result.Success)

	_, err = ledger.Increment(context.Background(), "p", 1)
	require.NoError(t, err)

	result, err = ledger.DecrementBatch(context.Background(), items, WithOperationKey("order-1"))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.Replayed)
	assert.Equal(t, 0, stockOf(t, store, "p"))
}

func TestDecrementBatch_ConcurrentNeverNegative(t *testing.T) {
	store := setupTestStore(t, map[string]int{"a": 10, "b": 10})
	ledger := NewLedger(store)

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := ledger.DecrementBatch(context.Background(), []domain.Item{
				{ProductID: "a", Quantity: 1},
				{ProductID: "b", Quantity: 2},
			})
			assert.NoError(t, err)
			if result.Success {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), successCount.Load())
	assert.Equal(t, 5, stockOf(t, store, "a"))
	assert.Equal(t, 0, stockOf(t, store, "b"))
}

func TestDecrementBatch_StorageFaultRollsBack(t *testing.T) {
	store := newMockStockStore(map[string]int{"p1": 5, "p2": 5})
	store.setFailOn("p2", errDiskGone)
	ledger := NewLedger(store)

	_, err := ledger.DecrementBatch(context.Background(), []domain.Item{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p2", Quantity: 1},
	}, WithOperationKey("order-9"))

	var fault *domain.StorageFaultError
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, opDecrementBatch, fault.Op)
	assert.Equal(t, 5, store.stockOf("p1"))

	store.setFailOn("p2", nil)
	result, err := ledger.DecrementBatch(context.Background(), []domain.Item{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p2", Quantity: 1},
	}, WithOperationKey("order-9"))
	require.NoError(t, err)
	assert.False(t, result.Replayed, "a faulted batch must not consume its key")
}

func TestDecrementBatchTx_CallerRollsBack(t *testing.T) {
	store := setupTestStore(t, map[string]int{"p1": 5, "p2": 1})
	ledger := NewLedger(store)
	ctx := context.Background()

	var result domain.BatchResult
	err := store.WithinTx(ctx, func(tx port.StockTx) error {
		var err error
		result, err = ledger.DecrementBatchTx(ctx, tx, []domain.Item{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 2},
		})
		return err
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.False(t, result.Success)
	assert.Equal(t, 5, stockOf(t, store, "p1"))

	err = store.WithinTx(ctx, func(tx port.StockTx) error {
		if _, err := ledger.DecrementBatchTx(ctx, tx, []domain.Item{{ProductID: "p1", Quantity: 2}}); err != nil {
			return err
		}
		_, err := ledger.IncrementBatchTx(ctx, tx, []domain.Item{{ProductID: "p2", Quantity: 4}})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 3, stockOf(t, store, "p1"))
	assert.Equal(t, 5, stockOf(t, store, "p2"))
}

func TestIncrement(t *testing.T) {
	store := setupTestStore(t, map[string]int{"p": 0})
	ledger := NewLedger(store)

	change, err := ledger.Increment(context.Background(), "p", 7)
	require.NoError(t, err)
	assert.True(t, change.Success)
	assert.Equal(t, 7, change.NewStock)

	_, err = ledger.Increment(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestIncrement_StorageFaultIsAlerted(t *testing.T) {
	store := newMockStockStore(map[string]int{"p": 1})
	store.setFailTx(errDiskGone)
	alerts := &mockAlerts{err: errors.New("sink down")}
	ledger := NewLedger(store, WithAlerts(alerts))

	change, err := ledger.Increment(context.Background(), "p", 2)
	require.NoError(t, err)
	assert.False(t, change.Success)

	published := alerts.published()
	require.Len(t, published, 1)
	assert.Equal(t, domain.SeverityWarning, published[0].Severity)
	assert.Equal(t, opIncrement, published[0].Operation)
	assert.NotEmpty(t, published[0].ID)
	assert.Equal(t, 1, store.stockOf("p"))
}

func TestIncrement_AlertSurvivesCancelledContext(t *testing.T) {
	store := newMockStockStore(map[string]int{"p": 1})
	store.setFailTx(errDiskGone)
	alerts := &mockAlerts{}
	ledger := NewLedger(store, WithAlerts(alerts))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	change, err := ledger.Increment(ctx, "p", 2)
	require.NoError(t, err)
	assert.False(t, change.Success)
	assert.Len(t, alerts.published(), 1)
}

func TestIncrementBatch(t *testing.T) {
	store := setupTestStore(t, map[string]int{"p1": 1, "p2": 0})
	ledger := NewLedger(store)

	result, err := ledger.IncrementBatch(context.Background(), []domain.Item{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 3},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, stockOf(t, store, "p1"))
	assert.Equal(t, 3, stockOf(t, store, "p2"))
}

func TestIncrementBatch_SkipsUnknownProducts(t *testing.T) {
	store := setupTestStore(t, map[string]int{"p1": 1})
	alerts := &mockAlerts{}
	ledger := NewLedger(store, WithAlerts(alerts))

	result, err := ledger.IncrementBatch(context.Background(), []domain.Item{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "retired", Quantity: 1},
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, []domain.FailedItem{
		{ProductID: "retired", Requested: 1, Reason: domain.FailureNotFound},
	}, result.FailedItems)
	assert.Equal(t, 3, stockOf(t, store, "p1"))
	assert.Len(t, alerts.published(), 1)
}

func TestIncrementBatch_StorageFaultAbortsWholeBatch(t *testing.T) {
	store := newMockStockStore(map[string]int{"p1": 1, "p2": 1})
	store.setFailOn("p2", errDiskGone)
	alerts := &mockAlerts{}
	ledger := NewLedger(store, WithAlerts(alerts))

	result, err := ledger.IncrementBatch(context.Background(), []domain.Item{
		{ProductID: "p1", Quantity: 5},
		{ProductID: "p2", Quantity: 5},
	}, WithOperationKey("order-3"))
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.FailedItems, 2)
	assert.Equal(t, domain.FailureStorage, result.FailedItems[0].Reason)
	assert.Equal(t, 1, store.stockOf("p1"))

	published := alerts.published()
	require.Len(t, published, 1)
	assert.Equal(t, "order-3", published[0].OperationKey)
}

func TestIncrementBatch_ReplayedKey(t *testing.T) {
	store := setupTestStore(t, map[string]int{"p": 0})
	ledger := NewLedger(store)
	items := []domain.Item{{ProductID: "p", Quantity: 4}}

	_, err := ledger.IncrementBatch(context.Background(), items, WithOperationKey("order-1"))
	require.NoError(t, err)
	result, err := ledger.IncrementBatch(context.Background(), items, WithOperationKey("order-1"))
	require.NoError(t, err)
	assert.True(t, result.Replayed)
	assert.Equal(t, 4, stockOf(t, store, "p"))
}

func TestIncrementBatch_ReplayAfterPartialRestore(t *testing.T) {
	store := setupTestStore(t, map[string]int{"p": 0})
	ledger := NewLedger(store)
	items := []domain.Item{{ProductID: "p", Quantity: 4}, {ProductID: "retired", Quantity: 1}}

	first, err := ledger.IncrementBatch(context.Background(), items, WithOperationKey("order-1"))
	require.NoError(t, err)
	require.False(t, first.Success)

	// The committed claim covers the products that were restored; a replay
	// reports that nothing more was done.
	second, err := ledger.IncrementBatch(context.Background(), items, WithOperationKey("order-1"))
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Empty(t, second.FailedItems)
	assert.Equal(t, 4, stockOf(t, store, "p"))
}

func TestCheckoutAndRestockKeysDoNotCollide(t *testing.T) {
	store := setupTestStore(t, map[string]int{"p": 5})
	ledger := NewLedger(store)
	items := []domain.Item{{ProductID: "p", Quantity: 2}}

	dec, err := ledger.DecrementBatch(context.Background(), items, WithOperationKey("order-1"))
	require.NoError(t, err)
	require.True(t, dec.Success)

	inc, err := ledger.IncrementBatch(context.Background(), items, WithOperationKey("order-1"))
	require.NoError(t, err)
	assert.True(t, inc.Success)
	assert.False(t, inc.Replayed)
	assert.Equal(t, 5, stockOf(t, store, "p"))
}

func TestLowStockProducts_Boundary(t *testing.T) {
	store := setupTestStore(t, map[string]int{"zero": 0, "ten": 10, "eleven": 11, "three": 3})
	ledger := NewLedger(store)

	records, err := ledger.LowStockProducts(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "three", records[0].ProductID)
	assert.Equal(t, "ten", records[1].ProductID)

	_, err = ledger.LowStockProducts(context.Background(), -1)
	assert.ErrorIs(t, err, domain.ErrInvalidThreshold)
}

func TestOutOfStockProducts(t *testing.T) {
	store := setupTestStore(t, map[string]int{"b": 0, "a": 0, "c": 1})
	ledger := NewLedger(store)

	records, err := ledger.OutOfStockProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].ProductID)
	assert.Equal(t, "b", records[1].ProductID)
}

func TestRegisterProduct(t *testing.T) {
	store := setupTestStore(t, nil)
	ledger := NewLedger(store)
	ctx := context.Background()

	rec, err := ledger.RegisterProduct(ctx, "new", 12)
	require.NoError(t, err)
	assert.Equal(t, 12, rec.Stock)

	_, err = ledger.RegisterProduct(ctx, "new", 1)
	assert.ErrorIs(t, err, domain.ErrProductExists)

	_, err = ledger.RegisterProduct(ctx, "neg", -1)
	assert.ErrorIs(t, err, domain.ErrInvalidStock)

	rec, err = ledger.RegisterProduct(ctx, "empty", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Stock)
}

func TestLedger_RecordsMetrics(t *testing.T) {
	store := setupTestStore(t, map[string]int{"p": 1})
	metrics := NewMetrics(prometheus.NewRegistry())
	ledger := NewLedger(store, WithMetrics(metrics))
	ctx := context.Background()

	_, err := ledger.Decrement(ctx, "p", 1)
	require.NoError(t, err)
	_, err = ledger.Decrement(ctx, "p", 1)
	require.NoError(t, err)
	_, err = ledger.Decrement(ctx, "missing", 1)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues(opDecrement, outcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues(opDecrement, outcomeInsufficient)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues(opDecrement, outcomeNotFound)))
}
