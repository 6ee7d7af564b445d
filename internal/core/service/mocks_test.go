package service

import (
	"context"
	"errors"
	"maps"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rl1809/inventory-ledger/internal/adapter/storage"
	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/port"
)

var errDiskGone = errors.New("disk I/O error")

func setupTestStore(t *testing.T, stocks map[string]int) *storage.SQLStore {
	t.Helper()

	store, err := storage.Open(context.Background(), storage.Options{
		Driver:       "sqlite",
		DSN:          storage.SQLiteDSN(filepath.Join(t.TempDir(), "inventory.db")),
		MaxOpenConns: 8,
	})
	require.NoError(t, err)
	require.NoError(t, store.RunMigrations())
	t.Cleanup(func() { store.Close() })

	for id, stock := range stocks {
		require.NoError(t, store.CreateProduct(context.Background(), id, stock))
	}
	return store
}

func stockOf(t *testing.T, store port.StockReader, productID string) int {
	t.Helper()
	rec, err := store.GetStock(context.Background(), productID)
	require.NoError(t, err)
	return rec.Stock
}

// Mock StockStore with fault injection. A transaction holds the lock for its
// whole duration and restores the snapshot on error.
type mockStockStore struct {
	mu         sync.Mutex
	stock      map[string]int
	operations map[string]bool

	failTx    error
	failReads error
	// failOn makes any transactional write to the product fail.
	failOn map[string]error
}

func newMockStockStore(stocks map[string]int) *mockStockStore {
	return &mockStockStore{
		stock:      maps.Clone(stocks),
		operations: make(map[string]bool),
		failOn:     make(map[string]error),
	}
}

func (m *mockStockStore) GetStock(ctx context.Context, productID string) (domain.StockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReads != nil {
		return domain.StockRecord{}, m.failReads
	}
	return m.get(productID)
}

func (m *mockStockStore) ListLowStock(ctx context.Context, threshold int) ([]domain.StockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReads != nil {
		return nil, m.failReads
	}
	var records []domain.StockRecord
	for id, stock := range m.stock {
		if stock > 0 && stock <= threshold {
			records = append(records, domain.StockRecord{ProductID: id, Stock: stock})
		}
	}
	return records, nil
}

func (m *mockStockStore) ListOutOfStock(ctx context.Context) ([]domain.StockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReads != nil {
		return nil, m.failReads
	}
	var records []domain.StockRecord
	for id, stock := range m.stock {
		if stock == 0 {
			records = append(records, domain.StockRecord{ProductID: id})
		}
	}
	return records, nil
}

func (m *mockStockStore) CreateProduct(ctx context.Context, productID string, stock int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stock[productID]; ok {
		return domain.ErrProductExists
	}
	m.stock[productID] = stock
	return nil
}

func (m *mockStockStore) WithinTx(ctx context.Context, fn func(tx port.StockTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTx != nil {
		return m.failTx
	}

	stock := maps.Clone(m.stock)
	operations := maps.Clone(m.operations)
	if err := fn(mockTx{m}); err != nil {
		m.stock = stock
		m.operations = operations
		return err
	}
	return nil
}

func (m *mockStockStore) stockOf(productID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[productID]
}

func (m *mockStockStore) setFailOn(productID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failOn, productID)
		return
	}
	m.failOn[productID] = err
}

func (m *mockStockStore) setFailTx(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failTx = err
}

func (m *mockStockStore) get(productID string) (domain.StockRecord, error) {
	stock, ok := m.stock[productID]
	if !ok {
		return domain.StockRecord{}, domain.ErrProductNotFound
	}
	return domain.StockRecord{ProductID: productID, Stock: stock}, nil
}

// mockTx runs with the store lock already held.
type mockTx struct {
	m *mockStockStore
}

func (tx mockTx) GetStock(ctx context.Context, productID string) (domain.StockRecord, error) {
	return tx.m.get(productID)
}

func (tx mockTx) DecrementIfAvailable(ctx context.Context, productID string, quantity int) (bool, error) {
	if err := tx.m.failOn[productID]; err != nil {
		return false, err
	}
	stock, ok := tx.m.stock[productID]
	if !ok || stock < quantity {
		return false, nil
	}
	tx.m.stock[productID] = stock - quantity
	return true, nil
}

func (tx mockTx) Increment(ctx context.Context, productID string, quantity int) (bool, error) {
	if err := tx.m.failOn[productID]; err != nil {
		return false, err
	}
	stock, ok := tx.m.stock[productID]
	if !ok {
		return false, nil
	}
	tx.m.stock[productID] = stock + quantity
	return true, nil
}

func (tx mockTx) ClaimOperation(ctx context.Context, key string, kind domain.OperationKind) (bool, error) {
	id := string(kind) + ":" + key
	if tx.m.operations[id] {
		return false, nil
	}
	tx.m.operations[id] = true
	return true, nil
}

// Mock AlertPublisher
type mockAlerts struct {
	mu     sync.Mutex
	alerts []domain.Alert
	err    error
}

func (m *mockAlerts) Publish(ctx context.Context, alert domain.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
	return m.err
}

func (m *mockAlerts) published() []domain.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Alert(nil), m.alerts...)
}
