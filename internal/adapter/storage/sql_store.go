package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/port"
)

const stockColumns = `product_id, stock, created_at, updated_at`

type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SQLStore implements port.StockStore on database/sql. Stock is only ever
// written through conditional or additive UPDATE statements.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

var _ port.StockStore = (*SQLStore)(nil)

func Open(ctx context.Context, opts Options) (*SQLStore, error) {
	dialect, err := ParseDialect(opts.Driver)
	if err != nil {
		return nil, err
	}

	dsn, err := dialect.normalizeDSN(opts.DSN)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	return NewSQLStore(db, dialect), nil
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) GetStock(ctx context.Context, productID string) (domain.StockRecord, error) {
	return getStock(ctx, s.db, s.dialect, productID)
}

func (s *SQLStore) ListLowStock(ctx context.Context, threshold int) ([]domain.StockRecord, error) {
	return s.listStock(ctx, `
		SELECT `+stockColumns+`
		FROM inventory
		WHERE stock > 0 AND stock <= ?
		ORDER BY stock ASC, product_id ASC`, threshold)
}

func (s *SQLStore) ListOutOfStock(ctx context.Context) ([]domain.StockRecord, error) {
	return s.listStock(ctx, `
		SELECT `+stockColumns+`
		FROM inventory
		WHERE stock = 0
		ORDER BY product_id ASC`)
}

func (s *SQLStore) CreateProduct(ctx context.Context, productID string, stock int) error {
	now := s.now()
	result, err := s.db.ExecContext(ctx,
		s.dialect.insertIgnore("inventory", "product_id", "stock", "created_at", "updated_at"),
		productID, stock, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert inventory: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert inventory: %w", err)
	}
	if rows == 0 {
		return domain.ErrProductExists
	}
	return nil
}

func (s *SQLStore) WithinTx(ctx context.Context, fn func(tx port.StockTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx, dialect: s.dialect, now: s.now}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLStore) listStock(ctx context.Context, query string, args ...any) ([]domain.StockRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	defer rows.Close()

	records := make([]domain.StockRecord, 0)
	for rows.Next() {
		var rec domain.StockRecord
		if err := rows.Scan(&rec.ProductID, &rec.Stock, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

type sqlTx struct {
	tx      *sql.Tx
	dialect Dialect
	now     func() time.Time
}

func (t *sqlTx) GetStock(ctx context.Context, productID string) (domain.StockRecord, error) {
	return getStock(ctx, t.tx, t.dialect, productID)
}

func (t *sqlTx) DecrementIfAvailable(ctx context.Context, productID string, quantity int) (bool, error) {
	result, err := t.tx.ExecContext(ctx, t.dialect.rebind(`
		UPDATE inventory
		SET stock = stock - ?, updated_at = ?
		WHERE product_id = ? AND stock >= ?`),
		quantity, t.now(), productID, quantity,
	)
	if err != nil {
		return false, fmt.Errorf("decrement inventory: %w", err)
	}
	return affectedOne(result)
}

func (t *sqlTx) Increment(ctx context.Context, productID string, quantity int) (bool, error) {
	result, err := t.tx.ExecContext(ctx, t.dialect.rebind(`
		UPDATE inventory
		SET stock = stock + ?, updated_at = ?
		WHERE product_id = ?`),
		quantity, t.now(), productID,
	)
	if err != nil {
		return false, fmt.Errorf("increment inventory: %w", err)
	}
	return affectedOne(result)
}

func (t *sqlTx) ClaimOperation(ctx context.Context, key string, kind domain.OperationKind) (bool, error) {
	result, err := t.tx.ExecContext(ctx,
		t.dialect.insertIgnore("inventory_operations", "operation_key", "kind", "created_at"),
		key, string(kind), t.now(),
	)
	if err != nil {
		return false, fmt.Errorf("claim operation: %w", err)
	}
	return affectedOne(result)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getStock(ctx context.Context, q queryRower, dialect Dialect, productID string) (domain.StockRecord, error) {
	var rec domain.StockRecord
	err := q.QueryRowContext(ctx, dialect.rebind(`
		SELECT `+stockColumns+`
		FROM inventory WHERE product_id = ?`), productID,
	).Scan(&rec.ProductID, &rec.Stock, &rec.CreatedAt, &rec.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.StockRecord{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.StockRecord{}, fmt.Errorf("query inventory: %w", err)
	}
	return rec, nil
}

func affectedOne(result sql.Result) (bool, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows > 0, nil
}
