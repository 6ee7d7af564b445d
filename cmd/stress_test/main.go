package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rl1809/inventory-ledger/internal/adapter/storage"
	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/core/service"
	"github.com/rl1809/inventory-ledger/internal/logger"
)

const (
	itemID        = "flash-sale-item"
	initialStock  = 20
	totalRequests = 50
	maxOpenConns  = 16
)

func main() {
	ctx := context.Background()
	log := logger.New(logger.Options{Service: "stress-test", Level: "warn", Format: "console"})

	dir, err := os.MkdirTemp("", "inventory-stress-*")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create temp dir")
	}
	defer os.RemoveAll(dir)

	// Initialize a fresh store
	store, err := storage.Open(ctx, storage.Options{
		Driver:       "sqlite",
		DSN:          storage.SQLiteDSN(filepath.Join(dir, "stress.db")),
		MaxOpenConns: maxOpenConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer store.Close()

	if err := store.RunMigrations(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	if err := store.CreateProduct(ctx, itemID, initialStock); err != nil {
		log.Fatal().Err(err).Msg("failed to seed stock")
	}

	ledger := service.NewLedger(store, service.WithLogger(log))
	checkout := service.NewCheckoutService(ledger, nil, zerolog.Nop(), log)

	// Counters
	var successCount atomic.Int32
	var rejectCount atomic.Int32
	var errorCount atomic.Int32

	// Spawn concurrent checkouts, each retried once with the same order id
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			orderID := uuid.NewString()
			items := []domain.Item{{ProductID: itemID, Quantity: 1}}

			_, err := checkout.PlaceOrder(ctx, orderID, items)
			if err == nil {
				// A client retry must be a replay, not a second sale.
				_, err = checkout.PlaceOrder(ctx, orderID, items)
			}

			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, service.ErrItemsUnavailable):
				rejectCount.Add(1)
			default:
				errorCount.Add(1)
				log.Error().Err(err).Str("order_id", orderID).Msg("checkout failed")
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	rejected := rejectCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Rejected:         %d\n", rejected)
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	failed := false
	if success == initialStock && rejected == totalRequests-initialStock {
		fmt.Printf("PASS: Exactly %d orders succeeded, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		failed = true
		fmt.Printf("FAIL: Expected %d success/%d rejected, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, rejected)
	}

	rec, err := store.GetStock(ctx, itemID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read final stock")
	}
	fmt.Printf("Final Stock:      %d\n", rec.Stock)

	if rec.Stock == 0 {
		fmt.Println("PASS: Stock depleted to 0, no oversell")
	} else {
		failed = true
		fmt.Printf("FAIL: Expected stock 0, got %d\n", rec.Stock)
	}

	if failed {
		os.Exit(1)
	}
}
