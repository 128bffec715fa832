package core_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"fba-warehouse/internal/core"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	schema, err := os.ReadFile("../../migrations/schema.sql")
	if err != nil {
		t.Fatalf("Failed to read schema: %v", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE shipment_box_items, shipment_boxes, shipments,
		               stock_movements, stock_units, shipment_sequences CASCADE;
	`)
	if err != nil {
		t.Fatalf("Failed to clean test database: %v", err)
	}

	return pool
}

// seedUnit registers a stock unit with a unique SKU and the given availability.
func seedUnit(t *testing.T, ledger core.StockLedger, available int) *core.StockUnit {
	t.Helper()
	unit, err := ledger.Register(context.Background(), core.StockUnitInput{
		SKU:          "SKU-" + uuid.NewString()[:8],
		Name:         "Test Widget",
		AvailableQty: available,
		UnitWeight:   decimal.RequireFromString("0.5"),
	}, "tester")
	if err != nil {
		t.Fatalf("Failed to seed stock unit: %v", err)
	}
	return unit
}

func TestStockLedger_RegisterAndLookup(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewStockLedger(pool)
	ctx := context.Background()

	unit, err := ledger.Register(ctx, core.StockUnitInput{
		SKU:          "  widget-reg ",
		Name:         "Widget",
		AvailableQty: 7,
		FaultyQty:    1,
	}, "tester")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if unit.SKU != "WIDGET-REG" {
		t.Errorf("SKU not normalized on register: %s", unit.SKU)
	}
	if unit.Condition != core.ConditionNewItem || unit.PrepType != core.PrepNone {
		t.Errorf("defaults not applied: %s / %s", unit.Condition, unit.PrepType)
	}

	// Lookup is case-insensitive via normalization.
	got, err := ledger.Lookup(ctx, "widget-reg")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.AvailableQty != 7 || got.FaultyQty != 1 {
		t.Errorf("quantities = %d/%d, want 7/1", got.AvailableQty, got.FaultyQty)
	}

	_, err = ledger.Register(ctx, core.StockUnitInput{SKU: "WIDGET-REG", Name: "Dup"}, "tester")
	if !errors.Is(err, core.ErrDuplicateSKU) {
		t.Errorf("expected ErrDuplicateSKU, got %v", err)
	}

	_, err = ledger.Lookup(ctx, "NO-SUCH-SKU")
	if !errors.Is(err, core.ErrUnknownSKU) {
		t.Errorf("expected ErrUnknownSKU, got %v", err)
	}
}

func TestStockLedger_SetAndAdjust(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewStockLedger(pool)
	ctx := context.Background()
	unit := seedUnit(t, ledger, 0)

	unit, err := ledger.SetStock(ctx, unit.SKU, 10, 2, "tester")
	if err != nil {
		t.Fatalf("SetStock: %v", err)
	}
	if unit.AvailableQty != 10 || unit.FaultyQty != 2 {
		t.Fatalf("quantities = %d/%d, want 10/2", unit.AvailableQty, unit.FaultyQty)
	}
	if unit.LastRestockedAt == nil {
		t.Error("SetStock did not stamp last_restocked_at")
	}

	unit, err = ledger.Adjust(ctx, unit.SKU, -4, false, "tester")
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if unit.AvailableQty != 6 {
		t.Errorf("available = %d, want 6", unit.AvailableQty)
	}

	// A correction below zero fails and leaves the counters untouched.
	_, err = ledger.Adjust(ctx, unit.SKU, -20, false, "tester")
	if !errors.Is(err, core.ErrNegativeQuantity) {
		t.Fatalf("expected ErrNegativeQuantity, got %v", err)
	}
	unit, _ = ledger.Lookup(ctx, unit.SKU)
	if unit.AvailableQty != 6 || unit.FaultyQty != 2 {
		t.Errorf("failed adjust mutated counters: %d/%d", unit.AvailableQty, unit.FaultyQty)
	}

	// Same guard on the faulty counter.
	_, err = ledger.Adjust(ctx, unit.SKU, -5, true, "tester")
	if !errors.Is(err, core.ErrNegativeQuantity) {
		t.Fatalf("expected ErrNegativeQuantity on faulty counter, got %v", err)
	}

	unit, err = ledger.Adjust(ctx, unit.SKU, 3, true, "tester")
	if err != nil {
		t.Fatalf("Adjust faulty: %v", err)
	}
	if unit.FaultyQty != 5 {
		t.Errorf("faulty = %d, want 5", unit.FaultyQty)
	}

	movements, err := ledger.Movements(ctx, unit.SKU)
	if err != nil {
		t.Fatalf("Movements: %v", err)
	}
	// RESTOCK, ADJUSTMENT, DEFECT — failed adjusts leave no trace.
	if len(movements) != 3 {
		t.Fatalf("expected 3 movements, got %d", len(movements))
	}
	if movements[0].Type != core.MovementDefect || movements[0].Quantity != 3 {
		t.Errorf("newest movement = %+v, want DEFECT +3", movements[0])
	}
	if movements[2].Type != core.MovementRestock {
		t.Errorf("oldest movement = %s, want RESTOCK", movements[2].Type)
	}
}

func TestStockLedger_Deactivate(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewStockLedger(pool)
	ctx := context.Background()
	unit := seedUnit(t, ledger, 5)

	if err := ledger.Deactivate(ctx, unit.SKU, "tester"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	_, err := ledger.Lookup(ctx, unit.SKU)
	if !errors.Is(err, core.ErrUnknownSKU) {
		t.Errorf("deactivated unit still resolves: %v", err)
	}

	if err := ledger.Deactivate(ctx, unit.SKU, "tester"); !errors.Is(err, core.ErrUnknownSKU) {
		t.Errorf("expected ErrUnknownSKU on second deactivate, got %v", err)
	}
}

func TestStockLedger_RegisterNegative(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewStockLedger(pool)
	_, err := ledger.Register(context.Background(), core.StockUnitInput{
		SKU: "NEG-1", Name: "Bad", AvailableQty: -1,
	}, "tester")
	if !errors.Is(err, core.ErrNegativeQuantity) {
		t.Errorf("expected ErrNegativeQuantity, got %v", err)
	}
}
