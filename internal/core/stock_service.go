package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StockLedger is the single source of truth for per-SKU quantities. Every
// quantity mutation in the system goes through it; the shipment workflow
// receives it at construction and never reaches the tables directly.
//
// The Tx-scoped operations implement the two-phase check-then-commit protocol
// for multi-SKU box reservations: lock every row in sorted-SKU order, validate
// every line, and only then apply the decrements. One failed check aborts the
// caller's transaction with zero mutations applied — a box-level operation is
// all-or-nothing even though the ledger tracks SKUs independently.
type StockLedger interface {
	// Register creates a stock unit for a new SKU (case-normalized, unique).
	Register(ctx context.Context, input StockUnitInput, userRef string) (*StockUnit, error)

	// Lookup returns the active stock unit for a SKU, or ErrUnknownSKU.
	Lookup(ctx context.Context, sku string) (*StockUnit, error)

	// List returns all active stock units ordered by SKU.
	List(ctx context.Context) ([]StockUnit, error)

	// SetStock overwrites both counters (a physical recount / restock).
	// faultyQty < 0 leaves the faulty counter untouched.
	SetStock(ctx context.Context, sku string, availableQty, faultyQty int, userRef string) (*StockUnit, error)

	// Adjust applies a signed correction to the available counter, or to the
	// faulty counter when faulty is true. Fails with ErrNegativeQuantity if
	// the target counter would drop below zero, leaving the unit unchanged.
	Adjust(ctx context.Context, sku string, delta int, faulty bool, userRef string) (*StockUnit, error)

	// Deactivate soft-deletes a stock unit. Quantities are retained; the SKU
	// stops resolving through Lookup.
	Deactivate(ctx context.Context, sku string, userRef string) error

	// Movements returns the audit trail for a SKU, newest first.
	Movements(ctx context.Context, sku string) ([]StockMovement, error)

	// ReserveForShipmentTx commits stock to a shipment within the caller's
	// transaction: available_qty -= qty for every line, after pre-validating
	// all lines. Lines must be aggregated per SKU (see
	// Shipment.ReservationLines) so combined demand is checked, not each box
	// in isolation.
	ReserveForShipmentTx(ctx context.Context, tx pgx.Tx, shipmentID int, lines []ReservationLine, userRef string) error

	// ReleaseForShipmentTx restores previously reserved stock when a ready
	// shipment is cancelled. No upper bound applies, and deactivated SKUs
	// still accept their stock back.
	ReleaseForShipmentTx(ctx context.Context, tx pgx.Tx, shipmentID int, lines []ReservationLine, userRef string) error
}

type stockLedger struct {
	pool *pgxpool.Pool
}

func NewStockLedger(pool *pgxpool.Pool) StockLedger {
	return &stockLedger{pool: pool}
}

const stockUnitColumns = `id, sku, name, barcode, asin, fnsku, condition, prep_type,
	       available_qty, faulty_qty, unit_weight, unit_cost, supplier, category,
	       low_stock_threshold, is_active, last_restocked_at,
	       created_by, updated_by, created_at, updated_at`

func scanStockUnit(row pgx.Row) (*StockUnit, error) {
	var u StockUnit
	err := row.Scan(
		&u.ID, &u.SKU, &u.Name, &u.Barcode, &u.ASIN, &u.FNSKU, &u.Condition, &u.PrepType,
		&u.AvailableQty, &u.FaultyQty, &u.UnitWeight, &u.UnitCost, &u.Supplier, &u.Category,
		&u.LowStockThreshold, &u.IsActive, &u.LastRestockedAt,
		&u.CreatedBy, &u.UpdatedBy, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (l *stockLedger) Register(ctx context.Context, input StockUnitInput, userRef string) (*StockUnit, error) {
	sku := NormalizeSKU(input.SKU)
	if sku == "" {
		return nil, fmt.Errorf("%w: empty SKU", ErrUnknownSKU)
	}
	if input.Name == "" {
		return nil, fmt.Errorf("stock unit %s requires a product name", sku)
	}
	if input.AvailableQty < 0 || input.FaultyQty < 0 {
		return nil, fmt.Errorf("%w: SKU %s registered with available %d, faulty %d",
			ErrNegativeQuantity, sku, input.AvailableQty, input.FaultyQty)
	}
	if input.Condition == "" {
		input.Condition = ConditionNewItem
	}
	if input.PrepType == "" {
		input.PrepType = PrepNone
	}
	if input.LowStockThreshold <= 0 {
		input.LowStockThreshold = 10
	}

	row := l.pool.QueryRow(ctx, `
		INSERT INTO stock_units (sku, name, barcode, asin, fnsku, condition, prep_type,
		                         available_qty, faulty_qty, unit_weight, unit_cost,
		                         supplier, category, low_stock_threshold, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
		ON CONFLICT (sku) DO NOTHING
		RETURNING `+stockUnitColumns,
		sku, input.Name, input.Barcode, NormalizeSKU(input.ASIN), NormalizeSKU(input.FNSKU),
		input.Condition, input.PrepType, input.AvailableQty, input.FaultyQty,
		input.UnitWeight, input.UnitCost, input.Supplier, input.Category,
		input.LowStockThreshold, userRef,
	)
	unit, err := scanStockUnit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSKU, sku)
		}
		return nil, fmt.Errorf("failed to register stock unit %s: %w", sku, err)
	}
	return unit, nil
}

func (l *stockLedger) Lookup(ctx context.Context, sku string) (*StockUnit, error) {
	key := NormalizeSKU(sku)
	unit, err := scanStockUnit(l.pool.QueryRow(ctx,
		`SELECT `+stockUnitColumns+` FROM stock_units WHERE sku = $1 AND is_active = true`, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSKU, key)
		}
		return nil, fmt.Errorf("failed to fetch stock unit %s: %w", key, err)
	}
	return unit, nil
}

func (l *stockLedger) List(ctx context.Context) ([]StockUnit, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT `+stockUnitColumns+` FROM stock_units WHERE is_active = true ORDER BY sku`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock units: %w", err)
	}
	defer rows.Close()

	var units []StockUnit
	for rows.Next() {
		unit, err := scanStockUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock unit: %w", err)
		}
		units = append(units, *unit)
	}
	return units, rows.Err()
}

func (l *stockLedger) SetStock(ctx context.Context, sku string, availableQty, faultyQty int, userRef string) (*StockUnit, error) {
	key := NormalizeSKU(sku)
	if availableQty < 0 {
		return nil, fmt.Errorf("%w: cannot set SKU %s available to %d", ErrNegativeQuantity, key, availableQty)
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var id, oldAvailable, oldFaulty int
	err = tx.QueryRow(ctx,
		`SELECT id, available_qty, faulty_qty FROM stock_units WHERE sku = $1 AND is_active = true FOR UPDATE`,
		key,
	).Scan(&id, &oldAvailable, &oldFaulty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSKU, key)
		}
		return nil, fmt.Errorf("failed to lock stock unit %s: %w", key, err)
	}

	newFaulty := oldFaulty
	if faultyQty >= 0 {
		newFaulty = faultyQty
	}

	_, err = tx.Exec(ctx, `
		UPDATE stock_units
		SET available_qty = $1, faulty_qty = $2, last_restocked_at = NOW(),
		    updated_by = $3, updated_at = NOW()
		WHERE id = $4
	`, availableQty, newFaulty, userRef, id)
	if err != nil {
		return nil, fmt.Errorf("failed to set stock for %s: %w", key, err)
	}

	err = insertMovementTx(ctx, tx, id, MovementRestock, availableQty-oldAvailable, nil,
		fmt.Sprintf("Stock set to %d available / %d faulty", availableQty, newFaulty), userRef)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit stock update: %w", err)
	}
	return l.Lookup(ctx, key)
}

func (l *stockLedger) Adjust(ctx context.Context, sku string, delta int, faulty bool, userRef string) (*StockUnit, error) {
	key := NormalizeSKU(sku)

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var id, available, faultyQty int
	err = tx.QueryRow(ctx,
		`SELECT id, available_qty, faulty_qty FROM stock_units WHERE sku = $1 AND is_active = true FOR UPDATE`,
		key,
	).Scan(&id, &available, &faultyQty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSKU, key)
		}
		return nil, fmt.Errorf("failed to lock stock unit %s: %w", key, err)
	}

	movement := MovementAdjustment
	if faulty {
		if faultyQty+delta < 0 {
			return nil, fmt.Errorf("%w: SKU %s faulty %d%+d", ErrNegativeQuantity, key, faultyQty, delta)
		}
		if delta > 0 {
			movement = MovementDefect
		}
		_, err = tx.Exec(ctx,
			`UPDATE stock_units SET faulty_qty = faulty_qty + $1, updated_by = $2, updated_at = NOW() WHERE id = $3`,
			delta, userRef, id)
	} else {
		if available+delta < 0 {
			return nil, fmt.Errorf("%w: SKU %s available %d%+d", ErrNegativeQuantity, key, available, delta)
		}
		_, err = tx.Exec(ctx, `
			UPDATE stock_units
			SET available_qty = available_qty + $1,
			    last_restocked_at = CASE WHEN $1 > 0 THEN NOW() ELSE last_restocked_at END,
			    updated_by = $2, updated_at = NOW()
			WHERE id = $3
		`, delta, userRef, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to adjust stock for %s: %w", key, err)
	}

	counter := "available"
	if faulty {
		counter = "faulty"
	}
	err = insertMovementTx(ctx, tx, id, movement, delta, nil,
		fmt.Sprintf("Manual %s adjustment %+d", counter, delta), userRef)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit stock adjustment: %w", err)
	}
	return l.Lookup(ctx, key)
}

func (l *stockLedger) Deactivate(ctx context.Context, sku string, userRef string) error {
	key := NormalizeSKU(sku)
	tag, err := l.pool.Exec(ctx,
		`UPDATE stock_units SET is_active = false, updated_by = $1, updated_at = NOW()
		 WHERE sku = $2 AND is_active = true`,
		userRef, key)
	if err != nil {
		return fmt.Errorf("failed to deactivate stock unit %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSKU, key)
	}
	return nil
}

func (l *stockLedger) Movements(ctx context.Context, sku string) ([]StockMovement, error) {
	key := NormalizeSKU(sku)
	rows, err := l.pool.Query(ctx, `
		SELECT m.id, u.sku, m.movement_type, m.quantity, m.shipment_id, m.note, m.user_ref, m.created_at
		FROM stock_movements m
		JOIN stock_units u ON u.id = m.stock_unit_id
		WHERE u.sku = $1
		ORDER BY m.id DESC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements for %s: %w", key, err)
	}
	defer rows.Close()

	var movements []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.SKU, &m.Type, &m.Quantity, &m.ShipmentID, &m.Note, &m.UserRef, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// ── Tx-scoped shipment operations ────────────────────────────────────────────

type lockedUnit struct {
	id        int
	sku       string
	qty       int
	available int
}

// lockLines locks the stock unit row for every line in sorted-SKU order.
// Deterministic lock order prevents deadlock between concurrent finalizes
// touching overlapping SKU sets. activeOnly is false for releases: a SKU
// deactivated after reservation still takes its stock back.
func lockLines(ctx context.Context, tx pgx.Tx, lines []ReservationLine, activeOnly bool) ([]lockedUnit, error) {
	sorted := make([]ReservationLine, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SKU < sorted[j].SKU })

	query := `SELECT id, available_qty FROM stock_units WHERE sku = $1 FOR UPDATE`
	if activeOnly {
		query = `SELECT id, available_qty FROM stock_units WHERE sku = $1 AND is_active = true FOR UPDATE`
	}

	locked := make([]lockedUnit, 0, len(sorted))
	for _, line := range sorted {
		key := NormalizeSKU(line.SKU)
		var lu lockedUnit
		if err := tx.QueryRow(ctx, query, key).Scan(&lu.id, &lu.available); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: %s", ErrUnknownSKU, key)
			}
			return nil, fmt.Errorf("failed to lock stock unit %s: %w", key, err)
		}
		lu.sku = key
		lu.qty = line.Qty
		locked = append(locked, lu)
	}
	return locked, nil
}

func (l *stockLedger) ReserveForShipmentTx(ctx context.Context, tx pgx.Tx, shipmentID int, lines []ReservationLine, userRef string) error {
	locked, err := lockLines(ctx, tx, lines, true)
	if err != nil {
		return err
	}

	// Phase one: validate every line before touching anything.
	for _, lu := range locked {
		if lu.available < lu.qty {
			return fmt.Errorf("%w for SKU %s: available %d, required %d",
				ErrInsufficientStock, lu.sku, lu.available, lu.qty)
		}
	}

	// Phase two: all checks passed, apply every decrement.
	for _, lu := range locked {
		_, err := tx.Exec(ctx,
			`UPDATE stock_units SET available_qty = available_qty - $1, updated_by = $2, updated_at = NOW() WHERE id = $3`,
			lu.qty, userRef, lu.id)
		if err != nil {
			return fmt.Errorf("failed to reserve stock for %s: %w", lu.sku, err)
		}
		err = insertMovementTx(ctx, tx, lu.id, MovementReservation, -lu.qty, &shipmentID,
			fmt.Sprintf("Reserved for shipment %d", shipmentID), userRef)
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *stockLedger) ReleaseForShipmentTx(ctx context.Context, tx pgx.Tx, shipmentID int, lines []ReservationLine, userRef string) error {
	locked, err := lockLines(ctx, tx, lines, false)
	if err != nil {
		return err
	}

	for _, lu := range locked {
		_, err := tx.Exec(ctx,
			`UPDATE stock_units SET available_qty = available_qty + $1, updated_by = $2, updated_at = NOW() WHERE id = $3`,
			lu.qty, userRef, lu.id)
		if err != nil {
			return fmt.Errorf("failed to release stock for %s: %w", lu.sku, err)
		}
		err = insertMovementTx(ctx, tx, lu.id, MovementRelease, lu.qty, &shipmentID,
			fmt.Sprintf("Released from cancelled shipment %d", shipmentID), userRef)
		if err != nil {
			return err
		}
	}
	return nil
}

func insertMovementTx(ctx context.Context, tx pgx.Tx, stockUnitID int, mt MovementType, qty int, shipmentID *int, note, userRef string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO stock_movements (stock_unit_id, movement_type, quantity, shipment_id, note, user_ref)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, stockUnitID, mt, qty, shipmentID, note, userRef)
	if err != nil {
		return fmt.Errorf("failed to insert %s movement: %w", mt, err)
	}
	return nil
}
