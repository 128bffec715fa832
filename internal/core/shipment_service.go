package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CreateShipmentInput carries the header fields for a new empty shipment.
type CreateShipmentInput struct {
	Destination     string          `json:"destination"`
	DestinationType DestinationType `json:"destination_type"`
	PackGroup       string          `json:"pack_group"`
	FBAShipmentID   string          `json:"fba_shipment_id"`
	Notes           string          `json:"notes"`
}

// BoxItemInput is one caller-supplied item line. Product metadata and unit
// weight are optional; anything left blank is resolved from the stock ledger.
type BoxItemInput struct {
	SKU         string          `json:"sku"`
	Qty         int             `json:"qty"`
	ProductName string          `json:"product_name"`
	ASIN        string          `json:"asin"`
	FNSKU       string          `json:"fnsku"`
	Condition   Condition       `json:"condition"`
	PrepType    PrepType        `json:"prep_type"`
	UnitWeight  decimal.Decimal `json:"unit_weight"`
}

// BoxInput is a caller-supplied box with its initial item lines.
type BoxInput struct {
	BoxNo      string          `json:"box_no"`
	BoxName    string          `json:"box_name"`
	BoxWeight  decimal.Decimal `json:"box_weight"`
	Dimensions Dimensions      `json:"dimensions"`
	Notes      string          `json:"notes"`
	Items      []BoxItemInput  `json:"items"`
}

// BoxOverrides replaces box-level metadata when duplicating a box. Item lines
// always come from the source box.
type BoxOverrides struct {
	BoxNo   string `json:"box_no"`
	BoxName string `json:"box_name"`
	Notes   string `json:"notes"`
}

// ShipmentDetailsUpdate carries optional header edits; nil fields are left
// untouched. Box contents are not editable through this path.
type ShipmentDetailsUpdate struct {
	Destination     *string          `json:"destination"`
	DestinationType *DestinationType `json:"destination_type"`
	PackGroup       *string          `json:"pack_group"`
	FBAShipmentID   *string          `json:"fba_shipment_id"`
	Carrier         *string          `json:"carrier"`
	TrackingNumber  *string          `json:"tracking_number"`
	ShippingCost    *decimal.Decimal `json:"shipping_cost"`
	Notes           *string          `json:"notes"`
}

// PackGroupInput creates a whole shipment from a SKU × box distribution matrix.
type PackGroupInput struct {
	PackGroup       string            `json:"pack_group"`
	Destination     string            `json:"destination"`
	DestinationType DestinationType   `json:"destination_type"`
	FBAShipmentID   string            `json:"fba_shipment_id"`
	Notes           string            `json:"notes"`
	Boxes           []BoxSpec         `json:"boxes"`
	Rows            []DistributionRow `json:"rows"`
}

// ShipmentService owns the shipment lifecycle. Stock only moves through the
// ledger it was constructed with, and only at two points: Finalize reserves,
// Cancel of a ready shipment releases. Everything in draft is provisional.
type ShipmentService interface {
	// Create opens an empty draft shipment and assigns it the next sequential
	// shipment code.
	Create(ctx context.Context, input CreateShipmentInput, userRef string) (*Shipment, error)

	// Get resolves a shipment by numeric ID or shipment code.
	Get(ctx context.Context, ref string) (*Shipment, error)

	// List returns shipments newest first, optionally filtered by status.
	List(ctx context.Context, status ShipmentStatus) ([]Shipment, error)

	// UpdateDetails edits header fields on any non-terminal shipment.
	UpdateDetails(ctx context.Context, ref string, update ShipmentDetailsUpdate, userRef string) (*Shipment, error)

	// AddBox appends a box to a draft shipment. Every item line is validated
	// against current availability, but nothing is reserved until Finalize.
	AddBox(ctx context.Context, ref string, box BoxInput, userRef string) (*Shipment, error)

	// AddItemToBox adds an item line to the box at boxIndex on a draft
	// shipment, merging into an existing line for the same SKU.
	AddItemToBox(ctx context.Context, ref string, boxIndex int, item BoxItemInput, userRef string) (*Shipment, error)

	// DuplicateBox deep-copies the box at boxIndex, re-validating its items
	// against current availability.
	DuplicateBox(ctx context.Context, ref string, boxIndex int, overrides BoxOverrides, userRef string) (*Shipment, error)

	// Finalize moves draft → ready, reserving stock for every item line in
	// one transaction. Per-SKU demand is aggregated across boxes before the
	// availability check; any shortfall aborts with no stock moved and the
	// shipment still in draft.
	Finalize(ctx context.Context, ref string, userRef string) (*Shipment, error)

	// MarkAsShipped moves ready → shipped, recording carrier, tracking number
	// and shipment date (defaulting to now).
	MarkAsShipped(ctx context.Context, ref string, carrier, trackingNumber string, shipmentDate *time.Time, userRef string) (*Shipment, error)

	// MarkAsDelivered moves shipped → delivered, recording the delivery date.
	MarkAsDelivered(ctx context.Context, ref string, deliveryDate *time.Time, userRef string) (*Shipment, error)

	// Cancel terminates a draft or ready shipment. Cancelling from ready
	// releases the reserved stock in the same transaction; from draft there is
	// nothing to release. Shipped and delivered shipments cannot be cancelled.
	Cancel(ctx context.Context, ref string, reason string, userRef string) (*Shipment, error)

	// Delete removes a draft shipment entirely. Any other status fails with
	// ErrIllegalTransition.
	Delete(ctx context.Context, ref string, userRef string) error

	// ProjectDistribution returns the SKU × box matrix view of a shipment.
	ProjectDistribution(ctx context.Context, ref string) (*DistributionMatrix, error)

	// CreateFromPackGroup builds a draft shipment from a distribution matrix,
	// resolving item metadata from the ledger and pre-checking each row's
	// total against current availability.
	CreateFromPackGroup(ctx context.Context, input PackGroupInput, userRef string) (*Shipment, error)

	// ApplyDistribution redistributes quantities of SKUs already on a draft
	// shipment across its boxes. Positive quantities overwrite existing lines,
	// zero removes them; a SKU absent from a box cannot be introduced here.
	ApplyDistribution(ctx context.Context, ref string, edits []DistributionEdit, userRef string) (*Shipment, error)
}

type shipmentService struct {
	pool   *pgxpool.Pool
	ledger StockLedger
}

func NewShipmentService(pool *pgxpool.Pool, ledger StockLedger) ShipmentService {
	return &shipmentService{pool: pool, ledger: ledger}
}

// ── Creation ─────────────────────────────────────────────────────────────────

func (svc *shipmentService) Create(ctx context.Context, input CreateShipmentInput, userRef string) (*Shipment, error) {
	if input.Destination == "" {
		return nil, fmt.Errorf("shipment requires a destination")
	}
	if input.DestinationType == "" {
		input.DestinationType = DestinationFBA
	}

	sh := &Shipment{
		PackGroup:       input.PackGroup,
		FBAShipmentID:   input.FBAShipmentID,
		Destination:     input.Destination,
		DestinationType: input.DestinationType,
		Status:          StatusDraft,
		Notes:           input.Notes,
	}
	sh.RecomputeTotals()

	tx, err := svc.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := svc.insertShipmentTx(ctx, tx, sh, userRef); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit shipment: %w", err)
	}
	return sh, nil
}

// nextShipmentCodeTx draws the next number from the per-year sequence row.
// The upsert holds the row lock until the surrounding transaction commits, so
// concurrent creates serialize here and codes come out gapless.
func nextShipmentCodeTx(ctx context.Context, tx pgx.Tx) (string, error) {
	year := time.Now().Year()
	var n int
	err := tx.QueryRow(ctx, `
		INSERT INTO shipment_sequences (year, last_number)
		VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET last_number = shipment_sequences.last_number + 1
		RETURNING last_number
	`, year).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("failed to allocate shipment number: %w", err)
	}
	return fmt.Sprintf("SHP%d-%04d", year, n), nil
}

func (svc *shipmentService) insertShipmentTx(ctx context.Context, tx pgx.Tx, sh *Shipment, userRef string) error {
	code, err := nextShipmentCodeTx(ctx, tx)
	if err != nil {
		return err
	}
	sh.Code = code
	sh.Version = 1
	sh.CreatedBy = userRef
	sh.UpdatedBy = userRef

	err = tx.QueryRow(ctx, `
		INSERT INTO shipments (shipment_code, pack_group, fba_shipment_id, destination, destination_type,
		                       status, total_skus, total_boxes, total_items, total_weight, shipping_cost,
		                       carrier, tracking_number, shipment_date, delivery_date, notes,
		                       version, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $18)
		RETURNING id, created_at, updated_at
	`, sh.Code, sh.PackGroup, sh.FBAShipmentID, sh.Destination, sh.DestinationType,
		sh.Status, sh.TotalSKUs, sh.TotalBoxes, sh.TotalItems, sh.TotalWeight, sh.ShippingCost,
		sh.Carrier, sh.TrackingNumber, sh.ShipmentDate, sh.DeliveryDate, sh.Notes,
		sh.Version, userRef,
	).Scan(&sh.ID, &sh.CreatedAt, &sh.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert shipment: %w", err)
	}
	return insertBoxesTx(ctx, tx, sh.ID, sh.Boxes)
}

func insertBoxesTx(ctx context.Context, tx pgx.Tx, shipmentID int, boxes []Box) error {
	for i := range boxes {
		box := &boxes[i]
		var boxID int
		err := tx.QueryRow(ctx, `
			INSERT INTO shipment_boxes (shipment_id, box_index, box_no, box_name, box_weight,
			                            length, width, height, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id
		`, shipmentID, i, box.BoxNo, box.BoxName, box.BoxWeight,
			box.Dimensions.Length, box.Dimensions.Width, box.Dimensions.Height, box.Notes,
		).Scan(&boxID)
		if err != nil {
			return fmt.Errorf("failed to insert box %d: %w", i, err)
		}
		for j := range box.Items {
			item := &box.Items[j]
			_, err := tx.Exec(ctx, `
				INSERT INTO shipment_box_items (box_id, item_index, sku, product_name, asin, fnsku,
				                                condition, prep_type, qty, unit_weight, total_weight)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			`, boxID, j, item.SKU, item.ProductName, item.ASIN, item.FNSKU,
				item.Condition, item.PrepType, item.Qty, item.UnitWeight, item.TotalWeight)
			if err != nil {
				return fmt.Errorf("failed to insert item %s into box %d: %w", item.SKU, i, err)
			}
		}
	}
	return nil
}

// ── Loading ──────────────────────────────────────────────────────────────────

const shipmentColumns = `id, shipment_code, pack_group, fba_shipment_id, destination, destination_type,
	       status, total_skus, total_boxes, total_items, total_weight, shipping_cost,
	       carrier, tracking_number, shipment_date, delivery_date, notes,
	       version, created_by, updated_by, created_at, updated_at`

func scanShipment(row pgx.Row) (*Shipment, error) {
	var sh Shipment
	err := row.Scan(
		&sh.ID, &sh.Code, &sh.PackGroup, &sh.FBAShipmentID, &sh.Destination, &sh.DestinationType,
		&sh.Status, &sh.TotalSKUs, &sh.TotalBoxes, &sh.TotalItems, &sh.TotalWeight, &sh.ShippingCost,
		&sh.Carrier, &sh.TrackingNumber, &sh.ShipmentDate, &sh.DeliveryDate, &sh.Notes,
		&sh.Version, &sh.CreatedBy, &sh.UpdatedBy, &sh.CreatedAt, &sh.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// loadShipment resolves ref as a numeric ID or a shipment code and loads the
// full aggregate. forUpdate locks the header row; callers that mutate pass a
// pgx.Tx and lock, read paths pass the pool.
func loadShipment(ctx context.Context, q querier, ref string, forUpdate bool) (*Shipment, error) {
	where := `shipment_code = $1`
	var arg any = strings.ToUpper(strings.TrimSpace(ref))
	if id, err := strconv.Atoi(ref); err == nil {
		where = `id = $1`
		arg = id
	}

	query := `SELECT ` + shipmentColumns + ` FROM shipments WHERE ` + where
	if forUpdate {
		query += ` FOR UPDATE`
	}
	sh, err := scanShipment(q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrShipmentNotFound, ref)
		}
		return nil, fmt.Errorf("failed to fetch shipment %s: %w", ref, err)
	}

	if err := loadBoxes(ctx, q, sh); err != nil {
		return nil, err
	}
	return sh, nil
}

func loadBoxes(ctx context.Context, q querier, sh *Shipment) error {
	rows, err := q.Query(ctx, `
		SELECT box_index, box_no, box_name, box_weight, length, width, height, notes
		FROM shipment_boxes WHERE shipment_id = $1 ORDER BY box_index
	`, sh.ID)
	if err != nil {
		return fmt.Errorf("failed to query boxes for shipment %d: %w", sh.ID, err)
	}
	defer rows.Close()

	sh.Boxes = nil
	for rows.Next() {
		var idx int
		var box Box
		err := rows.Scan(&idx, &box.BoxNo, &box.BoxName, &box.BoxWeight,
			&box.Dimensions.Length, &box.Dimensions.Width, &box.Dimensions.Height, &box.Notes)
		if err != nil {
			return fmt.Errorf("failed to scan box: %w", err)
		}
		sh.Boxes = append(sh.Boxes, box)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	itemRows, err := q.Query(ctx, `
		SELECT b.box_index, i.sku, i.product_name, i.asin, i.fnsku, i.condition, i.prep_type,
		       i.qty, i.unit_weight, i.total_weight
		FROM shipment_box_items i
		JOIN shipment_boxes b ON b.id = i.box_id
		WHERE b.shipment_id = $1
		ORDER BY b.box_index, i.item_index
	`, sh.ID)
	if err != nil {
		return fmt.Errorf("failed to query box items for shipment %d: %w", sh.ID, err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var boxIndex int
		var item BoxItem
		err := itemRows.Scan(&boxIndex, &item.SKU, &item.ProductName, &item.ASIN, &item.FNSKU,
			&item.Condition, &item.PrepType, &item.Qty, &item.UnitWeight, &item.TotalWeight)
		if err != nil {
			return fmt.Errorf("failed to scan box item: %w", err)
		}
		if boxIndex < 0 || boxIndex >= len(sh.Boxes) {
			return fmt.Errorf("shipment %d has item for missing box index %d", sh.ID, boxIndex)
		}
		sh.Boxes[boxIndex].Items = append(sh.Boxes[boxIndex].Items, item)
	}
	return itemRows.Err()
}

// ── Storing ──────────────────────────────────────────────────────────────────

// storeAggregateTx writes the whole aggregate back: the header under the
// version guard, then boxes and items rewritten wholesale. Zero rows on the
// header update means another writer got there first.
func storeAggregateTx(ctx context.Context, tx pgx.Tx, sh *Shipment, userRef string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE shipments
		SET pack_group = $1, fba_shipment_id = $2, destination = $3, destination_type = $4,
		    status = $5, total_skus = $6, total_boxes = $7, total_items = $8,
		    total_weight = $9, shipping_cost = $10, carrier = $11, tracking_number = $12,
		    shipment_date = $13, delivery_date = $14, notes = $15,
		    version = version + 1, updated_by = $16, updated_at = NOW()
		WHERE id = $17 AND version = $18
	`, sh.PackGroup, sh.FBAShipmentID, sh.Destination, sh.DestinationType,
		sh.Status, sh.TotalSKUs, sh.TotalBoxes, sh.TotalItems,
		sh.TotalWeight, sh.ShippingCost, sh.Carrier, sh.TrackingNumber,
		sh.ShipmentDate, sh.DeliveryDate, sh.Notes,
		userRef, sh.ID, sh.Version)
	if err != nil {
		return fmt.Errorf("failed to update shipment %d: %w", sh.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: shipment %d version %d", ErrStaleShipment, sh.ID, sh.Version)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM shipment_boxes WHERE shipment_id = $1`, sh.ID); err != nil {
		return fmt.Errorf("failed to clear boxes for shipment %d: %w", sh.ID, err)
	}
	if err := insertBoxesTx(ctx, tx, sh.ID, sh.Boxes); err != nil {
		return err
	}
	sh.Version++
	sh.UpdatedBy = userRef
	return nil
}

// mutate runs fn against the locked aggregate and stores the result. All
// write paths funnel through here so totals are always recomputed before the
// versioned store.
func (svc *shipmentService) mutate(ctx context.Context, ref, userRef string, fn func(tx pgx.Tx, sh *Shipment) error) (*Shipment, error) {
	tx, err := svc.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sh, err := loadShipment(ctx, tx, ref, true)
	if err != nil {
		return nil, err
	}
	if err := fn(tx, sh); err != nil {
		return nil, err
	}
	sh.RecomputeTotals()
	if err := storeAggregateTx(ctx, tx, sh, userRef); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit shipment update: %w", err)
	}
	return sh, nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (svc *shipmentService) Get(ctx context.Context, ref string) (*Shipment, error) {
	return loadShipment(ctx, svc.pool, ref, false)
}

func (svc *shipmentService) List(ctx context.Context, status ShipmentStatus) ([]Shipment, error) {
	query := `SELECT ` + shipmentColumns + ` FROM shipments ORDER BY id DESC`
	args := []any{}
	if status != "" {
		if !ValidStatus(status) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
		}
		query = `SELECT ` + shipmentColumns + ` FROM shipments WHERE status = $1 ORDER BY id DESC`
		args = append(args, status)
	}

	rows, err := svc.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shipments: %w", err)
	}
	defer rows.Close()

	var shipments []Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shipment: %w", err)
		}
		shipments = append(shipments, *sh)
	}
	return shipments, rows.Err()
}

func (svc *shipmentService) ProjectDistribution(ctx context.Context, ref string) (*DistributionMatrix, error) {
	sh, err := svc.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	matrix := ProjectToMatrix(sh)
	return &matrix, nil
}

// ── Box editing (draft only) ─────────────────────────────────────────────────

// resolveItem fills the blanks of a caller-supplied item line from the stock
// ledger and pre-checks availability. Caller-supplied metadata wins over the
// catalog. The check is advisory only: stock is reserved at Finalize, and
// availability is re-checked there against aggregated demand.
func (svc *shipmentService) resolveItem(ctx context.Context, input BoxItemInput) (BoxItem, error) {
	if input.Qty <= 0 {
		return BoxItem{}, fmt.Errorf("%w: SKU %s quantity %d", ErrNegativeQuantity, input.SKU, input.Qty)
	}
	unit, err := svc.ledger.Lookup(ctx, input.SKU)
	if err != nil {
		return BoxItem{}, err
	}
	if unit.AvailableQty < input.Qty {
		return BoxItem{}, fmt.Errorf("%w for SKU %s: available %d, required %d",
			ErrInsufficientStock, unit.SKU, unit.AvailableQty, input.Qty)
	}

	item := BoxItem{
		SKU:         unit.SKU,
		ProductName: input.ProductName,
		ASIN:        input.ASIN,
		FNSKU:       input.FNSKU,
		Condition:   input.Condition,
		PrepType:    input.PrepType,
		Qty:         input.Qty,
		UnitWeight:  input.UnitWeight,
	}
	if item.ProductName == "" {
		item.ProductName = unit.Name
	}
	if item.ASIN == "" {
		item.ASIN = unit.ASIN
	}
	if item.FNSKU == "" {
		item.FNSKU = unit.FNSKU
	}
	if item.Condition == "" {
		item.Condition = unit.Condition
	}
	if item.PrepType == "" {
		item.PrepType = unit.PrepType
	}
	if item.UnitWeight.IsZero() {
		item.UnitWeight = unit.UnitWeight
	}
	item.TotalWeight = item.UnitWeight.Mul(decimal.NewFromInt(int64(item.Qty)))
	return item, nil
}

func requireStatus(sh *Shipment, want ShipmentStatus, op string) error {
	if sh.Status != want {
		return fmt.Errorf("%w: cannot %s shipment %s in status %s", ErrIllegalTransition, op, sh.Code, sh.Status)
	}
	return nil
}

func (svc *shipmentService) AddBox(ctx context.Context, ref string, input BoxInput, userRef string) (*Shipment, error) {
	return svc.mutate(ctx, ref, userRef, func(tx pgx.Tx, sh *Shipment) error {
		if err := requireStatus(sh, StatusDraft, "add a box to"); err != nil {
			return err
		}
		box := Box{
			BoxNo:      input.BoxNo,
			BoxName:    input.BoxName,
			BoxWeight:  input.BoxWeight,
			Dimensions: input.Dimensions,
			Notes:      input.Notes,
		}
		if box.BoxNo == "" {
			box.BoxNo = fmt.Sprintf("BOX%d", len(sh.Boxes)+1)
		}
		for _, line := range input.Items {
			item, err := svc.resolveItem(ctx, line)
			if err != nil {
				return err
			}
			box.MergeItem(item)
		}
		sh.Boxes = append(sh.Boxes, box)
		return nil
	})
}

func (svc *shipmentService) AddItemToBox(ctx context.Context, ref string, boxIndex int, input BoxItemInput, userRef string) (*Shipment, error) {
	return svc.mutate(ctx, ref, userRef, func(tx pgx.Tx, sh *Shipment) error {
		if err := requireStatus(sh, StatusDraft, "edit boxes of"); err != nil {
			return err
		}
		if boxIndex < 0 || boxIndex >= len(sh.Boxes) {
			return fmt.Errorf("%w: box %d of %d", ErrInvalidBoxIndex, boxIndex, len(sh.Boxes))
		}
		item, err := svc.resolveItem(ctx, input)
		if err != nil {
			return err
		}
		sh.Boxes[boxIndex].MergeItem(item)
		return nil
	})
}

func (svc *shipmentService) DuplicateBox(ctx context.Context, ref string, boxIndex int, overrides BoxOverrides, userRef string) (*Shipment, error) {
	return svc.mutate(ctx, ref, userRef, func(tx pgx.Tx, sh *Shipment) error {
		if err := requireStatus(sh, StatusDraft, "duplicate a box of"); err != nil {
			return err
		}
		if boxIndex < 0 || boxIndex >= len(sh.Boxes) {
			return fmt.Errorf("%w: box %d of %d", ErrInvalidBoxIndex, boxIndex, len(sh.Boxes))
		}

		source := &sh.Boxes[boxIndex]

		// Availability moves between the original box's creation and now;
		// the copy is validated against current stock.
		for _, item := range source.Items {
			unit, err := svc.ledger.Lookup(ctx, item.SKU)
			if err != nil {
				return err
			}
			if unit.AvailableQty < item.Qty {
				return fmt.Errorf("%w for SKU %s: available %d, required %d",
					ErrInsufficientStock, unit.SKU, unit.AvailableQty, item.Qty)
			}
		}

		dup := Box{
			BoxNo:      overrides.BoxNo,
			BoxName:    overrides.BoxName,
			BoxWeight:  source.BoxWeight,
			Dimensions: source.Dimensions,
			Notes:      overrides.Notes,
			Items:      make([]BoxItem, len(source.Items)),
		}
		copy(dup.Items, source.Items)
		if dup.BoxNo == "" {
			dup.BoxNo = fmt.Sprintf("BOX%d", len(sh.Boxes)+1)
		}
		if dup.BoxName == "" {
			dup.BoxName = source.BoxName
		}
		if dup.Notes == "" {
			dup.Notes = source.Notes
		}
		sh.Boxes = append(sh.Boxes, dup)
		return nil
	})
}

func (svc *shipmentService) ApplyDistribution(ctx context.Context, ref string, edits []DistributionEdit, userRef string) (*Shipment, error) {
	return svc.mutate(ctx, ref, userRef, func(tx pgx.Tx, sh *Shipment) error {
		if err := requireStatus(sh, StatusDraft, "redistribute"); err != nil {
			return err
		}
		return ApplyMatrixEdit(sh, edits)
	})
}

// ── Lifecycle transitions ────────────────────────────────────────────────────

func (svc *shipmentService) Finalize(ctx context.Context, ref string, userRef string) (*Shipment, error) {
	return svc.mutate(ctx, ref, userRef, func(tx pgx.Tx, sh *Shipment) error {
		if !sh.Status.CanTransitionTo(StatusReady) {
			return fmt.Errorf("%w: cannot finalize shipment %s in status %s", ErrIllegalTransition, sh.Code, sh.Status)
		}
		lines := sh.ReservationLines()
		if len(sh.Boxes) == 0 || len(lines) == 0 {
			return fmt.Errorf("%w: shipment %s has no packed items", ErrEmptyShipment, sh.Code)
		}
		if err := svc.ledger.ReserveForShipmentTx(ctx, tx, sh.ID, lines, userRef); err != nil {
			return err
		}
		sh.Status = StatusReady
		return nil
	})
}

func (svc *shipmentService) MarkAsShipped(ctx context.Context, ref string, carrier, trackingNumber string, shipmentDate *time.Time, userRef string) (*Shipment, error) {
	return svc.mutate(ctx, ref, userRef, func(tx pgx.Tx, sh *Shipment) error {
		if !sh.Status.CanTransitionTo(StatusShipped) {
			return fmt.Errorf("%w: cannot ship shipment %s in status %s", ErrIllegalTransition, sh.Code, sh.Status)
		}
		if carrier != "" {
			sh.Carrier = carrier
		}
		if trackingNumber != "" {
			sh.TrackingNumber = trackingNumber
		}
		when := time.Now()
		if shipmentDate != nil {
			when = *shipmentDate
		}
		sh.ShipmentDate = &when
		sh.Status = StatusShipped
		return nil
	})
}

func (svc *shipmentService) MarkAsDelivered(ctx context.Context, ref string, deliveryDate *time.Time, userRef string) (*Shipment, error) {
	return svc.mutate(ctx, ref, userRef, func(tx pgx.Tx, sh *Shipment) error {
		if !sh.Status.CanTransitionTo(StatusDelivered) {
			return fmt.Errorf("%w: cannot deliver shipment %s in status %s", ErrIllegalTransition, sh.Code, sh.Status)
		}
		when := time.Now()
		if deliveryDate != nil {
			when = *deliveryDate
		}
		sh.DeliveryDate = &when
		sh.Status = StatusDelivered
		return nil
	})
}

func (svc *shipmentService) Cancel(ctx context.Context, ref string, reason string, userRef string) (*Shipment, error) {
	return svc.mutate(ctx, ref, userRef, func(tx pgx.Tx, sh *Shipment) error {
		if !sh.Status.CanTransitionTo(StatusCancelled) {
			return fmt.Errorf("%w: cannot cancel shipment %s in status %s", ErrIllegalTransition, sh.Code, sh.Status)
		}
		// Only ready shipments hold reserved stock; a draft never touched
		// the ledger.
		if sh.Status == StatusReady {
			if err := svc.ledger.ReleaseForShipmentTx(ctx, tx, sh.ID, sh.ReservationLines(), userRef); err != nil {
				return err
			}
		}
		if reason != "" {
			if sh.Notes != "" {
				sh.Notes += "\n"
			}
			sh.Notes += "Cancelled: " + reason
		}
		sh.Status = StatusCancelled
		return nil
	})
}

func (svc *shipmentService) Delete(ctx context.Context, ref string, userRef string) error {
	tx, err := svc.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sh, err := loadShipment(ctx, tx, ref, true)
	if err != nil {
		return err
	}
	if err := requireStatus(sh, StatusDraft, "delete"); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM shipments WHERE id = $1`, sh.ID); err != nil {
		return fmt.Errorf("failed to delete shipment %d: %w", sh.ID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit shipment deletion: %w", err)
	}
	return nil
}

// ── Details and pack groups ──────────────────────────────────────────────────

func (svc *shipmentService) UpdateDetails(ctx context.Context, ref string, update ShipmentDetailsUpdate, userRef string) (*Shipment, error) {
	return svc.mutate(ctx, ref, userRef, func(tx pgx.Tx, sh *Shipment) error {
		if sh.Status.IsTerminal() {
			return fmt.Errorf("%w: cannot edit shipment %s in status %s", ErrIllegalTransition, sh.Code, sh.Status)
		}
		if update.Destination != nil {
			sh.Destination = *update.Destination
		}
		if update.DestinationType != nil {
			sh.DestinationType = *update.DestinationType
		}
		if update.PackGroup != nil {
			sh.PackGroup = *update.PackGroup
		}
		if update.FBAShipmentID != nil {
			sh.FBAShipmentID = *update.FBAShipmentID
		}
		if update.Carrier != nil {
			sh.Carrier = *update.Carrier
		}
		if update.TrackingNumber != nil {
			sh.TrackingNumber = *update.TrackingNumber
		}
		if update.ShippingCost != nil {
			sh.ShippingCost = *update.ShippingCost
		}
		if update.Notes != nil {
			sh.Notes = *update.Notes
		}
		return nil
	})
}

func (svc *shipmentService) CreateFromPackGroup(ctx context.Context, input PackGroupInput, userRef string) (*Shipment, error) {
	if input.Destination == "" {
		return nil, fmt.Errorf("pack group shipment requires a destination")
	}
	if input.DestinationType == "" {
		input.DestinationType = DestinationFBA
	}
	if len(input.Boxes) == 0 {
		return nil, fmt.Errorf("%w: pack group %q has no boxes", ErrEmptyShipment, input.PackGroup)
	}

	catalog := make(map[string]*StockUnit, len(input.Rows))
	for _, row := range input.Rows {
		key := NormalizeSKU(row.SKU)
		if _, ok := catalog[key]; ok {
			continue
		}
		unit, err := svc.ledger.Lookup(ctx, key)
		if err != nil {
			return nil, err
		}
		total := 0
		for _, qty := range row.BoxQuantities {
			total += qty
		}
		if unit.AvailableQty < total {
			return nil, fmt.Errorf("%w for SKU %s: available %d, required %d",
				ErrInsufficientStock, unit.SKU, unit.AvailableQty, total)
		}
		catalog[key] = unit
	}

	boxes, err := BuildFromMatrix(input.Boxes, input.Rows, catalog)
	if err != nil {
		return nil, err
	}

	sh := &Shipment{
		PackGroup:       input.PackGroup,
		FBAShipmentID:   input.FBAShipmentID,
		Destination:     input.Destination,
		DestinationType: input.DestinationType,
		Status:          StatusDraft,
		Boxes:           boxes,
		Notes:           input.Notes,
	}
	sh.RecomputeTotals()

	tx, err := svc.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := svc.insertShipmentTx(ctx, tx, sh, userRef); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit shipment: %w", err)
	}
	return sh, nil
}
