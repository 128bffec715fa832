package core_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"fba-warehouse/internal/core"
)

func newServices(t *testing.T) (core.StockLedger, core.ShipmentService, func()) {
	pool := setupTestDB(t)
	ledger := core.NewStockLedger(pool)
	shipments := core.NewShipmentService(pool, ledger)
	return ledger, shipments, pool.Close
}

func createDraft(t *testing.T, shipments core.ShipmentService) *core.Shipment {
	t.Helper()
	sh, err := shipments.Create(context.Background(), core.CreateShipmentInput{
		Destination: "FBA Warehouse LTN4",
	}, "tester")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return sh
}

func refOf(sh *core.Shipment) string { return strconv.Itoa(sh.ID) }

// Walks the core consistency scenario: box pre-checks never move stock, the
// finalize check runs against demand aggregated across boxes, and a failed
// finalize leaves both the shipment and the ledger untouched.
func TestShipment_FinalizeAggregatesAcrossBoxes(t *testing.T) {
	ledger, shipments, closePool := newServices(t)
	defer closePool()
	ctx := context.Background()

	unit := seedUnit(t, ledger, 10)
	sh := createDraft(t, shipments)

	if sh.Status != core.StatusDraft {
		t.Fatalf("new shipment status = %s, want draft", sh.Status)
	}
	if !strings.HasPrefix(sh.Code, "SHP") {
		t.Fatalf("shipment code = %q", sh.Code)
	}

	sh, err := shipments.AddBox(ctx, refOf(sh), core.BoxInput{
		Items: []core.BoxItemInput{{SKU: unit.SKU, Qty: 5}},
	}, "tester")
	if err != nil {
		t.Fatalf("AddBox 1: %v", err)
	}

	// The pre-check passed but reserved nothing.
	if got, _ := ledger.Lookup(ctx, unit.SKU); got.AvailableQty != 10 {
		t.Fatalf("AddBox moved stock: available = %d", got.AvailableQty)
	}

	// A second box of 8 also passes per-line against the untouched 10.
	sh, err = shipments.AddBox(ctx, refOf(sh), core.BoxInput{
		Items: []core.BoxItemInput{{SKU: unit.SKU, Qty: 8}},
	}, "tester")
	if err != nil {
		t.Fatalf("AddBox 2: %v", err)
	}
	if sh.TotalItems != 13 || sh.TotalBoxes != 2 || sh.TotalSKUs != 1 {
		t.Fatalf("totals = %d items / %d boxes / %d skus", sh.TotalItems, sh.TotalBoxes, sh.TotalSKUs)
	}

	// Combined demand 13 > 10: finalize must fail with nothing changed.
	_, err = shipments.Finalize(ctx, refOf(sh), "tester")
	if !errors.Is(err, core.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	reloaded, err := shipments.Get(ctx, refOf(sh))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if reloaded.Status != core.StatusDraft {
		t.Errorf("failed finalize changed status to %s", reloaded.Status)
	}
	if got, _ := ledger.Lookup(ctx, unit.SKU); got.AvailableQty != 10 {
		t.Errorf("failed finalize moved stock: available = %d", got.AvailableQty)
	}

	// Redistribute to 5 + 5 and finalize for real.
	_, err = shipments.ApplyDistribution(ctx, refOf(sh), []core.DistributionEdit{
		{SKU: unit.SKU, BoxQuantities: []int{5, 5}},
	}, "tester")
	if err != nil {
		t.Fatalf("ApplyDistribution: %v", err)
	}

	sh, err = shipments.Finalize(ctx, refOf(sh), "tester")
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if sh.Status != core.StatusReady {
		t.Errorf("status = %s, want ready", sh.Status)
	}
	if got, _ := ledger.Lookup(ctx, unit.SKU); got.AvailableQty != 0 {
		t.Errorf("available after finalize = %d, want 0", got.AvailableQty)
	}

	// Cancelling a ready shipment restores every reserved unit.
	sh, err = shipments.Cancel(ctx, refOf(sh), "changed plans", "tester")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if sh.Status != core.StatusCancelled {
		t.Errorf("status = %s, want cancelled", sh.Status)
	}
	if got, _ := ledger.Lookup(ctx, unit.SKU); got.AvailableQty != 10 {
		t.Errorf("available after cancel = %d, want 10", got.AvailableQty)
	}

	movements, err := ledger.Movements(ctx, unit.SKU)
	if err != nil {
		t.Fatalf("Movements: %v", err)
	}
	if movements[0].Type != core.MovementRelease || movements[0].Quantity != 10 {
		t.Errorf("newest movement = %+v, want RELEASE +10", movements[0])
	}
	if movements[1].Type != core.MovementReservation || movements[1].Quantity != -10 {
		t.Errorf("movement = %+v, want RESERVATION -10", movements[1])
	}
}

func TestShipment_AddBoxPreCheckRejectsOversell(t *testing.T) {
	ledger, shipments, closePool := newServices(t)
	defer closePool()
	ctx := context.Background()

	unit := seedUnit(t, ledger, 10)
	sh := createDraft(t, shipments)

	_, err := shipments.AddBox(ctx, refOf(sh), core.BoxInput{
		Items: []core.BoxItemInput{{SKU: unit.SKU, Qty: 11}},
	}, "tester")
	if !errors.Is(err, core.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// The rejected box left the shipment completely untouched.
	reloaded, err := shipments.Get(ctx, refOf(sh))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(reloaded.Boxes) != 0 || reloaded.TotalItems != 0 || reloaded.TotalBoxes != 0 {
		t.Errorf("failed AddBox mutated shipment: %d boxes, %d items",
			len(reloaded.Boxes), reloaded.TotalItems)
	}
	if reloaded.Version != sh.Version {
		t.Errorf("failed AddBox bumped version: %d -> %d", sh.Version, reloaded.Version)
	}

	_, err = shipments.AddBox(ctx, refOf(sh), core.BoxInput{
		Items: []core.BoxItemInput{{SKU: "GHOST-SKU", Qty: 1}},
	}, "tester")
	if !errors.Is(err, core.ErrUnknownSKU) {
		t.Fatalf("expected ErrUnknownSKU, got %v", err)
	}
}

func TestShipment_AddItemMergesAndResolvesMetadata(t *testing.T) {
	ledger, shipments, closePool := newServices(t)
	defer closePool()
	ctx := context.Background()

	unit := seedUnit(t, ledger, 10)
	sh := createDraft(t, shipments)

	sh, err := shipments.AddBox(ctx, refOf(sh), core.BoxInput{
		Items: []core.BoxItemInput{{SKU: unit.SKU, Qty: 2}},
	}, "tester")
	if err != nil {
		t.Fatalf("AddBox: %v", err)
	}

	sh, err = shipments.AddItemToBox(ctx, refOf(sh), 0, core.BoxItemInput{SKU: unit.SKU, Qty: 3}, "tester")
	if err != nil {
		t.Fatalf("AddItemToBox: %v", err)
	}

	if len(sh.Boxes[0].Items) != 1 {
		t.Fatalf("same-SKU item not merged: %d lines", len(sh.Boxes[0].Items))
	}
	item := sh.Boxes[0].Items[0]
	if item.Qty != 5 {
		t.Errorf("merged qty = %d, want 5", item.Qty)
	}
	// Name and weight came from the ledger, not the caller.
	if item.ProductName != unit.Name {
		t.Errorf("product name not resolved: %q", item.ProductName)
	}
	if !item.UnitWeight.Equal(unit.UnitWeight) {
		t.Errorf("unit weight not resolved: %s", item.UnitWeight)
	}

	_, err = shipments.AddItemToBox(ctx, refOf(sh), 7, core.BoxItemInput{SKU: unit.SKU, Qty: 1}, "tester")
	if !errors.Is(err, core.ErrInvalidBoxIndex) {
		t.Fatalf("expected ErrInvalidBoxIndex, got %v", err)
	}
}

func TestShipment_DuplicateBoxRevalidatesAvailability(t *testing.T) {
	ledger, shipments, closePool := newServices(t)
	defer closePool()
	ctx := context.Background()

	unit := seedUnit(t, ledger, 10)
	sh := createDraft(t, shipments)

	sh, err := shipments.AddBox(ctx, refOf(sh), core.BoxInput{
		BoxName: "Original",
		Items:   []core.BoxItemInput{{SKU: unit.SKU, Qty: 3}},
	}, "tester")
	if err != nil {
		t.Fatalf("AddBox: %v", err)
	}

	sh, err = shipments.DuplicateBox(ctx, refOf(sh), 0, core.BoxOverrides{}, "tester")
	if err != nil {
		t.Fatalf("DuplicateBox: %v", err)
	}
	if len(sh.Boxes) != 2 || sh.Boxes[1].Items[0].Qty != 3 {
		t.Fatalf("duplicate not appended correctly: %d boxes", len(sh.Boxes))
	}
	if sh.Boxes[1].BoxName != "Original" {
		t.Errorf("box name not inherited: %q", sh.Boxes[1].BoxName)
	}

	// Stock dropped since the original box was packed; the next copy must
	// fail against today's availability.
	if _, err := ledger.SetStock(ctx, unit.SKU, 2, -1, "tester"); err != nil {
		t.Fatalf("SetStock: %v", err)
	}
	_, err = shipments.DuplicateBox(ctx, refOf(sh), 0, core.BoxOverrides{}, "tester")
	if !errors.Is(err, core.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
}

func TestShipment_FinalizeEmpty(t *testing.T) {
	_, shipments, closePool := newServices(t)
	defer closePool()

	sh := createDraft(t, shipments)
	_, err := shipments.Finalize(context.Background(), refOf(sh), "tester")
	if !errors.Is(err, core.ErrEmptyShipment) {
		t.Fatalf("expected ErrEmptyShipment, got %v", err)
	}
}

func TestShipment_LifecycleToDelivered(t *testing.T) {
	ledger, shipments, closePool := newServices(t)
	defer closePool()
	ctx := context.Background()

	unit := seedUnit(t, ledger, 10)
	sh := createDraft(t, shipments)

	sh, err := shipments.AddBox(ctx, refOf(sh), core.BoxInput{
		Items: []core.BoxItemInput{{SKU: unit.SKU, Qty: 4}},
	}, "tester")
	if err != nil {
		t.Fatalf("AddBox: %v", err)
	}
	if _, err := shipments.Finalize(ctx, refOf(sh), "tester"); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	// Box edits are locked once out of draft.
	_, err = shipments.AddBox(ctx, refOf(sh), core.BoxInput{
		Items: []core.BoxItemInput{{SKU: unit.SKU, Qty: 1}},
	}, "tester")
	if !errors.Is(err, core.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition for AddBox on ready, got %v", err)
	}

	sh, err = shipments.MarkAsShipped(ctx, refOf(sh), "UPS", "1Z999", nil, "tester")
	if err != nil {
		t.Fatalf("MarkAsShipped: %v", err)
	}
	if sh.Status != core.StatusShipped || sh.ShipmentDate == nil {
		t.Fatalf("shipped state wrong: %s, date %v", sh.Status, sh.ShipmentDate)
	}
	if sh.Carrier != "UPS" || sh.TrackingNumber != "1Z999" {
		t.Errorf("carrier/tracking = %q/%q", sh.Carrier, sh.TrackingNumber)
	}

	// Shipped stock is gone; cancel can no longer restore it.
	_, err = shipments.Cancel(ctx, refOf(sh), "", "tester")
	if !errors.Is(err, core.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition cancelling shipped, got %v", err)
	}

	sh, err = shipments.MarkAsDelivered(ctx, refOf(sh), nil, "tester")
	if err != nil {
		t.Fatalf("MarkAsDelivered: %v", err)
	}
	if sh.Status != core.StatusDelivered || sh.DeliveryDate == nil {
		t.Fatalf("delivered state wrong: %s", sh.Status)
	}

	dest := "elsewhere"
	_, err = shipments.UpdateDetails(ctx, refOf(sh), core.ShipmentDetailsUpdate{Destination: &dest}, "tester")
	if !errors.Is(err, core.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition editing delivered, got %v", err)
	}

	if got, _ := ledger.Lookup(ctx, unit.SKU); got.AvailableQty != 6 {
		t.Errorf("available = %d, want 6 after shipping 4", got.AvailableQty)
	}
}

func TestShipment_SequentialCodes(t *testing.T) {
	_, shipments, closePool := newServices(t)
	defer closePool()

	first := createDraft(t, shipments)
	second := createDraft(t, shipments)

	suffix := func(code string) int {
		parts := strings.Split(code, "-")
		n, err := strconv.Atoi(parts[len(parts)-1])
		if err != nil {
			t.Fatalf("unparseable code %q", code)
		}
		return n
	}
	if suffix(second.Code) != suffix(first.Code)+1 {
		t.Errorf("codes not consecutive: %s then %s", first.Code, second.Code)
	}

	// Codes resolve as refs just like IDs.
	got, err := shipments.Get(context.Background(), first.Code)
	if err != nil {
		t.Fatalf("Get by code: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("Get by code returned shipment %d, want %d", got.ID, first.ID)
	}
}

func TestShipment_DeleteDraftOnly(t *testing.T) {
	ledger, shipments, closePool := newServices(t)
	defer closePool()
	ctx := context.Background()

	sh := createDraft(t, shipments)
	if err := shipments.Delete(ctx, refOf(sh), "tester"); err != nil {
		t.Fatalf("Delete draft: %v", err)
	}
	if _, err := shipments.Get(ctx, refOf(sh)); !errors.Is(err, core.ErrShipmentNotFound) {
		t.Fatalf("expected ErrShipmentNotFound after delete, got %v", err)
	}

	unit := seedUnit(t, ledger, 5)
	ready := createDraft(t, shipments)
	if _, err := shipments.AddBox(ctx, refOf(ready), core.BoxInput{
		Items: []core.BoxItemInput{{SKU: unit.SKU, Qty: 2}},
	}, "tester"); err != nil {
		t.Fatalf("AddBox: %v", err)
	}
	if _, err := shipments.Finalize(ctx, refOf(ready), "tester"); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := shipments.Delete(ctx, refOf(ready), "tester"); !errors.Is(err, core.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition deleting ready shipment, got %v", err)
	}
}

func TestShipment_CreateFromPackGroup(t *testing.T) {
	ledger, shipments, closePool := newServices(t)
	defer closePool()
	ctx := context.Background()

	a := seedUnit(t, ledger, 10)
	b := seedUnit(t, ledger, 10)

	sh, err := shipments.CreateFromPackGroup(ctx, core.PackGroupInput{
		PackGroup:   "PG-7",
		Destination: "FBA Warehouse BHX1",
		Boxes:       []core.BoxSpec{{BoxNo: "B1"}, {BoxNo: "B2"}},
		Rows: []core.DistributionRow{
			{SKU: a.SKU, BoxQuantities: []int{2, 3}},
			{SKU: b.SKU, BoxQuantities: []int{4, 0}},
		},
	}, "tester")
	if err != nil {
		t.Fatalf("CreateFromPackGroup: %v", err)
	}
	if sh.Status != core.StatusDraft {
		t.Errorf("status = %s, want draft", sh.Status)
	}
	if sh.TotalBoxes != 2 || sh.TotalItems != 9 || sh.TotalSKUs != 2 {
		t.Errorf("totals = %d boxes / %d items / %d skus", sh.TotalBoxes, sh.TotalItems, sh.TotalSKUs)
	}
	// Metadata was resolved from the ledger for every derived line.
	if sh.Boxes[0].Items[0].ProductName == "" {
		t.Error("pack group line missing resolved product name")
	}

	matrix, err := shipments.ProjectDistribution(ctx, refOf(sh))
	if err != nil {
		t.Fatalf("ProjectDistribution: %v", err)
	}
	if len(matrix.Rows) != 2 || len(matrix.Boxes) != 2 {
		t.Fatalf("matrix shape %dx%d", len(matrix.Rows), len(matrix.Boxes))
	}

	// A row whose total exceeds availability is rejected up front.
	_, err = shipments.CreateFromPackGroup(ctx, core.PackGroupInput{
		Destination: "FBA Warehouse BHX1",
		Boxes:       []core.BoxSpec{{BoxNo: "B1"}},
		Rows:        []core.DistributionRow{{SKU: a.SKU, BoxQuantities: []int{11}}},
	}, "tester")
	if !errors.Is(err, core.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
}
