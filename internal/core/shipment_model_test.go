package core_test

import (
	"context"
	"errors"
	"testing"

	"fba-warehouse/internal/core"

	"github.com/shopspring/decimal"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to core.ShipmentStatus
		allowed  bool
	}{
		{core.StatusDraft, core.StatusReady, true},
		{core.StatusDraft, core.StatusCancelled, true},
		{core.StatusDraft, core.StatusShipped, false},
		{core.StatusDraft, core.StatusDelivered, false},
		{core.StatusReady, core.StatusShipped, true},
		{core.StatusReady, core.StatusCancelled, true},
		{core.StatusReady, core.StatusDelivered, false},
		{core.StatusShipped, core.StatusDelivered, true},
		{core.StatusShipped, core.StatusCancelled, false},
		{core.StatusDelivered, core.StatusCancelled, false},
		{core.StatusCancelled, core.StatusDraft, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}

	if core.StatusDraft.IsTerminal() || core.StatusReady.IsTerminal() || core.StatusShipped.IsTerminal() {
		t.Error("draft/ready/shipped must not be terminal")
	}
	if !core.StatusDelivered.IsTerminal() || !core.StatusCancelled.IsTerminal() {
		t.Error("delivered and cancelled must be terminal")
	}
}

func TestBoxMergeItem(t *testing.T) {
	box := core.Box{BoxNo: "BOX1"}
	weight := decimal.RequireFromString("0.5")

	box.MergeItem(core.BoxItem{SKU: "widget-a", Qty: 3, UnitWeight: weight})
	box.MergeItem(core.BoxItem{SKU: "WIDGET-A", Qty: 2, UnitWeight: weight})
	box.MergeItem(core.BoxItem{SKU: "WIDGET-B", Qty: 1, UnitWeight: weight})

	if len(box.Items) != 2 {
		t.Fatalf("expected 2 item lines, got %d", len(box.Items))
	}
	if box.Items[0].SKU != "WIDGET-A" {
		t.Errorf("SKU not normalized: %s", box.Items[0].SKU)
	}
	if box.Items[0].Qty != 5 {
		t.Errorf("merged qty = %d, want 5", box.Items[0].Qty)
	}
	if want := decimal.RequireFromString("2.5"); !box.Items[0].TotalWeight.Equal(want) {
		t.Errorf("merged total weight = %s, want %s", box.Items[0].TotalWeight, want)
	}
}

func TestRecomputeTotals(t *testing.T) {
	w := decimal.RequireFromString("0.25")
	sh := &core.Shipment{
		Boxes: []core.Box{
			{
				BoxNo: "BOX1",
				Items: []core.BoxItem{
					{SKU: "SKU-A", Qty: 4, UnitWeight: w},
					{SKU: "SKU-B", Qty: 6, UnitWeight: w},
				},
			},
			{
				BoxNo:     "BOX2",
				BoxWeight: decimal.RequireFromString("9.99"),
				Items: []core.BoxItem{
					{SKU: "sku-a", Qty: 10, UnitWeight: w},
				},
			},
		},
	}

	// Stale cached values must be overwritten, not accumulated.
	sh.TotalItems = 999
	sh.TotalWeight = decimal.RequireFromString("123.45")

	sh.RecomputeTotals()

	if sh.TotalBoxes != 2 {
		t.Errorf("TotalBoxes = %d, want 2", sh.TotalBoxes)
	}
	if sh.TotalItems != 20 {
		t.Errorf("TotalItems = %d, want 20", sh.TotalItems)
	}
	if sh.TotalSKUs != 2 {
		t.Errorf("TotalSKUs = %d, want 2 (SKU-A appears in both boxes)", sh.TotalSKUs)
	}
	// Box 1 has no explicit weight so it derives 2.5 from items; box 2 keeps 9.99.
	if want := decimal.RequireFromString("12.49"); !sh.TotalWeight.Equal(want) {
		t.Errorf("TotalWeight = %s, want %s", sh.TotalWeight, want)
	}

	before := *sh
	sh.RecomputeTotals()
	if sh.TotalItems != before.TotalItems || sh.TotalSKUs != before.TotalSKUs || !sh.TotalWeight.Equal(before.TotalWeight) {
		t.Error("RecomputeTotals is not idempotent")
	}
}

func TestReservationLinesAggregatePerSKU(t *testing.T) {
	sh := &core.Shipment{
		Boxes: []core.Box{
			{Items: []core.BoxItem{{SKU: "SKU-X", Qty: 5}, {SKU: "SKU-Y", Qty: 2}}},
			{Items: []core.BoxItem{{SKU: "sku-x", Qty: 8}}},
		},
	}

	lines := sh.ReservationLines()
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	// Sorted by SKU, quantities summed across boxes.
	if lines[0].SKU != "SKU-X" || lines[0].Qty != 13 {
		t.Errorf("line 0 = %+v, want SKU-X qty 13", lines[0])
	}
	if lines[1].SKU != "SKU-Y" || lines[1].Qty != 2 {
		t.Errorf("line 1 = %+v, want SKU-Y qty 2", lines[1])
	}
}

func TestNormalizeSKU(t *testing.T) {
	if got := core.NormalizeSKU("  widget-a "); got != "WIDGET-A" {
		t.Errorf("NormalizeSKU = %q", got)
	}
}

func TestStockUnitDerivedCounters(t *testing.T) {
	unit := &core.StockUnit{AvailableQty: 8, FaultyQty: 3, LowStockThreshold: 10}
	if got := unit.TotalQty(); got != 11 {
		t.Errorf("TotalQty = %d, want 11", got)
	}
	if !unit.IsLowStock() {
		t.Error("8 available at threshold 10 must report low stock")
	}
	unit.AvailableQty = 11
	if unit.IsLowStock() {
		t.Error("11 available at threshold 10 must not report low stock")
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	// The filter is validated before any storage access.
	svc := core.NewShipmentService(nil, nil)
	_, err := svc.List(context.Background(), core.ShipmentStatus("packed"))
	if !errors.Is(err, core.ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
}
