package core

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// The distribution engine maps between a shipment's box/item structure and a
// flat SKU × box quantity matrix (the Amazon "pack group" view). All functions
// here are pure: they read and return values, never touch storage, and leave
// workflow invariants to ShipmentService.

// BoxSpec is the box-level metadata of one column in a distribution matrix.
type BoxSpec struct {
	BoxNo      string          `json:"box_no"`
	BoxName    string          `json:"box_name,omitempty"`
	BoxWeight  decimal.Decimal `json:"box_weight"`
	Dimensions Dimensions      `json:"dimensions"`
	Notes      string          `json:"notes,omitempty"`
}

// DistributionRow is one SKU's spread across all boxes. BoxQuantities is
// aligned by box position and always has exactly one entry per box; zero marks
// a box the SKU is absent from. ExpectedQty is the row sum — the invariant
// every edit must preserve for the shipment to stay balanced.
type DistributionRow struct {
	SKU           string    `json:"sku"`
	ProductName   string    `json:"product_name"`
	ASIN          string    `json:"asin,omitempty"`
	FNSKU         string    `json:"fnsku,omitempty"`
	Condition     Condition `json:"condition"`
	PrepType      PrepType  `json:"prep_type"`
	ExpectedQty   int       `json:"expected_qty"`
	BoxQuantities []int     `json:"box_quantities"`
}

// DistributionMatrix is the transient pack-group projection of a shipment.
// Never persisted; always derivable from the aggregate.
type DistributionMatrix struct {
	ShipmentCode string            `json:"shipment_code,omitempty"`
	PackGroup    string            `json:"pack_group,omitempty"`
	Boxes        []BoxSpec         `json:"boxes"`
	Rows         []DistributionRow `json:"rows"`
}

// DistributionEdit is one row of a redistribution command: the SKU's new
// quantity in every box, aligned by position.
type DistributionEdit struct {
	SKU           string `json:"sku"`
	BoxQuantities []int  `json:"box_quantities"`
}

// ProjectToMatrix derives the SKU × box matrix from a shipment. Rows are
// sorted by SKU; row metadata is taken from the first box line encountered for
// that SKU. Duplicate lines for one SKU within a box (not producible through
// the workflow, but tolerated on read) are summed into the cell.
func ProjectToMatrix(s *Shipment) DistributionMatrix {
	boxes := make([]BoxSpec, len(s.Boxes))
	for i := range s.Boxes {
		box := &s.Boxes[i]
		boxes[i] = BoxSpec{
			BoxNo:      box.BoxNo,
			BoxName:    box.BoxName,
			BoxWeight:  box.BoxWeight,
			Dimensions: box.Dimensions,
			Notes:      box.Notes,
		}
	}

	rowsBySKU := make(map[string]*DistributionRow)
	for i := range s.Boxes {
		for j := range s.Boxes[i].Items {
			item := &s.Boxes[i].Items[j]
			key := NormalizeSKU(item.SKU)
			row, ok := rowsBySKU[key]
			if !ok {
				row = &DistributionRow{
					SKU:           key,
					ProductName:   item.ProductName,
					ASIN:          item.ASIN,
					FNSKU:         item.FNSKU,
					Condition:     item.Condition,
					PrepType:      item.PrepType,
					BoxQuantities: make([]int, len(s.Boxes)),
				}
				rowsBySKU[key] = row
			}
			row.BoxQuantities[i] += item.Qty
			row.ExpectedQty += item.Qty
		}
	}

	rows := make([]DistributionRow, 0, len(rowsBySKU))
	for _, row := range rowsBySKU {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SKU < rows[j].SKU })

	return DistributionMatrix{
		ShipmentCode: s.Code,
		PackGroup:    s.PackGroup,
		Boxes:        boxes,
		Rows:         rows,
	}
}

// BuildFromMatrix constructs the box list for len(boxes) boxes from a set of
// distribution rows. Each row must carry exactly one quantity per box; a box
// receives an item line for every SKU with a positive quantity at its
// position. Item metadata comes from catalog — resolved once per SKU by the
// caller — so every line derived from a SKU is identical across boxes. Rows
// for SKUs missing from the catalog fail with ErrUnknownSKU.
func BuildFromMatrix(boxes []BoxSpec, rows []DistributionRow, catalog map[string]*StockUnit) ([]Box, error) {
	for _, row := range rows {
		if len(row.BoxQuantities) != len(boxes) {
			return nil, fmt.Errorf("%w: SKU %s has %d quantities for %d boxes",
				ErrDimensionMismatch, row.SKU, len(row.BoxQuantities), len(boxes))
		}
		if _, ok := catalog[NormalizeSKU(row.SKU)]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSKU, row.SKU)
		}
	}

	built := make([]Box, len(boxes))
	for i, spec := range boxes {
		box := Box{
			BoxNo:      spec.BoxNo,
			BoxName:    spec.BoxName,
			BoxWeight:  spec.BoxWeight,
			Dimensions: spec.Dimensions,
			Notes:      spec.Notes,
		}
		if box.BoxNo == "" {
			box.BoxNo = fmt.Sprintf("BOX%d", i+1)
		}

		for _, row := range rows {
			qty := row.BoxQuantities[i]
			if qty <= 0 {
				continue
			}
			unit := catalog[NormalizeSKU(row.SKU)]
			box.Items = append(box.Items, BoxItem{
				SKU:         unit.SKU,
				ProductName: unit.Name,
				ASIN:        unit.ASIN,
				FNSKU:       unit.FNSKU,
				Condition:   unit.Condition,
				PrepType:    unit.PrepType,
				Qty:         qty,
				UnitWeight:  unit.UnitWeight,
				TotalWeight: unit.UnitWeight.Mul(decimal.NewFromInt(int64(qty))),
			})
		}
		built[i] = box
	}
	return built, nil
}

// ApplyMatrixEdit redistributes quantities of SKUs already on the shipment.
// For each edit, a positive quantity overwrites the existing line in that box
// (it does not add, unlike Box.MergeItem) and zero removes the line entirely.
// A positive quantity for a box the SKU does not appear in fails with
// ErrUnknownBoxSKU: this path moves stock already committed to the shipment
// between boxes, it never introduces new stock — that is AddItemToBox's job.
// Each SKU may appear in at most one edit; duplicates would validate against
// the pre-edit state and then stomp each other when applied.
// The shipment is modified only if every edit validates.
func ApplyMatrixEdit(s *Shipment, edits []DistributionEdit) error {
	seen := make(map[string]struct{}, len(edits))
	for _, edit := range edits {
		key := NormalizeSKU(edit.SKU)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: SKU %s appears in multiple edits", ErrDuplicateSKU, key)
		}
		seen[key] = struct{}{}
		if len(edit.BoxQuantities) != len(s.Boxes) {
			return fmt.Errorf("%w: SKU %s has %d quantities for %d boxes",
				ErrDimensionMismatch, edit.SKU, len(edit.BoxQuantities), len(s.Boxes))
		}
		for boxIndex, qty := range edit.BoxQuantities {
			if qty < 0 {
				return fmt.Errorf("%w: SKU %s box %d quantity %d", ErrNegativeQuantity, edit.SKU, boxIndex, qty)
			}
			if qty > 0 && s.Boxes[boxIndex].itemIndex(edit.SKU) < 0 {
				return fmt.Errorf("%w: cannot add SKU %s to box %d via redistribution, use AddItemToBox",
					ErrUnknownBoxSKU, NormalizeSKU(edit.SKU), boxIndex)
			}
		}
	}

	for _, edit := range edits {
		for boxIndex, qty := range edit.BoxQuantities {
			box := &s.Boxes[boxIndex]
			idx := box.itemIndex(edit.SKU)
			if idx < 0 {
				continue // qty is 0 here: absent stays absent
			}
			if qty == 0 {
				box.Items = append(box.Items[:idx], box.Items[idx+1:]...)
				continue
			}
			item := &box.Items[idx]
			item.Qty = qty
			item.TotalWeight = item.UnitWeight.Mul(decimal.NewFromInt(int64(qty)))
		}
	}
	return nil
}
