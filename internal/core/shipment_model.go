package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ShipmentStatus is the lifecycle state of a shipment.
//
//	draft → ready → shipped → delivered
//	draft/ready → cancelled
//
// delivered and cancelled are terminal.
type ShipmentStatus string

const (
	StatusDraft     ShipmentStatus = "draft"
	StatusReady     ShipmentStatus = "ready"
	StatusShipped   ShipmentStatus = "shipped"
	StatusDelivered ShipmentStatus = "delivered"
	StatusCancelled ShipmentStatus = "cancelled"
)

var statusTransitions = map[ShipmentStatus][]ShipmentStatus{
	StatusDraft:   {StatusReady, StatusCancelled},
	StatusReady:   {StatusShipped, StatusCancelled},
	StatusShipped: {StatusDelivered},
}

// CanTransitionTo reports whether the state machine permits moving to next.
func (s ShipmentStatus) CanTransitionTo(next ShipmentStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist from s.
func (s ShipmentStatus) IsTerminal() bool {
	return len(statusTransitions[s]) == 0
}

// ValidStatus reports whether s is one of the five lifecycle states.
func ValidStatus(s ShipmentStatus) bool {
	switch s {
	case StatusDraft, StatusReady, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// DestinationType classifies where a shipment is headed.
type DestinationType string

const (
	DestinationFBA       DestinationType = "FBA"
	DestinationCustomer  DestinationType = "Customer"
	DestinationWarehouse DestinationType = "Warehouse"
	DestinationOther     DestinationType = "Other"
)

// Dimensions are outer box measurements in inches.
type Dimensions struct {
	Length decimal.Decimal `json:"length"`
	Width  decimal.Decimal `json:"width"`
	Height decimal.Decimal `json:"height"`
}

// BoxItem is one SKU line inside a box. Within a box the SKU is a key: merging
// an item whose SKU already exists increments the existing line instead of
// appending a duplicate. TotalWeight is always Qty × UnitWeight.
type BoxItem struct {
	SKU         string          `json:"sku"`
	ProductName string          `json:"product_name"`
	ASIN        string          `json:"asin,omitempty"`
	FNSKU       string          `json:"fnsku,omitempty"`
	Condition   Condition       `json:"condition"`
	PrepType    PrepType        `json:"prep_type"`
	Qty         int             `json:"qty"`
	UnitWeight  decimal.Decimal `json:"unit_weight"`
	TotalWeight decimal.Decimal `json:"total_weight"`
}

// Box is one container within a shipment. Boxes are position-significant and
// referenced by index; they exist only inside their parent shipment.
type Box struct {
	BoxNo      string          `json:"box_no"`
	BoxName    string          `json:"box_name,omitempty"`
	Items      []BoxItem       `json:"items"`
	BoxWeight  decimal.Decimal `json:"box_weight"`
	Dimensions Dimensions      `json:"dimensions"`
	Notes      string          `json:"notes,omitempty"`
}

// itemIndex returns the position of sku in the box, or -1.
func (b *Box) itemIndex(sku string) int {
	key := NormalizeSKU(sku)
	for i := range b.Items {
		if NormalizeSKU(b.Items[i].SKU) == key {
			return i
		}
	}
	return -1
}

// MergeItem adds item to the box under box-item key semantics: an existing
// line for the same SKU has its quantity incremented and its total weight
// refreshed; otherwise the item is appended as a new line.
func (b *Box) MergeItem(item BoxItem) {
	if i := b.itemIndex(item.SKU); i >= 0 {
		existing := &b.Items[i]
		existing.Qty += item.Qty
		existing.TotalWeight = existing.UnitWeight.Mul(decimal.NewFromInt(int64(existing.Qty)))
		return
	}
	item.SKU = NormalizeSKU(item.SKU)
	item.TotalWeight = item.UnitWeight.Mul(decimal.NewFromInt(int64(item.Qty)))
	b.Items = append(b.Items, item)
}

// Shipment is the aggregate root for outbound stock. Boxes and their items are
// embedded values owned by the shipment; the cached totals are projections of
// the box list and are recomputed in full by RecomputeTotals after every
// mutation, never adjusted incrementally.
type Shipment struct {
	ID              int             `json:"id"`
	Code            string          `json:"code"`
	PackGroup       string          `json:"pack_group,omitempty"`
	FBAShipmentID   string          `json:"fba_shipment_id,omitempty"`
	Destination     string          `json:"destination"`
	DestinationType DestinationType `json:"destination_type"`
	Status          ShipmentStatus  `json:"status"`
	Boxes           []Box           `json:"boxes"`
	TotalSKUs       int             `json:"total_skus"`
	TotalBoxes      int             `json:"total_boxes"`
	TotalItems      int             `json:"total_items"`
	TotalWeight     decimal.Decimal `json:"total_weight"`
	ShippingCost    decimal.Decimal `json:"shipping_cost"`
	Carrier         string          `json:"carrier,omitempty"`
	TrackingNumber  string          `json:"tracking_number,omitempty"`
	ShipmentDate    *time.Time      `json:"shipment_date,omitempty"`
	DeliveryDate    *time.Time      `json:"delivery_date,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	Version         int             `json:"version"`
	CreatedBy       string          `json:"created_by,omitempty"`
	UpdatedBy       string          `json:"updated_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// RecomputeTotals rebuilds every cached projection from the box list. Item
// total weights are refreshed from qty × unit weight; a box with no explicit
// weight derives it from its items. Idempotent.
func (s *Shipment) RecomputeTotals() {
	s.TotalBoxes = len(s.Boxes)

	totalItems := 0
	totalWeight := decimal.Zero
	uniqueSKUs := make(map[string]struct{})

	for i := range s.Boxes {
		box := &s.Boxes[i]
		itemsWeight := decimal.Zero
		for j := range box.Items {
			item := &box.Items[j]
			totalItems += item.Qty
			item.TotalWeight = item.UnitWeight.Mul(decimal.NewFromInt(int64(item.Qty)))
			itemsWeight = itemsWeight.Add(item.TotalWeight)
			uniqueSKUs[NormalizeSKU(item.SKU)] = struct{}{}
		}
		if box.BoxWeight.IsZero() {
			box.BoxWeight = itemsWeight
		}
		totalWeight = totalWeight.Add(box.BoxWeight)
	}

	s.TotalItems = totalItems
	s.TotalWeight = totalWeight
	s.TotalSKUs = len(uniqueSKUs)
}

// ReservationLines aggregates the shipment's item quantities per SKU, sorted
// by SKU. The ledger validates each SKU against its combined demand across
// boxes, so two boxes drawing 5 and 8 units of one SKU are checked as 13.
func (s *Shipment) ReservationLines() []ReservationLine {
	totals := make(map[string]int)
	for i := range s.Boxes {
		for j := range s.Boxes[i].Items {
			item := &s.Boxes[i].Items[j]
			totals[NormalizeSKU(item.SKU)] += item.Qty
		}
	}

	lines := make([]ReservationLine, 0, len(totals))
	for sku, qty := range totals {
		lines = append(lines, ReservationLine{SKU: sku, Qty: qty})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].SKU < lines[j].SKU })
	return lines
}
