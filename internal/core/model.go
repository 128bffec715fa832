package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Condition is the FBA item condition of a stock unit.
type Condition string

const (
	ConditionNewItem        Condition = "NewItem"
	ConditionUsedLikeNew    Condition = "UsedLikeNew"
	ConditionUsedVeryGood   Condition = "UsedVeryGood"
	ConditionUsedGood       Condition = "UsedGood"
	ConditionUsedAcceptable Condition = "UsedAcceptable"
)

// PrepType is the FBA prep requirement of a stock unit.
type PrepType string

const (
	PrepNone       PrepType = "NONE"
	PrepPolybag    PrepType = "Polybagging"
	PrepBubbleWrap PrepType = "Bubble wrap"
	PrepTaping     PrepType = "Taping"
	PrepLabeling   PrepType = "Labeling"
	PrepShrinkWrap PrepType = "Black shrink wrap"
)

// StockUnit is the authoritative quantity record for one SKU. AvailableQty and
// FaultyQty are never negative; the stock ledger is the only component allowed
// to change them. Units are deactivated, never deleted.
type StockUnit struct {
	ID                int             `json:"id"`
	SKU               string          `json:"sku"`
	Name              string          `json:"name"`
	Barcode           string          `json:"barcode,omitempty"`
	ASIN              string          `json:"asin,omitempty"`
	FNSKU             string          `json:"fnsku,omitempty"`
	Condition         Condition       `json:"condition"`
	PrepType          PrepType        `json:"prep_type"`
	AvailableQty      int             `json:"available_qty"`
	FaultyQty         int             `json:"faulty_qty"`
	UnitWeight        decimal.Decimal `json:"unit_weight"` // kg
	UnitCost          decimal.Decimal `json:"unit_cost"`
	Supplier          string          `json:"supplier,omitempty"`
	Category          string          `json:"category,omitempty"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	IsActive          bool            `json:"is_active"`
	LastRestockedAt   *time.Time      `json:"last_restocked_at,omitempty"`
	CreatedBy         string          `json:"created_by,omitempty"`
	UpdatedBy         string          `json:"updated_by,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// TotalQty is the unit count across both counters.
func (u *StockUnit) TotalQty() int { return u.AvailableQty + u.FaultyQty }

// IsLowStock reports whether available stock has fallen to the reorder threshold.
func (u *StockUnit) IsLowStock() bool { return u.AvailableQty <= u.LowStockThreshold }

// StockUnitInput carries the caller-supplied fields for registering a stock unit.
type StockUnitInput struct {
	SKU               string          `json:"sku"`
	Name              string          `json:"name"`
	Barcode           string          `json:"barcode"`
	ASIN              string          `json:"asin"`
	FNSKU             string          `json:"fnsku"`
	Condition         Condition       `json:"condition"`
	PrepType          PrepType        `json:"prep_type"`
	AvailableQty      int             `json:"available_qty"`
	FaultyQty         int             `json:"faulty_qty"`
	UnitWeight        decimal.Decimal `json:"unit_weight"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	Supplier          string          `json:"supplier"`
	Category          string          `json:"category"`
	LowStockThreshold int             `json:"low_stock_threshold"`
}

// MovementType classifies an entry in the stock movement trail.
type MovementType string

const (
	MovementRestock     MovementType = "RESTOCK"
	MovementAdjustment  MovementType = "ADJUSTMENT"
	MovementReservation MovementType = "RESERVATION"
	MovementRelease     MovementType = "RELEASE"
	MovementDefect      MovementType = "DEFECT"
)

// StockMovement is one append-only audit record. Quantity is signed: negative
// for reservations and downward adjustments, positive for restocks and releases.
type StockMovement struct {
	ID         int          `json:"id"`
	SKU        string       `json:"sku"`
	Type       MovementType `json:"movement_type"`
	Quantity   int          `json:"quantity"`
	ShipmentID *int         `json:"shipment_id,omitempty"`
	Note       string       `json:"note,omitempty"`
	UserRef    string       `json:"user_ref,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// ReservationLine is one SKU's aggregated quantity within a reserve or release
// call. Lines are aggregated per SKU before the availability check so that two
// boxes drawing on the same SKU are validated against their combined demand.
type ReservationLine struct {
	SKU string
	Qty int
}

// NormalizeSKU upper-cases and trims a SKU for use as a key. Every comparison
// and every storage write goes through this.
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}
