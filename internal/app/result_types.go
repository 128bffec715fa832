package app

import (
	"fba-warehouse/internal/core"
)

type StockUnitResult struct {
	Unit *core.StockUnit `json:"unit"`
}

// StockUnitListResult carries the active catalog plus warehouse-level rollups:
// TotalUnits counts every unit across both counters, LowStockCount the SKUs at
// or below their reorder threshold.
type StockUnitListResult struct {
	Units         []core.StockUnit `json:"units"`
	Count         int              `json:"count"`
	TotalUnits    int              `json:"total_units"`
	LowStockCount int              `json:"low_stock_count"`
}

type MovementListResult struct {
	SKU       string               `json:"sku"`
	Movements []core.StockMovement `json:"movements"`
}

type ShipmentResult struct {
	Shipment *core.Shipment `json:"shipment"`
}

type ShipmentListResult struct {
	Shipments []core.Shipment `json:"shipments"`
	Count     int             `json:"count"`
}

type DistributionResult struct {
	Matrix *core.DistributionMatrix `json:"matrix"`
}
