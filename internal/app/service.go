package app

import (
	"context"
)

// ApplicationService is the single interface all adapters call. It decouples
// presentation from business logic. Implementations must contain no display
// logic of any kind.
type ApplicationService interface {
	// ListStockUnits returns all active stock units ordered by SKU.
	ListStockUnits(ctx context.Context) (*StockUnitListResult, error)

	// GetStockUnit returns a single active stock unit by SKU.
	GetStockUnit(ctx context.Context, sku string) (*StockUnitResult, error)

	// RegisterStockUnit creates a stock unit for a new SKU.
	RegisterStockUnit(ctx context.Context, req RegisterStockUnitRequest) (*StockUnitResult, error)

	// SetStock overwrites the available and faulty counters of a SKU.
	SetStock(ctx context.Context, req SetStockRequest) (*StockUnitResult, error)

	// AdjustStock applies a signed correction to one counter of a SKU.
	AdjustStock(ctx context.Context, req AdjustStockRequest) (*StockUnitResult, error)

	// DeactivateStockUnit soft-deletes a stock unit.
	DeactivateStockUnit(ctx context.Context, sku, userRef string) error

	// GetStockMovements returns the movement trail for a SKU, newest first.
	GetStockMovements(ctx context.Context, sku string) (*MovementListResult, error)

	// CreateShipment opens a new empty draft shipment.
	CreateShipment(ctx context.Context, req CreateShipmentRequest) (*ShipmentResult, error)

	// GetShipment returns a shipment by numeric ID or shipment code.
	GetShipment(ctx context.Context, ref string) (*ShipmentResult, error)

	// ListShipments returns shipments, optionally filtered by status.
	ListShipments(ctx context.Context, status string) (*ShipmentListResult, error)

	// UpdateShipmentDetails edits header fields of a non-terminal shipment.
	UpdateShipmentDetails(ctx context.Context, req UpdateShipmentRequest) (*ShipmentResult, error)

	// AddBox appends a box with items to a draft shipment.
	AddBox(ctx context.Context, req AddBoxRequest) (*ShipmentResult, error)

	// AddItemToBox adds an item line to one box of a draft shipment.
	AddItemToBox(ctx context.Context, req AddItemRequest) (*ShipmentResult, error)

	// DuplicateBox copies a box within a draft shipment.
	DuplicateBox(ctx context.Context, req DuplicateBoxRequest) (*ShipmentResult, error)

	// FinalizeShipment transitions draft → ready, reserving stock for every
	// item line atomically.
	FinalizeShipment(ctx context.Context, ref, userRef string) (*ShipmentResult, error)

	// MarkShipmentShipped transitions ready → shipped.
	MarkShipmentShipped(ctx context.Context, req ShipRequest) (*ShipmentResult, error)

	// MarkShipmentDelivered transitions shipped → delivered.
	MarkShipmentDelivered(ctx context.Context, req DeliverRequest) (*ShipmentResult, error)

	// CancelShipment terminates a draft or ready shipment, releasing reserved
	// stock when cancelling from ready.
	CancelShipment(ctx context.Context, req CancelRequest) (*ShipmentResult, error)

	// DeleteShipment removes a draft shipment.
	DeleteShipment(ctx context.Context, ref, userRef string) error

	// GetDistribution returns the SKU × box matrix view of a shipment.
	GetDistribution(ctx context.Context, ref string) (*DistributionResult, error)

	// CreateFromPackGroup builds a draft shipment from a distribution matrix.
	CreateFromPackGroup(ctx context.Context, req PackGroupRequest) (*ShipmentResult, error)

	// ApplyDistribution redistributes existing SKUs across a draft shipment's boxes.
	ApplyDistribution(ctx context.Context, req ApplyDistributionRequest) (*ShipmentResult, error)
}
