package app

import (
	"context"

	"fba-warehouse/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
)

type appService struct {
	pool      *pgxpool.Pool
	ledger    core.StockLedger
	shipments core.ShipmentService
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(pool *pgxpool.Pool, ledger core.StockLedger, shipments core.ShipmentService) ApplicationService {
	return &appService{
		pool:      pool,
		ledger:    ledger,
		shipments: shipments,
	}
}

// ── Stock ────────────────────────────────────────────────────────────────────

func (s *appService) ListStockUnits(ctx context.Context) (*StockUnitListResult, error) {
	units, err := s.ledger.List(ctx)
	if err != nil {
		return nil, err
	}
	result := &StockUnitListResult{Units: units, Count: len(units)}
	for i := range units {
		result.TotalUnits += units[i].TotalQty()
		if units[i].IsLowStock() {
			result.LowStockCount++
		}
	}
	return result, nil
}

func (s *appService) GetStockUnit(ctx context.Context, sku string) (*StockUnitResult, error) {
	unit, err := s.ledger.Lookup(ctx, sku)
	if err != nil {
		return nil, err
	}
	return &StockUnitResult{Unit: unit}, nil
}

func (s *appService) RegisterStockUnit(ctx context.Context, req RegisterStockUnitRequest) (*StockUnitResult, error) {
	unit, err := s.ledger.Register(ctx, req.StockUnitInput, req.UserRef)
	if err != nil {
		return nil, err
	}
	return &StockUnitResult{Unit: unit}, nil
}

func (s *appService) SetStock(ctx context.Context, req SetStockRequest) (*StockUnitResult, error) {
	unit, err := s.ledger.SetStock(ctx, req.SKU, req.AvailableQty, req.FaultyQty, req.UserRef)
	if err != nil {
		return nil, err
	}
	return &StockUnitResult{Unit: unit}, nil
}

func (s *appService) AdjustStock(ctx context.Context, req AdjustStockRequest) (*StockUnitResult, error) {
	unit, err := s.ledger.Adjust(ctx, req.SKU, req.Delta, req.Faulty, req.UserRef)
	if err != nil {
		return nil, err
	}
	return &StockUnitResult{Unit: unit}, nil
}

func (s *appService) DeactivateStockUnit(ctx context.Context, sku, userRef string) error {
	return s.ledger.Deactivate(ctx, sku, userRef)
}

func (s *appService) GetStockMovements(ctx context.Context, sku string) (*MovementListResult, error) {
	movements, err := s.ledger.Movements(ctx, sku)
	if err != nil {
		return nil, err
	}
	return &MovementListResult{SKU: core.NormalizeSKU(sku), Movements: movements}, nil
}

// ── Shipments ────────────────────────────────────────────────────────────────

func (s *appService) CreateShipment(ctx context.Context, req CreateShipmentRequest) (*ShipmentResult, error) {
	sh, err := s.shipments.Create(ctx, req.CreateShipmentInput, req.UserRef)
	if err != nil {
		return nil, err
	}
	return &ShipmentResult{Shipment: sh}, nil
}

func (s *appService) GetShipment(ctx context.Context, ref string) (*ShipmentResult, error) {
	sh, err := s.shipments.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &ShipmentResult{Shipment: sh}, nil
}

func (s *appService) ListShipments(ctx context.Context, status string) (*ShipmentListResult, error) {
	shipments, err := s.shipments.List(ctx, core.ShipmentStatus(status))
	if err != nil {
		return nil, err
	}
	return &ShipmentListResult{Shipments: shipments, Count: len(shipments)}, nil
}

func (s *appService) UpdateShipmentDetails(ctx context.Context, req UpdateShipmentRequest) (*ShipmentResult, error) {
	sh, err := s.shipments.UpdateDetails(ctx, req.Ref, req.Update, req.UserRef)
	if err != nil {
		return nil, err
	}
	return &ShipmentResult{Shipment: sh}, nil
}

func (s *appService) AddBox(ctx context.Context, req AddBoxRequest) (*ShipmentResult, error) {
	sh, err := s.shipments.AddBox(ctx, req.Ref, req.Box, req.UserRef)
	if err != nil {
		return nil, err
	}
	return &ShipmentResult{Shipment: sh}, nil
}

func (s *appService) AddItemToBox(ctx context.Context, req AddItemRequest) (*ShipmentResult, error) {
	sh, err := s.shipments.AddItemToBox(ctx, req.Ref, req.BoxIndex, req.Item, req.UserRef)
	if err != nil {
		return nil, err
	}
	return &ShipmentResult{Shipment: sh}, nil
}

func (s *appService) DuplicateBox(ctx context.Context, req DuplicateBoxRequest) (*ShipmentResult, error) {
	sh, err := s.shipments.DuplicateBox(ctx, req.Ref, req.BoxIndex, req.Overrides, req.UserRef)
	if err != nil {
		return nil, err
	}
	return &ShipmentResult{Shipment: sh}, nil
}

func (s *appService) FinalizeShipment(ctx context.Context, ref, userRef string) (*ShipmentResult, error) {
	sh, err := s.shipments.Finalize(ctx, ref, userRef)
	if err != nil {
		return nil, err
	}
	return &ShipmentResult{Shipment: sh}, nil
}

func (s *appService) MarkShipmentShipped(ctx context.Context, req ShipRequest) (*ShipmentResult, error) {
	sh, err := s.shipments.MarkAsShipped(ctx, req.Ref, req.Carrier, req.TrackingNumber, req.ShipmentDate, req.UserRef)
	if err != nil {
		return nil, err
	}
	return &ShipmentResult{Shipment: sh}, nil
}

func (s *appService) MarkShipmentDelivered(ctx context.Context, req DeliverRequest) (*ShipmentResult, error) {
	sh, err := s.shipments.MarkAsDelivered(ctx, req.Ref, req.DeliveryDate, req.UserRef)
	if err != nil {
		return nil, err
	}
	return &ShipmentResult{Shipment: sh}, nil
}

func (s *appService) CancelShipment(ctx context.Context, req CancelRequest) (*ShipmentResult, error) {
	sh, err := s.shipments.Cancel(ctx, req.Ref, req.Reason, req.UserRef)
	if err != nil {
		return nil, err
	}
	return &ShipmentResult{Shipment: sh}, nil
}

func (s *appService) DeleteShipment(ctx context.Context, ref, userRef string) error {
	return s.shipments.Delete(ctx, ref, userRef)
}

func (s *appService) GetDistribution(ctx context.Context, ref string) (*DistributionResult, error) {
	matrix, err := s.shipments.ProjectDistribution(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &DistributionResult{Matrix: matrix}, nil
}

func (s *appService) CreateFromPackGroup(ctx context.Context, req PackGroupRequest) (*ShipmentResult, error) {
	sh, err := s.shipments.CreateFromPackGroup(ctx, req.PackGroupInput, req.UserRef)
	if err != nil {
		return nil, err
	}
	return &ShipmentResult{Shipment: sh}, nil
}

func (s *appService) ApplyDistribution(ctx context.Context, req ApplyDistributionRequest) (*ShipmentResult, error) {
	sh, err := s.shipments.ApplyDistribution(ctx, req.Ref, req.Edits, req.UserRef)
	if err != nil {
		return nil, err
	}
	return &ShipmentResult{Shipment: sh}, nil
}
