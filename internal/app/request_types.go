package app

import (
	"time"

	"fba-warehouse/internal/core"
)

// UserRef on every request is attribution only; it never gates anything.

type RegisterStockUnitRequest struct {
	core.StockUnitInput
	UserRef string `json:"user_ref"`
}

type SetStockRequest struct {
	SKU          string `json:"sku"`
	AvailableQty int    `json:"available_qty"`
	// FaultyQty below zero leaves the faulty counter untouched.
	FaultyQty int    `json:"faulty_qty"`
	UserRef   string `json:"user_ref"`
}

type AdjustStockRequest struct {
	SKU     string `json:"sku"`
	Delta   int    `json:"delta"`
	Faulty  bool   `json:"faulty"`
	UserRef string `json:"user_ref"`
}

type CreateShipmentRequest struct {
	core.CreateShipmentInput
	UserRef string `json:"user_ref"`
}

type UpdateShipmentRequest struct {
	Ref     string                     `json:"-"`
	Update  core.ShipmentDetailsUpdate `json:"update"`
	UserRef string                     `json:"user_ref"`
}

type AddBoxRequest struct {
	Ref     string        `json:"-"`
	Box     core.BoxInput `json:"box"`
	UserRef string        `json:"user_ref"`
}

type AddItemRequest struct {
	Ref      string            `json:"-"`
	BoxIndex int               `json:"box_index"`
	Item     core.BoxItemInput `json:"item"`
	UserRef  string            `json:"user_ref"`
}

type DuplicateBoxRequest struct {
	Ref       string            `json:"-"`
	BoxIndex  int               `json:"box_index"`
	Overrides core.BoxOverrides `json:"overrides"`
	UserRef   string            `json:"user_ref"`
}

type ShipRequest struct {
	Ref            string     `json:"-"`
	Carrier        string     `json:"carrier"`
	TrackingNumber string     `json:"tracking_number"`
	ShipmentDate   *time.Time `json:"shipment_date"`
	UserRef        string     `json:"user_ref"`
}

type DeliverRequest struct {
	Ref          string     `json:"-"`
	DeliveryDate *time.Time `json:"delivery_date"`
	UserRef      string     `json:"user_ref"`
}

type CancelRequest struct {
	Ref     string `json:"-"`
	Reason  string `json:"reason"`
	UserRef string `json:"user_ref"`
}

type PackGroupRequest struct {
	core.PackGroupInput
	UserRef string `json:"user_ref"`
}

type ApplyDistributionRequest struct {
	Ref     string                  `json:"-"`
	Edits   []core.DistributionEdit `json:"edits"`
	UserRef string                  `json:"user_ref"`
}
