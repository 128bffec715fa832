package core

import "errors"

// Business-rule violations. Services wrap these with SKU, quantity, and state
// context via fmt.Errorf("...%w..."); callers discriminate with errors.Is.
var (
	// ErrUnknownSKU marks an operation against a SKU with no active stock unit.
	ErrUnknownSKU = errors.New("unknown SKU")

	// ErrDuplicateSKU marks a registration for a SKU that already exists.
	ErrDuplicateSKU = errors.New("duplicate SKU")

	// ErrInsufficientStock marks a reservation or pre-check whose demand
	// exceeds the available quantity.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrNegativeQuantity marks any mutation that would drive a quantity
	// below zero, or a caller-supplied negative quantity.
	ErrNegativeQuantity = errors.New("negative quantity")

	// ErrInvalidBoxIndex marks a box reference outside the shipment's box list.
	ErrInvalidBoxIndex = errors.New("invalid box index")

	// ErrEmptyShipment marks an attempt to finalize a shipment with no packed items.
	ErrEmptyShipment = errors.New("shipment has no items")

	// ErrIllegalTransition marks a lifecycle operation the current status forbids.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrDimensionMismatch marks a distribution row or edit whose quantity
	// slice does not have exactly one entry per box.
	ErrDimensionMismatch = errors.New("distribution dimension mismatch")

	// ErrUnknownBoxSKU marks a redistribution that would introduce a SKU into
	// a box it does not already appear in.
	ErrUnknownBoxSKU = errors.New("SKU not present in box")

	// ErrShipmentNotFound marks a reference that resolves to no shipment.
	ErrShipmentNotFound = errors.New("shipment not found")

	// ErrUnknownStatus marks a status filter that is not one of the five
	// lifecycle states.
	ErrUnknownStatus = errors.New("unknown shipment status")
)

// ErrStaleShipment reports a lost write race on a shipment aggregate: another
// writer bumped the version between load and store. Retryable, unlike the
// business kinds above.
var ErrStaleShipment = errors.New("shipment modified concurrently")
