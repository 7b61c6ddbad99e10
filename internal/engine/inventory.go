package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"plantline/internal/domain"
	"plantline/internal/events"
)

type ItemCreateOptions struct {
	Name        string
	SKU         string
	Quantity    float64
	MinQuantity float64
	Unit        string
	UnitCost    float64
	Location    string
	ActorID     string
}

func (e Engine) CreateItem(ctx context.Context, opts ItemCreateOptions) (domain.InventoryItem, error) {
	if opts.Name == "" {
		return domain.InventoryItem{}, errors.New("name is required")
	}
	if opts.Quantity < 0 || opts.MinQuantity < 0 {
		return domain.InventoryItem{}, errors.New("quantities must be non-negative")
	}
	it := domain.InventoryItem{
		Name:        opts.Name,
		SKU:         opts.SKU,
		Quantity:    opts.Quantity,
		MinQuantity: opts.MinQuantity,
		Unit:        opts.Unit,
		UnitCost:    opts.UnitCost,
		Location:    opts.Location,
	}
	it, err := e.Repo.InsertItem(ctx, it)
	if err != nil {
		return it, fmt.Errorf("insert item: %w", err)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return it, err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, "item.created", "inventory_item", fmt.Sprint(it.ID), opts.ActorID, events.EventPayload{"name": it.Name}); err != nil {
		return it, err
	}
	return it, tx.Commit()
}

func validMovementType(t string) bool {
	switch t {
	case domain.MovementPurchase, domain.MovementConsumption, domain.MovementAdjustment, domain.MovementReturn:
		return true
	}
	return false
}

// movementDelta maps a recorded movement onto the stock level change it
// implies. Purchases and returns add magnitude, consumption removes it,
// adjustments apply their signed quantity as-is.
func movementDelta(movementType string, quantity float64) float64 {
	switch movementType {
	case domain.MovementPurchase, domain.MovementReturn:
		return math.Abs(quantity)
	case domain.MovementConsumption:
		return -math.Abs(quantity)
	default:
		return quantity
	}
}

type MovementOptions struct {
	ItemID    int64
	Type      string
	Quantity  float64
	Reference string
	ActorID   string
}

// RecordMovement appends a stock movement and adjusts the item's on-hand
// quantity in one transaction. A movement that would drive stock below zero
// is rejected before anything is written.
func (e Engine) RecordMovement(ctx context.Context, opts MovementOptions) (domain.InventoryMovement, error) {
	if !validMovementType(opts.Type) {
		return domain.InventoryMovement{}, fmt.Errorf("invalid movement type %s", opts.Type)
	}
	if opts.Quantity == 0 {
		return domain.InventoryMovement{}, errors.New("quantity must be non-zero")
	}
	it, err := e.Repo.GetItem(ctx, opts.ItemID)
	if err != nil {
		return domain.InventoryMovement{}, err
	}
	delta := movementDelta(opts.Type, opts.Quantity)
	next := it.Quantity + delta
	if next < 0 {
		return domain.InventoryMovement{}, fmt.Errorf("insufficient stock: %g on hand, movement needs %g", it.Quantity, -delta)
	}

	m := domain.InventoryMovement{
		ItemID:       opts.ItemID,
		MovementType: opts.Type,
		Quantity:     delta,
		Reference:    opts.Reference,
		CreatedAt:    e.now().UTC(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return m, err
	}
	defer tx.Rollback()
	m, err = e.Repo.InsertMovement(ctx, tx, m)
	if err != nil {
		return m, fmt.Errorf("insert movement: %w", err)
	}
	if err := e.Repo.SetItemQuantity(ctx, tx, opts.ItemID, next); err != nil {
		return m, err
	}
	if err := e.Events.Append(ctx, tx, "stock.moved", "inventory_item", fmt.Sprint(opts.ItemID), opts.ActorID, events.EventPayload{
		"movement_type": opts.Type,
		"delta":         delta,
		"quantity":      next,
	}); err != nil {
		return m, err
	}
	return m, tx.Commit()
}

func (e Engine) LowStockItems(ctx context.Context) ([]domain.InventoryItem, error) {
	return e.Repo.LowStockItems(ctx)
}
