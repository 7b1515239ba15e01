package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockhold-backend/pkg/db/models"
	"github.com/angelmondragon/stockhold-backend/pkg/enums"
)

// ItemFilter narrows item listings.
type ItemFilter struct {
	WarehouseID  *uuid.UUID
	ProductID    *uuid.UUID
	LowStockOnly bool
}

// StockShortage is attached to conflict errors raised by stock guards.
type StockShortage struct {
	Available int `json:"available"`
	Requested int `json:"requested"`
}

// CreateWarehouseInput carries the fields for a new warehouse.
type CreateWarehouseInput struct {
	Code     string
	Name     string
	Location *string
}

// CreateItemInput carries the fields for a new inventory item. A positive
// InitialQuantity is booked as an IN movement.
type CreateItemInput struct {
	WarehouseID     uuid.UUID
	ProductID       uuid.UUID
	SKU             string
	InitialQuantity int
	ReorderLevel    *int
	MaxStockLevel   *int
	UnitCost        *decimal.Decimal
	Location        *string
	BatchNumber     *string
	ExpiryDate      *time.Time
	PerformedBy     *uuid.UUID
}

// ItemDTO is the API representation of an item with its derived availability.
type ItemDTO struct {
	ID                uuid.UUID        `json:"id"`
	WarehouseID       uuid.UUID        `json:"warehouse_id"`
	ProductID         uuid.UUID        `json:"product_id"`
	SKU               string           `json:"sku"`
	QuantityOnHand    int              `json:"quantity_on_hand"`
	QuantityReserved  int              `json:"quantity_reserved"`
	QuantityAvailable int              `json:"quantity_available"`
	ReorderLevel      int              `json:"reorder_level"`
	MaxStockLevel     *int             `json:"max_stock_level,omitempty"`
	UnitCost          *decimal.Decimal `json:"unit_cost,omitempty"`
	Location          *string          `json:"location,omitempty"`
	BatchNumber       *string          `json:"batch_number,omitempty"`
	ExpiryDate        *time.Time       `json:"expiry_date,omitempty"`
	LastCountedAt     *time.Time       `json:"last_counted_at,omitempty"`
	Version           int64            `json:"version"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// NewItemDTO maps a stored item to its API form.
func NewItemDTO(item models.InventoryItem) ItemDTO {
	return ItemDTO{
		ID:                item.ID,
		WarehouseID:       item.WarehouseID,
		ProductID:         item.ProductID,
		SKU:               item.SKU,
		QuantityOnHand:    item.QuantityOnHand,
		QuantityReserved:  item.QuantityReserved,
		QuantityAvailable: item.Available(),
		ReorderLevel:      item.ReorderLevel,
		MaxStockLevel:     item.MaxStockLevel,
		UnitCost:          item.UnitCost,
		Location:          item.Location,
		BatchNumber:       item.BatchNumber,
		ExpiryDate:        item.ExpiryDate,
		LastCountedAt:     item.LastCountedAt,
		Version:           item.Version,
		CreatedAt:         item.CreatedAt,
		UpdatedAt:         item.UpdatedAt,
	}
}

// WarehouseDTO is the API representation of a warehouse.
type WarehouseDTO struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Location  *string   `json:"location,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func NewWarehouseDTO(w models.Warehouse) WarehouseDTO {
	return WarehouseDTO{
		ID:        w.ID,
		Code:      w.Code,
		Name:      w.Name,
		Location:  w.Location,
		IsActive:  w.IsActive,
		CreatedAt: w.CreatedAt,
	}
}

// Alert is a derived, read-only stock condition on one item.
type Alert struct {
	InventoryItemID uuid.UUID                `json:"inventory_item_id"`
	WarehouseID     uuid.UUID                `json:"warehouse_id"`
	SKU             string                   `json:"sku"`
	Type            enums.StockAlertType     `json:"type"`
	Severity        enums.StockAlertSeverity `json:"severity"`
	Available       int                      `json:"available"`
	OnHand          int                      `json:"on_hand"`
	ReorderLevel    int                      `json:"reorder_level"`
	ExpiryDate      *time.Time               `json:"expiry_date,omitempty"`
}

// Analytics summarises stock health for a warehouse or the whole estate.
type Analytics struct {
	TotalItems         int             `json:"total_items"`
	LowStockItems      int             `json:"low_stock_items"`
	OutOfStockItems    int             `json:"out_of_stock_items"`
	TotalStockValue    decimal.Decimal `json:"total_stock_value"`
	CriticalAlerts     int             `json:"critical_alerts"`
	ActiveReservations int64           `json:"active_reservations"`
	GeneratedAt        time.Time       `json:"generated_at"`
}
