package inventory

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockhold-backend/api/middleware"
	"github.com/angelmondragon/stockhold-backend/api/responses"
	"github.com/angelmondragon/stockhold-backend/api/validators"
	internalinventory "github.com/angelmondragon/stockhold-backend/internal/inventory"
	pkgerrors "github.com/angelmondragon/stockhold-backend/pkg/errors"
	"github.com/angelmondragon/stockhold-backend/pkg/logger"
)

type createWarehouseRequest struct {
	Code     string  `json:"code" validate:"required,max=32"`
	Name     string  `json:"name" validate:"required,max=128"`
	Location *string `json:"location,omitempty" validate:"omitempty,max=256"`
}

type createItemRequest struct {
	WarehouseID     uuid.UUID        `json:"warehouse_id" validate:"required"`
	ProductID       uuid.UUID        `json:"product_id" validate:"required"`
	SKU             string           `json:"sku" validate:"required,max=64"`
	InitialQuantity int              `json:"initial_quantity" validate:"gte=0"`
	ReorderLevel    *int             `json:"reorder_level,omitempty" validate:"omitempty,gte=0"`
	MaxStockLevel   *int             `json:"max_stock_level,omitempty" validate:"omitempty,gte=0"`
	UnitCost        *decimal.Decimal `json:"unit_cost,omitempty"`
	Location        *string          `json:"location,omitempty" validate:"omitempty,max=128"`
	BatchNumber     *string          `json:"batch_number,omitempty" validate:"omitempty,max=64"`
	ExpiryDate      *time.Time       `json:"expiry_date,omitempty"`
}

// ListWarehouses returns active warehouses, or every warehouse when
// includeInactive=true.
func ListWarehouses(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		includeInactive, err := validators.ParseQueryBool(r, "includeInactive")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		warehouses, err := svc.ListWarehouses(r.Context(), includeInactive)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]internalinventory.WarehouseDTO, 0, len(warehouses))
		for _, warehouse := range warehouses {
			out = append(out, internalinventory.NewWarehouseDTO(warehouse))
		}
		responses.WriteSuccess(w, out)
	}
}

func CreateWarehouse(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		var payload createWarehouseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		warehouse, err := svc.CreateWarehouse(r.Context(), internalinventory.CreateWarehouseInput{
			Code:     validators.SanitizeString(payload.Code, 32),
			Name:     validators.SanitizeString(payload.Name, 128),
			Location: payload.Location,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, internalinventory.NewWarehouseDTO(*warehouse))
	}
}

// ListItems implements listInventoryItems, ordered by warehouse then SKU.
func ListItems(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		filter, err := parseItemFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.ListItems(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]internalinventory.ItemDTO, 0, len(items))
		for _, item := range items {
			out = append(out, internalinventory.NewItemDTO(item))
		}
		responses.WriteSuccess(w, out)
	}
}

func CreateItem(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		var payload createItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.CreateItem(r.Context(), internalinventory.CreateItemInput{
			WarehouseID:     payload.WarehouseID,
			ProductID:       payload.ProductID,
			SKU:             validators.SanitizeString(payload.SKU, 64),
			InitialQuantity: payload.InitialQuantity,
			ReorderLevel:    payload.ReorderLevel,
			MaxStockLevel:   payload.MaxStockLevel,
			UnitCost:        payload.UnitCost,
			Location:        payload.Location,
			BatchNumber:     payload.BatchNumber,
			ExpiryDate:      payload.ExpiryDate,
			PerformedBy:     middleware.ActorIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, internalinventory.NewItemDTO(*item))
	}
}

func ItemDetail(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		itemID, err := validators.ParsePathUUID(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.GetItem(r.Context(), itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, internalinventory.NewItemDTO(*item))
	}
}

func Alerts(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		filter, err := parseItemFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		alerts, err := svc.Alerts(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if alerts == nil {
			alerts = []internalinventory.Alert{}
		}

		responses.WriteSuccess(w, alerts)
	}
}

func Analytics(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		warehouseID, err := validators.ParseQueryUUID(r, "warehouseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Analytics(r.Context(), warehouseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, summary)
	}
}

func parseItemFilter(r *http.Request) (internalinventory.ItemFilter, error) {
	warehouseID, err := validators.ParseQueryUUID(r, "warehouseId")
	if err != nil {
		return internalinventory.ItemFilter{}, err
	}
	productID, err := validators.ParseQueryUUID(r, "productId")
	if err != nil {
		return internalinventory.ItemFilter{}, err
	}
	lowStock, err := validators.ParseQueryBool(r, "lowStock")
	if err != nil {
		return internalinventory.ItemFilter{}, err
	}
	return internalinventory.ItemFilter{
		WarehouseID:  warehouseID,
		ProductID:    productID,
		LowStockOnly: lowStock,
	}, nil
}
