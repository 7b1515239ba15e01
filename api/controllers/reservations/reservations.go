package reservations

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockhold-backend/api/middleware"
	"github.com/angelmondragon/stockhold-backend/api/responses"
	"github.com/angelmondragon/stockhold-backend/api/validators"
	internalinventory "github.com/angelmondragon/stockhold-backend/internal/inventory"
	"github.com/angelmondragon/stockhold-backend/internal/movements"
	internalreservations "github.com/angelmondragon/stockhold-backend/internal/reservations"
	"github.com/angelmondragon/stockhold-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockhold-backend/pkg/errors"
	"github.com/angelmondragon/stockhold-backend/pkg/logger"
	"github.com/angelmondragon/stockhold-backend/pkg/pagination"
)

type createReservationRequest struct {
	InventoryItemID uuid.UUID  `json:"inventory_item_id" validate:"required"`
	Quantity        int        `json:"quantity" validate:"required,gt=0"`
	OrderID         *uuid.UUID `json:"order_id,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

type fulfillReservationRequest struct {
	Notes *string `json:"notes,omitempty" validate:"omitempty,max=1024"`
}

type reservationResponse struct {
	Reservation internalreservations.ReservationDTO `json:"reservation"`
	Item        *internalinventory.ItemDTO          `json:"item,omitempty"`
	Movement    *movements.MovementDTO              `json:"movement,omitempty"`
}

// Create implements createReservation. The response carries the reservation
// and the item quantities after the hold.
func Create(svc internalreservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		var payload createReservationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), internalreservations.CreateInput{
			ItemID:    payload.InventoryItemID,
			Quantity:  payload.Quantity,
			OrderID:   payload.OrderID,
			ExpiresAt: payload.ExpiresAt,
			CreatedBy: middleware.ActorIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newReservationResponse(result))
	}
}

func List(svc internalreservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter, err := parseListFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), internalreservations.ListParams{
			Filter: filter,
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

func Detail(svc internalreservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reservation, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, internalreservations.NewReservationDTO(*reservation))
	}
}

// Cancel implements cancelReservation. Cancelling a reservation that is no
// longer active is reported as a state conflict by the service.
func Cancel(svc internalreservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reservation, err := svc.Cancel(r.Context(), id, middleware.ActorIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, internalreservations.NewReservationDTO(*reservation))
	}
}

func Fulfill(svc internalreservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload fulfillReservationRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := svc.Fulfill(r.Context(), internalreservations.FulfillInput{
			ReservationID: id,
			Notes:         payload.Notes,
			PerformedBy:   middleware.ActorIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newReservationResponse(result))
	}
}

func parseListFilter(r *http.Request) (internalreservations.ListFilter, error) {
	itemID, err := validators.ParseQueryUUID(r, "itemId")
	if err != nil {
		return internalreservations.ListFilter{}, err
	}
	orderID, err := validators.ParseQueryUUID(r, "orderId")
	if err != nil {
		return internalreservations.ListFilter{}, err
	}
	filter := internalreservations.ListFilter{ItemID: itemID, OrderID: orderID}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseReservationStatus(strings.ToUpper(raw))
		if err != nil {
			return internalreservations.ListFilter{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").WithDetails(map[string]any{"field": "status"})
		}
		filter.Status = &status
	}
	return filter, nil
}

func newReservationResponse(result *internalreservations.Result) reservationResponse {
	out := reservationResponse{}
	if result.Reservation != nil {
		out.Reservation = internalreservations.NewReservationDTO(*result.Reservation)
	}
	if result.Item != nil {
		item := internalinventory.NewItemDTO(*result.Item)
		out.Item = &item
	}
	if result.Movement != nil {
		movement := movements.NewMovementDTO(*result.Movement)
		out.Movement = &movement
	}
	return out
}
