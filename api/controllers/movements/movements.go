package movements

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockhold-backend/api/middleware"
	"github.com/angelmondragon/stockhold-backend/api/responses"
	"github.com/angelmondragon/stockhold-backend/api/validators"
	internalinventory "github.com/angelmondragon/stockhold-backend/internal/inventory"
	internalmovements "github.com/angelmondragon/stockhold-backend/internal/movements"
	"github.com/angelmondragon/stockhold-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockhold-backend/pkg/errors"
	"github.com/angelmondragon/stockhold-backend/pkg/logger"
)

type recordMovementRequest struct {
	InventoryItemID uuid.UUID  `json:"inventory_item_id" validate:"required"`
	MovementType    string     `json:"movement_type" validate:"required"`
	Quantity        int        `json:"quantity" validate:"required,ne=0"`
	ReferenceType   *string    `json:"reference_type,omitempty"`
	ReferenceID     *uuid.UUID `json:"reference_id,omitempty"`
	Reason          *string    `json:"reason,omitempty" validate:"omitempty,max=256"`
	Notes           *string    `json:"notes,omitempty" validate:"omitempty,max=1024"`
}

type transferRequest struct {
	FromItemID uuid.UUID `json:"from_item_id" validate:"required"`
	ToItemID   uuid.UUID `json:"to_item_id" validate:"required,nefield=FromItemID"`
	Quantity   int       `json:"quantity" validate:"required,gt=0"`
	Notes      *string   `json:"notes,omitempty" validate:"omitempty,max=1024"`
}

type cycleCountRequest struct {
	CountedQuantity *int    `json:"counted_quantity" validate:"required,gte=0"`
	ExpectedVersion *int64  `json:"expected_version,omitempty" validate:"omitempty,gt=0"`
	Notes           *string `json:"notes,omitempty" validate:"omitempty,max=1024"`
}

type returnRequest struct {
	Quantity int     `json:"quantity" validate:"required,gt=0"`
	Reason   string  `json:"reason" validate:"required"`
	Notes    *string `json:"notes,omitempty" validate:"omitempty,max=1024"`
}

type movementResponse struct {
	Movement *internalmovements.MovementDTO `json:"movement"`
	Item     *internalinventory.ItemDTO     `json:"item,omitempty"`
}

type transferResponse struct {
	Out movementResponse `json:"out"`
	In  movementResponse `json:"in"`
}

// Record implements recordMovement for IN, OUT and ADJUST movements.
func Record(svc internalmovements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "movement service unavailable"))
			return
		}

		var payload recordMovementRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		movementType, err := enums.ParseMovementType(strings.ToUpper(strings.TrimSpace(payload.MovementType)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid movement_type").WithDetails(map[string]any{"field": "movement_type"}))
			return
		}

		input := internalmovements.RecordInput{
			ItemID:      payload.InventoryItemID,
			Type:        movementType,
			Quantity:    payload.Quantity,
			ReferenceID: payload.ReferenceID,
			Reason:      payload.Reason,
			Notes:       payload.Notes,
			PerformedBy: middleware.ActorIDFromContext(r.Context()),
		}
		if payload.ReferenceType != nil {
			refType, err := enums.ParseMovementReferenceType(strings.TrimSpace(*payload.ReferenceType))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reference_type").WithDetails(map[string]any{"field": "reference_type"}))
				return
			}
			input.ReferenceType = &refType
		}

		result, err := svc.Record(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newMovementResponse(*result))
	}
}

// Transfer moves stock between two items as a paired OUT and IN.
func Transfer(svc internalmovements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "movement service unavailable"))
			return
		}

		var payload transferRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Transfer(r.Context(), internalmovements.TransferInput{
			FromItemID:  payload.FromItemID,
			ToItemID:    payload.ToItemID,
			Quantity:    payload.Quantity,
			Notes:       payload.Notes,
			PerformedBy: middleware.ActorIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, transferResponse{
			Out: newMovementResponse(result.Out),
			In:  newMovementResponse(result.In),
		})
	}
}

func CycleCount(svc internalmovements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "movement service unavailable"))
			return
		}

		itemID, err := validators.ParsePathUUID(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cycleCountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CycleCount(r.Context(), internalmovements.CycleCountInput{
			ItemID:          itemID,
			CountedQuantity: *payload.CountedQuantity,
			ExpectedVersion: payload.ExpectedVersion,
			Notes:           payload.Notes,
			PerformedBy:     middleware.ActorIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newMovementResponse(*result))
	}
}

func Return(svc internalmovements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "movement service unavailable"))
			return
		}

		itemID, err := validators.ParsePathUUID(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload returnRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reason, err := enums.ParseReturnReason(strings.ToLower(strings.TrimSpace(payload.Reason)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reason").WithDetails(map[string]any{"field": "reason"}))
			return
		}

		result, err := svc.Return(r.Context(), internalmovements.ReturnInput{
			ItemID:      itemID,
			Quantity:    payload.Quantity,
			Reason:      reason,
			Notes:       payload.Notes,
			PerformedBy: middleware.ActorIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newMovementResponse(*result))
	}
}

func newMovementResponse(result internalmovements.Result) movementResponse {
	out := movementResponse{}
	if result.Movement != nil {
		movement := internalmovements.NewMovementDTO(*result.Movement)
		out.Movement = &movement
	}
	if result.Item != nil {
		item := internalinventory.NewItemDTO(*result.Item)
		out.Item = &item
	}
	return out
}
