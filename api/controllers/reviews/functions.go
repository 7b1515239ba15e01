package reviews

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockhold-backend/api/validators"
	internalreviews "github.com/angelmondragon/stockhold-backend/internal/reviews"
	pkgerrors "github.com/angelmondragon/stockhold-backend/pkg/errors"
	"github.com/angelmondragon/stockhold-backend/pkg/logger"
)

type functionResponse struct {
	Success  bool       `json:"success"`
	ReviewID *uuid.UUID `json:"reviewId,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// ProcessAffiliateOrder opens an admin review for an affiliate order and moves
// the order to ADMIN_REVIEW. It answers with the function contract
// {success, reviewId} rather than the API envelope.
func ProcessAffiliateOrder(svc internalreviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			WriteFunctionError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "review service unavailable"))
			return
		}

		var payload internalreviews.ProcessInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			WriteFunctionError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ProcessAffiliateOrder(r.Context(), payload)
		if err != nil {
			WriteFunctionError(r.Context(), logg, w, err)
			return
		}

		writeFunctionJSON(w, http.StatusOK, functionResponse{Success: true, ReviewID: &result.ReviewID})
	}
}

// WriteFunctionError renders err as {success:false, error}. Client faults
// answer 400 apart from auth and rate limit rejections, which keep their own
// status, as do server faults.
func WriteFunctionError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	if meta.MessageAllowed && typed.Message() != "" {
		msg = typed.Message()
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{"error_code": string(typed.Code()), "reason": msg})
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "affiliate_order.failed", err)
		} else {
			logg.Warn(ctx, "affiliate_order.rejected")
		}
	}

	writeFunctionJSON(w, functionStatus(meta.HTTPStatus), functionResponse{Success: false, Error: msg})
}

func functionStatus(status int) int {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return status
	}
	if status >= http.StatusInternalServerError {
		return status
	}
	return http.StatusBadRequest
}

func writeFunctionJSON(w http.ResponseWriter, status int, payload functionResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
