package reviews

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockhold-backend/pkg/db/models"
	"github.com/angelmondragon/stockhold-backend/pkg/enums"
)

// ProcessInput is the raw process-affiliate-order request. Fields arrive as
// strings so malformed ids surface as validation errors.
type ProcessInput struct {
	OrderID          string `json:"orderId"`
	AffiliateStoreID string `json:"affiliateStoreId"`
	MerchantID       string `json:"merchantId"`
}

// ProcessResult identifies the review gating the order. Created is false when
// an earlier call already opened it.
type ProcessResult struct {
	ReviewID uuid.UUID
	Created  bool
}

// DecideInput carries an admin decision.
type DecideInput struct {
	ReviewID   uuid.UUID
	Decision   enums.ReviewStatus
	AdminNotes *string
	ReviewerID *uuid.UUID
}

// DecideResult reports the stored review and the order status it produced.
type DecideResult struct {
	Review               ReviewDTO         `json:"review"`
	OrderStatus          enums.OrderStatus `json:"order_status"`
	ReleasedReservations int               `json:"released_reservations"`
}

// ListParams are the controller-facing list inputs.
type ListParams struct {
	Status *enums.ReviewStatus
	Limit  int
	Cursor string
}

// ListResult wraps a page of reviews and the cursor for the next one.
type ListResult struct {
	Items  []ReviewDTO `json:"items"`
	Cursor string      `json:"cursor"`
}

// ReviewDTO is the API representation of an admin order review.
type ReviewDTO struct {
	ID               uuid.UUID          `json:"id"`
	OrderID          uuid.UUID          `json:"order_id"`
	AffiliateStoreID uuid.UUID          `json:"affiliate_store_id"`
	MerchantID       uuid.UUID          `json:"merchant_id"`
	Status           enums.ReviewStatus `json:"status"`
	AdminNotes       *string            `json:"admin_notes,omitempty"`
	ReviewedAt       *time.Time         `json:"reviewed_at,omitempty"`
	ReviewedBy       *uuid.UUID         `json:"reviewed_by,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

func NewReviewDTO(review models.AdminOrderReview) ReviewDTO {
	return ReviewDTO{
		ID:               review.ID,
		OrderID:          review.OrderID,
		AffiliateStoreID: review.AffiliateStoreID,
		MerchantID:       review.MerchantID,
		Status:           review.Status,
		AdminNotes:       review.AdminNotes,
		ReviewedAt:       review.ReviewedAt,
		ReviewedBy:       review.ReviewedBy,
		CreatedAt:        review.CreatedAt,
		UpdatedAt:        review.UpdatedAt,
	}
}
