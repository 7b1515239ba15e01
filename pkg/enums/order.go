package enums

import "fmt"

// OrderStatus mirrors the order lifecycle owned by the storefront.
type OrderStatus string

const (
	OrderStatusPending     OrderStatus = "PENDING"
	OrderStatusAdminReview OrderStatus = "ADMIN_REVIEW"
	OrderStatusConfirmed   OrderStatus = "CONFIRMED"
	OrderStatusShipped     OrderStatus = "SHIPPED"
	OrderStatusDelivered   OrderStatus = "DELIVERED"
	OrderStatusCanceled    OrderStatus = "CANCELED"
	OrderStatusReturned    OrderStatus = "RETURNED"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusAdminReview,
	OrderStatusConfirmed,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCanceled,
	OrderStatusReturned,
}

func (s OrderStatus) String() string {
	return string(s)
}

func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

// ReviewStatus tracks an admin review of an affiliate order.
type ReviewStatus string

const (
	ReviewStatusPending             ReviewStatus = "PENDING"
	ReviewStatusApproved            ReviewStatus = "APPROVED"
	ReviewStatusRejected            ReviewStatus = "REJECTED"
	ReviewStatusForwardedToMerchant ReviewStatus = "FORWARDED_TO_MERCHANT"
)

var validReviewStatuses = []ReviewStatus{
	ReviewStatusPending,
	ReviewStatusApproved,
	ReviewStatusRejected,
	ReviewStatusForwardedToMerchant,
}

func (s ReviewStatus) String() string {
	return string(s)
}

func (s ReviewStatus) IsValid() bool {
	for _, candidate := range validReviewStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsDecision reports whether the status is a reviewer outcome.
func (s ReviewStatus) IsDecision() bool {
	return s == ReviewStatusApproved || s == ReviewStatusRejected || s == ReviewStatusForwardedToMerchant
}

// ParseReviewStatus converts raw input into ReviewStatus.
func ParseReviewStatus(value string) (ReviewStatus, error) {
	for _, candidate := range validReviewStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid review status %q", value)
}
