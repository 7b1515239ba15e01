package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold-backend/pkg/enums"
)

// Order is the projection of a storefront order this service transitions.
type Order struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber      string            `gorm:"column:order_number;not null"`
	AffiliateStoreID *uuid.UUID        `gorm:"column:affiliate_store_id;type:uuid;index"`
	MerchantID       *uuid.UUID        `gorm:"column:merchant_id;type:uuid;index"`
	Status           enums.OrderStatus `gorm:"column:status;not null"`
	Total            decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null;default:0"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// AdminOrderReview holds the admin gate in front of an affiliate order.
type AdminOrderReview struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          uuid.UUID          `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_admin_order_reviews_order"`
	AffiliateStoreID uuid.UUID          `gorm:"column:affiliate_store_id;type:uuid;not null"`
	MerchantID       uuid.UUID          `gorm:"column:merchant_id;type:uuid;not null"`
	Status           enums.ReviewStatus `gorm:"column:status;not null;index"`
	AdminNotes       *string            `gorm:"column:admin_notes"`
	ReviewedAt       *time.Time         `gorm:"column:reviewed_at"`
	ReviewedBy       *uuid.UUID         `gorm:"column:reviewed_by;type:uuid"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *AdminOrderReview) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
