package models

import "time"

type DiscountType string

const (
	DiscountTypeFixed      DiscountType = "fixed"
	DiscountTypePercentage DiscountType = "percentage"
)

type Coupon struct {
	ID                int          `json:"id"`
	Code              string       `json:"code"`
	DiscountType      DiscountType `json:"discount_type"`
	DiscountValue     float64      `json:"discount_value"`
	MaxUses           *int         `json:"max_uses,omitempty"`
	CurrentUses       int          `json:"current_uses"`
	MinOrderAmount    *float64     `json:"min_order_amount,omitempty"`
	MaxDiscountAmount *float64     `json:"max_discount_amount,omitempty"`
	StartDate         *time.Time   `json:"start_date,omitempty"`
	EndDate           *time.Time   `json:"end_date,omitempty"`
	IsActive          bool         `json:"is_active"`
	CreatedAt         time.Time    `json:"created_at"`
}

type ValidateCouponRequest struct {
	Code       string  `json:"code" binding:"required"`
	OrderTotal float64 `json:"order_total" binding:"required,gt=0"`
}

type ValidateCouponResponse struct {
	Coupon     CouponSummary `json:"coupon"`
	Discount   float64       `json:"discount"`
	FinalTotal float64       `json:"final_total"`
}

// CouponSummary is the shopper-facing slice of a coupon. Usage counters and
// validity windows stay server-side.
type CouponSummary struct {
	Code          string       `json:"code"`
	DiscountType  DiscountType `json:"discount_type"`
	DiscountValue float64      `json:"discount_value"`
}
