package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fulfillment-svc/middleware"
	"fulfillment-svc/models"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type CouponHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewCouponHandler(db *sql.DB, logger *zap.Logger) *CouponHandler {
	return &CouponHandler{db: db, logger: logger}
}

// Validate checks a coupon against an order total. It is strictly
// read-only: a shopper probing a code never consumes a use.
func (h *CouponHandler) Validate(c *gin.Context) {
	ctx, span := otel.Tracer("fulfillment-service").Start(c.Request.Context(), "ValidateCoupon")
	defer span.End()

	var req models.ValidateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	code := NormalizeCouponCode(req.Code)
	span.SetAttributes(attribute.String("coupon.code", code))

	var coupon models.Coupon
	err := h.db.QueryRowContext(ctx,
		"SELECT id, code, discount_type, discount_value, max_uses, current_uses, min_order_amount, max_discount_amount, start_date, end_date, is_active FROM coupons WHERE code = $1",
		code,
	).Scan(
		&coupon.ID, &coupon.Code, &coupon.DiscountType, &coupon.DiscountValue,
		&coupon.MaxUses, &coupon.CurrentUses, &coupon.MinOrderAmount,
		&coupon.MaxDiscountAmount, &coupon.StartDate, &coupon.EndDate, &coupon.IsActive,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Coupon not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to look up coupon", zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if reason := rejectCoupon(coupon, req.OrderTotal, time.Now()); reason != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": reason})
		return
	}

	discount := ComputeDiscount(coupon, req.OrderTotal)
	finalTotal := req.OrderTotal - discount
	if finalTotal < 0 {
		finalTotal = 0
	}

	span.SetAttributes(attribute.Float64("coupon.discount", discount))
	c.JSON(http.StatusOK, models.ValidateCouponResponse{
		Coupon: models.CouponSummary{
			Code:          coupon.Code,
			DiscountType:  coupon.DiscountType,
			DiscountValue: coupon.DiscountValue,
		},
		Discount:   discount,
		FinalTotal: finalTotal,
	})
}

func NormalizeCouponCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// rejectCoupon returns a shopper-facing rejection reason, or "" when the
// coupon applies. Checks run in a fixed order so the message is stable.
func rejectCoupon(coupon models.Coupon, orderTotal float64, now time.Time) string {
	if !coupon.IsActive {
		return "Coupon is no longer active"
	}
	if coupon.StartDate != nil && now.Before(*coupon.StartDate) {
		return "Coupon is not valid yet"
	}
	if coupon.EndDate != nil && now.After(*coupon.EndDate) {
		return "Coupon has expired"
	}
	if coupon.MaxUses != nil && coupon.CurrentUses >= *coupon.MaxUses {
		return "Coupon usage limit reached"
	}
	if coupon.MinOrderAmount != nil && orderTotal < *coupon.MinOrderAmount {
		return fmt.Sprintf("Minimum order amount of %.2f required", *coupon.MinOrderAmount)
	}
	return ""
}

// ComputeDiscount applies the coupon to orderTotal. Percentage discounts
// clamp to the coupon's cap when one is set.
func ComputeDiscount(coupon models.Coupon, orderTotal float64) float64 {
	var discount float64
	switch coupon.DiscountType {
	case models.DiscountTypePercentage:
		discount = orderTotal * coupon.DiscountValue / 100
		if coupon.MaxDiscountAmount != nil && discount > *coupon.MaxDiscountAmount {
			discount = *coupon.MaxDiscountAmount
		}
	default:
		discount = coupon.DiscountValue
	}
	if discount > orderTotal {
		discount = orderTotal
	}
	return discount
}
