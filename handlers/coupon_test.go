package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"fulfillment-svc/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

const selectCouponSQL = "SELECT id, code, discount_type, discount_value, max_uses, current_uses, min_order_amount, max_discount_amount, start_date, end_date, is_active FROM coupons WHERE code = $1"

var couponColumns = []string{"id", "code", "discount_type", "discount_value", "max_uses", "current_uses", "min_order_amount", "max_discount_amount", "start_date", "end_date", "is_active"}

func setupCouponTest(t *testing.T) (sqlmock.Sqlmock, *gin.Engine, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	handler := NewCouponHandler(db, zaptest.NewLogger(t))

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/coupons/validate", handler.Validate)

	return mock, router, func() { db.Close() }
}

func validateCoupon(router *gin.Engine, code string, total float64) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]any{"code": code, "order_total": total})
	req := httptest.NewRequest(http.MethodPost, "/coupons/validate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestValidateCoupon_PercentageCapped(t *testing.T) {
	mock, router, cleanup := setupCouponTest(t)
	defer cleanup()

	maxDiscount := 15.0
	mock.ExpectQuery(regexp.QuoteMeta(selectCouponSQL)).
		WithArgs("save20").
		WillReturnRows(sqlmock.NewRows(couponColumns).
			AddRow(1, "save20", "percentage", 20.0, nil, 0, nil, maxDiscount, nil, nil, true))

	w := validateCoupon(router, "SAVE20", 100)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var resp models.ValidateCouponResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Discount != 15 {
		t.Errorf("Expected discount 15 (capped), got %v", resp.Discount)
	}
	if resp.FinalTotal != 85 {
		t.Errorf("Expected final total 85, got %v", resp.FinalTotal)
	}

	// The only statement expected is the SELECT above: validation must
	// never touch the usage counter.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestValidateCoupon_NotFound(t *testing.T) {
	mock, router, cleanup := setupCouponTest(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(selectCouponSQL)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	w := validateCoupon(router, "missing", 50)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestValidateCoupon_UsageLimitReached(t *testing.T) {
	mock, router, cleanup := setupCouponTest(t)
	defer cleanup()

	maxUses := 100
	mock.ExpectQuery(regexp.QuoteMeta(selectCouponSQL)).
		WithArgs("popular").
		WillReturnRows(sqlmock.NewRows(couponColumns).
			AddRow(2, "popular", "fixed", 5.0, maxUses, 100, nil, nil, nil, nil, true))

	w := validateCoupon(router, "popular", 50)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["error"] != "Coupon usage limit reached" {
		t.Errorf("Unexpected rejection reason: %q", resp["error"])
	}
}

func TestValidateCoupon_BelowMinimumOrder(t *testing.T) {
	mock, router, cleanup := setupCouponTest(t)
	defer cleanup()

	minOrder := 50.0
	mock.ExpectQuery(regexp.QuoteMeta(selectCouponSQL)).
		WithArgs("big10").
		WillReturnRows(sqlmock.NewRows(couponColumns).
			AddRow(3, "big10", "fixed", 10.0, nil, 0, minOrder, nil, nil, nil, true))

	w := validateCoupon(router, "big10", 30)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestComputeDiscount(t *testing.T) {
	cap15 := 15.0
	tests := []struct {
		name       string
		coupon     models.Coupon
		orderTotal float64
		want       float64
	}{
		{"fixed", models.Coupon{DiscountType: models.DiscountTypeFixed, DiscountValue: 10}, 100, 10},
		{"fixed exceeds total", models.Coupon{DiscountType: models.DiscountTypeFixed, DiscountValue: 10}, 7, 7},
		{"percentage", models.Coupon{DiscountType: models.DiscountTypePercentage, DiscountValue: 20}, 50, 10},
		{"percentage capped", models.Coupon{DiscountType: models.DiscountTypePercentage, DiscountValue: 20, MaxDiscountAmount: &cap15}, 100, 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeDiscount(tt.coupon, tt.orderTotal); got != tt.want {
				t.Errorf("ComputeDiscount() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeCouponCode(t *testing.T) {
	if got := NormalizeCouponCode("  SaVe20 "); got != "save20" {
		t.Errorf("NormalizeCouponCode() = %q, want %q", got, "save20")
	}
}
