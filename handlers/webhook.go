package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"fulfillment-svc/cache"
	"fulfillment-svc/middleware"
	"fulfillment-svc/models"
	"fulfillment-svc/notifier"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const eventPaymentCompleted = "payment_completed"

// errDuplicateEvent marks a payment event whose order already exists.
// Replays are acknowledged, never reprocessed.
var errDuplicateEvent = errors.New("payment event already processed")

type WebhookHandler struct {
	db       *sql.DB
	rdb      *redis.Client
	notifier *notifier.Notifier
	logger   *zap.Logger
}

func NewWebhookHandler(db *sql.DB, rdb *redis.Client, n *notifier.Notifier, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{db: db, rdb: rdb, notifier: n, logger: logger}
}

// HandlePayment authenticates an inbound payment-processor event and, for
// payment_completed, creates the order it reports. Every other event type
// is acknowledged and ignored, since the sender retries on non-2xx.
func (h *WebhookHandler) HandlePayment(c *gin.Context) {
	ctx, span := otel.Tracer("fulfillment-service").Start(c.Request.Context(), "HandlePaymentWebhook")
	defer span.End()

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to read request body"})
		return
	}

	if !VerifyWebhookSignature(body, c.GetHeader("X-Webhook-Signature"), os.Getenv("WEBHOOK_SECRET")) {
		span.SetAttributes(attribute.Bool("webhook.signature_valid", false))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	var event models.PaymentWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed event payload"})
		return
	}

	span.SetAttributes(attribute.String("webhook.event_type", event.Type))

	if event.Type != eventPaymentCompleted {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if event.Reference == "" || event.Customer.Email == "" || len(event.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Event is missing reference, customer email or items"})
		return
	}

	span.SetAttributes(attribute.String("payment.reference", event.Reference))

	if h.rdb != nil && cache.IsPaymentEventSeen(ctx, h.rdb, event.Reference) {
		h.logger.Info("Duplicate payment event ignored",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("reference", event.Reference),
		)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	order, err := h.createFromPayment(ctx, event)
	if err != nil {
		if errors.Is(err, errDuplicateEvent) {
			h.logger.Info("Duplicate payment event ignored",
				zap.String("trace_id", middleware.GetTraceID(ctx)),
				zap.String("reference", event.Reference),
			)
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to process payment event",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("reference", event.Reference),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	// The order is committed; a notification failure must not turn this
	// response into a retryable error.
	if err := h.notifier.Send(ctx, event.Customer.Email, models.NotificationOrderConfirmation, map[string]any{
		"order_number": order.OrderNumber,
		"total":        order.Total,
		"item_count":   len(event.Items),
	}); err != nil {
		middleware.RecordNotificationPublished(string(models.NotificationOrderConfirmation), "error")
	} else {
		middleware.RecordNotificationPublished(string(models.NotificationOrderConfirmation), "success")
	}

	if h.rdb != nil {
		if err := cache.MarkPaymentEventSeen(ctx, h.rdb, event.Reference); err != nil {
			h.logger.Warn("Failed to mark payment event in cache", zap.Error(err))
		}
	}

	middleware.RecordOrderCreated()
	span.SetAttributes(attribute.Int("order.id", order.ID))
	h.logger.Info("Order created from payment event",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("order_number", order.OrderNumber),
		zap.String("reference", event.Reference),
	)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// createFromPayment runs the ordered side effects of a verified payment:
// find-or-create the customer, record the coupon redemption, create the
// order with its item snapshots, decrement stock, and retire the source
// cart. The order, items, stock and cart land in one transaction.
func (h *WebhookHandler) createFromPayment(ctx context.Context, event models.PaymentWebhookEvent) (*models.Order, error) {
	var existingID int
	err := h.db.QueryRowContext(ctx,
		"SELECT id FROM orders WHERE payment_reference = $1",
		event.Reference,
	).Scan(&existingID)
	if err == nil {
		return nil, errDuplicateEvent
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check payment reference: %w", err)
	}

	var customerID int
	err = h.db.QueryRowContext(ctx,
		"INSERT INTO customers (email, name) VALUES ($1, $2) ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name RETURNING id",
		event.Customer.Email, event.Customer.Name,
	).Scan(&customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert customer: %w", err)
	}

	var couponCode *string
	if event.CouponCode != "" {
		code := NormalizeCouponCode(event.CouponCode)
		couponCode = &code
		h.recordRedemption(ctx, code, event.Reference)
	}

	order := models.Order{
		OrderNumber:        generateOrderNumber(event.Reference),
		CustomerID:         customerID,
		Status:             models.OrderStatusPaid,
		PaymentStatus:      models.PaymentStatusPaid,
		PaymentReference:   event.Reference,
		Subtotal:           event.Subtotal,
		Total:              event.Amount,
		CouponCode:         couponCode,
		ShippingName:       event.Shipping.Name,
		ShippingAddress:    event.Shipping.Address,
		ShippingCity:       event.Shipping.City,
		ShippingPostalCode: event.Shipping.PostalCode,
		ShippingCountry:    event.Shipping.Country,
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		"INSERT INTO orders (order_number, customer_id, status, payment_status, payment_reference, subtotal, total, coupon_code, shipping_name, shipping_address, shipping_city, shipping_postal_code, shipping_country) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) ON CONFLICT (payment_reference) DO NOTHING RETURNING id, created_at",
		order.OrderNumber, order.CustomerID, order.Status, order.PaymentStatus,
		order.PaymentReference, order.Subtotal, order.Total, order.CouponCode,
		order.ShippingName, order.ShippingAddress, order.ShippingCity,
		order.ShippingPostalCode, order.ShippingCountry,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// A concurrent delivery of the same event won the insert.
			return nil, errDuplicateEvent
		}
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	for _, item := range event.Items {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO order_items (order_id, product_id, product_name, image_url, unit_price, quantity) VALUES ($1, $2, $3, $4, $5, $6)",
			order.ID, item.ProductID, item.Name, item.ImageURL, item.UnitPrice, item.Quantity,
		); err != nil {
			return nil, fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	for _, item := range event.Items {
		if _, err := tx.ExecContext(ctx,
			"UPDATE products SET stock_quantity = GREATEST(stock_quantity - $1, 0), updated_at = CURRENT_TIMESTAMP WHERE id = $2 AND stock_quantity IS NOT NULL",
			item.Quantity, item.ProductID,
		); err != nil {
			return nil, fmt.Errorf("failed to decrement stock: %w", err)
		}
	}

	if event.CartSessionID != "" {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM carts WHERE session_id = $1",
			event.CartSessionID,
		); err != nil {
			return nil, fmt.Errorf("failed to delete converted cart: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}

	if h.rdb != nil {
		for _, item := range event.Items {
			if err := cache.InvalidateProduct(ctx, h.rdb, item.ProductID); err != nil {
				h.logger.Warn("Failed to invalidate product cache", zap.Int("product_id", item.ProductID), zap.Error(err))
			}
		}
	}

	return &order, nil
}

// recordRedemption increments the coupon's usage counter in one guarded
// statement, so concurrent redemptions of a near-exhausted coupon can never
// pass max_uses. A failure is logged and the order proceeds without it.
func (h *WebhookHandler) recordRedemption(ctx context.Context, code, reference string) {
	res, err := h.db.ExecContext(ctx,
		"UPDATE coupons SET current_uses = current_uses + 1 WHERE code = $1 AND is_active = TRUE AND (max_uses IS NULL OR current_uses < max_uses)",
		code,
	)
	if err != nil {
		h.logger.Error("Failed to record coupon redemption",
			zap.String("coupon", code),
			zap.String("reference", reference),
			zap.Error(err),
		)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		h.logger.Warn("Coupon redemption not recorded",
			zap.String("coupon", code),
			zap.String("reference", reference),
		)
		return
	}
	middleware.RecordCouponRedeemed()
}

// VerifyWebhookSignature checks the hex HMAC-SHA256 of body against the
// shared secret. An unset secret rejects everything.
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func generateOrderNumber(reference string) string {
	suffix := strings.ToUpper(strings.TrimPrefix(reference, "evt_"))
	if len(suffix) > 8 {
		suffix = suffix[len(suffix)-8:]
	}
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}
