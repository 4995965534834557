package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"fulfillment-svc/lifecycle"
	"fulfillment-svc/middleware"
	"fulfillment-svc/models"
	"fulfillment-svc/notifier"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type OrderHandler struct {
	db       *sql.DB
	notifier *notifier.Notifier
	logger   *zap.Logger
}

func NewOrderHandler(db *sql.DB, n *notifier.Notifier, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{db: db, notifier: n, logger: logger}
}

const selectOrderByID = "SELECT o.id, o.order_number, o.customer_id, c.email, o.status, o.payment_status, o.payment_reference, o.subtotal, o.total, o.coupon_code, o.shipping_name, o.shipping_address, o.shipping_city, o.shipping_postal_code, o.shipping_country, o.tracking_number, o.tracking_url, o.supplier_order_id, o.supplier_order_url, o.admin_notes, o.created_at, o.shipped_at, o.delivered_at, o.updated_at FROM orders o JOIN customers c ON c.id = o.customer_id WHERE o.id = $1"

func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, span := otel.Tracer("fulfillment-service").Start(c.Request.Context(), "GetOrder")
	defer span.End()

	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}
	span.SetAttributes(attribute.Int("order.id", orderID))

	order, err := h.loadOrder(c, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to get order", zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	rows, err := h.db.QueryContext(ctx,
		"SELECT id, order_id, product_id, product_name, image_url, unit_price, quantity FROM order_items WHERE order_id = $1 ORDER BY id",
		orderID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to get order items", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.ImageURL, &item.UnitPrice, &item.Quantity); err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to scan order item", zap.Error(err))
			continue
		}
		order.Items = append(order.Items, item)
	}

	c.JSON(http.StatusOK, order)
}

// UpdateOrder applies an admin's partial edit. Tracking, supplier and note
// fields update independently of status; a status change is routed through
// the lifecycle transition table and executes only the effects the
// transition owes, so re-applying a status can never re-stamp a timestamp
// or re-send a notification.
func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	ctx, span := otel.Tracer("fulfillment-service").Start(c.Request.Context(), "UpdateOrder")
	defer span.End()

	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}
	span.SetAttributes(attribute.Int("order.id", orderID))

	var req models.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.loadOrder(c, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to load order", zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	// A delivered order is immutable except for administrative notes.
	if order.Status == models.OrderStatusDelivered && touchesFulfillmentFields(req) {
		c.JSON(http.StatusConflict, gin.H{"error": "Delivered orders only accept note edits"})
		return
	}

	if req.TrackingNumber != nil {
		order.TrackingNumber = req.TrackingNumber
	}
	if req.TrackingURL != nil {
		order.TrackingURL = req.TrackingURL
	}
	if req.SupplierOrderID != nil {
		order.SupplierOrderID = req.SupplierOrderID
	}
	if req.SupplierOrderURL != nil {
		order.SupplierOrderURL = req.SupplierOrderURL
	}
	if req.AdminNotes != nil {
		order.AdminNotes = req.AdminNotes
	}

	notifyShipped := false
	if req.Status != nil {
		next := models.OrderStatus(*req.Status)
		effects, err := lifecycle.Plan(order, next)
		if err != nil {
			if errors.Is(err, lifecycle.ErrUnknownStatus) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown order status", "field": "status"})
				return
			}
			c.JSON(http.StatusConflict, gin.H{
				"error": "Cannot transition order from " + string(order.Status) + " to " + string(next),
				"field": "status",
			})
			return
		}

		now := time.Now().UTC()
		order.Status = next
		for _, effect := range effects {
			switch effect {
			case lifecycle.EffectStampShippedAt:
				order.ShippedAt = &now
			case lifecycle.EffectStampDeliveredAt:
				order.DeliveredAt = &now
			case lifecycle.EffectNotifyShipped:
				notifyShipped = true
			}
		}
	}

	_, err = h.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, tracking_number = $2, tracking_url = $3, supplier_order_id = $4, supplier_order_url = $5, admin_notes = $6, shipped_at = $7, delivered_at = $8, updated_at = CURRENT_TIMESTAMP WHERE id = $9",
		order.Status, order.TrackingNumber, order.TrackingURL,
		order.SupplierOrderID, order.SupplierOrderURL, order.AdminNotes,
		order.ShippedAt, order.DeliveredAt, order.ID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to update order", zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if notifyShipped {
		payload := map[string]any{
			"order_number":    order.OrderNumber,
			"tracking_number": *order.TrackingNumber,
		}
		if order.TrackingURL != nil {
			payload["tracking_url"] = *order.TrackingURL
		}
		// The update is committed; a failed notification is logged only.
		if err := h.notifier.Send(ctx, order.CustomerEmail, models.NotificationOrderShipped, payload); err != nil {
			middleware.RecordNotificationPublished(string(models.NotificationOrderShipped), "error")
		} else {
			middleware.RecordNotificationPublished(string(models.NotificationOrderShipped), "success")
		}
	}

	h.logger.Info("Order updated",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("order_number", order.OrderNumber),
		zap.String("status", string(order.Status)),
	)
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) loadOrder(c *gin.Context, orderID int) (*models.Order, error) {
	var order models.Order
	err := h.db.QueryRowContext(c.Request.Context(), selectOrderByID, orderID).Scan(
		&order.ID, &order.OrderNumber, &order.CustomerID, &order.CustomerEmail,
		&order.Status, &order.PaymentStatus, &order.PaymentReference,
		&order.Subtotal, &order.Total, &order.CouponCode,
		&order.ShippingName, &order.ShippingAddress, &order.ShippingCity,
		&order.ShippingPostalCode, &order.ShippingCountry,
		&order.TrackingNumber, &order.TrackingURL,
		&order.SupplierOrderID, &order.SupplierOrderURL, &order.AdminNotes,
		&order.CreatedAt, &order.ShippedAt, &order.DeliveredAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func touchesFulfillmentFields(req models.UpdateOrderRequest) bool {
	if req.Status != nil && models.OrderStatus(*req.Status) != models.OrderStatusDelivered {
		return true
	}
	return req.TrackingNumber != nil || req.TrackingURL != nil ||
		req.SupplierOrderID != nil || req.SupplierOrderURL != nil
}
