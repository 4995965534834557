package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"fulfillment-svc/middleware"
	"fulfillment-svc/models"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CartHandler records storefront cart snapshots. The abandonment sweep
// reads these rows; a cart that converts is deleted by the webhook path.
type CartHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewCartHandler(db *sql.DB, logger *zap.Logger) *CartHandler {
	return &CartHandler{db: db, logger: logger}
}

func (h *CartHandler) UpsertCart(c *gin.Context) {
	ctx, span := otel.Tracer("fulfillment-service").Start(c.Request.Context(), "UpsertCart")
	defer span.End()

	sessionID := c.Param("sessionId")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session ID is required"})
		return
	}
	span.SetAttributes(attribute.String("cart.session_id", sessionID))

	var req models.UpsertCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	itemsJSON, err := json.Marshal(req.Items)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cart items"})
		return
	}

	// Every snapshot resets the recovery flag so a shopper who comes back
	// and keeps shopping becomes eligible for a fresh reminder cycle.
	_, err = h.db.ExecContext(ctx,
		"INSERT INTO carts (session_id, customer_email, items, total, recovery_email_sent, last_updated) VALUES ($1, $2, $3, $4, FALSE, CURRENT_TIMESTAMP) ON CONFLICT (session_id) DO UPDATE SET customer_email = EXCLUDED.customer_email, items = EXCLUDED.items, total = EXCLUDED.total, recovery_email_sent = FALSE, last_updated = CURRENT_TIMESTAMP",
		sessionID, req.CustomerEmail, itemsJSON, req.Total,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to upsert cart",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "saved": true})
}
