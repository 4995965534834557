package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"fulfillment-svc/cache"
	"fulfillment-svc/middleware"
	"fulfillment-svc/models"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const productCacheTTL = 5 * time.Minute

// ProductHandler serves the storefront product read path. Reads are
// cache-aside; the webhook's stock decrements invalidate the entry.
type ProductHandler struct {
	db     *sql.DB
	rdb    *redis.Client
	logger *zap.Logger
}

func NewProductHandler(db *sql.DB, rdb *redis.Client, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{db: db, rdb: rdb, logger: logger}
}

type productResponse struct {
	models.Product
	StockLevel models.StockLevel `json:"stock_level"`
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	ctx, span := otel.Tracer("fulfillment-service").Start(c.Request.Context(), "GetProduct")
	defer span.End()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}
	span.SetAttributes(attribute.Int("product.id", id))

	if h.rdb != nil {
		if cached, err := cache.GetProduct(ctx, h.rdb, id); err == nil {
			var product models.Product
			if err := json.Unmarshal(cached, &product); err == nil {
				span.SetAttributes(attribute.Bool("cache.hit", true))
				c.JSON(http.StatusOK, productResponse{Product: product, StockLevel: product.StockLevel()})
				return
			}
		}
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	var product models.Product
	err = h.db.QueryRowContext(ctx,
		"SELECT id, name, price, base_price, stock_quantity, image_url, created_at, updated_at FROM products WHERE id = $1",
		id,
	).Scan(&product.ID, &product.Name, &product.Price, &product.BasePrice,
		&product.StockQuantity, &product.ImageURL, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to fetch product", zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if h.rdb != nil {
		if err := cache.SetProduct(ctx, h.rdb, id, product, productCacheTTL); err != nil {
			h.logger.Warn("Failed to cache product", zap.Int("product_id", id), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, productResponse{Product: product, StockLevel: product.StockLevel()})
}
