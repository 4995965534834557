package handlers

import (
	"net/http"

	"fulfillment-svc/middleware"
	"fulfillment-svc/sweeps"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SweepHandler exposes the batch jobs to an external scheduler. Runs are
// synchronous; the caller gets the summary of what the run did.
type SweepHandler struct {
	carts     *sweeps.CartSweeper
	inventory *sweeps.InventorySweeper
	logger    *zap.Logger
}

func NewSweepHandler(carts *sweeps.CartSweeper, inventory *sweeps.InventorySweeper, logger *zap.Logger) *SweepHandler {
	return &SweepHandler{carts: carts, inventory: inventory, logger: logger}
}

func (h *SweepHandler) RunAbandonedCarts(c *gin.Context) {
	summary, err := h.carts.Run(c.Request.Context())
	if err != nil {
		h.logger.Error("Cart sweep failed",
			zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sweep failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *SweepHandler) RunInventory(c *gin.Context) {
	summary, err := h.inventory.Run(c.Request.Context())
	if err != nil {
		h.logger.Error("Inventory sweep failed",
			zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sweep failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}
