package sweeps

import (
	"context"
	"database/sql"
	"os"
	"strings"

	"fulfillment-svc/middleware"
	"fulfillment-svc/models"
	"fulfillment-svc/notifier"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// InventorySweeper scans tracked products at or below the low-stock
// threshold and sends one digest per alert recipient. Products with NULL
// stock are untracked and never alert.
type InventorySweeper struct {
	db         *sql.DB
	notifier   *notifier.Notifier
	recipients []string
	logger     *zap.Logger
}

func NewInventorySweeper(db *sql.DB, n *notifier.Notifier, logger *zap.Logger) *InventorySweeper {
	var recipients []string
	for _, r := range strings.Split(os.Getenv("ALERT_RECIPIENTS"), ",") {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	return &InventorySweeper{db: db, notifier: n, recipients: recipients, logger: logger}
}

type InventorySweepSummary struct {
	LowStockProducts int `json:"low_stock_products"`
	AlertsSent       int `json:"alerts_sent"`
	Failures         int `json:"failures"`
}

func (s *InventorySweeper) Run(ctx context.Context) (InventorySweepSummary, error) {
	ctx, span := otel.Tracer("fulfillment-service").Start(ctx, "InventorySweep")
	defer span.End()

	var summary InventorySweepSummary

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, stock_quantity FROM products WHERE stock_quantity IS NOT NULL AND stock_quantity <= $1 ORDER BY stock_quantity ASC",
		models.LowStockThreshold,
	)
	if err != nil {
		span.RecordError(err)
		return summary, err
	}
	defer rows.Close()

	var entries []map[string]any
	for rows.Next() {
		var (
			id       int
			name     string
			quantity int
		)
		if err := rows.Scan(&id, &name, &quantity); err != nil {
			s.logger.Error("Failed to scan product row", zap.Error(err))
			summary.Failures++
			continue
		}
		level := models.StockLevelLow
		if quantity == 0 {
			level = models.StockLevelOutOfStock
		}
		entries = append(entries, map[string]any{
			"product_id":     id,
			"name":           name,
			"stock_quantity": quantity,
			"level":          level,
		})
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return summary, err
	}
	summary.LowStockProducts = len(entries)

	if len(entries) == 0 {
		return summary, nil
	}
	if len(s.recipients) == 0 {
		s.logger.Warn("Low stock detected but no alert recipients configured",
			zap.Int("products", len(entries)))
		return summary, nil
	}

	payload := map[string]any{"products": entries}
	for _, recipient := range s.recipients {
		if err := s.notifier.Send(ctx, recipient, models.NotificationLowStockAlert, payload); err != nil {
			middleware.RecordNotificationPublished(string(models.NotificationLowStockAlert), "error")
			summary.Failures++
			continue
		}
		middleware.RecordNotificationPublished(string(models.NotificationLowStockAlert), "success")
		summary.AlertsSent++
	}

	middleware.RecordSweepProcessed("inventory", summary.LowStockProducts)
	s.logger.Info("Inventory sweep finished",
		zap.Int("low_stock_products", summary.LowStockProducts),
		zap.Int("alerts_sent", summary.AlertsSent),
		zap.Int("failures", summary.Failures),
	)
	return summary, nil
}
