package sweeps

import (
	"context"
	"database/sql"
	"time"

	"fulfillment-svc/middleware"
	"fulfillment-svc/models"
	"fulfillment-svc/notifier"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

const comebackCouponCode = "COMEBACK10"

// CartSweeper walks stale carts in two age bands. Carts idle for 1-24
// hours get a first reminder, guarded by the recovery_email_sent flag so
// overlapping sweep runs cannot double-send. Carts idle for 24-48 hours
// that already got the reminder receive a follow-up with a discount code.
type CartSweeper struct {
	db       *sql.DB
	notifier *notifier.Notifier
	logger   *zap.Logger
}

func NewCartSweeper(db *sql.DB, n *notifier.Notifier, logger *zap.Logger) *CartSweeper {
	return &CartSweeper{db: db, notifier: n, logger: logger}
}

type CartSweepSummary struct {
	FirstReminders int `json:"first_reminders"`
	FollowUps      int `json:"follow_ups"`
	Failures       int `json:"failures"`
}

func (s *CartSweeper) Run(ctx context.Context) (CartSweepSummary, error) {
	ctx, span := otel.Tracer("fulfillment-service").Start(ctx, "CartSweep")
	defer span.End()

	var summary CartSweepSummary
	now := time.Now().UTC()

	if err := s.firstReminders(ctx, now, &summary); err != nil {
		span.RecordError(err)
		return summary, err
	}
	if err := s.followUps(ctx, now, &summary); err != nil {
		span.RecordError(err)
		return summary, err
	}

	middleware.RecordSweepProcessed("abandoned_carts", summary.FirstReminders+summary.FollowUps)
	s.logger.Info("Cart sweep finished",
		zap.Int("first_reminders", summary.FirstReminders),
		zap.Int("follow_ups", summary.FollowUps),
		zap.Int("failures", summary.Failures),
	)
	return summary, nil
}

func (s *CartSweeper) firstReminders(ctx context.Context, now time.Time, summary *CartSweepSummary) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT session_id, customer_email, total FROM carts WHERE recovery_email_sent = FALSE AND customer_email IS NOT NULL AND last_updated >= $1 AND last_updated < $2",
		now.Add(-24*time.Hour), now.Add(-1*time.Hour),
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	type candidate struct {
		sessionID string
		email     string
		total     float64
	}
	var candidates []candidate
	for rows.Next() {
		var cand candidate
		if err := rows.Scan(&cand.sessionID, &cand.email, &cand.total); err != nil {
			s.logger.Error("Failed to scan cart row", zap.Error(err))
			summary.Failures++
			continue
		}
		candidates = append(candidates, cand)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, cand := range candidates {
		// Flip the flag first. The WHERE clause makes the flip the
		// single claim on this cart; losing the race means another run
		// already owns it and we skip the send.
		res, err := s.db.ExecContext(ctx,
			"UPDATE carts SET recovery_email_sent = TRUE WHERE session_id = $1 AND recovery_email_sent = FALSE",
			cand.sessionID,
		)
		if err != nil {
			s.logger.Error("Failed to claim cart", zap.String("session_id", cand.sessionID), zap.Error(err))
			summary.Failures++
			continue
		}
		affected, err := res.RowsAffected()
		if err != nil || affected == 0 {
			continue
		}

		payload := map[string]any{
			"session_id": cand.sessionID,
			"cart_total": cand.total,
		}
		if err := s.notifier.Send(ctx, cand.email, models.NotificationCartRecovery, payload); err != nil {
			middleware.RecordNotificationPublished(string(models.NotificationCartRecovery), "error")
			summary.Failures++
			continue
		}
		middleware.RecordNotificationPublished(string(models.NotificationCartRecovery), "success")
		summary.FirstReminders++
	}
	return nil
}

func (s *CartSweeper) followUps(ctx context.Context, now time.Time, summary *CartSweepSummary) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT session_id, customer_email, total FROM carts WHERE recovery_email_sent = TRUE AND customer_email IS NOT NULL AND last_updated >= $1 AND last_updated < $2",
		now.Add(-48*time.Hour), now.Add(-24*time.Hour),
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sessionID string
			email     string
			total     float64
		)
		if err := rows.Scan(&sessionID, &email, &total); err != nil {
			s.logger.Error("Failed to scan cart row", zap.Error(err))
			summary.Failures++
			continue
		}

		payload := map[string]any{
			"session_id":      sessionID,
			"cart_total":      total,
			"coupon_code":     comebackCouponCode,
			"discount_amount": total * 0.10,
		}
		if err := s.notifier.Send(ctx, email, models.NotificationCartRecoveryOffer, payload); err != nil {
			middleware.RecordNotificationPublished(string(models.NotificationCartRecoveryOffer), "error")
			summary.Failures++
			continue
		}
		middleware.RecordNotificationPublished(string(models.NotificationCartRecoveryOffer), "success")
		summary.FollowUps++
	}
	return rows.Err()
}
