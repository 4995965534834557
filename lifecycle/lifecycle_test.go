package lifecycle

import (
	"errors"
	"testing"
	"time"

	"fulfillment-svc/models"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name string
		from models.OrderStatus
		to   models.OrderStatus
		want bool
	}{
		{"forward step", models.OrderStatusPaid, models.OrderStatusProcessing, true},
		{"forward jump", models.OrderStatusPaid, models.OrderStatusShipped, true},
		{"pending to delivered jump", models.OrderStatusPending, models.OrderStatusDelivered, true},
		{"backward", models.OrderStatusShipped, models.OrderStatusProcessing, false},
		{"reapply same", models.OrderStatusShipped, models.OrderStatusShipped, true},
		{"cancel from pending", models.OrderStatusPending, models.OrderStatusCancelled, true},
		{"refund from shipped", models.OrderStatusShipped, models.OrderStatusRefunded, true},
		{"cancel from cancelled", models.OrderStatusCancelled, models.OrderStatusRefunded, false},
		{"leave delivered", models.OrderStatusDelivered, models.OrderStatusShipped, false},
		{"refund from delivered", models.OrderStatusDelivered, models.OrderStatusRefunded, false},
		{"unknown target", models.OrderStatusPaid, models.OrderStatus("archived"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanTransition(tc.from, tc.to); got != tc.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestPlan_ShippedStampsAndNotifiesOnce(t *testing.T) {
	tracking := "TRK-123"
	order := &models.Order{
		Status:         models.OrderStatusProcessing,
		TrackingNumber: &tracking,
	}

	effects, err := Plan(order, models.OrderStatusShipped)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if !hasEffect(effects, EffectStampShippedAt) {
		t.Error("Expected shipped_at stamp effect")
	}
	if !hasEffect(effects, EffectNotifyShipped) {
		t.Error("Expected shipping notification effect")
	}

	// Re-applying SHIPPED after the first entry owes nothing.
	now := time.Now()
	order.Status = models.OrderStatusShipped
	order.ShippedAt = &now

	effects, err = Plan(order, models.OrderStatusShipped)
	if err != nil {
		t.Fatalf("Plan returned error on re-apply: %v", err)
	}
	if len(effects) != 0 {
		t.Errorf("Expected no effects on re-apply, got %v", effects)
	}
}

func TestPlan_ShippedWithoutTrackingSkipsNotification(t *testing.T) {
	order := &models.Order{Status: models.OrderStatusPaid}

	effects, err := Plan(order, models.OrderStatusShipped)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if !hasEffect(effects, EffectStampShippedAt) {
		t.Error("Expected shipped_at stamp effect")
	}
	if hasEffect(effects, EffectNotifyShipped) {
		t.Error("Notification must not be owed without a tracking number")
	}
}

func TestPlan_DeliveredStampsOnce(t *testing.T) {
	order := &models.Order{Status: models.OrderStatusShipped}

	effects, err := Plan(order, models.OrderStatusDelivered)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if !hasEffect(effects, EffectStampDeliveredAt) {
		t.Error("Expected delivered_at stamp effect")
	}

	now := time.Now()
	order.Status = models.OrderStatusDelivered
	order.DeliveredAt = &now

	effects, err = Plan(order, models.OrderStatusDelivered)
	if err != nil {
		t.Fatalf("Plan returned error on re-apply: %v", err)
	}
	if len(effects) != 0 {
		t.Errorf("Expected no effects on re-apply, got %v", effects)
	}
}

func TestPlan_Errors(t *testing.T) {
	order := &models.Order{Status: models.OrderStatusDelivered}

	_, err := Plan(order, models.OrderStatus("bogus"))
	if !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("Expected ErrUnknownStatus, got %v", err)
	}

	_, err = Plan(order, models.OrderStatusProcessing)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("Expected ErrIllegalTransition, got %v", err)
	}
}

func hasEffect(effects []Effect, e Effect) bool {
	for _, got := range effects {
		if got == e {
			return true
		}
	}
	return false
}
