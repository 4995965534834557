// Package lifecycle owns the order state machine. Every status change in
// the service goes through Plan so illegal transitions are rejected in one
// place and side effects fire exactly once per state entry.
package lifecycle

import (
	"errors"

	"fulfillment-svc/models"
)

var (
	ErrUnknownStatus     = errors.New("unknown order status")
	ErrIllegalTransition = errors.New("illegal status transition")
)

// Effect is a side effect owed to a planned transition. The caller
// executes them; planning itself mutates nothing.
type Effect string

const (
	EffectStampShippedAt   Effect = "stamp_shipped_at"
	EffectStampDeliveredAt Effect = "stamp_delivered_at"
	EffectNotifyShipped    Effect = "notify_shipped"
)

// forwardRank orders the forward fulfillment chain. Terminal escapes are
// handled separately.
var forwardRank = map[models.OrderStatus]int{
	models.OrderStatusPending:         0,
	models.OrderStatusPaid:            1,
	models.OrderStatusProcessing:      2,
	models.OrderStatusOrderedSupplier: 3,
	models.OrderStatusShipped:         4,
	models.OrderStatusDelivered:       5,
}

func Known(s models.OrderStatus) bool {
	if _, ok := forwardRank[s]; ok {
		return true
	}
	return s == models.OrderStatusCancelled || s == models.OrderStatusRefunded
}

// IsTerminal reports whether no further transitions leave s. DELIVERED is
// functionally terminal: a delivered order only accepts note edits.
func IsTerminal(s models.OrderStatus) bool {
	return s == models.OrderStatusCancelled ||
		s == models.OrderStatusRefunded ||
		s == models.OrderStatusDelivered
}

// CanTransition implements the transition table: forward moves along the
// fulfillment chain (skipping stages is allowed), cancel/refund escapes
// from any non-terminal state, and re-applying the current status as a
// no-op. Backward moves are rejected.
func CanTransition(from, to models.OrderStatus) bool {
	if !Known(from) || !Known(to) {
		return false
	}
	if from == to {
		return true
	}
	if IsTerminal(from) {
		return false
	}
	if to == models.OrderStatusCancelled || to == models.OrderStatusRefunded {
		return true
	}
	return forwardRank[to] > forwardRank[from]
}

// Plan validates moving order into next and returns the side effects the
// transition owes. Timestamps are stamped at most once: entering SHIPPED or
// DELIVERED again, or re-applying the same status, owes nothing. The
// shipping notification is owed only when a tracking number is present on
// the order at transition time.
func Plan(order *models.Order, next models.OrderStatus) ([]Effect, error) {
	if !Known(next) {
		return nil, ErrUnknownStatus
	}
	if !CanTransition(order.Status, next) {
		return nil, ErrIllegalTransition
	}

	var effects []Effect
	if next == models.OrderStatusShipped && order.Status != models.OrderStatusShipped && order.ShippedAt == nil {
		effects = append(effects, EffectStampShippedAt)
		if order.TrackingNumber != nil && *order.TrackingNumber != "" {
			effects = append(effects, EffectNotifyShipped)
		}
	}
	if next == models.OrderStatusDelivered && order.Status != models.OrderStatusDelivered && order.DeliveredAt == nil {
		effects = append(effects, EffectStampDeliveredAt)
	}
	return effects, nil
}
