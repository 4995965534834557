package models

type NotificationKind string

const (
	NotificationOrderConfirmation NotificationKind = "order_confirmation"
	NotificationOrderShipped      NotificationKind = "order_shipped"
	NotificationCartRecovery      NotificationKind = "cart_recovery"
	NotificationCartRecoveryOffer NotificationKind = "cart_recovery_offer"
	NotificationLowStockAlert     NotificationKind = "low_stock_alert"
)

// NotificationEvent is the message published to the notification topic.
// The delivery transport (email/SMS) is an external consumer.
type NotificationEvent struct {
	Recipient string           `json:"recipient"`
	Kind      NotificationKind `json:"kind"`
	Payload   map[string]any   `json:"payload"`
}
