package models

// PaymentWebhookEvent is the payload of an inbound payment-processor
// callback. Only "payment_completed" events carry fulfillment semantics;
// other types are acknowledged and ignored.
type PaymentWebhookEvent struct {
	Type          string             `json:"type"`
	Reference     string             `json:"reference"`
	Amount        float64            `json:"amount"`
	Subtotal      float64            `json:"subtotal"`
	CouponCode    string             `json:"coupon_code"`
	CartSessionID string             `json:"cart_session_id"`
	Customer      WebhookCustomer    `json:"customer"`
	Shipping      WebhookShipping    `json:"shipping"`
	Items         []WebhookOrderItem `json:"items"`
}

type WebhookCustomer struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type WebhookShipping struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type WebhookOrderItem struct {
	ProductID int     `json:"product_id"`
	Name      string  `json:"name"`
	ImageURL  string  `json:"image_url"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}
