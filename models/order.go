package models

import "time"

type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusPaid            OrderStatus = "paid"
	OrderStatusProcessing      OrderStatus = "processing"
	OrderStatusOrderedSupplier OrderStatus = "ordered_supplier"
	OrderStatusShipped         OrderStatus = "shipped"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRefunded        OrderStatus = "refunded"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type Order struct {
	ID                 int           `json:"id"`
	OrderNumber        string        `json:"order_number"`
	CustomerID         int           `json:"customer_id"`
	CustomerEmail      string        `json:"customer_email"`
	Status             OrderStatus   `json:"status"`
	PaymentStatus      PaymentStatus `json:"payment_status"`
	PaymentReference   string        `json:"payment_reference"`
	Subtotal           float64       `json:"subtotal"`
	Total              float64       `json:"total"`
	CouponCode         *string       `json:"coupon_code,omitempty"`
	ShippingName       string        `json:"shipping_name"`
	ShippingAddress    string        `json:"shipping_address"`
	ShippingCity       string        `json:"shipping_city"`
	ShippingPostalCode string        `json:"shipping_postal_code"`
	ShippingCountry    string        `json:"shipping_country"`
	TrackingNumber     *string       `json:"tracking_number,omitempty"`
	TrackingURL        *string       `json:"tracking_url,omitempty"`
	SupplierOrderID    *string       `json:"supplier_order_id,omitempty"`
	SupplierOrderURL   *string       `json:"supplier_order_url,omitempty"`
	AdminNotes         *string       `json:"admin_notes,omitempty"`
	Items              []OrderItem   `json:"items,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	ShippedAt          *time.Time    `json:"shipped_at,omitempty"`
	DeliveredAt        *time.Time    `json:"delivered_at,omitempty"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// OrderItem is a line-item snapshot captured at order creation. Catalog
// edits after the fact never alter it.
type OrderItem struct {
	ID          int     `json:"id"`
	OrderID     int     `json:"order_id"`
	ProductID   int     `json:"product_id"`
	ProductName string  `json:"product_name"`
	ImageURL    string  `json:"image_url"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    int     `json:"quantity"`
}

type UpdateOrderRequest struct {
	Status           *string `json:"status"`
	TrackingNumber   *string `json:"tracking_number"`
	TrackingURL      *string `json:"tracking_url"`
	SupplierOrderID  *string `json:"supplier_order_id"`
	SupplierOrderURL *string `json:"supplier_order_url"`
	AdminNotes       *string `json:"admin_notes"`
}

type Customer struct {
	ID        int       `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
