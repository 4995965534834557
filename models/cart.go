package models

import "time"

type Cart struct {
	SessionID         string     `json:"session_id"`
	CustomerEmail     *string    `json:"customer_email,omitempty"`
	Items             []CartItem `json:"items"`
	Total             float64    `json:"total"`
	RecoveryEmailSent bool       `json:"recovery_email_sent"`
	LastUpdated       time.Time  `json:"last_updated"`
}

type CartItem struct {
	ProductID int     `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	ImageURL  string  `json:"image_url"`
}

type UpsertCartRequest struct {
	CustomerEmail *string    `json:"customer_email"`
	Items         []CartItem `json:"items" binding:"required"`
	Total         float64    `json:"total" binding:"gte=0"`
}
