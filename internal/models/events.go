package models

import "time"

// Event types
const (
	EventTypeOrderPlaced     = "ORDER_PLACED"
	EventTypeOrderCancelled  = "ORDER_CANCELLED"
	EventTypePaymentCaptured = "PAYMENT_CAPTURED"
	EventTypePaymentFailed   = "PAYMENT_FAILED"
	EventTypeRefundCreated   = "REFUND_CREATED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// OrderPlacedEvent published after an order is persisted. The notification
// worker consumes it to send the confirmation email.
type OrderPlacedEvent struct {
	BaseEvent
	OrderID         int64           `json:"order_id"`
	OrderNumber     string          `json:"order_number"`
	UserID          int64           `json:"user_id"`
	Subtotal        float64         `json:"subtotal"`
	TaxAmount       float64         `json:"tax_amount"`
	ShippingAmount  float64         `json:"shipping_amount"`
	TotalAmount     float64         `json:"total_amount"`
	Items           []OrderItemData `json:"items"`
	ShippingAddress Address         `json:"shipping_address"`
}

// OrderCancelledEvent published when a customer cancels a pending order
type OrderCancelledEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	UserID      int64  `json:"user_id"`
	Reason      string `json:"reason"`
}

// PaymentCapturedEvent published when a payment is verified or a webhook
// reports capture
type PaymentCapturedEvent struct {
	BaseEvent
	OrderID          int64   `json:"order_id"`
	GatewayOrderID   string  `json:"gateway_order_id"`
	GatewayPaymentID string  `json:"gateway_payment_id"`
	Amount           float64 `json:"amount"`
}

// PaymentFailedEvent published when the gateway reports a failed payment
type PaymentFailedEvent struct {
	BaseEvent
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	Reason           string `json:"reason"`
}

// RefundCreatedEvent published when the gateway reports a refund
type RefundCreatedEvent struct {
	BaseEvent
	GatewayPaymentID string  `json:"gateway_payment_id"`
	RefundID         string  `json:"refund_id"`
	Amount           float64 `json:"amount"`
}
