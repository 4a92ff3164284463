package models

import (
	"math"
	"time"
)

// Round2 rounds a monetary amount to the nearest cent, half away from zero.
func Round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// Address is a postal address. Orders persist their own immutable copy; the
// live address book entry a customer edits later never changes past orders.
type Address struct {
	Name       string `json:"name,omitempty"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone,omitempty"`
}

// Product is catalog state consumed by the order pipeline. Stock is the only
// field this service mutates, via a conditional decrement.
type Product struct {
	ID          int64     `db:"id" json:"id"`
	SKU         string    `db:"sku" json:"sku"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Price       float64   `db:"price" json:"price"`
	Stock       int       `db:"stock" json:"stock"`
	Images      string    `db:"images" json:"images"`
	CategoryID  int64     `db:"category_id" json:"category_id"`
	SellerID    int64     `db:"seller_id" json:"seller_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CartItem is an ephemeral user-owned cart line. The whole cart is cleared
// when an order is placed.
type CartItem struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	VariantID *int64    `db:"variant_id" json:"variant_id,omitempty"`
	Quantity  int       `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Order is a placed customer order. Totals are computed server-side once and
// never change after creation; only status fields transition.
type Order struct {
	ID               int64      `db:"id" json:"id"`
	OrderNumber      string     `db:"order_number" json:"order_number"`
	UserID           int64      `db:"user_id" json:"user_id"`
	Subtotal         float64    `db:"subtotal" json:"subtotal"`
	TaxAmount        float64    `db:"tax_amount" json:"tax_amount"`
	ShippingAmount   float64    `db:"shipping_amount" json:"shipping_amount"`
	DiscountAmount   float64    `db:"discount_amount" json:"discount_amount"`
	TotalAmount      float64    `db:"total_amount" json:"total_amount"`
	Status           string     `db:"status" json:"status"`
	PaymentStatus    string     `db:"payment_status" json:"payment_status"`
	PaymentMethod    string     `db:"payment_method" json:"payment_method"`
	ShippingAddress  Address    `db:"-" json:"shipping_address"`
	BillingAddress   Address    `db:"-" json:"billing_address"`
	TrackingNumber   *string    `db:"tracking_number" json:"tracking_number,omitempty"`
	GatewayOrderID   *string    `db:"gateway_order_id" json:"gateway_order_id,omitempty"`
	GatewayPaymentID *string    `db:"gateway_payment_id" json:"gateway_payment_id,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
	ShippedAt        *time.Time `db:"shipped_at" json:"shipped_at,omitempty"`
	DeliveredAt      *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
}

// ProductSnapshot is the point-in-time copy of product fields embedded in an
// order item, decoupling order history from later catalog edits.
type ProductSnapshot struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Images      string  `json:"images"`
	SKU         string  `json:"sku"`
	CategoryID  int64   `json:"category_id"`
	SellerID    int64   `json:"seller_id"`
}

// OrderItem is one line of an order. Immutable after creation.
type OrderItem struct {
	ID         int64           `db:"id" json:"id"`
	OrderID    int64           `db:"order_id" json:"order_id"`
	ProductID  int64           `db:"product_id" json:"product_id"`
	VariantID  *int64          `db:"variant_id" json:"variant_id,omitempty"`
	Quantity   int             `db:"quantity" json:"quantity"`
	UnitPrice  float64         `db:"unit_price" json:"unit_price"`
	TotalPrice float64         `db:"total_price" json:"total_price"`
	Snapshot   ProductSnapshot `db:"-" json:"product_snapshot"`
}

// Fulfillment statuses. Cancelled and refunded are terminal.
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
)

// Payment statuses, an axis independent of fulfillment status.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// Roles carried by the authenticated principal.
const (
	RoleCustomer = "customer"
	RoleSeller   = "seller"
	RoleAdmin    = "admin"
)

// ProcessedEvent for webhook idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
