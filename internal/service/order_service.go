package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"storefront-service/internal/apperr"
	"storefront-service/internal/auth"
	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderStore is the persistence capability consumed by the order workflow.
type OrderStore interface {
	PlaceOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string, trackingNumber *string) error
}

// OrderEventPublisher publishes order lifecycle events. Publishing is
// best-effort from the workflow's perspective.
type OrderEventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
}

// CacheInvalidator drops cached product entries after stock changes.
type CacheInvalidator interface {
	InvalidateProducts(ctx context.Context, productIDs []int64)
}

// OrderService orchestrates order placement and status transitions.
type OrderService struct {
	store     OrderStore
	pricing   *PricingEngine
	publisher OrderEventPublisher
	cache     CacheInvalidator
	logger    *zap.Logger
}

func NewOrderService(
	store OrderStore,
	pricing *PricingEngine,
	publisher OrderEventPublisher,
	cache CacheInvalidator,
) *OrderService {
	return &OrderService{
		store:     store,
		pricing:   pricing,
		publisher: publisher,
		cache:     cache,
		logger:    util.GetLogger(),
	}
}

// PlaceOrderRequest is the client's order submission. Prices on it are never
// trusted; the cart item list is taken as submitted, not read back from the
// live cart.
type PlaceOrderRequest struct {
	Items           []LineItem      `json:"items" binding:"required,min=1"`
	ShippingAddress models.Address  `json:"shipping_address" binding:"required"`
	BillingAddress  *models.Address `json:"billing_address,omitempty"`
	PaymentMethod   string          `json:"payment_method" binding:"required"`
	DiscountAmount  float64         `json:"discount_amount,omitempty"`
}

const orderNumberAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// generateOrderNumber builds ORD-<epoch-millis>-<9 random base36 chars>.
// Collisions are improbable but possible; placement retries on the unique
// constraint.
func generateOrderNumber() string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = orderNumberAlphabet[rand.Intn(len(orderNumberAlphabet))]
	}
	return fmt.Sprintf("ORD-%d-%s", time.Now().UnixMilli(), suffix)
}

// PlaceOrder runs the full placement workflow: validate, re-price from the
// catalog, persist order + items + stock decrements + cart clear atomically,
// then publish the confirmation event.
func (s *OrderService) PlaceOrder(ctx context.Context, principal *auth.Principal, req *PlaceOrderRequest) (*models.Order, []models.OrderItem, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.OrderPlacementLatency.Observe(time.Since(start).Seconds())
	}()

	if err := s.validateRequest(req); err != nil {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, nil, err
	}

	breakdown, err := s.pricing.Price(ctx, req.Items, req.ShippingAddress, req.DiscountAmount)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, nil, err
	}

	billing := req.ShippingAddress
	if req.BillingAddress != nil {
		billing = *req.BillingAddress
	}

	order := &models.Order{
		UserID:          principal.UserID,
		Subtotal:        breakdown.Subtotal,
		TaxAmount:       breakdown.TaxAmount,
		ShippingAmount:  breakdown.ShippingAmount,
		DiscountAmount:  breakdown.DiscountAmount,
		TotalAmount:     breakdown.Total,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  billing,
	}

	items := buildOrderItems(req.Items, breakdown.Products)

	// Retry on the order_number unique constraint; uniqueness of the
	// generated number is probabilistic, not guaranteed.
	for attempt := 0; attempt < 3; attempt++ {
		order.OrderNumber = generateOrderNumber()
		err = s.store.PlaceOrder(ctx, order, items)
		if !errors.Is(err, store.ErrDuplicateOrderNumber) {
			break
		}
		s.logger.Warn("Order number collision, regenerating",
			zap.String("order_number", order.OrderNumber))
	}
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, nil, err
	}

	productIDs := make([]int64, len(items))
	for i := range items {
		productIDs[i] = items[i].ProductID
	}
	s.cache.InvalidateProducts(ctx, productIDs)

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Float64("total", order.TotalAmount))

	// Confirmation email rides on this event; a publish failure is logged
	// and must never fail the placed order.
	event := &models.OrderPlacedEvent{
		BaseEvent:       newBaseEvent(models.EventTypeOrderPlaced),
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		Subtotal:        order.Subtotal,
		TaxAmount:       order.TaxAmount,
		ShippingAmount:  order.ShippingAmount,
		TotalAmount:     order.TotalAmount,
		Items:           eventItems(items),
		ShippingAddress: order.ShippingAddress,
	}
	if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}

	return order, items, nil
}

func (s *OrderService) validateRequest(req *PlaceOrderRequest) error {
	switch {
	case len(req.Items) == 0:
		return apperr.New(apperr.CodeValidation, "order must contain at least one item")
	case strings.TrimSpace(req.PaymentMethod) == "":
		return apperr.New(apperr.CodeValidation, "payment method is required")
	}
	return s.pricing.shipping.ValidateAddress(req.ShippingAddress)
}

// buildOrderItems freezes a product snapshot into each line so later catalog
// edits never rewrite order history.
func buildOrderItems(lines []LineItem, products map[int64]*models.Product) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		product := products[line.ProductID]
		items = append(items, models.OrderItem{
			ProductID:  line.ProductID,
			VariantID:  line.VariantID,
			Quantity:   line.Quantity,
			UnitPrice:  product.Price,
			TotalPrice: models.Round2(product.Price * float64(line.Quantity)),
			Snapshot: models.ProductSnapshot{
				Name:        product.Name,
				Description: product.Description,
				Price:       product.Price,
				Images:      product.Images,
				SKU:         product.SKU,
				CategoryID:  product.CategoryID,
				SellerID:    product.SellerID,
			},
		})
	}
	return items
}

func eventItems(items []models.OrderItem) []models.OrderItemData {
	data := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		data = append(data, models.OrderItemData{
			ProductID: item.ProductID,
			Name:      item.Snapshot.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return data
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

func failureReason(err error) string {
	switch {
	case apperr.Is(err, apperr.CodeNotFound):
		return "product_not_found"
	case apperr.Is(err, apperr.CodeInsufficientStock):
		return "insufficient_stock"
	case apperr.Is(err, apperr.CodeValidation):
		return "validation"
	default:
		return "internal"
	}
}

// GetOrder retrieves an order with its items. Customers only see their own
// orders.
func (s *OrderService) GetOrder(ctx context.Context, principal *auth.Principal, orderID int64) (*models.Order, []models.OrderItem, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	if principal.Role == models.RoleCustomer && order.UserID != principal.UserID {
		// not revealing whether the order exists
		return nil, nil, apperr.Newf(apperr.CodeNotFound, "order not found: %d", orderID)
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return order, items, nil
}

// ListOrders returns the caller's orders, or every order for staff roles.
func (s *OrderService) ListOrders(ctx context.Context, principal *auth.Principal) ([]models.Order, error) {
	if principal.Role == models.RoleAdmin || principal.Role == models.RoleSeller {
		return s.store.ListOrders(ctx)
	}
	return s.store.GetOrdersByUserID(ctx, principal.UserID)
}

// statusTransitions lists the fulfillment advances staff roles may make.
var statusTransitions = map[string][]string{
	models.OrderStatusPending:    {models.OrderStatusConfirmed, models.OrderStatusCancelled},
	models.OrderStatusConfirmed:  {models.OrderStatusProcessing, models.OrderStatusCancelled},
	models.OrderStatusProcessing: {models.OrderStatusShipped},
	models.OrderStatusShipped:    {models.OrderStatusDelivered},
}

// UpdateStatus applies a status transition. Customers may only cancel their
// own order and only while it is still pending; staff roles advance
// fulfillment along the allowed transitions.
func (s *OrderService) UpdateStatus(ctx context.Context, principal *auth.Principal, orderID int64, status string, trackingNumber *string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if principal.Role == models.RoleCustomer {
		if order.UserID != principal.UserID {
			return nil, apperr.Newf(apperr.CodeNotFound, "order not found: %d", orderID)
		}
		if status != models.OrderStatusCancelled {
			return nil, apperr.New(apperr.CodeForbidden, "customers may only cancel orders")
		}
		if order.Status != models.OrderStatusPending {
			return nil, apperr.New(apperr.CodeValidation, "Only pending orders can be cancelled")
		}
	} else if !transitionAllowed(order.Status, status) {
		return nil, apperr.Newf(apperr.CodeValidation, "cannot transition order from %s to %s", order.Status, status)
	}

	if err := s.store.UpdateOrderStatus(ctx, orderID, status, trackingNumber); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	if status == models.OrderStatusCancelled {
		util.OrdersCancelledTotal.Inc()
		event := &models.OrderCancelledEvent{
			BaseEvent:   newBaseEvent(models.EventTypeOrderCancelled),
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			Reason:      "cancelled by " + principal.Role,
		}
		if err := s.publisher.PublishOrderCancelled(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
		}
	}

	s.logger.Info("Order status updated",
		zap.Int64("order_id", orderID),
		zap.String("from", order.Status),
		zap.String("to", status))

	return s.store.GetOrderByID(ctx, orderID)
}

func transitionAllowed(from, to string) bool {
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
