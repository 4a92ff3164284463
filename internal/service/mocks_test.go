package service

import (
	"context"
	"testing"
	"time"

	"storefront-service/internal/apperr"
	"storefront-service/internal/gateway"
	"storefront-service/internal/models"
	"storefront-service/internal/shipping"

	"github.com/stretchr/testify/require"
)

// mockCatalog implements Catalog for testing
type mockCatalog struct {
	products map[int64]*models.Product
	err      error
}

func (m *mockCatalog) GetProducts(_ context.Context, ids []int64) (map[int64]*models.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[int64]*models.Product)
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// mockOrderStore implements OrderStore and PaymentStore for testing
type mockOrderStore struct {
	placeCalls    int
	placeErrs     []error // consumed per call; nil past the end
	placed        *models.Order
	placedItems   []models.OrderItem
	orders        map[int64]*models.Order
	items         map[int64][]models.OrderItem
	tracking      *string
	gatewayOrders map[string]string // receipt -> gateway order id
	paidOrders    map[string]string // gateway order id -> payment id
	failedOrders  map[string]string
	refunded      []string
	processed     map[string]bool
	markPaidErr   error
	attachErr     error
}

func newMockOrderStore() *mockOrderStore {
	return &mockOrderStore{
		orders:        map[int64]*models.Order{},
		items:         map[int64][]models.OrderItem{},
		gatewayOrders: map[string]string{},
		paidOrders:    map[string]string{},
		failedOrders:  map[string]string{},
		processed:     map[string]bool{},
	}
}

func (m *mockOrderStore) PlaceOrder(_ context.Context, order *models.Order, items []models.OrderItem) error {
	m.placeCalls++
	if len(m.placeErrs) > 0 {
		err := m.placeErrs[0]
		m.placeErrs = m.placeErrs[1:]
		if err != nil {
			return err
		}
	}
	order.ID = int64(len(m.orders) + 1)
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	copied := *order
	m.placed = &copied
	m.placedItems = items
	m.orders[order.ID] = &copied
	m.items[order.ID] = items
	return nil
}

func (m *mockOrderStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, apperr.Newf(apperr.CodeNotFound, "order not found: %d", id)
	}
	copied := *order
	return &copied, nil
}

func (m *mockOrderStore) GetOrdersByUserID(_ context.Context, userID int64) ([]models.Order, error) {
	var out []models.Order
	for _, order := range m.orders {
		if order.UserID == userID {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (m *mockOrderStore) ListOrders(_ context.Context) ([]models.Order, error) {
	var out []models.Order
	for _, order := range m.orders {
		out = append(out, *order)
	}
	return out, nil
}

func (m *mockOrderStore) GetOrderItemsByOrderID(_ context.Context, orderID int64) ([]models.OrderItem, error) {
	return m.items[orderID], nil
}

func (m *mockOrderStore) UpdateOrderStatus(_ context.Context, orderID int64, status string, trackingNumber *string) error {
	if order, ok := m.orders[orderID]; ok {
		order.Status = status
		if trackingNumber != nil {
			order.TrackingNumber = trackingNumber
		}
	}
	m.tracking = trackingNumber
	return nil
}

func (m *mockOrderStore) SetGatewayOrderID(_ context.Context, orderNumber, gatewayOrderID string) error {
	if m.attachErr != nil {
		return m.attachErr
	}
	m.gatewayOrders[orderNumber] = gatewayOrderID
	return nil
}

func (m *mockOrderStore) MarkOrderPaid(_ context.Context, gatewayOrderID, gatewayPaymentID string) (bool, error) {
	if m.markPaidErr != nil {
		return false, m.markPaidErr
	}
	if _, paid := m.paidOrders[gatewayOrderID]; paid {
		return false, nil
	}
	m.paidOrders[gatewayOrderID] = gatewayPaymentID
	return true, nil
}

func (m *mockOrderStore) MarkPaymentFailed(_ context.Context, gatewayOrderID, gatewayPaymentID string) error {
	m.failedOrders[gatewayOrderID] = gatewayPaymentID
	return nil
}

func (m *mockOrderStore) MarkOrderRefunded(_ context.Context, gatewayPaymentID string) error {
	m.refunded = append(m.refunded, gatewayPaymentID)
	return nil
}

func (m *mockOrderStore) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	return m.processed[eventID], nil
}

func (m *mockOrderStore) MarkEventProcessed(_ context.Context, eventID, _ string) error {
	m.processed[eventID] = true
	return nil
}

// mockPublisher implements OrderEventPublisher and PaymentEventPublisher
type mockPublisher struct {
	placed    []*models.OrderPlacedEvent
	cancelled []*models.OrderCancelledEvent
	captured  []*models.PaymentCapturedEvent
	failed    []*models.PaymentFailedEvent
	err       error
}

func (m *mockPublisher) PublishOrderPlaced(_ context.Context, event *models.OrderPlacedEvent) error {
	if m.err != nil {
		return m.err
	}
	m.placed = append(m.placed, event)
	return nil
}

func (m *mockPublisher) PublishOrderCancelled(_ context.Context, event *models.OrderCancelledEvent) error {
	if m.err != nil {
		return m.err
	}
	m.cancelled = append(m.cancelled, event)
	return nil
}

func (m *mockPublisher) PublishPaymentCaptured(_ context.Context, event *models.PaymentCapturedEvent) error {
	if m.err != nil {
		return m.err
	}
	m.captured = append(m.captured, event)
	return nil
}

func (m *mockPublisher) PublishPaymentFailed(_ context.Context, event *models.PaymentFailedEvent) error {
	if m.err != nil {
		return m.err
	}
	m.failed = append(m.failed, event)
	return nil
}

// mockInvalidator implements CacheInvalidator
type mockInvalidator struct {
	invalidated []int64
}

func (m *mockInvalidator) InvalidateProducts(_ context.Context, productIDs []int64) {
	m.invalidated = append(m.invalidated, productIDs...)
}

// mockGateway implements gateway.Client
type mockGateway struct {
	order      *gateway.Order
	payment    *gateway.Payment
	refund     *gateway.Refund
	fetchCalls int
	createErr  error
	fetchErr   error
	refundErr  error
}

func (m *mockGateway) CreateOrder(_ context.Context, amountMinor int64, currency, receipt string, _ map[string]string) (*gateway.Order, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	if m.order != nil {
		return m.order, nil
	}
	return &gateway.Order{ID: "order_gw1", Amount: amountMinor, Currency: currency, Receipt: receipt, Status: "created"}, nil
}

func (m *mockGateway) FetchPayment(_ context.Context, paymentID string) (*gateway.Payment, error) {
	m.fetchCalls++
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	if m.payment != nil {
		return m.payment, nil
	}
	return &gateway.Payment{ID: paymentID, Status: gateway.PaymentStatusCaptured, Amount: 64000}, nil
}

func (m *mockGateway) Refund(_ context.Context, paymentID string, amountMinor int64) (*gateway.Refund, error) {
	if m.refundErr != nil {
		return nil, m.refundErr
	}
	if m.refund != nil {
		return m.refund, nil
	}
	return &gateway.Refund{ID: "rfnd_1", PaymentID: paymentID, Amount: amountMinor, Status: "processed"}, nil
}

// mockEventCache implements EventCache
type mockEventCache struct {
	seen map[string]bool
}

func newMockEventCache() *mockEventCache {
	return &mockEventCache{seen: map[string]bool{}}
}

func (m *mockEventCache) WasEventProcessed(_ context.Context, eventID string) (bool, error) {
	return m.seen[eventID], nil
}

func (m *mockEventCache) TryMarkEventProcessed(_ context.Context, eventID string, _ time.Duration) (bool, error) {
	if m.seen[eventID] {
		return false, nil
	}
	m.seen[eventID] = true
	return true, nil
}

// testQuoter builds a real calculator over the default zone table.
func testQuoter(t *testing.T) *shipping.Calculator {
	t.Helper()
	est, err := shipping.NewEstimator(shipping.EstimatorConfig{
		CutoffHour:        14,
		MinProcessingDays: 1,
		WorkingDays:       shipping.DefaultWorkingDays(),
	})
	require.NoError(t, err)
	return shipping.NewCalculator(
		shipping.DefaultConfig(),
		est,
		[]string{"Delhivery"},
		[]string{"DHL Express"},
	)
}

func kashmirAddress() models.Address {
	return models.Address{
		City:       "Srinagar",
		State:      "Jammu and Kashmir",
		Country:    "IN",
		PostalCode: "190001",
	}
}
