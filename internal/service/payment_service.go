package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"time"

	"storefront-service/internal/apperr"
	"storefront-service/internal/gateway"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// PaymentStore is the order-reconciliation capability consumed by payments.
type PaymentStore interface {
	SetGatewayOrderID(ctx context.Context, orderNumber, gatewayOrderID string) error
	MarkOrderPaid(ctx context.Context, gatewayOrderID, gatewayPaymentID string) (bool, error)
	MarkPaymentFailed(ctx context.Context, gatewayOrderID, gatewayPaymentID string) error
	MarkOrderRefunded(ctx context.Context, gatewayPaymentID string) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// EventCache is the fast-path idempotency check in front of the database.
type EventCache interface {
	WasEventProcessed(ctx context.Context, eventID string) (bool, error)
	TryMarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
}

// PaymentEventPublisher publishes payment lifecycle events.
type PaymentEventPublisher interface {
	PublishPaymentCaptured(ctx context.Context, event *models.PaymentCapturedEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
}

// PaymentConfig carries gateway credentials and limits.
type PaymentConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Currency      string
	MaxAmount     float64
}

// PaymentService creates gateway orders, verifies payment signatures and
// processes webhook events.
type PaymentService struct {
	gateway   gateway.Client
	store     PaymentStore
	cache     EventCache
	publisher PaymentEventPublisher
	cfg       PaymentConfig
	logger    *zap.Logger
}

func NewPaymentService(
	gw gateway.Client,
	store PaymentStore,
	cache EventCache,
	publisher PaymentEventPublisher,
	cfg PaymentConfig,
) *PaymentService {
	return &PaymentService{
		gateway:   gw,
		store:     store,
		cache:     cache,
		publisher: publisher,
		cfg:       cfg,
		logger:    util.GetLogger(),
	}
}

// CreateGatewayOrderRequest asks the gateway for a pre-payment order.
type CreateGatewayOrderRequest struct {
	Amount   float64           `json:"amount" binding:"required"`
	Currency string            `json:"currency,omitempty"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// GatewayOrderResponse is returned to the client to start the payment flow.
type GatewayOrderResponse struct {
	OrderID  string  `json:"order_id"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Receipt  string  `json:"receipt"`
}

// CreateGatewayOrder converts the amount to minor units and issues a gateway
// order. When the receipt names one of our order numbers the gateway order id
// is attached to that order.
func (ps *PaymentService) CreateGatewayOrder(ctx context.Context, req *CreateGatewayOrderRequest) (*GatewayOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.CreateGatewayOrder")
	defer span.End()

	if ps.cfg.KeyID == "" || ps.cfg.KeySecret == "" {
		return nil, apperr.New(apperr.CodeConfiguration, "payment gateway credentials are not configured")
	}
	if req.Amount <= 0 {
		return nil, apperr.New(apperr.CodeValidation, "amount must be positive")
	}
	if req.Amount > ps.cfg.MaxAmount {
		return nil, apperr.Newf(apperr.CodeValidation, "amount exceeds the maximum of %.2f", ps.cfg.MaxAmount)
	}

	currency := req.Currency
	if currency == "" {
		currency = ps.cfg.Currency
	}

	amountMinor := int64(math.Round(req.Amount * 100))
	order, err := ps.gateway.CreateOrder(ctx, amountMinor, currency, req.Receipt, req.Notes)
	if err != nil {
		return nil, err
	}

	if req.Receipt != "" {
		// reconciliation hint only; the payment flow works without it
		if err := ps.store.SetGatewayOrderID(ctx, req.Receipt, order.ID); err != nil {
			ps.logger.Warn("Failed to attach gateway order id",
				zap.String("receipt", req.Receipt),
				zap.String("gateway_order_id", order.ID),
				zap.Error(err))
		}
	}

	util.GatewayOrdersCreatedTotal.Inc()
	ps.logger.Info("Gateway order created",
		zap.String("gateway_order_id", order.ID),
		zap.Int64("amount_minor", order.Amount))

	return &GatewayOrderResponse{
		OrderID:  order.ID,
		Amount:   float64(order.Amount) / 100,
		Currency: order.Currency,
		Receipt:  order.Receipt,
	}, nil
}

// VerifiedPayment is the result of a successful verification.
type VerifiedPayment struct {
	Verified bool    `json:"verified"`
	Status   string  `json:"status"`
	Amount   float64 `json:"amount"`
	Method   string  `json:"method"`
	Email    string  `json:"email"`
	Contact  string  `json:"contact"`
}

// VerifyPayment checks the client-supplied signature over
// "gatewayOrderID|paymentID", then confirms capture with the gateway and
// reconciles the order. The signature check runs before any gateway call;
// reconciliation failure does not fail the verification itself.
func (ps *PaymentService) VerifyPayment(ctx context.Context, gatewayOrderID, paymentID, signature string) (*VerifiedPayment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.VerifyPayment")
	defer span.End()

	start := time.Now()
	defer func() {
		util.PaymentVerifyLatency.Observe(time.Since(start).Seconds())
	}()

	if ps.cfg.KeySecret == "" {
		return nil, apperr.New(apperr.CodeConfiguration, "payment gateway credentials are not configured")
	}
	if gatewayOrderID == "" || paymentID == "" || signature == "" {
		return nil, apperr.New(apperr.CodeValidation, "order id, payment id and signature are required")
	}

	if !validSignature(ps.cfg.KeySecret, gatewayOrderID+"|"+paymentID, signature) {
		util.PaymentsFailedTotal.WithLabelValues("invalid_signature").Inc()
		return nil, apperr.New(apperr.CodeInvalidSignature, "payment signature verification failed")
	}

	payment, err := ps.gateway.FetchPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if payment.Status != gateway.PaymentStatusCaptured {
		util.PaymentsFailedTotal.WithLabelValues("not_captured").Inc()
		return nil, apperr.Newf(apperr.CodePaymentNotCaptured, "payment is %s, not captured", payment.Status)
	}

	// The payment is already settled with the gateway; database
	// reconciliation is best-effort with logging.
	transitioned, err := ps.store.MarkOrderPaid(ctx, gatewayOrderID, paymentID)
	if err != nil {
		ps.logger.Error("Failed to reconcile paid order",
			zap.String("gateway_order_id", gatewayOrderID),
			zap.String("gateway_payment_id", paymentID),
			zap.Error(err))
	}

	// Re-verifications of an already-paid order must not republish.
	if transitioned {
		event := &models.PaymentCapturedEvent{
			BaseEvent:        newBaseEvent(models.EventTypePaymentCaptured),
			GatewayOrderID:   gatewayOrderID,
			GatewayPaymentID: paymentID,
			Amount:           float64(payment.Amount) / 100,
		}
		if err := ps.publisher.PublishPaymentCaptured(ctx, event); err != nil {
			ps.logger.Error("Failed to publish PaymentCaptured event", zap.Error(err))
		}
	}

	util.PaymentsVerifiedTotal.Inc()
	ps.logger.Info("Payment verified",
		zap.String("gateway_order_id", gatewayOrderID),
		zap.String("gateway_payment_id", paymentID))

	return &VerifiedPayment{
		Verified: true,
		Status:   payment.Status,
		Amount:   float64(payment.Amount) / 100,
		Method:   payment.Method,
		Email:    payment.Email,
		Contact:  payment.Contact,
	}, nil
}

// validSignature recomputes the HMAC-SHA256 hex digest and compares in
// constant time. A plain string comparison here would leak a timing side
// channel an attacker can use to forge signatures byte by byte.
func validSignature(secret, payload, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// webhookEvent is the gateway's webhook envelope.
type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity gateway.Payment `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity gateway.Refund `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

// HandleWebhook validates the webhook signature over the raw body, then
// applies the event idempotently. Only a signature mismatch is returned as an
// error; internal failures are logged and swallowed so the caller still
// answers 200 and the gateway does not retry-storm.
func (ps *PaymentService) HandleWebhook(ctx context.Context, rawBody []byte, signature string) error {
	ctx, span := util.StartSpan(ctx, "PaymentService.HandleWebhook")
	defer span.End()

	if ps.cfg.WebhookSecret == "" {
		return apperr.New(apperr.CodeConfiguration, "webhook secret is not configured")
	}

	mac := hmac.New(sha256.New, []byte(ps.cfg.WebhookSecret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		util.WebhookEventsTotal.WithLabelValues("unknown", "invalid_signature").Inc()
		return apperr.New(apperr.CodeInvalidSignature, "webhook signature verification failed")
	}

	var event webhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		ps.logger.Error("Failed to parse webhook body", zap.Error(err))
		util.WebhookEventsTotal.WithLabelValues("unknown", "parse_error").Inc()
		return nil
	}

	eventID := webhookEventID(&event)
	if processed := ps.alreadyProcessed(ctx, eventID); processed {
		util.WebhookEventsTotal.WithLabelValues(event.Event, "duplicate").Inc()
		return nil
	}

	if err := ps.applyWebhookEvent(ctx, &event); err != nil {
		ps.logger.Error("Failed to apply webhook event",
			zap.String("event", event.Event),
			zap.Error(err))
		util.WebhookEventsTotal.WithLabelValues(event.Event, "error").Inc()
		return nil
	}

	ps.markProcessed(ctx, eventID, event.Event)
	util.WebhookEventsTotal.WithLabelValues(event.Event, "ok").Inc()
	return nil
}

// webhookEventID keys idempotency on event type plus the gateway payment or
// refund id, surviving redeliveries with fresh envelope ids.
func webhookEventID(event *webhookEvent) string {
	if event.Payload.Refund.Entity.ID != "" {
		return event.Event + ":" + event.Payload.Refund.Entity.ID
	}
	return event.Event + ":" + event.Payload.Payment.Entity.ID
}

func (ps *PaymentService) alreadyProcessed(ctx context.Context, eventID string) bool {
	if seen, err := ps.cache.WasEventProcessed(ctx, eventID); err == nil && seen {
		return true
	}
	seen, err := ps.store.IsEventProcessed(ctx, eventID)
	if err != nil {
		ps.logger.Warn("Failed to check processed event", zap.String("event_id", eventID), zap.Error(err))
		return false
	}
	return seen
}

func (ps *PaymentService) markProcessed(ctx context.Context, eventID, eventType string) {
	if _, err := ps.cache.TryMarkEventProcessed(ctx, eventID, 24*time.Hour); err != nil {
		ps.logger.Warn("Failed to cache processed event", zap.String("event_id", eventID), zap.Error(err))
	}
	if err := ps.store.MarkEventProcessed(ctx, eventID, eventType); err != nil {
		ps.logger.Warn("Failed to persist processed event", zap.String("event_id", eventID), zap.Error(err))
	}
}

func (ps *PaymentService) applyWebhookEvent(ctx context.Context, event *webhookEvent) error {
	payment := event.Payload.Payment.Entity

	switch event.Event {
	case "payment.captured", "payment.authorized":
		transitioned, err := ps.store.MarkOrderPaid(ctx, payment.OrderID, payment.ID)
		if err != nil {
			return err
		}
		if transitioned {
			captured := &models.PaymentCapturedEvent{
				BaseEvent:        newBaseEvent(models.EventTypePaymentCaptured),
				GatewayOrderID:   payment.OrderID,
				GatewayPaymentID: payment.ID,
				Amount:           float64(payment.Amount) / 100,
			}
			if err := ps.publisher.PublishPaymentCaptured(ctx, captured); err != nil {
				ps.logger.Error("Failed to publish PaymentCaptured event", zap.Error(err))
			}
		}
		return nil

	case "payment.failed":
		if err := ps.store.MarkPaymentFailed(ctx, payment.OrderID, payment.ID); err != nil {
			return err
		}
		failed := &models.PaymentFailedEvent{
			BaseEvent:        newBaseEvent(models.EventTypePaymentFailed),
			GatewayOrderID:   payment.OrderID,
			GatewayPaymentID: payment.ID,
			Reason:           "gateway reported failure",
		}
		if err := ps.publisher.PublishPaymentFailed(ctx, failed); err != nil {
			ps.logger.Error("Failed to publish PaymentFailed event", zap.Error(err))
		}
		return nil

	case "refund.created":
		return ps.store.MarkOrderRefunded(ctx, event.Payload.Refund.Entity.PaymentID)

	default:
		ps.logger.Debug("Ignoring webhook event", zap.String("event", event.Event))
		return nil
	}
}

// RefundOrder issues a full gateway refund for a paid order and marks it
// refunded. Staff-only operation, enforced at the API layer.
func (ps *PaymentService) RefundOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.RefundOrder")
	defer span.End()

	order, err := ps.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != models.PaymentStatusPaid || order.GatewayPaymentID == nil {
		return nil, apperr.New(apperr.CodeValidation, "only paid orders can be refunded")
	}

	refund, err := ps.gateway.Refund(ctx, *order.GatewayPaymentID, 0)
	if err != nil {
		return nil, err
	}

	if err := ps.store.MarkOrderRefunded(ctx, *order.GatewayPaymentID); err != nil {
		ps.logger.Error("Refund issued but order not marked refunded",
			zap.Int64("order_id", orderID),
			zap.String("refund_id", refund.ID),
			zap.Error(err))
		return nil, err
	}

	ps.logger.Info("Order refunded",
		zap.Int64("order_id", orderID),
		zap.String("refund_id", refund.ID))

	return ps.store.GetOrderByID(ctx, orderID)
}
