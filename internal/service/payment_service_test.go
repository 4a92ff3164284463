package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"

	"storefront-service/internal/apperr"
	"storefront-service/internal/gateway"
	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeySecret = "test_key_secret"
const testWebhookSecret = "test_webhook_secret"

type paymentFixture struct {
	svc       *PaymentService
	store     *mockOrderStore
	gateway   *mockGateway
	cache     *mockEventCache
	publisher *mockPublisher
}

func newPaymentFixture() *paymentFixture {
	st := newMockOrderStore()
	gw := &mockGateway{}
	cache := newMockEventCache()
	pub := &mockPublisher{}
	cfg := PaymentConfig{
		KeyID:         "rzp_test_key",
		KeySecret:     testKeySecret,
		WebhookSecret: testWebhookSecret,
		Currency:      "INR",
		MaxAmount:     500000,
	}
	return &paymentFixture{
		svc:       NewPaymentService(gw, st, cache, pub, cfg),
		store:     st,
		gateway:   gw,
		cache:     cache,
		publisher: pub,
	}
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCreateGatewayOrder(t *testing.T) {
	f := newPaymentFixture()

	resp, err := f.svc.CreateGatewayOrder(context.Background(), &CreateGatewayOrderRequest{
		Amount:  640.00,
		Receipt: "ORD-1756700000000-ABCDEF123",
	})
	require.NoError(t, err)
	assert.Equal(t, "order_gw1", resp.OrderID)
	assert.Equal(t, 640.00, resp.Amount)
	assert.Equal(t, "INR", resp.Currency)
	assert.Equal(t, "order_gw1", f.store.gatewayOrders["ORD-1756700000000-ABCDEF123"])
}

func TestCreateGatewayOrder_Validation(t *testing.T) {
	f := newPaymentFixture()

	_, err := f.svc.CreateGatewayOrder(context.Background(), &CreateGatewayOrderRequest{Amount: 0})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = f.svc.CreateGatewayOrder(context.Background(), &CreateGatewayOrderRequest{Amount: -5})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = f.svc.CreateGatewayOrder(context.Background(), &CreateGatewayOrderRequest{Amount: 500001})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestCreateGatewayOrder_MissingCredentials(t *testing.T) {
	f := newPaymentFixture()
	f.svc.cfg.KeySecret = ""

	_, err := f.svc.CreateGatewayOrder(context.Background(), &CreateGatewayOrderRequest{Amount: 100})
	assert.True(t, apperr.Is(err, apperr.CodeConfiguration))
}

func TestCreateGatewayOrder_AttachFailureIsNotFatal(t *testing.T) {
	f := newPaymentFixture()
	f.store.attachErr = assert.AnError

	resp, err := f.svc.CreateGatewayOrder(context.Background(), &CreateGatewayOrderRequest{
		Amount:  100,
		Receipt: "ORD-1756700000000-ABCDEF123",
	})
	require.NoError(t, err)
	assert.Equal(t, "order_gw1", resp.OrderID)
}

func TestVerifyPayment_Success(t *testing.T) {
	f := newPaymentFixture()

	sig := sign(testKeySecret, "order_gw1|pay_abc")
	result, err := f.svc.VerifyPayment(context.Background(), "order_gw1", "pay_abc", sig)
	require.NoError(t, err)

	assert.True(t, result.Verified)
	assert.Equal(t, gateway.PaymentStatusCaptured, result.Status)
	assert.Equal(t, 640.00, result.Amount)
	assert.Equal(t, "pay_abc", f.store.paidOrders["order_gw1"])
	assert.Len(t, f.publisher.captured, 1)
}

func TestVerifyPayment_TamperedSignature(t *testing.T) {
	f := newPaymentFixture()

	sig := sign(testKeySecret, "order_gw1|pay_other")
	_, err := f.svc.VerifyPayment(context.Background(), "order_gw1", "pay_abc", sig)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidSignature))

	// rejected before any gateway call or order mutation
	assert.Zero(t, f.gateway.fetchCalls)
	assert.Empty(t, f.store.paidOrders)
}

func TestVerifyPayment_GarbageSignature(t *testing.T) {
	f := newPaymentFixture()

	_, err := f.svc.VerifyPayment(context.Background(), "order_gw1", "pay_abc", "not-a-hex-digest")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidSignature))
	assert.Zero(t, f.gateway.fetchCalls)
}

func TestVerifyPayment_MissingFields(t *testing.T) {
	f := newPaymentFixture()

	_, err := f.svc.VerifyPayment(context.Background(), "", "pay_abc", "sig")
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = f.svc.VerifyPayment(context.Background(), "order_gw1", "", "sig")
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = f.svc.VerifyPayment(context.Background(), "order_gw1", "pay_abc", "")
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestVerifyPayment_NotCaptured(t *testing.T) {
	f := newPaymentFixture()
	f.gateway.payment = &gateway.Payment{ID: "pay_abc", Status: "authorized", Amount: 64000}

	sig := sign(testKeySecret, "order_gw1|pay_abc")
	_, err := f.svc.VerifyPayment(context.Background(), "order_gw1", "pay_abc", sig)
	assert.True(t, apperr.Is(err, apperr.CodePaymentNotCaptured))
	assert.Empty(t, f.store.paidOrders)
}

func TestVerifyPayment_ReconciliationFailureStillVerifies(t *testing.T) {
	f := newPaymentFixture()
	f.store.markPaidErr = assert.AnError

	sig := sign(testKeySecret, "order_gw1|pay_abc")
	result, err := f.svc.VerifyPayment(context.Background(), "order_gw1", "pay_abc", sig)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	// the order never transitioned, so no capture event goes out
	assert.Empty(t, f.publisher.captured)
}

func TestVerifyPayment_RepeatVerificationIsIdempotent(t *testing.T) {
	f := newPaymentFixture()
	sig := sign(testKeySecret, "order_gw1|pay_abc")

	first, err := f.svc.VerifyPayment(context.Background(), "order_gw1", "pay_abc", sig)
	require.NoError(t, err)

	second, err := f.svc.VerifyPayment(context.Background(), "order_gw1", "pay_abc", sig)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, map[string]string{"order_gw1": "pay_abc"}, f.store.paidOrders)
	assert.Len(t, f.publisher.captured, 1, "re-verification must not republish")
}

func capturedWebhookBody(t *testing.T, event, orderID, paymentID string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"event": event,
		"payload": map[string]interface{}{
			"payment": map[string]interface{}{
				"entity": map[string]interface{}{
					"id":       paymentID,
					"order_id": orderID,
					"status":   "captured",
					"amount":   64000,
				},
			},
		},
	})
	require.NoError(t, err)
	return body
}

func TestHandleWebhook_PaymentCaptured(t *testing.T) {
	f := newPaymentFixture()

	body := capturedWebhookBody(t, "payment.captured", "order_gw1", "pay_abc")
	err := f.svc.HandleWebhook(context.Background(), body, sign(testWebhookSecret, string(body)))
	require.NoError(t, err)

	assert.Equal(t, "pay_abc", f.store.paidOrders["order_gw1"])
	assert.Len(t, f.publisher.captured, 1)
	assert.True(t, f.store.processed["payment.captured:pay_abc"])
}

func TestHandleWebhook_BadSignature(t *testing.T) {
	f := newPaymentFixture()

	body := capturedWebhookBody(t, "payment.captured", "order_gw1", "pay_abc")
	err := f.svc.HandleWebhook(context.Background(), body, sign("wrong_secret", string(body)))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidSignature))
	assert.Empty(t, f.store.paidOrders)
}

func TestHandleWebhook_RedeliveryIsIdempotent(t *testing.T) {
	f := newPaymentFixture()

	body := capturedWebhookBody(t, "payment.captured", "order_gw1", "pay_abc")
	sig := sign(testWebhookSecret, string(body))

	require.NoError(t, f.svc.HandleWebhook(context.Background(), body, sig))
	require.NoError(t, f.svc.HandleWebhook(context.Background(), body, sig))

	assert.Len(t, f.publisher.captured, 1, "redelivery must not republish")
}

func TestHandleWebhook_PaymentFailed(t *testing.T) {
	f := newPaymentFixture()

	body := capturedWebhookBody(t, "payment.failed", "order_gw1", "pay_abc")
	err := f.svc.HandleWebhook(context.Background(), body, sign(testWebhookSecret, string(body)))
	require.NoError(t, err)

	assert.Equal(t, "pay_abc", f.store.failedOrders["order_gw1"])
	assert.Len(t, f.publisher.failed, 1)
}

func TestHandleWebhook_RefundCreated(t *testing.T) {
	f := newPaymentFixture()

	body, err := json.Marshal(map[string]interface{}{
		"event": "refund.created",
		"payload": map[string]interface{}{
			"refund": map[string]interface{}{
				"entity": map[string]interface{}{
					"id":         "rfnd_1",
					"payment_id": "pay_abc",
					"status":     "processed",
				},
			},
		},
	})
	require.NoError(t, err)

	err = f.svc.HandleWebhook(context.Background(), body, sign(testWebhookSecret, string(body)))
	require.NoError(t, err)
	assert.Equal(t, []string{"pay_abc"}, f.store.refunded)
	assert.True(t, f.store.processed["refund.created:rfnd_1"])
}

func TestHandleWebhook_UnknownEventAcknowledged(t *testing.T) {
	f := newPaymentFixture()

	body := []byte(`{"event":"invoice.paid","payload":{}}`)
	err := f.svc.HandleWebhook(context.Background(), body, sign(testWebhookSecret, string(body)))
	assert.NoError(t, err)
}

func TestHandleWebhook_MalformedBodyAcknowledged(t *testing.T) {
	f := newPaymentFixture()

	body := []byte(`{not json`)
	err := f.svc.HandleWebhook(context.Background(), body, sign(testWebhookSecret, string(body)))
	assert.NoError(t, err)
}

func TestHandleWebhook_ApplyFailureAcknowledgedButNotMarked(t *testing.T) {
	f := newPaymentFixture()
	f.store.markPaidErr = assert.AnError

	body := capturedWebhookBody(t, "payment.captured", "order_gw1", "pay_abc")
	err := f.svc.HandleWebhook(context.Background(), body, sign(testWebhookSecret, string(body)))
	assert.NoError(t, err)
	// not marked processed, so the gateway retry can succeed later
	assert.False(t, f.store.processed["payment.captured:pay_abc"])
}

func TestRefundOrder(t *testing.T) {
	f := newPaymentFixture()
	paymentID := "pay_abc"
	f.store.orders[1] = &models.Order{
		ID:               1,
		UserID:           42,
		Status:           models.OrderStatusConfirmed,
		PaymentStatus:    models.PaymentStatusPaid,
		GatewayPaymentID: &paymentID,
	}

	_, err := f.svc.RefundOrder(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"pay_abc"}, f.store.refunded)
}

func TestRefundOrder_UnpaidOrder(t *testing.T) {
	f := newPaymentFixture()
	f.store.orders[1] = &models.Order{
		ID:            1,
		UserID:        42,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
	}

	_, err := f.svc.RefundOrder(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
	assert.Equal(t, "only paid orders can be refunded", apperr.From(err).Message)
	assert.Empty(t, f.store.refunded)
}

func TestRefundOrder_UnknownOrder(t *testing.T) {
	f := newPaymentFixture()

	_, err := f.svc.RefundOrder(context.Background(), 99)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestValidSignature_ConstantTimeHelper(t *testing.T) {
	sig := sign("secret", "order|payment")
	assert.True(t, validSignature("secret", "order|payment", sig))
	assert.False(t, validSignature("secret", "order|payment", "0"+sig))
	assert.False(t, validSignature("other", "order|payment", sig))
}
