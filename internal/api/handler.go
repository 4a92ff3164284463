package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"storefront-service/internal/apperr"
	"storefront-service/internal/auth"
	"storefront-service/internal/models"
	"storefront-service/internal/service"
	"storefront-service/internal/shipping"
	"storefront-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// gateway webhook signature header
const signatureHeader = "X-Razorpay-Signature"

// Handler contains HTTP handlers
type Handler struct {
	orders     *service.OrderService
	payments   *service.PaymentService
	calculator *shipping.Calculator
	verifier   *auth.Verifier
	logger     *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orders *service.OrderService,
	payments *service.PaymentService,
	calculator *shipping.Calculator,
	verifier *auth.Verifier,
) *Handler {
	return &Handler{
		orders:     orders,
		payments:   payments,
		calculator: calculator,
		verifier:   verifier,
		logger:     util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/shipping/calculate", h.calculateShipping)
		v1.GET("/shipping/zones", h.listZones)
		v1.GET("/shipping/zones/:id", h.getZone)

		authed := v1.Group("", auth.RequireAuth(h.verifier))
		{
			authed.POST("/orders", h.placeOrder)
			authed.GET("/orders", h.listOrders)
			authed.GET("/orders/:id", h.getOrder)
			authed.PUT("/orders/:id/status", h.updateOrderStatus)

			authed.POST("/payment/create-order", h.createPaymentOrder)
			authed.POST("/payment/verify-payment", h.verifyPayment)
		}

		// webhook authenticates by signature, not bearer token
		v1.POST("/payment/webhook", h.paymentWebhook)
	}
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().Unix()})
}

func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready", "time": time.Now().Unix()})
}

type calculateShippingRequest struct {
	Address    models.Address `json:"address" binding:"required"`
	OrderTotal float64        `json:"order_total"`
}

func (h *Handler) calculateShipping(c *gin.Context) {
	var req calculateShippingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.Wrap(apperr.CodeValidation, "invalid request body", err))
		return
	}

	quote, err := h.calculator.Calculate(req.Address, req.OrderTotal)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *Handler) listZones(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"zones": h.calculator.ListZones()})
}

func (h *Handler) getZone(c *gin.Context) {
	zone, err := h.calculator.ZoneByID(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, zone)
}

func (h *Handler) placeOrder(c *gin.Context) {
	principal, ok := auth.PrincipalFrom(c)
	if !ok {
		h.respondError(c, apperr.New(apperr.CodeUnauthorized, "missing bearer token"))
		return
	}

	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.Wrap(apperr.CodeValidation, "invalid request body", err))
		return
	}

	order, items, err := h.orders.PlaceOrder(c.Request.Context(), principal, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"order": order, "items": items})
}

func (h *Handler) listOrders(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)

	orders, err := h.orders.ListOrders(c.Request.Context(), principal)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) getOrder(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.respondError(c, apperr.New(apperr.CodeValidation, "invalid order id"))
		return
	}

	order, items, err := h.orders.GetOrder(c.Request.Context(), principal, orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "items": items})
}

type updateStatusRequest struct {
	Status         string  `json:"status" binding:"required"`
	TrackingNumber *string `json:"tracking_number,omitempty"`
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	principal, _ := auth.PrincipalFrom(c)

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.respondError(c, apperr.New(apperr.CodeValidation, "invalid order id"))
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.Wrap(apperr.CodeValidation, "invalid request body", err))
		return
	}

	// Refunds go through the gateway, not a plain status write.
	if req.Status == models.OrderStatusRefunded {
		if principal.Role != models.RoleAdmin {
			h.respondError(c, apperr.New(apperr.CodeForbidden, "only admins may refund orders"))
			return
		}
		order, err := h.payments.RefundOrder(c.Request.Context(), orderID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": order})
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), principal, orderID, req.Status, req.TrackingNumber)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *Handler) createPaymentOrder(c *gin.Context) {
	var req service.CreateGatewayOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.Wrap(apperr.CodeValidation, "invalid request body", err))
		return
	}

	resp, err := h.payments.CreateGatewayOrder(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type verifyPaymentRequest struct {
	GatewayOrderID string `json:"gateway_order_id" binding:"required"`
	PaymentID      string `json:"payment_id" binding:"required"`
	Signature      string `json:"signature" binding:"required"`
}

func (h *Handler) verifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.Wrap(apperr.CodeValidation, "invalid request body", err))
		return
	}

	result, err := h.payments.VerifyPayment(c.Request.Context(), req.GatewayOrderID, req.PaymentID, req.Signature)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) paymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.respondError(c, apperr.Wrap(apperr.CodeValidation, "unreadable request body", err))
		return
	}

	err = h.payments.HandleWebhook(c.Request.Context(), body, c.GetHeader(signatureHeader))
	if apperr.Is(err, apperr.CodeInvalidSignature) {
		c.JSON(http.StatusUnauthorized, errorBody(apperr.From(err)))
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func errorBody(appErr *apperr.Error) gin.H {
	return gin.H{
		"code":      appErr.Code,
		"message":   appErr.Message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
}

// respondError renders business errors with their stable code and hides
// internal failures behind a generic 500.
func (h *Handler) respondError(c *gin.Context, err error) {
	appErr := apperr.From(err)
	if appErr == nil {
		h.logger.Error("Unhandled error",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		appErr = apperr.New(apperr.CodeInternal, "internal server error")
	} else if appErr.Code == apperr.CodeInternal || appErr.Code == apperr.CodeConfiguration {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(appErr.HTTPStatus(), errorBody(appErr))
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
