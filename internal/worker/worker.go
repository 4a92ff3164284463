package worker

import (
	"context"

	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// EmailSender is the external email-delivery capability. Implementations talk
// to the provider; the worker only hands events over.
type EmailSender interface {
	SendOrderConfirmation(ctx context.Context, event *models.OrderPlacedEvent) error
	SendOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
}

// NotificationWorker consumes order events and dispatches customer email.
// Email is fire-and-forget from the order workflow's perspective: failures
// here are logged and counted, never retried against the order.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

func NewNotificationWorker(consumer *broker.Consumer, sender EmailSender) *NotificationWorker {
	logger := util.GetLogger()
	eventHandler := broker.NewEventHandler()

	eventHandler.OnOrderPlaced(func(ctx context.Context, event *models.OrderPlacedEvent) error {
		if err := sender.SendOrderConfirmation(ctx, event); err != nil {
			util.EmailsFailedTotal.Inc()
			logger.Error("Failed to send order confirmation email",
				zap.Int64("order_id", event.OrderID),
				zap.String("order_number", event.OrderNumber),
				zap.Error(err))
			return nil
		}
		util.EmailsSentTotal.Inc()
		return nil
	})

	eventHandler.OnOrderCancelled(func(ctx context.Context, event *models.OrderCancelledEvent) error {
		if err := sender.SendOrderCancelled(ctx, event); err != nil {
			logger.Error("Failed to send order cancellation email",
				zap.Int64("order_id", event.OrderID),
				zap.Error(err))
		}
		return nil
	})

	return &NotificationWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       logger,
	}
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

// LogEmailSender is the stand-in sender used until a provider is wired in.
type LogEmailSender struct {
	Logger *zap.Logger
}

func (s *LogEmailSender) SendOrderConfirmation(_ context.Context, event *models.OrderPlacedEvent) error {
	s.Logger.Info("Order confirmation email",
		zap.String("order_number", event.OrderNumber),
		zap.Int64("user_id", event.UserID),
		zap.Float64("total", event.TotalAmount),
		zap.Int("item_count", len(event.Items)))
	return nil
}

func (s *LogEmailSender) SendOrderCancelled(_ context.Context, event *models.OrderCancelledEvent) error {
	s.Logger.Info("Order cancellation email",
		zap.String("order_number", event.OrderNumber),
		zap.Int64("user_id", event.UserID))
	return nil
}
