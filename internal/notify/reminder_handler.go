package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"loan-manager/internal/event"
	"loan-manager/internal/infrastructure/monitoring"

	amqp "github.com/rabbitmq/amqp091-go"
)

type ReminderHandler struct {
	sender ReminderSender
	logger *slog.Logger
}

func NewReminderHandler(sender ReminderSender, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{
		sender: sender,
		logger: logger.With("component", "ReminderHandler"),
	}
}

// HandleDelivery acks sent or undeliverable reminders and requeues on transport failures once.
func (h *ReminderHandler) HandleDelivery(ctx context.Context, d amqp.Delivery) {
	logCtx := h.logger.With(slog.Uint64("deliveryTag", d.DeliveryTag), slog.String("routingKey", d.RoutingKey))

	if d.RoutingKey != event.RoutingKeyPaymentReminder {
		logCtx.WarnContext(ctx, "Received message with unknown routing key. Discarding.")
		_ = d.Reject(false)
		return
	}

	var evt event.PaymentReminderEvent
	if err := json.Unmarshal(d.Body, &evt); err != nil {
		logCtx.ErrorContext(ctx, "Failed to unmarshal PaymentReminderEvent", "error", err, "body", string(d.Body))
		_ = d.Nack(false, false)
		return
	}
	if evt.CustomerEmail == "" {
		logCtx.WarnContext(ctx, "Reminder has no recipient, dropping", "loanID", evt.LoanID)
		monitoring.RecordReminder("skipped")
		_ = d.Ack(false)
		return
	}

	if err := h.sender.SendPaymentReminder(ctx, evt); err != nil {
		monitoring.RecordReminder("failed")
		requeue := !d.Redelivered
		logCtx.ErrorContext(ctx, "Failed to deliver reminder", "error", err, "requeue", requeue)
		_ = d.Nack(false, requeue)
		return
	}

	monitoring.RecordReminder("delivered")
	if err := d.Ack(false); err != nil {
		logCtx.ErrorContext(ctx, "Failed to ack message", "error", err)
	}
}
