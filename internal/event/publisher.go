package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publisherAppID = "loan-manager"

type EventPublisher interface {
	PublishLoanEvent(ctx context.Context, routingKey string, event LoanEvent) error
	PublishCustomerEvent(ctx context.Context, routingKey string, event CustomerEvent) error
	PublishPaymentReminder(ctx context.Context, event PaymentReminderEvent) error
}

// channelOpener is the part of *amqp.Connection the publisher needs.
type channelOpener interface {
	Channel() (*amqp.Channel, error)
}

type RabbitMQEventPublisher struct {
	conn         channelOpener
	exchangeName string
	logger       *slog.Logger
}

var _ EventPublisher = (*RabbitMQEventPublisher)(nil)

func NewRabbitMQEventPublisher(conn *amqp.Connection, exchangeName string, logger *slog.Logger) (*RabbitMQEventPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("RabbitMQ connection cannot be nil")
	}
	if exchangeName == "" {
		return nil, fmt.Errorf("RabbitMQ exchange name cannot be empty")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	tempCh, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open temporary channel for exchange declaration: %w", err)
	}
	defer tempCh.Close()

	if err := declareExchange(tempCh, exchangeName); err != nil {
		return nil, err
	}
	logger.Info("Ensured RabbitMQ exchange exists", "exchange", exchangeName, "type", amqp.ExchangeTopic)

	return &RabbitMQEventPublisher{
		conn:         conn,
		exchangeName: exchangeName,
		logger:       logger.With("component", "RabbitMQEventPublisher", "exchange", exchangeName),
	}, nil
}

func declareExchange(ch *amqp.Channel, exchangeName string) error {
	err := ch.ExchangeDeclare(
		exchangeName,
		amqp.ExchangeTopic,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange '%s': %w", exchangeName, err)
	}
	return nil
}

func (p *RabbitMQEventPublisher) PublishLoanEvent(ctx context.Context, routingKey string, event LoanEvent) error {
	return p.publish(ctx, routingKey, event)
}

func (p *RabbitMQEventPublisher) PublishCustomerEvent(ctx context.Context, routingKey string, event CustomerEvent) error {
	return p.publish(ctx, routingKey, event)
}

func (p *RabbitMQEventPublisher) PublishPaymentReminder(ctx context.Context, event PaymentReminderEvent) error {
	return p.publish(ctx, RoutingKeyPaymentReminder, event)
}

func (p *RabbitMQEventPublisher) publish(ctx context.Context, routingKey string, payload interface{}) error {
	logCtx := p.logger.With(slog.String("routingKey", routingKey))

	channel, err := p.conn.Channel()
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to open RabbitMQ channel", slog.Any("error", err))
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer channel.Close()

	body, err := json.Marshal(payload)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to marshal event payload to JSON", slog.Any("error", err))
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	logCtx.DebugContext(ctx, "Publishing message", "bodySize", len(body))

	err = channel.PublishWithContext(
		ctx,
		p.exchangeName,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
			AppId:        publisherAppID,
		},
	)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to publish message to RabbitMQ", slog.Any("error", err))
		return fmt.Errorf("failed to publish message: %w", err)
	}

	logCtx.InfoContext(ctx, "Successfully published message")
	return nil
}

// NoopEventPublisher drops every event. Used when RabbitMQ is disabled.
type NoopEventPublisher struct {
	logger *slog.Logger
}

var _ EventPublisher = (*NoopEventPublisher)(nil)

func NewNoopEventPublisher(logger *slog.Logger) *NoopEventPublisher {
	return &NoopEventPublisher{logger: logger.With("component", "NoopEventPublisher")}
}

func (p *NoopEventPublisher) PublishLoanEvent(ctx context.Context, routingKey string, _ LoanEvent) error {
	p.logger.DebugContext(ctx, "Dropping event, publisher disabled", "routingKey", routingKey)
	return nil
}

func (p *NoopEventPublisher) PublishCustomerEvent(ctx context.Context, routingKey string, _ CustomerEvent) error {
	p.logger.DebugContext(ctx, "Dropping event, publisher disabled", "routingKey", routingKey)
	return nil
}

func (p *NoopEventPublisher) PublishPaymentReminder(ctx context.Context, _ PaymentReminderEvent) error {
	p.logger.DebugContext(ctx, "Dropping event, publisher disabled", "routingKey", RoutingKeyPaymentReminder)
	return nil
}
