package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"loadhub-core-svc/src/internal/config"
	"loadhub-core-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// amqpChannel is the part of *amqp.Channel the publisher needs.
type amqpChannel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// EventPublisher publishes domain events to the RabbitMQ topic exchange.
type EventPublisher struct {
	channel amqpChannel
	cfg     *config.RabbitMQConfig
}

func NewEventPublisher(cfg *config.RabbitMQConfig, channel amqpChannel) *EventPublisher {
	return &EventPublisher{
		channel: channel,
		cfg:     cfg,
	}
}

func (p *EventPublisher) Publish(ctx context.Context, msg *models.EventMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal event message: %w", err)
	}

	routingKey := p.routingKey(msg.Event)
	err = p.channel.Publish(
		p.cfg.Exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Type:         msg.Event,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)

	if err != nil {
		return fmt.Errorf("%w: failed to publish event message: %v", models.ErrUnavailable, err)
	}

	logrus.WithFields(logrus.Fields{
		"event":       msg.Event,
		"message_id":  msg.ID,
		"load_id":     msg.LoadID,
		"exchange":    p.cfg.Exchange,
		"routing_key": routingKey,
	}).Debug("Event message published")

	return nil
}

// routingKey maps "load.accepted" to "<load-routing-key>.accepted".
func (p *EventPublisher) routingKey(event string) string {
	base := p.cfg.LoadRoutingKey
	if strings.HasPrefix(event, "auth.") {
		base = p.cfg.AuthRoutingKey
	}
	if i := strings.IndexByte(event, '.'); i >= 0 {
		return base + event[i:]
	}
	return base + "." + event
}
