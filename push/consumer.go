package push

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"loan-widget/apperr"
)

// Consumer delivers push events published on a RabbitMQ topic exchange.
type Consumer struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	exchange   string
	queue      string
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func sanitizeURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	if !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	parsed, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
		return "", fmt.Errorf("invalid AMQP scheme: %s", parsed.Scheme)
	}
	return clean, nil
}

func NewConsumer(amqpURL, exchange, queue string, dispatcher *Dispatcher, logger *slog.Logger) (*Consumer, error) {
	cleanURL, err := sanitizeURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.Dial(cleanURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	return &Consumer{
		conn:       conn,
		ch:         ch,
		exchange:   exchange,
		queue:      queue,
		dispatcher: dispatcher,
		logger:     logger,
	}, nil
}

func (c *Consumer) declare() (<-chan amqp.Delivery, error) {
	if err := c.ch.ExchangeDeclare(c.exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, err
	}

	q, err := c.ch.QueueDeclare(c.queue, true, false, false, false, nil)
	if err != nil {
		return nil, err
	}

	for _, key := range []string{RoutingKeyMessage, RoutingKeyToken} {
		if err := c.ch.QueueBind(q.Name, key, c.exchange, false, nil); err != nil {
			return nil, err
		}
	}

	return c.ch.Consume(q.Name, "", false, false, false, false, nil)
}

// Run consumes until ctx is done or the broker closes the channel.
// Every delivery is acked; nothing is requeued.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.declare()
	if err != nil {
		return fmt.Errorf("declare push topology: %w", err)
	}
	c.logger.Info("push consumer started", "exchange", c.exchange, "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("push delivery channel closed")
			}
			if err := c.dispatcher.Dispatch(ctx, d.RoutingKey, d.Body); err != nil {
				c.logger.Warn("dropping push delivery", "routing_key", d.RoutingKey, "error", err, "kind", apperr.Kind(err))
			}
			if err := d.Ack(false); err != nil {
				c.logger.Error("ack push delivery", "error", err)
			}
		}
	}
}

func (c *Consumer) Close() {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
