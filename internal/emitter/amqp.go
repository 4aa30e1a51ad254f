package emitter

import (
	"context"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cjeanneret/RecPause/internal/debug"
)

// AMQPPublisher publishes to a durable topic exchange. Topics are turned
// into routing keys by replacing "/" with ".".
type AMQPPublisher struct {
	exchange string
	conn     *amqp.Connection
	ch       *amqp.Channel
}

// DialAMQP connects to url and declares exchange.
func DialAMQP(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp declare exchange %q: %w", exchange, err)
	}

	debug.Info("amqp initialized: exchange=%s", exchange)
	return &AMQPPublisher{exchange: exchange, conn: conn, ch: ch}, nil
}

// RoutingKey maps a slash separated topic to an AMQP routing key.
func RoutingKey(topic string) string {
	return strings.ReplaceAll(strings.Trim(topic, "/"), "/", ".")
}

// Publish sends payload. State messages (retain) are persistent; advisories
// are transient.
func (p *AMQPPublisher) Publish(topic string, payload []byte, retain bool) error {
	mode := amqp.Transient
	if retain {
		mode = amqp.Persistent
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(ctx,
		p.exchange,        // exchange
		RoutingKey(topic), // routing key
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: mode,
			Timestamp:    time.Now(),
		},
	)
}

// Close closes the channel and the connection.
func (p *AMQPPublisher) Close() error {
	chErr := p.ch.Close()
	if err := p.conn.Close(); err != nil {
		return err
	}
	return chErr
}
