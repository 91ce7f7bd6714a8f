package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/aeromap/odm-orchestrator/internal/config"
	"github.com/aeromap/odm-orchestrator/internal/events"
)

// appID identifies this publisher in message metadata.
const appID = "odm-orchestrator"

// channel is the subset of *amqp.Channel the notifier uses. Narrowed to an
// interface so tests can inject a fake broker.
type channel interface {
	ExchangeDeclarePassive(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Notifier publishes status events to a topic exchange. Connections are
// established lazily on first publish and re-established after failures.
type Notifier struct {
	cfg    config.AMQPConfig
	logger *slog.Logger

	// connect opens a broker connection and channel. Overridable in tests.
	connect func() (channel, io.Closer, error)

	// backoffUnit scales the linear retry backoff. One second in
	// production, shortened in tests.
	backoffUnit time.Duration

	mu   sync.Mutex
	ch   channel
	conn io.Closer
}

// NewNotifier creates a Notifier for the configured broker.
func NewNotifier(cfg config.AMQPConfig, logger *slog.Logger) *Notifier {
	n := &Notifier{
		cfg:         cfg,
		logger:      logger.With("component", "rabbitmq_notifier"),
		backoffUnit: time.Second,
	}
	n.connect = func() (channel, io.Closer, error) {
		conn, err := amqp.DialConfig(cfg.URL(), amqp.Config{
			Properties: amqp.Table{
				"connection_name": appID,
			},
		})
		if err != nil {
			return nil, nil, err
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		return ch, conn, nil
	}
	return n
}

// ensureConnected opens the connection and channel if needed and verifies
// the exchange exists.
func (n *Notifier) ensureConnected() (channel, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ch != nil {
		return n.ch, nil
	}
	ch, conn, err := n.connect()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	// The exchange is owned by the platform; declare passively so a
	// misconfigured name fails loudly instead of creating a new one.
	if err := ch.ExchangeDeclarePassive(n.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("exchange %s not available: %w", n.cfg.Exchange, err)
	}
	n.ch = ch
	n.conn = conn
	n.logger.Info("connected to broker", "host", n.cfg.Host, "vhost", n.cfg.VHost)
	return ch, nil
}

// dropConnection discards the current connection so the next attempt
// redials.
func (n *Notifier) dropConnection() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ch != nil {
		_ = n.ch.Close()
		n.ch = nil
	}
	if n.conn != nil {
		_ = n.conn.Close()
		n.conn = nil
	}
}

// Publish delivers one status event, retrying up to the configured attempt
// count with a linearly increasing delay between attempts.
func (n *Notifier) Publish(ctx context.Context, event events.StatusEvent) error {
	routingKey := fmt.Sprintf("%s.%s", n.cfg.RoutingKeyPrefix, event.Status)

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode status event: %w", err)
	}
	msg := amqp.Publishing{
		MessageId:   fmt.Sprintf("status-%s-%d-%s", event.RequestID, event.DataTypeID, event.Status),
		AppId:       appID,
		ContentType: "application/json",
		Timestamp:   event.Timestamp,
		Headers: amqp.Table{
			"requestId":  event.RequestID,
			"datatypeId": fmt.Sprintf("%d", event.DataTypeID),
			"status":     string(event.Status),
		},
		Body: body,
	}

	var lastErr error
	for attempt := 1; attempt <= n.cfg.RetryCount; attempt++ {
		ch, err := n.ensureConnected()
		if err == nil {
			err = ch.PublishWithContext(ctx, n.cfg.Exchange, routingKey, false, false, msg)
		}
		if err == nil {
			n.logger.Debug("status event published",
				"routing_key", routingKey,
				"request_id", event.RequestID,
				"datatype_id", event.DataTypeID,
				"status", event.Status,
				"attempt", attempt)
			return nil
		}

		lastErr = err
		n.logger.Warn("failed to publish status event",
			"routing_key", routingKey,
			"request_id", event.RequestID,
			"attempt", attempt,
			"error", err)
		n.dropConnection()

		if attempt < n.cfg.RetryCount {
			select {
			case <-time.After(time.Duration(attempt) * n.backoffUnit):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("failed to publish status event after %d attempts: %w", n.cfg.RetryCount, lastErr)
}

// Close shuts down the broker connection.
func (n *Notifier) Close() error {
	n.dropConnection()
	return nil
}
