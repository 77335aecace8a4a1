package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/openlease/harrier/internal/domain"
)

// NATSBus implements EventBus using NATS.
// Used as the Pro tier event bus.
type NATSBus struct {
	conn *nats.Conn
}

// NewNATSBus creates a new NATS-based event bus.
func NewNATSBus(cfg domain.EventBusConfig) (*NATSBus, error) {
	url := cfg.NATSUrl
	if url == "" {
		url = nats.DefaultURL
	}

	maxReconnects := cfg.NATSMaxReconnects
	if maxReconnects == 0 {
		maxReconnects = 10
	}
	reconnectWait := time.Duration(cfg.NATSReconnectWait) * time.Second
	if reconnectWait == 0 {
		reconnectWait = time.Second
	}

	opts := []nats.Option{
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(reconnectWait),
		nats.Timeout(5 * time.Second),
	}
	if cfg.NATSToken != "" {
		opts = append(opts, nats.Token(cfg.NATSToken))
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSBus{conn: conn}, nil
}

// Publish sends a message to a topic. Topics are already namespaced
// so they map directly onto NATS subjects.
func (b *NATSBus) Publish(ctx context.Context, topic string, payload []byte) error {
	msg := nats.NewMsg(topic)
	msg.Data = payload
	msg.Header.Set("message-id", uuid.New().String())
	msg.Header.Set("timestamp", fmt.Sprintf("%d", time.Now().UnixNano()))

	if err := b.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish to NATS: %w", err)
	}

	return nil
}

// Subscribe registers a handler for a topic.
func (b *NATSBus) Subscribe(ctx context.Context, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	natsSub, err := b.conn.Subscribe(topic, func(natsMsg *nats.Msg) {
		msg := &domain.Message{
			ID:        natsMsg.Header.Get("message-id"),
			Topic:     topic,
			Payload:   natsMsg.Data,
			Metadata:  make(map[string]string),
			Timestamp: time.Now().UnixNano(),
		}

		for key := range natsMsg.Header {
			msg.Metadata[key] = natsMsg.Header.Get(key)
		}

		_ = handler(ctx, msg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to NATS: %w", err)
	}

	return &natsSubscription{
		sub:   natsSub,
		topic: topic,
	}, nil
}

// Request implements request-reply using NATS.
func (b *NATSBus) Request(ctx context.Context, topic string, payload []byte) ([]byte, error) {
	timeout := 30 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	reply, err := b.conn.Request(topic, payload, timeout)
	if err != nil {
		return nil, fmt.Errorf("NATS request failed: %w", err)
	}

	return reply.Data, nil
}

// Ping checks NATS connection health.
func (b *NATSBus) Ping(ctx context.Context) error {
	if !b.conn.IsConnected() {
		return fmt.Errorf("NATS connection is not active")
	}
	return nil
}

// Close closes the NATS connection.
func (b *NATSBus) Close() error {
	b.conn.Close()
	return nil
}

type natsSubscription struct {
	sub   *nats.Subscription
	topic string
}

// Unsubscribe stops receiving messages.
func (s *natsSubscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}

// Topic returns the subscribed topic.
func (s *natsSubscription) Topic() string {
	return s.topic
}
