// Package bus provides event bus implementations for Harrier.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/openlease/harrier/internal/domain"
)

// ErrBusClosed is returned by operations on a closed bus.
var ErrBusClosed = errors.New("bus is closed")

// requestTimeout bounds how long Request waits for a reply.
const requestTimeout = 30 * time.Second

// ChannelBus implements EventBus on in-process Go channels. It is the
// community tier bus: single process, no durability, at-most-once
// delivery. Slow subscribers drop messages rather than stall publishers.
type ChannelBus struct {
	mu         sync.RWMutex
	bufferSize int
	topics     map[string]map[string]*channelSub
	closed     bool
	dropped    atomic.Int64
}

type channelSub struct {
	bus    *ChannelBus
	id     string
	topic  string
	inbox  chan *domain.Message
	cancel context.CancelFunc
}

// NewChannelBus creates a channel-based event bus. Each subscriber gets
// its own buffer of bufferSize messages.
func NewChannelBus(bufferSize int) *ChannelBus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &ChannelBus{
		bufferSize: bufferSize,
		topics:     make(map[string]map[string]*channelSub),
	}
}

// Publish delivers a message to every subscriber of the topic. Delivery
// is asynchronous; a subscriber whose buffer is full misses the message.
func (b *ChannelBus) Publish(ctx context.Context, topic string, payload []byte) error {
	msg := &domain.Message{
		ID:        uuid.New().String(),
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	subs := make([]*channelSub, 0, len(b.topics[topic]))
	for _, sub := range b.topics[topic] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.inbox <- msg:
		default:
			if n := b.dropped.Add(1); n%1000 == 1 {
				slog.Warn("bus dropping messages", "topic", topic, "total_dropped", n)
			}
		}
	}
	return nil
}

// Subscribe registers a handler for a topic and starts its delivery
// goroutine. The handler runs serially per subscription.
func (b *ChannelBus) Subscribe(ctx context.Context, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &channelSub{
		bus:    b,
		id:     uuid.New().String(),
		topic:  topic,
		inbox:  make(chan *domain.Message, b.bufferSize),
		cancel: cancel,
	}

	if b.topics[topic] == nil {
		b.topics[topic] = make(map[string]*channelSub)
	}
	b.topics[topic][sub.id] = sub

	go func() {
		for {
			select {
			case <-subCtx.Done():
				return
			case msg := <-sub.inbox:
				if msg == nil {
					continue
				}
				if err := handler(subCtx, msg); err != nil {
					slog.Debug("message handler failed", "topic", topic, "msg_id", msg.ID, "error", err)
				}
			}
		}
	}()

	return sub, nil
}

// Request publishes a message and waits for a single reply on a
// per-request reply topic. The responder is expected to publish its
// answer to msg.Topic + ".reply." + the request id it received.
func (b *ChannelBus) Request(ctx context.Context, topic string, payload []byte) ([]byte, error) {
	replyCh := make(chan []byte, 1)
	replyTopic := topic + ".reply." + uuid.New().String()

	sub, err := b.Subscribe(ctx, replyTopic, func(ctx context.Context, msg *domain.Message) error {
		select {
		case replyCh <- msg.Payload:
		default:
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer sub.Unsubscribe()

	if err := b.Publish(ctx, topic, payload); err != nil {
		return nil, err
	}

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(requestTimeout):
		return nil, fmt.Errorf("request on %s timed out", topic)
	}
}

// Ping reports whether the bus accepts traffic.
func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	return nil
}

// Close stops all subscriptions and rejects further publishes.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.topics {
		for _, sub := range subs {
			sub.cancel()
		}
	}
	b.topics = make(map[string]map[string]*channelSub)
	return nil
}

// Unsubscribe detaches the subscription from the bus and stops its
// delivery goroutine.
func (s *channelSub) Unsubscribe() error {
	s.cancel()

	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if subs := s.bus.topics[s.topic]; subs != nil {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(s.bus.topics, s.topic)
		}
	}
	return nil
}

// Topic returns the subscribed topic.
func (s *channelSub) Topic() string {
	return s.topic
}