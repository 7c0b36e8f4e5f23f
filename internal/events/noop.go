package events

import (
	"context"
	"sync"
)

var (
	_ Publisher  = (*NoopPublisher)(nil)
	_ Subscriber = (*NoopSubscriber)(nil)
)

// NoopPublisher is a Publisher that does nothing (used when NATS is not configured).
type NoopPublisher struct{}

func (n *NoopPublisher) Publish(ctx context.Context, topic string, event any) error {
	return nil
}

func (n *NoopPublisher) Close() error {
	return nil
}

// NoopSubscriber never delivers anything. Its channels close on cancel.
type NoopSubscriber struct{}

func (n *NoopSubscriber) Subscribe(topic string) (<-chan []byte, func(), error) {
	ch := make(chan []byte)
	var once sync.Once
	return ch, func() { once.Do(func() { close(ch) }) }, nil
}

func (n *NoopSubscriber) Close() error {
	return nil
}
