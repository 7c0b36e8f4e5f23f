package events

import (
	"context"
	"errors"
)

// MultiPublisher publishes every event to each of its publishers in turn.
type MultiPublisher struct {
	pubs []Publisher
}

var _ Publisher = (*MultiPublisher)(nil)

// NewMultiPublisher returns a publisher fanning out to pubs. Nil entries are
// skipped.
func NewMultiPublisher(pubs ...Publisher) *MultiPublisher {
	m := &MultiPublisher{}
	for _, p := range pubs {
		if p != nil {
			m.pubs = append(m.pubs, p)
		}
	}
	return m
}

// Publish sends event to every publisher, even after one fails. The
// returned error joins every failure.
func (m *MultiPublisher) Publish(ctx context.Context, topic string, event any) error {
	var errs []error
	for _, p := range m.pubs {
		if err := p.Publish(ctx, topic, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every publisher.
func (m *MultiPublisher) Close() error {
	var errs []error
	for _, p := range m.pubs {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
