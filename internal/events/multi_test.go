package events

import (
	"context"
	"errors"
	"testing"
)

type countingPublisher struct {
	published int
	closed    bool
	err       error
}

func (c *countingPublisher) Publish(context.Context, string, any) error {
	c.published++
	return c.err
}

func (c *countingPublisher) Close() error {
	c.closed = true
	return c.err
}

func TestMultiPublisher(t *testing.T) {
	boom := errors.New("boom")
	a := &countingPublisher{}
	b := &countingPublisher{err: boom}
	c := &countingPublisher{}
	m := NewMultiPublisher(a, nil, b, c)

	err := m.Publish(context.Background(), TopicFlagChanged, &FlagChanged{Flag: "x"})
	if !errors.Is(err, boom) {
		t.Fatalf("Publish error = %v, want %v", err, boom)
	}
	for i, p := range []*countingPublisher{a, b, c} {
		if p.published != 1 {
			t.Errorf("publisher %d: published %d times, want 1", i, p.published)
		}
	}

	if err := m.Close(); !errors.Is(err, boom) {
		t.Fatalf("Close error = %v, want %v", err, boom)
	}
	if !a.closed || !b.closed || !c.closed {
		t.Error("expected every publisher to be closed")
	}
}

func TestMultiPublisher_Empty(t *testing.T) {
	m := NewMultiPublisher()
	if err := m.Publish(context.Background(), TopicFlagChanged, nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
