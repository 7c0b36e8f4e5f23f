package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/toggles/internal/events"
)

const (
	// sseReplaySize is how many recent events are kept for Last-Event-ID
	// replay.
	sseReplaySize = 512

	// sseClientBuffer is the per-client queue; events beyond it are dropped
	// for that client.
	sseClientBuffer = 64

	sseKeepaliveInterval = 15 * time.Second
)

// sseEvent is one frame of the change stream.
type sseEvent struct {
	Seq   uint64
	Topic string
	Data  []byte
}

// sseHub fans emitted events out to connected stream clients and keeps a
// bounded history for reconnecting ones. It is an events.Publisher so the
// forwarder can feed it directly.
type sseHub struct {
	mu      sync.Mutex
	seq     uint64
	clients map[*sseClient]struct{}
	history []sseEvent // oldest first, at most sseReplaySize
}

var _ events.Publisher = (*sseHub)(nil)

type sseClient struct {
	topics []string
	ch     chan sseEvent
}

func newSSEHub() *sseHub {
	return &sseHub{clients: make(map[*sseClient]struct{})}
}

// Publish encodes event and broadcasts it on topic.
func (h *sseHub) Publish(_ context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("sse: marshal %s: %w", topic, err)
	}
	h.broadcast(topic, data)
	return nil
}

// Close is a no-op; clients go away with their requests.
func (h *sseHub) Close() error { return nil }

func (h *sseHub) broadcast(topic string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	evt := sseEvent{Seq: h.seq, Topic: topic, Data: data}
	if len(h.history) == sseReplaySize {
		copy(h.history, h.history[1:])
		h.history = h.history[:sseReplaySize-1]
	}
	h.history = append(h.history, evt)

	for c := range h.clients {
		if !c.wants(topic) {
			continue
		}
		select {
		case c.ch <- evt:
		default:
		}
	}
}

// subscribe registers a client. Events after lastSeq still in history are
// returned for replay; registration and the history read happen under one
// lock so nothing is missed or doubled.
func (h *sseHub) subscribe(topics []string, lastSeq uint64) (*sseClient, []sseEvent) {
	c := &sseClient{topics: topics, ch: make(chan sseEvent, sseClientBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}

	var replay []sseEvent
	if lastSeq > 0 {
		for _, evt := range h.history {
			if evt.Seq > lastSeq && c.wants(evt.Topic) {
				replay = append(replay, evt)
			}
		}
	}
	return c, replay
}

func (h *sseHub) unsubscribe(c *sseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *sseHub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// wants reports whether any of the client's filters match topic. No
// filters means every topic.
func (c *sseClient) wants(topic string) bool {
	if len(c.topics) == 0 {
		return true
	}
	for _, pattern := range c.topics {
		if matchTopic(pattern, topic) {
			return true
		}
	}
	return false
}

// matchTopic matches a dot-separated topic against a NATS-style pattern:
// "*" is exactly one segment, a trailing ">" is one or more.
func matchTopic(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	pat := strings.Split(pattern, ".")
	segs := strings.Split(topic, ".")
	for i, p := range pat {
		if p == ">" {
			return i < len(segs)
		}
		if i >= len(segs) || (p != "*" && p != segs[i]) {
			return false
		}
	}
	return len(pat) == len(segs)
}

// handleEventStream handles GET /v1/events/stream. ?topics= takes a comma
// separated list of topic patterns.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var topics []string
	for _, t := range strings.Split(r.URL.Query().Get("topics"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	lastSeq, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)

	client, replay := s.hub.subscribe(topics, lastSeq)
	defer s.hub.unsubscribe(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	for _, evt := range replay {
		writeSSEEvent(w, evt)
	}
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-client.ch:
			writeSSEEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, evt sseEvent) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", evt.Seq, evt.Topic, evt.Data)
}
