// Package hub fans live telemetry out to any number of dashboard clients.
// Each subscriber gets its own channel; slow consumers drop messages rather
// than stall the publisher.
package hub

import (
	crand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// subscriberBuffer absorbs short bursts before a slow client starts
// dropping.
const subscriberBuffer = 16

// Hub is a broadcast fan-out of JSON payloads.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]chan json.RawMessage
	closing     bool
}

// New creates an empty Hub.
func New() *Hub {
	return &Hub{subscribers: make(map[string]chan json.RawMessage)}
}

// randomID generates a subscriber ID (8 byte random hex encoded value).
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a new client and returns its ID and receive channel.
// The ID identifies the channel when unsubscribing.
func (h *Hub) Subscribe() (string, chan json.RawMessage) {
	id := randomID()
	ch := make(chan json.RawMessage, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		close(ch)
		return id, ch
	}
	h.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a client and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}

// Publish delivers a payload to every subscriber. Full subscriber channels
// are skipped so a stalled client cannot block the pipeline.
func (h *Hub) Publish(msg json.RawMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return
	}
	for _, ch := range h.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
}

// SubscriberCount returns the number of connected clients.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close closes all subscriber channels. Subsequent publishes are dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closing = true
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
}

// ServeSSE streams hub payloads to one HTTP client as Server-Sent-Events
// until the client goes away or the hub closes.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	id, ch := h.Subscribe()
	defer h.Unsubscribe(id)

	// Initial ping to establish the stream
	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case payload, ok := <-ch:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
