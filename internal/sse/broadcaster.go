// Package sse pushes packet notifications to users over Server-Sent Events.
package sse

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rpggio/packetd/internal/notify"
	"github.com/rs/zerolog"
)

const (
	// EnqueueTimeout bounds how long a delivery waits on a full client queue.
	EnqueueTimeout = 2 * time.Second
	// HeartbeatInterval is the keep-alive comment interval.
	HeartbeatInterval = 15 * time.Second

	clientQueueSize = 32
)

// Client is one connected stream of a user.
type Client struct {
	ID     string
	UserID int64
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

// Broadcaster fans deliveries out to each user's connected clients.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[int64]map[string]*Client
	logger  zerolog.Logger
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		clients: make(map[int64]map[string]*Client),
		logger:  logger,
	}
}

// AddClient registers a stream for userID.
func (b *Broadcaster) AddClient(userID int64) *Client {
	client := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		send:   make(chan []byte, clientQueueSize),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.clients[userID] == nil {
		b.clients[userID] = make(map[string]*Client)
	}
	b.clients[userID][client.ID] = client
	count := len(b.clients[userID])
	b.mu.Unlock()

	b.logger.Debug().
		Int64("user_id", userID).
		Str("client_id", client.ID).
		Int("user_clients", count).
		Msg("stream client connected")
	return client
}

// RemoveClient unregisters a stream.
func (b *Broadcaster) RemoveClient(client *Client) {
	b.mu.Lock()
	if set := b.clients[client.UserID]; set != nil {
		delete(set, client.ID)
		if len(set) == 0 {
			delete(b.clients, client.UserID)
		}
	}
	b.mu.Unlock()
	client.close()

	b.logger.Debug().
		Int64("user_id", client.UserID).
		Str("client_id", client.ID).
		Msg("stream client disconnected")
}

// ClientCount returns the number of streams connected for userID.
func (b *Broadcaster) ClientCount(userID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[userID])
}

// Deliver queues d on every stream of its user. It fails with
// notify.ErrNoSubscribers when the user has no stream or none accepted it.
func (b *Broadcaster) Deliver(ctx context.Context, d notify.Delivery) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode sse frame: %w", err)
	}
	frame := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", d.Kind, data))

	b.mu.RLock()
	targets := make([]*Client, 0, len(b.clients[d.UserID]))
	for _, c := range b.clients[d.UserID] {
		targets = append(targets, c)
	}
	b.mu.RUnlock()

	if len(targets) == 0 {
		return notify.ErrNoSubscribers
	}

	accepted := 0
	for _, c := range targets {
		if b.enqueue(ctx, c, frame) {
			accepted++
		}
	}
	if accepted == 0 {
		return fmt.Errorf("%w: all %d streams stalled", notify.ErrNoSubscribers, len(targets))
	}
	return nil
}

func (b *Broadcaster) enqueue(ctx context.Context, c *Client, frame []byte) bool {
	timer := time.NewTimer(EnqueueTimeout)
	defer timer.Stop()

	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	case <-ctx.Done():
		return false
	case <-timer.C:
		b.logger.Warn().
			Int64("user_id", c.UserID).
			Str("client_id", c.ID).
			Msg("stream client stalled, dropping")
		b.RemoveClient(c)
		return false
	}
}

// Serve streams userID's deliveries to w until the request ends.
func (b *Broadcaster) Serve(w http.ResponseWriter, r *http.Request, userID int64) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := b.AddClient(userID)
	defer b.RemoveClient(client)

	fmt.Fprintf(w, "event: connected\ndata: {\"type\":\"connected\",\"client_id\":%q}\n\n", client.ID)
	flusher.Flush()

	heartbeat := time.NewTicker(HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.done:
			return
		case frame := <-client.send:
			if _, err := w.Write(frame); err != nil {
				b.logger.Debug().Err(err).Str("client_id", client.ID).Msg("stream write failed")
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
