package hub

import (
	"sync"

	"github.com/mwestergaard/go-headlock/internal/log"
)

// Hub owns the set of connected clients for one stream (status, logs or
// preview) and fans broadcast messages out to all of them. Clients that
// cannot keep up are evicted rather than allowed to stall the stream.
type Hub struct {
	// Name of the stream, for logging
	name string

	// mu guards clients; the Run goroutine writes, ClientCount reads from
	// other goroutines.
	mu      sync.Mutex
	clients map[*Client]bool

	broadcast  chan Message
	register   chan *Client
	unregister chan *Client

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a hub for one named stream.
func New(name string) *Hub {
	return &Hub{
		name:       name,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until Stop is called.
// This should be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.add(client)
		case client := <-h.unregister:
			h.remove(client)
		case message := <-h.broadcast:
			h.fanOut(message)
		case <-h.stop:
			h.closeAll()
			return
		}
	}
}

// Stop shuts the hub down and disconnects all clients. Safe to call more
// than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	log.Info("client connected", "stream", h.name, "client", client.ID, "total", count)
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	log.Info("client disconnected", "stream", h.name, "client", client.ID, "remaining", count)
}

// fanOut queues the message to every client, evicting any whose buffer is
// full. Eviction mutates the client set, so the whole pass holds the write
// lock.
func (h *Hub) fanOut(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			close(client.send)
			delete(h.clients, client)
			log.Warn("dropped slow client", "stream", h.name, "client", client.ID)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// Broadcast queues a message for fan-out, dropping it if the hub itself is
// backed up. Preview frames are disposable; status updates are superseded
// by the next frame anyway.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		log.Warn("broadcast backlog full, dropping message", "stream", h.name)
	}
}

// BroadcastStatus encodes v as JSON and broadcasts it.
func (h *Hub) BroadcastStatus(v any) error {
	msg, err := StatusMessage(v)
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// BroadcastFrame broadcasts an encoded preview frame.
func (h *Hub) BroadcastFrame(data []byte) {
	h.Broadcast(FrameMessage(data))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
