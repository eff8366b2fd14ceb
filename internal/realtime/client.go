package realtime

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/iliyamo/showtime-booking/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one viewer connection joined to a showtime group.
type Client struct {
	ID         string
	UserID     uint64
	ShowtimeID uint64

	conn *websocket.Conn
	send chan []byte

	mu      sync.Mutex
	tracked map[string]struct{}

	// owned by the hub dispatcher
	live    bool
	pending [][]byte
}

// NewClient wraps a WebSocket connection.  conn may be nil for clients
// that are driven directly through Messages, as in tests.
func NewClient(h *Hub, conn *websocket.Conn, userID, showtimeID uint64) *Client {
	return &Client{
		ID:         uuid.NewString(),
		UserID:     userID,
		ShowtimeID: showtimeID,
		conn:       conn,
		send:       make(chan []byte, h.sendBuffer),
		tracked:    make(map[string]struct{}),
	}
}

// Messages exposes the client's outbound queue.  It is closed when the
// hub drops the client.
func (c *Client) Messages() <-chan []byte { return c.send }

// Track records a seat acquired over this connection.
func (c *Client) Track(seat string) {
	c.mu.Lock()
	c.tracked[seat] = struct{}{}
	c.mu.Unlock()
}

// Untrack forgets seats, for example once they are claimed by a booking.
func (c *Client) Untrack(seats ...string) {
	c.mu.Lock()
	for _, s := range seats {
		delete(c.tracked, s)
	}
	c.mu.Unlock()
}

// TrackedSeats returns the seats still eligible for release on disconnect.
func (c *Client) TrackedSeats() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.tracked))
	for s := range c.tracked {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// WritePump copies queued messages to the socket and keeps it alive with
// pings.  It returns when the hub closes the queue or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump decodes client messages and passes them to handle until the
// connection fails or is closed.  Malformed messages are answered through
// handle with Type set to model.EventError.
func (c *Client) ReadPump(handle func(model.Event)) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg model.Event
		if err := json.Unmarshal(data, &msg); err != nil {
			handle(model.Event{Type: model.EventError, Message: "malformed message"})
			continue
		}
		handle(msg)
	}
}
