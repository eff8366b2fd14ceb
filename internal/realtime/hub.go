// Package realtime fans seat and booking events out to WebSocket viewers.
//
// A single dispatcher goroutine (Hub.Run) owns every map and every client
// send buffer, so group membership, booking bindings and delivery order
// need no locks.  All requests reach it through one ordered queue; events
// are enqueued without blocking and dropped when the hub is saturated,
// which matches the at-most-once delivery viewers are promised.
package realtime

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/iliyamo/showtime-booking/internal/model"
)

const (
	defaultSendBuffer  = 64
	defaultQueueBuffer = 4096
)

type op int

const (
	opJoin op = iota
	opReady
	opLeave
	opBroadcast
	opDirect
	opReply
	opBind
)

type command struct {
	op         op
	client     *Client
	connID     string
	showtimeID uint64
	bookingID  uint64
	seats      []string
	payload    []byte
}

// Hub is the in-process realtime dispatcher.  It satisfies the service
// Notifier interface.
type Hub struct {
	cmds       chan command
	done       chan struct{}
	sendBuffer int
	log        *zap.Logger

	// owned by Run
	groups   map[uint64]map[*Client]struct{}
	conns    map[string]*Client
	bookings map[uint64]*Client
}

// Option customises a Hub.
type Option func(*Hub)

// WithSendBuffer sets how many messages may queue per client before the
// client is considered too slow and dropped.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithLogger sets the hub logger.
func WithLogger(log *zap.Logger) Option {
	return func(h *Hub) { h.log = log.Named("hub") }
}

// NewHub returns a hub; call Run to start dispatching.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		cmds:       make(chan command, defaultQueueBuffer),
		done:       make(chan struct{}),
		sendBuffer: defaultSendBuffer,
		log:        zap.NewNop(),
		groups:     make(map[uint64]map[*Client]struct{}),
		conns:      make(map[string]*Client),
		bookings:   make(map[uint64]*Client),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run dispatches until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, c := range h.conns {
				h.drop(c)
			}
			return
		case cmd := <-h.cmds:
			h.handle(cmd)
		}
	}
}

func (h *Hub) handle(cmd command) {
	switch cmd.op {
	case opJoin:
		h.onJoin(cmd.client)
	case opReady:
		h.onReady(cmd.client, cmd.payload)
	case opLeave:
		h.drop(cmd.client)
	case opBroadcast:
		for c := range h.groups[cmd.showtimeID] {
			h.deliver(c, cmd.payload)
		}
	case opDirect:
		if c, ok := h.bookings[cmd.bookingID]; ok {
			h.deliver(c, cmd.payload)
		}
	case opReply:
		if _, ok := h.conns[cmd.client.ID]; ok {
			h.deliver(cmd.client, cmd.payload)
		}
	case opBind:
		h.onBind(cmd)
	}
}

func (h *Hub) onJoin(c *Client) {
	if _, dup := h.conns[c.ID]; dup {
		return
	}
	h.conns[c.ID] = c
	g := h.groups[c.ShowtimeID]
	if g == nil {
		g = make(map[*Client]struct{})
		h.groups[c.ShowtimeID] = g
	}
	g[c] = struct{}{}
	h.log.Debug("client joined", zap.String("conn_id", c.ID), zap.Uint64("showtime_id", c.ShowtimeID))
}

// onReady sends the snapshot first, then whatever was buffered while the
// snapshot was being computed, then switches the client to live delivery.
func (h *Hub) onReady(c *Client, snapshot []byte) {
	if _, ok := h.conns[c.ID]; !ok || c.live {
		return
	}
	if !h.push(c, snapshot) {
		return
	}
	for _, p := range c.pending {
		if !h.push(c, p) {
			return
		}
	}
	c.pending = nil
	c.live = true
}

func (h *Hub) onBind(cmd command) {
	c := cmd.client
	if c == nil {
		c = h.conns[cmd.connID]
	}
	if c == nil {
		return
	}
	if _, ok := h.conns[c.ID]; !ok {
		return
	}
	h.bookings[cmd.bookingID] = c
	c.Untrack(cmd.seats...)
}

// deliver queues payload for c, buffering while c awaits its snapshot.
func (h *Hub) deliver(c *Client, payload []byte) {
	if !c.live {
		if len(c.pending) >= h.sendBuffer*4 {
			h.log.Warn("join buffer overflow, dropping client", zap.String("conn_id", c.ID))
			h.drop(c)
			return
		}
		c.pending = append(c.pending, payload)
		return
	}
	h.push(c, payload)
}

// push writes to the client's send buffer or drops a client that cannot
// keep up.
func (h *Hub) push(c *Client, payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		h.log.Warn("slow client dropped", zap.String("conn_id", c.ID), zap.Uint64("user_id", c.UserID))
		h.drop(c)
		return false
	}
}

func (h *Hub) drop(c *Client) {
	if _, ok := h.conns[c.ID]; !ok {
		return
	}
	delete(h.conns, c.ID)
	if g := h.groups[c.ShowtimeID]; g != nil {
		delete(g, c)
		if len(g) == 0 {
			delete(h.groups, c.ShowtimeID)
		}
	}
	for id, bc := range h.bookings {
		if bc == c {
			delete(h.bookings, id)
		}
	}
	close(c.send)
}

// post enqueues without blocking.
func (h *Hub) post(cmd command) {
	select {
	case h.cmds <- cmd:
	default:
		h.log.Warn("hub saturated, message dropped", zap.Int("op", int(cmd.op)),
			zap.Uint64("showtime_id", cmd.showtimeID), zap.Uint64("booking_id", cmd.bookingID))
	}
}

// postWait enqueues, blocking until there is room, ctx ends or the hub stops.
func (h *Hub) postWait(ctx context.Context, cmd command) error {
	select {
	case h.cmds <- cmd:
		return nil
	case <-h.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

func encode(ev model.Event) []byte {
	b, _ := json.Marshal(ev)
	return b
}

// Broadcast sends ev to every viewer of showtimeID.  It never blocks.
func (h *Hub) Broadcast(showtimeID uint64, ev model.Event) {
	h.post(command{op: opBroadcast, showtimeID: showtimeID, payload: encode(ev)})
}

// NotifyBooking sends ev to the connection bound to bookingID, if any.
func (h *Hub) NotifyBooking(bookingID uint64, ev model.Event) {
	h.post(command{op: opDirect, bookingID: bookingID, payload: encode(ev)})
}

// BindBooking routes bookingID's notifications to connection connID and
// stops seats from being released when that connection closes.
func (h *Hub) BindBooking(connID string, bookingID uint64, seats []string) {
	h.post(command{op: opBind, connID: connID, bookingID: bookingID, seats: seats})
}

// Watch binds bookingID to c, as the watch_booking client message does.
// The caller must have checked that c's user owns the booking.
func (h *Hub) Watch(c *Client, bookingID uint64) {
	h.post(command{op: opBind, client: c, bookingID: bookingID})
}

// Reply sends ev to one client only.
func (h *Hub) Reply(c *Client, ev model.Event) {
	h.post(command{op: opReply, client: c, payload: encode(ev)})
}

// Join registers c with its showtime group in buffering mode.  Events for
// the group are held back until Ready.
func (h *Hub) Join(ctx context.Context, c *Client) error {
	return h.postWait(ctx, command{op: opJoin, client: c})
}

// Ready delivers the snapshot to c followed by any events buffered since
// Join, and switches c to live delivery.
func (h *Hub) Ready(ctx context.Context, c *Client, snapshot model.Event) error {
	snapshot.ConnectionID = c.ID
	return h.postWait(ctx, command{op: opReady, client: c, payload: encode(snapshot)})
}

// Leave unregisters c and closes its send buffer.
func (h *Hub) Leave(c *Client) {
	_ = h.postWait(context.Background(), command{op: opLeave, client: c})
}
