package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrClientDisconnected = errors.New("client disconnected")

// MessageArchiver receives routed envelopes for asynchronous hand-off to the
// durable store. Enqueue must never block; the relay guarantees live
// delivery only and sheds the archive copy under pressure.
type MessageArchiver interface {
	Enqueue(kind MessageKind, env *Envelope)
}

// Options tune per-connection transport behavior.
type Options struct {
	// SendBuffer is the outbound queue depth per connection.
	SendBuffer int

	// PongWait bounds how long a silent peer stays connected.
	PongWait time.Duration
}

func (o *Options) withDefaults() {
	if o.SendBuffer <= 0 {
		o.SendBuffer = defaultSendBuffer
	}
	if o.PongWait <= 0 {
		o.PongWait = defaultPongWait
	}
}

func (o Options) pingPeriod() time.Duration {
	return o.PongWait * 9 / 10
}

type inboundFrame struct {
	client *Client
	frame  *Frame
}

// Stats is a point-in-time view of relay occupancy.
type Stats struct {
	Connections int `json:"connections"`
	OnlineUsers int `json:"onlineUsers"`
	Rooms       int `json:"rooms"`
}

// Hub is the relay composition root. Its single goroutine serializes every
// registry and room mutation and all fan-out, which is what preserves
// per-sender delivery order; per-connection buffered send channels keep one
// stalled recipient from holding up the rest of a broadcast.
type Hub struct {
	opts Options

	// All live connections, authenticated or anonymous.
	clients map[*Client]bool

	registry *Registry
	rooms    *RoomManager
	presence *PresenceTracker
	router   *Router
	archiver MessageArchiver

	register   chan *Client
	unregister chan *Client
	inbound    chan *inboundFrame

	ctx    context.Context
	cancel context.CancelFunc

	// Guards clients against concurrent Stats readers.
	mu sync.RWMutex
}

func NewHub(mirror PresenceMirror, archiver MessageArchiver, opts Options) *Hub {
	opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	registry := NewRegistry()
	rooms := NewRoomManager()

	return &Hub{
		opts:       opts,
		clients:    make(map[*Client]bool),
		registry:   registry,
		rooms:      rooms,
		presence:   NewPresenceTracker(registry, mirror),
		router:     NewRouter(registry, rooms),
		archiver:   archiver,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan *inboundFrame),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run drives the hub event loop until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.registerClient(c)

		case c := <-h.unregister:
			h.unregisterClient(c)

		case in := <-h.inbound:
			h.handleFrame(in.client, in.frame)

		case <-h.ctx.Done():
			slog.Info("Relay hub shutting down")
			return
		}
	}
}

func (h *Hub) Stop() {
	h.cancel()
}

// OnlineUsers returns the current presence snapshot.
func (h *Hub) OnlineUsers() []string {
	return h.presence.Snapshot()
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	connections := len(h.clients)
	h.mu.RUnlock()

	return Stats{
		Connections: connections,
		OnlineUsers: h.registry.UserCount(),
		Rooms:       h.rooms.RoomCount(),
	}
}

func (h *Hub) registerClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	slog.Info("Client registered", "clientID", c.id, "userID", c.userID, "anonymous", c.isAnonymous())

	if c.isAnonymous() {
		// Accepted but inert: no registry entry, no presence contribution.
		h.sendSnapshot(c)
		return
	}

	if first := h.registry.Register(c); first {
		go h.presence.UserOnline(h.ctx, c.userID)
		h.broadcastPresence()
		return
	}

	// Additional device of an already-online user: the set is unchanged,
	// only the new connection needs the snapshot.
	h.sendSnapshot(c)
}

func (h *Hub) unregisterClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		// Idempotent teardown: already removed.
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	h.mu.Unlock()

	c.close()

	var last bool
	if !c.isAnonymous() {
		last = h.registry.Unregister(c)
	}
	h.rooms.RemoveConnection(c)
	c.closeSendChannel()

	slog.Info("Client unregistered", "clientID", c.id, "userID", c.userID)

	if last {
		go h.presence.UserOffline(h.ctx, c.userID)
		h.broadcastPresence()
	}
}

func (h *Hub) handleFrame(c *Client, f *Frame) {
	if c.isAnonymous() {
		slog.Debug("Ignoring frame from anonymous connection", "clientID", c.id, "event", f.Event)
		return
	}
	if !f.Event.IsClientEvent() {
		slog.Warn("Dropping unsupported event", "clientID", c.id, "userID", c.userID, "event", f.Event)
		return
	}

	switch f.Event {
	case EventPrivateMessage:
		h.handleChatMessage(c, f.Payload, KindPrivate)
	case EventGroupMessage:
		h.handleChatMessage(c, f.Payload, KindGroup)
	case EventJoinGroup:
		h.handleJoinGroup(c, f.Payload)
	case EventLeaveGroup:
		h.handleLeaveGroup(c, f.Payload)
	}
}

func (h *Hub) handleChatMessage(c *Client, payload json.RawMessage, kind MessageKind) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		slog.Warn("Dropping malformed envelope", "clientID", c.id, "userID", c.userID, "error", err)
		return
	}

	var err error
	if kind == KindPrivate {
		err = h.router.RoutePrivate(c, &env)
	} else {
		err = h.router.RouteGroup(c, &env)
	}
	if err != nil {
		slog.Warn("Dropping unroutable envelope", "clientID", c.id, "userID", c.userID, "error", err)
		return
	}

	if h.archiver != nil {
		h.archiver.Enqueue(kind, &env)
	}
}

func (h *Hub) handleJoinGroup(c *Client, payload json.RawMessage) {
	ev, ok := h.parseGroupEvent(c, payload)
	if !ok {
		return
	}

	if h.rooms.Join(ev.GroupID, c) {
		slog.Info("Client joined room", "clientID", c.id, "userID", c.userID, "groupID", ev.GroupID)
		h.notifyRoom(c, ev, EventUserJoinedGroup)
	}
}

func (h *Hub) handleLeaveGroup(c *Client, payload json.RawMessage) {
	ev, ok := h.parseGroupEvent(c, payload)
	if !ok {
		return
	}

	if h.rooms.Leave(ev.GroupID, c) {
		slog.Info("Client left room", "clientID", c.id, "userID", c.userID, "groupID", ev.GroupID)
		h.notifyRoom(c, ev, EventUserLeftGroup)
	}
}

// parseGroupEvent decodes a join/leave payload and rebinds it to the
// handshake identity. Any userId claimed in the payload is discarded.
func (h *Hub) parseGroupEvent(c *Client, payload json.RawMessage) (*GroupEvent, bool) {
	var ev GroupEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		slog.Warn("Dropping malformed group event", "clientID", c.id, "userID", c.userID, "error", err)
		return nil, false
	}
	if err := ev.Validate(); err != nil {
		slog.Warn("Dropping invalid group event", "clientID", c.id, "userID", c.userID, "error", err)
		return nil, false
	}
	ev.UserID = c.userID
	return &ev, true
}

// notifyRoom tells the room's other members about a membership change.
func (h *Hub) notifyRoom(origin *Client, ev *GroupEvent, event EventType) {
	frame, err := encodeFrame(event, ev)
	if err != nil {
		slog.Error("Failed to encode room notification", "event", event, "error", err)
		return
	}

	for _, c := range h.rooms.Members(ev.GroupID) {
		if c == origin {
			continue
		}
		if err := c.deliver(frame); err != nil {
			slog.Debug("Room notification delivery failed", "clientID", c.id, "groupID", ev.GroupID, "error", err)
		}
	}
}

// broadcastPresence sends the full online-users snapshot to every connected
// client, anonymous connections included.
func (h *Hub) broadcastPresence() {
	frame, err := h.presence.SnapshotFrame()
	if err != nil {
		slog.Error("Failed to encode presence snapshot", "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.deliver(frame); err != nil {
			slog.Debug("Presence delivery failed", "clientID", c.id, "error", err)
		}
	}
}

func (h *Hub) sendSnapshot(c *Client) {
	frame, err := h.presence.SnapshotFrame()
	if err != nil {
		slog.Error("Failed to encode presence snapshot", "error", err)
		return
	}
	if err := c.deliver(frame); err != nil {
		slog.Debug("Presence delivery failed", "clientID", c.id, "error", err)
	}
}
