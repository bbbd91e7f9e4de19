package relay

import (
	"fmt"
	"log/slog"
)

// Router resolves an inbound envelope to its live target connections and
// delivers it. It holds no state of its own beyond references to the registry
// and room manager, and it never retries: delivery is fire-and-forget,
// at-most-once per live connection. Durable delivery is the external store's
// job.
type Router struct {
	registry *Registry
	rooms    *RoomManager
}

func NewRouter(registry *Registry, rooms *RoomManager) *Router {
	return &Router{
		registry: registry,
		rooms:    rooms,
	}
}

// RoutePrivate delivers an envelope to every live connection of its
// recipient. An offline recipient is a silent no-op, not an error. The
// sender's identity is taken from the handshake-bound connection, never from
// the payload.
func (r *Router) RoutePrivate(sender *Client, env *Envelope) error {
	if err := env.ValidatePrivate(); err != nil {
		return err
	}
	env.stamp(sender.userID)

	frame, err := encodeFrame(EventPrivateMessage, env)
	if err != nil {
		return fmt.Errorf("route private: %w", err)
	}

	targets := r.registry.Lookup(env.RecipientID)
	for _, c := range targets {
		if err := c.deliver(frame); err != nil {
			// Isolate the fault to this connection and continue with the
			// remaining targets.
			slog.Debug("Private delivery failed", "clientID", c.id, "recipientID", env.RecipientID, "error", err)
		}
	}

	slog.Debug("Private message routed",
		"senderID", env.SenderID, "recipientID", env.RecipientID, "connections", len(targets))
	return nil
}

// RouteGroup delivers an envelope to every connection subscribed to its room
// except the sending connection, which already holds the message locally.
// The sender need not be a room member; membership authority lives upstream.
func (r *Router) RouteGroup(sender *Client, env *Envelope) error {
	if err := env.ValidateGroup(); err != nil {
		return err
	}
	env.stamp(sender.userID)

	frame, err := encodeFrame(EventGroupMessage, env)
	if err != nil {
		return fmt.Errorf("route group: %w", err)
	}

	delivered := 0
	for _, c := range r.rooms.Members(env.GroupID) {
		if c == sender {
			continue
		}
		if err := c.deliver(frame); err != nil {
			slog.Debug("Group delivery failed", "clientID", c.id, "groupID", env.GroupID, "error", err)
			continue
		}
		delivered++
	}

	slog.Debug("Group message routed",
		"senderID", env.SenderID, "groupID", env.GroupID, "delivered", delivered)
	return nil
}
