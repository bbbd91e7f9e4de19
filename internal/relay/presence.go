package relay

import (
	"context"
	"log/slog"
)

// PresenceMirror receives online/offline transitions so presence can be
// observed outside the relay process (e.g. a Redis set read by dashboards).
// Implementations must be safe for concurrent use; the relay never blocks
// routing on a mirror and only logs its failures.
type PresenceMirror interface {
	UserOnline(ctx context.Context, userID string) error
	UserOffline(ctx context.Context, userID string) error
}

// PresenceTracker derives the online-user set from the registry and prepares
// the online-users frames broadcast to clients. The set is never stored
// independently, so it cannot diverge from the registry.
type PresenceTracker struct {
	registry *Registry
	mirror   PresenceMirror
}

func NewPresenceTracker(registry *Registry, mirror PresenceMirror) *PresenceTracker {
	return &PresenceTracker{
		registry: registry,
		mirror:   mirror,
	}
}

// Snapshot returns the current online-user set.
func (t *PresenceTracker) Snapshot() []string {
	return t.registry.OnlineUsers()
}

// SnapshotFrame returns the online-users frame carrying the full current set.
func (t *PresenceTracker) SnapshotFrame() ([]byte, error) {
	return encodeFrame(EventOnlineUsers, t.Snapshot())
}

// UserOnline mirrors an offline -> online transition. Mirror failures are
// logged, never propagated: the registry stays authoritative regardless.
func (t *PresenceTracker) UserOnline(ctx context.Context, userID string) {
	if t.mirror == nil {
		return
	}
	if err := t.mirror.UserOnline(ctx, userID); err != nil {
		slog.Error("Failed to mirror user online", "userID", userID, "error", err)
	}
}

// UserOffline mirrors an online -> offline transition.
func (t *PresenceTracker) UserOffline(ctx context.Context, userID string) {
	if t.mirror == nil {
		return
	}
	if err := t.mirror.UserOffline(ctx, userID); err != nil {
		slog.Error("Failed to mirror user offline", "userID", userID, "error", err)
	}
}
