// Package sink hands routed messages off to the durable store. The relay
// guarantees best-effort live delivery only; everything here runs behind a
// bounded queue so persistence can never stall routing.
package sink

import (
	"context"
	"log/slog"

	"github.com/lauraabreulima/ecochat/internal/relay"
)

// Sink persists one archived message.
type Sink interface {
	Archive(ctx context.Context, msg *ArchivedMessage) error
	Close() error
}

// ArchivedMessage is the durable-store view of a routed envelope.
type ArchivedMessage struct {
	Kind     relay.MessageKind
	Envelope *relay.Envelope
}

const defaultQueueDepth = 1024

// Archiver drains a bounded queue of routed envelopes into a Sink on a
// single background goroutine. It implements relay.MessageArchiver; Enqueue
// drops the archive copy (with a log line) rather than block the hub.
type Archiver struct {
	sink  Sink
	queue chan *ArchivedMessage
	done  chan struct{}
}

func NewArchiver(sink Sink, queueDepth int) *Archiver {
	if queueDepth <= 0 {
		queueDepth = defaultQueueDepth
	}
	return &Archiver{
		sink:  sink,
		queue: make(chan *ArchivedMessage, queueDepth),
		done:  make(chan struct{}),
	}
}

// Enqueue accepts an envelope for archival without blocking.
func (a *Archiver) Enqueue(kind relay.MessageKind, env *relay.Envelope) {
	select {
	case a.queue <- &ArchivedMessage{Kind: kind, Envelope: env}:
	default:
		slog.Warn("Archive queue full, dropping message copy",
			"kind", kind, "senderID", env.SenderID)
	}
}

// Run drains the queue until ctx is cancelled, then flushes whatever is
// already buffered and closes the sink.
func (a *Archiver) Run(ctx context.Context) {
	defer close(a.done)
	defer func() {
		if err := a.sink.Close(); err != nil {
			slog.Error("Failed to close archive sink", "error", err)
		}
	}()

	for {
		select {
		case msg := <-a.queue:
			a.archive(ctx, msg)

		case <-ctx.Done():
			for {
				select {
				case msg := <-a.queue:
					a.archive(context.Background(), msg)
				default:
					slog.Info("Archiver drained")
					return
				}
			}
		}
	}
}

// Wait blocks until Run has returned.
func (a *Archiver) Wait() {
	<-a.done
}

func (a *Archiver) archive(ctx context.Context, msg *ArchivedMessage) {
	if err := a.sink.Archive(ctx, msg); err != nil {
		slog.Error("Failed to archive message",
			"kind", msg.Kind, "senderID", msg.Envelope.SenderID, "error", err)
	}
}
