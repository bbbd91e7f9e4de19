package sink

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lauraabreulima/ecochat/internal/relay"
)

type fakeSink struct {
	mu       sync.Mutex
	archived []*ArchivedMessage
	err      error
	closed   bool
}

func (f *fakeSink) Archive(ctx context.Context, msg *ArchivedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.archived = append(f.archived, msg)
	return nil
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSink) snapshot() []*ArchivedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*ArchivedMessage(nil), f.archived...)
}

func (f *fakeSink) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestArchiverDrainsQueueIntoSink(t *testing.T) {
	fake := &fakeSink{}
	archiver := NewArchiver(fake, 16)

	ctx, cancel := context.WithCancel(context.Background())
	go archiver.Run(ctx)

	archiver.Enqueue(relay.KindPrivate, &relay.Envelope{
		SenderID:    "U1",
		RecipientID: "U2",
		Content:     "flood alert",
	})
	archiver.Enqueue(relay.KindGroup, &relay.Envelope{
		SenderID: "U1",
		GroupID:  "G1",
		Content:  "sensor offline",
	})

	cancel()
	archiver.Wait()

	archived := fake.snapshot()
	require.Len(t, archived, 2)
	assert.Equal(t, relay.KindPrivate, archived[0].Kind)
	assert.Equal(t, "flood alert", archived[0].Envelope.Content)
	assert.Equal(t, relay.KindGroup, archived[1].Kind)
	assert.True(t, fake.isClosed(), "sink must be closed on shutdown")
}

func TestArchiverDropsWhenQueueFull(t *testing.T) {
	fake := &fakeSink{}
	archiver := NewArchiver(fake, 1)

	// Run is never started, so the queue cannot drain
	archiver.Enqueue(relay.KindPrivate, &relay.Envelope{SenderID: "U1", Content: "kept"})
	archiver.Enqueue(relay.KindPrivate, &relay.Envelope{SenderID: "U1", Content: "shed"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	go archiver.Run(ctx)
	archiver.Wait()

	archived := fake.snapshot()
	require.Len(t, archived, 1, "overflow must shed, never block")
	assert.Equal(t, "kept", archived[0].Envelope.Content)
}

func TestArchiverSurvivesSinkErrors(t *testing.T) {
	fake := &fakeSink{err: errors.New("db down")}
	archiver := NewArchiver(fake, 16)

	ctx, cancel := context.WithCancel(context.Background())
	go archiver.Run(ctx)

	archiver.Enqueue(relay.KindPrivate, &relay.Envelope{SenderID: "U1", Content: "lost"})

	cancel()
	archiver.Wait()

	assert.Empty(t, fake.snapshot())
	assert.True(t, fake.isClosed())
}
