package ws

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

// stubBus satisfies domain.SignalBus with inert channels.
type stubBus struct{}

func (stubBus) Publish(ctx context.Context, channel string, payload []byte) error { return nil }

func (stubBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

func (stubBus) StreamAppend(ctx context.Context, stream string, payload []byte) error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDetachAfterShutdown(t *testing.T) {
	h := NewHub(stubBus{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan error, 1)
	go func() { ran <- h.Run(ctx) }()

	cancel()
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop on context cancellation")
	}

	// A pump exiting after the hub stopped must not block on unregister.
	c := &client{hub: h, send: make(chan []byte, 1), subs: make(map[string]bool)}
	detached := make(chan struct{})
	go func() {
		c.detach()
		close(detached)
	}()

	select {
	case <-detached:
	case <-time.After(time.Second):
		t.Fatal("detach blocked after hub shutdown")
	}
}

func TestRunClosesClientSends(t *testing.T) {
	h := NewHub(stubBus{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan error, 1)
	go func() { ran <- h.Run(ctx) }()

	c := &client{hub: h, send: make(chan []byte, 1), subs: make(map[string]bool)}
	select {
	case h.register <- c:
	case <-time.After(time.Second):
		t.Fatal("register blocked while hub running")
	}

	cancel()
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop on context cancellation")
	}

	select {
	case _, open := <-c.send:
		if open {
			t.Error("send channel delivered a message instead of closing")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed on shutdown")
	}
}
