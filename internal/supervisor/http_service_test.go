// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package supervisor

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/pharmex/relay/internal/logging"
)

//nolint:gochecknoinits
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

// fakeServer blocks in ListenAndServe until Shutdown is called, mirroring
// http.Server's contract including the ErrServerClosed return.
type fakeServer struct {
	startErr error
	done     chan struct{}
	shutdown chan struct{}
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		done:     make(chan struct{}),
		shutdown: make(chan struct{}),
	}
}

func (s *fakeServer) ListenAndServe() error {
	if s.startErr != nil {
		return s.startErr
	}
	<-s.shutdown
	return errors.New("http: Server closed")
}

func (s *fakeServer) Shutdown(context.Context) error {
	close(s.shutdown)
	close(s.done)
	return nil
}

func TestHTTPServiceStartFailureReturnsError(t *testing.T) {
	srv := newFakeServer()
	srv.startErr = errors.New("listen tcp: address in use")

	svc := NewHTTPService(srv, time.Second)
	err := svc.Serve(context.Background())
	if err == nil {
		t.Fatal("expected startup error")
	}
}

func TestHTTPServiceShutsDownOnCancel(t *testing.T) {
	srv := newFakeServer()
	svc := NewHTTPService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	select {
	case <-srv.done:
	default:
		t.Fatal("Shutdown was not called")
	}
}

func TestTreeRunsServicesUntilCanceled(t *testing.T) {
	tree := NewTree(TreeConfig{})

	started := make(chan struct{})
	svc := serveFunc(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	tree.AddMessagingService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("service never started")
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not stop after cancel")
	}
}

type serveFunc func(ctx context.Context) error

func (f serveFunc) Serve(ctx context.Context) error { return f(ctx) }
func (f serveFunc) String() string                  { return "test-service" }
