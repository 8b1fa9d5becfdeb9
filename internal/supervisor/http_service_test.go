// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

// fakeServer blocks in ListenAndServe until Shutdown or a forced error.
type fakeServer struct {
	startErr error
	done     chan struct{}
	shutdown bool
}

func newFakeServer() *fakeServer {
	return &fakeServer{done: make(chan struct{})}
}

func (f *fakeServer) ListenAndServe() error {
	if f.startErr != nil {
		return f.startErr
	}
	<-f.done
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(_ context.Context) error {
	f.shutdown = true
	close(f.done)
	return nil
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	srv := newFakeServer()
	svc := NewHTTPServerService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	// Give the serve goroutine a moment before requesting shutdown.
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
	if !srv.shutdown {
		t.Error("Shutdown was not called")
	}
}

func TestHTTPServerServiceStartFailure(t *testing.T) {
	srv := newFakeServer()
	srv.startErr = errors.New("listen tcp: address in use")
	svc := NewHTTPServerService(srv, time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, srv.startErr) {
		t.Errorf("Serve() error = %v, want wrapped start error", err)
	}
}

func TestHTTPServerServiceString(t *testing.T) {
	if got := NewHTTPServerService(newFakeServer(), 0).String(); got != "http-server" {
		t.Errorf("String() = %q", got)
	}
}
