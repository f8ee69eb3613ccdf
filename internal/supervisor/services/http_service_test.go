// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package services

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

// mockHTTPServer is a test double for HTTPServer.
type mockHTTPServer struct {
	serveErr    error
	shutdownErr error
	serveCount  atomic.Int32
	shutCount   atomic.Int32
	serving     chan struct{}
	stopCh      chan struct{}
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{
		serving: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

func (m *mockHTTPServer) Serve(l net.Listener) error {
	defer l.Close()
	m.serveCount.Add(1)
	select {
	case m.serving <- struct{}{}:
	default:
	}
	if m.serveErr != nil {
		return m.serveErr
	}
	<-m.stopCh
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(context.Context) error {
	m.shutCount.Add(1)
	close(m.stopCh)
	return m.shutdownErr
}

func TestHTTPServerService_Interface(t *testing.T) {
	var _ suture.Service = (*HTTPServerService)(nil)
}

func TestNewHTTPServerService_DefaultTimeout(t *testing.T) {
	t.Parallel()

	for _, d := range []time.Duration{0, -5 * time.Second} {
		svc := NewHTTPServerService(newMockHTTPServer(), "127.0.0.1:0", d)
		if svc.shutdownTimeout != 10*time.Second {
			t.Errorf("timeout %v: got %v, want 10s", d, svc.shutdownTimeout)
		}
	}
	if svc := NewHTTPServerService(newMockHTTPServer(), "", time.Second); svc.String() != "http-server" {
		t.Errorf("String() = %q", svc.String())
	}
}

func TestHTTPServerService_Serve(t *testing.T) {
	t.Parallel()

	t.Run("shuts down gracefully on context cancellation", func(t *testing.T) {
		t.Parallel()

		server := newMockHTTPServer()
		svc := NewHTTPServerService(server, "127.0.0.1:0", time.Second)
		ctx, cancel := context.WithCancel(context.Background())

		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()

		select {
		case <-server.serving:
		case <-time.After(time.Second):
			t.Fatal("server did not start")
		}
		if svc.Addr() == nil {
			t.Error("Addr() = nil after bind")
		}
		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Serve() = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return after cancellation")
		}
		if server.shutCount.Load() != 1 {
			t.Errorf("Shutdown calls = %d, want 1", server.shutCount.Load())
		}
	})

	t.Run("returns serve failure", func(t *testing.T) {
		t.Parallel()

		server := newMockHTTPServer()
		server.serveErr = errors.New("accept failed")
		svc := NewHTTPServerService(server, "127.0.0.1:0", time.Second)

		err := svc.Serve(context.Background())
		if err == nil || !errors.Is(err, server.serveErr) {
			t.Errorf("Serve() = %v, want wrapped accept failure", err)
		}
	})

	t.Run("returns listen failure", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		defer ln.Close()

		server := newMockHTTPServer()
		svc := NewHTTPServerService(server, ln.Addr().String(), time.Second)
		if err := svc.Serve(context.Background()); err == nil {
			t.Error("Serve() = nil on an address in use")
		}
		if server.serveCount.Load() != 0 {
			t.Error("Serve called without a listener")
		}
	})

	t.Run("returns shutdown failure", func(t *testing.T) {
		t.Parallel()

		server := newMockHTTPServer()
		server.shutdownErr = errors.New("drain timeout")
		svc := NewHTTPServerService(server, "127.0.0.1:0", time.Second)
		ctx, cancel := context.WithCancel(context.Background())

		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()
		<-server.serving
		cancel()

		if err := <-errCh; !errors.Is(err, server.shutdownErr) {
			t.Errorf("Serve() = %v, want wrapped shutdown failure", err)
		}
	})
}

func TestHTTPServerService_RealServer(t *testing.T) {
	t.Parallel()

	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "ok")
		}),
		ReadHeaderTimeout: time.Second,
	}
	svc := NewHTTPServerService(srv, "127.0.0.1:0", time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for svc.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("server never bound")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Get("http://" + svc.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("body = %q", body)
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v", err)
	}
}
