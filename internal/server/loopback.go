package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Loopback is a running local HTTP server.
type Loopback struct {
	srv      *http.Server
	listener net.Listener
	errs     chan error
}

// StartLoopback binds addr and serves handler in the background.
func StartLoopback(addr string, handler http.Handler) (*Loopback, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	lb := &Loopback{
		srv:      &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second},
		listener: listener,
		errs:     make(chan error, 1),
	}

	go func() {
		if err := lb.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lb.errs <- err
		}
		close(lb.errs)
	}()

	return lb, nil
}

// Addr returns the bound address, useful when addr used port 0.
func (l *Loopback) Addr() string {
	return l.listener.Addr().String()
}

// Errors yields a serve error, if any, and is closed when the server stops.
func (l *Loopback) Errors() <-chan error {
	return l.errs
}

// Shutdown gracefully stops the server.
func (l *Loopback) Shutdown(ctx context.Context) error {
	return l.srv.Shutdown(ctx)
}
