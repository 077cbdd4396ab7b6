// Package server implements the TCP listener and per-connection dispatch for
// the static-file HTTP server.
//
// Each accepted connection is handled by its own goroutine, which parses
// exactly one HTTP request, drives it through rate-check, resolution and
// counting, writes exactly one response and closes the connection. A failure
// in one connection goroutine never affects the accept loop or any other
// connection.
package server

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/webfsd/webfsd/internal/counter"
	"github.com/webfsd/webfsd/internal/logger"
	"github.com/webfsd/webfsd/internal/ratelimiter"
	"github.com/webfsd/webfsd/internal/resolver"
	"github.com/webfsd/webfsd/pkg/metrics"
)

// Config holds the server's fixed runtime parameters. Rate-limit policy and
// the served root are carried by the injected limiter and resolver.
type Config struct {
	// Host to bind. Empty binds all interfaces.
	Host string

	// Port to listen on. 0 picks an ephemeral port (used by tests).
	Port int

	// MaxConnections caps concurrent connections. 0 means unlimited.
	MaxConnections int

	// ReadTimeout bounds reading the request. 0 disables the deadline and
	// lets a stalled client occupy its worker indefinitely.
	ReadTimeout time.Duration

	// ShutdownTimeout is how long Stop waits for in-flight connections.
	ShutdownTimeout time.Duration
}

// Server owns the listener and the shared state every connection goroutine
// operates on. The rate limiter and counter registry are injected, never
// package globals, so tests construct isolated instances.
type Server struct {
	config   Config
	resolver *resolver.Resolver
	limiter  ratelimiter.Limiter
	counters *counter.Registry
	metrics  metrics.ServerMetrics

	listener net.Listener

	// activeConns tracks connection goroutines for graceful shutdown.
	activeConns sync.WaitGroup

	// shutdown is closed once when shutdown is initiated.
	shutdown     chan struct{}
	shutdownOnce sync.Once

	// connCount feeds the active-connections gauge.
	connCount atomic.Int32

	// connSemaphore limits concurrency when MaxConnections > 0, nil
	// otherwise.
	connSemaphore chan struct{}

	// boundAddr is set once the listener is bound, for Addr().
	boundAddr atomic.Value // string
}

// New creates a Server. A nil limiter disables admission control and a nil
// metrics sink disables collection.
func New(cfg Config, res *resolver.Resolver, limiter ratelimiter.Limiter, counters *counter.Registry, m metrics.ServerMetrics) *Server {
	if res == nil {
		panic("resolver cannot be nil")
	}
	if counters == nil {
		counters = counter.NewRegistry()
	}
	if m == nil {
		m = metrics.NewNoopServerMetrics()
	}

	s := &Server{
		config:   cfg,
		resolver: res,
		limiter:  limiter,
		counters: counters,
		metrics:  m,
		shutdown: make(chan struct{}),
	}
	if cfg.MaxConnections > 0 {
		s.connSemaphore = make(chan struct{}, cfg.MaxConnections)
	}
	return s
}

// Addr returns the listener's bound address, or "" before Serve has bound it.
func (s *Server) Addr() string {
	if addr, ok := s.boundAddr.Load().(string); ok {
		return addr
	}
	return ""
}

// Counters exposes the hit-count registry, for diagnostics and tests.
func (s *Server) Counters() *counter.Registry {
	return s.counters
}

// Serve binds the listener and accepts connections until the context is
// cancelled or Stop is called. The accept loop never blocks on request
// processing; every accepted connection is handed to its own goroutine.
func (s *Server) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start listener on %s: %w", addr, err)
	}

	s.listener = listener
	s.boundAddr.Store(listener.Addr().String())
	logger.Info("Server listening on %s, serving %s", listener.Addr(), s.resolver.Root())

	go func() {
		select {
		case <-ctx.Done():
			s.initiateShutdown()
		case <-s.shutdown:
		}
	}()

	for {
		tcpConn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return s.drain()
			case <-ctx.Done():
				return s.drain()
			default:
				logger.Debug("Error accepting connection: %v", err)
				continue
			}
		}

		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				_ = tcpConn.Close()
				return s.drain()
			}
		}

		s.metrics.RecordConnectionAccepted()
		s.metrics.SetActiveConnections(s.connCount.Add(1))

		s.activeConns.Add(1)
		c := &conn{server: s, conn: tcpConn}
		go c.serve(ctx)
	}
}

// Stop initiates shutdown and waits for in-flight connections up to the
// configured timeout. Idempotent.
func (s *Server) Stop() error {
	s.initiateShutdown()
	return s.drain()
}

func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}

// drain waits for active connection goroutines to finish, bounded by
// ShutdownTimeout when one is configured.
func (s *Server) drain() error {
	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	if s.config.ShutdownTimeout <= 0 {
		<-done
		return nil
	}

	select {
	case <-done:
		return nil
	case <-time.After(s.config.ShutdownTimeout):
		return fmt.Errorf("shutdown timed out after %s with %d connections active",
			s.config.ShutdownTimeout, s.connCount.Load())
	}
}

// releaseConn undoes the per-connection accounting done in the accept loop.
func (s *Server) releaseConn() {
	if s.connSemaphore != nil {
		<-s.connSemaphore
	}
	s.metrics.SetActiveConnections(s.connCount.Add(-1))
	s.metrics.RecordConnectionClosed()
	s.activeConns.Done()
}
