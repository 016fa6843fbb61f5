// Package server coordinates graceful shutdown of the service.
package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ShutdownManager tracks in-flight requests and, on shutdown, drains them
// before closing registered resources in reverse order.
type ShutdownManager struct {
	shutdownTimeout time.Duration
	drainTimeout    time.Duration

	mu       sync.Mutex
	inFlight int64
	closing  bool
	idle     chan struct{}
	idleOnce sync.Once
	closers  []namedCloser
	hooks    []func()

	done     chan struct{}
	doneOnce sync.Once
}

type namedCloser struct {
	name string
	io.Closer
}

// ShutdownConfig holds configuration for the shutdown manager.
type ShutdownConfig struct {
	// ShutdownTimeout bounds the whole shutdown. Default: 30 seconds
	ShutdownTimeout time.Duration

	// DrainTimeout bounds the wait for in-flight requests. Default: 15 seconds
	DrainTimeout time.Duration
}

// DefaultShutdownConfig returns the default shutdown configuration.
func DefaultShutdownConfig() ShutdownConfig {
	return ShutdownConfig{
		ShutdownTimeout: 30 * time.Second,
		DrainTimeout:    15 * time.Second,
	}
}

// NewShutdownManager creates a shutdown manager. Zero timeouts take the
// defaults.
func NewShutdownManager(config ShutdownConfig) *ShutdownManager {
	defaults := DefaultShutdownConfig()
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = defaults.DrainTimeout
	}
	return &ShutdownManager{
		shutdownTimeout: config.ShutdownTimeout,
		drainTimeout:    config.DrainTimeout,
		idle:            make(chan struct{}),
		done:            make(chan struct{}),
	}
}

// RegisterCloser adds a resource to close on shutdown. Closers run last
// registered first.
func (sm *ShutdownManager) RegisterCloser(name string, closer io.Closer) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.closers = append(sm.closers, namedCloser{name: name, Closer: closer})
}

// OnShutdownStart registers a hook that runs before draining.
func (sm *ShutdownManager) OnShutdownStart(fn func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.hooks = append(sm.hooks, fn)
}

// ListenForSignals blocks until SIGTERM or SIGINT arrives, ctx is done, or
// shutdown starts elsewhere, and shuts down in the first two cases.
func (sm *ShutdownManager) ListenForSignals(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		return sm.Shutdown(context.Background(), fmt.Sprintf("received signal: %v", sig))
	case <-ctx.Done():
		return sm.Shutdown(context.Background(), "context cancelled")
	case <-sm.done:
		return nil
	}
}

// Shutdown rejects new requests, waits for in-flight ones, and closes all
// registered resources. Only the first call has an effect.
func (sm *ShutdownManager) Shutdown(ctx context.Context, reason string) error {
	var shutdownErr error

	sm.doneOnce.Do(func() {
		log.Printf("Shutting down: %s", reason)

		sm.mu.Lock()
		sm.closing = true
		if sm.inFlight == 0 {
			sm.markIdle()
		}
		hooks := sm.hooks
		closers := sm.closers
		sm.mu.Unlock()
		close(sm.done)

		for _, fn := range hooks {
			fn()
		}

		shutdownCtx, cancel := context.WithTimeout(ctx, sm.shutdownTimeout)
		defer cancel()
		if err := sm.drain(shutdownCtx); err != nil {
			shutdownErr = fmt.Errorf("drain failed: %w", err)
		}

		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				log.Printf("Failed to close %s: %v", closers[i].name, err)
				if shutdownErr == nil {
					shutdownErr = fmt.Errorf("close %s failed: %w", closers[i].name, err)
				}
			}
		}
	})

	return shutdownErr
}

func (sm *ShutdownManager) drain(ctx context.Context) error {
	timer := time.NewTimer(sm.drainTimeout)
	defer timer.Stop()

	select {
	case <-sm.idle:
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}
	if n := sm.InFlightCount(); n > 0 {
		return fmt.Errorf("timeout waiting for %d in-flight requests", n)
	}
	return nil
}

// markIdle must be called with mu held.
func (sm *ShutdownManager) markIdle() {
	sm.idleOnce.Do(func() { close(sm.idle) })
}

// TrackRequest counts a request as in flight. It returns false once
// shutdown has begun; the request should then be rejected.
func (sm *ShutdownManager) TrackRequest() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.closing {
		return false
	}
	sm.inFlight++
	return true
}

// UntrackRequest ends a request started with TrackRequest.
func (sm *ShutdownManager) UntrackRequest() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.inFlight--
	if sm.closing && sm.inFlight == 0 {
		sm.markIdle()
	}
}

// IsShuttingDown reports whether shutdown has begun.
func (sm *ShutdownManager) IsShuttingDown() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.closing
}

// InFlightCount returns the number of in-flight requests.
func (sm *ShutdownManager) InFlightCount() int64 {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.inFlight
}

// ShutdownCh returns a channel that is closed when shutdown begins.
func (sm *ShutdownManager) ShutdownCh() <-chan struct{} {
	return sm.done
}

// ShutdownMiddleware tracks HTTP requests and answers 503 during shutdown.
func ShutdownMiddleware(sm *ShutdownManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sm.TrackRequest() {
				w.Header().Set("Connection", "close")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"error":"service is shutting down"}` + "\n"))
				return
			}
			defer sm.UntrackRequest()

			next.ServeHTTP(w, r)
		})
	}
}

// UnaryInterceptor tracks gRPC calls and answers Unavailable during shutdown.
func (sm *ShutdownManager) UnaryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if !sm.TrackRequest() {
		return nil, status.Error(codes.Unavailable, "service is shutting down")
	}
	defer sm.UntrackRequest()
	return handler(ctx, req)
}

// CloserFunc adapts a function to io.Closer.
type CloserFunc func() error

// Close calls f.
func (f CloserFunc) Close() error {
	return f()
}

// HTTPServerCloser shuts srv down gracefully within timeout.
func HTTPServerCloser(srv *http.Server, timeout time.Duration) io.Closer {
	return CloserFunc(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}

// GRPCServerCloser stops srv gracefully, forcing a stop after timeout.
func GRPCServerCloser(srv *grpc.Server, timeout time.Duration) io.Closer {
	return CloserFunc(func() error {
		done := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(timeout):
			srv.Stop()
		}
		return nil
	})
}
