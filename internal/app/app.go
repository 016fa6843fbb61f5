// Package app wires the SQL Observer service together and manages its lifecycle.
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc"

	grpcapi "github.com/sqlobserver/sqlobserver/internal/api/grpc"
	httpapi "github.com/sqlobserver/sqlobserver/internal/api/http"
	"github.com/sqlobserver/sqlobserver/internal/config"
	"github.com/sqlobserver/sqlobserver/internal/console"
	"github.com/sqlobserver/sqlobserver/internal/notify"
	"github.com/sqlobserver/sqlobserver/internal/observability"
	"github.com/sqlobserver/sqlobserver/internal/query/parser"
	"github.com/sqlobserver/sqlobserver/internal/server"
	"github.com/sqlobserver/sqlobserver/internal/source"
)

// App manages the service lifecycle.
type App struct {
	cfg *config.Config

	cache    *source.CachedFetcher
	notifier *notify.Notifier
	console  *console.Console
	stats    *observability.QueryStats
	shutdown *server.ShutdownManager

	httpServer   *http.Server
	httpListener net.Listener
	grpcServer   *grpc.Server
	grpcListener net.Listener

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// New creates a new App with the given configuration.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return &App{
		cfg:      cfg,
		shutdown: server.NewShutdownManager(server.DefaultShutdownConfig()),
	}, nil
}

// Start builds the source chain and starts the HTTP and gRPC servers.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	if err := a.initSource(ctx); err != nil {
		a.shutdown.Shutdown(context.Background(), "startup failed")
		return fmt.Errorf("failed to initialize source: %w", err)
	}

	if err := a.startHTTP(); err != nil {
		a.shutdown.Shutdown(context.Background(), "startup failed")
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if a.cfg.GRPC.Enabled {
		if err := a.startGRPC(); err != nil {
			a.shutdown.Shutdown(context.Background(), "startup failed")
			return fmt.Errorf("failed to start gRPC server: %w", err)
		}
	}

	log.Printf("SQL Observer started: source=%s", describeSource(a.cfg))
	return nil
}

// initSource builds fetcher -> cache -> console plus the refresher and watcher.
func (a *App) initSource(ctx context.Context) error {
	fetcher, closers, err := OpenSource(ctx, a.cfg)
	if err != nil {
		return err
	}
	for _, c := range closers {
		a.shutdown.RegisterCloser("source", c)
	}

	a.cache = source.NewCachedFetcher(fetcher, a.cfg.Cache.TTL)
	a.notifier = notify.NewNotifier(16)
	a.cache.SetNotifier(a.notifier, parser.TableStudents)
	a.stats = observability.NewQueryStats(a.cfg.Query.StatsWindow)
	a.console = console.New(a.cache,
		console.WithDefaultQuery(a.cfg.Query.DefaultQuery),
		console.WithStats(a.stats),
	)
	log.Printf("Dataset source initialized: %s cache_ttl=%s", describeSource(a.cfg), a.cfg.Cache.TTL)

	if a.cfg.Cache.RefreshSchedule != "" {
		refresher, err := source.NewRefresher(a.cache, a.cfg.Cache.RefreshSchedule, a.cfg.Source.Timeout)
		if err != nil {
			return err
		}
		refresher.Start()
		a.shutdown.RegisterCloser("refresher", refresher)
		log.Printf("Dataset refresh scheduled: %s", a.cfg.Cache.RefreshSchedule)
	}

	if a.cfg.Cache.Watch {
		watcher, err := source.NewWatcher(a.cfg.Source.Path, source.DefaultDebounce, a.cache.Invalidate)
		if err != nil {
			return err
		}
		a.shutdown.RegisterCloser("watcher", watcher)
		log.Printf("Watching %s for changes", a.cfg.Source.Path)
	}

	a.startStatsPruner()
	return nil
}

// startStatsPruner prunes usage statistics every window/4 until shutdown.
func (a *App) startStatsPruner() {
	interval := a.cfg.Query.StatsWindow / 4
	if interval <= 0 {
		return
	}
	done := a.shutdown.ShutdownCh()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				a.stats.Prune()
			}
		}
	}()
}

func (a *App) startHTTP() error {
	mux := http.NewServeMux()
	middleware := httpapi.ChainMiddleware(
		server.ShutdownMiddleware(a.shutdown),
		httpapi.DefaultMiddleware(),
	)
	httpapi.Register(mux, httpapi.Routes{
		Console: a.console,
		Stats:   a.stats,
		Cache:   a.cache,
		Changes: a.notifier,
		Stop:    a.shutdown.ShutdownCh(),
	}, middleware)

	a.httpServer = &http.Server{
		Handler:      mux,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	var err error
	a.httpListener, err = net.Listen("tcp", a.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on HTTP address: %w", err)
	}
	a.shutdown.RegisterCloser("http server", server.HTTPServerCloser(a.httpServer, 10*time.Second))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Printf("HTTP server listening on %s", a.httpListener.Addr())
		if err := a.httpServer.Serve(a.httpListener); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()
	return nil
}

func (a *App) startGRPC() error {
	a.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(
		a.shutdown.UnaryInterceptor,
		grpcapi.LoggingInterceptor,
	))
	grpcapi.RegisterQueryServiceServer(a.grpcServer, grpcapi.NewQueryServer(a.console))

	var err error
	a.grpcListener, err = net.Listen("tcp", a.cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC address: %w", err)
	}
	a.shutdown.RegisterCloser("grpc server", server.GRPCServerCloser(a.grpcServer, 10*time.Second))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Printf("gRPC server listening on %s", a.grpcListener.Addr())
		if err := a.grpcServer.Serve(a.grpcListener); err != nil {
			log.Printf("gRPC server error: %v", err)
		}
	}()
	return nil
}

// HTTPAddr returns the address the HTTP server listens on, or "" before Start.
func (a *App) HTTPAddr() string {
	if a.httpListener == nil {
		return ""
	}
	return a.httpListener.Addr().String()
}

// GRPCAddr returns the address the gRPC server listens on, or "" if disabled.
func (a *App) GRPCAddr() string {
	if a.grpcListener == nil {
		return ""
	}
	return a.grpcListener.Addr().String()
}

// Stop gracefully stops all services and releases resources.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	err := a.shutdown.Shutdown(ctx, "stop requested")
	a.waitForGoroutines(ctx)
	log.Printf("SQL Observer stopped")
	return err
}

// WaitForShutdown blocks until a shutdown signal is received or ctx is done,
// then shuts down.
func (a *App) WaitForShutdown(ctx context.Context) error {
	err := a.shutdown.ListenForSignals(ctx)
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
	a.waitForGoroutines(context.Background())
	log.Printf("SQL Observer stopped")
	return err
}

func (a *App) waitForGoroutines(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Printf("Shutdown timeout, some goroutines may not have finished")
	case <-time.After(30 * time.Second):
		log.Printf("Shutdown timeout, some goroutines may not have finished")
	}
}
