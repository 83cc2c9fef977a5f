package common

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
)

// ShutdownHook runs after a termination signal and before the server stops
// accepting connections, e.g. to flush queued tracking events.
type ShutdownHook func(ctx context.Context) error

// RunServerWithShutdown serves until SIGINT or SIGTERM, runs the hooks in
// order and shuts the server down within shutdownTimeout. Each hook gets at
// most hookTimeout (5s when zero).
func RunServerWithShutdown(server *http.Server, name string, shutdownTimeout, hookTimeout time.Duration, hooks ...ShutdownHook) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := serveUntilDone(ctx, server, name, shutdownTimeout, hookTimeout, hooks...); err != nil {
		log.Fatalf("%s: %v", name, err)
	}
}

func serveUntilDone(ctx context.Context, server *http.Server, name string, shutdownTimeout, hookTimeout time.Duration, hooks ...ShutdownHook) error {
	if hookTimeout <= 0 {
		hookTimeout = 5 * time.Second
	}
	listenErr := make(chan error, 1)
	go func() {
		log.Printf("starting %s on %s", name, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
		close(listenErr)
	}()

	select {
	case err, ok := <-listenErr:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	log.Printf("shutdown signal received for %s", name)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	runHooks(shutdownCtx, hookTimeout, hooks)

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Printf("%s shutdown complete", name)
	return nil
}

func runHooks(ctx context.Context, hookTimeout time.Duration, hooks []ShutdownHook) {
	for i, h := range hooks {
		if h == nil {
			continue
		}
		hCtx, hCancel := context.WithTimeout(ctx, hookTimeout)
		if err := h(hCtx); err != nil {
			log.Printf("shutdown hook %d failed: %v", i, err)
		}
		if errors.Is(hCtx.Err(), context.DeadlineExceeded) {
			log.Printf("shutdown hook %d timed out", i)
		}
		hCancel()
	}
}

// TimeoutConfig holds the server and shutdown timeouts.
type TimeoutConfig struct {
	ReadHeader time.Duration
	Read       time.Duration
	Write      time.Duration
	Idle       time.Duration
	Shutdown   time.Duration
	Hook       time.Duration
}

// LoadTimeoutConfig overrides the defaults with whole seconds read from
// READ_HEADER_TIMEOUT, READ_TIMEOUT, WRITE_TIMEOUT, IDLE_TIMEOUT,
// SHUTDOWN_TIMEOUT and HOOK_TIMEOUT. Invalid values are ignored.
func LoadTimeoutConfig(defaults TimeoutConfig) TimeoutConfig {
	return loadTimeoutConfig(defaults, os.Getenv)
}

func loadTimeoutConfig(cfg TimeoutConfig, getenv func(string) string) TimeoutConfig {
	for env, curr := range map[string]*time.Duration{
		"READ_HEADER_TIMEOUT": &cfg.ReadHeader,
		"READ_TIMEOUT":        &cfg.Read,
		"WRITE_TIMEOUT":       &cfg.Write,
		"IDLE_TIMEOUT":        &cfg.Idle,
		"SHUTDOWN_TIMEOUT":    &cfg.Shutdown,
		"HOOK_TIMEOUT":        &cfg.Hook,
	} {
		v := getenv(env)
		if v == "" {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*curr = time.Duration(n) * time.Second
		} else {
			log.Printf("ignoring invalid %s=%q", env, v)
		}
	}
	return cfg
}

// NewServerWithTimeouts applies cfg to base, creating a server when base is nil.
func NewServerWithTimeouts(base *http.Server, cfg TimeoutConfig) *http.Server {
	if base == nil {
		base = &http.Server{}
	}
	base.ReadHeaderTimeout = cfg.ReadHeader
	base.ReadTimeout = cfg.Read
	base.WriteTimeout = cfg.Write
	base.IdleTimeout = cfg.Idle
	return base
}
