package observability

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Shutdown coordinates graceful termination: on SIGINT/SIGTERM (or
// context cancellation) the managed HTTP servers stop accepting new
// connections and drain within the timeout, then the registered stop
// hooks run in order. Hooks are for background workers that must not
// outlive the servers, like the ban sweeper.
type Shutdown struct {
	logger  *Logger
	timeout time.Duration
	servers []*http.Server
	stops   []func()
}

// NewShutdown creates a shutdown coordinator.
func NewShutdown(logger *Logger, timeout time.Duration) *Shutdown {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Shutdown{logger: logger, timeout: timeout}
}

// ManageServer registers an HTTP server to drain on shutdown.
func (s *Shutdown) ManageServer(server *http.Server) {
	s.servers = append(s.servers, server)
}

// OnStop registers a hook to run after the servers have drained.
func (s *Shutdown) OnStop(fn func()) {
	s.stops = append(s.stops, fn)
}

// Wait blocks until a termination signal arrives or ctx is cancelled,
// then drains the servers and runs the stop hooks.
func (s *Shutdown) Wait(ctx context.Context) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		s.logger.WithField("signal", sig.String()).Info("shutdown signal received")
	case <-ctx.Done():
		s.logger.Info("shutdown requested")
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var failed int
	for _, server := range s.servers {
		if err := server.Shutdown(drainCtx); err != nil {
			s.logger.WithError(err).WithField("addr", server.Addr).Error("server drain failed")
			failed++
		}
	}

	for _, stop := range s.stops {
		s.runStop(stop)
	}

	if failed > 0 {
		return fmt.Errorf("shutdown completed with %d servers failing to drain", failed)
	}
	s.logger.Info("shutdown complete")
	return nil
}

// runStop invokes a stop hook, logging a panic instead of aborting the
// remaining hooks.
func (s *Shutdown) runStop(stop func()) {
	defer func() {
		if err := MustRecover(recover()); err != nil {
			s.logger.WithError(err).Error("stop hook panicked")
		}
	}()
	stop()
}
