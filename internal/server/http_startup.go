package server

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const shutdownTimeout = 30 * time.Second

// Start serves HTTP until ctx is cancelled, then shuts down gracefully:
// the listener closes first, then in-flight runs are cancelled and awaited.
func (s *Server) Start(ctx context.Context) error {
	httpServer := s.setupHTTPServer()

	watcher, err := s.startKeyWatcher()
	if err != nil {
		return err
	}

	s.displayServerInfo()

	serverErrors := make(chan error, 1)
	go func() {
		s.Logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		s.stopBackground(watcher)
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
		s.Logger.Info("Shutdown requested, starting graceful shutdown")
		return s.performGracefulShutdown(httpServer, watcher)
	}
}

// setupHTTPServer creates and configures the HTTP server
func (s *Server) setupHTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.Host, s.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		IdleTimeout:  s.IdleTimeout,
	}
}

// startKeyWatcher starts API key rotation when a key source is configured
func (s *Server) startKeyWatcher() (*APIKeyWatcher, error) {
	if s.deps.KeySource == nil {
		return nil, nil
	}
	vault := s.AppConfig.Vault
	watcher := NewAPIKeyWatcher(s.deps.KeySource, vault.Secrets.APIKeys, vault.PollInterval, s.SetAPIKeys, s.Logger)
	if err := watcher.Start(); err != nil {
		return nil, fmt.Errorf("failed to start API key watcher: %w", err)
	}
	return watcher, nil
}

// performGracefulShutdown handles the graceful shutdown process
func (s *Server) performGracefulShutdown(server *http.Server, watcher *APIKeyWatcher) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.Logger.Info("Shutting down HTTP server...")
	shutdownErr := server.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		s.Logger.LogError(shutdownErr, "Failed to shutdown server gracefully, forcing close")
		shutdownErr = server.Close()
	}

	s.stopBackground(watcher)
	if err := s.waitForRuns(shutdownCtx); err != nil {
		s.Logger.LogError(err, "Runs still executing at shutdown")
	}

	if shutdownErr == nil {
		s.Logger.Info("Server shutdown completed successfully")
	}
	return shutdownErr
}

// stopBackground stops the key watcher and the rate limiter cleanup, and
// cancels every in-flight run.
func (s *Server) stopBackground(watcher *APIKeyWatcher) {
	if watcher != nil {
		watcher.Stop()
	}
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
	}
	s.cancelRun()
}

// waitForRuns blocks until every accepted run has finished or ctx expires.
func (s *Server) waitForRuns(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("gave up waiting for %d runs: %w", s.runs.len(), ctx.Err())
	}
}
