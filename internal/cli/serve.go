package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/tether/internal/cache"
	"github.com/lazypower/tether/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server and background queue drain",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.db.Close()

	if d := a.cfg.Queue.DrainInterval; d > 0 {
		go a.Queue.Drain(ctx, d, a.Voice.Complete)
	}
	if d := a.cfg.Cache.PruneInterval; d > 0 {
		go prune(ctx, a.Cache, d)
	}

	srv := server.New(a.db, a.Services, VersionString(), slog.Default().With("component", "server"))
	addr := a.cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "tether serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", a.dbPath)
		fmt.Fprintf(os.Stderr, "  remote: %s\n", a.cfg.Remote.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}

// prune clears stale transcription cache entries on startup and then every
// interval until ctx is done.
func prune(ctx context.Context, c *cache.Cache, interval time.Duration) {
	run := func() {
		if n := c.ClearOldEntries(); n > 0 {
			slog.Info("cache: pruned stale entries", "removed", n)
		}
	}
	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			run()
		case <-ctx.Done():
			return
		}
	}
}
