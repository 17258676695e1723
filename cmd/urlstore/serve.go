package main

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/urlstore/internal/config"
	"github.com/vango-dev/urlstore/pkg/host"
	"github.com/vango-dev/urlstore/pkg/lazy"
	"github.com/vango-dev/urlstore/pkg/location"
	"github.com/vango-dev/urlstore/pkg/metrics"
	"github.com/vango-dev/urlstore/pkg/schedule"
	"github.com/vango-dev/urlstore/pkg/store"
	"github.com/vango-dev/urlstore/pkg/timeshape"
)

func serveCmd() *cobra.Command {
	var (
		addr       string
		initialURL string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an in-memory history over HTTP and websocket",
		Long: `Serve an in-memory browser history.

Clients connect to /ws to follow the location and request navigations.
The current location is also available at /location, navigations can be
posted to /navigate and Prometheus metrics are exposed on /metrics.

Examples:
  urlstore serve
  urlstore serve --addr=:8080 --initial-url="/products?page=1"
  URLSTORE_LOG_LEVEL=debug urlstore serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if initialURL != "" {
				cfg.InitialURL = initialURL
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd.OutOrStdout(), cfg)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from "+config.ConfigFileName+")")
	cmd.Flags().StringVarP(&initialURL, "initial-url", "u", "", "First history entry")

	return cmd
}

func runServe(ctx context.Context, w io.Writer, cfg *config.Config) error {
	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.New(
		metrics.WithRegistry(registry),
		metrics.WithNamespace(cfg.Metrics.Namespace),
	)

	history, err := location.ParseHistory(cfg.InitialURL, location.WithHistoryLogger(logger))
	if err != nil {
		return err
	}

	loop := schedule.NewLoop(schedule.WithLogger(logger))
	defer loop.Close()
	go loop.Run(ctx)

	// Log the location once it has been stable for the settle period.
	settle, _ := cfg.Log.SettleDuration()
	settled := lazy.FromReadable(loop,
		timeshape.Debounce(loop, settle, store.Readable[location.Location](history),
			timeshape.WithName("settle"), timeshape.WithRecorder(rec)),
		lazy.WithName("settled-location"), lazy.WithRecorder(rec), lazy.WithLogger(logger))
	unsubscribe := settled.Subscribe(func(loc location.Location) {
		if loc.URL != nil {
			logger.Info("location settled", "url", loc.String())
		}
	})
	defer unsubscribe()

	opts := []host.ServerOption{
		host.WithLogger(logger),
		host.WithRecorder(rec),
		host.WithCheckOrigin(func(r *http.Request) bool {
			return cfg.Host.OriginAllowed(r.Header.Get("Origin"))
		}),
	}
	if !cfg.Metrics.Disabled {
		opts = append(opts, host.WithGatherer(registry))
	}
	srv := host.NewServer(history, opts...)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	success(w, "Serving %s on http://%s", cfg.InitialURL, cfg.Addr)
	info(w, "websocket: ws://%s/ws", cfg.Addr)

	select {
	case err := <-errCh:
		if !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	info(w, "Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Close()
	return httpServer.Shutdown(shutdownCtx)
}
