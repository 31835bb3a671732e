package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aretw0/waypoint/internal/metrics"
	httpAdapter "github.com/aretw0/waypoint/pkg/adapters/http"
	"github.com/aretw0/waypoint/pkg/geo"
	"github.com/aretw0/waypoint/pkg/markdown"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  `Starts the action plan JSON API: plan generation and storage, rendering, geolocation, health and metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port, _ = cmd.Flags().GetInt("port")
		}

		var (
			m            *metrics.Metrics
			rendererOpts []markdown.Option
			serverOpts   []httpAdapter.Option
		)
		if cfg.MetricsEnabled {
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			m = metrics.New(reg)
			rendererOpts = append(rendererOpts, markdown.WithRecorder(m))
			serverOpts = append(serverOpts, httpAdapter.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
		}

		store, err := newPlanStore(cfg, logger)
		if err != nil {
			return err
		}
		defer store.close()
		if store.ping != nil {
			serverOpts = append(serverOpts, httpAdapter.WithHealthCheck(store.ping))
		}

		pipeline := newPipeline(cfg, logger, m)
		serverOpts = append(serverOpts,
			httpAdapter.WithStore(store),
			httpAdapter.WithRenderer(markdown.New(rendererOpts...)),
			httpAdapter.WithLogger(logger),
		)
		if cfg.GeocoderURL != "" {
			serverOpts = append(serverOpts, httpAdapter.WithLocator(geo.New(
				geo.WithBaseURL(cfg.GeocoderURL),
				geo.WithLogger(logger),
			)))
		}

		srv := &http.Server{
			Addr:              ":" + strconv.Itoa(cfg.Port),
			Handler:           httpAdapter.NewHandler(pipeline, serverOpts...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("Starting waypoint server", "addr", srv.Addr, "backend", pipeline.Backend().Endpoint())
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("Start shutdown", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("Graceful shutdown did not complete", "timeout", 5*time.Second, "error", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("could not stop server: %w", err)
				}
			}
			logger.Info("Waypoint server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
}
