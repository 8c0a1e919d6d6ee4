package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pulsewatch/pulsewatch/internal/alerting"
	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/emission"
	"github.com/pulsewatch/pulsewatch/internal/observability/metrics"
	"github.com/pulsewatch/pulsewatch/internal/series"
	"github.com/pulsewatch/pulsewatch/internal/server"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "pulsewatch",
		Short: "Streaming time-series aggregation and anomaly alerting",
		Long: `pulsewatch consumes event records over HTTP, aggregates them into a
sliding window of time buckets, and periodically evaluates the series for
anomalous behavior, emitting throttled alerts and the aggregated series.`,
		Version: "0.1.0",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./pulsewatch.yaml)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.WithFields(logrus.Fields{
		"series":        len(cfg.Series),
		"tick_interval": cfg.TickInterval,
	}).Info("Starting pulsewatch")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New("pulsewatch")

	newThrottle := buildThrottleFactory(cfg, logger)
	sink, err := buildSink(cfg, logger)
	if err != nil {
		return err
	}
	handlers := buildHandlers(cfg, logger)

	host := server.New(logger)
	for _, sc := range cfg.Series {
		// Each series gets a throttle with its own cooldown.
		sr, err := series.New(sc, newThrottle(sc.Cooldown), sink, handlers, m, logger)
		if err != nil {
			return err
		}
		host.Register(sr)
		logger.WithFields(logrus.Fields{
			"title":   sc.Title,
			"rows":    sc.Rows,
			"width_s": sc.SecPerRow,
			"anomaly": sc.Anomaly != "",
		}).Info("Series registered")
	}

	// Timer loop: one tick fan-out per interval, serialized per series by
	// the series lock.
	go func() {
		ticker := time.NewTicker(cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				host.TickAll(ctx, now)
			}
		}
	}()

	// Metrics server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.MetricsPort)
		logger.WithField("address", addr).Info("Starting metrics server")
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", m.Handler())
		if err := http.ListenAndServe(addr, metricsMux); err != nil {
			logger.WithError(err).Error("Metrics server failed")
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      host.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("address", srv.Addr).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}

	logger.Info("Server stopped")
	return nil
}

// buildThrottleFactory returns a constructor for per-series throttles. The
// redis variants share one client; each series still carries its own
// cooldown, falling back to the global one through config defaulting.
func buildThrottleFactory(cfg *config.Config, logger *logrus.Logger) func(cooldown time.Duration) alerting.Throttle {
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		logger.WithField("addr", cfg.Redis.Addr).Info("Using redis-backed alert throttle")
		return func(cooldown time.Duration) alerting.Throttle {
			return alerting.NewRedisThrottle(client, cooldown, logger)
		}
	}
	return func(cooldown time.Duration) alerting.Throttle {
		return alerting.NewMemoryThrottle(cooldown)
	}
}

func buildSink(cfg *config.Config, logger *logrus.Logger) (emission.Sink, error) {
	if cfg.Influx.Enabled {
		logger.WithField("url", cfg.Influx.URL).Info("Using influxdb emission sink")
		return emission.NewInfluxSink(&cfg.Influx.InfluxConfig, logger)
	}
	return emission.NewLogSink(logger), nil
}

func buildHandlers(cfg *config.Config, logger *logrus.Logger) []alerting.Handler {
	handlers := []alerting.Handler{alerting.NewLogAlertHandler(logger)}
	if cfg.Alerts.WebhookURL != "" {
		handlers = append(handlers, alerting.NewWebhookAlertHandler(cfg.Alerts.WebhookURL, 10*time.Second))
	}
	return handlers
}

func setupLogger(level, format string) *logrus.Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	return logger
}
