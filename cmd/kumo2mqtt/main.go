// Kumo2mqtt bridges Mitsubishi Kumo Cloud climate devices to MQTT,
// publishing Home Assistant discovery and state and accepting commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joshp123/kumo2mqtt/internal/climate"
	"github.com/joshp123/kumo2mqtt/internal/config"
	"github.com/joshp123/kumo2mqtt/internal/coordinator"
	"github.com/joshp123/kumo2mqtt/internal/kumo"
	"github.com/joshp123/kumo2mqtt/internal/logging"
	"github.com/joshp123/kumo2mqtt/internal/metrics"
	"github.com/joshp123/kumo2mqtt/internal/mqtt"
	"github.com/joshp123/kumo2mqtt/internal/server"
	"github.com/joshp123/kumo2mqtt/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "kumo2mqtt",
	Short:   "Kumo Cloud to MQTT bridge",
	Version: version.Full(),
}

var configPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bridge daemon",
	RunE:  runDaemon,
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", envOrDefault("KUMO2MQTT_CONFIG", config.DefaultPath), "Path to config file")
	rootCmd.AddCommand(runCmd)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := logging.Init(cfg.Logging.Level); err != nil {
		return err
	}
	defer logging.Sync()
	log := logging.Logger()

	units, err := climate.ParseUnits(cfg.Units)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var blob kumo.BlobStore
	if cfg.Kumo.Blob != nil {
		store, err := kumo.NewS3Store(cfg.Kumo.Blob)
		if err != nil {
			return fmt.Errorf("blob store: %w", err)
		}
		blob = store
	}

	client, err := kumo.NewClient(kumo.Config{
		Username:  cfg.Kumo.Username,
		Password:  cfg.Kumo.Password,
		StateFile: cfg.Kumo.StateFile,
		Blob:      blob,
	}, logging.Named("kumo"))
	if err != nil {
		return err
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	siteID := cfg.Kumo.SiteID
	if siteID == "" {
		if siteID, err = resolveSite(ctx, client); err != nil {
			return err
		}
		log.Info("resolved site", zap.String("site_id", siteID))
	}

	coord := coordinator.New(client, coordinator.Options{
		SiteID:   siteID,
		Interval: cfg.Kumo.PollInterval.Std(),
		Logger:   logging.Named("coordinator"),
	})

	conn, err := mqtt.Connect(cfg.MQTT, mqtt.AvailabilityTopic(cfg.MQTT.TopicPrefix), logging.Named("mqtt"))
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	bridge := mqtt.NewBridge(conn, coord, mqtt.BridgeConfig{
		TopicPrefix:     cfg.MQTT.TopicPrefix,
		DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
		Units:           units,
	}, logging.Named("bridge"))
	if err := bridge.Start(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("start bridge: %w", err)
	}
	conn.OnReconnect(bridge.Announce)

	registry := metrics.NewRegistry(
		kumo.MetricsCollectors(),
		coordinator.MetricsCollectors(),
		mqtt.MetricsCollectors(),
		[]prometheus.Collector{metrics.NewZoneCollector(coord)},
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", server.HealthHandler(coord))
	mux.Handle("/metrics", server.MetricsHandler(registry))
	mux.Handle("/dashboards/", server.DashboardsHandler(metrics.Dashboards()))

	httpServer := server.NewHTTPServer(cfg.HTTP.Listen, mux)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http serve", zap.Error(err))
			stop()
		}
	}()

	log.Info("kumo2mqtt started",
		zap.String("site_id", siteID),
		zap.String("http", cfg.HTTP.Listen),
		zap.String("broker", cfg.MQTT.Broker))

	coord.Run(ctx)

	log.Info("shutting down")
	bridge.Close()
	conn.Close()
	if err := httpServer.Shutdown(context.Background()); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	return nil
}

// resolveSite picks the account's only site when none is configured.
func resolveSite(ctx context.Context, client *kumo.Client) (string, error) {
	sites, err := client.Sites(ctx)
	if err != nil {
		return "", fmt.Errorf("list sites: %w", err)
	}
	switch len(sites) {
	case 0:
		return "", fmt.Errorf("account has no sites")
	case 1:
		return sites[0].ID, nil
	default:
		labels := make([]string, 0, len(sites))
		for _, site := range sites {
			labels = append(labels, fmt.Sprintf("%s (%s)", site.Name, site.ID))
		}
		return "", fmt.Errorf("account has %d sites, set kumo.site_id to one of: %s",
			len(sites), strings.Join(labels, ", "))
	}
}
