package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/floorwatch/backend/internal/api"
	"github.com/floorwatch/backend/internal/backend"
	"github.com/floorwatch/backend/internal/config"
	"github.com/floorwatch/backend/internal/gateway"
	"github.com/floorwatch/backend/internal/logging"
	"github.com/floorwatch/backend/internal/stats"
	"github.com/floorwatch/backend/internal/store"
	"github.com/floorwatch/backend/internal/telemetry"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var configPath string
	var logLevel string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Subscribe to the live stream and serve the live-run API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, configPath, logLevel)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath(), "Path to FloorWatch.config")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	return cmd
}

func serve(ctx context.Context, configPath, logLevel string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Advanced.LogLevel = logLevel
	}
	log, err := logging.Configure(cfg.Advanced.LogLevel, cfg.Advanced.LogFormat)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}

	rules, err := loadRules(cfg)
	if err != nil {
		return err
	}

	st := store.New()
	st.SetItemsPerPage(cfg.View.ItemsPerPage)

	transport, err := buildTransport(cfg)
	if err != nil {
		return err
	}
	conn := telemetry.New(transport, st, telemetry.Options{
		Reconnect: reconnectPolicy(cfg),
		Logger:    log,
		OnTransition: func(from, to telemetry.Phase) {
			log.Debug("live stream phase", "from", from.String(), "to", to.String())
		},
	})

	feed := gateway.NewFeed(cfg.View.NotificationCapacity)
	client := backend.New(cfg.Backend.APIURL, cfg.Backend.Token, cfg.RequestTimeout())
	gw := gateway.New(client, feed, gateway.Options{Timeout: cfg.RequestTimeout(), Logger: log})

	handlers := api.NewHandlers(&api.Dependencies{
		Store:                 st,
		Gateway:               gw,
		Feed:                  feed,
		Lookups:               client,
		Rules:                 rules,
		FileURL:               cfg.Backend.FileURL,
		Version:               Version,
		StreamPhase:           func() string { return conn.Phase().String() },
		AllowOrigins:          cfg.AllowedOrigins(),
		WebSocketMaxMessageKB: cfg.Advanced.WebSocketMaxMessageSize,
		Logger:                log,
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.SetupMiddleware(e, api.MiddlewareConfig{
		AllowOrigins:   cfg.AllowedOrigins(),
		EnableCORS:     cfg.Server.EnableCORS,
		BodyLimit:      cfg.Server.BodyLimit,
		RequestTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		RequestLogging: cfg.Advanced.EnableRequestLogging,
		Logger:         log,
	})
	api.RegisterRoutes(e, handlers)

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(cfg, configPath, transport)

	conn.Open(ctx)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- e.StartServer(s)
	}()

	select {
	case err := <-serverErr:
		_ = conn.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	_ = conn.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}
	return nil
}

func loadRules(cfg *config.AppConfig) (stats.Rules, error) {
	if cfg.Statistics.RulesFile == "" {
		return stats.DefaultRules(), nil
	}
	rules, err := stats.LoadRules(cfg.Statistics.RulesFile)
	if err != nil {
		return stats.Rules{}, fmt.Errorf("loading statistics rules: %w", err)
	}
	slog.Info("statistics rules loaded", "path", cfg.Statistics.RulesFile,
		"low_below", rules.LowBelow, "high_at_or_above", rules.HighAtOrAbove)
	return rules, nil
}

func printBanner(cfg *config.AppConfig, configPath string, transport telemetry.Transport) {
	stream := cfg.Telemetry.StreamURL
	if cfg.Telemetry.Transport == config.TransportMQTT {
		stream = cfg.Telemetry.MQTT.Broker
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           FloorWatch Live-Run Server                      ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Transport:  %-45s║\n", transport.Name())
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  API:       %-46s║\n", cfg.Backend.APIURL)
	fmt.Printf("║  Stream:    %-46s║\n", stream)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
}
