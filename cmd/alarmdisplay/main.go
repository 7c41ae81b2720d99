package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/couchcryptid/alarm-display/internal/adapter/archive"
	"github.com/couchcryptid/alarm-display/internal/adapter/forward"
	httpadapter "github.com/couchcryptid/alarm-display/internal/adapter/http"
	imapadapter "github.com/couchcryptid/alarm-display/internal/adapter/imap"
	kafkaadapter "github.com/couchcryptid/alarm-display/internal/adapter/kafka"
	"github.com/couchcryptid/alarm-display/internal/adapter/mapbox"
	mqttadapter "github.com/couchcryptid/alarm-display/internal/adapter/mqtt"
	"github.com/couchcryptid/alarm-display/internal/adapter/notify"
	"github.com/couchcryptid/alarm-display/internal/adapter/pager"
	"github.com/couchcryptid/alarm-display/internal/adapter/spool"
	wsadapter "github.com/couchcryptid/alarm-display/internal/adapter/websocket"
	"github.com/couchcryptid/alarm-display/internal/config"
	"github.com/couchcryptid/alarm-display/internal/domain"
	"github.com/couchcryptid/alarm-display/internal/observability"
	"github.com/couchcryptid/alarm-display/internal/pipeline"
)

// transport is a payload source running until its context is cancelled.
type transport interface {
	Run(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	opts := cfg.Options()

	units, err := config.LoadUnitTable(cfg.UnitsFile)
	if err != nil {
		logger.Error("failed to load unit table", "error", err)
		os.Exit(1)
	}

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		cached, err := mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		if err != nil {
			logger.Error("failed to create geocoding cache", "error", err)
			os.Exit(1)
		}
		geocoder = cached
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Sinks, in delivery order.
	var sinks []pipeline.Sink
	if cfg.DBPath != "" {
		sinks = append(sinks, pipeline.Sink{Name: "archive", Loader: archive.NewStore(cfg.DBPath, opts, logger)})
	}
	if len(cfg.ForwardHosts) > 0 {
		sinks = append(sinks, pipeline.Sink{Name: "forward", Loader: forward.NewForwarder(cfg.ForwardHosts, cfg.ForwardTimeout, logger)})
	}
	var notifier *notify.Notifier
	if cfg.NotifyURL != "" {
		notifier = notify.NewNotifier(cfg.NotifyURL, cfg.NotifyTimeout, logger)
		sinks = append(sinks, pipeline.Sink{Name: "notify", Loader: notifier})
	}
	var publisher *mqttadapter.Publisher
	if cfg.MQTTBroker != "" {
		publisher, err = mqttadapter.NewPublisher(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic,
			mqttadapter.DefaultConnectTimeout, logger)
		if err != nil {
			logger.Error("mqtt unavailable, alarm trigger disabled", "error", err)
		} else {
			sinks = append(sinks, pipeline.Sink{Name: "mqtt", Loader: publisher})
		}
	}
	var writer *kafkaadapter.Writer
	if len(cfg.KafkaBrokers) > 0 {
		writer = kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, pipeline.Sink{Name: "kafka", Loader: writer})
	}

	inbox := pipeline.NewInbox(64)
	transformer := pipeline.NewTransformer(opts, geocoder, logger)
	p := pipeline.New(inbox, transformer, sinks, opts, units, logger, metrics)

	// Transports.
	var transports []transport
	if cfg.PagerSerialPort != "" {
		transports = append(transports, pager.NewSerial(cfg.PagerSerialPort, cfg.PagerSerialBaud, inbox, metrics, logger))
	}
	if cfg.PagerUDPAddr != "" {
		l, err := pager.ListenUDP(cfg.PagerUDPAddr, inbox, metrics, logger)
		if err != nil {
			logger.Error("failed to start udp listener", "error", err)
			os.Exit(1)
		}
		transports = append(transports, l)
	}
	if cfg.IMAPEnabled() {
		transports = append(transports, imapadapter.NewMonitor(cfg.IMAPHost, cfg.IMAPUser, cfg.IMAPPass,
			cfg.IMAPPollInterval, inbox, metrics, logger))
	}
	if cfg.WebsocketURL != "" {
		transports = append(transports, wsadapter.NewReceiver(cfg.WebsocketURL, cfg.WebsocketToken,
			cfg.WebsocketReconnect, inbox, metrics, logger))
	}
	if cfg.SpoolDir != "" {
		transports = append(transports, spool.NewWatcher(cfg.SpoolDir, inbox, logger))
	}
	if len(transports) == 0 {
		logger.Warn("no transport configured, waiting for payloads that will never arrive")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if notifier != nil {
		if err := notifier.Startup(ctx); err != nil {
			logger.Error("startup notification failed", "error", err)
		}
	}

	// Start pipeline and transports.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()
	for _, t := range transports {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := t.Run(ctx); err != nil {
				logger.Error("transport error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	stopped := make(chan struct{})
	go func() {
		wg.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		logger.Warn("transports did not stop in time")
	}

	if publisher != nil {
		publisher.Close()
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
