package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	httpapi "github.com/i474232898/weather-widget/internal/api/http"
	"github.com/i474232898/weather-widget/internal/app"
	"github.com/i474232898/weather-widget/internal/bridge"
	"github.com/i474232898/weather-widget/internal/config"
	"github.com/i474232898/weather-widget/internal/location"
	"github.com/i474232898/weather-widget/internal/logging"
	"github.com/i474232898/weather-widget/internal/search"
	"github.com/i474232898/weather-widget/internal/state"
	"github.com/i474232898/weather-widget/internal/store"
	"github.com/i474232898/weather-widget/internal/weather"
	"github.com/i474232898/weather-widget/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Setup(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for outbound calls. A zero timeout means none.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	meteo := providers.NewOpenMeteo(httpClient, cfg.GeocodingURL, cfg.ForecastURL)

	var labeler weather.Labeler
	if cfg.GoogleGeocoderAPIKey != "" {
		labeler = providers.NewGoogleReverseGeocoder(cfg.GoogleGeocoderAPIKey)
	}

	local, err := openLocal(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open local storage")
	}
	defer local.Close()

	shared, _, closeShared := bridge.OpenShared(ctx, bridge.SharedConfig{
		Kind:    cfg.SharedChannel,
		Dir:     cfg.SharedStorageDir,
		GroupID: cfg.AppGroupID,
		MQTT: bridge.MQTTConfig{
			Broker:      cfg.MQTT.Broker,
			Port:        cfg.MQTT.Port,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			ReadTimeout: cfg.MQTT.ReadTimeout,
		},
	})
	defer closeShared()
	widget := bridge.New(local, shared)

	st := state.NewStore(local, widget)
	defer st.Close()
	st.Restore(ctx)

	device, err := location.NewStaticDevice(cfg.Device.ServicesEnabled, cfg.Device.Permission, cfg.Device.Position)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid device configuration")
	}

	service := app.NewService(st, location.NewResolver(device), meteo, labeler)
	searcher := search.NewController(meteo, cfg.SearchDebounce, service.SelectLocation)
	defer searcher.Close()

	// Initial load, as on app start.
	go func() {
		if err := service.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("initial load skipped")
		}
	}()

	server := httpapi.NewApp()
	httpapi.RegisterRoutes(server, service, searcher, widget)

	go func() {
		log.Info().Str("port", cfg.Port).Bool("widget", widget.SharedAvailable()).Msg("weather-widget listening")
		if err := server.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("fiber server stopped")
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
}

func openLocal(cfg *config.AppConfig) (store.KV, error) {
	if cfg.StorageDriver == config.StorageMemory {
		log.Warn().Msg("using in-memory storage; preferences will not survive a restart")
		return store.NewMemoryStore(), nil
	}
	return store.NewSQLiteStore(cfg.LocalStoragePath)
}
