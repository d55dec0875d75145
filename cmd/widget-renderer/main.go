package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-widget/internal/bridge"
	"github.com/i474232898/weather-widget/internal/config"
	"github.com/i474232898/weather-widget/internal/logging"
	"github.com/i474232898/weather-widget/internal/scheduler"
	"github.com/i474232898/weather-widget/internal/widget"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Setup(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mqttCfg := bridge.MQTTConfig{
		Broker:      cfg.MQTT.Broker,
		Port:        cfg.MQTT.Port,
		ClientID:    cfg.MQTT.ClientID + "-renderer",
		TopicPrefix: cfg.MQTT.TopicPrefix,
		ReadTimeout: cfg.MQTT.ReadTimeout,
	}
	shared, ch, closeShared := bridge.OpenShared(ctx, bridge.SharedConfig{
		Kind:    cfg.SharedChannel,
		Dir:     cfg.SharedStorageDir,
		GroupID: cfg.AppGroupID,
		MQTT:    mqttCfg,
	})
	defer closeShared()

	if !shared.IsAvailable() {
		log.Error().Str("channel", cfg.SharedChannel).Msg("renderer needs a shared channel; nothing to render")
		return
	}

	renderer := widget.NewRenderer(ch, cfg.WidgetDataInterval, cfg.WidgetRetryInterval)

	sched := scheduler.New(renderer, cfg.WidgetTick)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	log.Info().
		Str("channel", cfg.SharedChannel).
		Dur("data_interval", cfg.WidgetDataInterval).
		Dur("retry_interval", cfg.WidgetRetryInterval).
		Msg("widget renderer started")

	<-ctx.Done()
}
