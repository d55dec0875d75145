package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Shared channel kinds.
const (
	KindNone     = "none"
	KindAppGroup = "appgroup"
	KindMQTT     = "mqtt"
)

const mqttConnectTimeout = 15 * time.Second

// SharedConfig selects and configures the shared channel.
type SharedConfig struct {
	Kind    string
	Dir     string
	GroupID string
	MQTT    MQTTConfig
}

// OpenShared opens the configured channel once at startup. A channel that
// cannot be opened is reported as unavailable rather than failing startup;
// the returned close func is always safe to call.
func OpenShared(ctx context.Context, cfg SharedConfig) (Shared, SharedChannel, func()) {
	noop := func() {}

	switch cfg.Kind {
	case KindNone, "":
		log.Info().Msg("shared channel disabled")
		return Unavailable(), nil, noop

	case KindAppGroup:
		ch, err := OpenAppGroup(cfg.Dir, cfg.GroupID)
		if err != nil {
			log.Error().Err(err).Str("group", cfg.GroupID).Msg("app group unavailable")
			return Unavailable(), nil, noop
		}
		log.Info().Str("path", AppGroupPath(cfg.Dir, cfg.GroupID)).Msg("app group channel opened")
		return Available(ch), ch, func() {
			if err := ch.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close app group")
			}
		}

	case KindMQTT:
		ch := NewMQTTChannel(cfg.MQTT)
		connectCtx, cancel := context.WithTimeout(ctx, mqttConnectTimeout)
		defer cancel()
		if err := ch.Connect(connectCtx); err != nil {
			log.Error().Err(err).Str("broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker, cfg.MQTT.Port)).Msg("mqtt channel unavailable")
			ch.Disconnect()
			return Unavailable(), nil, noop
		}
		return Available(ch), ch, ch.Disconnect

	default:
		log.Error().Str("kind", cfg.Kind).Msg("unknown shared channel kind")
		return Unavailable(), nil, noop
	}
}
