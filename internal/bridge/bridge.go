// Package bridge mirrors widget snapshots to local storage and, when the
// platform offers one, to the shared-storage channel the widget renderer
// reads.
//
// The local write is the source of truth for the app's own load path. Shared
// channel failures are logged and swallowed, so the widget can lag behind the
// app by up to one renderer refresh cycle (or indefinitely if the channel
// keeps failing); nothing surfaces this to the user.
package bridge

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-widget/internal/store"
	"github.com/i474232898/weather-widget/internal/weather"
)

// WidgetDataKey is the key of the snapshot payload in both sinks.
const WidgetDataKey = "widget_weather_data"

// SharedChannel is the platform shared-storage slot plus its refresh signal.
type SharedChannel interface {
	// Write replaces the slot's payload.
	Write(ctx context.Context, payload []byte) error
	// Read returns the slot's payload, or nil when empty.
	Read(ctx context.Context) ([]byte, error)
	// RequestRefresh asks the renderer to reload.
	RequestRefresh(ctx context.Context) error
	// RefreshToken identifies the latest refresh request ("" if none).
	RefreshToken(ctx context.Context) (string, error)
}

// Shared is the optional shared channel capability, decided once at startup.
type Shared struct {
	ch SharedChannel
}

func Available(ch SharedChannel) Shared { return Shared{ch: ch} }

func Unavailable() Shared { return Shared{} }

func (s Shared) IsAvailable() bool { return s.ch != nil }

// Bridge publishes and loads snapshots.
type Bridge struct {
	local  store.KV
	shared Shared
}

func New(local store.KV, shared Shared) *Bridge {
	return &Bridge{local: local, shared: shared}
}

// SharedAvailable reports whether a shared channel was configured.
func (b *Bridge) SharedAvailable() bool {
	return b.shared.IsAvailable()
}

// Publish writes the snapshot to local storage, then to the shared channel
// followed by a refresh request. It never fails; errors are logged.
func (b *Bridge) Publish(ctx context.Context, snapshot weather.Snapshot) {
	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode widget snapshot")
		return
	}

	if err := b.local.Set(ctx, WidgetDataKey, string(data)); err != nil {
		log.Error().Err(err).Msg("failed to save widget snapshot locally")
	} else {
		log.Debug().Str("city", snapshot.City).Int("temp", snapshot.Temp).Msg("saved widget snapshot locally")
	}

	if !b.shared.IsAvailable() {
		log.Debug().Msg("shared channel unavailable; widget not updated")
		return
	}

	if err := b.shared.ch.Write(ctx, data); err != nil {
		log.Error().Err(err).Msg("failed to save widget snapshot to shared channel")
		return
	}
	if err := b.shared.ch.RequestRefresh(ctx); err != nil {
		log.Error().Err(err).Msg("failed to request widget refresh")
		return
	}
	log.Info().Str("city", snapshot.City).Msg("widget snapshot published")
}

// Load returns the latest snapshot: shared channel first, local storage as
// fallback, nil when neither has one. Sources are never merged.
func (b *Bridge) Load(ctx context.Context) *weather.Snapshot {
	var data []byte

	if b.shared.IsAvailable() {
		d, err := b.shared.ch.Read(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("failed to load from shared channel, trying local storage")
		}
		data = d
	}

	if len(data) == 0 {
		v, err := b.local.Get(ctx, WidgetDataKey)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				log.Error().Err(err).Msg("failed to load widget snapshot")
			}
			return nil
		}
		data = []byte(v)
	}

	s, err := DecodeSnapshot(data)
	if err != nil {
		log.Error().Err(err).Msg("failed to load widget snapshot")
		return nil
	}
	return &s
}

// RequestRefresh asks the renderer to reload without writing a new snapshot.
func (b *Bridge) RequestRefresh(ctx context.Context) {
	if !b.shared.IsAvailable() {
		log.Warn().Msg("shared channel unavailable, cannot reload widgets")
		return
	}
	if err := b.shared.ch.RequestRefresh(ctx); err != nil {
		log.Error().Err(err).Msg("failed to reload widgets")
	}
}
