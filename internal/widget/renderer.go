// Package widget is the home-screen renderer. It only ever reads the shared
// channel; it never talks to the app or the weather API.
package widget

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-widget/internal/bridge"
	"github.com/i474232898/weather-widget/internal/weather"
)

const (
	// DefaultDataInterval is the reload delay after rendering real data.
	DefaultDataInterval = 15 * time.Minute
	// DefaultRetryInterval is the reload delay after rendering the placeholder.
	DefaultRetryInterval = time.Minute
)

// Entry is one rendered widget state.
type Entry struct {
	Date        time.Time `json:"date"`
	City        string    `json:"city"`
	Temperature int       `json:"temperature"`
	Emoji       string    `json:"emoji"`
	LastUpdated time.Time `json:"lastUpdated"`
	Placeholder bool      `json:"placeholder"`
}

// PlaceholderEntry is shown until a snapshot is available.
func PlaceholderEntry(now time.Time) Entry {
	return Entry{
		Date:        now,
		City:        "Loading...",
		Temperature: 0,
		Emoji:       weather.EmojiClear,
		LastUpdated: now,
		Placeholder: true,
	}
}

// Timeline is an entry plus the time the renderer should reload.
type Timeline struct {
	Entry Entry
	Next  time.Time
}

// Renderer reloads the widget on its own timeline, or early when the app
// posts a new refresh token.
type Renderer struct {
	channel       bridge.SharedChannel
	dataInterval  time.Duration
	retryInterval time.Duration
	now           func() time.Time
	display       func(Entry)

	mu      sync.Mutex
	current Entry
	next    time.Time
	token   string
}

func NewRenderer(channel bridge.SharedChannel, dataInterval, retryInterval time.Duration) *Renderer {
	if dataInterval <= 0 {
		dataInterval = DefaultDataInterval
	}
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}
	return &Renderer{
		channel:       channel,
		dataInterval:  dataInterval,
		retryInterval: retryInterval,
		now:           time.Now,
		display:       logEntry,
	}
}

// Timeline builds the entry from the shared slot. A missing or unreadable
// payload yields the placeholder and the short retry interval.
func (r *Renderer) Timeline(ctx context.Context) Timeline {
	now := r.now()

	data, err := r.channel.Read(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to read shared widget data")
		return Timeline{Entry: PlaceholderEntry(now), Next: now.Add(r.retryInterval)}
	}
	if data == nil {
		log.Debug().Msg("no widget data in shared channel")
		return Timeline{Entry: PlaceholderEntry(now), Next: now.Add(r.retryInterval)}
	}

	snapshot, err := bridge.DecodeSnapshot(data)
	if err != nil {
		log.Error().Err(err).Msg("failed to decode widget data")
		return Timeline{Entry: PlaceholderEntry(now), Next: now.Add(r.retryInterval)}
	}

	return Timeline{
		Entry: Entry{
			Date:        now,
			City:        snapshot.City,
			Temperature: snapshot.Temp,
			Emoji:       snapshot.Emoji,
			LastUpdated: snapshot.UpdatedAt,
		},
		Next: now.Add(r.dataInterval),
	}
}

// Tick reloads when the timeline is due or a refresh was requested, and
// reports whether it did.
func (r *Renderer) Tick(ctx context.Context) bool {
	token, err := r.channel.RefreshToken(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read widget refresh token")
	}

	r.mu.Lock()
	due := r.next.IsZero() || !r.now().Before(r.next)
	requested := token != "" && token != r.token
	r.mu.Unlock()

	if !due && !requested {
		return false
	}

	tl := r.Timeline(ctx)

	r.mu.Lock()
	r.current = tl.Entry
	r.next = tl.Next
	if token != "" {
		r.token = token
	}
	r.mu.Unlock()

	log.Debug().Bool("requested", requested).Time("next", tl.Next).Msg("widget reloaded")
	r.display(tl.Entry)
	return true
}

// Current returns the last rendered entry.
func (r *Renderer) Current() Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func logEntry(e Entry) {
	if e.Placeholder {
		log.Info().Str("city", e.City).Msg("widget: placeholder")
		return
	}
	log.Info().
		Str("city", e.City).
		Int("temp", e.Temperature).
		Str("emoji", e.Emoji).
		Time("updated_at", e.LastUpdated).
		Msg("widget rendered")
}
