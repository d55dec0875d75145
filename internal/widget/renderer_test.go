package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-widget/internal/bridge"
	"github.com/i474232898/weather-widget/internal/store"
	"github.com/i474232898/weather-widget/internal/weather"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestRenderer(ch bridge.SharedChannel) (*Renderer, *clock, *[]Entry) {
	c := &clock{t: time.Date(2025, 10, 7, 12, 0, 0, 0, time.UTC)}
	var shown []Entry
	r := NewRenderer(ch, 0, 0)
	r.now = c.now
	r.display = func(e Entry) { shown = append(shown, e) }
	return r, c, &shown
}

func TestTimelinePlaceholder(t *testing.T) {
	ch := bridge.NewAppGroupChannel(store.NewMemoryStore())
	r, c, _ := newTestRenderer(ch)

	tl := r.Timeline(context.Background())
	if !tl.Entry.Placeholder || tl.Entry.City != "Loading..." || tl.Entry.Emoji != weather.EmojiClear {
		t.Errorf("expected placeholder, got %+v", tl.Entry)
	}
	if !tl.Next.Equal(c.t.Add(DefaultRetryInterval)) {
		t.Errorf("expected retry in 1m, got %s", tl.Next.Sub(c.t))
	}

	// Corrupt payloads render the placeholder too.
	_ = ch.Write(context.Background(), []byte(`{"city":"Paris"}`))
	if tl := r.Timeline(context.Background()); !tl.Entry.Placeholder {
		t.Errorf("expected placeholder for incomplete payload, got %+v", tl.Entry)
	}
}

func TestTimelineWithData(t *testing.T) {
	ch := bridge.NewAppGroupChannel(store.NewMemoryStore())
	payload := `{"city":"Paris, FR","temp":18.6,"emoji":"🌧️","updatedAt":"2025-10-07T11:55:00Z"}`
	_ = ch.Write(context.Background(), []byte(payload))
	r, c, _ := newTestRenderer(ch)

	tl := r.Timeline(context.Background())
	e := tl.Entry
	if e.Placeholder || e.City != "Paris, FR" || e.Temperature != 19 || e.Emoji != weather.EmojiRain {
		t.Errorf("unexpected entry %+v", e)
	}
	if !e.Date.Equal(c.t) || !e.LastUpdated.Equal(time.Date(2025, 10, 7, 11, 55, 0, 0, time.UTC)) {
		t.Errorf("unexpected times date=%s lastUpdated=%s", e.Date, e.LastUpdated)
	}
	if !tl.Next.Equal(c.t.Add(DefaultDataInterval)) {
		t.Errorf("expected reload in 15m, got %s", tl.Next.Sub(c.t))
	}
}

func TestTickFollowsTimeline(t *testing.T) {
	ctx := context.Background()
	ch := bridge.NewAppGroupChannel(store.NewMemoryStore())
	r, c, shown := newTestRenderer(ch)

	if !r.Tick(ctx) {
		t.Fatal("first tick must render")
	}
	if r.Tick(ctx) {
		t.Error("tick before the retry interval must not render")
	}

	data, _ := bridge.EncodeSnapshot(weather.Snapshot{City: "Oslo, NO", Temp: -3, Emoji: weather.EmojiSnow, UpdatedAt: c.t})
	_ = ch.Write(ctx, data)

	c.t = c.t.Add(time.Minute)
	if !r.Tick(ctx) {
		t.Fatal("tick at the retry interval must render")
	}
	if got := r.Current(); got.City != "Oslo, NO" || got.Temperature != -3 {
		t.Errorf("unexpected entry %+v", got)
	}

	c.t = c.t.Add(14 * time.Minute)
	if r.Tick(ctx) {
		t.Error("tick before the data interval must not render")
	}
	c.t = c.t.Add(time.Minute)
	if !r.Tick(ctx) {
		t.Error("tick at the data interval must render")
	}

	if len(*shown) != 3 {
		t.Errorf("expected 3 renders, got %d", len(*shown))
	}
}

func TestTickHonoursRefreshRequest(t *testing.T) {
	ctx := context.Background()
	local := store.NewMemoryStore()
	ch := bridge.NewAppGroupChannel(store.NewMemoryStore())
	b := bridge.New(local, bridge.Available(ch))
	r, c, _ := newTestRenderer(ch)

	r.Tick(ctx)
	if !r.Current().Placeholder {
		t.Fatal("expected placeholder before publish")
	}

	b.Publish(ctx, weather.Snapshot{City: "Lima, PE", Temp: 17, Emoji: weather.EmojiFog, UpdatedAt: c.t})

	if !r.Tick(ctx) {
		t.Fatal("refresh request must trigger an early reload")
	}
	if got := r.Current(); got.City != "Lima, PE" {
		t.Errorf("unexpected entry %+v", got)
	}
	if r.Tick(ctx) {
		t.Error("the same token must not trigger another reload")
	}
}

func TestLogEntryTemperature(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	logEntry(Entry{City: "Paris, FR", Temperature: 21, Emoji: weather.EmojiClear})

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if line["temp"] != float64(21) || line["city"] != "Paris, FR" {
		t.Errorf("unexpected log line %v", line)
	}
}
