// Package search debounces keystrokes into geocoding requests and keeps the
// result list the user picks a location from.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-widget/internal/common"
	"github.com/i474232898/weather-widget/internal/weather"
)

// DefaultDebounce is the quiet period after the last keystroke.
const DefaultDebounce = 350 * time.Millisecond

// ErrorMessage is shown when a search request fails.
const ErrorMessage = "Failed to search locations. Please try again."

// ErrInvalidIndex is returned by Select for an index outside the results.
var ErrInvalidIndex = errors.New("no search result at index")

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhasePending   Phase = "pending"
	PhaseSearching Phase = "searching"
	PhaseResults   Phase = "results"
)

// SelectFunc loads weather for a picked result.
type SelectFunc func(ctx context.Context, loc weather.Location) error

// View is a copy of the controller's visible state.
type View struct {
	Phase   Phase              `json:"phase"`
	Query   string             `json:"query"`
	Results []weather.Location `json:"results"`
	Error   string             `json:"error,omitempty"`
}

// Controller turns keystrokes into at most one geocoding request per quiet
// period. A response is applied only if no keystroke happened since its
// timer fired and no newer response was applied before it. In-flight
// requests are never cancelled; stale ones are dropped on arrival.
type Controller struct {
	geocoder weather.Geocoder
	onSelect SelectFunc
	debounce time.Duration

	mu      sync.Mutex
	query   string
	results []weather.Location
	phase   Phase
	errMsg  string
	timer   *time.Timer
	closed  bool

	// generation changes on every keystroke and selection.
	generation uint64
	// issued and applied are request sequence numbers.
	issued  uint64
	applied uint64

	inflight sync.WaitGroup
}

func NewController(geocoder weather.Geocoder, debounce time.Duration, onSelect SelectFunc) *Controller {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Controller{
		geocoder: geocoder,
		onSelect: onSelect,
		debounce: debounce,
		phase:    PhaseIdle,
	}
}

// Type records text as the current query. A blank query clears the results
// at once; anything else (re)starts the debounce timer.
func (c *Controller) Type(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.query = text
	c.generation++
	c.stopTimer()

	if common.IsBlank(text) {
		c.results = nil
		c.errMsg = ""
		c.phase = PhaseIdle
		return
	}

	c.phase = PhasePending
	gen := c.generation
	c.timer = time.AfterFunc(c.debounce, func() { c.fire(gen) })
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.issued++
	seq := c.issued
	query := strings.TrimSpace(c.query)
	c.phase = PhaseSearching
	c.inflight.Add(1)
	c.mu.Unlock()

	defer c.inflight.Done()

	results, err := c.geocoder.SearchLocations(context.Background(), query)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || seq < c.applied {
		log.Debug().Str("query", query).Uint64("seq", seq).Msg("dropping stale search response")
		return
	}
	c.applied = seq

	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("error searching locations")
		c.results = nil
		c.errMsg = ErrorMessage
		c.phase = PhaseIdle
		return
	}

	c.errMsg = ""
	c.results = results
	if len(results) == 0 {
		c.phase = PhaseIdle
		return
	}
	c.phase = PhaseResults
}

// Select clears the query and results, then loads weather for the result at
// index through the select callback.
func (c *Controller) Select(ctx context.Context, index int) error {
	c.mu.Lock()
	if index < 0 || index >= len(c.results) {
		n := len(c.results)
		c.mu.Unlock()
		return fmt.Errorf("%w %d (have %d)", ErrInvalidIndex, index, n)
	}
	loc := c.results[index]
	c.query = ""
	c.results = nil
	c.errMsg = ""
	c.phase = PhaseIdle
	c.generation++
	c.stopTimer()
	c.mu.Unlock()

	if c.onSelect == nil {
		return nil
	}
	return c.onSelect(ctx, loc)
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	return View{
		Phase:   c.phase,
		Query:   c.query,
		Results: append([]weather.Location(nil), c.results...),
		Error:   c.errMsg,
	}
}

// Close stops the pending timer and waits for in-flight requests.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.stopTimer()
	c.mu.Unlock()

	c.inflight.Wait()
}

func (c *Controller) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
