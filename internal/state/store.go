package state

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-widget/internal/store"
	"github.com/i474232898/weather-widget/internal/weather"
)

// Keys in local durable storage.
const (
	KeySavedLocation   = "weather_saved_location"
	KeyTemperatureUnit = "weather_temperature_unit"
	KeyLastWeather     = "weather_last_data"
)

const effectTimeout = 10 * time.Second

// SnapshotSink receives every derived widget snapshot. Implementations must
// not fail the caller.
type SnapshotSink interface {
	Publish(ctx context.Context, snapshot weather.Snapshot)
}

// Store owns the single application state. Dispatch applies actions in call
// order; persistence and snapshot publishing run afterwards, in the same
// order, on one background worker. The effect queue is unbounded so Dispatch
// and State never wait on a slow sink.
type Store struct {
	mu      sync.Mutex
	state   State
	closed  bool
	pending []func(ctx context.Context)

	kv   store.KV
	sink SnapshotSink

	wake chan struct{}
	done chan struct{}
}

func NewStore(kv store.KV, sink SnapshotSink) *Store {
	s := &Store{
		state: Initial(),
		kv:    kv,
		sink:  sink,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

// run executes queued effects in order until the store is closed and the
// queue is empty.
func (s *Store) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		batch := s.pending
		s.pending = nil
		closed := s.closed
		s.mu.Unlock()

		for _, effect := range batch {
			ctx, cancel := context.WithTimeout(context.Background(), effectTimeout)
			effect(ctx)
			cancel()
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-s.wake
	}
}

// enqueue must be called with s.mu held.
func (s *Store) enqueue(effects ...func(ctx context.Context)) {
	if len(effects) == 0 {
		return
	}
	s.pending = append(s.pending, effects...)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies a and queues the side effects of the change.
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		log.Warn().Type("action", a).Msg("dispatch after close ignored")
		return
	}
	s.apply(a)
}

// BeginLoading sets the loading flag unless a load is already running and
// reports whether it did. Check and set happen under one lock.
func (s *Store) BeginLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.state.IsLoading {
		return false
	}
	s.apply(SetLoading{Loading: true})
	return true
}

func (s *Store) apply(a Action) {
	prev := s.state
	next := Reduce(prev, a)
	s.state = next
	s.enqueue(s.effectsFor(prev, next, a)...)
}

func (s *Store) effectsFor(prev, next State, a Action) []func(ctx context.Context) {
	var effects []func(ctx context.Context)

	if act, ok := a.(SetSavedLocation); ok && act.Location != nil {
		loc := *next.SavedLocation
		effects = append(effects, func(ctx context.Context) {
			s.persistJSON(ctx, KeySavedLocation, loc)
		})
	}

	unitChanged := prev.TemperatureUnit != next.TemperatureUnit
	if unitChanged {
		unit := next.TemperatureUnit
		effects = append(effects, func(ctx context.Context) {
			s.persist(ctx, KeyTemperatureUnit, string(unit))
		})
	}

	_, weatherSet := a.(SetWeather)
	if next.CurrentWeather != nil && (weatherSet || unitChanged) {
		reading := *next.CurrentWeather
		snapshot, _ := next.WidgetSnapshot()
		effects = append(effects, func(ctx context.Context) {
			s.persistJSON(ctx, KeyLastWeather, reading)
			if s.sink != nil {
				s.sink.Publish(ctx, snapshot)
			}
		})
	}

	return effects
}

func (s *Store) persistJSON(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to encode persisted value")
		return
	}
	s.persist(ctx, key, string(data))
}

func (s *Store) persist(ctx context.Context, key, value string) {
	if err := s.kv.Set(ctx, key, value); err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to persist state")
	}
}

// Restore loads the saved location, unit and last weather reading and
// applies each one that reads and parses cleanly. Failures are logged and
// leave that piece at its default.
func (s *Store) Restore(ctx context.Context) {
	if v, ok := s.read(ctx, KeySavedLocation); ok {
		var loc weather.Location
		if err := json.Unmarshal([]byte(v), &loc); err != nil {
			log.Error().Err(err).Str("key", KeySavedLocation).Msg("error loading persisted data")
		} else {
			s.Dispatch(SetSavedLocation{Location: &loc})
		}
	}

	if v, ok := s.read(ctx, KeyTemperatureUnit); ok {
		unit, err := weather.ParseUnit(v)
		if err != nil {
			log.Error().Err(err).Str("key", KeyTemperatureUnit).Msg("error loading persisted data")
		} else {
			s.Dispatch(SetTemperatureUnit{Unit: unit})
		}
	}

	if v, ok := s.read(ctx, KeyLastWeather); ok {
		var reading weather.Reading
		if err := json.Unmarshal([]byte(v), &reading); err != nil {
			log.Error().Err(err).Str("key", KeyLastWeather).Msg("error loading persisted data")
		} else {
			s.Dispatch(SetWeather{Reading: reading})
		}
	}
}

func (s *Store) read(ctx context.Context, key string) (string, bool) {
	v, err := s.kv.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return "", false
	}
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("error loading persisted data")
		return "", false
	}
	return v, true
}

// Flush blocks until every effect queued before the call has run.
func (s *Store) Flush() {
	done := make(chan struct{})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.enqueue(func(context.Context) { close(done) })
	s.mu.Unlock()

	<-done
}

// Close runs the remaining effects and stops the worker.
func (s *Store) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
	s.mu.Unlock()

	<-s.done
}
