// Package app holds the weather load flows: where to load for, what to
// dispatch on success and which message the user sees on failure.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-widget/internal/location"
	"github.com/i474232898/weather-widget/internal/state"
	"github.com/i474232898/weather-widget/internal/weather"
)

// User-facing error messages.
const (
	MsgLocationAccessDenied = "Location access denied. Search for a city to see the weather."
	MsgPermissionDenied     = "Location permission denied. Please search for a city instead."
	MsgLocationUnavailable  = "Location unavailable: %s"
	MsgLocationFailed       = "Failed to get your location. Please try again."
	MsgLocationLoadFailed   = "Failed to load weather for this location."
	MsgLoadFailed           = "Failed to load weather. Please try again."
)

// ErrBusy is returned by Refresh while a load is already in progress.
var ErrBusy = errors.New("weather is already loading")

// Resolver picks the place to load weather for.
type Resolver interface {
	Resolve(ctx context.Context, saved *weather.Location) (location.Resolution, error)
}

// Service runs the load flows against the store.
type Service struct {
	store    *state.Store
	resolver Resolver
	fetcher  weather.Fetcher
	labeler  weather.Labeler
}

// NewService creates a Service. labeler may be nil; device fixes are then
// named by the fetcher's coordinate placeholder.
func NewService(store *state.Store, resolver Resolver, fetcher weather.Fetcher, labeler weather.Labeler) *Service {
	return &Service{
		store:    store,
		resolver: resolver,
		fetcher:  fetcher,
		labeler:  labeler,
	}
}

// State returns the current application state.
func (s *Service) State() state.State {
	return s.store.State()
}

// Refresh is the initial load and pull-to-refresh: weather for the saved
// location, or for the device position when nothing is saved. Failures end
// up in the state's error message; only ErrBusy is returned, when another
// refresh or a selection holds the loading flag.
func (s *Service) Refresh(ctx context.Context) error {
	if !s.store.BeginLoading() {
		return ErrBusy
	}

	res, err := s.resolver.Resolve(ctx, s.store.State().SavedLocation)
	if err != nil {
		s.store.Dispatch(state.SetLocationPermission{Granted: false})
		s.store.Dispatch(state.SetError{Message: locationMessage(err)})
		return nil
	}

	if !res.FromDevice() {
		_ = s.LoadForLocation(ctx, *res.Location)
		return nil
	}

	s.store.Dispatch(state.SetLocationPermission{Granted: true})
	s.loadForCoordinates(ctx, res.Coordinates)
	return nil
}

// LoadForLocation fetches weather for a known location and saves it.
func (s *Service) LoadForLocation(ctx context.Context, loc weather.Location) error {
	reading, err := s.fetcher.GetCurrentWeather(ctx, loc.Coordinates(), &loc)
	if err != nil {
		log.Error().Err(err).Str("location", loc.Label()).Msg("error loading weather for location")
		s.store.Dispatch(state.SetError{Message: MsgLocationLoadFailed})
		return fmt.Errorf("load weather for %s: %w", loc.Label(), err)
	}

	s.store.Dispatch(state.SetWeather{Reading: reading})
	s.store.Dispatch(state.SetSavedLocation{Location: &loc})
	return nil
}

// SelectLocation loads weather for a picked search result.
func (s *Service) SelectLocation(ctx context.Context, loc weather.Location) error {
	s.store.Dispatch(state.SetLoading{Loading: true})
	return s.LoadForLocation(ctx, loc)
}

func (s *Service) loadForCoordinates(ctx context.Context, coords weather.Coordinates) {
	known := s.label(ctx, coords)

	reading, err := s.fetcher.GetCurrentWeather(ctx, coords, known)
	if err != nil {
		log.Error().Err(err).Str("location", coords.String()).Msg("error loading weather for device location")
		s.store.Dispatch(state.SetError{Message: MsgLoadFailed})
		return
	}

	loc := reading.Location
	s.store.Dispatch(state.SetWeather{Reading: reading})
	s.store.Dispatch(state.SetSavedLocation{Location: &loc})
}

// label names coords when a labeler is configured. Failures fall back to the
// placeholder name.
func (s *Service) label(ctx context.Context, coords weather.Coordinates) *weather.Location {
	if s.labeler == nil {
		return nil
	}
	loc, err := s.labeler.Label(ctx, coords)
	if err != nil {
		log.Warn().Err(err).Str("location", coords.String()).Msg("reverse geocoding failed; using coordinates")
		return nil
	}
	return &loc
}

// SetUnit changes the display unit.
func (s *Service) SetUnit(u weather.Unit) {
	s.store.Dispatch(state.SetTemperatureUnit{Unit: u})
}

// ToggleUnit flips between Celsius and Fahrenheit and returns the new unit.
func (s *Service) ToggleUnit() weather.Unit {
	next := s.store.State().TemperatureUnit.Toggle()
	s.SetUnit(next)
	return next
}

func (s *Service) ClearError() {
	s.store.Dispatch(state.ClearError{})
}

func locationMessage(err error) string {
	var located *location.Error
	switch {
	case errors.Is(err, location.ErrNotAvailable):
		return MsgLocationAccessDenied
	case errors.Is(err, location.ErrPermissionDenied):
		return MsgPermissionDenied
	case errors.As(err, &located):
		return fmt.Sprintf(MsgLocationUnavailable, located.Reason)
	default:
		return MsgLocationFailed
	}
}
