package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/i474232898/weather-widget/internal/location"
	"github.com/i474232898/weather-widget/internal/state"
	"github.com/i474232898/weather-widget/internal/store"
	"github.com/i474232898/weather-widget/internal/weather"
)

type stubResolver struct {
	res   location.Resolution
	err   error
	saved []*weather.Location
}

func (r *stubResolver) Resolve(_ context.Context, saved *weather.Location) (location.Resolution, error) {
	r.saved = append(r.saved, saved)
	if saved != nil {
		loc := *saved
		return location.Resolution{Location: &loc}, nil
	}
	return r.res, r.err
}

type stubFetcher struct {
	err   error
	calls int
	known []*weather.Location
}

func (f *stubFetcher) GetCurrentWeather(_ context.Context, coords weather.Coordinates, known *weather.Location) (weather.Reading, error) {
	f.calls++
	f.known = append(f.known, known)
	if f.err != nil {
		return weather.Reading{}, f.err
	}
	loc := weather.PlaceholderLocation(coords)
	if known != nil {
		loc = *known
	}
	return weather.Reading{
		Temperature: 21.6,
		WeatherCode: 0,
		Location:    loc,
		Timestamp:   time.Date(2025, 10, 7, 12, 0, 0, 0, time.UTC),
	}, nil
}

type stubLabeler struct {
	loc weather.Location
	err error
}

func (l stubLabeler) Label(context.Context, weather.Coordinates) (weather.Location, error) {
	return l.loc, l.err
}

func newTestService(t *testing.T, r Resolver, f weather.Fetcher, l weather.Labeler) (*Service, *state.Store) {
	t.Helper()
	st := state.NewStore(store.NewMemoryStore(), nil)
	t.Cleanup(st.Close)
	return NewService(st, r, f, l), st
}

var tokyo = weather.Location{Name: "Tokyo", Country: "JP", Latitude: 35.68, Longitude: 139.76}

func TestRefreshDeviceLocation(t *testing.T) {
	coords := weather.Coordinates{Latitude: 35.6762, Longitude: 139.6503}
	res := &stubResolver{res: location.Resolution{Coordinates: coords}}
	fetch := &stubFetcher{}
	svc, _ := newTestService(t, res, fetch, nil)

	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st := svc.State()
	if st.CurrentWeather == nil || st.CurrentWeather.Location.Name != "35.68, 139.65" {
		t.Fatalf("expected placeholder-named reading, got %+v", st.CurrentWeather)
	}
	if st.SavedLocation == nil || st.SavedLocation.Name != "35.68, 139.65" {
		t.Errorf("device fix should become the saved location, got %+v", st.SavedLocation)
	}
	if st.LocationPermissionGranted == nil || !*st.LocationPermissionGranted {
		t.Error("expected permission granted")
	}
	if st.IsLoading || st.Error != "" {
		t.Errorf("expected settled state, got loading=%v error=%q", st.IsLoading, st.Error)
	}
}

func TestRefreshUsesLabeler(t *testing.T) {
	res := &stubResolver{res: location.Resolution{Coordinates: tokyo.Coordinates()}}
	fetch := &stubFetcher{}
	svc, _ := newTestService(t, res, fetch, stubLabeler{loc: tokyo})

	_ = svc.Refresh(context.Background())

	if fetch.known[0] == nil || fetch.known[0].Name != "Tokyo" {
		t.Errorf("expected labeled location passed to fetcher, got %+v", fetch.known[0])
	}

	// A failing labeler falls back to the placeholder.
	fetch = &stubFetcher{}
	svc, _ = newTestService(t, res, fetch, stubLabeler{err: errors.New("quota")})
	_ = svc.Refresh(context.Background())
	if fetch.known[0] != nil {
		t.Errorf("expected nil known location, got %+v", fetch.known[0])
	}
}

func TestRefreshSavedLocation(t *testing.T) {
	res := &stubResolver{}
	fetch := &stubFetcher{}
	svc, st := newTestService(t, res, fetch, nil)
	st.Dispatch(state.SetSavedLocation{Location: &tokyo})

	_ = svc.Refresh(context.Background())

	if res.saved[0] == nil || res.saved[0].Name != "Tokyo" {
		t.Fatalf("expected saved location passed to resolver, got %+v", res.saved)
	}
	got := svc.State()
	if got.CurrentWeather == nil || got.CurrentWeather.Location.City() != "Tokyo, JP" {
		t.Errorf("unexpected reading %+v", got.CurrentWeather)
	}
	if got.LocationPermissionGranted != nil {
		t.Error("saved-location loads must not touch the permission flag")
	}
}

func TestRefreshLocationErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not available", fmt.Errorf("%w: %w", location.ErrNotAvailable, location.ErrPermissionDenied), MsgLocationAccessDenied},
		{"denied", location.ErrPermissionDenied, MsgPermissionDenied},
		{"disabled", &location.Error{Kind: location.ErrServiceUnavailable, Reason: location.ReasonServicesDisabled}, "Location unavailable: Location services are disabled"},
		{"timeout", &location.Error{Kind: location.ErrTimeout, Reason: "Location request timed out after 10s"}, "Location unavailable: Location request timed out after 10s"},
		{"unknown", &location.Error{Kind: location.ErrUnknown, Reason: location.ReasonFailed}, "Location unavailable: Failed to get location"},
		{"unclassified", errors.New("boom"), MsgLocationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetch := &stubFetcher{}
			svc, _ := newTestService(t, &stubResolver{err: tt.err}, fetch, nil)

			_ = svc.Refresh(context.Background())

			st := svc.State()
			if st.Error != tt.want {
				t.Errorf("expected %q, got %q", tt.want, st.Error)
			}
			if st.IsLoading {
				t.Error("error must clear loading")
			}
			if st.LocationPermissionGranted == nil || *st.LocationPermissionGranted {
				t.Error("expected permission recorded as not granted")
			}
			if fetch.calls != 0 {
				t.Errorf("expected no weather fetch, got %d", fetch.calls)
			}
		})
	}
}

func TestRefreshStaticDeviceMessages(t *testing.T) {
	pos := &weather.Coordinates{Latitude: 35.68, Longitude: 139.76}
	tests := []struct {
		name       string
		enabled    bool
		permission string
		position   *weather.Coordinates
		want       string
	}{
		{"services off", false, location.PermissionGranted, pos, MsgLocationAccessDenied},
		{"blocked", true, location.PermissionBlocked, pos, MsgLocationAccessDenied},
		{"no fix", true, location.PermissionGranted, nil, "Location unavailable: Location unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := location.NewStaticDevice(tt.enabled, tt.permission, tt.position)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			svc, _ := newTestService(t, location.NewResolver(dev), &stubFetcher{}, nil)

			_ = svc.Refresh(context.Background())

			st := svc.State()
			if st.Error != tt.want {
				t.Errorf("expected %q, got %q", tt.want, st.Error)
			}
			if st.LocationPermissionGranted == nil || *st.LocationPermissionGranted {
				t.Error("expected permission recorded as not granted")
			}
		})
	}
}

func TestRefreshFetchFailure(t *testing.T) {
	res := &stubResolver{res: location.Resolution{Coordinates: tokyo.Coordinates()}}
	svc, st := newTestService(t, res, &stubFetcher{err: weather.ErrFetchFailed}, nil)

	_ = svc.Refresh(context.Background())
	if got := svc.State().Error; got != MsgLoadFailed {
		t.Errorf("expected %q, got %q", MsgLoadFailed, got)
	}

	st.Dispatch(state.SetSavedLocation{Location: &tokyo})
	_ = svc.Refresh(context.Background())
	if got := svc.State().Error; got != MsgLocationLoadFailed {
		t.Errorf("expected %q, got %q", MsgLocationLoadFailed, got)
	}
}

func TestRefreshWhileLoading(t *testing.T) {
	fetch := &stubFetcher{}
	svc, st := newTestService(t, &stubResolver{}, fetch, nil)
	st.Dispatch(state.SetLoading{Loading: true})

	if err := svc.Refresh(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if fetch.calls != 0 {
		t.Error("busy refresh must not fetch")
	}
}

// gatedResolver blocks every Resolve until release is closed.
type gatedResolver struct {
	entered chan struct{}
	release chan struct{}
}

func (r *gatedResolver) Resolve(ctx context.Context, _ *weather.Location) (location.Resolution, error) {
	r.entered <- struct{}{}
	<-r.release
	return location.Resolution{Coordinates: tokyo.Coordinates()}, nil
}

func TestConcurrentRefreshRunsOnce(t *testing.T) {
	res := &gatedResolver{entered: make(chan struct{}, 16), release: make(chan struct{})}
	svc, _ := newTestService(t, res, &stubFetcher{}, nil)

	const n = 8
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() { errs <- svc.Refresh(context.Background()) }()
	}

	busy := 0
	for busy < n-1 {
		select {
		case err := <-errs:
			if !errors.Is(err, ErrBusy) {
				t.Fatalf("expected ErrBusy, got %v", err)
			}
			busy++
		case <-time.After(2 * time.Second):
			close(res.release)
			t.Fatalf("expected %d busy refreshes, got %d", n-1, busy)
		}
	}

	close(res.release)
	if err := <-errs; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.entered) != 1 {
		t.Errorf("expected one resolve, got %d", len(res.entered))
	}
	if svc.State().IsLoading {
		t.Error("expected loading cleared")
	}
}

func TestSelectLocation(t *testing.T) {
	res := &stubResolver{}
	svc, _ := newTestService(t, res, &stubFetcher{}, nil)
	paris := weather.Location{Name: "Paris", Region: "Île-de-France", Country: "FR", Latitude: 48.85, Longitude: 2.35}

	if err := svc.SelectLocation(context.Background(), paris); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.saved) != 0 {
		t.Error("selection must bypass the resolver")
	}
	st := svc.State()
	if st.SavedLocation == nil || st.SavedLocation.Region != "Île-de-France" {
		t.Errorf("expected selected location saved, got %+v", st.SavedLocation)
	}
	if st.IsLoading {
		t.Error("expected loading cleared")
	}

	svc, _ = newTestService(t, res, &stubFetcher{err: weather.ErrFetchFailed}, nil)
	err := svc.SelectLocation(context.Background(), paris)
	if !errors.Is(err, weather.ErrFetchFailed) {
		t.Errorf("expected ErrFetchFailed, got %v", err)
	}
	if got := svc.State().Error; got != MsgLocationLoadFailed {
		t.Errorf("expected %q, got %q", MsgLocationLoadFailed, got)
	}
}

func TestUnitAndClearError(t *testing.T) {
	svc, st := newTestService(t, &stubResolver{}, &stubFetcher{}, nil)

	if u := svc.ToggleUnit(); u != weather.Fahrenheit {
		t.Errorf("expected F, got %s", u)
	}
	if u := svc.ToggleUnit(); u != weather.Celsius {
		t.Errorf("expected C, got %s", u)
	}
	svc.SetUnit(weather.Fahrenheit)
	if u := svc.State().TemperatureUnit; u != weather.Fahrenheit {
		t.Errorf("expected F, got %s", u)
	}

	st.Dispatch(state.SetError{Message: "x"})
	svc.ClearError()
	if e := svc.State().Error; e != "" {
		t.Errorf("expected cleared error, got %q", e)
	}
}
