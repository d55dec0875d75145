package state

import (
	"github.com/i474232898/weather-widget/internal/weather"
)

// State is the application state. Values reachable through its pointers are
// never mutated after a transition; treat them as read-only.
type State struct {
	CurrentWeather  *weather.Reading
	IsLoading       bool
	Error           string
	SavedLocation   *weather.Location
	TemperatureUnit weather.Unit
	// LocationPermissionGranted is nil until the permission is known.
	LocationPermissionGranted *bool
}

// Initial is the state before restore.
func Initial() State {
	return State{TemperatureUnit: weather.Celsius}
}

// WidgetSnapshot derives the widget snapshot; ok is false without weather.
func (s State) WidgetSnapshot() (weather.Snapshot, bool) {
	if s.CurrentWeather == nil {
		return weather.Snapshot{}, false
	}
	return weather.NewSnapshot(*s.CurrentWeather, s.TemperatureUnit), true
}

// Action is a state transition request. The set is closed: only the types
// in this package implement it.
type Action interface {
	action()
}

type SetLoading struct{ Loading bool }

type SetWeather struct{ Reading weather.Reading }

type SetError struct{ Message string }

type ClearError struct{}

// SetSavedLocation with a nil Location clears the saved location.
type SetSavedLocation struct{ Location *weather.Location }

type SetTemperatureUnit struct{ Unit weather.Unit }

type SetLocationPermission struct{ Granted bool }

func (SetLoading) action()            {}
func (SetWeather) action()            {}
func (SetError) action()              {}
func (ClearError) action()            {}
func (SetSavedLocation) action()      {}
func (SetTemperatureUnit) action()    {}
func (SetLocationPermission) action() {}

// Reduce applies a to s and returns the new state. It is pure.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SetLoading:
		s.IsLoading = a.Loading
		s.Error = ""
	case SetWeather:
		r := a.Reading
		s.CurrentWeather = &r
		s.IsLoading = false
		s.Error = ""
	case SetError:
		s.Error = a.Message
		s.IsLoading = false
	case ClearError:
		s.Error = ""
	case SetSavedLocation:
		if a.Location == nil {
			s.SavedLocation = nil
		} else {
			loc := *a.Location
			s.SavedLocation = &loc
		}
	case SetTemperatureUnit:
		s.TemperatureUnit = a.Unit
	case SetLocationPermission:
		granted := a.Granted
		s.LocationPermissionGranted = &granted
	}
	return s
}
