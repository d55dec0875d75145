package weather

import (
	"fmt"
	"math"
	"time"
)

// Unit is the temperature unit used for presentation. Readings are always
// stored in Celsius.
type Unit string

const (
	Celsius    Unit = "C"
	Fahrenheit Unit = "F"
)

// ParseUnit accepts the raw persisted form ("C" or "F").
func ParseUnit(s string) (Unit, error) {
	switch Unit(s) {
	case Celsius, Fahrenheit:
		return Unit(s), nil
	default:
		return "", fmt.Errorf("invalid temperature unit %q", s)
	}
}

// Toggle returns the other unit.
func (u Unit) Toggle() Unit {
	if u == Fahrenheit {
		return Celsius
	}
	return Fahrenheit
}

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.2f, %.2f", c.Latitude, c.Longitude)
}

// Location is a named place returned by geocoding or synthesized from
// device coordinates.
type Location struct {
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Region    string  `json:"region,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Key returns a canonical string key for the location's coordinates.
func (l Location) Key() string {
	return fmt.Sprintf("%v-%v", l.Latitude, l.Longitude)
}

// Coordinates returns the location's position.
func (l Location) Coordinates() Coordinates {
	return Coordinates{Latitude: l.Latitude, Longitude: l.Longitude}
}

// Label is the display form used in search results: name, region, country.
func (l Location) Label() string {
	s := l.Name
	if l.Region != "" {
		s += ", " + l.Region
	}
	if l.Country != "" {
		s += ", " + l.Country
	}
	return s
}

// City is the widget label: name, plus country when known.
func (l Location) City() string {
	if l.Country == "" {
		return l.Name
	}
	return l.Name + ", " + l.Country
}

// PlaceholderLocation labels bare coordinates when no geocoded place is known.
func PlaceholderLocation(c Coordinates) Location {
	return Location{
		Name:      c.String(),
		Country:   "",
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
	}
}

// Reading is the current conditions at a location. Temperature is in Celsius.
type Reading struct {
	Temperature float64   `json:"temperature"`
	WeatherCode int       `json:"weatherCode"`
	Location    Location  `json:"location"`
	Timestamp   time.Time `json:"timestamp"`
}

// TemperatureIn converts the reading's temperature to the given unit.
func (r Reading) TemperatureIn(u Unit) float64 {
	if u == Fahrenheit {
		return CelsiusToFahrenheit(r.Temperature)
	}
	return r.Temperature
}

// Snapshot is the minimal projection handed to the widget.
type Snapshot struct {
	City      string    `json:"city"`
	Temp      int       `json:"temp"`
	Emoji     string    `json:"emoji"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewSnapshot derives the widget snapshot from a reading in the given unit.
func NewSnapshot(r Reading, u Unit) Snapshot {
	return Snapshot{
		City:      r.Location.City(),
		Temp:      RoundTemperature(r.TemperatureIn(u)),
		Emoji:     Emoji(r.WeatherCode),
		UpdatedAt: r.Timestamp,
	}
}

func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// RoundTemperature rounds half away from zero.
func RoundTemperature(t float64) int {
	return int(math.Round(t))
}

// FormatTemperature renders e.g. "21°C".
func FormatTemperature(t float64, u Unit) string {
	return fmt.Sprintf("%d°%s", RoundTemperature(t), u)
}
