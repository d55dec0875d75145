package weather

import (
	"context"
	"errors"
)

// ErrFetchFailed is returned by clients for any transport, status or payload
// failure. Callers do not distinguish further.
var ErrFetchFailed = errors.New("fetch failed")

// Geocoder resolves free text to candidate locations.
type Geocoder interface {
	SearchLocations(ctx context.Context, query string) ([]Location, error)
}

// Fetcher resolves coordinates to current conditions. known may be nil.
type Fetcher interface {
	GetCurrentWeather(ctx context.Context, coords Coordinates, known *Location) (Reading, error)
}

// Labeler names bare coordinates (reverse geocoding).
type Labeler interface {
	Label(ctx context.Context, coords Coordinates) (Location, error)
}
