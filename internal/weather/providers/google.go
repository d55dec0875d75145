package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-widget/internal/common"
	"github.com/i474232898/weather-widget/internal/weather"
)

var errNoAddress = errors.New("no address for coordinates")

// geocoder keeps its API key in a package variable.
var googleKeyMu sync.Mutex

// GoogleReverseGeocoder names device coordinates through the Google
// Geocoding API. It implements weather.Labeler.
type GoogleReverseGeocoder struct {
	apiKey  string
	reverse func(geocoder.Location) ([]geocoder.Address, error)
}

func NewGoogleReverseGeocoder(apiKey string) *GoogleReverseGeocoder {
	return &GoogleReverseGeocoder{
		apiKey:  apiKey,
		reverse: geocoder.GeocodingReverse,
	}
}

// Label returns the best address for coords as a Location positioned at the
// given coordinates (not the address centroid).
func (g *GoogleReverseGeocoder) Label(ctx context.Context, coords weather.Coordinates) (weather.Location, error) {
	if g.apiKey == "" {
		return weather.Location{}, fmt.Errorf("google geocoder api key is not configured")
	}

	type result struct {
		addrs []geocoder.Address
		err   error
	}
	done := make(chan result, 1)

	go func() {
		googleKeyMu.Lock()
		geocoder.ApiKey = g.apiKey
		addrs, err := g.reverse(geocoder.Location{Latitude: coords.Latitude, Longitude: coords.Longitude})
		googleKeyMu.Unlock()
		done <- result{addrs: addrs, err: err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return weather.Location{}, ctx.Err()
	case r = <-done:
	}
	if r.err != nil {
		return weather.Location{}, fmt.Errorf("reverse geocode: %w", r.err)
	}
	if len(r.addrs) == 0 {
		return weather.Location{}, errNoAddress
	}

	addr := r.addrs[0]
	name := common.FirstNonBlank(addr.City, addr.FormattedAddress)
	if name == "" {
		return weather.Location{}, errNoAddress
	}

	return weather.Location{
		Name:      name,
		Country:   addr.Country,
		Region:    addr.State,
		Latitude:  coords.Latitude,
		Longitude: coords.Longitude,
	}, nil
}
