package location

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-widget/internal/weather"
)

var (
	// ErrPermissionDenied indicates the user refused (or can no longer be
	// asked for) location access.
	ErrPermissionDenied = errors.New("location permission denied")

	// ErrServiceUnavailable indicates location services are off or the
	// device cannot produce a position.
	ErrServiceUnavailable = errors.New("location services are unavailable")

	// ErrTimeout indicates no position arrived within PositionTimeout.
	ErrTimeout = errors.New("location request timed out")

	// ErrUnknown covers any other device failure.
	ErrUnknown = errors.New("failed to get location")

	// ErrNotAvailable marks a failed availability check, made before any
	// position is requested. It is joined with ErrServiceUnavailable or
	// ErrPermissionDenied.
	ErrNotAvailable = errors.New("location is not available")
)

// Error is a position request failure with a user-readable reason. It
// unwraps to Kind, one of the sentinel errors above.
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func (e *Error) Unwrap() error { return e.Kind }

// Position failure reasons.
const (
	ReasonServicesDisabled = "Location services are disabled"
	ReasonUnavailable      = "Location unavailable"
	ReasonFailed           = "Failed to get location"
)

// PositionTimeout bounds a single device position request.
const PositionTimeout = 10 * time.Second

// Resolution is where weather should be loaded for. Exactly one of Location
// (a saved place) or Coordinates (a fresh device fix) is meaningful.
type Resolution struct {
	Location    *weather.Location
	Coordinates weather.Coordinates
}

// FromDevice reports whether the resolution came from a device fix.
func (r Resolution) FromDevice() bool {
	return r.Location == nil
}

// Resolver picks the coordinates to load weather for.
type Resolver struct {
	device  Device
	timeout time.Duration
}

func NewResolver(device Device) *Resolver {
	return &Resolver{device: device, timeout: PositionTimeout}
}

// Resolve returns saved directly when set, without touching the device.
// Otherwise it checks availability, asks for permission and requests a
// position. Errors wrap one of the package's sentinel errors and are never
// retried; position failures past the availability check are *Error.
func (r *Resolver) Resolve(ctx context.Context, saved *weather.Location) (Resolution, error) {
	if saved != nil {
		loc := *saved
		return Resolution{Location: &loc}, nil
	}

	if err := r.checkAvailable(ctx); err != nil {
		return Resolution{}, err
	}

	coords, err := r.currentPosition(ctx)
	if err != nil {
		log.Error().Err(err).Msg("error getting location")
		return Resolution{}, err
	}
	return Resolution{Coordinates: coords}, nil
}

// checkAvailable requires services enabled and a permission that is granted
// or can still be asked for. Failures wrap ErrNotAvailable.
func (r *Resolver) checkAvailable(ctx context.Context) error {
	enabled, err := r.device.ServicesEnabled(ctx)
	if err != nil {
		log.Error().Err(err).Msg("error checking location availability")
		return fmt.Errorf("%w: %w: %v", ErrNotAvailable, ErrServiceUnavailable, err)
	}
	if !enabled {
		return fmt.Errorf("%w: %w", ErrNotAvailable, ErrServiceUnavailable)
	}

	perm, err := r.device.Permission(ctx)
	if err != nil {
		log.Error().Err(err).Msg("error checking location permission")
		return fmt.Errorf("%w: %w: %v", ErrNotAvailable, ErrServiceUnavailable, err)
	}
	if !perm.Granted && !perm.CanAskAgain {
		return fmt.Errorf("%w: %w", ErrNotAvailable, ErrPermissionDenied)
	}
	return nil
}

func (r *Resolver) currentPosition(ctx context.Context) (weather.Coordinates, error) {
	perm, err := r.device.RequestPermission(ctx)
	if err != nil {
		log.Error().Err(err).Msg("error requesting location permission")
		return weather.Coordinates{}, &Error{Kind: ErrUnknown, Reason: ReasonFailed}
	}
	if !perm.Granted {
		return weather.Coordinates{}, ErrPermissionDenied
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	coords, err := r.device.CurrentPosition(ctx)
	var located *Error
	switch {
	case err == nil:
		return coords, nil
	case errors.As(err, &located), errors.Is(err, ErrPermissionDenied):
		return weather.Coordinates{}, err
	case errors.Is(err, ErrServiceUnavailable):
		return weather.Coordinates{}, &Error{Kind: ErrServiceUnavailable, Reason: ReasonUnavailable}
	case errors.Is(err, context.DeadlineExceeded):
		return weather.Coordinates{}, &Error{
			Kind:   ErrTimeout,
			Reason: fmt.Sprintf("Location request timed out after %s", r.timeout),
		}
	default:
		log.Error().Err(err).Msg("unclassified position failure")
		return weather.Coordinates{}, &Error{Kind: ErrUnknown, Reason: ReasonFailed}
	}
}
