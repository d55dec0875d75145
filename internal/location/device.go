package location

import (
	"context"
	"fmt"
	"sync"

	"github.com/i474232898/weather-widget/internal/weather"
)

// PermissionStatus is the foreground location permission as the platform
// reports it.
type PermissionStatus struct {
	Granted     bool
	CanAskAgain bool
}

// Device is the platform location API.
type Device interface {
	ServicesEnabled(ctx context.Context) (bool, error)
	Permission(ctx context.Context) (PermissionStatus, error)
	// RequestPermission prompts when allowed and returns the outcome.
	RequestPermission(ctx context.Context) (PermissionStatus, error)
	// CurrentPosition must honour ctx's deadline.
	CurrentPosition(ctx context.Context) (weather.Coordinates, error)
}

// Permission modes accepted by ParsePermission.
const (
	PermissionGranted = "granted"
	PermissionDenied  = "denied"  // denied, may be asked again
	PermissionPrompt  = "prompt"  // never asked; a request is accepted
	PermissionBlocked = "blocked" // denied permanently
)

// StaticDevice is a device with a fixed configuration: services on or off,
// a permission mode and an optional fixed position.
type StaticDevice struct {
	mu         sync.Mutex
	enabled    bool
	permission string
	position   *weather.Coordinates
}

func NewStaticDevice(enabled bool, permission string, position *weather.Coordinates) (*StaticDevice, error) {
	switch permission {
	case PermissionGranted, PermissionDenied, PermissionPrompt, PermissionBlocked:
	default:
		return nil, fmt.Errorf("invalid location permission %q (allowed: granted, denied, prompt, blocked)", permission)
	}
	return &StaticDevice{enabled: enabled, permission: permission, position: position}, nil
}

func (d *StaticDevice) ServicesEnabled(_ context.Context) (bool, error) {
	return d.enabled, nil
}

func (d *StaticDevice) Permission(_ context.Context) (PermissionStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status(), nil
}

func (d *StaticDevice) RequestPermission(_ context.Context) (PermissionStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.permission == PermissionPrompt {
		d.permission = PermissionGranted
	}
	return d.status(), nil
}

func (d *StaticDevice) CurrentPosition(ctx context.Context) (weather.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return weather.Coordinates{}, err
	}
	if !d.enabled {
		return weather.Coordinates{}, &Error{Kind: ErrServiceUnavailable, Reason: ReasonServicesDisabled}
	}
	if d.position == nil {
		return weather.Coordinates{}, &Error{Kind: ErrServiceUnavailable, Reason: ReasonUnavailable}
	}
	return *d.position, nil
}

func (d *StaticDevice) status() PermissionStatus {
	switch d.permission {
	case PermissionGranted:
		return PermissionStatus{Granted: true, CanAskAgain: true}
	case PermissionDenied, PermissionPrompt:
		return PermissionStatus{Granted: false, CanAskAgain: true}
	default:
		return PermissionStatus{}
	}
}
