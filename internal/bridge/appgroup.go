package bridge

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/i474232898/weather-widget/internal/store"
)

const (
	// DefaultAppGroupID names the storage area shared between app and widget.
	DefaultAppGroupID = "group.com.weatherapp.shared"

	reloadRequestKey = "widget_reload_request"
)

// AppGroupChannel is a shared channel backed by a key/value store that both
// the app and the renderer open, typically a SQLite file named after the app
// group.
type AppGroupChannel struct {
	kv store.KV
}

func NewAppGroupChannel(kv store.KV) *AppGroupChannel {
	return &AppGroupChannel{kv: kv}
}

// OpenAppGroup opens the SQLite file for groupID under dir.
func OpenAppGroup(dir, groupID string) (*AppGroupChannel, error) {
	kv, err := store.NewSQLiteStore(AppGroupPath(dir, groupID))
	if err != nil {
		return nil, err
	}
	return NewAppGroupChannel(kv), nil
}

// AppGroupPath is where the app group's database lives.
func AppGroupPath(dir, groupID string) string {
	return filepath.Join(dir, groupID+".db")
}

func (c *AppGroupChannel) Write(ctx context.Context, payload []byte) error {
	return c.kv.Set(ctx, WidgetDataKey, string(payload))
}

func (c *AppGroupChannel) Read(ctx context.Context) ([]byte, error) {
	v, err := c.kv.Get(ctx, WidgetDataKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(v), nil
}

// RequestRefresh stores a fresh token; the renderer reloads when it sees a
// token it has not seen before.
func (c *AppGroupChannel) RequestRefresh(ctx context.Context) error {
	return c.kv.Set(ctx, reloadRequestKey, uuid.NewString())
}

func (c *AppGroupChannel) RefreshToken(ctx context.Context) (string, error) {
	v, err := c.kv.Get(ctx, reloadRequestKey)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	return v, err
}

func (c *AppGroupChannel) Close() error {
	return c.kv.Close()
}
