package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/i474232898/weather-widget/internal/weather"
)

const (
	// isoMillis is the strict ISO-8601 form with fractional seconds that
	// EncodeSnapshot writes.
	isoMillis = "2006-01-02T15:04:05.000Z07:00"
)

var errInvalidTimestamp = errors.New("invalid ISO8601 date")

type snapshotPayload struct {
	City      *string  `json:"city"`
	Temp      *float64 `json:"temp"`
	Emoji     *string  `json:"emoji"`
	UpdatedAt *string  `json:"updatedAt"`
}

// EncodeSnapshot serializes a snapshot with updatedAt as an ISO-8601 UTC
// string with millisecond precision.
func EncodeSnapshot(s weather.Snapshot) ([]byte, error) {
	city, temp, emoji := s.City, float64(s.Temp), s.Emoji
	updatedAt := s.UpdatedAt.UTC().Format(isoMillis)
	return json.Marshal(snapshotPayload{
		City:      &city,
		Temp:      &temp,
		Emoji:     &emoji,
		UpdatedAt: &updatedAt,
	})
}

// DecodeSnapshot parses a payload written by EncodeSnapshot or by an older
// writer. All four fields are required; temp may be fractional and is
// rounded.
func DecodeSnapshot(data []byte) (weather.Snapshot, error) {
	var p snapshotPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return weather.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if p.City == nil || p.Temp == nil || p.Emoji == nil || p.UpdatedAt == nil {
		return weather.Snapshot{}, fmt.Errorf("decode snapshot: missing field")
	}

	updatedAt, err := ParseTimestamp(*p.UpdatedAt)
	if err != nil {
		return weather.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}

	return weather.Snapshot{
		City:      *p.City,
		Temp:      weather.RoundTemperature(*p.Temp),
		Emoji:     *p.Emoji,
		UpdatedAt: updatedAt,
	}, nil
}

// ParseTimestamp tries the strict fractional-seconds form first, then plain
// RFC 3339.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(isoMillis, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %s", errInvalidTimestamp, s)
}
