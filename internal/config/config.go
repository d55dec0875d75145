package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-widget/internal/weather"
)

const (
	EnvDev  = "dev"
	EnvProd = "prod"

	StorageSQLite = "sqlite"
	StorageMemory = "memory"

	SharedNone     = "none"
	SharedAppGroup = "appgroup"
	SharedMQTT     = "mqtt"
)

type AppConfig struct {
	Env      string `validate:"oneof=dev prod"`
	LogLevel string `validate:"oneof=trace debug info warn error"`
	Port     string `validate:"required,numeric"`

	GeocodingURL string `validate:"omitempty,url"`
	ForecastURL  string `validate:"omitempty,url"`
	// HTTPTimeout of zero leaves outbound requests without a client timeout.
	HTTPTimeout time.Duration `validate:"gte=0"`

	SearchDebounce time.Duration `validate:"gt=0"`

	StorageDriver    string `validate:"oneof=sqlite memory"`
	LocalStoragePath string `validate:"required_if=StorageDriver sqlite"`

	SharedChannel    string `validate:"oneof=none appgroup mqtt"`
	AppGroupID       string `validate:"required_if=SharedChannel appgroup"`
	SharedStorageDir string `validate:"required_if=SharedChannel appgroup"`
	MQTT             MQTTConfig

	Device DeviceConfig

	GoogleGeocoderAPIKey string

	WidgetDataInterval  time.Duration `validate:"gt=0"`
	WidgetRetryInterval time.Duration `validate:"gt=0"`
	WidgetTick          time.Duration `validate:"gt=0"`
}

type MQTTConfig struct {
	Broker      string
	Port        int `validate:"gte=1,lte=65535"`
	ClientID    string
	TopicPrefix string
	// ReadTimeout bounds the renderer's first wait for the retained snapshot.
	ReadTimeout time.Duration `validate:"gt=0"`
}

// DeviceConfig describes the location device the app runs on.
type DeviceConfig struct {
	ServicesEnabled bool
	Permission      string `validate:"oneof=granted denied prompt blocked"`
	Position        *weather.Coordinates
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Err(err).Msg("no .env file loaded")
	}
	cfg := &AppConfig{}

	cfg.Env = getenvDefault("APP_ENV", EnvDev)
	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", "info"))
	cfg.Port = getenvDefault("PORT", "8080")

	cfg.GeocodingURL = os.Getenv("GEOCODING_URL")
	cfg.ForecastURL = os.Getenv("FORECAST_URL")

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if cfg.SearchDebounce, err = getenvDuration("SEARCH_DEBOUNCE", 350*time.Millisecond); err != nil {
		return nil, err
	}

	cfg.StorageDriver = getenvDefault("STORAGE_DRIVER", StorageSQLite)
	cfg.LocalStoragePath = getenvDefault("LOCAL_STORAGE_PATH", "weather.db")

	cfg.SharedChannel = getenvDefault("SHARED_CHANNEL", SharedAppGroup)
	cfg.AppGroupID = getenvDefault("APP_GROUP_ID", "group.com.weatherapp.shared")
	cfg.SharedStorageDir = getenvDefault("SHARED_STORAGE_DIR", "shared")
	cfg.MQTT = MQTTConfig{
		Broker:      getenvDefault("MQTT_BROKER", "localhost"),
		Port:        getenvInt("MQTT_PORT", 1883),
		ClientID:    getenvDefault("MQTT_CLIENT_ID", "weather-widget"),
		TopicPrefix: getenvDefault("MQTT_TOPIC_PREFIX", "weatherapp"),
	}
	if cfg.MQTT.ReadTimeout, err = getenvDuration("MQTT_READ_TIMEOUT", 2*time.Second); err != nil {
		return nil, err
	}

	cfg.Device = DeviceConfig{
		ServicesEnabled: getenvBool("LOCATION_SERVICES", true),
		Permission:      getenvDefault("LOCATION_PERMISSION", "prompt"),
	}
	if cfg.Device.Position, err = loadDevicePosition(); err != nil {
		return nil, err
	}

	cfg.GoogleGeocoderAPIKey = os.Getenv("GOOGLE_GEOCODER_API_KEY")

	if cfg.WidgetDataInterval, err = getenvDuration("WIDGET_DATA_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.WidgetRetryInterval, err = getenvDuration("WIDGET_RETRY_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.WidgetTick, err = getenvDuration("WIDGET_TICK", 10*time.Second); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadDevicePosition reads the device's fixed position. Both coordinates or
// neither must be set.
func loadDevicePosition() (*weather.Coordinates, error) {
	latStr := os.Getenv("DEVICE_LATITUDE")
	lonStr := os.Getenv("DEVICE_LONGITUDE")
	if latStr == "" && lonStr == "" {
		return nil, nil
	}
	if latStr == "" || lonStr == "" {
		return nil, fmt.Errorf("DEVICE_LATITUDE and DEVICE_LONGITUDE must be set together")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, fmt.Errorf("invalid DEVICE_LATITUDE %q", latStr)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("invalid DEVICE_LONGITUDE %q", lonStr)
	}
	return &weather.Coordinates{Latitude: lat, Longitude: lon}, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
