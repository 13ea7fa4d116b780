package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSAddress            string
	EventChannelBase       string
	JWTSecret              string
	JWTRefreshSecret       string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	StatusCacheTTL         time.Duration
	AutosaveDebounce       time.Duration
	SaveErrorWindow        time.Duration
	MaxFileSubmissionBytes int64
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SMAN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "S-MAN API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("events.channel_base", "sman")
	v.SetDefault("cloudinary.folder", "sman/evaluations")
	v.SetDefault("status.cache_ttl", "30s")
	v.SetDefault("autosave.debounce", "2s")
	v.SetDefault("autosave.error_window", "5s")
	v.SetDefault("upload.max_bytes", 10*1024*1024)

	cacheTTL, err := parseDuration(v, "status.cache_ttl", "30s")
	if err != nil {
		return Config{}, fmt.Errorf("invalid status cache ttl: %w", err)
	}

	debounce, err := parseDuration(v, "autosave.debounce", "2s")
	if err != nil {
		return Config{}, fmt.Errorf("invalid autosave debounce: %w", err)
	}

	errorWindow, err := parseDuration(v, "autosave.error_window", "5s")
	if err != nil {
		return Config{}, fmt.Errorf("invalid autosave error window: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSAddress:            v.GetString("nats.address"),
		EventChannelBase:       v.GetString("events.channel_base"),
		JWTSecret:              v.GetString("jwt.secret"),
		JWTRefreshSecret:       v.GetString("jwt.refresh_secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		StatusCacheTTL:         cacheTTL,
		AutosaveDebounce:       debounce,
		SaveErrorWindow:        errorWindow,
		MaxFileSubmissionBytes: v.GetInt64("upload.max_bytes"),
	}

	if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
		return Config{}, fmt.Errorf("jwt secrets must be provided")
	}

	if cfg.MaxFileSubmissionBytes <= 0 {
		cfg.MaxFileSubmissionBytes = 10 * 1024 * 1024
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key, fallback string) (time.Duration, error) {
	value := v.GetString(key)
	if value == "" {
		value = fallback
	}

	return time.ParseDuration(value)
}
