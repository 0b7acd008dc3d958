package config

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	// Internal API Configuration
	APIServerPort int    `mapstructure:"API_SERVER_PORT"`
	APIBaseURL    string `mapstructure:"API_BASE_URL" validate:"required"`
	APIKey        string `mapstructure:"API_KEY" validate:"required"`

	// Database Configuration
	DatabaseDSN     string `mapstructure:"DATABASE_DSN" validate:"required"`
	DatabaseRetries int    `mapstructure:"DATABASE_RETRIES"`

	// Broker Configuration
	RedisAddr     string `mapstructure:"REDIS_ADDR" validate:"required"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// Worker Configuration
	WorkerConcurrency int    `mapstructure:"WORKER_CONCURRENCY"`
	WorkerQueues      string `mapstructure:"WORKER_QUEUES"`

	// Transcription Configuration
	TranscriberURL string `mapstructure:"TRANSCRIBER_URL" validate:"required"`
	CacheDir       string `mapstructure:"CACHE_DIR"`

	// Platform Configuration
	ScheduledPlatform string `mapstructure:"SCHEDULED_PLATFORM"`
	LiveStatusURL     string `mapstructure:"LIVE_STATUS_URL"`

	// Ad-hoc job retention
	JobRetentionDays int `mapstructure:"JOB_RETENTION_DAYS"`
}

// use reflect to bind environment variables based on mapstructure tags
func bindEnv(c Config) {
	val := reflect.ValueOf(c)
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		fieldVal := val.Field(i)
		tag := field.Tag.Get("mapstructure")

		if tag != "" {
			viper.BindEnv(tag)
		}

		// Handle nested structs
		if field.Type.Kind() == reflect.Struct && tag == "" {
			nestedTyp := fieldVal.Type()
			for j := 0; j < fieldVal.NumField(); j++ {
				nestedField := nestedTyp.Field(j)
				nestedTag := nestedField.Tag.Get("mapstructure")
				if nestedTag != "" {
					viper.BindEnv(nestedTag)
				}
			}
		}
	}
	slog.Info("Environment variables bound", "config", c)
}

func LoadConfig(ctx context.Context) (*Config, error) {
	bindEnv(Config{})
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("DATABASE_RETRIES", 10)
	viper.SetDefault("API_SERVER_PORT", 8000)
	viper.SetDefault("WORKER_CONCURRENCY", 4)
	viper.SetDefault("WORKER_QUEUES", "default,default-queue,priority-queue")
	viper.SetDefault("CACHE_DIR", "/cache")
	viper.SetDefault("SCHEDULED_PLATFORM", "twitch")
	viper.SetDefault("JOB_RETENTION_DAYS", 7)

	cfg := Config{}
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	slog.Info("Loaded configuration", "config", cfg)

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
