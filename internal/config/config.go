/**
 * @description
 * Configuration management for the billing service, its scheduler and the
 * operator CLI. Settings come from environment variables.
 */
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// Config holds all configuration for the billing service.
type Config struct {
	ServerPort       string        `mapstructure:"SERVER_PORT"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	BusinessTimezone string        `mapstructure:"BUSINESS_TIMEZONE"`
	BillingDueDay    int           `mapstructure:"BILLING_DUE_DAY"`
	InternalAPIKey   string        `mapstructure:"INTERNAL_API_KEY"`
	RabbitMQURL      string        `mapstructure:"RABBITMQ_URL"`
	RedisURL         string        `mapstructure:"REDIS_URL"`
	RefreshGateTTL   time.Duration `mapstructure:"REFRESH_GATE_TTL"`
	RunMigrations    bool          `mapstructure:"RUN_MIGRATIONS"`
}

// SchedulerConfig holds configuration for the scheduler process.
type SchedulerConfig struct {
	BillingServiceURL   string `mapstructure:"BILLING_SERVICE_URL"`
	InternalAPIKey      string `mapstructure:"INTERNAL_API_KEY"`
	RefreshJobSchedule  string `mapstructure:"REFRESH_JOB_SCHEDULE"`
	GenerateJobSchedule string `mapstructure:"GENERATE_JOB_SCHEDULE"`
}

// LoadConfig reads the billing service configuration from environment variables.
func LoadConfig() (config Config, err error) {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("BUSINESS_TIMEZONE", "America/Argentina/Buenos_Aires")
	viper.SetDefault("BILLING_DUE_DAY", 10)
	viper.SetDefault("REFRESH_GATE_TTL", "30s")
	viper.SetDefault("RUN_MIGRATIONS", true)
	viper.AutomaticEnv()

	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("BUSINESS_TIMEZONE")
	_ = viper.BindEnv("BILLING_DUE_DAY")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REFRESH_GATE_TTL")
	_ = viper.BindEnv("RUN_MIGRATIONS")

	if err = viper.Unmarshal(&config); err != nil {
		return config, err
	}
	if port := os.Getenv("PORT"); port != "" {
		config.ServerPort = port
	}

	if strings.TrimSpace(config.DatabaseURL) == "" {
		return config, fmt.Errorf("DATABASE_URL is required")
	}
	if config.BillingDueDay < 1 || config.BillingDueDay > 31 {
		return config, fmt.Errorf("BILLING_DUE_DAY must be between 1 and 31, got %d", config.BillingDueDay)
	}
	if config.RefreshGateTTL <= 0 {
		return config, fmt.Errorf("REFRESH_GATE_TTL must be positive, got %s", config.RefreshGateTTL)
	}
	if _, err = time.LoadLocation(config.BusinessTimezone); err != nil {
		return config, fmt.Errorf("BUSINESS_TIMEZONE %q is not a valid time zone: %w", config.BusinessTimezone, err)
	}
	return config, nil
}

// LoadSchedulerConfig reads the scheduler configuration from environment variables.
func LoadSchedulerConfig() (*SchedulerConfig, error) {
	viper.SetDefault("BILLING_SERVICE_URL", "http://localhost:8080")
	viper.SetDefault("REFRESH_JOB_SCHEDULE", "5 0 * * *")  // At 00:05 every day.
	viper.SetDefault("GENERATE_JOB_SCHEDULE", "0 1 1 * *") // At 01:00 on day-of-month 1.
	viper.AutomaticEnv()

	_ = viper.BindEnv("BILLING_SERVICE_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("REFRESH_JOB_SCHEDULE")
	_ = viper.BindEnv("GENERATE_JOB_SCHEDULE")

	var config SchedulerConfig
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if strings.TrimSpace(config.InternalAPIKey) == "" {
		return nil, fmt.Errorf("INTERNAL_API_KEY is required for the scheduler")
	}
	config.BillingServiceURL = strings.TrimRight(config.BillingServiceURL, "/")
	return &config, nil
}
