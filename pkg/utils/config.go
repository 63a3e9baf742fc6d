package utils

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Payment   PaymentConfig
	Meeting   MeetingConfig
	Cron      CronConfig
	Scheduler SchedulerConfig
}

type AppConfig struct {
	Name    string
	Port    string
	Debug   bool
	LogPath string
}

type DatabaseConfig struct {
	Host           string
	Port           string
	Name           string
	User           string
	Password       string
	MaxConns       int32
	MigrationsPath string
}

type AuthConfig struct {
	SessionExpiryHours int
}

type PaymentConfig struct {
	BaseURL        string
	APIKey         string
	Currency       string
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBase      time.Duration // doubled per failed attempt between runs
}

type MeetingConfig struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
}

type CronConfig struct {
	Secret string
}

type SchedulerConfig struct {
	Enabled         bool
	CaptureInterval time.Duration
	RetryInterval   time.Duration
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("DB_MIGRATIONS_PATH", "migrations")
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("SESSION_EXPIRY_HOURS", 24)
	viper.SetDefault("PAYMENT_CURRENCY", "usd")
	viper.SetDefault("PAYMENT_TIMEOUT_SECONDS", 10)
	viper.SetDefault("PAYMENT_MAX_RETRIES", 5)
	viper.SetDefault("PAYMENT_RETRY_BASE_MINUTES", 30)
	viper.SetDefault("MEETING_TIMEOUT_SECONDS", 10)
	viper.SetDefault("SCHEDULER_ENABLED", true)
	viper.SetDefault("SCHEDULER_CAPTURE_MINUTES", 15)
	viper.SetDefault("SCHEDULER_RETRY_MINUTES", 60)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:    viper.GetString("APP_NAME"),
			Port:    viper.GetString("PORT"),
			Debug:   viper.GetBool("DEBUG"),
			LogPath: viper.GetString("LOG_PATH"),
		},
		Database: DatabaseConfig{
			Host:           viper.GetString("DB_HOST"),
			Port:           viper.GetString("DB_PORT"),
			Name:           viper.GetString("DB_NAME"),
			User:           viper.GetString("DB_USER"),
			Password:       viper.GetString("DB_PASS"),
			MaxConns:       viper.GetInt32("DB_MAX_CONNS"),
			MigrationsPath: viper.GetString("DB_MIGRATIONS_PATH"),
		},
		Auth: AuthConfig{
			SessionExpiryHours: viper.GetInt("SESSION_EXPIRY_HOURS"),
		},
		Payment: PaymentConfig{
			BaseURL:        viper.GetString("PAYMENT_BASE_URL"),
			APIKey:         viper.GetString("PAYMENT_API_KEY"),
			Currency:       viper.GetString("PAYMENT_CURRENCY"),
			RequestTimeout: time.Duration(viper.GetInt("PAYMENT_TIMEOUT_SECONDS")) * time.Second,
			MaxRetries:     viper.GetInt("PAYMENT_MAX_RETRIES"),
			RetryBase:      time.Duration(viper.GetInt("PAYMENT_RETRY_BASE_MINUTES")) * time.Minute,
		},
		Meeting: MeetingConfig{
			BaseURL:        viper.GetString("MEETING_BASE_URL"),
			APIKey:         viper.GetString("MEETING_API_KEY"),
			RequestTimeout: time.Duration(viper.GetInt("MEETING_TIMEOUT_SECONDS")) * time.Second,
		},
		Cron: CronConfig{
			Secret: viper.GetString("CRON_SECRET"),
		},
		Scheduler: SchedulerConfig{
			Enabled:         viper.GetBool("SCHEDULER_ENABLED"),
			CaptureInterval: time.Duration(viper.GetInt("SCHEDULER_CAPTURE_MINUTES")) * time.Minute,
			RetryInterval:   time.Duration(viper.GetInt("SCHEDULER_RETRY_MINUTES")) * time.Minute,
		},
	}

	return config, nil
}
