package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gookit/validate"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/JaggerBean/FitCollector/internal/model"
)

type Config struct {
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string `validate:"in:disable,allow,prefer,require,verify-ca,verify-full"`
	AutoMigrate bool

	ServerPort string `validate:"required|numeric"`

	LogLevel  string `validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	LogPretty bool

	BusinessTimezone       string `validate:"required"`
	ClaimVerifyEligibility bool
	DeviceBindingScope     string `validate:"required|in:per_server,global"`

	EnablePushScheduler   bool
	PushSchedulerInterval time.Duration
	PushSchedulerBatch    int `validate:"min:1"`
	PushDefaultTitle      string

	APNsKeyPath    string
	APNsKeyID      string
	APNsTeamID     string
	APNsTopic      string
	APNsUseSandbox bool

	FCMServiceAccountPath string
	AndroidChannelID      string

	CredentialsBucket string
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string

	RedisURL         string
	CatalogCacheTTL  time.Duration
	SettingsCacheMB  int `validate:"min:0"`
	SettingsCacheTTL time.Duration
	MetricsEnabled   bool
	JWTSecret        string
	MasterAdminKey   string
	ShutdownTimeout  time.Duration
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Str("component", "config").Msg("no .env file found, relying on environment variables")
	}

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBHost:      os.Getenv("DB_HOST"),
		DBPort:      envString("DB_PORT", "5432"),
		DBUser:      os.Getenv("DB_USER"),
		DBPassword:  os.Getenv("DB_PASSWORD"),
		DBName:      os.Getenv("DB_NAME"),
		DBSSLMode:   envString("DB_SSLMODE", "require"),
		AutoMigrate: envBool("AUTO_MIGRATE", true),

		ServerPort: envString("SERVER_PORT", "8080"),

		LogLevel:  strings.ToLower(envString("LOG_LEVEL", "info")),
		LogPretty: envBool("LOG_PRETTY", false),

		BusinessTimezone:       envString("BUSINESS_TIMEZONE", "America/Chicago"),
		ClaimVerifyEligibility: envBool("CLAIM_VERIFY_ELIGIBILITY", true),
		DeviceBindingScope:     strings.ToLower(envString("DEVICE_BINDING_SCOPE", model.BindingScopePerServer)),

		EnablePushScheduler:   envBool("ENABLE_PUSH_SCHEDULER", true),
		PushSchedulerInterval: envSeconds("PUSH_SCHEDULER_INTERVAL", 30*time.Second),
		PushSchedulerBatch:    envInt("PUSH_SCHEDULER_BATCH", 200),
		PushDefaultTitle:      envString("PUSH_DEFAULT_TITLE", "StepCraft"),

		APNsKeyPath:    os.Getenv("APNS_KEY_PATH"),
		APNsKeyID:      os.Getenv("APNS_KEY_ID"),
		APNsTeamID:     os.Getenv("APNS_TEAM_ID"),
		APNsTopic:      os.Getenv("APNS_TOPIC"),
		APNsUseSandbox: envBool("APNS_USE_SANDBOX", true),

		FCMServiceAccountPath: os.Getenv("FCM_SERVICE_ACCOUNT_PATH"),
		AndroidChannelID:      envString("ANDROID_PUSH_CHANNEL_ID", "stepcraft_push"),

		CredentialsBucket: os.Getenv("CREDENTIALS_BUCKET"),
		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),

		RedisURL:         os.Getenv("REDIS_URL"),
		CatalogCacheTTL:  envSeconds("CATALOG_CACHE_TTL", 5*time.Minute),
		SettingsCacheMB:  envInt("SETTINGS_CACHE_MB", 8),
		SettingsCacheTTL: envSeconds("SETTINGS_CACHE_TTL", 60*time.Second),
		MetricsEnabled:   envBool("METRICS_ENABLED", true),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		MasterAdminKey:   os.Getenv("MASTER_ADMIN_KEY"),
		ShutdownTimeout:  envSeconds("SHUTDOWN_TIMEOUT", 15*time.Second),
		HTTPReadTimeout:  envSeconds("HTTP_READ_TIMEOUT", 15*time.Second),
		HTTPWriteTimeout: envSeconds("HTTP_WRITE_TIMEOUT", 30*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field rules and the cross-field requirements of the push providers.
func (c *Config) Validate() error {
	v := validate.Struct(c)
	if !v.Validate() {
		return fmt.Errorf("invalid config: %w", v.Errors)
	}
	if c.DatabaseURL == "" && c.DBHost == "" {
		return fmt.Errorf("invalid config: DATABASE_URL or DB_HOST is required")
	}
	if c.PushSchedulerInterval <= 0 {
		return fmt.Errorf("invalid config: PUSH_SCHEDULER_INTERVAL must be positive")
	}
	if c.APNsKeyPath != "" && (c.APNsKeyID == "" || c.APNsTeamID == "" || c.APNsTopic == "") {
		return fmt.Errorf("invalid config: APNS_KEY_ID, APNS_TEAM_ID and APNS_TOPIC are required with APNS_KEY_PATH")
	}
	if c.CredentialsBucket != "" && c.R2AccountID == "" {
		return fmt.Errorf("invalid config: R2_ACCOUNT_ID is required with CREDENTIALS_BUCKET")
	}
	return nil
}

// DSN builds the lib/pq connection string.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return n
}

// envSeconds accepts a Go duration ("45s") or a bare number of seconds.
func envSeconds(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
