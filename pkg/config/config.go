package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Upload drivers.
const (
	UploadDriverLocal = "local"
	UploadDriverS3    = "s3"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Uploads     UploadsConfig
	S3          S3Config
	Analytics   AnalyticsConfig
	Reports     ReportsConfig
	Maintenance MaintenanceConfig
}

type DatabaseConfig struct {
	// URL, when set, takes precedence over the discrete connection fields.
	URL            string
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxOpenConns   int
	MaxIdleConns   int
	ConnectRetries int
	MigrateOnStart bool
}

type RedisConfig struct {
	Enabled  bool
	URL      string
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string

	// EmployeeSignup lets the public register endpoint create employee accounts.
	EmployeeSignup bool
}

type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// UploadsConfig controls proof attachment storage and validation.
type UploadsConfig struct {
	Driver          string
	StorageDir      string
	MaxFileBytes    int64
	AllowedExts     []string
	AllowedMIMEs    []string
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

// S3Config points the proof store at an S3 compatible bucket.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// AnalyticsConfig governs cache behaviour and the month window for analytics.
type AnalyticsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
	MonthWindow  int
}

// ReportsConfig tunes rendered report documents.
type ReportsConfig struct {
	Title    string
	Timezone string
}

// MaintenanceConfig schedules background housekeeping.
type MaintenanceConfig struct {
	SweepSchedule string
	SweepGrace    time.Duration
	QueueWorkers  int
	QueueRetries  int
	RetryDelay    time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		URL:            v.GetString("DATABASE_URL"),
		Host:           v.GetString("DB_HOST"),
		Port:           v.GetInt("DB_PORT"),
		User:           v.GetString("DB_USER"),
		Password:       v.GetString("DB_PASSWORD"),
		Name:           v.GetString("DB_NAME"),
		SSLMode:        v.GetString("DB_SSL_MODE"),
		MaxOpenConns:   v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:   v.GetInt("DB_MAX_IDLE_CONNS"),
		ConnectRetries: v.GetInt("DB_CONNECT_RETRIES"),
		MigrateOnStart: v.GetBool("DB_MIGRATE_ON_START"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		URL:      v.GetString("REDIS_URL"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:         v.GetString("JWT_SECRET"),
		Expiration:     parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:         v.GetString("JWT_ISSUER"),
		EmployeeSignup: v.GetBool("AUTH_EMPLOYEE_SIGNUP"),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins:   splitAndTrim(v.GetString("ALLOWED_ORIGINS")),
		AllowCredentials: v.GetBool("CORS_ALLOW_CREDENTIALS"),
		MaxAge:           parseDuration(v.GetString("CORS_MAX_AGE"), 10*time.Minute),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxUpload := v.GetInt64("UPLOADS_MAX_FILE_SIZE")
	if maxUpload <= 0 {
		maxUpload = 5 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		Driver:          strings.ToLower(v.GetString("UPLOADS_DRIVER")),
		StorageDir:      v.GetString("UPLOADS_STORAGE_DIR"),
		MaxFileBytes:    maxUpload,
		AllowedExts:     splitAndTrim(v.GetString("UPLOADS_ALLOWED_EXTENSIONS")),
		AllowedMIMEs:    splitAndTrim(v.GetString("UPLOADS_ALLOWED_MIME_TYPES")),
		SignedURLSecret: v.GetString("UPLOADS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("UPLOADS_SIGNED_URL_TTL"), 15*time.Minute),
	}

	cfg.S3 = S3Config{
		Endpoint:  v.GetString("S3_ENDPOINT"),
		AccessKey: v.GetString("S3_ACCESS_KEY"),
		SecretKey: v.GetString("S3_SECRET_KEY"),
		Bucket:    v.GetString("S3_BUCKET"),
		Region:    v.GetString("S3_REGION"),
		UseSSL:    v.GetBool("S3_USE_SSL"),
	}

	cfg.Analytics = AnalyticsConfig{
		CacheEnabled: v.GetBool("ANALYTICS_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("ANALYTICS_CACHE_TTL"), 5*time.Minute),
		MonthWindow:  v.GetInt("ANALYTICS_MONTH_WINDOW"),
	}

	cfg.Reports = ReportsConfig{
		Title:    v.GetString("REPORTS_TITLE"),
		Timezone: v.GetString("REPORTS_TIMEZONE"),
	}

	cfg.Maintenance = MaintenanceConfig{
		SweepSchedule: v.GetString("ORPHAN_SWEEP_SCHEDULE"),
		SweepGrace:    parseDuration(v.GetString("ORPHAN_SWEEP_GRACE"), time.Hour),
		QueueWorkers:  v.GetInt("CLEANUP_QUEUE_WORKERS"),
		QueueRetries:  v.GetInt("CLEANUP_QUEUE_RETRIES"),
		RetryDelay:    parseDuration(v.GetString("CLEANUP_QUEUE_RETRY_DELAY"), 5*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "maintenance_portal")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONNECT_RETRIES", 5)
	v.SetDefault("DB_MIGRATE_ON_START", false)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "maintenance-portal")
	v.SetDefault("AUTH_EMPLOYEE_SIGNUP", true)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("CORS_ALLOW_CREDENTIALS", true)
	v.SetDefault("CORS_MAX_AGE", "10m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("UPLOADS_DRIVER", UploadDriverLocal)
	v.SetDefault("UPLOADS_STORAGE_DIR", "./uploads")
	v.SetDefault("UPLOADS_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("UPLOADS_ALLOWED_EXTENSIONS", ".pdf,.doc,.docx,.jpg,.jpeg,.png")
	v.SetDefault("UPLOADS_ALLOWED_MIME_TYPES", "")
	v.SetDefault("UPLOADS_SIGNED_URL_SECRET", "dev_uploads_secret")
	v.SetDefault("UPLOADS_SIGNED_URL_TTL", "15m")

	v.SetDefault("S3_ENDPOINT", "localhost:9000")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("S3_BUCKET", "proof-uploads")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_USE_SSL", false)

	v.SetDefault("ANALYTICS_CACHE_ENABLED", true)
	v.SetDefault("ANALYTICS_CACHE_TTL", "5m")
	v.SetDefault("ANALYTICS_MONTH_WINDOW", 6)

	v.SetDefault("REPORTS_TITLE", "Maintenance Requests Report")
	v.SetDefault("REPORTS_TIMEZONE", "UTC")

	v.SetDefault("ORPHAN_SWEEP_SCHEDULE", "@every 6h")
	v.SetDefault("ORPHAN_SWEEP_GRACE", "1h")
	v.SetDefault("CLEANUP_QUEUE_WORKERS", 1)
	v.SetDefault("CLEANUP_QUEUE_RETRIES", 5)
	v.SetDefault("CLEANUP_QUEUE_RETRY_DELAY", "5s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
