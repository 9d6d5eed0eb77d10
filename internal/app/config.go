package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Service names accepted by server.service.
const (
	ServiceAll          = "all"
	ServiceUser         = "user"
	ServicePost         = "post"
	ServiceNotification = "notification"
)

// Notification storage backends accepted by notifications.store.
const (
	NotificationStoreGorm  = "gorm"
	NotificationStoreMongo = "mongo"
)

// Config represents the runtime configuration for the Stack Overflow Lite backend.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Services      ServicesConfig      `mapstructure:"services"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Monitoring    MonitoringConfig    `mapstructure:"monitoring"`
	CORS          CORSConfig          `mapstructure:"cors"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	Service   string `mapstructure:"service"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// NotificationsConfig controls notification storage and retention.
type NotificationsConfig struct {
	Store           string        `mapstructure:"store"`
	Retention       time.Duration `mapstructure:"retention"`
	CleanupSchedule string        `mapstructure:"cleanup_schedule"`
	Mongo           MongoConfig   `mapstructure:"mongo"`
}

// MongoConfig holds the document store connection used by the mongo backend.
type MongoConfig struct {
	URI        string        `mapstructure:"uri"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// ServicesConfig locates peer services reached over HTTP.
type ServicesConfig struct {
	NotificationURL string        `mapstructure:"notification_url"`
	FanoutTimeout   time.Duration `mapstructure:"fanout_timeout"`
}

// AuthConfig captures authentication settings.
type AuthConfig struct {
	JWT          JWTSettings `mapstructure:"jwt"`
	PasswordCost int         `mapstructure:"password_cost"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// StorageConfig configures attachment storage for posts.
type StorageConfig struct {
	MaxUploadBytes int64       `mapstructure:"max_upload_bytes"`
	Minio          MinioConfig `mapstructure:"minio"`
}

// MinioConfig holds S3-compatible object store settings.
type MinioConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	PublicURL string `mapstructure:"public_url"`
}

// MonitoringConfig enables metrics and tracing.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// TracingConfig toggles span export to Jaeger.
type TracingConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// CORSConfig lists browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("SOLITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v)

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Server.Service)) {
	case ServiceAll, ServiceUser, ServicePost, ServiceNotification:
	default:
		return fmt.Errorf("config: unknown server.service %q", c.Server.Service)
	}

	switch strings.ToLower(strings.TrimSpace(c.Notifications.Store)) {
	case NotificationStoreGorm, NotificationStoreMongo:
	default:
		return fmt.Errorf("config: unknown notifications.store %q", c.Notifications.Store)
	}

	if c.Notifications.Retention <= 0 {
		return errors.New("config: notifications.retention must be positive")
	}
	return nil
}

// Runs reports whether the given service should be mounted by this process.
func (c ServerConfig) Runs(service string) bool {
	selected := strings.ToLower(strings.TrimSpace(c.Service))
	return selected == "" || selected == ServiceAll || selected == service
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.service", ServiceAll)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/solite.sqlite")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("notifications.store", NotificationStoreGorm)
	v.SetDefault("notifications.retention", "24h")
	v.SetDefault("notifications.cleanup_schedule", "@every 1m")
	v.SetDefault("notifications.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("notifications.mongo.database", "solite")
	v.SetDefault("notifications.mongo.collection", "notifications")
	v.SetDefault("notifications.mongo.timeout", "10s")

	v.SetDefault("services.notification_url", "http://localhost:8000")
	v.SetDefault("services.fanout_timeout", "5s")

	v.SetDefault("auth.jwt.issuer", "solite")
	v.SetDefault("auth.jwt.access_token_ttl", "168h")
	v.SetDefault("auth.password_cost", 10)

	v.SetDefault("storage.max_upload_bytes", 100<<20)
	v.SetDefault("storage.minio.enabled", false)
	v.SetDefault("storage.minio.endpoint", "localhost:9000")
	v.SetDefault("storage.minio.bucket", "solite")
	v.SetDefault("storage.minio.use_ssl", false)

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.tracing.enabled", false)
	v.SetDefault("monitoring.tracing.jaeger_endpoint", "http://localhost:14268/api/traces")

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
}

// bindEnvs registers keys without defaults so Unmarshal sees their env overrides.
func bindEnvs(v *viper.Viper) {
	for _, key := range []string{
		"database.dsn",
		"database.postgres.host", "database.postgres.port", "database.postgres.database",
		"database.postgres.username", "database.postgres.password",
		"database.mysql.host", "database.mysql.port", "database.mysql.database",
		"database.mysql.username", "database.mysql.password",
		"auth.jwt.secret",
		"storage.minio.access_key", "storage.minio.secret_key", "storage.minio.public_url",
	} {
		_ = v.BindEnv(key)
	}
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
