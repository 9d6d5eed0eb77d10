package app

import (
	"strings"

	"github.com/charlesng35/solite/internal/auth"
	"github.com/charlesng35/solite/internal/database"
	"github.com/charlesng35/solite/internal/objectstore"
	"github.com/charlesng35/solite/internal/store"
	"github.com/charlesng35/solite/internal/tracing"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// ConnectionConfig converts DatabaseConfig into database.Open parameters.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	cfg := database.Config{
		Driver:          driver,
		Path:            c.Path,
		DSN:             c.DSN,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}

	var hosted DBAuthConfig
	switch driver {
	case "postgres", "postgresql":
		hosted = c.Postgres
	case "mysql", "mariadb":
		hosted = c.MySQL
	default:
		return cfg
	}
	cfg.Host = hosted.Host
	cfg.Port = hosted.Port
	cfg.Name = hosted.Database
	cfg.User = hosted.Username
	cfg.Password = hosted.Password
	return cfg
}

// StoreConfig converts MongoConfig into the notification store parameters.
func (c MongoConfig) StoreConfig() store.MongoConfig {
	return store.MongoConfig{
		URI:        c.URI,
		Database:   c.Database,
		Collection: c.Collection,
		Timeout:    c.Timeout,
	}
}

// ObjectStoreConfig converts MinioConfig into objectstore parameters.
func (c MinioConfig) ObjectStoreConfig() objectstore.Config {
	return objectstore.Config{
		Endpoint:  c.Endpoint,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Bucket:    c.Bucket,
		UseSSL:    c.UseSSL,
		PublicURL: c.PublicURL,
	}
}

// TracingSetupConfig converts TracingConfig into tracer provider parameters.
func (c TracingConfig) TracingSetupConfig(service string) tracing.Config {
	return tracing.Config{
		Enabled:        c.Enabled,
		JaegerEndpoint: c.JaegerEndpoint,
		ServiceName:    "solite-" + strings.ToLower(strings.TrimSpace(service)),
	}
}
