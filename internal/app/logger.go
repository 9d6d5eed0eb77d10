package app

import (
	"github.com/charlesng35/solite/pkg/logger"
)

// ConfigureLogging initialises the global logger from the server section. The
// service name is attached to every entry.
func ConfigureLogging(cfg ServerConfig) error {
	service := cfg.Service
	if service == "" {
		service = ServiceAll
	}
	return logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: service,
	})
}
