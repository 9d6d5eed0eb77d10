package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charlesng35/solite/pkg/crypto"
)

const jwtSecretBytes = 48

// GeneratedDefaults reports which secrets ApplyRuntimeDefaults had to invent.
type GeneratedDefaults struct {
	JWTSecret bool
	// UnsharedJWTSecret is set when a single-service process generated its own
	// secret. Tokens it issues will not verify in sibling processes.
	UnsharedJWTSecret bool
}

// ApplyRuntimeDefaults fills secrets that have no safe static default.
func ApplyRuntimeDefaults(cfg *Config) (GeneratedDefaults, error) {
	var out GeneratedDefaults
	if cfg == nil {
		return out, errors.New("config is nil")
	}
	if strings.TrimSpace(cfg.Auth.JWT.Secret) != "" {
		return out, nil
	}

	secret, err := crypto.GenerateToken(jwtSecretBytes)
	if err != nil {
		return out, fmt.Errorf("generate jwt secret: %w", err)
	}
	cfg.Auth.JWT.Secret = secret
	out.JWTSecret = true

	service := strings.TrimSpace(cfg.Server.Service)
	out.UnsharedJWTSecret = service != "" && !strings.EqualFold(service, ServiceAll)
	return out, nil
}
