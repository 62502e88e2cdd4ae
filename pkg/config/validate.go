// Package config loads and validates flow configuration.
package config

import (
	"fmt"
	"strings"
)

// ValidateCore ensures critical client configuration is present.
func (c *Config) ValidateCore() error {
	var missing []string

	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		missing = append(missing, "KYC_BACKEND_URL")
	}
	if c.Flow.PollInterval <= 0 {
		missing = append(missing, "KYC_POLL_INTERVAL")
	}
	if c.Resume.Enabled && strings.TrimSpace(c.Resume.RedisURL) == "" {
		missing = append(missing, "REDIS_URL")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return nil
}

// ValidateSim ensures the backend simulator configuration is usable.
func (c *Config) ValidateSim() error {
	if strings.TrimSpace(c.Sim.Port) == "" {
		return fmt.Errorf("missing required configuration: SIM_PORT")
	}
	return nil
}
