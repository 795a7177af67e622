package core

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	ServiceName string        `koanf:"service_name" mapstructure:"service_name"`
	PendingTTL  time.Duration `koanf:"pending_ttl" mapstructure:"pending_ttl"`
	DefaultMode string        `koanf:"default_mode" mapstructure:"default_mode"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "authflow",
		PendingTTL:  defaultPendingTTL,
		DefaultMode: string(DispatchModePopup),
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.PendingTTL < 0 {
		return fmt.Errorf("core: pending_ttl must not be negative")
	}
	switch mode := strings.TrimSpace(strings.ToLower(c.DefaultMode)); mode {
	case "", string(DispatchModePopup), string(DispatchModeRedirect):
	default:
		return fmt.Errorf("core: default_mode %q is invalid", c.DefaultMode)
	}
	return nil
}

func (c Config) pendingTTL() time.Duration {
	if c.PendingTTL <= 0 {
		return defaultPendingTTL
	}
	return c.PendingTTL
}

func (c Config) defaultMode() DispatchMode {
	if strings.EqualFold(strings.TrimSpace(c.DefaultMode), string(DispatchModeRedirect)) {
		return DispatchModeRedirect
	}
	return DispatchModePopup
}
