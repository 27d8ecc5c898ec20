package config

import (
	"fmt"
	"time"

	"github.com/kbukum/serverkit/environment"
	"github.com/kbukum/serverkit/logger"
	"github.com/kbukum/serverkit/observability"
	"github.com/kbukum/serverkit/validation"
)

const (
	defaultBootTimeout       = 30 * time.Second
	defaultShutdownTimeout   = 15 * time.Second
	defaultKeepBackups       = 10
	defaultManagementAddress = "127.0.0.1:9990"
)

// ServerConfig is the complete configuration of a server process.
type ServerConfig struct {
	Name        string `yaml:"name" mapstructure:"name" validate:"required"`
	Environment string `yaml:"environment" mapstructure:"environment" validate:"oneof=development staging production"`
	Version     string `yaml:"version" mapstructure:"version"`
	Debug       bool   `yaml:"debug" mapstructure:"debug"`

	Logging logger.Config      `yaml:"logging" mapstructure:"logging"`
	Server  environment.Config `yaml:"server" mapstructure:"server"`

	PortOffset      int           `yaml:"port_offset" mapstructure:"port_offset" validate:"gte=0"`
	BootTimeout     time.Duration `yaml:"boot_timeout" mapstructure:"boot_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"gte=0"`

	Persistence   PersistenceConfig    `yaml:"persistence" mapstructure:"persistence"`
	Management    ManagementConfig     `yaml:"management" mapstructure:"management"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// PersistenceConfig tunes the file-backed configuration persister.
type PersistenceConfig struct {
	KeepBackups int `yaml:"keep_backups" mapstructure:"keep_backups" validate:"gte=0"`
}

// ManagementConfig configures the management HTTP endpoint.
type ManagementConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Address string `yaml:"address" mapstructure:"address" validate:"omitempty,hostname_port"`
}

// Embedded reports whether the server runs without an environment of its
// own, in which case nothing is persisted.
func (c *ServerConfig) Embedded() bool {
	return c.Server.LaunchType == string(environment.LaunchEmbedded)
}

// ApplyDefaults applies default values to every section.
func (c *ServerConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	if c.BootTimeout == 0 {
		c.BootTimeout = defaultBootTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.Persistence.KeepBackups == 0 {
		c.Persistence.KeepBackups = defaultKeepBackups
	}
	if c.Management.Enabled && c.Management.Address == "" {
		c.Management.Address = defaultManagementAddress
	}

	c.Logging.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate checks struct tags first, then each section's own rules. The
// server section is only checked for servers that own an environment.
func (c *ServerConfig) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	if !c.Embedded() {
		if err := c.Server.Validate(); err != nil {
			return err
		}
	}
	if err := c.Observability.Validate(); err != nil {
		return err
	}
	return nil
}

// Load reads a ServerConfig, applies defaults and validates it.
func Load(serviceName string, opts ...LoaderOption) (*ServerConfig, error) {
	cfg := &ServerConfig{Name: serviceName}
	if err := LoadConfig(serviceName, cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
