// Package environment describes the deployment context a server runs in:
// its directories, configuration file and launch type.
package environment

import (
	"os"
	"path/filepath"

	"github.com/kbukum/serverkit/validation"
)

// LaunchType describes how the server process was started.
type LaunchType string

const (
	LaunchStandalone LaunchType = "standalone"
	LaunchEmbedded   LaunchType = "embedded"
)

const defaultConfigFile = "standalone.xml"

// Config holds the raw environment settings as loaded from configuration.
type Config struct {
	Name       string            `yaml:"name" mapstructure:"name"`
	HomeDir    string            `yaml:"home_dir" mapstructure:"home_dir"`
	BaseDir    string            `yaml:"base_dir" mapstructure:"base_dir"`
	ConfigDir  string            `yaml:"config_dir" mapstructure:"config_dir"`
	DataDir    string            `yaml:"data_dir" mapstructure:"data_dir"`
	ConfigFile string            `yaml:"config_file" mapstructure:"config_file"`
	LaunchType string            `yaml:"launch_type" mapstructure:"launch_type"`
	Properties map[string]string `yaml:"properties" mapstructure:"properties"`
}

// ApplyDefaults derives unset directories from the home directory.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		if host, err := os.Hostname(); err == nil {
			c.Name = host
		}
	}
	if c.LaunchType == "" {
		c.LaunchType = string(LaunchStandalone)
	}
	if c.BaseDir == "" && c.HomeDir != "" {
		c.BaseDir = filepath.Join(c.HomeDir, "standalone")
	}
	if c.ConfigDir == "" && c.BaseDir != "" {
		c.ConfigDir = filepath.Join(c.BaseDir, "configuration")
	}
	if c.DataDir == "" && c.BaseDir != "" {
		c.DataDir = filepath.Join(c.BaseDir, "data")
	}
	if c.ConfigFile == "" {
		c.ConfigFile = defaultConfigFile
	}
}

// Validate checks the settings needed to locate the configuration file.
func (c *Config) Validate() error {
	v := validation.New()
	v.Required("server.home_dir", c.HomeDir).
		AbsPath("server.home_dir", c.HomeDir).
		AbsPath("server.base_dir", c.BaseDir).
		AbsPath("server.config_dir", c.ConfigDir).
		AbsPath("server.data_dir", c.DataDir).
		Required("server.config_file", c.ConfigFile).
		OneOf("server.launch_type", c.LaunchType, []string{string(LaunchStandalone), string(LaunchEmbedded)})
	return v.Err()
}

// ServerEnvironment is the resolved, read-only deployment descriptor.
type ServerEnvironment struct {
	name       string
	homeDir    string
	baseDir    string
	configDir  string
	dataDir    string
	configFile string
	launchType LaunchType
	properties map[string]string
}

// New applies defaults to cfg, validates it and resolves the environment.
func New(cfg Config) (*ServerEnvironment, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configFile := cfg.ConfigFile
	if !filepath.IsAbs(configFile) {
		configFile = filepath.Join(cfg.ConfigDir, configFile)
	}

	props := make(map[string]string, len(cfg.Properties))
	for k, v := range cfg.Properties {
		props[k] = v
	}

	return &ServerEnvironment{
		name:       cfg.Name,
		homeDir:    filepath.Clean(cfg.HomeDir),
		baseDir:    filepath.Clean(cfg.BaseDir),
		configDir:  filepath.Clean(cfg.ConfigDir),
		dataDir:    filepath.Clean(cfg.DataDir),
		configFile: filepath.Clean(configFile),
		launchType: LaunchType(cfg.LaunchType),
		properties: props,
	}, nil
}

func (e *ServerEnvironment) Name() string           { return e.name }
func (e *ServerEnvironment) HomeDir() string        { return e.homeDir }
func (e *ServerEnvironment) BaseDir() string        { return e.baseDir }
func (e *ServerEnvironment) ConfigDir() string      { return e.configDir }
func (e *ServerEnvironment) DataDir() string        { return e.dataDir }
func (e *ServerEnvironment) LaunchType() LaunchType { return e.launchType }

// ConfigurationFile returns the absolute path of the server configuration file.
func (e *ServerEnvironment) ConfigurationFile() string {
	return e.configFile
}

// Property returns a deployment property.
func (e *ServerEnvironment) Property(key string) (string, bool) {
	v, ok := e.properties[key]
	return v, ok
}
