// Package config loads server configuration.
//
// Values come from a YAML file, optionally supplemented by a .env file, and
// are overridden by SERVERKIT_ prefixed environment variables whose
// underscore-separated names map to nested keys (SERVERKIT_LOGGING_LEVEL
// sets logging.level). Files are read through afero so tests can load from
// memory.
//
//	cfg, err := config.Load("serverkit", config.WithConfigFile("serverkit.yml"))
package config
