// Package validation validates configuration values.
//
// It supports struct tag validation (go-playground/validator) and
// programmatic validation with error collection. Both return an
// INVALID_INPUT AppError listing every offending field.
//
// # Struct Tag Validation
//
//	type ManagementConfig struct {
//	    Address string `mapstructure:"address" validate:"required,hostname_port"`
//	}
//	err := validation.Validate(cfg)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.AbsPath("server.home_dir", dir)
//	err := v.Err()
package validation
