package validation

import (
	"strings"
	"testing"

	"github.com/kbukum/serverkit/errors"
)

func TestValidatorCollects(t *testing.T) {
	v := New()
	v.Required("server.home_dir", "").
		AbsPath("server.base_dir", "relative/dir").
		Min("server.port_offset", -1, 0).
		OneOf("server.launch_type", "cloud", []string{"standalone", "embedded"}).
		Custom(false, "server.config_file", "must end in .xml")

	if len(v.Errors()) != 5 {
		t.Fatalf("expected 5 errors, got %d: %v", len(v.Errors()), v.Errors())
	}
	err := v.Err()
	if !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
	if !strings.Contains(err.Error(), "server.base_dir: must be an absolute path") {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestValidatorClean(t *testing.T) {
	v := New()
	v.Required("name", "srv").AbsPath("dir", "/opt/srv").AbsPath("empty", "").Min("n", 0, 0)
	if err := v.Err(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

type managementConfig struct {
	Address string `mapstructure:"address" validate:"required,hostname_port"`
	Mode    string `mapstructure:"mode" validate:"oneof=on off"`
	Workers int    `mapstructure:"workers" validate:"gte=1"`
}

type rootConfig struct {
	Management managementConfig `mapstructure:"management"`
}

func TestValidateStruct(t *testing.T) {
	ok := rootConfig{Management: managementConfig{Address: "127.0.0.1:9990", Mode: "on", Workers: 2}}
	if err := Validate(ok); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	bad := rootConfig{Management: managementConfig{Address: "nope", Mode: "maybe", Workers: 0}}
	err := Validate(bad)
	if !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
	msg := err.Error()
	for _, want := range []string{
		"management.address: must be a host:port address",
		"management.mode: must be one of: on off",
		"management.workers: must be at least 1",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
}

func TestToSnakeCase(t *testing.T) {
	if got := toSnakeCase("PortOffset"); got != "port_offset" {
		t.Errorf("expected port_offset, got %q", got)
	}
}
