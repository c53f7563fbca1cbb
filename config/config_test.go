package config

import (
	stderrors "errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nczempin/httpd-go/errors"
)

func setEnv(t *testing.T, values map[string]string) {
	t.Helper()
	for name, value := range values {
		t.Setenv(name, value)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_EnvThenFlags(t *testing.T) {
	root := t.TempDir()
	setEnv(t, map[string]string{
		"HTTPD_ROOT":              root,
		"HTTPD_ADDR":              "0.0.0.0:9000",
		"HTTPD_MAX_CONNECTIONS":   "8",
		"HTTPD_READ_TIMEOUT":      "3s",
		"HTTPD_CHUNK_SIZE":        "4096",
		"HTTPD_LOG_LEVEL":         "debug",
		"HTTPD_MAX_REQUEST_BYTES": "1024",
	})

	cfg, err := Load([]string{"-addr", "127.0.0.1:9001", "-log-format", "json", "-write-timeout", "5s"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := Default()
	want.Root = root
	want.Address = "127.0.0.1:9001"
	want.MaxConnections = 8
	want.MaxRequestBytes = 1024
	want.ReadTimeout = 3 * time.Second
	want.WriteTimeout = 5 * time.Second
	want.ChunkSize = 4096
	want.LogLevel = "debug"
	want.LogFormat = "json"

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_EmptyEnvKeepsDefault(t *testing.T) {
	setEnv(t, map[string]string{
		"HTTPD_ADDR":         "",
		"HTTPD_READ_TIMEOUT": "",
	})

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Address != Default().Address || cfg.ReadTimeout != Default().ReadTimeout {
		t.Errorf("Empty variables should keep the defaults, got %+v", cfg)
	}
}

func TestLoad_UnixNetwork(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "httpd.sock")
	cfg, err := Load([]string{"-network", "unix", "-addr", socketPath})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Network != "unix" || cfg.Address != socketPath {
		t.Errorf("Unexpected config %+v", cfg)
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	for name, value := range map[string]string{
		"HTTPD_MAX_REQUEST_BYTES": "lots",
		"HTTPD_MAX_CONNECTIONS":   "-",
		"HTTPD_READ_TIMEOUT":      "10",
		"HTTPD_WRITE_TIMEOUT":     "soon",
		"HTTPD_CHUNK_SIZE":        "1k",
		"HTTPD_IO_URING":          "maybe",
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, value)

			_, err := Load(nil)
			httpErr, ok := errors.As(err)
			if !ok || httpErr.Type != errors.ErrorInvalidArgument {
				t.Fatalf("%s=%s: expected invalid argument, got %v", name, value, err)
			}
			if !strings.Contains(err.Error(), name) {
				t.Errorf("%s=%s: error should name the variable, got %v", name, value, err)
			}
		})
	}
}

func TestLoad_FlagErrors(t *testing.T) {
	if _, err := Load([]string{"-no-such-flag"}); err == nil {
		t.Error("Expected error for unknown flag")
	}
	if _, err := Load([]string{"extra"}); err == nil {
		t.Error("Expected error for positional arguments")
	}
	_, err := Load([]string{"-h"})
	if !stderrors.Is(err, flag.ErrHelp) {
		t.Errorf("Expected flag.ErrHelp, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty root", func(c *Config) { c.Root = "" }},
		{"missing root", func(c *Config) { c.Root = filepath.Join(t.TempDir(), "missing") }},
		{"root is a file", func(c *Config) { c.Root = file }},
		{"bad network", func(c *Config) { c.Network = "udp" }},
		{"empty address", func(c *Config) { c.Address = "" }},
		{"tiny request limit", func(c *Config) { c.MaxRequestBytes = 10 }},
		{"no connections", func(c *Config) { c.MaxConnections = 0 }},
		{"negative timeout", func(c *Config) { c.ReadTimeout = -time.Second }},
		{"zero chunk", func(c *Config) { c.ChunkSize = 0 }},
		{"io_uring over unix", func(c *Config) { c.Network = "unix"; c.IoUring = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)

			err := cfg.Validate()
			httpErr, ok := errors.As(err)
			if !ok || httpErr.Type != errors.ErrorInvalidArgument {
				t.Errorf("Expected invalid argument, got %v", err)
			}
		})
	}

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}
