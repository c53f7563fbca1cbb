// Package config collects the server settings from HTTPD_* environment
// variables and command-line flags, flags taking precedence.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Motmedel/utils_go/pkg/env"

	"github.com/nczempin/httpd-go/errors"
)

const envPrefix = "HTTPD_"

// Config is the complete server configuration
type Config struct {
	Root            string
	Network         string
	Address         string
	MaxRequestBytes int
	MaxConnections  int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ChunkSize       int64
	IoUring         bool
	LogLevel        string
	LogFormat       string
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Root:            ".",
		Network:         "tcp",
		Address:         "127.0.0.1:7878",
		MaxRequestBytes: 8 << 10,
		MaxConnections:  256,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    0,
		ChunkSize:       64 << 10,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load builds the configuration: defaults, then HTTPD_* environment
// variables, then args.
func Load(args []string) (Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("httpd", flag.ContinueOnError)
	fs.StringVar(&cfg.Root, "root", cfg.Root, "directory to serve")
	fs.StringVar(&cfg.Network, "network", cfg.Network, "listener network: tcp or unix")
	fs.StringVar(&cfg.Address, "addr", cfg.Address, "listen address (host:port, or socket path for unix)")
	fs.IntVar(&cfg.MaxRequestBytes, "max-request-bytes", cfg.MaxRequestBytes, "maximum size of the request line and headers")
	fs.IntVar(&cfg.MaxConnections, "max-connections", cfg.MaxConnections, "maximum number of concurrent connections")
	fs.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "per-read timeout, 0 disables")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "per-write timeout, 0 disables")
	fs.Int64Var(&cfg.ChunkSize, "chunk-size", cfg.ChunkSize, "bytes read from disk per chunk when streaming")
	fs.BoolVar(&cfg.IoUring, "io-uring", cfg.IoUring, "use io_uring for socket and file I/O (linux)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text or json")

	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}
	if fs.NArg() > 0 {
		return Config{}, errors.NewInvalidArgumentError(
			fmt.Sprintf("unexpected arguments: %s", strings.Join(fs.Args(), " ")),
		)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	lookup := func(name, defaultValue string) string {
		return env.GetEnvWithDefault(envPrefix+name, defaultValue)
	}

	c.Root = lookup("ROOT", c.Root)
	c.Network = lookup("NETWORK", c.Network)
	c.Address = lookup("ADDR", c.Address)
	c.LogLevel = lookup("LOG_LEVEL", c.LogLevel)
	c.LogFormat = lookup("LOG_FORMAT", c.LogFormat)

	var err error
	v := lookup("MAX_REQUEST_BYTES", strconv.Itoa(c.MaxRequestBytes))
	if c.MaxRequestBytes, err = strconv.Atoi(v); err != nil {
		return envError("MAX_REQUEST_BYTES", v, err)
	}
	v = lookup("MAX_CONNECTIONS", strconv.Itoa(c.MaxConnections))
	if c.MaxConnections, err = strconv.Atoi(v); err != nil {
		return envError("MAX_CONNECTIONS", v, err)
	}
	v = lookup("READ_TIMEOUT", c.ReadTimeout.String())
	if c.ReadTimeout, err = time.ParseDuration(v); err != nil {
		return envError("READ_TIMEOUT", v, err)
	}
	v = lookup("WRITE_TIMEOUT", c.WriteTimeout.String())
	if c.WriteTimeout, err = time.ParseDuration(v); err != nil {
		return envError("WRITE_TIMEOUT", v, err)
	}
	v = lookup("CHUNK_SIZE", strconv.FormatInt(c.ChunkSize, 10))
	if c.ChunkSize, err = strconv.ParseInt(v, 10, 64); err != nil {
		return envError("CHUNK_SIZE", v, err)
	}
	v = lookup("IO_URING", strconv.FormatBool(c.IoUring))
	if c.IoUring, err = strconv.ParseBool(v); err != nil {
		return envError("IO_URING", v, err)
	}
	return nil
}

func envError(name, value string, err error) error {
	return &errors.HttpError{
		Type:          errors.ErrorInvalidArgument,
		Message:       fmt.Sprintf("%s%s=%q", envPrefix, name, value),
		UnderlyingErr: err,
	}
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	switch {
	case c.Root == "":
		return errors.NewInvalidArgumentError("root must not be empty")
	case c.Network != "tcp" && c.Network != "unix":
		return errors.NewInvalidArgumentError(fmt.Sprintf("network %q is neither tcp nor unix", c.Network))
	case c.Address == "":
		return errors.NewInvalidArgumentError("address must not be empty")
	case c.MaxRequestBytes < 64:
		return errors.NewInvalidArgumentError(fmt.Sprintf("max request bytes %d is below 64", c.MaxRequestBytes))
	case c.MaxConnections < 1:
		return errors.NewInvalidArgumentError("max connections must be positive")
	case c.ReadTimeout < 0 || c.WriteTimeout < 0:
		return errors.NewInvalidArgumentError("timeouts must not be negative")
	case c.ChunkSize < 1:
		return errors.NewInvalidArgumentError("chunk size must be positive")
	case c.IoUring && c.Network != "tcp":
		return errors.NewInvalidArgumentError("io_uring requires the tcp network")
	}

	info, err := os.Stat(c.Root)
	if err != nil {
		return &errors.HttpError{
			Type:          errors.ErrorInvalidArgument,
			Message:       fmt.Sprintf("root %q", c.Root),
			UnderlyingErr: err,
		}
	}
	if !info.IsDir() {
		return errors.NewInvalidArgumentError(fmt.Sprintf("root %q is not a directory", c.Root))
	}
	return nil
}
