// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads jvcctl settings from YAML or TOML files
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/jvcctl/pkg/jvc"
)

// ErrUnsupportedFormat is returned for config files that are neither YAML nor TOML
var ErrUnsupportedFormat = errors.New("unsupported config format")

// Config is the file representation of jvcctl settings
type Config struct {
	Connection ConnectionConfig `yaml:"connection" toml:"connection"`
	Polling    PollingConfig    `yaml:"polling" toml:"polling"`
	Log        LogConfig        `yaml:"log" toml:"log"`

	// Capture is a file every exchange is appended to
	Capture string `yaml:"capture" toml:"capture"`
}

// ConnectionConfig selects one of the three links. Exactly one of Host,
// Serial and URL must be set.
type ConnectionConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port"`

	Serial string `yaml:"serial" toml:"serial"`
	Baud   int    `yaml:"baud" toml:"baud"`

	URL         string `yaml:"url" toml:"url"`
	Username    string `yaml:"username" toml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify" toml:"no_ssl_verify"`

	Timeout          time.Duration `yaml:"timeout" toml:"timeout"`
	InquiryTimeout   time.Duration `yaml:"inquiry_timeout" toml:"inquiry_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" toml:"handshake_timeout"`
}

// PollingConfig bounds readiness waits
type PollingConfig struct {
	Interval time.Duration `yaml:"interval" toml:"interval"`
	Attempts int           `yaml:"attempts" toml:"attempts"`
}

// LogConfig selects the log level and format
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		Connection: ConnectionConfig{
			Port:             jvc.DefaultPort,
			Baud:             jvc.DefaultBaudRate,
			Timeout:          jvc.DefaultTimeout,
			HandshakeTimeout: jvc.DefaultHandshakeTimeout,
		},
		Polling: PollingConfig{
			Interval: jvc.DefaultPollInterval,
			Attempts: jvc.DefaultPollAttempts,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load reads path over the defaults. The format follows the extension:
// .yaml/.yml or .toml. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	case ".toml":
		meta, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
		}
	default:
		return Config{}, fmt.Errorf("%w: %s (use .yaml, .yml or .toml)", ErrUnsupportedFormat, path)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks link selection and numeric ranges. A config with no link
// is accepted; the link may come from flags.
func (c Config) Validate() error {
	links := 0
	for _, v := range []string{c.Connection.Host, c.Connection.Serial, c.Connection.URL} {
		if strings.TrimSpace(v) != "" {
			links++
		}
	}
	if links > 1 {
		return fmt.Errorf("%w: set only one of host, serial and url", jvc.ErrInvalidConfig)
	}
	if c.Connection.Port <= 0 || c.Connection.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", jvc.ErrInvalidConfig, c.Connection.Port)
	}
	if c.Connection.Baud <= 0 {
		return fmt.Errorf("%w: baud rate must be positive", jvc.ErrInvalidConfig)
	}
	if c.Connection.Timeout <= 0 || c.Connection.HandshakeTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", jvc.ErrInvalidConfig)
	}
	if c.Connection.InquiryTimeout < 0 {
		return fmt.Errorf("%w: inquiry timeout must not be negative", jvc.ErrInvalidConfig)
	}
	if c.Polling.Interval < 0 || c.Polling.Attempts <= 0 {
		return fmt.Errorf("%w: polling needs a non-negative interval and positive attempts", jvc.ErrInvalidConfig)
	}
	return nil
}

// HasLink reports whether a link is configured
func (c Config) HasLink() bool {
	return c.Connection.Host != "" || c.Connection.Serial != "" || c.Connection.URL != ""
}

// ClientConfig converts the settings for jvc.NewClient
func (c Config) ClientConfig(password string) jvc.Config {
	return jvc.Config{
		Host:             c.Connection.Host,
		Port:             c.Connection.Port,
		Password:         password,
		Timeout:          c.Connection.Timeout,
		InquiryTimeout:   c.Connection.InquiryTimeout,
		HandshakeTimeout: c.Connection.HandshakeTimeout,
		PollInterval:     c.Polling.Interval,
		PollAttempts:     c.Polling.Attempts,
	}
}

// Dialer returns the dialer for the configured link. The WebSocket bridge
// takes the password for HTTP Basic auth.
func (c Config) Dialer(password string) (jvc.Dialer, error) {
	conn := c.Connection
	switch {
	case conn.Serial != "":
		return jvc.SerialDialer{Port: conn.Serial, BaudRate: conn.Baud}, nil
	case conn.URL != "":
		return jvc.WebSocketDialer{
			URL:           conn.URL,
			Username:      conn.Username,
			Password:      password,
			SkipSSLVerify: conn.NoSSLVerify,
			Timeout:       conn.HandshakeTimeout,
		}, nil
	case conn.Host != "":
		return jvc.TCPDialer{Host: conn.Host, Port: conn.Port, Timeout: conn.HandshakeTimeout}, nil
	default:
		return nil, fmt.Errorf("%w: no connection specified (use --host, --serial or --url)", jvc.ErrInvalidConfig)
	}
}
