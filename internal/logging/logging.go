// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logging builds the jvcctl logger
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	EnvLogLevel  = "JVCCTL_LOG_LEVEL"
	EnvLogFormat = "JVCCTL_LOG_FORMAT"

	// Generic fallback honored after EnvLogLevel
	EnvLogLevelFallback = "LOG_LEVEL"
)

// Config selects level, format and destination
type Config struct {
	Level  string
	Format string // "text" or "json"
	Output io.Writer
}

// DefaultConfig logs warnings and above as text on stderr
func DefaultConfig() Config {
	return Config{
		Level:  "warn",
		Format: "text",
		Output: os.Stderr,
	}
}

// ApplyEnv overrides level and format from the environment
func ApplyEnv(cfg *Config) {
	if lvl := strings.TrimSpace(os.Getenv(EnvLogLevel)); lvl != "" {
		cfg.Level = lvl
	} else if lvl := strings.TrimSpace(os.Getenv(EnvLogLevelFallback)); lvl != "" {
		cfg.Level = lvl
	}
	if format := strings.TrimSpace(os.Getenv(EnvLogFormat)); format != "" {
		cfg.Format = format
	}
}

// New creates a logger from cfg
func New(cfg Config) (*logrus.Logger, error) {
	log := logrus.New()

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	default:
		return nil, fmt.Errorf("unknown log format %q (use text or json)", cfg.Format)
	}

	if cfg.Output != nil {
		log.SetOutput(cfg.Output)
	}
	return log, nil
}

// ParseLevel accepts logrus level names plus "off"
func ParseLevel(raw string) (logrus.Level, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	switch name {
	case "":
		return logrus.WarnLevel, nil
	case "off", "none", "disabled":
		return logrus.PanicLevel, nil
	}
	level, err := logrus.ParseLevel(name)
	if err != nil {
		return 0, fmt.Errorf("unknown log level %q", raw)
	}
	return level, nil
}
