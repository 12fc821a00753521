// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/jvcctl/internal/config"
	"github.com/Thermoquad/jvcctl/internal/logging"
)

var (
	// Config file
	configPath string

	// Network connection flags
	host string
	port int

	// Serial connection flags
	serialPort string
	baudRate   int

	// WebSocket bridge flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Exchange flags
	timeout          time.Duration
	handshakeTimeout time.Duration
	askPassword      bool

	capturePath string
	logLevel    string
	logFormat   string

	// Resolved in PersistentPreRunE
	settings config.Config
	logger   *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "jvcctl",
	Short: "JVC D-ILA projector control",
	Long: `jvcctl - Control and monitor JVC D-ILA projectors over their network
control protocol.

Connection modes:
  Network:   --host 192.168.1.50 [--port 20554]
  Serial:    --serial /dev/ttyUSB0 [--baud 19200]
  WebSocket: --url ws://host/path [--username user]

Settings may also come from a YAML or TOML file given with --config; flags that
are set explicitly take precedence over the file.

The projector password (network mode) and the bridge password (WebSocket mode)
are read from the JVC_PASSWORD environment variable. Use --ask-password to be
prompted instead. A --password flag is intentionally not provided to avoid
leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVarP(&configPath, "config", "c", "", "Config file (.yaml, .yml or .toml)")

	flags.StringVar(&host, "host", "", "Projector host name or address")
	flags.IntVar(&port, "port", 20554, "Projector control port")

	flags.StringVarP(&serialPort, "serial", "s", "", "Serial port device")
	flags.IntVarP(&baudRate, "baud", "b", 19200, "Baud rate (serial only)")

	flags.StringVarP(&wsURL, "url", "u", "", "WebSocket bridge URL (ws:// or wss://)")
	flags.StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	flags.BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	flags.DurationVar(&timeout, "timeout", 5*time.Second, "Reply timeout per command")
	flags.DurationVar(&handshakeTimeout, "handshake-timeout", 5*time.Second, "Connect and handshake timeout")
	flags.BoolVar(&askPassword, "ask-password", false, "Prompt for the password")

	flags.StringVar(&capturePath, "capture", "", "Append every exchange to a CBOR capture file")
	flags.StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error, off)")
	flags.StringVar(&logFormat, "log-format", "", "Log format (text or json)")
}

// loadSettings merges defaults, the config file and explicitly set flags
func loadSettings(cmd *cobra.Command, args []string) error {
	settings = config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		settings = loaded
	}

	changed := cmd.Flags().Changed
	conn := &settings.Connection

	// Selecting a link on the command line replaces the file's link
	if changed("host") || changed("serial") || changed("url") {
		conn.Host, conn.Serial, conn.URL = "", "", ""
	}
	if changed("host") {
		conn.Host = host
	}
	if changed("port") {
		conn.Port = port
	}
	if changed("serial") {
		conn.Serial = serialPort
	}
	if changed("baud") {
		conn.Baud = baudRate
	}
	if changed("url") {
		conn.URL = wsURL
	}
	if changed("username") {
		conn.Username = wsUsername
	}
	if changed("no-ssl-verify") {
		conn.NoSSLVerify = wsNoSSLVerify
	}
	if changed("timeout") {
		conn.Timeout = timeout
	}
	if changed("handshake-timeout") {
		conn.HandshakeTimeout = handshakeTimeout
	}
	if changed("capture") {
		settings.Capture = capturePath
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = settings.Log.Level
	logCfg.Format = settings.Log.Format
	logging.ApplyEnv(&logCfg)
	if changed("log-level") {
		logCfg.Level = logLevel
	}
	if changed("log-format") {
		logCfg.Format = logFormat
	}

	l, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// Execute runs the root command. Interrupts cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
