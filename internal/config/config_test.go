// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Thermoquad/jvcctl/pkg/jvc"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.HasLink() {
		t.Error("defaults must not select a link")
	}
	if cfg.Connection.Port != jvc.DefaultPort || cfg.Polling.Attempts != jvc.DefaultPollAttempts {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "jvcctl.yaml", `
connection:
  host: 192.168.1.50
  timeout: 2s
polling:
  interval: 500ms
  attempts: 30
log:
  level: debug
capture: session.cbor
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Connection.Host != "192.168.1.50" || cfg.Connection.Timeout != 2*time.Second {
		t.Errorf("connection = %+v", cfg.Connection)
	}
	// Unset keys keep their defaults
	if cfg.Connection.Port != jvc.DefaultPort || cfg.Connection.HandshakeTimeout != jvc.DefaultHandshakeTimeout {
		t.Errorf("defaults lost: %+v", cfg.Connection)
	}
	if cfg.Polling.Interval != 500*time.Millisecond || cfg.Polling.Attempts != 30 {
		t.Errorf("polling = %+v", cfg.Polling)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.Capture != "session.cbor" {
		t.Errorf("capture = %q", cfg.Capture)
	}
}

func TestLoad_EmptyYAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "empty.yml", ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg != Default() {
		t.Errorf("empty file should yield defaults, got %+v", cfg)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "jvcctl.toml", `
capture = "out.cbor"

[connection]
url = "wss://bridge.local/jvc"
username = "admin"
no_ssl_verify = true
handshake_timeout = "3s"

[polling]
attempts = 10
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Connection.URL != "wss://bridge.local/jvc" || !cfg.Connection.NoSSLVerify {
		t.Errorf("connection = %+v", cfg.Connection)
	}
	if cfg.Connection.HandshakeTimeout != 3*time.Second {
		t.Errorf("handshake timeout = %s", cfg.Connection.HandshakeTimeout)
	}
	if cfg.Polling.Attempts != 10 || cfg.Polling.Interval != jvc.DefaultPollInterval {
		t.Errorf("polling = %+v", cfg.Polling)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		target  error
	}{
		{"yaml unknown key", "a.yaml", "connection:\n  hostname: x\n", nil},
		{"toml unknown key", "a.toml", "[connection]\nhostname = \"x\"\n", nil},
		{"bad extension", "a.json", "{}", ErrUnsupportedFormat},
		{"two links", "a.yaml", "connection:\n  host: a\n  serial: /dev/ttyUSB0\n", jvc.ErrInvalidConfig},
		{"bad port", "a.toml", "[connection]\nport = 70000\n", jvc.ErrInvalidConfig},
		{"zero attempts", "a.yaml", "polling:\n  attempts: 0\n", jvc.ErrInvalidConfig},
		{"negative interval", "a.yaml", "polling:\n  interval: -1s\n", jvc.ErrInvalidConfig},
		{"syntax", "a.toml", "[connection\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("error = %v, want %v", err, tt.target)
			}
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want not exist", err)
	}
}

func TestDialer(t *testing.T) {
	cfg := Default()
	if _, err := cfg.Dialer(""); !errors.Is(err, jvc.ErrInvalidConfig) {
		t.Errorf("no link: error = %v", err)
	}

	cfg.Connection.Host = "projector"
	d, err := cfg.Dialer("")
	if err != nil {
		t.Fatalf("Dialer failed: %v", err)
	}
	tcp, ok := d.(jvc.TCPDialer)
	if !ok || tcp.Address() != "projector:20554" {
		t.Errorf("dialer = %#v", d)
	}

	cfg = Default()
	cfg.Connection.Serial = "/dev/ttyUSB0"
	d, _ = cfg.Dialer("")
	if _, ok := d.(jvc.SerialDialer); !ok || d.RequiresHandshake() {
		t.Errorf("dialer = %#v", d)
	}

	cfg = Default()
	cfg.Connection.URL = "ws://bridge/jvc"
	cfg.Connection.Username = "admin"
	d, _ = cfg.Dialer("secret")
	ws, ok := d.(jvc.WebSocketDialer)
	if !ok || ws.Password != "secret" || ws.Username != "admin" {
		t.Errorf("dialer = %#v", d)
	}
}

func TestClientConfig(t *testing.T) {
	cfg := Default()
	cfg.Connection.Host = "projector"
	cc := cfg.ClientConfig("pw")
	if err := cc.Validate(true); err != nil {
		t.Fatalf("client config invalid: %v", err)
	}
	if cc.Password != "pw" || cc.Host != "projector" || cc.PollAttempts != jvc.DefaultPollAttempts {
		t.Errorf("client config = %+v", cc)
	}
}
