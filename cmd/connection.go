// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/Thermoquad/jvcctl/pkg/jvc"
)

// EnvPassword holds the projector or bridge password
const EnvPassword = "JVC_PASSWORD"

// session is an open client plus the observers attached to it
type session struct {
	client   *jvc.Client
	stats    *jvc.Statistics
	capture  *jvc.CaptureWriter
	file     *os.File
	linkInfo string
}

// Close closes the client and flushes the capture file
func (s *session) Close() error {
	err := s.client.Close()
	if s.file != nil {
		if cerr := s.capture.Err(); cerr != nil {
			logger.WithError(cerr).Warn("capture incomplete")
		}
		if ferr := s.file.Close(); err == nil {
			err = ferr
		}
	}
	return err
}

// GetPassword retrieves the password from the environment or, when asked
// for or required, prompts the user
func GetPassword(required bool) (string, error) {
	if pw := os.Getenv(EnvPassword); pw != "" {
		return pw, nil
	}
	if !required && !askPassword {
		return "", nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// newSession builds a client for the resolved settings without opening it.
// Every exchange is reported to the session statistics, the capture file and
// extra.
func newSession(extra ...jvc.Observer) (*session, error) {
	if !settings.HasLink() {
		return nil, fmt.Errorf("either --host, --serial or --url must be specified")
	}

	// WebSocket bridges with a username always need a password
	password, err := GetPassword(settings.Connection.URL != "" && settings.Connection.Username != "")
	if err != nil {
		return nil, err
	}

	dialer, err := settings.Dialer(password)
	if err != nil {
		return nil, err
	}

	s := &session{
		stats:    jvc.NewStatistics(),
		linkInfo: dialer.String(),
	}
	observers := append(jvc.MultiObserver{s.stats}, extra...)

	if settings.Capture != "" {
		f, err := os.OpenFile(settings.Capture, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open capture: %w", err)
		}
		s.file = f
		s.capture = jvc.NewCaptureWriter(f)
		observers = append(observers, s.capture)
		logger.WithField("session", s.capture.Session()).Infof("capturing to %s", settings.Capture)
	}

	// The bridge password belongs to HTTP auth, not the projector handshake
	clientPassword := password
	if settings.Connection.URL != "" {
		clientPassword = ""
	}

	client, err := jvc.NewClient(settings.ClientConfig(clientPassword),
		jvc.WithDialer(dialer),
		jvc.WithLogger(logger),
		jvc.WithObserver(observers),
	)
	if err != nil {
		if s.file != nil {
			s.file.Close()
		}
		return nil, err
	}
	s.client = client
	return s, nil
}

// connect builds a session and opens it
func connect(ctx context.Context, extra ...jvc.Observer) (*session, error) {
	s, err := newSession(extra...)
	if err != nil {
		return nil, err
	}
	if err := s.client.Open(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
