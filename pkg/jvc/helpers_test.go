// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jvc_test

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/Thermoquad/jvcctl/pkg/jvc"
	"github.com/Thermoquad/jvcctl/pkg/jvc/jvctest"
)

// startDevice serves d on a loopback port and returns a matching config
func startDevice(t *testing.T, d *jvctest.Device) jvc.Config {
	t.Helper()
	addr, err := d.Start()
	if err != nil {
		t.Fatalf("device start failed: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	host, port, _ := net.SplitHostPort(addr)
	n, _ := strconv.Atoi(port)

	cfg := jvc.DefaultConfig()
	cfg.Host = host
	cfg.Port = n
	cfg.Timeout = 300 * time.Millisecond
	cfg.HandshakeTimeout = time.Second
	cfg.PollInterval = time.Millisecond
	cfg.PollAttempts = 10
	return cfg
}

// openClient creates and opens a client for cfg
func openClient(t *testing.T, cfg jvc.Config, opts ...jvc.Option) *jvc.Client {
	t.Helper()
	c, err := jvc.NewClient(cfg, opts...)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// countInquiries returns how many inquiries for verb the device received
func countInquiries(d *jvctest.Device, verb string) int {
	n := 0
	for _, cmd := range d.Received() {
		if cmd.Kind == jvc.KindInquiry && cmd.Body == verb {
			n++
		}
	}
	return n
}
