// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jvc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// TransportOptions configures a Transport
type TransportOptions struct {
	Password         string
	HandshakeTimeout time.Duration
	Logger           logrus.FieldLogger
}

// Transport owns one Link to the projector: dialing, the handshake and raw
// frame send/receive. It does not serialize callers; use a Serializer.
//
// Close may be called from any goroutine and unblocks a pending Receive.
type Transport struct {
	dialer           Dialer
	password         string
	handshakeTimeout time.Duration
	log              logrus.FieldLogger

	// Serializes Open
	openMu sync.Mutex

	mu                sync.Mutex
	link              Link
	open              bool
	handshakeComplete bool
	generation        uint64

	// Used only by the exchange holding the gate
	pending []byte
	buf     []byte
}

// NewTransport creates a closed transport for the dialer
func NewTransport(d Dialer, opts TransportOptions) *Transport {
	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	log := opts.Logger
	if log == nil {
		log = discardLogger()
	}
	return &Transport{
		dialer:           d,
		password:         opts.Password,
		handshakeTimeout: timeout,
		log:              log.WithField("link", d.String()),
		buf:              make([]byte, MaxFrameSize),
	}
}

// Open dials the projector and completes the handshake. Opening an open
// transport is a no-op.
func (t *Transport) Open(ctx context.Context) error {
	t.openMu.Lock()
	defer t.openMu.Unlock()

	t.mu.Lock()
	if t.open {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	link, err := t.dialer.Dial(ctx)
	if err != nil {
		return err
	}

	// Publish the link before the handshake so Close can abort it
	t.mu.Lock()
	t.link = link
	t.open = true
	t.handshakeComplete = false
	t.pending = t.pending[:0]
	t.mu.Unlock()

	if t.dialer.RequiresHandshake() {
		if err := t.handshake(link); err != nil {
			t.teardown(link)
			return err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.link != link {
		link.Close()
		return fmt.Errorf("%w: closed during handshake", ErrConnectionClosed)
	}
	t.handshakeComplete = true
	t.generation++
	t.log.Debug("connection open")
	return nil
}

// IsOpen reports whether commands may be sent
func (t *Transport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open && t.handshakeComplete
}

// Generation counts successful opens. Frames from an earlier generation
// can never arrive on the current link.
func (t *Transport) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generation
}

// Send writes one complete frame. Any failure tears the connection down.
func (t *Transport) Send(frame []byte) error {
	link, err := t.activeLink()
	if err != nil {
		return err
	}

	n, err := link.Write(frame)
	if err == nil && n != len(frame) {
		err = io.ErrShortWrite
	}
	if err != nil {
		if !t.teardown(link) {
			return fmt.Errorf("%w: write after close", ErrConnectionClosed)
		}
		return fmt.Errorf("%w: %v", ErrTransportWrite, err)
	}
	return nil
}

// Receive returns the next frame (end byte included) or ErrReceiveTimeout
// once timeout elapses. Bytes of an incomplete frame are kept for the next
// call.
func (t *Transport) Receive(timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)

	for {
		if frame, rest, ok := splitFrame(t.pending); ok {
			out := append([]byte(nil), frame...)
			t.pending = append(t.pending[:0], rest...)
			return out, nil
		}
		if len(t.pending) > MaxFrameSize {
			n := len(t.pending)
			t.pending = t.pending[:0]
			return nil, fmt.Errorf("%w: %d bytes without end byte", ErrMalformedFrame, n)
		}

		link, err := t.activeLink()
		if err != nil {
			return nil, err
		}
		if err := link.SetReadDeadline(deadline); err != nil {
			return nil, t.readFailure(link, err)
		}

		n, err := link.Read(t.buf)
		t.pending = append(t.pending, t.buf[:n]...)
		if err == nil {
			continue
		}
		if isTimeout(err) {
			if frame, rest, ok := splitFrame(t.pending); ok {
				out := append([]byte(nil), frame...)
				t.pending = append(t.pending[:0], rest...)
				return out, nil
			}
			return nil, fmt.Errorf("%w after %s", ErrReceiveTimeout, timeout)
		}
		return nil, t.readFailure(link, err)
	}
}

// Discard drops buffered bytes that do not form a complete frame yet
func (t *Transport) Discard() int {
	n := len(t.pending)
	t.pending = t.pending[:0]
	return n
}

// Close releases the link. It is safe to call repeatedly.
func (t *Transport) Close() error {
	t.mu.Lock()
	link := t.link
	t.link = nil
	t.open = false
	t.handshakeComplete = false
	t.mu.Unlock()

	if link == nil {
		return nil
	}
	t.log.Debug("connection closed")
	return link.Close()
}

func (t *Transport) activeLink() (Link, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open || t.link == nil {
		return nil, ErrConnectionClosed
	}
	if !t.handshakeComplete {
		return nil, fmt.Errorf("%w: handshake not complete", ErrConnectionClosed)
	}
	return t.link, nil
}

// teardown closes link if it is still current. It returns false when the
// link was already closed by someone else.
func (t *Transport) teardown(link Link) bool {
	t.mu.Lock()
	current := t.link == link
	if current {
		t.link = nil
		t.open = false
		t.handshakeComplete = false
	}
	t.mu.Unlock()

	if current {
		link.Close()
	}
	return current
}

func (t *Transport) readFailure(link Link, err error) error {
	if !t.teardown(link) || errors.Is(err, net.ErrClosed) {
		return ErrConnectionClosed
	}
	t.log.WithError(err).Warn("connection lost")
	return fmt.Errorf("%w: read: %v", ErrConnectionClosed, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
