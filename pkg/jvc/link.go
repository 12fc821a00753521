// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jvc

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
)

// Link is a byte stream to the projector with read deadlines
type Link interface {
	io.Reader
	io.Writer
	io.Closer
	SetReadDeadline(t time.Time) error
}

// Dialer opens Links
type Dialer interface {
	Dial(ctx context.Context) (Link, error)

	// RequiresHandshake reports whether the link starts with the network
	// PJ_OK/PJREQ/PJACK exchange. RS-232 links start in command mode.
	RequiresHandshake() bool

	String() string
}

// TCPDialer connects to the projector's LAN control port
type TCPDialer struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// Address returns host:port
func (d TCPDialer) Address() string {
	port := d.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(d.Host, strconv.Itoa(port))
}

// Dial opens the TCP connection
func (d TCPDialer) Dial(ctx context.Context) (Link, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	nd := net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}

	conn, err := nd.DialContext(ctx, "tcp", d.Address())
	if err != nil {
		return nil, classifyDialError(d.Address(), err)
	}
	return conn, nil
}

// RequiresHandshake is true for LAN control
func (d TCPDialer) RequiresHandshake() bool { return true }

func (d TCPDialer) String() string {
	return "TCP: " + d.Address()
}

// classifyDialError maps socket failures onto the connect error sentinels
func classifyDialError(addr string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %s: %v", ErrConnectTimeout, addr, err)
	default:
		// refused, unreachable and name resolution failures
		return fmt.Errorf("%w: %s: %v", ErrConnectRefused, addr, err)
	}
}

// SerialDialer opens an RS-232 port. The serial protocol uses the same frames
// without the network handshake.
type SerialDialer struct {
	Port     string
	BaudRate int
}

// Dial opens the serial port
func (d SerialDialer) Dial(ctx context.Context) (Link, error) {
	baud := d.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(d.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open serial port %s: %v", ErrConnectRefused, d.Port, err)
	}
	return &serialLink{port: port}, nil
}

// RequiresHandshake is false for RS-232
func (d SerialDialer) RequiresHandshake() bool { return false }

func (d SerialDialer) String() string {
	baud := d.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	return fmt.Sprintf("Serial: %s @ %d baud", d.Port, baud)
}

// serialLink adapts a serial port to Link. The port has a read timeout rather
// than a deadline and reports an elapsed timeout as a zero-byte read.
type serialLink struct {
	port serial.Port
}

func (s *serialLink) Read(p []byte) (int, error) {
	n, err := s.port.Read(p)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, os.ErrDeadlineExceeded
	}
	return n, nil
}

func (s *serialLink) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *serialLink) Close() error {
	return s.port.Close()
}

func (s *serialLink) SetReadDeadline(t time.Time) error {
	if t.IsZero() {
		return s.port.SetReadTimeout(serial.NoTimeout)
	}
	d := time.Until(t)
	if d <= 0 {
		d = time.Millisecond
	}
	return s.port.SetReadTimeout(d)
}

// WebSocketDialer connects through a WebSocket bridge that relays binary
// messages to the projector's TCP port.
type WebSocketDialer struct {
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool
	Timeout       time.Duration
}

// Dial opens the WebSocket connection with HTTP Basic auth
func (d WebSocketDialer) Dial(ctx context.Context) (Link, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid URL: %v", ErrConnectRefused, err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("%w: unsupported URL scheme: %s (use ws:// or wss://)", ErrConnectRefused, u.Scheme)
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: d.SkipSSLVerify,
		}
	}

	headers := http.Header{}
	if d.Username != "" && d.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(d.Username + ":" + d.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, d.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: WebSocket connection failed (HTTP %d): %v", ErrConnectRefused, resp.StatusCode, err)
		}
		return nil, classifyDialError(d.URL, err)
	}
	return newWebSocketLink(conn), nil
}

// RequiresHandshake is true; the bridge forwards the LAN protocol verbatim
func (d WebSocketDialer) RequiresHandshake() bool { return true }

func (d WebSocketDialer) String() string {
	return "WebSocket: " + d.URL
}

// webSocketLink exposes binary WebSocket messages as a byte stream. Read
// deadlines on a gorilla connection are permanent, so messages are pumped by
// a goroutine and Read applies the deadline itself.
type webSocketLink struct {
	conn *websocket.Conn
	wmu  sync.Mutex

	messages chan []byte
	done     chan struct{}
	once     sync.Once

	mu       sync.Mutex
	deadline time.Time
	readErr  error

	buf []byte
}

func newWebSocketLink(conn *websocket.Conn) *webSocketLink {
	w := &webSocketLink{
		conn:     conn,
		messages: make(chan []byte, 16),
		done:     make(chan struct{}),
	}
	go w.pump()
	return w
}

func (w *webSocketLink) pump() {
	defer close(w.messages)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			w.readErr = err
			w.mu.Unlock()
			return
		}
		// Only binary messages carry projector frames
		if messageType != websocket.BinaryMessage {
			continue
		}
		select {
		case w.messages <- data:
		case <-w.done:
			return
		}
	}
}

func (w *webSocketLink) Read(p []byte) (int, error) {
	if len(w.buf) > 0 {
		n := copy(p, w.buf)
		w.buf = w.buf[n:]
		return n, nil
	}

	w.mu.Lock()
	deadline := w.deadline
	w.mu.Unlock()

	var expired <-chan time.Time
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d <= 0 {
			return 0, os.ErrDeadlineExceeded
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case data, ok := <-w.messages:
		if !ok {
			w.mu.Lock()
			err := w.readErr
			w.mu.Unlock()
			if err == nil {
				err = io.EOF
			}
			return 0, err
		}
		n := copy(p, data)
		w.buf = data[n:]
		return n, nil
	case <-expired:
		return 0, os.ErrDeadlineExceeded
	case <-w.done:
		return 0, net.ErrClosed
	}
}

func (w *webSocketLink) Write(p []byte) (int, error) {
	w.wmu.Lock()
	defer w.wmu.Unlock()
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *webSocketLink) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.conn.Close()
	})
	return err
}

func (w *webSocketLink) SetReadDeadline(t time.Time) error {
	w.mu.Lock()
	w.deadline = t
	w.mu.Unlock()
	return nil
}
