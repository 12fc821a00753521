// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package jvctest provides a simulated projector that speaks the LAN control
// protocol, for tests and the emulate command.
package jvctest

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Thermoquad/jvcctl/pkg/jvc"
	"github.com/sirupsen/logrus"
)

// Forever keeps the device warming up indefinitely
const Forever = -1

// requestPause bounds the wait for the rest of a handshake request
const requestPause = 100 * time.Millisecond

// Exchange is one command as the device saw it
type Exchange struct {
	Command jvc.RawCommand

	// Arrived is when the command frame was read off the connection
	Arrived time.Time

	// Replied is when the device began writing its last reply frame; zero
	// when it sent nothing
	Replied time.Time
}

// arrival is a command frame and its read time
type arrival struct {
	frame []byte
	at    time.Time
}

// Device is a simulated projector. Configure it before serving; the setters
// are also safe to call while connections are active.
type Device struct {
	// Password required in PJREQ_<password>; empty accepts a plain PJREQ
	Password string

	// Greeting replaces PJ_OK, for handshake failure tests
	Greeting string

	// Warmup is the number of power inquiries answered with "warming" after
	// power on, or Forever
	Warmup int

	Logger logrus.FieldLogger

	mu         sync.Mutex
	state      map[string]string
	silent     map[string]bool
	rejected   map[string]bool
	delays     map[string]time.Duration
	overrides  map[string][][]byte
	received   []jvc.RawCommand
	exchanges  []Exchange
	warmupLeft int

	listener net.Listener
	conns    map[io.Closer]struct{}
	wg       sync.WaitGroup
	closed   bool
}

// NewDevice creates a projector in standby with plausible settings
func NewDevice() *Device {
	return &Device{
		state: map[string]string{
			jvc.VerbPower:            jvc.PowerCodeStandby,
			jvc.VerbInput:            "6",
			jvc.VerbPictureMode:      "01",
			jvc.VerbInstallMode:      "0",
			jvc.VerbMask:             "2",
			jvc.VerbLaserDim:         "0",
			jvc.VerbEshift:           "1",
			jvc.VerbColorMode:        "1",
			jvc.VerbInputLevel:       "0",
			jvc.VerbContentType:      "0",
			jvc.VerbContentTypeTrans: "1",
			jvc.VerbLampPower:        "0",
			jvc.VerbLampTime:         "04D2",
			jvc.VerbAspectRatio:      "2",
			jvc.VerbSourceStatus:     "1",
			jvc.VerbSoftwareVersion:  "3.00",
			jvc.VerbLowLatency:       "0",
		},
		silent:    make(map[string]bool),
		rejected:  make(map[string]bool),
		delays:    make(map[string]time.Duration),
		overrides: make(map[string][][]byte),
		conns:     make(map[io.Closer]struct{}),
	}
}

// SetState sets the value answered for verb
func (d *Device) SetState(verb, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state[verb] = value
}

// State returns the current value of verb
func (d *Device) State(verb string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state[verb]
}

// Silence makes the device ignore commands for verb
func (d *Device) Silence(verb string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.silent[verb] = true
}

// Reject makes the device answer commands for verb with NAK
func (d *Device) Reject(verb string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rejected[verb] = true
}

// Delay holds back replies for verb
func (d *Device) Delay(verb string, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delays[verb] = delay
}

// Override sends frames verbatim in reply to the next command for verb
func (d *Device) Override(verb string, frames ...[]byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.overrides[verb] = frames
}

// Received returns the commands received so far
func (d *Device) Received() []jvc.RawCommand {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]jvc.RawCommand(nil), d.received...)
}

// Exchanges returns the timing of every command answered so far
func (d *Device) Exchanges() []Exchange {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Exchange(nil), d.exchanges...)
}

// Connections returns the number of sessions currently open
func (d *Device) Connections() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// Start listens on a loopback port and serves in the background
func (d *Device) Start() (string, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	d.mu.Lock()
	d.listener = l
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.Serve(l)
	}()
	return l.Addr().String(), nil
}

// Port returns the listening port after Start
func (d *Device) Port() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener == nil {
		return 0
	}
	_, port, _ := net.SplitHostPort(d.listener.Addr().String())
	n, _ := strconv.Atoi(port)
	return n
}

// Serve accepts LAN connections on l until Close
func (d *Device) Serve(l net.Listener) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		l.Close()
		return net.ErrClosed
	}
	d.listener = l
	d.mu.Unlock()

	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.ServeConn(conn, true)
		}()
	}
}

// ServeConn runs one session on conn. Serial sessions start without the
// handshake.
func (d *Device) ServeConn(conn io.ReadWriteCloser, handshake bool) {
	if !d.track(conn) {
		conn.Close()
		return
	}
	defer d.untrack(conn)
	defer conn.Close()

	log := d.logger()
	r := bufio.NewReader(conn)

	if handshake && !d.handshake(r, conn) {
		return
	}

	// Frames are read as they arrive, independent of how long replies take,
	// so Arrived shows when the client sent each command
	arrivals := make(chan arrival)
	done := make(chan struct{})
	defer close(done)
	go readCommands(r, arrivals, done, log)

	for a := range arrivals {
		cmd, err := jvc.DecodeCommand(a.frame)
		if err != nil {
			log.WithError(err).Warn("ignoring malformed command")
			continue
		}

		ex := Exchange{Command: cmd, Arrived: a.at}
		replies := d.respond(cmd)
		if len(replies) == 0 {
			d.record(ex)
		}
		for i, reply := range replies {
			if i == len(replies)-1 {
				ex.Replied = time.Now()
				d.record(ex)
			}
			if _, err := conn.Write(reply); err != nil {
				return
			}
		}
	}
}

func (d *Device) record(ex Exchange) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.exchanges = append(d.exchanges, ex)
}

func readCommands(r *bufio.Reader, out chan<- arrival, done <-chan struct{}, log logrus.FieldLogger) {
	defer close(out)
	for {
		frame, err := r.ReadBytes(jvc.EndByte)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.WithError(err).Debug("session ended")
			}
			return
		}
		select {
		case out <- arrival{frame: frame, at: time.Now()}:
		case <-done:
			return
		}
	}
}

// Close stops the listener and ends all sessions
func (d *Device) Close() error {
	d.mu.Lock()
	d.closed = true
	l := d.listener
	conns := make([]io.Closer, 0, len(d.conns))
	for c := range d.conns {
		conns = append(conns, c)
	}
	d.mu.Unlock()

	var err error
	if l != nil {
		err = l.Close()
	}
	for _, c := range conns {
		c.Close()
	}
	d.wg.Wait()
	return err
}

func (d *Device) handshake(r *bufio.Reader, conn io.ReadWriter) bool {
	greeting := d.Greeting
	if greeting == "" {
		greeting = jvc.HandshakeGreeting
	}
	if _, err := io.WriteString(conn, greeting); err != nil {
		return false
	}

	got, err := readRequest(r, conn, len(jvc.HandshakeFrame(d.Password)))
	if err != nil {
		return false
	}
	if got != string(jvc.HandshakeFrame(d.Password)) {
		d.logger().WithField("request", got).Info("handshake refused")
		io.WriteString(conn, jvc.HandshakeNak)
		return false
	}
	_, err = io.WriteString(conn, jvc.HandshakeAck)
	return err == nil
}

// readRequest reads the PJREQ token. The request has no terminator, so
// bytes that follow it are collected until want bytes arrived or the
// sender pauses.
func readRequest(r *bufio.Reader, conn io.Reader, want int) (string, error) {
	req := make([]byte, len(jvc.HandshakeRequest))
	if _, err := io.ReadFull(r, req); err != nil {
		return "", err
	}
	if n := r.Buffered(); n > 0 {
		rest := make([]byte, n)
		io.ReadFull(r, rest)
		req = append(req, rest...)
	}

	dl, ok := conn.(interface{ SetReadDeadline(time.Time) error })
	if !ok || len(req) >= want {
		return string(req), nil
	}
	dl.SetReadDeadline(time.Now().Add(requestPause))
	defer dl.SetReadDeadline(time.Time{})
	for len(req) < want {
		b, err := r.ReadByte()
		if err != nil {
			break
		}
		req = append(req, b)
	}
	return string(req), nil
}

// respond applies cmd and returns the reply frames in order
func (d *Device) respond(cmd jvc.RawCommand) [][]byte {
	d.mu.Lock()
	d.received = append(d.received, cmd)

	verb, payload, known := d.resolve(cmd)
	delay := d.delays[verb]
	if frames, ok := d.overrides[verb]; ok && known {
		delete(d.overrides, verb)
		d.mu.Unlock()
		sleep(delay)
		return frames
	}
	if !known || d.silent[verb] {
		d.mu.Unlock()
		return nil
	}

	echo := verb[:jvc.EchoSize]
	var frames [][]byte
	switch {
	case d.rejected[verb]:
		frames = [][]byte{jvc.EncodeReply(jvc.OutcomeRejected, echo, nil)}
	case cmd.Kind == jvc.KindOperation:
		d.operate(verb, payload)
		frames = [][]byte{jvc.EncodeReply(jvc.OutcomeAcknowledged, echo, nil)}
	default:
		value, ok := d.inquire(verb)
		if !ok {
			frames = [][]byte{jvc.EncodeReply(jvc.OutcomeRejected, echo, nil)}
			break
		}
		frames = [][]byte{
			jvc.EncodeReply(jvc.OutcomeAcknowledged, echo, nil),
			jvc.EncodeReply(jvc.OutcomeData, echo, []byte(value)),
		}
	}
	d.mu.Unlock()

	sleep(delay)
	return frames
}

// resolve splits the body on the longest known verb. Caller holds mu.
func (d *Device) resolve(cmd jvc.RawCommand) (verb, payload string, ok bool) {
	for _, v := range d.verbs() {
		if cmd.HasPrefix(v) {
			return v, cmd.Body[len(v):], true
		}
	}
	return "", "", false
}

// verbs returns known verbs, longest first. Caller holds mu.
func (d *Device) verbs() []string {
	seen := map[string]bool{jvc.VerbRemote: true}
	for v := range d.state {
		seen[v] = true
	}
	for v := range d.silent {
		seen[v] = true
	}
	for v := range d.rejected {
		seen[v] = true
	}
	for v := range d.overrides {
		seen[v] = true
	}
	verbs := make([]string, 0, len(seen))
	for v := range seen {
		if len(v) >= jvc.EchoSize {
			verbs = append(verbs, v)
		}
	}
	sort.Slice(verbs, func(i, j int) bool {
		if len(verbs[i]) != len(verbs[j]) {
			return len(verbs[i]) > len(verbs[j])
		}
		return verbs[i] < verbs[j]
	})
	return verbs
}

// operate applies an operation. Caller holds mu.
func (d *Device) operate(verb, payload string) {
	switch verb {
	case jvc.VerbRemote:
	case jvc.VerbPower:
		switch payload {
		case "1":
			if d.state[verb] == jvc.PowerCodeOn {
				return
			}
			if d.Warmup == 0 {
				d.state[verb] = jvc.PowerCodeOn
				return
			}
			d.state[verb] = jvc.PowerCodeWarming
			d.warmupLeft = d.Warmup
		case "0":
			d.state[verb] = jvc.PowerCodeStandby
		}
	default:
		d.state[verb] = payload
	}
}

// inquire returns the answered value. Caller holds mu.
func (d *Device) inquire(verb string) (string, bool) {
	value, ok := d.state[verb]
	if !ok {
		return "", false
	}
	if verb == jvc.VerbPower && value == jvc.PowerCodeWarming {
		switch {
		case d.warmupLeft < 0:
		case d.warmupLeft > 0:
			d.warmupLeft--
		default:
			d.state[verb] = jvc.PowerCodeOn
			return jvc.PowerCodeOn, true
		}
	}
	return value, true
}

func (d *Device) track(c io.Closer) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	d.conns[c] = struct{}{}
	return true
}

func (d *Device) untrack(c io.Closer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.conns, c)
}

func (d *Device) logger() logrus.FieldLogger {
	if d.Logger != nil {
		return d.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}
