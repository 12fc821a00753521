// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jvc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds the connection settings of a Client
type Config struct {
	Host     string
	Port     int
	Password string

	// Timeout bounds operation exchanges, and inquiries unless
	// InquiryTimeout is set.
	Timeout          time.Duration
	InquiryTimeout   time.Duration
	HandshakeTimeout time.Duration

	PollInterval time.Duration
	PollAttempts int
}

// DefaultConfig returns a Config with protocol defaults and no host
func DefaultConfig() Config {
	return Config{
		Port:             DefaultPort,
		Timeout:          DefaultTimeout,
		HandshakeTimeout: DefaultHandshakeTimeout,
		PollInterval:     DefaultPollInterval,
		PollAttempts:     DefaultPollAttempts,
	}
}

// Validate checks the settings. The host is only required when the client
// dials TCP itself.
func (c Config) Validate(requireHost bool) error {
	if requireHost && strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	if c.InquiryTimeout < 0 {
		return fmt.Errorf("%w: inquiry timeout must not be negative", ErrInvalidConfig)
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("%w: handshake timeout must be positive", ErrInvalidConfig)
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("%w: poll interval must not be negative", ErrInvalidConfig)
	}
	if c.PollAttempts <= 0 {
		return fmt.Errorf("%w: poll attempts must be positive", ErrInvalidConfig)
	}
	return nil
}

// Option customizes a Client
type Option func(*Client)

// WithDialer replaces the TCP dialer, e.g. with a SerialDialer
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithLogger sets the logger for the client and its transport
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

// WithObserver registers an exchange observer
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithSleep replaces the sleep used between poll attempts
func WithSleep(fn SleepFunc) Option {
	return func(c *Client) { c.sleep = fn }
}

// Client is the projector facade. It owns one connection; open and close it
// explicitly. All methods are safe for concurrent use and are serialized on
// the wire.
type Client struct {
	cfg       Config
	dialer    Dialer
	observer  Observer
	sleep     SleepFunc
	log       logrus.FieldLogger
	transport *Transport
	exchanges *Serializer
}

// NewClient creates a closed client
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if err := cfg.Validate(c.dialer == nil); err != nil {
		return nil, err
	}
	if c.dialer == nil {
		c.dialer = TCPDialer{Host: cfg.Host, Port: cfg.Port, Timeout: cfg.HandshakeTimeout}
	}
	if c.log == nil {
		c.log = discardLogger()
	}
	if c.sleep == nil {
		c.sleep = Sleep
	}

	c.transport = NewTransport(c.dialer, TransportOptions{
		Password:         cfg.Password,
		HandshakeTimeout: cfg.HandshakeTimeout,
		Logger:           c.log,
	})
	c.exchanges = NewSerializer(c.transport, SerializerOptions{
		OperationTimeout: cfg.Timeout,
		InquiryTimeout:   cfg.InquiryTimeout,
		Observer:         c.observer,
		Logger:           c.log,
	})
	return c, nil
}

// Dialer returns the dialer the client connects with
func (c *Client) Dialer() Dialer { return c.dialer }

// Open connects and completes the handshake
func (c *Client) Open(ctx context.Context) error {
	if err := c.transport.Open(ctx); err != nil {
		return err
	}
	c.log.WithField("link", c.dialer.String()).Info("connected to projector")
	return nil
}

// Close disconnects. Pending exchanges fail with ErrConnectionClosed.
func (c *Client) Close() error {
	return c.transport.Close()
}

// Reconnect closes and reopens the connection once in-flight exchanges have
// finished
func (c *Client) Reconnect(ctx context.Context) error {
	return c.exchanges.Do(ctx, func() error {
		c.transport.Close()
		return c.transport.Open(ctx)
	})
}

// IsOpen reports whether the connection is usable
func (c *Client) IsOpen() bool {
	return c.transport.IsOpen()
}

// Execute runs a raw command through the exchange serializer
func (c *Client) Execute(ctx context.Context, cmd Command) (Reply, error) {
	return c.exchanges.Execute(ctx, cmd)
}

func (c *Client) operate(ctx context.Context, cmd Command) (Reply, error) {
	reply, err := c.exchanges.Execute(ctx, cmd)
	if err != nil {
		return reply, err
	}
	if reply.Outcome == OutcomeRejected {
		return reply, fmt.Errorf("%w: %s", ErrRejected, cmd)
	}
	return reply, nil
}

func (c *Client) inquire(ctx context.Context, verb string) ([]byte, error) {
	cmd := Inquiry(verb)
	reply, err := c.exchanges.Execute(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if reply.Outcome == OutcomeRejected {
		return nil, fmt.Errorf("%w: %s", ErrRejected, cmd)
	}
	return reply.Value, nil
}

// PowerOn switches the projector on. The call returns on ACK; use
// WaitUntilOn to wait for warm-up.
func (c *Client) PowerOn(ctx context.Context) (Reply, error) {
	return c.operate(ctx, NewPowerCommand(true))
}

// PowerOff puts the projector in standby
func (c *Client) PowerOff(ctx context.Context) (Reply, error) {
	return c.operate(ctx, NewPowerCommand(false))
}

// ExecCommand parses and runs "group, value" commands in order, e.g.
// ExecCommand(ctx, "menu, menu"). Each command is an independent operation;
// execution stops at the first failure.
func (c *Client) ExecCommand(ctx context.Context, commands ...string) ([]Reply, error) {
	cmds := make([]Command, 0, len(commands))
	for _, s := range commands {
		cmd, err := ParseCommand(s)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}

	replies := make([]Reply, 0, len(cmds))
	for _, cmd := range cmds {
		reply, err := c.operate(ctx, cmd)
		if err != nil {
			return replies, err
		}
		replies = append(replies, reply)
	}
	return replies, nil
}

// Set selects a member of a settable category
func (c *Client) Set(ctx context.Context, category *Category, name string) (Reply, error) {
	cmd, err := NewSetCommand(category, name)
	if err != nil {
		return Reply{}, err
	}
	return c.operate(ctx, cmd)
}

// State queries a category
func (c *Client) State(ctx context.Context, category *Category) (State, error) {
	value, err := c.inquire(ctx, category.Verb())
	if err != nil {
		return State{}, err
	}
	return category.Decode(value), nil
}

// Bool queries a boolean category
func (c *Client) Bool(ctx context.Context, category *BoolCategory) (bool, error) {
	value, err := c.inquire(ctx, category.Verb())
	if err != nil {
		return false, err
	}
	return category.Decode(value)
}

// IsOn reports whether the projector is fully powered on
func (c *Client) IsOn(ctx context.Context) (bool, error) {
	return c.Bool(ctx, PowerOn)
}

// IsLowLatencyOn reports whether low latency mode is enabled
func (c *Client) IsLowLatencyOn(ctx context.Context) (bool, error) {
	return c.Bool(ctx, LowLatencyOn)
}

// PowerState returns standby, on, cooling, warming or emergency
func (c *Client) PowerState(ctx context.Context) (State, error) {
	return c.State(ctx, PowerStates)
}

// LowLatencyState returns the low latency mode
func (c *Client) LowLatencyState(ctx context.Context) (State, error) {
	return c.State(ctx, LowLatencyModes)
}

// PictureMode returns the picture mode
func (c *Client) PictureMode(ctx context.Context) (State, error) {
	return c.State(ctx, PictureModes)
}

// InstallMode returns the installation mode
func (c *Client) InstallMode(ctx context.Context) (State, error) {
	return c.State(ctx, InstallationModes)
}

// InputMode returns the selected input
func (c *Client) InputMode(ctx context.Context) (State, error) {
	return c.State(ctx, InputModes)
}

// MaskMode returns the mask setting
func (c *Client) MaskMode(ctx context.Context) (State, error) {
	return c.State(ctx, MaskModes)
}

// LaserDimMode returns the laser dimming mode
func (c *Client) LaserDimMode(ctx context.Context) (State, error) {
	return c.State(ctx, LaserDimModes)
}

// EshiftMode returns the e-shift setting
func (c *Client) EshiftMode(ctx context.Context) (State, error) {
	return c.State(ctx, EshiftModes)
}

// ColorMode returns the color space of the input signal
func (c *Client) ColorMode(ctx context.Context) (State, error) {
	return c.State(ctx, ColorSpaceModes)
}

// InputLevel returns the input level
func (c *Client) InputLevel(ctx context.Context) (State, error) {
	return c.State(ctx, InputLevels)
}

// ContentType returns the content type setting
func (c *Client) ContentType(ctx context.Context) (State, error) {
	return c.State(ctx, ContentTypes)
}

// ContentTypeTransition returns the detected content type of the signal
func (c *Client) ContentTypeTransition(ctx context.Context) (State, error) {
	return c.State(ctx, ContentTypeTrans)
}

// LampPower returns the lamp power mode
func (c *Client) LampPower(ctx context.Context) (State, error) {
	return c.State(ctx, LampPowerModes)
}

// LaserPower returns the laser power mode
func (c *Client) LaserPower(ctx context.Context) (State, error) {
	return c.State(ctx, LaserPowerModes)
}

// AspectRatio returns the aspect setting
func (c *Client) AspectRatio(ctx context.Context) (State, error) {
	return c.State(ctx, AspectRatioModes)
}

// SourceStatus returns the signal status
func (c *Client) SourceStatus(ctx context.Context) (State, error) {
	return c.State(ctx, SourceStatuses)
}

// LampTime returns the light source hours
func (c *Client) LampTime(ctx context.Context) (int, error) {
	value, err := c.inquire(ctx, VerbLampTime)
	if err != nil {
		return 0, err
	}
	return DecodeHours(value)
}

// SoftwareVersion returns the firmware version string
func (c *Client) SoftwareVersion(ctx context.Context) (string, error) {
	value, err := c.inquire(ctx, VerbSoftwareVersion)
	if err != nil {
		return "", err
	}
	return DecodeVersion(value), nil
}

// WaitUntil polls probe every interval, at most attempts times
func (c *Client) WaitUntil(ctx context.Context, probe Probe, interval time.Duration, attempts int) (int, error) {
	p := Poller{
		Interval:    interval,
		MaxAttempts: attempts,
		Sleep:       c.sleep,
		Logger:      c.log,
	}
	return p.WaitUntil(ctx, probe)
}

// WaitUntilOn waits for warm-up using the configured poll settings
func (c *Client) WaitUntilOn(ctx context.Context) (int, error) {
	return c.WaitUntil(ctx, c.IsOn, c.cfg.PollInterval, c.cfg.PollAttempts)
}

// EnsureOn powers the projector on if needed and waits until it is ready
func (c *Client) EnsureOn(ctx context.Context) (int, error) {
	on, err := c.IsOn(ctx)
	if err == nil && on {
		return 0, nil
	}
	if err != nil && IsFatal(err) {
		return 0, err
	}
	if _, err := c.PowerOn(ctx); err != nil {
		return 0, err
	}
	return c.WaitUntilOn(ctx)
}
