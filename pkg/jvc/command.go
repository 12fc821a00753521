// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jvc

import (
	"fmt"
	"strings"
	"time"
)

// Kind discriminates operation commands from inquiries
type Kind uint8

const (
	KindOperation Kind = iota
	KindInquiry
)

// String returns a human-readable kind name
func (k Kind) String() string {
	switch k {
	case KindOperation:
		return "operation"
	case KindInquiry:
		return "inquiry"
	default:
		return "unknown"
	}
}

// header returns the frame header byte for the kind
func (k Kind) header() byte {
	if k == KindInquiry {
		return HeaderInquiry
	}
	return HeaderOperation
}

// Command is a single request to the projector. Commands are values; build
// one per call.
type Command struct {
	Verb    string
	Kind    Kind
	Payload string

	// Timeout bounds the whole exchange. Zero selects the serializer default
	// for the command kind.
	Timeout time.Duration
}

// Operation creates an operation command, e.g. Operation("PW", "1") for power on.
func Operation(verb, payload string) Command {
	return Command{Verb: verb, Kind: KindOperation, Payload: payload}
}

// Inquiry creates a reference command, e.g. Inquiry("PMPM") for the picture mode.
func Inquiry(verb string) Command {
	return Command{Verb: verb, Kind: KindInquiry}
}

// WithTimeout returns a copy of the command bounded by d
func (c Command) WithTimeout(d time.Duration) Command {
	c.Timeout = d
	return c
}

// Echo returns the verb bytes the projector echoes in its replies
func (c Command) Echo() string {
	if len(c.Verb) < EchoSize {
		return c.Verb
	}
	return c.Verb[:EchoSize]
}

// Validate checks that the command can be framed
func (c Command) Validate() error {
	if len(c.Verb) < EchoSize {
		return fmt.Errorf("%w: verb %q shorter than %d bytes", ErrInvalidCommand, c.Verb, EchoSize)
	}
	if c.Kind != KindOperation && c.Kind != KindInquiry {
		return fmt.Errorf("%w: kind %d", ErrInvalidCommand, c.Kind)
	}
	for i := 0; i < len(c.Verb); i++ {
		if c.Verb[i] < 0x20 || c.Verb[i] > 0x7E {
			return fmt.Errorf("%w: verb byte 0x%02X is not printable ASCII", ErrInvalidCommand, c.Verb[i])
		}
	}
	if c.Kind == KindInquiry && c.Payload != "" {
		return fmt.Errorf("%w: inquiry %s carries a payload", ErrInvalidCommand, c.Verb)
	}
	if strings.IndexByte(c.Payload, EndByte) >= 0 {
		return fmt.Errorf("%w: payload contains the end byte", ErrInvalidCommand)
	}
	if len(c.Verb)+len(c.Payload) > MaxPayloadSize+EchoSize {
		return fmt.Errorf("%w: %d bytes exceeds frame size", ErrInvalidCommand, len(c.Verb)+len(c.Payload))
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidCommand)
	}
	return nil
}

// String formats the command as it appears in logs, e.g. "!PW1" or "?PMPM"
func (c Command) String() string {
	return string(c.Kind.header()) + c.Verb + c.Payload
}

// Command builders for common operations. These are convenience wrappers that
// keep verb/payload pairs in one place.

// NewPowerCommand creates a power operation (on=true → "PW1", false → "PW0")
func NewPowerCommand(on bool) Command {
	if on {
		return Operation(VerbPower, "1")
	}
	return Operation(VerbPower, "0")
}

// NewRemoteCommand creates an emulated remote-control key press. The code is the
// four hex digit key code from the device reference, e.g. "7320" for MENU.
func NewRemoteCommand(code string) Command {
	return Operation(VerbRemote, code)
}

// NewSetCommand creates an operation that selects a member of a settable category
func NewSetCommand(c *Category, name string) (Command, error) {
	if c.ReadOnly() {
		return Command{}, fmt.Errorf("%w: %s is read-only", ErrUnknownCommand, c.Name())
	}
	code, ok := c.Code(name)
	if !ok {
		return Command{}, fmt.Errorf("%w: %s has no member %q", ErrUnknownCommand, c.Name(), name)
	}
	return Operation(c.Verb(), code), nil
}

// ParseCommand parses a "group, value" command such as "menu, menu" or
// "power, off" using the operation groups of the vocabulary.
func ParseCommand(s string) (Command, error) {
	group, value, ok := strings.Cut(s, ",")
	if !ok {
		fields := strings.Fields(s)
		if len(fields) != 2 {
			return Command{}, fmt.Errorf("%w: %q (want \"group, value\")", ErrUnknownCommand, s)
		}
		group, value = fields[0], fields[1]
	}
	group = normalizeName(group)
	value = normalizeName(value)

	c, ok := OperationGroup(group)
	if !ok {
		return Command{}, fmt.Errorf("%w: group %q", ErrUnknownCommand, group)
	}
	return NewSetCommand(c, value)
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, "-", "_")
}
