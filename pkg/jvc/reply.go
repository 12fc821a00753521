// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jvc

import "fmt"

// Outcome classifies a decoded device reply
type Outcome uint8

const (
	OutcomeAcknowledged Outcome = iota
	OutcomeRejected
	OutcomeData
)

// String returns a human-readable outcome name
func (o Outcome) String() string {
	switch o {
	case OutcomeAcknowledged:
		return "ACK"
	case OutcomeRejected:
		return "NAK"
	case OutcomeData:
		return "DATA"
	default:
		return "UNKNOWN"
	}
}

// Reply is a decoded device frame
type Reply struct {
	Outcome Outcome
	Verb    string // two echoed verb bytes
	Value   []byte // data frames only
	Raw     []byte
}

// Acknowledged reports whether the device accepted the command
func (r Reply) Acknowledged() bool {
	return r.Outcome == OutcomeAcknowledged || r.Outcome == OutcomeData
}

// String formats the reply for logs
func (r Reply) String() string {
	if r.Outcome == OutcomeData {
		return fmt.Sprintf("%s %s=%q", r.Outcome, r.Verb, r.Value)
	}
	return fmt.Sprintf("%s %s", r.Outcome, r.Verb)
}

// RawCommand is a client frame as seen by the device. The body is the verb and
// payload without separation; the verb length is only known to the vocabulary.
type RawCommand struct {
	Kind Kind
	Body string
	Raw  []byte
}

// HasPrefix reports whether the body starts with verb
func (c RawCommand) HasPrefix(verb string) bool {
	return len(c.Body) >= len(verb) && c.Body[:len(verb)] == verb
}
