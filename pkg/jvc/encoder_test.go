// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jvc

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		cmd      Command
		expected []byte
	}{
		{
			name:     "power on",
			cmd:      NewPowerCommand(true),
			expected: []byte{0x21, 0x89, 0x01, 'P', 'W', '1', 0x0A},
		},
		{
			name:     "power off",
			cmd:      NewPowerCommand(false),
			expected: []byte{0x21, 0x89, 0x01, 'P', 'W', '0', 0x0A},
		},
		{
			name:     "power inquiry",
			cmd:      Inquiry(VerbPower),
			expected: []byte{0x3F, 0x89, 0x01, 'P', 'W', 0x0A},
		},
		{
			name:     "picture mode inquiry",
			cmd:      PictureModes.Inquiry(),
			expected: []byte{0x3F, 0x89, 0x01, 'P', 'M', 'P', 'M', 0x0A},
		},
		{
			name:     "remote menu key",
			cmd:      NewRemoteCommand("7320"),
			expected: []byte{0x21, 0x89, 0x01, 'R', 'C', '7', '3', '2', '0', 0x0A},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Encode(tt.cmd)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if !bytes.Equal(frame, tt.expected) {
				t.Errorf("frame mismatch:\n  got:  % X\n  want: % X", frame, tt.expected)
			}
		})
	}
}

func TestEncode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
	}{
		{"empty verb", Operation("", "1")},
		{"one byte verb", Operation("P", "1")},
		{"non-printable verb", Operation("P\x01", "")},
		{"inquiry with payload", Command{Verb: "PW", Kind: KindInquiry, Payload: "1"}},
		{"end byte in payload", Operation("PW", "1\n")},
		{"oversized payload", Operation("RC", strings.Repeat("0", MaxFrameSize))},
		{"unknown kind", Command{Verb: "PW", Kind: Kind(7)}},
		{"negative timeout", Operation("PW", "1").WithTimeout(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.cmd)
			if !errors.Is(err, ErrInvalidCommand) {
				t.Errorf("expected ErrInvalidCommand, got %v", err)
			}
		})
	}
}

func TestEncode_MaxSize(t *testing.T) {
	cmd := Operation("RC", strings.Repeat("0", MaxPayloadSize))
	frame, err := Encode(cmd)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(frame) > MaxFrameSize {
		t.Errorf("frame of %d bytes exceeds MaxFrameSize %d", len(frame), MaxFrameSize)
	}
}

func TestEncodeReply(t *testing.T) {
	tests := []struct {
		name     string
		outcome  Outcome
		value    []byte
		expected []byte
	}{
		{"ack", OutcomeAcknowledged, nil, []byte{0x06, 0x89, 0x01, 'P', 'W', 0x0A}},
		{"nak", OutcomeRejected, nil, []byte{0x15, 0x89, 0x01, 'P', 'W', 0x0A}},
		{"data", OutcomeData, []byte("1"), []byte{0x40, 0x89, 0x01, 'P', 'W', '1', 0x0A}},
		{"ack ignores value", OutcomeAcknowledged, []byte("1"), []byte{0x06, 0x89, 0x01, 'P', 'W', 0x0A}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := EncodeReply(tt.outcome, "PW", tt.value)
			if !bytes.Equal(frame, tt.expected) {
				t.Errorf("frame mismatch:\n  got:  % X\n  want: % X", frame, tt.expected)
			}
		})
	}
}

func TestCommand_Echo(t *testing.T) {
	if got := Inquiry(VerbPictureMode).Echo(); got != "PM" {
		t.Errorf("Echo() = %q, want %q", got, "PM")
	}
	if got := NewPowerCommand(true).Echo(); got != "PW" {
		t.Errorf("Echo() = %q, want %q", got, "PW")
	}
}

func TestCommand_String(t *testing.T) {
	if got := NewPowerCommand(true).String(); got != "!PW1" {
		t.Errorf("String() = %q, want %q", got, "!PW1")
	}
	if got := Inquiry(VerbLampTime).String(); got != "?IFLT" {
		t.Errorf("String() = %q, want %q", got, "?IFLT")
	}
}

func TestHandshakeFrame(t *testing.T) {
	if got := string(HandshakeFrame("")); got != "PJREQ" {
		t.Errorf("HandshakeFrame(\"\") = %q", got)
	}
	if got := string(HandshakeFrame("hunter2")); got != "PJREQ_hunter2" {
		t.Errorf("HandshakeFrame(\"hunter2\") = %q", got)
	}
}
