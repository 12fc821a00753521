// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jvc

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		frame   []byte
		outcome Outcome
		verb    string
		value   []byte
	}{
		{
			name:    "ack",
			frame:   []byte{0x06, 0x89, 0x01, 'P', 'W', 0x0A},
			outcome: OutcomeAcknowledged,
			verb:    "PW",
		},
		{
			name:    "nak",
			frame:   []byte{0x15, 0x89, 0x01, 'P', 'M', 0x0A},
			outcome: OutcomeRejected,
			verb:    "PM",
		},
		{
			name:    "power data",
			frame:   []byte{0x40, 0x89, 0x01, 'P', 'W', '3', 0x0A},
			outcome: OutcomeData,
			verb:    "PW",
			value:   []byte("3"),
		},
		{
			name:    "picture mode data",
			frame:   []byte{0x40, 0x89, 0x01, 'P', 'M', '0', 'B', 0x0A},
			outcome: OutcomeData,
			verb:    "PM",
			value:   []byte("0B"),
		},
		{
			name:    "source status logo",
			frame:   []byte{0x40, 0x89, 0x01, 'S', 'C', 0x00, 0x0A},
			outcome: OutcomeData,
			verb:    "SC",
			value:   []byte{0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := Decode(tt.frame)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if reply.Outcome != tt.outcome {
				t.Errorf("outcome = %s, want %s", reply.Outcome, tt.outcome)
			}
			if reply.Verb != tt.verb {
				t.Errorf("verb = %q, want %q", reply.Verb, tt.verb)
			}
			if !bytes.Equal(reply.Value, tt.value) {
				t.Errorf("value = %q, want %q", reply.Value, tt.value)
			}
			if !bytes.Equal(reply.Raw, tt.frame) {
				t.Errorf("raw = % X, want % X", reply.Raw, tt.frame)
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{"empty", nil},
		{"two byte ack", []byte{0x06, 0x0A}},
		{"truncated ack", []byte{0x06, 0x89, 0x01, 'P', 0x0A}},
		{"missing end byte", []byte{0x06, 0x89, 0x01, 'P', 'W', 'X'}},
		{"wrong unit id", []byte{0x06, 0x89, 0x02, 'P', 'W', 0x0A}},
		{"unknown header", []byte{0x7E, 0x89, 0x01, 'P', 'W', 0x0A}},
		{"ack with value", []byte{0x06, 0x89, 0x01, 'P', 'W', '1', 0x0A}},
		{"data without value", []byte{0x40, 0x89, 0x01, 'P', 'W', 0x0A}},
		{"embedded end byte", []byte{0x40, 0x89, 0x01, 'P', 'W', 0x0A, '1', 0x0A}},
		{"command header", []byte{0x21, 0x89, 0x01, 'P', 'W', '1', 0x0A}},
		{"oversized", append(append([]byte{0x40, 0x89, 0x01}, bytes.Repeat([]byte{'0'}, MaxFrameSize)...), 0x0A)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.frame)
			if !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("expected ErrMalformedFrame, got %v", err)
			}
		})
	}
}

func TestDecodeCommand(t *testing.T) {
	frame, err := Encode(Operation(VerbPictureMode, "0B"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	cmd, err := DecodeCommand(frame)
	if err != nil {
		t.Fatalf("DecodeCommand failed: %v", err)
	}
	if cmd.Kind != KindOperation {
		t.Errorf("kind = %s, want operation", cmd.Kind)
	}
	if cmd.Body != "PMPM0B" {
		t.Errorf("body = %q, want %q", cmd.Body, "PMPM0B")
	}
	if !cmd.HasPrefix(VerbPictureMode) || cmd.HasPrefix(VerbPower) {
		t.Error("HasPrefix gave the wrong answer")
	}

	if _, err := DecodeCommand(EncodeReply(OutcomeAcknowledged, "PW", nil)); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("reply frame decoded as command: %v", err)
	}
}

func TestSplitFrame(t *testing.T) {
	buf := []byte{0x06, 0x89, 0x01, 'P', 'W', 0x0A, 0x40, 0x89}

	frame, rest, ok := splitFrame(buf)
	if !ok {
		t.Fatal("expected a complete frame")
	}
	if !bytes.Equal(frame, buf[:6]) {
		t.Errorf("frame = % X", frame)
	}
	if !bytes.Equal(rest, buf[6:]) {
		t.Errorf("rest = % X", rest)
	}

	if _, _, ok := splitFrame(rest); ok {
		t.Error("partial frame reported complete")
	}
}

func TestReply_Acknowledged(t *testing.T) {
	if !(Reply{Outcome: OutcomeAcknowledged}).Acknowledged() {
		t.Error("ACK not acknowledged")
	}
	if !(Reply{Outcome: OutcomeData}).Acknowledged() {
		t.Error("DATA not acknowledged")
	}
	if (Reply{Outcome: OutcomeRejected}).Acknowledged() {
		t.Error("NAK acknowledged")
	}
}
