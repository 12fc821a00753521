// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package jvc implements the external control protocol of JVC D-ILA projectors.
//
// The projector accepts operation commands (actions acknowledged with an ACK
// frame) and reference commands, called inquiries here, which are answered with
// an ACK followed by a data frame. The device handles one exchange at a time and
// frequently stays silent instead of reporting a failure, so every exchange goes
// through a single FIFO gate and is bounded by a deadline.
//
// This package provides frame encoding/decoding, the network handshake, the
// exchange serializer, state decoding tables, a readiness poller and a Client
// facade that ties them together.
package jvc

import "time"

// Frame header bytes
const (
	HeaderOperation = 0x21 // '!' client operation
	HeaderInquiry   = 0x3F // '?' client reference
	HeaderAck       = 0x06 // device acknowledgement
	HeaderResponse  = 0x40 // '@' device data response
	HeaderNak       = 0x15 // device rejection
	EndByte         = 0x0A
)

// Unit identifier carried by every frame
const (
	UnitID0 = 0x89
	UnitID1 = 0x01
)

// Frame size limits
const (
	headerSize     = 3 // header byte + two unit id bytes
	EchoSize       = 2 // replies echo the first two verb bytes
	AckFrameSize   = headerSize + EchoSize + 1
	MaxFrameSize   = 64
	MaxPayloadSize = MaxFrameSize - headerSize - EchoSize - 1
)

// Network handshake tokens
const (
	HandshakeGreeting = "PJ_OK"
	HandshakeRequest  = "PJREQ"
	HandshakeAck      = "PJACK"
	HandshakeNak      = "PJNAK"
	handshakeToken    = 5
)

// Defaults
const (
	DefaultPort             = 20554
	DefaultTimeout          = 5 * time.Second
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultDialTimeout      = 5 * time.Second
	DefaultLateReplyWindow  = 5 * time.Second
	DefaultPollInterval     = time.Second
	DefaultPollAttempts     = 120
	DefaultBaudRate         = 19200
)
