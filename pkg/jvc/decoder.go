// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jvc

import (
	"bytes"
	"fmt"
)

// Decode parses one complete device frame (end byte included) into a Reply.
//
// Three shapes are recognized:
//
//	ACK   06 89 01 VV 0A
//	NAK   15 89 01 VV 0A
//	DATA  40 89 01 VV <value> 0A
//
// Anything else fails with ErrMalformedFrame.
func Decode(frame []byte) (Reply, error) {
	if err := checkEnvelope(frame); err != nil {
		return Reply{}, err
	}

	raw := append([]byte(nil), frame...)
	body := frame[headerSize : len(frame)-1]

	switch frame[0] {
	case HeaderAck, HeaderNak:
		if len(body) != EchoSize {
			return Reply{}, fmt.Errorf("%w: %d byte body in %s frame (want %d)",
				ErrMalformedFrame, len(body), headerName(frame[0]), EchoSize)
		}
		outcome := OutcomeAcknowledged
		if frame[0] == HeaderNak {
			outcome = OutcomeRejected
		}
		return Reply{Outcome: outcome, Verb: string(body), Raw: raw}, nil

	case HeaderResponse:
		if len(body) <= EchoSize {
			return Reply{}, fmt.Errorf("%w: data frame without value", ErrMalformedFrame)
		}
		return Reply{
			Outcome: OutcomeData,
			Verb:    string(body[:EchoSize]),
			Value:   append([]byte(nil), body[EchoSize:]...),
			Raw:     raw,
		}, nil

	default:
		return Reply{}, fmt.Errorf("%w: unexpected header 0x%02X", ErrMalformedFrame, frame[0])
	}
}

// DecodeCommand parses a client frame (operation or inquiry)
func DecodeCommand(frame []byte) (RawCommand, error) {
	if err := checkEnvelope(frame); err != nil {
		return RawCommand{}, err
	}

	var kind Kind
	switch frame[0] {
	case HeaderOperation:
		kind = KindOperation
	case HeaderInquiry:
		kind = KindInquiry
	default:
		return RawCommand{}, fmt.Errorf("%w: unexpected command header 0x%02X", ErrMalformedFrame, frame[0])
	}

	body := frame[headerSize : len(frame)-1]
	if len(body) < EchoSize {
		return RawCommand{}, fmt.Errorf("%w: command body of %d bytes", ErrMalformedFrame, len(body))
	}
	return RawCommand{Kind: kind, Body: string(body), Raw: append([]byte(nil), frame...)}, nil
}

// checkEnvelope validates length, unit id and the trailing end byte
func checkEnvelope(frame []byte) error {
	if len(frame) < AckFrameSize {
		return fmt.Errorf("%w: %d bytes (min %d)", ErrMalformedFrame, len(frame), AckFrameSize)
	}
	if len(frame) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrMalformedFrame, len(frame), MaxFrameSize)
	}
	if frame[len(frame)-1] != EndByte {
		return fmt.Errorf("%w: missing end byte", ErrMalformedFrame)
	}
	if frame[1] != UnitID0 || frame[2] != UnitID1 {
		return fmt.Errorf("%w: unit id 0x%02X%02X", ErrMalformedFrame, frame[1], frame[2])
	}
	if i := bytes.IndexByte(frame[:len(frame)-1], EndByte); i >= 0 {
		return fmt.Errorf("%w: end byte at offset %d", ErrMalformedFrame, i)
	}
	return nil
}

// splitFrame returns the first complete frame in buf and the remainder
func splitFrame(buf []byte) (frame, rest []byte, ok bool) {
	i := bytes.IndexByte(buf, EndByte)
	if i < 0 {
		return nil, buf, false
	}
	return buf[:i+1], buf[i+1:], true
}

func headerName(b byte) string {
	switch b {
	case HeaderOperation:
		return "operation"
	case HeaderInquiry:
		return "inquiry"
	case HeaderAck:
		return "ACK"
	case HeaderNak:
		return "NAK"
	case HeaderResponse:
		return "response"
	default:
		return fmt.Sprintf("0x%02X", b)
	}
}
