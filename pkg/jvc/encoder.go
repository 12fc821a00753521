// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jvc

// Encode encodes a Command to wire format:
//
//	header | 0x89 0x01 | verb | payload | 0x0A
//
// The result is ready for transmission.
func Encode(c Command) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	frame := make([]byte, 0, headerSize+len(c.Verb)+len(c.Payload)+1)
	frame = append(frame, c.Kind.header(), UnitID0, UnitID1)
	frame = append(frame, c.Verb...)
	frame = append(frame, c.Payload...)
	frame = append(frame, EndByte)

	return frame, nil
}

// EncodeReply builds a device-side reply frame. Used by the simulated
// projector and tests; outcome selects the header byte.
func EncodeReply(outcome Outcome, echo string, value []byte) []byte {
	var header byte
	switch outcome {
	case OutcomeRejected:
		header = HeaderNak
	case OutcomeData:
		header = HeaderResponse
	default:
		header = HeaderAck
	}

	frame := make([]byte, 0, headerSize+len(echo)+len(value)+1)
	frame = append(frame, header, UnitID0, UnitID1)
	frame = append(frame, echo...)
	if outcome == OutcomeData {
		frame = append(frame, value...)
	}
	frame = append(frame, EndByte)
	return frame
}
