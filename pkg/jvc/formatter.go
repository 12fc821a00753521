// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jvc

import (
	"fmt"
	"strings"
	"time"
)

// FormatFrame renders a frame as "HEADER 89 01 <body>", with the body shown
// as text when printable and hex otherwise
func FormatFrame(frame []byte) string {
	if len(frame) < headerSize {
		return fmt.Sprintf("% X", frame)
	}

	body := frame[headerSize:]
	if n := len(body); n > 0 && body[n-1] == EndByte {
		body = body[:n-1]
	}
	return fmt.Sprintf("%s %02X %02X %s", FormatHeader(frame[0]), frame[1], frame[2], formatBody(body))
}

// FormatHeader returns the human-readable name for a header byte
func FormatHeader(b byte) string {
	switch b {
	case HeaderOperation:
		return "OPERATION"
	case HeaderInquiry:
		return "INQUIRY"
	case HeaderAck:
		return "ACK"
	case HeaderNak:
		return "NAK"
	case HeaderResponse:
		return "RESPONSE"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", b)
	}
}

// FormatRecord formats an exchange record into a human-readable block
func FormatRecord(rec ExchangeRecord) string {
	timestamp := rec.Started.Format("15:04:05.000")
	cmd := Command{Verb: rec.Verb, Kind: rec.Kind, Payload: rec.Payload}

	result := fmt.Sprintf("[%s] #%d %s %s (%s)\n", timestamp, rec.Seq, strings.ToUpper(rec.Kind.String()), cmd, rec.Duration.Round(time.Microsecond))
	result += fmt.Sprintf("  > %s\n", FormatFrame(rec.Sent))
	for _, frame := range rec.Received {
		result += fmt.Sprintf("  < %s\n", FormatFrame(frame))
	}

	switch {
	case rec.Error != "":
		result += fmt.Sprintf("  Error: %s\n", rec.Error)
	case rec.Outcome == OutcomeData.String():
		result += fmt.Sprintf("  Value: %s%s\n", formatBody(rec.Value), describeValue(rec.Verb, rec.Value))
	default:
		result += fmt.Sprintf("  Outcome: %s\n", rec.Outcome)
	}
	return result
}

// describeValue names a reply value when a category maps it
func describeValue(verb string, value []byte) string {
	for _, c := range Categories() {
		if c.Verb() != verb {
			continue
		}
		if s := c.Decode(value); !s.Unknown() {
			return fmt.Sprintf(" (%s %s)", c.Name(), s.Name)
		}
	}
	return ""
}

func formatBody(body []byte) string {
	for _, b := range body {
		if b < 0x20 || b > 0x7E {
			return fmt.Sprintf("% X", body)
		}
	}
	return fmt.Sprintf("%q", body)
}
