// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jvc

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"
)

func sampleRecords() []ExchangeRecord {
	started := time.Date(2025, 3, 1, 20, 15, 0, 123456789, time.UTC)
	sent, _ := Encode(PictureModes.Inquiry())
	return []ExchangeRecord{
		{
			Seq:      1,
			Started:  started,
			Duration: 12 * time.Millisecond,
			Kind:     KindInquiry,
			Verb:     VerbPictureMode,
			Sent:     sent,
			Received: [][]byte{
				EncodeReply(OutcomeAcknowledged, "PM", nil),
				EncodeReply(OutcomeData, "PM", []byte("01")),
			},
			Outcome: OutcomeData.String(),
			Value:   []byte("01"),
		},
		{
			Seq:      2,
			Started:  started.Add(time.Second),
			Duration: 5 * time.Second,
			Kind:     KindOperation,
			Verb:     VerbPower,
			Payload:  "1",
			Sent:     []byte("!\x89\x01PW1\n"),
			Error:    "jvc: command timed out: !PW1 after 5s",
			Err:      ErrCommandTimedOut,
		},
	}
}

func TestCapture_ReadBack(t *testing.T) {
	var buf bytes.Buffer
	w := NewCaptureWriter(&buf)
	for _, rec := range sampleRecords() {
		w.ObserveExchange(rec)
	}
	if err := w.Err(); err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if w.Count() != 2 {
		t.Errorf("Count() = %d, want 2", w.Count())
	}

	var got []ExchangeRecord
	err := ReadCapture(&buf, func(rec ExchangeRecord) error {
		got = append(got, rec)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadCapture failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("read %d records, want 2", len(got))
	}

	want := sampleRecords()
	for i := range want {
		if got[i].Session != w.Session() {
			t.Errorf("record %d: session %q, want %q", i, got[i].Session, w.Session())
		}
		if !got[i].Started.Equal(want[i].Started) {
			t.Errorf("record %d: started %s, want %s", i, got[i].Started, want[i].Started)
		}
		if got[i].Seq != want[i].Seq || got[i].Verb != want[i].Verb || got[i].Kind != want[i].Kind {
			t.Errorf("record %d: header mismatch: %+v", i, got[i])
		}
	}
	if got[0].Err != nil {
		t.Errorf("record 0: unexpected error %v", got[0].Err)
	}
	if !errors.Is(got[1].Err, ErrCommandTimedOut) {
		t.Errorf("record 1: Err = %v, want ErrCommandTimedOut", got[1].Err)
	}
	if len(got[0].Received) != 2 || !bytes.Equal(got[0].Received[1], want[0].Received[1]) {
		t.Errorf("received frames not preserved: %q", got[0].Received)
	}
	if got[1].Error != want[1].Error {
		t.Errorf("error text = %q, want %q", got[1].Error, want[1].Error)
	}
}

func TestCapture_StatisticsFromReadBack(t *testing.T) {
	var buf bytes.Buffer
	w := NewCaptureWriter(&buf)
	for _, rec := range sampleRecords() {
		w.ObserveExchange(rec)
	}

	s := NewStatistics()
	if err := ReadCapture(&buf, func(rec ExchangeRecord) error {
		s.ObserveExchange(rec)
		return nil
	}); err != nil {
		t.Fatalf("ReadCapture failed: %v", err)
	}
	if s.Data != 1 || s.Timeouts != 1 {
		t.Errorf("data=%d timeouts=%d, want 1 and 1", s.Data, s.Timeouts)
	}
}

func TestCapture_SessionsDiffer(t *testing.T) {
	a := NewCaptureWriter(&bytes.Buffer{})
	b := NewCaptureWriter(&bytes.Buffer{})
	if a.Session() == "" || a.Session() == b.Session() {
		t.Errorf("sessions %q and %q should be distinct and non-empty", a.Session(), b.Session())
	}
}

func TestCapture_CallbackErrorStops(t *testing.T) {
	var buf bytes.Buffer
	w := NewCaptureWriter(&buf)
	for _, rec := range sampleRecords() {
		w.ObserveExchange(rec)
	}

	stop := errors.New("stop")
	calls := 0
	err := ReadCapture(&buf, func(ExchangeRecord) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("ReadCapture = %v after %d calls, want stop after 1", err, calls)
	}
}

func TestCapture_Truncated(t *testing.T) {
	var buf bytes.Buffer
	NewCaptureWriter(&buf).ObserveExchange(sampleRecords()[0])
	data := buf.Bytes()[:buf.Len()/2]

	err := ReadCapture(bytes.NewReader(data), func(ExchangeRecord) error { return nil })
	if err == nil {
		t.Fatal("expected an error for a truncated capture")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, fmt.Errorf("disk full") }

func TestCapture_WriteErrorIsKept(t *testing.T) {
	w := NewCaptureWriter(failingWriter{})
	w.ObserveExchange(sampleRecords()[0])
	w.ObserveExchange(sampleRecords()[1])
	if w.Err() == nil {
		t.Error("write error not reported")
	}
	if w.Count() != 0 {
		t.Errorf("Count() = %d after failed writes", w.Count())
	}
}

func TestStatistics(t *testing.T) {
	s := NewStatistics()
	for _, rec := range sampleRecords() {
		s.ObserveExchange(rec)
	}
	s.ObserveExchange(ExchangeRecord{Kind: KindOperation, Outcome: OutcomeAcknowledged.String(), Duration: 4 * time.Millisecond, Received: [][]byte{{}}})
	s.ObserveExchange(ExchangeRecord{Kind: KindOperation, Outcome: OutcomeRejected.String(), Duration: 8 * time.Millisecond, Received: [][]byte{{}}})
	s.ObserveExchange(ExchangeRecord{Kind: KindInquiry, Err: fmt.Errorf("?PW: %w", ErrMalformedFrame)})
	s.ObserveExchange(ExchangeRecord{Kind: KindInquiry, Err: ErrConnectionClosed})
	// Two stale frames ahead of the inquiry's ACK and data
	s.ObserveExchange(ExchangeRecord{Kind: KindInquiry, Outcome: OutcomeData.String(), Duration: 20 * time.Millisecond, Received: make([][]byte, 4)})

	if s.Exchanges != 7 {
		t.Errorf("Exchanges = %d, want 7", s.Exchanges)
	}
	if s.Data != 2 || s.Acknowledged != 1 || s.Rejected != 1 {
		t.Errorf("outcomes data=%d ack=%d nak=%d", s.Data, s.Acknowledged, s.Rejected)
	}
	if s.Timeouts != 1 || s.Malformed != 1 || s.TransportErrors != 1 {
		t.Errorf("errors timeouts=%d malformed=%d transport=%d", s.Timeouts, s.Malformed, s.TransportErrors)
	}
	if s.Errors() != 3 {
		t.Errorf("Errors() = %d, want 3", s.Errors())
	}
	if s.StaleFrames != 2 {
		t.Errorf("StaleFrames = %d, want 2", s.StaleFrames)
	}
	if s.MinLatency != 4*time.Millisecond || s.MaxLatency != 20*time.Millisecond {
		t.Errorf("latency min=%s max=%s", s.MinLatency, s.MaxLatency)
	}
	if avg := s.AverageLatency(); avg != 11*time.Millisecond {
		t.Errorf("AverageLatency() = %s, want 11ms", avg)
	}
	if s.String() == "" {
		t.Error("empty summary")
	}
	if sum := s.Summary(); sum.Exchanges != 7 || sum.Errors != 3 || sum.Rejected != 1 || sum.AverageLatency != 11*time.Millisecond {
		t.Errorf("Summary() = %+v", sum)
	}

	s.Reset()
	if s.Exchanges != 0 || s.Errors() != 0 || s.AverageLatency() != 0 {
		t.Error("Reset left counters behind")
	}
}

func TestFormatFrame(t *testing.T) {
	tests := []struct {
		frame    []byte
		expected string
	}{
		{[]byte("!\x89\x01PW1\n"), `OPERATION 89 01 "PW1"`},
		{[]byte("?\x89\x01PMPM\n"), `INQUIRY 89 01 "PMPM"`},
		{EncodeReply(OutcomeAcknowledged, "PW", nil), `ACK 89 01 "PW"`},
		{EncodeReply(OutcomeRejected, "PW", nil), `NAK 89 01 "PW"`},
		{[]byte("@\x89\x01SC\x00\n"), "RESPONSE 89 01 53 43 00"},
		{[]byte{0x06, 0x0A}, "06 0A"},
	}

	for _, tt := range tests {
		if got := FormatFrame(tt.frame); got != tt.expected {
			t.Errorf("FormatFrame(% X) = %q, want %q", tt.frame, got, tt.expected)
		}
	}
}

func TestFormatRecord(t *testing.T) {
	recs := sampleRecords()

	out := FormatRecord(recs[0])
	for _, want := range []string{"#1", "INQUIRY", "?PMPM", `< RESPONSE 89 01 "PM01"`, "(picture_mode cinema)"} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("FormatRecord output missing %q:\n%s", want, out)
		}
	}

	out = FormatRecord(recs[1])
	if !bytes.Contains([]byte(out), []byte("Error: jvc: command timed out")) {
		t.Errorf("FormatRecord output missing the error:\n%s", out)
	}
}
