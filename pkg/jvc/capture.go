// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jvc

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

var (
	captureEncMode cbor.EncMode
	captureDecMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	captureEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create capture CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	captureDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create capture CBOR decoder mode: %v", err))
	}
}

// CaptureWriter is an Observer that appends every exchange to w as a stream
// of CBOR records. All records of one writer share a session id.
type CaptureWriter struct {
	mu      sync.Mutex
	w       io.Writer
	enc     *cbor.Encoder
	session string
	count   int
	err     error
}

// NewCaptureWriter creates a capture writer with a fresh session id
func NewCaptureWriter(w io.Writer) *CaptureWriter {
	return &CaptureWriter{
		w:       w,
		enc:     captureEncMode.NewEncoder(w),
		session: uuid.NewString(),
	}
}

// Session returns the session id stamped into every record
func (c *CaptureWriter) Session() string { return c.session }

// ObserveExchange encodes rec. Encoding failures do not disturb the
// exchange; the first one is kept and reported by Err.
func (c *CaptureWriter) ObserveExchange(rec ExchangeRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	rec.Session = c.session
	if err := c.enc.Encode(rec); err != nil {
		c.err = err
		return
	}
	c.count++
}

// Count returns the number of records written
func (c *CaptureWriter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Err returns the first write error, if any
func (c *CaptureWriter) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// ReadCapture decodes records from r and calls fn for each until EOF or fn
// returns an error. Err is restored from the recorded error text so errors.Is
// matches the package sentinels.
func ReadCapture(r io.Reader, fn func(rec ExchangeRecord) error) error {
	dec := captureDecMode.NewDecoder(r)
	for {
		var rec ExchangeRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read capture: %w", err)
		}
		if rec.Error != "" {
			rec.Err = restoreError(rec.Error)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

// capturedError is an error read back from a capture
type capturedError struct {
	text     string
	sentinel error
}

func (e *capturedError) Error() string { return e.text }
func (e *capturedError) Unwrap() error { return e.sentinel }

var sentinels = []error{
	ErrCommandTimedOut,
	ErrMalformedFrame,
	ErrConnectionClosed,
	ErrTransportWrite,
	ErrReceiveTimeout,
	ErrRejected,
	ErrInvalidCommand,
	ErrUnknownCommand,
}

func restoreError(text string) error {
	e := &capturedError{text: text}
	for _, s := range sentinels {
		if strings.Contains(text, s.Error()) {
			e.sentinel = s
			break
		}
	}
	return e
}

var _ Observer = (*CaptureWriter)(nil)
