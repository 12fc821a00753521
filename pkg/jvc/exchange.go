// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jvc

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// ExchangeRecord describes one completed exchange, successful or not
type ExchangeRecord struct {
	Seq      uint64        `cbor:"1,keyasint"`
	Started  time.Time     `cbor:"2,keyasint"`
	Duration time.Duration `cbor:"3,keyasint"`
	Kind     Kind          `cbor:"4,keyasint"`
	Verb     string        `cbor:"5,keyasint"`
	Payload  string        `cbor:"6,keyasint,omitempty"`
	Sent     []byte        `cbor:"7,keyasint"`
	Received [][]byte      `cbor:"8,keyasint,omitempty"`
	Outcome  string        `cbor:"9,keyasint,omitempty"`
	Value    []byte        `cbor:"10,keyasint,omitempty"`
	Error    string        `cbor:"11,keyasint,omitempty"`
	Session  string        `cbor:"12,keyasint,omitempty"`

	// Err is the error returned to the caller; not persisted
	Err error `cbor:"-"`
}

// Observer receives a record after every exchange. Implementations must not
// block; they run while the gate is still held.
type Observer interface {
	ObserveExchange(rec ExchangeRecord)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(rec ExchangeRecord)

// ObserveExchange calls f(rec)
func (f ObserverFunc) ObserveExchange(rec ExchangeRecord) { f(rec) }

// MultiObserver fans a record out to several observers
type MultiObserver []Observer

// ObserveExchange forwards rec to every non-nil observer
func (m MultiObserver) ObserveExchange(rec ExchangeRecord) {
	for _, o := range m {
		if o != nil {
			o.ObserveExchange(rec)
		}
	}
}

// SerializerOptions configures a Serializer
type SerializerOptions struct {
	OperationTimeout time.Duration
	InquiryTimeout   time.Duration
	Observer         Observer
	Logger           logrus.FieldLogger

	// LateReplyWindow is how long the frames owed by a timed-out exchange
	// are still expected
	LateReplyWindow time.Duration
}

// Serializer runs exchanges on a Transport one at a time. The protocol has no
// correlation ids: the next frame after a send belongs to that command, so
// exchanges must never overlap.
type Serializer struct {
	transport        *Transport
	gate             *gate
	operationTimeout time.Duration
	inquiryTimeout   time.Duration
	lateWindow       time.Duration
	observer         Observer
	log              logrus.FieldLogger
	seq              atomic.Uint64

	// Held under the gate
	owed []lateReply
}

// lateReply is the part of an answer a timed-out exchange never received.
// The device still sends it, ahead of the replies to later commands.
type lateReply struct {
	echo       string
	kind       Kind
	acked      bool
	generation uint64
	expires    time.Time
}

// settles reports whether reply is the last frame owed
func (l *lateReply) settles(reply Reply) bool {
	if reply.Outcome != OutcomeAcknowledged || l.kind == KindOperation || l.acked {
		return true
	}
	l.acked = true
	return false
}

// NewSerializer creates the exchange gate for transport
func NewSerializer(t *Transport, opts SerializerOptions) *Serializer {
	s := &Serializer{
		transport:        t,
		gate:             newGate(),
		operationTimeout: opts.OperationTimeout,
		inquiryTimeout:   opts.InquiryTimeout,
		lateWindow:       opts.LateReplyWindow,
		observer:         opts.Observer,
		log:              opts.Logger,
	}
	if s.operationTimeout <= 0 {
		s.operationTimeout = DefaultTimeout
	}
	if s.inquiryTimeout <= 0 {
		s.inquiryTimeout = s.operationTimeout
	}
	if s.lateWindow <= 0 {
		s.lateWindow = DefaultLateReplyWindow
	}
	if s.log == nil {
		s.log = discardLogger()
	}
	return s
}

// Execute sends cmd and waits for its reply. Concurrent callers are queued in
// arrival order. A device that does not answer in time yields
// ErrCommandTimedOut, which leaves the connection usable. No retries are made.
//
// A NAK is a definite answer: the Reply has OutcomeRejected and err is nil.
//
// Replies carry only the first two verb bytes, so the late answer of a
// timed-out command cannot be told apart from the answer to a later command
// sharing that prefix. Frames still owed after a timeout are consumed before
// any later exchange accepts a reply.
func (s *Serializer) Execute(ctx context.Context, cmd Command) (Reply, error) {
	frame, err := Encode(cmd)
	if err != nil {
		return Reply{}, err
	}
	timeout := s.timeoutFor(cmd)

	if err := s.gate.acquire(ctx); err != nil {
		return Reply{}, err
	}
	defer s.gate.release()

	rec := ExchangeRecord{
		Seq:     s.seq.Add(1),
		Started: time.Now(),
		Kind:    cmd.Kind,
		Verb:    cmd.Verb,
		Payload: cmd.Payload,
		Sent:    frame,
	}

	reply, err := s.exchange(ctx, cmd, frame, timeout, &rec)
	rec.Duration = time.Since(rec.Started)
	if err != nil {
		rec.Err = err
		rec.Error = err.Error()
	} else {
		rec.Outcome = reply.Outcome.String()
		rec.Value = reply.Value
	}
	if s.observer != nil {
		s.observer.ObserveExchange(rec)
	}

	entry := s.log.WithFields(logrus.Fields{
		"seq":      rec.Seq,
		"command":  cmd.String(),
		"duration": rec.Duration,
	})
	if err != nil {
		entry.WithError(err).Debug("exchange failed")
	} else {
		entry.WithField("reply", reply.String()).Debug("exchange complete")
	}
	return reply, err
}

// Do runs fn while holding the gate. Used to reconnect without racing
// in-flight exchanges.
func (s *Serializer) Do(ctx context.Context, fn func() error) error {
	if err := s.gate.acquire(ctx); err != nil {
		return err
	}
	defer s.gate.release()
	return fn()
}

// Queued returns the number of callers waiting for the gate
func (s *Serializer) Queued() int {
	return s.gate.queued()
}

func (s *Serializer) timeoutFor(cmd Command) time.Duration {
	if cmd.Timeout > 0 {
		return cmd.Timeout
	}
	if cmd.Kind == KindInquiry {
		return s.inquiryTimeout
	}
	return s.operationTimeout
}

func (s *Serializer) exchange(ctx context.Context, cmd Command, frame []byte, timeout time.Duration, rec *ExchangeRecord) (Reply, error) {
	if !s.transport.IsOpen() {
		return Reply{}, fmt.Errorf("%s: %w", cmd, ErrConnectionClosed)
	}
	if n := s.transport.Discard(); n > 0 {
		s.log.WithField("bytes", n).Debug("discarded stale partial frame")
	}
	if err := s.transport.Send(frame); err != nil {
		return Reply{}, fmt.Errorf("%s: %w", cmd, err)
	}

	deadline := time.Now().Add(timeout)
	ctxBound := false
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
		ctxBound = true
	}

	acked := false
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Reply{}, s.timedOut(ctx, cmd, timeout, ctxBound, acked)
		}

		raw, err := s.transport.Receive(remaining)
		if err != nil {
			if errors.Is(err, ErrReceiveTimeout) {
				return Reply{}, s.timedOut(ctx, cmd, timeout, ctxBound, acked)
			}
			return Reply{}, fmt.Errorf("%s: %w", cmd, err)
		}
		rec.Received = append(rec.Received, raw)

		reply, err := Decode(raw)
		if err != nil {
			return Reply{}, fmt.Errorf("%s: %w", cmd, err)
		}

		if s.settleLate(reply) {
			s.log.WithFields(logrus.Fields{
				"command": cmd.String(),
				"reply":   reply.String(),
			}).Debug("consumed late reply")
			continue
		}

		// Any other reply to another verb is stale as well
		if reply.Verb != cmd.Echo() {
			s.log.WithFields(logrus.Fields{
				"command": cmd.String(),
				"reply":   reply.String(),
			}).Debug("skipping stale reply")
			continue
		}

		switch reply.Outcome {
		case OutcomeRejected:
			return reply, nil
		case OutcomeAcknowledged:
			if cmd.Kind == KindOperation {
				return reply, nil
			}
			if acked {
				s.log.WithField("command", cmd.String()).Debug("skipping duplicate ACK")
			}
			acked = true
		case OutcomeData:
			if cmd.Kind == KindOperation {
				return Reply{}, fmt.Errorf("%s: %w: data frame in reply to an operation", cmd, ErrMalformedFrame)
			}
			return reply, nil
		}
	}
}

// settleLate matches reply against the frames still owed by timed-out
// exchanges, oldest first. Caller holds the gate.
func (s *Serializer) settleLate(reply Reply) bool {
	s.pruneLate()
	for i := range s.owed {
		if s.owed[i].echo != reply.Verb {
			continue
		}
		if s.owed[i].settles(reply) {
			s.owed = append(s.owed[:i], s.owed[i+1:]...)
		}
		return true
	}
	return false
}

// LateReplies returns the number of timed-out exchanges whose answer is still
// expected
func (s *Serializer) LateReplies(ctx context.Context) (int, error) {
	if err := s.gate.acquire(ctx); err != nil {
		return 0, err
	}
	defer s.gate.release()
	s.pruneLate()
	return len(s.owed), nil
}

// pruneLate forgets owed frames that expired or belong to an earlier link
func (s *Serializer) pruneLate() {
	now := time.Now()
	generation := s.transport.Generation()
	live := s.owed[:0]
	for _, l := range s.owed {
		if l.generation == generation && now.Before(l.expires) {
			live = append(live, l)
		}
	}
	s.owed = live
}

func (s *Serializer) timedOut(ctx context.Context, cmd Command, timeout time.Duration, ctxBound, acked bool) error {
	s.owed = append(s.owed, lateReply{
		echo:       cmd.Echo(),
		kind:       cmd.Kind,
		acked:      acked,
		generation: s.transport.Generation(),
		expires:    time.Now().Add(s.lateWindow),
	})

	err := ctx.Err()
	if err == nil && ctxBound {
		err = context.DeadlineExceeded
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCommandTimedOut, cmd, err)
	}
	return fmt.Errorf("%w: %s after %s", ErrCommandTimedOut, cmd, timeout)
}
