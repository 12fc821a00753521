// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jvc

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Statistics is an Observer that tracks exchange outcomes and latency
type Statistics struct {
	mu sync.Mutex

	StartTime time.Time

	// Counters
	Exchanges       uint64
	Acknowledged    uint64
	Data            uint64
	Rejected        uint64
	Timeouts        uint64
	Malformed       uint64
	TransportErrors uint64
	OtherErrors     uint64
	StaleFrames     uint64

	// Latency of completed exchanges
	MinLatency   time.Duration
	MaxLatency   time.Duration
	TotalLatency time.Duration
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{StartTime: time.Now()}
}

// ObserveExchange updates the counters from one exchange record
func (s *Statistics) ObserveExchange(rec ExchangeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Exchanges++

	// Frames beyond the terminal one (and the ACK of an inquiry) were stale
	expected := 1
	if rec.Kind == KindInquiry {
		expected = 2
	}
	if extra := len(rec.Received) - expected; extra > 0 && rec.Err == nil {
		s.StaleFrames += uint64(extra)
	}

	if rec.Err != nil {
		switch {
		case errors.Is(rec.Err, ErrCommandTimedOut):
			s.Timeouts++
		case errors.Is(rec.Err, ErrMalformedFrame):
			s.Malformed++
		case IsFatal(rec.Err):
			s.TransportErrors++
		default:
			s.OtherErrors++
		}
		return
	}

	switch rec.Outcome {
	case OutcomeAcknowledged.String():
		s.Acknowledged++
	case OutcomeData.String():
		s.Data++
	case OutcomeRejected.String():
		s.Rejected++
	}

	completed := s.Acknowledged + s.Data + s.Rejected
	if completed == 1 || rec.Duration < s.MinLatency {
		s.MinLatency = rec.Duration
	}
	if rec.Duration > s.MaxLatency {
		s.MaxLatency = rec.Duration
	}
	s.TotalLatency += rec.Duration
}

// Errors returns the number of exchanges that ended in an error
func (s *Statistics) Errors() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errors()
}

func (s *Statistics) errors() uint64 {
	return s.Timeouts + s.Malformed + s.TransportErrors + s.OtherErrors
}

// Summary is a consistent copy of the headline counters
type Summary struct {
	Exchanges      uint64
	Rejected       uint64
	Errors         uint64
	AverageLatency time.Duration
}

// Summary returns the headline counters under one lock
func (s *Statistics) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summary{
		Exchanges:      s.Exchanges,
		Rejected:       s.Rejected,
		Errors:         s.errors(),
		AverageLatency: s.averageLatency(),
	}
}

// AverageLatency returns the mean latency of completed exchanges
func (s *Statistics) AverageLatency() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.averageLatency()
}

func (s *Statistics) averageLatency() time.Duration {
	completed := s.Acknowledged + s.Data + s.Rejected
	if completed == 0 {
		return 0
	}
	return s.TotalLatency / time.Duration(completed)
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	percent := func(n uint64) float64 {
		if s.Exchanges == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.Exchanges)
	}

	elapsed := time.Since(s.StartTime)
	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Exchanges:       %8d\n", s.Exchanges)
	result += fmt.Sprintf("Acknowledged:    %8d (%.1f%%)\n", s.Acknowledged, percent(s.Acknowledged))
	result += fmt.Sprintf("Data Replies:    %8d (%.1f%%)\n", s.Data, percent(s.Data))

	if s.Rejected > 0 {
		result += fmt.Sprintf("Rejected:        %8d (%.1f%%)\n", s.Rejected, percent(s.Rejected))
	}
	if s.Timeouts > 0 {
		result += fmt.Sprintf("Timeouts:        %8d (%.1f%%)\n", s.Timeouts, percent(s.Timeouts))
	}
	if s.Malformed > 0 {
		result += fmt.Sprintf("Malformed:       %8d (%.1f%%)\n", s.Malformed, percent(s.Malformed))
	}
	if s.TransportErrors > 0 {
		result += fmt.Sprintf("Transport Errs:  %8d (%.1f%%)\n", s.TransportErrors, percent(s.TransportErrors))
	}
	if s.OtherErrors > 0 {
		result += fmt.Sprintf("Other Errors:    %8d (%.1f%%)\n", s.OtherErrors, percent(s.OtherErrors))
	}
	if s.StaleFrames > 0 {
		result += fmt.Sprintf("Stale Frames:    %8d\n", s.StaleFrames)
	}

	result += fmt.Sprintf("Latency:         min %s / avg %s / max %s\n",
		s.MinLatency.Round(time.Microsecond),
		s.averageLatency().Round(time.Microsecond),
		s.MaxLatency.Round(time.Microsecond))
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StartTime = time.Now()
	s.Exchanges = 0
	s.Acknowledged = 0
	s.Data = 0
	s.Rejected = 0
	s.Timeouts = 0
	s.Malformed = 0
	s.TransportErrors = 0
	s.OtherErrors = 0
	s.StaleFrames = 0
	s.MinLatency = 0
	s.MaxLatency = 0
	s.TotalLatency = 0
}

var _ Observer = (*Statistics)(nil)
