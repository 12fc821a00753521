// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jvc

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Probe performs one inquiry and reports whether the awaited condition holds
type Probe func(ctx context.Context) (bool, error)

// SleepFunc waits for d or until ctx ends
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Poller repeats a probe until it holds, at most MaxAttempts times
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
	Sleep       SleepFunc
	Logger      logrus.FieldLogger
}

// WaitUntil runs probe until it reports true and returns the number of
// attempts made. Attempts are separated by Interval; there is no sleep after
// the last one. A probe error counts as a non-matching attempt, except fatal
// connection errors and ctx cancellation, which end the wait.
func (p Poller) WaitUntil(ctx context.Context, probe Probe) (int, error) {
	if p.MaxAttempts <= 0 {
		return 0, fmt.Errorf("%w: poll attempts must be positive", ErrInvalidConfig)
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	log := p.Logger
	if log == nil {
		log = discardLogger()
	}

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		ok, err := probe(ctx)
		switch {
		case err != nil && IsFatal(err):
			return attempt, err
		case err != nil:
			log.WithError(err).WithField("attempt", attempt).Debug("poll attempt failed")
		case ok:
			return attempt, nil
		}

		if ctx.Err() != nil {
			return attempt, ctx.Err()
		}
		if attempt == p.MaxAttempts {
			break
		}
		if err := sleep(ctx, p.Interval); err != nil {
			return attempt, err
		}
	}

	return p.MaxAttempts, fmt.Errorf("%w: condition not met after %d attempts", ErrReadinessTimeout, p.MaxAttempts)
}
