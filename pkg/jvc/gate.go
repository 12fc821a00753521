// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jvc

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// gate admits one exchange at a time. Waiters are admitted in the order they
// called acquire; a waiter whose context ends leaves the queue.
type gate struct {
	sem     *semaphore.Weighted
	waiting atomic.Int32
}

func newGate() *gate {
	return &gate{sem: semaphore.NewWeighted(1)}
}

func (g *gate) acquire(ctx context.Context) error {
	g.waiting.Add(1)
	defer g.waiting.Add(-1)
	return g.sem.Acquire(ctx, 1)
}

func (g *gate) release() {
	g.sem.Release(1)
}

// queued returns the number of callers inside acquire
func (g *gate) queued() int {
	return int(g.waiting.Load())
}
