// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sessbridge

import (
	"context"
	"sync"
)

// Latch is a one-way gate that opens after a fixed number of
// CountDown calls and then stays open.
type Latch struct {
	mu    sync.Mutex
	count int
	done  chan struct{}
}

// NewLatch returns a latch that opens after count CountDown calls.
// A count of zero or less is open from the start.
func NewLatch(count int) *Latch {
	l := &Latch{count: max(count, 0), done: make(chan struct{})}
	if l.count == 0 {
		close(l.done)
	}
	return l
}

// CountDown records one event. Calls after the latch opened are no-ops.
func (l *Latch) CountDown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count == 0 {
		return
	}
	l.count--
	if l.count == 0 {
		close(l.done)
	}
}

// Count returns the number of events still needed to open the latch.
func (l *Latch) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Done is closed when the latch opens.
func (l *Latch) Done() <-chan struct{} { return l.done }

// Wait blocks until the latch opens or ctx ends. There is no timeout
// of its own.
func (l *Latch) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
