// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sessbridge

import (
	"container/heap"
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
)

// Executor runs tasks strictly serially on one dedicated worker
// goroutine, locked to its own OS thread for the executor's lifetime.
//
// Code running inside a task can check IsCalledOnOwnThread to verify it
// is confined to the executor. Session state machines rely on this: all
// of their state is touched only from their executor's worker.
type Executor struct {
	name   string
	logger *slog.Logger

	mu       sync.Mutex
	timers   timerHeap
	seq      uint64
	disposed bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}

	// worker is the goroutine id of the worker. Written once before
	// NewExecutor returns.
	worker uint64

	// running counts task bodies in flight. Anything but 0 or 1
	// means the worker invariant is broken.
	running atomix.Uint32
}

// NewExecutor starts an executor and its worker. It returns once the
// worker is running.
func NewExecutor(name string, opts ...Option) *Executor {
	o := buildOptions(opts)
	e := &Executor{
		name:   name,
		logger: o.logger.With(slog.String("executor", name)),
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	ready := make(chan struct{})
	go e.loop(ready)
	<-ready
	return e
}

// Name returns the name the executor was created with.
func (e *Executor) Name() string { return e.name }

// Done is closed when the worker has exited after Dispose.
func (e *Executor) Done() <-chan struct{} { return e.done }

// SubmitDelayed schedules task to run on the worker no earlier than
// delay from now. It never blocks. Negative delays count as zero.
// Tasks with equal deadlines run in submission order.
//
// Returns ErrDisposed once Dispose has been called.
func (e *Executor) SubmitDelayed(delay time.Duration, task Task) (*Handle, error) {
	if task == nil {
		defect("nil task submitted to %s", e.name)
	}
	h := newHandle(task)
	when := time.Now().Add(max(delay, 0))

	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return nil, ErrDisposed
	}
	e.seq++
	heap.Push(&e.timers, scheduled{when: when, seq: e.seq, handle: h})
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return h, nil
}

// SubmitAndWait runs fn on the worker and blocks until it returns.
//
// An error returned by fn, or a panic raised inside it, is reported as a
// *TaskError. If ctx ends first the wait is abandoned and ctx.Err() is
// returned; fn is not cancelled and may still run, so callers must
// re-check whatever state fn was meant to change. If the executor is
// disposed before fn runs, ErrDisposed is returned.
//
// Calling SubmitAndWait from the executor's own worker would deadlock
// and is treated as a defect.
func (e *Executor) SubmitAndWait(ctx context.Context, fn func() error) error {
	if e.IsCalledOnOwnThread() {
		defect("SubmitAndWait called from %s's own worker", e.name)
	}
	result := make(chan error, 1)
	if _, err := e.SubmitDelayed(0, func() { result <- e.invoke(fn) }); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		// The worker sends before it can exit, so a result is
		// either here now or was never produced.
		select {
		case err := <-result:
			return err
		default:
			return ErrDisposed
		}
	}
}

func (e *Executor) invoke(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TaskError{Executor: e.name, Err: &PanicError{Value: r}}
		}
	}()
	if ferr := fn(); ferr != nil {
		return &TaskError{Executor: e.name, Err: ferr}
	}
	return nil
}

// IsCalledOnOwnThread reports whether the caller is running on this
// executor's worker, i.e. inside one of its tasks.
func (e *Executor) IsCalledOnOwnThread() bool {
	return goid() == e.worker
}

// AssertOnOwnThread panics unless called on the executor's worker.
func (e *Executor) AssertOnOwnThread() {
	if !e.IsCalledOnOwnThread() {
		defect("called off %s's worker", e.name)
	}
}

// Dispose stops the executor. Tasks that have not started are dropped;
// a task that is currently running finishes. Further submissions fail
// with ErrDisposed. Dispose does not wait for the worker; use Done.
// Idempotent.
func (e *Executor) Dispose() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.disposed = true
	dropped := len(e.timers)
	e.timers = nil
	e.mu.Unlock()

	close(e.quit)
	e.logger.Debug("executor disposed", slog.Int("dropped", dropped))
}

func (e *Executor) loop(ready chan<- struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(e.done)

	e.worker = goid()
	close(ready)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		h, wait, ok := e.next(time.Now())
		if !ok {
			return
		}
		if h != nil {
			e.run(h)
			continue
		}

		var fire <-chan time.Time
		if wait > 0 {
			timer.Reset(wait)
			fire = timer.C
		}
		select {
		case <-e.quit:
			return
		case <-e.wake:
		case <-fire:
		}
		timer.Stop()
	}
}

// next pops the next due task. With no due task it returns the time
// until the earliest deadline, or -1 when nothing is scheduled.
// ok is false once the executor is disposed.
func (e *Executor) next(now time.Time) (h *Handle, wait time.Duration, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return nil, 0, false
	}
	if len(e.timers) == 0 {
		return nil, -1, true
	}
	if d := e.timers[0].when.Sub(now); d > 0 {
		return nil, d, true
	}
	s := heap.Pop(&e.timers).(scheduled)
	return s.handle, 0, true
}

func (e *Executor) run(h *Handle) {
	if !h.claim() {
		return
	}
	if e.running.Add(1) != 1 {
		defect("task entered on %s while another task is running", e.name)
	}
	defer e.running.Add(^uint32(0))
	h.task()
}
