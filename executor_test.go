// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sessbridge_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"code.hybscloud.com/sessbridge"
)

func TestExecutorAffinity(t *testing.T) {
	e := newExecutor(t, "worker")
	other := newExecutor(t, "other")

	if e.IsCalledOnOwnThread() {
		t.Fatal("creating goroutine reported as the worker")
	}

	inside := make(chan [2]bool, 1)
	if _, err := e.SubmitDelayed(0, func() {
		inside <- [2]bool{e.IsCalledOnOwnThread(), other.IsCalledOnOwnThread()}
	}); err != nil {
		t.Fatalf("SubmitDelayed: %v", err)
	}
	got := receive(t, inside, 5*time.Second)
	if !got[0] {
		t.Fatal("task body not reported as running on its executor")
	}
	if got[1] {
		t.Fatal("task body reported as running on another executor")
	}

	fromGoroutine := make(chan bool, 1)
	go func() { fromGoroutine <- e.IsCalledOnOwnThread() }()
	if receive(t, fromGoroutine, 5*time.Second) {
		t.Fatal("foreign goroutine reported as the worker")
	}
}

func TestExecutorAssertOnOwnThread(t *testing.T) {
	e := newExecutor(t, "worker")

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("AssertOnOwnThread did not panic off the worker")
		}
		if !strings.Contains(r.(string), "worker") {
			t.Fatalf("panic %q does not name the executor", r)
		}
	}()
	e.AssertOnOwnThread()
}

func TestExecutorSerialExecution(t *testing.T) {
	e := newExecutor(t, "serial")

	const producers, perProducer = 8, 50
	var inFlight, overlap, offThread atomic.Int32
	var wg sync.WaitGroup
	wg.Add(producers * perProducer)
	for p := 0; p < producers; p++ {
		go func() {
			for i := 0; i < perProducer; i++ {
				_, err := e.SubmitDelayed(time.Duration(i%3)*time.Millisecond, func() {
					defer wg.Done()
					if inFlight.Add(1) != 1 {
						overlap.Add(1)
					}
					if !e.IsCalledOnOwnThread() {
						offThread.Add(1)
					}
					inFlight.Add(-1)
				})
				if err != nil {
					t.Errorf("SubmitDelayed: %v", err)
					wg.Done()
				}
			}
		}()
	}
	wg.Wait()

	if overlap.Load() != 0 {
		t.Fatalf("%d tasks overlapped", overlap.Load())
	}
	if offThread.Load() != 0 {
		t.Fatalf("%d tasks ran off the worker", offThread.Load())
	}
}

func TestExecutorOrdering(t *testing.T) {
	e := newExecutor(t, "order")

	// Confined to the worker.
	var order []int
	for i := 0; i < 20; i++ {
		if _, err := e.SubmitDelayed(0, func() { order = append(order, i) }); err != nil {
			t.Fatalf("SubmitDelayed: %v", err)
		}
	}
	if _, err := e.SubmitDelayed(30*time.Millisecond, func() { order = append(order, 100) }); err != nil {
		t.Fatalf("SubmitDelayed: %v", err)
	}
	if _, err := e.SubmitDelayed(10*time.Millisecond, func() { order = append(order, 50) }); err != nil {
		t.Fatalf("SubmitDelayed: %v", err)
	}

	done := make(chan []int, 1)
	if _, err := e.SubmitDelayed(60*time.Millisecond, func() { done <- order }); err != nil {
		t.Fatalf("SubmitDelayed: %v", err)
	}
	got := receive(t, done, 5*time.Second)

	if len(got) != 22 {
		t.Fatalf("ran %d tasks, want 22", len(got))
	}
	for i := 0; i < 20; i++ {
		if got[i] != i {
			t.Fatalf("zero-delay task %d ran at position %d", got[i], i)
		}
	}
	if got[20] != 50 || got[21] != 100 {
		t.Fatalf("delayed tasks ran as %v, want [50 100]", got[20:])
	}
}

func TestExecutorDelayIsRespected(t *testing.T) {
	e := newExecutor(t, "delay")

	start := time.Now()
	ran := make(chan time.Duration, 1)
	if _, err := e.SubmitDelayed(40*time.Millisecond, func() { ran <- time.Since(start) }); err != nil {
		t.Fatalf("SubmitDelayed: %v", err)
	}
	if elapsed := receive(t, ran, 5*time.Second); elapsed < 40*time.Millisecond {
		t.Fatalf("task ran after %v, want at least 40ms", elapsed)
	}
}

func TestHandleCancelBeforeRun(t *testing.T) {
	e := newExecutor(t, "cancel")

	var ran atomic.Bool
	h, err := e.SubmitDelayed(time.Second, func() { ran.Store(true) })
	if err != nil {
		t.Fatalf("SubmitDelayed: %v", err)
	}
	h.Cancel()
	h.Cancel() // idempotent

	// Anything due after the cancelled deadline proves it was skipped.
	after := make(chan struct{})
	if _, err := e.SubmitDelayed(time.Second+10*time.Millisecond, func() { close(after) }); err != nil {
		t.Fatalf("SubmitDelayed: %v", err)
	}
	receive(t, after, 5*time.Second)

	if ran.Load() {
		t.Fatal("cancelled task ran")
	}
}

func TestHandleCancelAfterStart(t *testing.T) {
	e := newExecutor(t, "cancel-late")

	started := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan struct{})
	h, err := e.SubmitDelayed(0, func() {
		close(started)
		<-release
		close(finished)
	})
	if err != nil {
		t.Fatalf("SubmitDelayed: %v", err)
	}
	receive(t, started, 5*time.Second)
	h.Cancel()
	close(release)
	receive(t, finished, 5*time.Second)
}

func TestHandleCancelNil(t *testing.T) {
	var h *sessbridge.Handle
	h.Cancel()
}

func TestExecutorDisposeDropsPending(t *testing.T) {
	e := sessbridge.NewExecutor("drain")

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		if _, err := e.SubmitDelayed(200*time.Millisecond, func() { ran.Add(1) }); err != nil {
			t.Fatalf("SubmitDelayed: %v", err)
		}
	}
	e.Dispose()
	receive(t, e.Done(), 5*time.Second)

	if n := ran.Load(); n != 0 {
		t.Fatalf("%d pending tasks ran after Dispose", n)
	}
	if _, err := e.SubmitDelayed(0, func() {}); !errors.Is(err, sessbridge.ErrDisposed) {
		t.Fatalf("SubmitDelayed after Dispose: got %v, want ErrDisposed", err)
	}
	e.Dispose() // idempotent
}

func TestExecutorDisposeLetsRunningTaskFinish(t *testing.T) {
	e := sessbridge.NewExecutor("running")

	started := make(chan struct{})
	release := make(chan struct{})
	var finished, followUp atomic.Bool
	if _, err := e.SubmitDelayed(0, func() {
		close(started)
		<-release
		finished.Store(true)
	}); err != nil {
		t.Fatalf("SubmitDelayed: %v", err)
	}
	if _, err := e.SubmitDelayed(0, func() { followUp.Store(true) }); err != nil {
		t.Fatalf("SubmitDelayed: %v", err)
	}

	receive(t, started, 5*time.Second)
	e.Dispose()
	close(release)
	receive(t, e.Done(), 5*time.Second)

	if !finished.Load() {
		t.Fatal("running task did not finish")
	}
	if followUp.Load() {
		t.Fatal("queued task ran after Dispose")
	}
}

func TestSubmitAndWait(t *testing.T) {
	e := newExecutor(t, "sync")

	var onWorker bool
	err := e.SubmitAndWait(context.Background(), func() error {
		onWorker = e.IsCalledOnOwnThread()
		return nil
	})
	if err != nil {
		t.Fatalf("SubmitAndWait: %v", err)
	}
	if !onWorker {
		t.Fatal("SubmitAndWait task ran off the worker")
	}
}

func TestSubmitAndWaitWrapsFailure(t *testing.T) {
	e := newExecutor(t, "failing")

	boom := errors.New("boom")
	err := e.SubmitAndWait(context.Background(), func() error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want wrapped boom", err)
	}
	var te *sessbridge.TaskError
	if !errors.As(err, &te) || te.Executor != "failing" {
		t.Fatalf("got %#v, want *TaskError from failing", err)
	}

	err = e.SubmitAndWait(context.Background(), func() error { panic("kaboom") })
	var pe *sessbridge.PanicError
	if !errors.As(err, &pe) || pe.Value != "kaboom" {
		t.Fatalf("got %v, want *PanicError(kaboom)", err)
	}

	// The worker survives a recovered panic.
	if err := e.SubmitAndWait(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("SubmitAndWait after panic: %v", err)
	}
}

func TestSubmitAndWaitContextAbandonsWait(t *testing.T) {
	e := newExecutor(t, "interrupted")

	release := make(chan struct{})
	if _, err := e.SubmitDelayed(0, func() { <-release }); err != nil {
		t.Fatalf("SubmitDelayed: %v", err)
	}

	ran := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := e.SubmitAndWait(ctx, func() error {
		close(ran)
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want DeadlineExceeded", err)
	}

	close(release)
	receive(t, ran, 5*time.Second)
}

func TestSubmitAndWaitDisposed(t *testing.T) {
	e := sessbridge.NewExecutor("gone")

	release := make(chan struct{})
	started := make(chan struct{})
	if _, err := e.SubmitDelayed(0, func() {
		close(started)
		<-release
	}); err != nil {
		t.Fatalf("SubmitDelayed: %v", err)
	}
	receive(t, started, 5*time.Second)

	result := make(chan error, 1)
	go func() {
		result <- e.SubmitAndWait(context.Background(), func() error { return nil })
	}()
	// Let the waiter enqueue before disposal.
	time.Sleep(10 * time.Millisecond)
	e.Dispose()
	close(release)

	if err := receive(t, result, 5*time.Second); !errors.Is(err, sessbridge.ErrDisposed) {
		t.Fatalf("got %v, want ErrDisposed", err)
	}
	if err := e.SubmitAndWait(context.Background(), func() error { return nil }); !errors.Is(err, sessbridge.ErrDisposed) {
		t.Fatalf("after Dispose: got %v, want ErrDisposed", err)
	}
}

func TestSubmitAndWaitFromOwnWorkerPanics(t *testing.T) {
	e := newExecutor(t, "reentrant")

	recovered := make(chan any, 1)
	if _, err := e.SubmitDelayed(0, func() {
		defer func() { recovered <- recover() }()
		_ = e.SubmitAndWait(context.Background(), func() error { return nil })
	}); err != nil {
		t.Fatalf("SubmitDelayed: %v", err)
	}
	if r := receive(t, recovered, 5*time.Second); r == nil {
		t.Fatal("SubmitAndWait from its own worker did not panic")
	}
}
