// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sessbridge_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"code.hybscloud.com/sessbridge"
)

// newExecutor returns an executor that is disposed, and whose worker
// has exited, when the test ends.
func newExecutor(tb testing.TB, name string) *sessbridge.Executor {
	tb.Helper()
	e := sessbridge.NewExecutor(name)
	tb.Cleanup(func() {
		e.Dispose()
		<-e.Done()
	})
	return e
}

// onExecutor runs fn on e's worker and waits for it.
func onExecutor(tb testing.TB, e *sessbridge.Executor, fn func()) {
	tb.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := e.SubmitAndWait(ctx, func() error {
		fn()
		return nil
	})
	if err != nil {
		tb.Fatalf("SubmitAndWait on %s: %v", e.Name(), err)
	}
}

// receive waits up to d for a value on ch.
func receive[T any](tb testing.TB, ch <-chan T, d time.Duration) T {
	tb.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(d):
		tb.Fatalf("nothing received within %v", d)
		panic("unreachable")
	}
}

// echoServer is a ServerSignaling that answers every call immediately
// and records calls made off its executor.
type echoServer struct {
	exec      *sessbridge.Executor
	calls     atomic.Int32
	offThread atomic.Int32
}

func (s *echoServer) check() {
	s.calls.Add(1)
	if !s.exec.IsCalledOnOwnThread() {
		s.offThread.Add(1)
	}
}

func (s *echoServer) StartSession(_ sessbridge.RTCConfig, offer string, cb sessbridge.NegotiationCallback) {
	s.check()
	cb("answer to "+offer, nil)
}

func (s *echoServer) Renegotiate(offer string, cb sessbridge.NegotiationCallback) {
	s.check()
	cb("answer to "+offer, nil)
}

func (s *echoServer) IceExchange(candidates []string, cb sessbridge.IceExchangeCallback) {
	s.check()
	cb(candidates, nil)
}
