// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sessbridge

import (
	"errors"
	"fmt"
)

var (
	// ErrDisposed is returned by operations on a disposed executor,
	// factory, or bridge. The instance cannot be reused.
	ErrDisposed = errors.New("sessbridge: already disposed")

	// ErrSessionClosed is reported to signaling callbacks that arrive
	// after the receiving session closed itself or was disposed.
	ErrSessionClosed = errors.New("sessbridge: session closed")

	// ErrAlreadyStarted is reported when StartSession is relayed to a
	// server session that already negotiated.
	ErrAlreadyStarted = errors.New("sessbridge: session already started")

	// ErrNotNegotiated is reported when Renegotiate or IceExchange reach
	// a server session before StartSession.
	ErrNotNegotiated = errors.New("sessbridge: session not negotiated")

	// ErrInvalidOffer is reported for offers that carry no session token.
	ErrInvalidOffer = errors.New("sessbridge: invalid offer")

	// ErrFactoryInUse is returned by SessionFactory.Dispose while
	// sessions created from it are still alive.
	ErrFactoryInUse = errors.New("sessbridge: factory has live sessions")

	// ErrInvalidSocketName is returned by NewBridge for empty socket names.
	ErrInvalidSocketName = errors.New("sessbridge: invalid socket name")

	// ErrChannelClosed is returned by a control channel effect that can
	// no longer complete because the channel was closed.
	ErrChannelClosed = errors.New("sessbridge: control channel closed")
)

// TaskError wraps a failure raised by a task passed to SubmitAndWait.
// Err is either the error the task returned or a *PanicError.
type TaskError struct {
	Executor string
	Err      error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("sessbridge: task on %s failed: %v", e.Executor, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// PanicError carries the value recovered from a panicking task.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// defect reports a broken invariant. Defects are never recovered by
// the package itself.
func defect(format string, args ...any) {
	panic("sessbridge: " + fmt.Sprintf(format, args...))
}
