// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sessbridge

import "code.hybscloud.com/atomix"

// Task is a unit of work run on an Executor's worker.
type Task func()

// Cancellable is a best-effort cancellation token for scheduled work.
type Cancellable interface {
	Cancel()
}

// Handle is the Cancellable returned by Executor.SubmitDelayed.
//
// The state word starts at zero. Cancel and the executor both
// increment it; whichever observes 1 owns the task. This is the
// pending→cancelled / pending→running transition: a task that lost the
// race is never run, and a Cancel that lost the race is ignored.
type Handle struct {
	task  Task
	state atomix.Uint32
}

func newHandle(task Task) *Handle {
	return &Handle{task: task}
}

// Cancel prevents the task from running if it has not started yet.
// Idempotent. Has no effect on a task that started or completed.
func (h *Handle) Cancel() {
	if h == nil {
		return
	}
	h.claim()
}

// claim reports whether the caller won the task.
func (h *Handle) claim() bool {
	return h.state.Add(1) == 1
}

var _ Cancellable = (*Handle)(nil)
