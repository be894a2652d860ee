// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sessbridge

import (
	"log/slog"
	"time"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
)

// Step evaluates a control channel protocol until the first effect
// suspension. The protocol is reified into the Expr world once, so
// each later step is a frame walk rather than a closure call.
// Returns (result, nil) on completion, or (zero, suspension) if pending.
func Step[R any](protocol kont.Eff[R]) (R, *kont.Suspension[R]) {
	return kont.StepExpr(kont.Reify(protocol))
}

// Advance dispatches the suspended control channel effect on ep.
// DispatchChannel is non-blocking: it returns iox.ErrWouldBlock when
// the bounded SPSC queue cannot make progress (the I/O boundary), and
// ErrChannelClosed once the channel was closed.
//
// On success (nil error), the suspension is consumed and the protocol
// advances to the next effect or completion.
// On any error, the suspension is returned unconsumed. After
// iox.ErrWouldBlock it may be retried once the peer made progress.
func Advance[R any](ep *ControlEndpoint, susp *kont.Suspension[R]) (R, *kont.Suspension[R], error) {
	cop, ok := susp.Op().(channelDispatcher)
	if !ok {
		panic("sessbridge: unhandled effect in Advance")
	}
	v, err := cop.DispatchChannel(&ep.ctx)
	if err != nil {
		var zero R
		return zero, susp, err
	}
	result, next := susp.Resume(v)
	return result, next, nil
}

// Drive runs protocol on ep from exec's worker without ever blocking
// it. Each task advances as far as the peer allows; on
// iox.ErrWouldBlock the next attempt is posted to exec after poll.
//
// done runs on exec exactly once, with the result or with the error
// that stopped the protocol (ErrChannelClosed when the peer closed the
// channel before the protocol could finish). A cancelled drive never
// calls done.
//
// Drive must be called on exec's worker, and so must Cancel on the
// returned token.
func Drive[R any](exec *Executor, ep *ControlEndpoint, protocol kont.Eff[R], poll time.Duration, done func(R, error)) Cancellable {
	exec.AssertOnOwnThread()
	d := &driver[R]{exec: exec, ep: ep, poll: poll, done: done}
	result, susp := Step(protocol)
	if susp == nil {
		d.finished = true
		done(result, nil)
		return d
	}
	d.susp = susp
	d.step()
	return d
}

type driver[R any] struct {
	exec     *Executor
	ep       *ControlEndpoint
	susp     *kont.Suspension[R]
	poll     time.Duration
	done     func(R, error)
	finished bool
}

func (d *driver[R]) step() {
	if d.finished {
		return
	}
	for {
		result, next, err := Advance(d.ep, d.susp)
		if err != nil {
			if !iox.IsWouldBlock(err) {
				d.finish()
				var zero R
				d.done(zero, err)
				return
			}
			if _, err := d.exec.SubmitDelayed(d.poll, d.step); err != nil {
				d.exec.logger.Debug("control channel drive dropped", slog.String("err", err.Error()))
			}
			return
		}
		d.susp = next
		if next == nil {
			d.finished = true
			d.done(result, nil)
			return
		}
	}
}

func (d *driver[R]) finish() {
	d.finished = true
	if d.susp != nil {
		d.susp.Discard()
		d.susp = nil
	}
}

// Cancel stops the drive. Pending steps become no-ops.
func (d *driver[R]) Cancel() {
	d.exec.AssertOnOwnThread()
	if d.finished {
		return
	}
	d.finish()
}
