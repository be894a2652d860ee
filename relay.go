// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sessbridge

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
)

// linkCapacity is the bounded capacity of each relay link.
const linkCapacity = 64

type call func(SignalingReceiver)

type reply func()

// hop is one value in flight on a link, tagged with the id of the
// delivery task scheduled for it.
type hop[T any] struct {
	id uint64
	v  T
}

// link is one direction of a relay. next is confined to the producer's
// worker and arrived to the consumer's.
type link[T any] struct {
	q       lfq.SPSC[hop[T]]
	next    uint64
	arrived map[uint64]T
}

func (l *link[T]) init() {
	l.q.Init(linkCapacity)
	l.arrived = make(map[uint64]T)
}

// take drains the queue and returns the value of hop id. A hop's
// delivery is scheduled only after its value was enqueued, so a
// missing id means the link is broken.
func (l *link[T]) take(id uint64) (T, bool) {
	for {
		h, err := l.q.Dequeue()
		if err != nil {
			break
		}
		l.arrived[h.id] = h.v
	}
	v, ok := l.arrived[id]
	delete(l.arrived, id)
	return v, ok
}

// Relay carries signaling calls from an origin executor to a receiver
// living on a destination executor, and carries each callback back.
// Both hops are delayed by the injected latency.
//
// Calls must be issued on the origin worker. The receiver must invoke
// each callback exactly once, on the destination worker. The caller's
// callback then runs on the origin worker. A hop that cannot be
// scheduled because an executor was disposed, or that was cancelled by
// Close, never happens; its callback never fires.
//
// The two directions are single-producer single-consumer links: the
// origin worker is the only producer of calls and the destination
// worker the only consumer, and the other way round for replies.
// Every hop keeps the delay read when it was issued, so no ordering is
// promised between independent calls once the delay changes.
type Relay struct {
	origin      *Executor
	destination *Executor
	receiver    SignalingReceiver
	logger      *slog.Logger
	poll        time.Duration

	delay atomic.Int64

	calls   link[call]
	replies link[reply]

	// mu guards the handles of scheduled hops and retries.
	mu     sync.Mutex
	seq    uint64
	tasks  map[uint64]*Handle
	closed bool
}

var _ SignalingReceiver = (*Relay)(nil)

// NewRelay binds receiver, which lives on destination, to callers on
// origin. Only WithLogger and WithPollInterval apply.
func NewRelay(origin, destination *Executor, receiver SignalingReceiver, delay time.Duration, opts ...Option) *Relay {
	o := buildOptions(opts)
	r := &Relay{
		origin:      origin,
		destination: destination,
		receiver:    receiver,
		logger: o.logger.With(
			slog.String("origin", origin.Name()),
			slog.String("destination", destination.Name()),
		),
		poll:  o.pollInterval,
		tasks: make(map[uint64]*Handle),
	}
	r.calls.init()
	r.replies.init()
	r.SetDelay(delay)
	return r
}

// Origin returns the executor calls are issued from.
func (r *Relay) Origin() *Executor { return r.origin }

// Destination returns the executor the receiver runs on.
func (r *Relay) Destination() *Executor { return r.destination }

// Delay returns the injected latency per hop.
func (r *Relay) Delay() time.Duration {
	return time.Duration(r.delay.Load())
}

// SetDelay changes the injected latency. Negative values count as zero.
// Calls and replies already issued keep their delay.
func (r *Relay) SetDelay(d time.Duration) {
	r.delay.Store(int64(max(d, 0)))
}

// StartSession relays an offer to the receiver.
func (r *Relay) StartSession(sessionID string, config RTCConfig, offer string, cb NegotiationCallback) {
	r.origin.AssertOnOwnThread()
	r.forward(func(recv SignalingReceiver) {
		recv.StartSession(sessionID, config, offer, r.negotiationReply(cb))
	})
}

// Renegotiate relays a renegotiation offer to the receiver.
func (r *Relay) Renegotiate(sessionID string, offer string, cb NegotiationCallback) {
	r.origin.AssertOnOwnThread()
	r.forward(func(recv SignalingReceiver) {
		recv.Renegotiate(sessionID, offer, r.negotiationReply(cb))
	})
}

// IceExchange relays local ICE candidates to the receiver.
func (r *Relay) IceExchange(sessionID string, candidates []string, cb IceExchangeCallback) {
	r.origin.AssertOnOwnThread()
	r.forward(func(recv SignalingReceiver) {
		recv.IceExchange(sessionID, candidates, r.iceReply(cb))
	})
}

func (r *Relay) negotiationReply(cb NegotiationCallback) NegotiationCallback {
	once := new(atomix.Uint32)
	return func(answer string, err error) {
		r.respond(once, func() { cb(answer, err) })
	}
}

func (r *Relay) iceReply(cb IceExchangeCallback) IceExchangeCallback {
	once := new(atomix.Uint32)
	return func(candidates []string, err error) {
		r.respond(once, func() { cb(candidates, err) })
	}
}

// Close cancels every hop still pending and drops hops issued later.
// Safe to call from any goroutine. Idempotent.
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for _, h := range r.tasks {
		h.Cancel()
	}
	r.logger.Debug("relay closed", slog.Int("cancelled", len(r.tasks)))
	r.tasks = nil
}

// Pending returns the number of hops and retries scheduled but not yet
// run.
func (r *Relay) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

func (r *Relay) forward(c call) {
	transmit(r, r.origin, &r.calls, c, r.destination, func(c call) { c(r.receiver) })
}

func (r *Relay) respond(once *atomix.Uint32, rep reply) {
	r.destination.AssertOnOwnThread()
	if once.Add(1) != 1 {
		defect("relay callback invoked more than once")
	}
	transmit(r, r.destination, &r.replies, rep, r.origin, func(rep reply) { rep() })
}

// transmit issues v on l from the producer's worker. The delay is read
// now and travels with the hop.
func transmit[T any](r *Relay, producer *Executor, l *link[T], v T, consumer *Executor, deliver func(T)) {
	l.next++
	send(r, producer, l, hop[T]{id: l.next, v: v}, r.Delay(), consumer, deliver)
}

// send puts h on the link and schedules its delivery on the consumer
// after delay. A saturated link is retried from the producer after the
// poll interval; the producer's worker is never blocked.
func send[T any](r *Relay, producer *Executor, l *link[T], h hop[T], delay time.Duration, consumer *Executor, deliver func(T)) {
	if err := l.q.Enqueue(&h); err != nil {
		if !iox.IsWouldBlock(err) {
			r.logger.Debug("relay hop dropped", slog.String("err", err.Error()))
			return
		}
		r.schedule(producer, r.poll, func() { send(r, producer, l, h, delay, consumer, deliver) })
		return
	}
	id := h.id
	r.schedule(consumer, delay, func() {
		v, ok := l.take(id)
		if !ok {
			defect("relay delivery on %s found no value for hop %d", consumer.Name(), id)
		}
		deliver(v)
	})
}

// schedule submits task to e and keeps its handle until it runs, so
// Close can cancel it.
func (r *Relay) schedule(e *Executor, delay time.Duration, task Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.logger.Debug("relay hop dropped", slog.String("err", "relay closed"))
		return
	}
	r.seq++
	id := r.seq
	h, err := e.SubmitDelayed(delay, func() {
		r.untrack(id)
		task()
	})
	if err != nil {
		r.logger.Debug("relay hop dropped", slog.String("err", err.Error()))
		return
	}
	r.tasks[id] = h
}

func (r *Relay) untrack(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
}
