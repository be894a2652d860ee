// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package sessbridge runs the client and server halves of a session
// negotiation in one process, each confined to its own executor, and
// connects them as if over an asynchronous, possibly latent transport.
// Values are passed directly; nothing is serialized.
//
// # Architecture
//
//   - Executor: one worker goroutine locked to an OS thread, running tasks strictly serially.
//     [Executor.SubmitDelayed] returns a cancellable [Handle]; [Executor.SubmitAndWait] blocks.
//     [Executor.IsCalledOnOwnThread] exposes thread affinity to the code it runs.
//   - Relay: [Relay] hops each signaling call from the origin executor to the destination
//     executor and the callback back again, after an injected delay. Both directions are
//     lock-free SPSC links from [code.hybscloud.com/lfq].
//   - Adapter: [AdaptServer] and [BindSession] convert between the session-addressed
//     [SignalingReceiver] and the single-session [ServerSignaling].
//   - Control channel: session-typed handshake over [ControlEndpoint] pairs, written as
//     [code.hybscloud.com/kont] effects and stepped on executors with [Drive].
//   - Bridge: [Bridge] owns both executors and sessions and exposes gates for tests.
//
// # Errors
//
// Broken invariants (affinity violations, double entry, a callback
// invoked twice, configuration changed while active) panic. Operations
// on disposed instances return [ErrDisposed]. Failures inside a task
// passed to [Executor.SubmitAndWait] come back as [*TaskError].
// A control channel effect that can no longer complete because the
// channel was closed fails with [ErrChannelClosed].
//
// # Example
//
//	b, _ := sessbridge.NewBridge("server-socket", "client-socket")
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	_ = b.Start(ctx, sessbridge.DefaultRTCConfig())
//	_ = b.AwaitNegotiated(ctx)
//	_ = b.AwaitControlChannelOpened(ctx)
//	_ = b.Stop(ctx)
//	_ = b.Dispose()
package sessbridge
