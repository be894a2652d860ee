// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sessbridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type bridgeState uint8

const (
	bridgeIdle bridgeState = iota
	bridgeActive
	bridgeTerminal
)

// Bridge runs a ClientSession and a ServerSession on two executors and
// connects them through a Relay, so negotiation runs as if over an
// asynchronous transport while exchanging plain Go values.
//
// Start, Stop, Dispose and the setters are not safe for concurrent use
// with each other; the harness must serialize them. The Await methods
// and SetMessageDeliveryDelay may be called from any goroutine.
type Bridge struct {
	serverSocket string
	clientSocket string
	logger       *slog.Logger
	opts         []Option

	factory *SessionFactory
	server  *Executor
	client  *Executor

	delay atomic.Int64
	relay atomic.Pointer[Relay]

	serverSession *ServerSession
	clientSession *ClientSession

	state           bridgeState
	serverAutoClose time.Duration
	clientAutoClose time.Duration

	negotiated           *Latch
	controlChannelOpened *Latch
	clientAutoClosed     *Latch
	serverAutoClosed     *Latch

	clientCloses atomic.Int32
	serverCloses atomic.Int32
}

// NewBridge creates an idle bridge with one executor per side.
// The socket names label each side's tunnel and must not be empty.
func NewBridge(serverSocket, clientSocket string, opts ...Option) (*Bridge, error) {
	if serverSocket == "" || clientSocket == "" {
		return nil, ErrInvalidSocketName
	}
	o := buildOptions(opts)
	b := &Bridge{
		serverSocket:         serverSocket,
		clientSocket:         clientSocket,
		logger:               o.logger,
		opts:                 opts,
		factory:              NewSessionFactory(opts...),
		server:               NewExecutor("server", opts...),
		client:               NewExecutor("client", opts...),
		serverAutoClose:      -1,
		clientAutoClose:      -1,
		negotiated:           NewLatch(2),
		controlChannelOpened: NewLatch(2),
		clientAutoClosed:     NewLatch(1),
		serverAutoClosed:     NewLatch(1),
	}
	b.delay.Store(int64(o.delay))
	return b, nil
}

// ServerExecutor returns the executor the server session runs on.
func (b *Bridge) ServerExecutor() *Executor { return b.server }

// ClientExecutor returns the executor the client session runs on.
func (b *Bridge) ClientExecutor() *Executor { return b.client }

// IsStarted reports whether the bridge is active.
func (b *Bridge) IsStarted() bool { return b.state == bridgeActive }

// MessageDeliveryDelay returns the injected latency per relay hop.
func (b *Bridge) MessageDeliveryDelay() time.Duration {
	return time.Duration(b.delay.Load())
}

// SetMessageDeliveryDelay changes the injected latency per relay hop.
// Hops already scheduled keep their delay.
func (b *Bridge) SetMessageDeliveryDelay(d time.Duration) {
	d = max(d, 0)
	b.delay.Store(int64(d))
	if r := b.relay.Load(); r != nil {
		r.SetDelay(d)
	}
}

// SetClientAutoCloseTimeout sets the client's auto-close timeout for
// the next Start. Negative disables it. Must not be called while active.
func (b *Bridge) SetClientAutoCloseTimeout(d time.Duration) {
	if b.IsStarted() {
		defect("client auto-close timeout changed while the bridge is active")
	}
	b.clientAutoClose = d
}

// SetServerAutoCloseTimeout sets the server's auto-close timeout for
// the next Start. Negative disables it. Must not be called while active.
func (b *Bridge) SetServerAutoCloseTimeout(d time.Duration) {
	if b.IsStarted() {
		defect("server auto-close timeout changed while the bridge is active")
	}
	b.serverAutoClose = d
}

// Start creates both sessions, wires the client to the server through
// a relay, and runs the client's start task on the client executor,
// waiting for it to return. Negotiation then proceeds asynchronously.
//
// If ctx ends while waiting the bridge is still marked active and the
// start task may yet run; call Stop to clean up.
func (b *Bridge) Start(ctx context.Context, config RTCConfig) error {
	switch b.state {
	case bridgeActive:
		defect("bridge started twice")
	case bridgeTerminal:
		return ErrDisposed
	}

	server, err := NewServerSession(b.factory, b.server, SessionOptions{
		SocketName:       b.serverSocket,
		AutoCloseTimeout: b.serverAutoClose,
		Hooks:            b.hooks(ServerSide, b.serverAutoClosed, &b.serverCloses),
	}, b.opts...)
	if err != nil {
		return err
	}
	relay := NewRelay(b.client, b.server, AdaptServer(server), b.MessageDeliveryDelay(), b.opts...)
	client, err := NewClientSession(b.factory, b.client, BindSession(relay, SessionID), SessionOptions{
		SocketName:       b.clientSocket,
		AutoCloseTimeout: b.clientAutoClose,
		Hooks:            b.hooks(ClientSide, b.clientAutoClosed, &b.clientCloses),
	}, b.opts...)
	if err != nil {
		b.factory.release()
		return err
	}

	b.serverSession, b.clientSession = server, client
	b.relay.Store(relay)
	b.state = bridgeActive
	b.logger.Debug("bridge starting",
		slog.String("server_socket", b.serverSocket),
		slog.String("client_socket", b.clientSocket),
		slog.Duration("delay", relay.Delay()),
	)
	return b.client.SubmitAndWait(ctx, func() error {
		return client.Start(config)
	})
}

// Stop cancels the relay hops still in flight, then disposes both
// sessions, each on its own executor, waiting for each. It is a no-op
// on an idle bridge.
func (b *Bridge) Stop(ctx context.Context) error {
	switch b.state {
	case bridgeTerminal:
		defect("bridge stopped after dispose")
	case bridgeIdle:
		return nil
	}
	if r := b.relay.Load(); r != nil {
		r.Close()
	}
	server, client := b.serverSession, b.clientSession
	errServer := b.server.SubmitAndWait(ctx, func() error {
		server.Dispose()
		return nil
	})
	errClient := b.client.SubmitAndWait(ctx, func() error {
		client.Dispose()
		return nil
	})
	b.serverSession, b.clientSession = nil, nil
	b.relay.Store(nil)
	b.state = bridgeIdle
	return errors.Join(errServer, errClient)
}

// Dispose stops the bridge if needed, shuts both executors down, waits
// for their workers to exit and disposes the session factory. Calling
// it twice is a defect.
func (b *Bridge) Dispose() error {
	if b.state == bridgeTerminal {
		defect("bridge disposed twice")
	}
	var errStop error
	if b.state == bridgeActive {
		errStop = b.Stop(context.Background())
	}
	b.server.Dispose()
	b.client.Dispose()
	<-b.server.Done()
	<-b.client.Done()
	b.state = bridgeTerminal
	return errors.Join(errStop, b.factory.Dispose())
}

// AwaitNegotiated blocks until both sides negotiated.
func (b *Bridge) AwaitNegotiated(ctx context.Context) error {
	return b.negotiated.Wait(ctx)
}

// AwaitControlChannelOpened blocks until both sides opened the
// control channel.
func (b *Bridge) AwaitControlChannelOpened(ctx context.Context) error {
	return b.controlChannelOpened.Wait(ctx)
}

// AwaitClientAutoClosed blocks until the client closed itself.
func (b *Bridge) AwaitClientAutoClosed(ctx context.Context) error {
	return b.clientAutoClosed.Wait(ctx)
}

// AwaitServerAutoClosed blocks until the server closed itself.
func (b *Bridge) AwaitServerAutoClosed(ctx context.Context) error {
	return b.serverAutoClosed.Wait(ctx)
}

// AutoCloseCount returns how many times side closed itself.
func (b *Bridge) AutoCloseCount(side Side) int {
	if side == ServerSide {
		return int(b.serverCloses.Load())
	}
	return int(b.clientCloses.Load())
}

// hooks builds the observers the bridge installs on one side. Each side
// contributes at most one count to the shared two-sided gates.
func (b *Bridge) hooks(side Side, autoClosed *Latch, closes *atomic.Int32) Hooks {
	var negotiated, opened sync.Once
	log := b.logger.With(slog.String("side", side.String()))
	return Hooks{
		OnSessionNegotiated: func() {
			log.Debug("bridge: negotiated")
			negotiated.Do(b.negotiated.CountDown)
		},
		OnControlChannelOpened: func() {
			log.Debug("bridge: control channel opened")
			opened.Do(b.controlChannelOpened.CountDown)
		},
		OnIceCandidate: func(candidate string) {
			log.Debug("bridge: ICE candidate", slog.String("candidate", candidate))
		},
		OnClosed: func() {
			log.Debug("bridge: autoclosed")
			closes.Add(1)
			autoClosed.CountDown()
		},
		OnTunnelCreated: func(socketName string) {
			log.Debug("bridge: tunnel created", slog.String("socket", socketName))
		},
	}
}
