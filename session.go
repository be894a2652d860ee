// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sessbridge

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Side names one end of a bridged session.
type Side uint8

const (
	ClientSide Side = iota
	ServerSide
)

func (s Side) String() string {
	if s == ServerSide {
		return "server"
	}
	return "client"
}

// Hooks observe a session's lifecycle. Every hook runs on the
// session's executor. Nil hooks are skipped.
type Hooks struct {
	OnSessionNegotiated    func()
	OnControlChannelOpened func()
	OnIceCandidate         func(candidate string)
	// OnClosed runs once when the session closes itself, either on
	// auto-close expiry or after a failed negotiation.
	OnClosed func()
	// OnTunnelCreated runs on the server when its socket tunnel is
	// created.
	OnTunnelCreated func(socketName string)
}

// SessionOptions configures a session at construction.
type SessionOptions struct {
	// SocketName labels the session's tunnel socket.
	SocketName string
	// AutoCloseTimeout closes the session this long after its control
	// channel opened. Negative disables auto-close.
	AutoCloseTimeout time.Duration
	Hooks            Hooks
}

const (
	offerPrefix  = "offer "
	answerPrefix = "answer "
)

func offerFor(token string) string  { return offerPrefix + token }
func answerFor(token string) string { return answerPrefix + token }

func parseToken(msg, prefix string) (string, bool) {
	token, ok := strings.CutPrefix(msg, prefix)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// localCandidates returns the host candidates a side advertises.
func localCandidates(side Side) []string {
	base := 9000
	if side == ServerSide {
		base = 9100
	}
	return []string{
		fmt.Sprintf("candidate:1 1 udp 2122260223 127.0.0.1 %d typ host", base),
		fmt.Sprintf("candidate:2 1 tcp 1518280447 127.0.0.1 %d typ host tcptype passive", base+1),
	}
}

// sessionBase is the state both sides share. All fields are confined
// to exec's worker except those set at construction.
type sessionBase struct {
	side    Side
	factory *SessionFactory
	exec    *Executor
	hooks   Hooks
	logger  *slog.Logger
	poll    time.Duration

	socketName       string
	autoCloseTimeout time.Duration

	token      string
	channel    *ControlEndpoint
	handshake  Cancellable
	autoClose  Cancellable
	negotiated bool
	opened     bool
	closed     bool
	disposed   bool
}

func newSessionBase(side Side, factory *SessionFactory, exec *Executor, so SessionOptions, opts []Option) (sessionBase, error) {
	o := buildOptions(opts)
	if err := factory.acquire(); err != nil {
		return sessionBase{}, err
	}
	return sessionBase{
		side:             side,
		factory:          factory,
		exec:             exec,
		hooks:            so.Hooks,
		logger:           o.logger.With(slog.String("side", side.String())),
		poll:             o.pollInterval,
		socketName:       so.SocketName,
		autoCloseTimeout: so.AutoCloseTimeout,
	}, nil
}

// IsClosed reports whether the session closed itself or was disposed.
// Must be called on the session's executor.
func (s *sessionBase) IsClosed() bool {
	s.exec.AssertOnOwnThread()
	return s.closed
}

// IsControlChannelOpen reports whether the handshake completed and the
// session is still open. Must be called on the session's executor.
func (s *sessionBase) IsControlChannelOpen() bool {
	s.exec.AssertOnOwnThread()
	return s.opened && !s.closed
}

func (s *sessionBase) onSessionNegotiated() {
	s.negotiated = true
	s.logger.Debug("negotiated")
	if s.hooks.OnSessionNegotiated != nil {
		s.hooks.OnSessionNegotiated()
	}
}

func (s *sessionBase) onIceCandidate(candidate string) {
	s.logger.Debug("ICE candidate", slog.String("candidate", candidate))
	if s.hooks.OnIceCandidate != nil {
		s.hooks.OnIceCandidate(candidate)
	}
}

// openControlChannel takes this side's endpoint and starts the
// handshake. Idempotent.
func (s *sessionBase) openControlChannel() {
	if s.channel != nil || s.closed {
		return
	}
	ep, err := s.factory.ControlChannel(s.token, s.side)
	if err != nil {
		s.logger.Warn("control channel unavailable", slog.String("err", err.Error()))
		s.closeSelf()
		return
	}
	s.channel = ep

	want := FrameOpenAck
	protocol := openHandshake(s.token)
	if s.side == ServerSide {
		want = FrameOpen
		protocol = acceptHandshake()
	}
	s.handshake = Drive(s.exec, ep, protocol, s.poll, func(f Frame, err error) {
		if err != nil {
			// The peer tore the channel down; stop polling it.
			s.logger.Debug("control channel handshake stopped", slog.String("err", err.Error()))
			s.handshake = nil
			return
		}
		if f.Kind != want || f.Payload != s.token {
			s.logger.Warn("unexpected control frame", slog.String("kind", f.Kind.String()))
			s.closeSelf()
			return
		}
		s.onControlChannelOpened()
	})
}

func (s *sessionBase) onControlChannelOpened() {
	s.opened = true
	s.logger.Debug("control channel opened", slog.Uint64("channel", uint64(s.channel.ID())))
	if s.hooks.OnControlChannelOpened != nil {
		s.hooks.OnControlChannelOpened()
	}
	s.armAutoClose()
}

func (s *sessionBase) armAutoClose() {
	if s.autoCloseTimeout < 0 {
		return
	}
	h, err := s.exec.SubmitDelayed(s.autoCloseTimeout, s.closeSelf)
	if err != nil {
		s.logger.Debug("auto-close not armed", slog.String("err", err.Error()))
		return
	}
	s.autoClose = h
}

// closeSelf tears the session down and reports it through OnClosed.
// Runs at most once.
func (s *sessionBase) closeSelf() {
	s.exec.AssertOnOwnThread()
	if s.closed {
		return
	}
	s.logger.Debug("closed itself")
	s.teardown()
	if s.hooks.OnClosed != nil {
		s.hooks.OnClosed()
	}
}

func (s *sessionBase) teardown() {
	s.closed = true
	if s.autoClose != nil {
		s.autoClose.Cancel()
		s.autoClose = nil
	}
	if s.handshake != nil {
		s.handshake.Cancel()
		s.handshake = nil
	}
	if s.channel != nil {
		Exec(s.channel, CloseDone(struct{}{}))
		s.factory.releaseChannel(s.token)
		s.channel = nil
	}
}

// Dispose releases the session without firing OnClosed. Must be called
// on the session's executor. Idempotent.
func (s *sessionBase) Dispose() {
	s.exec.AssertOnOwnThread()
	if s.disposed {
		return
	}
	s.disposed = true
	s.teardown()
	s.factory.release()
	s.logger.Debug("disposed")
}
