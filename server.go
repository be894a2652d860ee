// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sessbridge

import "log/slog"

// ServerSession is the answering side of a bridged session. It
// implements ServerSignaling; every call must arrive on its executor,
// which is what a Relay guarantees.
type ServerSession struct {
	sessionBase
	tunnel bool
}

var _ ServerSignaling = (*ServerSession)(nil)

// NewServerSession creates a server session bound to exec.
// It fails with ErrDisposed if factory was disposed.
func NewServerSession(factory *SessionFactory, exec *Executor, so SessionOptions, opts ...Option) (*ServerSession, error) {
	base, err := newSessionBase(ServerSide, factory, exec, so, opts)
	if err != nil {
		return nil, err
	}
	return &ServerSession{sessionBase: base}, nil
}

// StartSession answers the client's first offer.
func (s *ServerSession) StartSession(config RTCConfig, offer string, cb NegotiationCallback) {
	s.exec.AssertOnOwnThread()
	switch {
	case s.closed:
		cb("", ErrSessionClosed)
		return
	case s.negotiated:
		cb("", ErrAlreadyStarted)
		return
	}
	token, ok := parseToken(offer, offerPrefix)
	if !ok {
		cb("", ErrInvalidOffer)
		return
	}
	s.token = token
	s.createTunnel()
	s.logger.Debug("session started", slog.Int("ice_servers", len(config.ICEServers)))
	s.onSessionNegotiated()
	cb(answerFor(token), nil)
}

// Renegotiate answers a follow-up offer for the current session.
func (s *ServerSession) Renegotiate(offer string, cb NegotiationCallback) {
	s.exec.AssertOnOwnThread()
	switch {
	case s.closed:
		cb("", ErrSessionClosed)
		return
	case !s.negotiated:
		cb("", ErrNotNegotiated)
		return
	}
	token, ok := parseToken(offer, offerPrefix)
	if !ok || token != s.token {
		cb("", ErrInvalidOffer)
		return
	}
	s.onSessionNegotiated()
	cb(answerFor(token), nil)
}

// IceExchange reports the client's candidates, returns the server's,
// and starts accepting the control channel.
func (s *ServerSession) IceExchange(candidates []string, cb IceExchangeCallback) {
	s.exec.AssertOnOwnThread()
	switch {
	case s.closed:
		cb(nil, ErrSessionClosed)
		return
	case !s.negotiated:
		cb(nil, ErrNotNegotiated)
		return
	}
	for _, c := range candidates {
		s.onIceCandidate(c)
	}
	cb(localCandidates(ServerSide), nil)
	s.openControlChannel()
}

func (s *ServerSession) createTunnel() {
	if s.tunnel {
		return
	}
	s.tunnel = true
	s.logger.Debug("tunnel created", slog.String("socket", s.socketName))
	if s.hooks.OnTunnelCreated != nil {
		s.hooks.OnTunnelCreated(s.socketName)
	}
}
