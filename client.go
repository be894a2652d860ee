// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sessbridge

import (
	"log/slog"

	"github.com/google/uuid"
)

// ClientSession is the offering side of a bridged session. It drives
// negotiation against server, which is usually a relay bound to a
// ServerSession on another executor.
type ClientSession struct {
	sessionBase
	server  ServerSignaling
	started bool
}

// NewClientSession creates a client session bound to exec.
// It fails with ErrDisposed if factory was disposed.
func NewClientSession(factory *SessionFactory, exec *Executor, server ServerSignaling, so SessionOptions, opts ...Option) (*ClientSession, error) {
	base, err := newSessionBase(ClientSide, factory, exec, so, opts)
	if err != nil {
		return nil, err
	}
	return &ClientSession{sessionBase: base, server: server}, nil
}

// Start sends the first offer. Negotiation, ICE exchange and the
// control channel handshake follow asynchronously on the executor.
func (c *ClientSession) Start(config RTCConfig) error {
	c.exec.AssertOnOwnThread()
	switch {
	case c.closed:
		return ErrSessionClosed
	case c.started:
		return ErrAlreadyStarted
	}
	c.started = true
	c.token = uuid.NewString()
	c.logger.Debug("starting session", slog.String("token", c.token))
	c.server.StartSession(config, offerFor(c.token), c.onAnswer)
	return nil
}

// Renegotiate sends a fresh offer for the negotiated session.
func (c *ClientSession) Renegotiate() error {
	c.exec.AssertOnOwnThread()
	switch {
	case c.closed:
		return ErrSessionClosed
	case !c.negotiated:
		return ErrNotNegotiated
	}
	c.server.Renegotiate(offerFor(c.token), c.onRenegotiated)
	return nil
}

func (c *ClientSession) onAnswer(answer string, err error) {
	if !c.accept(answer, err) {
		return
	}
	c.onSessionNegotiated()
	c.server.IceExchange(localCandidates(ClientSide), c.onIceExchanged)
}

func (c *ClientSession) onRenegotiated(answer string, err error) {
	if !c.accept(answer, err) {
		return
	}
	c.onSessionNegotiated()
}

// accept checks an answer. Failures close the session.
func (c *ClientSession) accept(answer string, err error) bool {
	c.exec.AssertOnOwnThread()
	if c.closed {
		return false
	}
	if err == nil {
		if token, ok := parseToken(answer, answerPrefix); !ok || token != c.token {
			err = ErrInvalidOffer
		}
	}
	if err != nil {
		c.logger.Warn("negotiation failed", slog.String("err", err.Error()))
		c.closeSelf()
		return false
	}
	return true
}

func (c *ClientSession) onIceExchanged(candidates []string, err error) {
	c.exec.AssertOnOwnThread()
	if c.closed {
		return
	}
	if err != nil {
		c.logger.Warn("ICE exchange failed", slog.String("err", err.Error()))
		c.closeSelf()
		return
	}
	for _, cand := range candidates {
		c.onIceCandidate(cand)
	}
	c.openControlChannel()
}
