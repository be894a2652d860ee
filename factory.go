// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sessbridge

import (
	"log/slog"
	"sync"
)

// SessionFactory allocates the resources sessions share: it counts
// live sessions and pairs up control channel endpoints. It is shared by
// both sides and safe for concurrent use.
type SessionFactory struct {
	logger *slog.Logger

	mu       sync.Mutex
	live     int
	disposed bool
	channels map[string]*channelSlot
}

// channelSlot is a control channel waiting for, or held by, its two
// sides. Each endpoint is handed out once.
type channelSlot struct {
	client *ControlEndpoint
	server *ControlEndpoint
	refs   int
}

// NewSessionFactory returns an empty factory. Only WithLogger applies.
func NewSessionFactory(opts ...Option) *SessionFactory {
	o := buildOptions(opts)
	return &SessionFactory{
		logger:   o.logger,
		channels: make(map[string]*channelSlot),
	}
}

// LiveSessions returns the number of sessions not yet disposed.
func (f *SessionFactory) LiveSessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}

func (f *SessionFactory) acquire() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disposed {
		return ErrDisposed
	}
	f.live++
	return nil
}

func (f *SessionFactory) release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.live == 0 {
		defect("session factory released more sessions than it created")
	}
	f.live--
}

// ControlChannel returns side's endpoint of the control channel keyed
// by token. The first side to ask allocates the pair; the other side
// receives the matching endpoint. Asking twice for the same side of
// one token is a defect.
func (f *SessionFactory) ControlChannel(token string, side Side) (*ControlEndpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disposed {
		return nil, ErrDisposed
	}
	slot, ok := f.channels[token]
	if !ok {
		client, server := NewControlChannel()
		slot = &channelSlot{client: client, server: server}
		f.channels[token] = slot
		f.logger.Debug("control channel allocated", slog.Uint64("channel", uint64(client.ID())))
	}

	var ep *ControlEndpoint
	switch side {
	case ClientSide:
		ep, slot.client = slot.client, nil
	case ServerSide:
		ep, slot.server = slot.server, nil
	}
	if ep == nil {
		defect("%s endpoint of control channel requested twice", side)
	}
	slot.refs++
	return ep, nil
}

// releaseChannel drops one side's hold on the channel keyed by token.
func (f *SessionFactory) releaseChannel(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	slot, ok := f.channels[token]
	if !ok {
		return
	}
	slot.refs--
	if slot.refs <= 0 {
		delete(f.channels, token)
	}
}

// Dispose releases the factory. It fails with ErrFactoryInUse while
// sessions created from it are alive, and with ErrDisposed when called
// again after a successful disposal.
func (f *SessionFactory) Dispose() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disposed {
		return ErrDisposed
	}
	if f.live > 0 {
		return ErrFactoryInUse
	}
	f.disposed = true
	f.channels = nil
	f.logger.Debug("session factory disposed")
	return nil
}
