// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sessbridge

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
	"code.hybscloud.com/lfq"
)

// channelCapacity is the bounded capacity of each control channel
// direction. The handshake never has more than one frame in flight.
const channelCapacity = 4

// FrameKind identifies a control channel frame.
type FrameKind uint8

const (
	FrameOpen FrameKind = iota + 1
	FrameOpenAck
)

func (k FrameKind) String() string {
	switch k {
	case FrameOpen:
		return "open"
	case FrameOpenAck:
		return "open-ack"
	default:
		return "unknown"
	}
}

// Frame is one control channel message. Frames are passed by value,
// never serialized.
type Frame struct {
	Kind    FrameKind
	Payload string
}

// channelContext is one endpoint's view of the transport.
type channelContext struct {
	sendQ    *lfq.SPSC[Frame]
	recvQ    *lfq.SPSC[Frame]
	closed   *atomix.Uint32
	sendSlot Frame
}

// channelDispatcher is implemented by every control channel effect.
// DispatchChannel is non-blocking and returns iox.ErrWouldBlock when
// the bounded queue cannot make progress.
type channelDispatcher interface {
	DispatchChannel(ctx *channelContext) (kont.Resumed, error)
}

// channelHandler implements kont.Handler for Exec. It waits out
// iox.ErrWouldBlock with adaptive backoff. Any other dispatch error,
// such as ErrChannelClosed, cannot be resumed from and panics.
type channelHandler[R any] struct {
	ctx *channelContext
}

func (h channelHandler[R]) Dispatch(op kont.Operation) (kont.Resumed, bool) {
	cop, ok := op.(channelDispatcher)
	if !ok {
		panic("sessbridge: unhandled effect on control channel")
	}
	var bo iox.Backoff
	for {
		v, err := cop.DispatchChannel(h.ctx)
		if err == nil {
			return v, true
		}
		if !iox.IsWouldBlock(err) {
			panic("sessbridge: control channel: " + err.Error())
		}
		bo.Wait()
	}
}

// ControlEndpoint is one side of a control channel.
// An endpoint must be driven from a single goroutine at a time.
type ControlEndpoint struct {
	ctx channelContext
	id  ChannelID
}

// ID returns the channel's serial. Both endpoints share it.
func (ep *ControlEndpoint) ID() ChannelID {
	return ep.id
}

// channelPair keeps both endpoints, their queues and the shared close
// counter in one allocation.
type channelPair struct {
	client ControlEndpoint
	server ControlEndpoint
	closed atomix.Uint32
	toSrv  lfq.SPSC[Frame]
	toCli  lfq.SPSC[Frame]
}

// NewControlChannel creates a connected endpoint pair over two bounded
// lock-free SPSC queues and a shared close counter.
func NewControlChannel() (client, server *ControlEndpoint) {
	id := nextChannelID()

	p := &channelPair{}
	p.toSrv.Init(channelCapacity)
	p.toCli.Init(channelCapacity)

	p.client = ControlEndpoint{
		ctx: channelContext{sendQ: &p.toSrv, recvQ: &p.toCli, closed: &p.closed},
		id:  id,
	}
	p.server = ControlEndpoint{
		ctx: channelContext{sendQ: &p.toCli, recvQ: &p.toSrv, closed: &p.closed},
		id:  id,
	}
	return &p.client, &p.server
}
