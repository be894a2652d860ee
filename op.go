// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sessbridge

import (
	"code.hybscloud.com/kont"
)

// SendFrame is the effect that sends a frame to the peer endpoint.
type SendFrame struct {
	kont.Phantom[struct{}]
	Frame Frame
}

// DispatchChannel returns iox.ErrWouldBlock while the peer's queue is
// full, and ErrChannelClosed once the channel was closed.
func (s SendFrame) DispatchChannel(ctx *channelContext) (kont.Resumed, error) {
	if ctx.closed.Load() != 0 {
		return nil, ErrChannelClosed
	}
	ctx.sendSlot = s.Frame
	if err := ctx.sendQ.Enqueue(&ctx.sendSlot); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

// RecvFrame is the effect that receives the next frame from the peer.
type RecvFrame struct {
	kont.Phantom[Frame]
}

// DispatchChannel returns iox.ErrWouldBlock until a frame arrives.
// Frames sent before the channel was closed are still received; after
// that it returns ErrChannelClosed.
func (RecvFrame) DispatchChannel(ctx *channelContext) (kont.Resumed, error) {
	f, err := ctx.recvQ.Dequeue()
	if err == nil {
		return f, nil
	}
	if ctx.closed.Load() == 0 {
		return nil, err
	}
	// The close may have raced the last frame.
	if f, err = ctx.recvQ.Dequeue(); err == nil {
		return f, nil
	}
	return nil, ErrChannelClosed
}

// CloseChannel is the effect that closes the channel. It never blocks.
type CloseChannel struct {
	kont.Phantom[struct{}]
}

// DispatchChannel bumps the shared close counter.
func (CloseChannel) DispatchChannel(ctx *channelContext) (kont.Resumed, error) {
	ctx.closed.Add(1)
	return struct{}{}, nil
}
