// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sessbridge

import (
	"code.hybscloud.com/kont"
)

// SendThen sends f and continues with next.
func SendThen[B any](f Frame, next kont.Eff[B]) kont.Eff[B] {
	return kont.Then(kont.Perform(SendFrame{Frame: f}), next)
}

// RecvBind receives a frame and passes it to k.
func RecvBind[B any](k func(Frame) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(RecvFrame{}), k)
}

// CloseDone closes the channel and returns a.
func CloseDone[A any](a A) kont.Eff[A] {
	return kont.Then(kont.Perform(CloseChannel{}), kont.Pure(a))
}

// openHandshake is the client half of the control channel handshake:
// !open.?ack
func openHandshake(token string) kont.Eff[Frame] {
	return SendThen(Frame{Kind: FrameOpen, Payload: token},
		RecvBind(func(ack Frame) kont.Eff[Frame] {
			return kont.Pure(ack)
		}),
	)
}

// acceptHandshake is the server half: ?open.!ack
func acceptHandshake() kont.Eff[Frame] {
	return RecvBind(func(open Frame) kont.Eff[Frame] {
		return SendThen(Frame{Kind: FrameOpenAck, Payload: open.Payload}, kont.Pure(open))
	})
}
