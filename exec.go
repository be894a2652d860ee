// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sessbridge

import (
	"code.hybscloud.com/kont"
)

// Exec runs a control channel protocol on ep to completion on the
// calling goroutine. Blocks on iox.ErrWouldBlock via adaptive backoff
// (iox.Backoff), without spawning goroutines or creating channels.
//
// Exec never yields to an executor, so on a worker use it only for
// protocols that cannot wait on the peer, such as CloseDone; use Drive
// otherwise. It panics if the channel is closed under a pending effect.
func Exec[R any](ep *ControlEndpoint, protocol kont.Eff[R]) R {
	return kont.Handle(protocol, channelHandler[R]{ctx: &ep.ctx})
}
