// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sessbridge

import "code.hybscloud.com/atomix"

// ChannelID is a monotonically increasing control channel serial.
// Each call to NewControlChannel assigns the next value; both endpoints
// of a channel share it.
type ChannelID = uint32

// channelCounter is the process-wide counter for channel serials.
var channelCounter atomix.Uint32

// nextChannelID returns the next monotonically increasing serial.
func nextChannelID() ChannelID {
	return channelCounter.Add(1)
}
