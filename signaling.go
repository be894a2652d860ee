// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sessbridge

// SessionID is the identifier every relayed call carries. The bridge
// binds exactly one session, so the value is fixed.
const SessionID = ""

// ICEServer is one STUN/TURN entry of an RTCConfig.
type ICEServer struct {
	URLs       []string
	Username   string
	Credential string
}

// RTCConfig holds network-traversal parameters for a negotiation.
// The bridge passes it through without interpreting it.
type RTCConfig struct {
	ICEServers []ICEServer
}

// DefaultRTCConfig returns an empty configuration.
func DefaultRTCConfig() RTCConfig {
	return RTCConfig{}
}

// NegotiationCallback receives the answer to an offer, or a failure.
// It is invoked exactly once.
type NegotiationCallback func(answer string, err error)

// IceExchangeCallback receives the peer's ICE candidates, or a failure.
// It is invoked exactly once.
type IceExchangeCallback func(candidates []string, err error)

// SignalingReceiver is the multi-session shape of the server signaling
// interface: every call names the session it addresses.
type SignalingReceiver interface {
	StartSession(sessionID string, config RTCConfig, offer string, cb NegotiationCallback)
	Renegotiate(sessionID string, offer string, cb NegotiationCallback)
	IceExchange(sessionID string, candidates []string, cb IceExchangeCallback)
}

// ServerSignaling is the single-session shape: the session is implied
// by the receiver.
type ServerSignaling interface {
	StartSession(config RTCConfig, offer string, cb NegotiationCallback)
	Renegotiate(offer string, cb NegotiationCallback)
	IceExchange(candidates []string, cb IceExchangeCallback)
}
