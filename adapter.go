// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sessbridge

// AdaptServer exposes a single-session receiver as a SignalingReceiver.
// The session id of incoming calls is discarded.
func AdaptServer(adaptee ServerSignaling) SignalingReceiver {
	return serverAdapter{adaptee: adaptee}
}

type serverAdapter struct {
	adaptee ServerSignaling
}

func (a serverAdapter) StartSession(_ string, config RTCConfig, offer string, cb NegotiationCallback) {
	a.adaptee.StartSession(config, offer, cb)
}

func (a serverAdapter) Renegotiate(_ string, offer string, cb NegotiationCallback) {
	a.adaptee.Renegotiate(offer, cb)
}

func (a serverAdapter) IceExchange(_ string, candidates []string, cb IceExchangeCallback) {
	a.adaptee.IceExchange(candidates, cb)
}

// BindSession exposes a SignalingReceiver as a single-session receiver
// that always addresses sessionID.
func BindSession(receiver SignalingReceiver, sessionID string) ServerSignaling {
	return boundSession{receiver: receiver, id: sessionID}
}

type boundSession struct {
	receiver SignalingReceiver
	id       string
}

func (b boundSession) StartSession(config RTCConfig, offer string, cb NegotiationCallback) {
	b.receiver.StartSession(b.id, config, offer, cb)
}

func (b boundSession) Renegotiate(offer string, cb NegotiationCallback) {
	b.receiver.Renegotiate(b.id, offer, cb)
}

func (b boundSession) IceExchange(candidates []string, cb IceExchangeCallback) {
	b.receiver.IceExchange(b.id, candidates, cb)
}
