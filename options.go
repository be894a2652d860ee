// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sessbridge

import (
	"log/slog"
	"time"
)

// defaultPollInterval is the re-post delay used when a control channel
// or relay link reports iox.ErrWouldBlock.
const defaultPollInterval = time.Millisecond

type options struct {
	logger       *slog.Logger
	delay        time.Duration
	pollInterval time.Duration
}

// Option configures executors, relays, factories and bridges.
// Options that do not apply to a component are ignored by it.
type Option func(*options)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDeliveryDelay sets the injected latency of each relay hop.
func WithDeliveryDelay(d time.Duration) Option {
	return func(o *options) { o.delay = max(d, 0) }
}

// WithPollInterval sets how long a would-block step waits before
// it is retried on its executor.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:       slog.Default(),
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
