// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sessbridge

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config describes a bridge for manual runs. Defaults can be loaded
// from the environment with ConfigFromEnv.
type Config struct {
	// ServerSocketName labels the server tunnel. ENV: SESSBRIDGE_SERVER_SOCKET
	ServerSocketName string `env:"SESSBRIDGE_SERVER_SOCKET,default=sessbridge-server"`
	// ClientSocketName labels the client tunnel. ENV: SESSBRIDGE_CLIENT_SOCKET
	ClientSocketName string `env:"SESSBRIDGE_CLIENT_SOCKET,default=sessbridge-client"`
	// DeliveryDelay is the injected latency per relay hop. ENV: SESSBRIDGE_DELIVERY_DELAY
	DeliveryDelay time.Duration `env:"SESSBRIDGE_DELIVERY_DELAY,default=0s"`
	// ServerAutoClose is negative to disable. ENV: SESSBRIDGE_SERVER_AUTOCLOSE
	ServerAutoClose time.Duration `env:"SESSBRIDGE_SERVER_AUTOCLOSE,default=-1s"`
	// ClientAutoClose is negative to disable. ENV: SESSBRIDGE_CLIENT_AUTOCLOSE
	ClientAutoClose time.Duration `env:"SESSBRIDGE_CLIENT_AUTOCLOSE,default=-1s"`
	// LogLevel is one of debug, info, warn, error. ENV: SESSBRIDGE_LOG_LEVEL
	LogLevel string `env:"SESSBRIDGE_LOG_LEVEL,default=info"`
	// LogFormat is text or json. ENV: SESSBRIDGE_LOG_FORMAT
	LogFormat string `env:"SESSBRIDGE_LOG_FORMAT,default=text"`
}

// DefaultConfig returns the configuration used when no environment
// variable is set.
func DefaultConfig() Config {
	return Config{
		ServerSocketName: "sessbridge-server",
		ClientSocketName: "sessbridge-client",
		ServerAutoClose:  -time.Second,
		ClientAutoClose:  -time.Second,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// ConfigFromEnv decodes Config from SESSBRIDGE_* variables. Unset
// variables take their defaults; a value that does not parse is an
// error.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return Config{}, fmt.Errorf("sessbridge: decode env: %w", err)
	}
	return cfg, nil
}

// NewBridgeFromConfig creates a bridge from cfg. The logger built from
// cfg can be overridden with WithLogger in opts.
func NewBridgeFromConfig(cfg Config, opts ...Option) (*Bridge, error) {
	base := []Option{
		WithLogger(NewLogger(cfg.LogLevel, cfg.LogFormat, nil)),
		WithDeliveryDelay(cfg.DeliveryDelay),
	}
	b, err := NewBridge(cfg.ServerSocketName, cfg.ClientSocketName, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	b.SetServerAutoCloseTimeout(cfg.ServerAutoClose)
	b.SetClientAutoCloseTimeout(cfg.ClientAutoClose)
	return b, nil
}
