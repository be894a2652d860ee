// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sessbridge_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/sessbridge"
)

func TestConfigFromEnvDefaults(t *testing.T) {
	cfg, err := sessbridge.ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, sessbridge.DefaultConfig(), cfg)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("SESSBRIDGE_SERVER_SOCKET", "srv")
	t.Setenv("SESSBRIDGE_DELIVERY_DELAY", "150ms")
	t.Setenv("SESSBRIDGE_CLIENT_AUTOCLOSE", "2s")
	t.Setenv("SESSBRIDGE_LOG_FORMAT", "json")

	cfg, err := sessbridge.ConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "srv", cfg.ServerSocketName)
	assert.Equal(t, "sessbridge-client", cfg.ClientSocketName)
	assert.Equal(t, 150*time.Millisecond, cfg.DeliveryDelay)
	assert.Equal(t, -time.Second, cfg.ServerAutoClose)
	assert.Equal(t, 2*time.Second, cfg.ClientAutoClose)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestConfigFromEnvInvalid(t *testing.T) {
	t.Setenv("SESSBRIDGE_DELIVERY_DELAY", "soon")
	_, err := sessbridge.ConfigFromEnv()
	require.Error(t, err)
}

func TestNewBridgeFromConfig(t *testing.T) {
	cfg := sessbridge.DefaultConfig()
	cfg.DeliveryDelay = 5 * time.Millisecond
	cfg.LogLevel = "error"

	b, err := sessbridge.NewBridgeFromConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, b.Dispose()) })
	assert.Equal(t, 5*time.Millisecond, b.MessageDeliveryDelay())

	cfg.ServerSocketName = ""
	_, err = sessbridge.NewBridgeFromConfig(cfg)
	require.ErrorIs(t, err, sessbridge.ErrInvalidSocketName)
}
