package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJSON = `{
	"server_address": ":3000",
	"log_level": "debug",
	"network_get_url": "http://json-config.com/posts",
	"network_get_timeout": "5s",
	"batch_concurrency": 8
}`

const testTOML = `
server_address = ":3100"
network_get_url = "http://toml-config.com/posts"
network_get_timeout = "2s"
strict_ownership = true
trusted_subnet = "10.0.0.0/8"
trust_proxy_headers = true
`

func writeTempConfig(t *testing.T, pattern, content string) string {
	t.Helper()
	file, err := os.CreateTemp("", pattern)
	require.NoError(t, err)
	_, err = file.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, file.Close())
	t.Cleanup(func() {
		err := os.Remove(file.Name())
		require.NoError(t, err)
	})
	return file.Name()
}

func newWithoutFlags(t *testing.T) (*Config, error) {
	t.Helper()
	return New(WithDisableFlagsParsing(true), WithDisableDotEnv(true))
}

func TestDefaults(t *testing.T) {
	cfg, err := newWithoutFlags(t)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.RunAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "https://jsonplaceholder.typicode.com/posts", cfg.NetworkGetURL)
	assert.Equal(t, 30*time.Second, cfg.NetworkGetTimeout)
	assert.False(t, cfg.StrictOwnership)
	assert.Equal(t, 4, cfg.BatchConcurrency)
	assert.Equal(t, ":3200", cfg.GRPCAddr)
	assert.Empty(t, cfg.TrustedSubnet)
	assert.False(t, cfg.TrustProxyHeaders)
	assert.NotEmpty(t, cfg.OwnershipSecret)
}

func TestConfigPriorityJSONOnly(t *testing.T) {
	t.Setenv("CONFIG", writeTempConfig(t, "config*.json", testJSON))

	cfg, err := newWithoutFlags(t)
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.RunAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http://json-config.com/posts", cfg.NetworkGetURL)
	assert.Equal(t, 5*time.Second, cfg.NetworkGetTimeout)
	assert.Equal(t, 8, cfg.BatchConcurrency)
}

func TestConfigPriorityTOMLOnly(t *testing.T) {
	t.Setenv("CONFIG", writeTempConfig(t, "config*.toml", testTOML))

	cfg, err := newWithoutFlags(t)
	require.NoError(t, err)

	assert.Equal(t, ":3100", cfg.RunAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "http://toml-config.com/posts", cfg.NetworkGetURL)
	assert.Equal(t, 2*time.Second, cfg.NetworkGetTimeout)
	assert.True(t, cfg.StrictOwnership)
	assert.Equal(t, "10.0.0.0/8", cfg.TrustedSubnet)
	assert.True(t, cfg.TrustProxyHeaders)
}

func TestConfigPriorityJSONPlusEnv(t *testing.T) {
	t.Setenv("CONFIG", writeTempConfig(t, "config*.json", testJSON))
	t.Setenv("SERVER_ADDRESS", ":4000")
	t.Setenv("NETWORK_GET_TIMEOUT", "1m")
	t.Setenv("STRICT_OWNERSHIP", "true")

	cfg, err := newWithoutFlags(t)
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.RunAddr) // env overrides json
	assert.Equal(t, time.Minute, cfg.NetworkGetTimeout)
	assert.True(t, cfg.StrictOwnership)
	assert.Equal(t, "http://json-config.com/posts", cfg.NetworkGetURL) // from JSON
}

func TestConfigPriorityAllSources(t *testing.T) {
	t.Setenv("CONFIG", writeTempConfig(t, "config*.json", testJSON))
	t.Setenv("SERVER_ADDRESS", ":4000")
	t.Setenv("LOG_LEVEL", "warn")

	oldArgs := os.Args
	t.Cleanup(func() { os.Args = oldArgs })
	os.Args = []string{
		"testbin",
		"-a", ":6000",
		"-c", "16",
	}

	cfg, err := New(WithDisableDotEnv(true))
	require.NoError(t, err)

	assert.Equal(t, ":6000", cfg.RunAddr) // CLI > ENV > JSON
	assert.Equal(t, 16, cfg.BatchConcurrency)
	assert.Equal(t, "warn", cfg.LogLevel)                              // from env
	assert.Equal(t, "http://json-config.com/posts", cfg.NetworkGetURL) // from JSON
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "unknown log level", key: "LOG_LEVEL", value: "verbose"},
		{name: "invalid url", key: "NETWORK_GET_URL", value: "not a url"},
		{name: "zero concurrency", key: "BATCH_CONCURRENCY", value: "0"},
		{name: "invalid address", key: "SERVER_ADDRESS", value: "localhost"},
		{name: "invalid subnet", key: "TRUSTED_SUBNET", value: "10.0.0.1"},
		{name: "secret is not base64", key: "OWNERSHIP_SECRET", value: "not*base64"},
		{name: "invalid grpc address", key: "GRPC_ADDRESS", value: "grpc"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Setenv(test.key, test.value)

			_, err := newWithoutFlags(t)
			assert.Error(t, err)
		})
	}
}

func TestConfigBrokenFile(t *testing.T) {
	t.Setenv("CONFIG", writeTempConfig(t, "config*.json", `{"server_address": `))

	_, err := newWithoutFlags(t)
	assert.Error(t, err)
}
