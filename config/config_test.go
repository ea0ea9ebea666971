package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefault_Valid 默认配置必须通过验证
func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 39000, cfg.Transport.Port)
	assert.Equal(t, "1", cfg.SecretKey.Seed)
	assert.Equal(t, 30*time.Second, cfg.Transport.ConnectionIdleTimeout.Duration())
	assert.Equal(t, 60*time.Second, cfg.DHT.QueryTimeout.Duration())
	assert.Equal(t, "127.0.0.1:7700", cfg.HTTP.Addr())
}

// TestLoad_OverridesDefaults 文件中的字段覆盖默认值，其余保持默认
func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
log_level: dht=debug,info
port: 40000
kad_query_timeout: 20
bootstrap_period: 2m
secret_key:
  key: "0000000000000000000000000000000000000000000000000000000000000001"
bootstrap_peers:
  - /ip4/10.0.0.1/tcp/39000/p2p/QmYyQSo1c1Ym7orWxLYvCrM2EmxFTANf8wXmmE7DWjhx5N
liveness:
  idle_fraction: 0.25
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "dht=debug,info", cfg.LogLevel)
	assert.Equal(t, 40000, cfg.Transport.Port)
	assert.Equal(t, 20*time.Second, cfg.DHT.QueryTimeout.Duration())
	assert.Equal(t, 2*time.Minute, cfg.DHT.BootstrapPeriod.Duration())
	assert.Equal(t, "", cfg.SecretKey.Seed, "显式 key 应替换默认种子")
	assert.Len(t, cfg.SecretKey.Key, 64)
	assert.Len(t, cfg.DHT.BootstrapPeers, 1)
	assert.InDelta(t, 0.25, cfg.Liveness.IdleFraction, 1e-9)
	assert.Equal(t, 20, cfg.DHT.BucketSize, "未出现的字段保持默认")
}

// TestLoad_UnknownField 未知字段报错
func TestLoad_UnknownField(t *testing.T) {
	cfg := Default()
	err := cfg.UnmarshalYAMLBytes([]byte("no_such_field: 1\n"))
	assert.Error(t, err)
}

// TestLoad_EmptyPath 空路径返回默认配置
func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

// TestValidate_Errors 测试各类非法配置
func TestValidate_Errors(t *testing.T) {
	cases := map[string]func(c *Config){
		"seed and key": func(c *Config) { c.SecretKey = IdentityConfig{Seed: "a", Key: "b"} },
		"bad port":     func(c *Config) { c.Transport.Port = 70000 },
		"zero bucket":  func(c *Config) { c.DHT.BucketSize = 0 },
		"bad fraction": func(c *Config) { c.Liveness.IdleFraction = 1.5 },
		"history":      func(c *Config) { c.Reachability.HistorySize = 1 },
		"protocol":     func(c *Config) { c.Identify.ProtocolVersion = "no-slash" },
		"metrics":      func(c *Config) { c.Metrics.Enable = true; c.Metrics.CollectorEndpoint = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// TestIdentify_ProtocolVersion 测试协议族标识与网络名
func TestIdentify_ProtocolVersion(t *testing.T) {
	c := DefaultIdentifyConfig()
	assert.Equal(t, DefaultProtocolVersion+"-DEV", c.EffectiveProtocolVersion())
	assert.Equal(t, "local:DEV", c.NetworkName())

	c.GenesisHash = "0xd3d2f3a3495dc597434a99d7d449ebad6616db45e4e4f178f31cc6fa14378b70"
	assert.Equal(t, DefaultProtocolVersion+"-d3d2f3", c.EffectiveProtocolVersion())
	assert.Equal(t, "turing:d3d2f3", c.NetworkName())

	c.GenesisHash = "abcdef0123"
	assert.Equal(t, "other:abcdef", c.NetworkName())
}

// TestMarshal_RoundTrip 序列化后可重新加载
func TestMarshal_RoundTrip(t *testing.T) {
	cfg := Default()
	data, err := cfg.Marshal()
	require.NoError(t, err)

	loaded := Default()
	require.NoError(t, loaded.UnmarshalYAMLBytes(data))
	assert.Equal(t, cfg, loaded)
}
