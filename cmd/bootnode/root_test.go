package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bootnode/config"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return buf.String()
}

// TestIDCommand 默认种子派生出固定的 NodeID
func TestIDCommand(t *testing.T) {
	first := strings.TrimSpace(execute(t, "id"))
	assert.True(t, strings.HasPrefix(first, "Qm"), first)
	assert.Equal(t, first, strings.TrimSpace(execute(t, "id")))
}

// TestDefaultConfigCommand 输出的 YAML 可以重新加载
func TestDefaultConfigCommand(t *testing.T) {
	out := execute(t, "default-config")
	cfg := config.Default()
	require.NoError(t, cfg.UnmarshalYAMLBytes([]byte(out)))
	assert.Equal(t, config.Default(), cfg)
}

// TestLoadConfig_FlagOverrides 命令行参数覆盖配置文件
func TestLoadConfig_FlagOverrides(t *testing.T) {
	t.Cleanup(func() {
		seeds, port, logLevel = nil, 0, ""
		rootCmd.Flags().Lookup("port").Changed = false
	})
	seed := "/ip4/10.0.0.1/tcp/39000/p2p/QmYyQSo1c1Ym7orWxLYvCrM2EmxFTANf8wXmmE7DWjhx5N"
	require.NoError(t, rootCmd.ParseFlags([]string{"--port", "40000", "--seed", seed, "--log-level", "dht=debug,info"}))

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)
	assert.Equal(t, 40000, cfg.Transport.Port)
	assert.Equal(t, []string{seed}, cfg.DHT.BootstrapPeers)
	assert.Equal(t, "dht=debug,info", cfg.LogLevel)
}

// TestSetupLogging_InvalidLevel 未知日志级别报错
func TestSetupLogging_InvalidLevel(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "verbose"
	_, err := setupLogging(cfg)
	assert.Error(t, err)
}
