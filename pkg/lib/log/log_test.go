package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

// TestSetup_ExistingLogger 已创建的 LazyLogger 在切换输出后仍然生效
func TestSetup_ExistingLogger(t *testing.T) {
	restoreDefault(t)
	l := Logger("discovery/dht")

	buf := &bytes.Buffer{}
	_, err := Setup(Options{Level: "info", Output: buf})
	require.NoError(t, err)

	l.Info("after switch", "key", "value")

	out := buf.String()
	assert.Contains(t, out, "after switch")
	assert.Contains(t, out, "key=value")
	assert.Contains(t, out, "component=discovery/dht")
}

// TestSetup_SubsystemLevels 测试按子系统配置级别
func TestSetup_SubsystemLevels(t *testing.T) {
	restoreDefault(t)
	buf := &bytes.Buffer{}
	_, err := Setup(Options{Level: "dht=debug,warn", Output: buf})
	require.NoError(t, err)

	Logger("discovery/dht").Debug("dht debug")
	Logger("core/host").Info("host info")
	Logger("core/host").Warn("host warn")

	out := buf.String()
	assert.Contains(t, out, "dht debug")
	assert.NotContains(t, out, "host info")
	assert.Contains(t, out, "host warn")
}

// TestSetup_JSON 测试 JSON 格式
func TestSetup_JSON(t *testing.T) {
	restoreDefault(t)
	buf := &bytes.Buffer{}
	_, err := Setup(Options{Level: "INFO", JSON: true, Output: buf})
	require.NoError(t, err)

	Logger("core/identity").Info("json line")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(buf.String()), "{"))
	assert.Contains(t, buf.String(), `"component":"core/identity"`)
}

// TestParseLevels 测试级别解析
func TestParseLevels(t *testing.T) {
	cfg, err := ParseLevels("discovery=debug, transport=warn ,error")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelError, cfg.Default)
	assert.Equal(t, slog.LevelDebug, cfg.levelFor("discovery/dht"))
	assert.Equal(t, slog.LevelWarn, cfg.levelFor("transport"))
	assert.Equal(t, slog.LevelError, cfg.levelFor("core/host"))

	_, err = ParseLevels("verbose")
	assert.Error(t, err)

	cfg, err = ParseLevels("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, cfg.Default)
}
