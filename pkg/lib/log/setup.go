package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ============================================================================
//                              配置
// ============================================================================

// Options 日志配置
type Options struct {
	// Level 日志级别，支持按子系统配置
	// 格式: 子系统=级别,子系统=级别,默认级别
	// 示例: dht=debug,host=warn,info
	Level string

	// JSON 使用 JSON 格式输出，否则为文本格式
	JSON bool

	// File 日志文件路径，为空时输出到 stderr
	File string

	// 日志文件滚动参数（仅在 File 非空时生效）
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Output 覆盖输出目标（测试用）
	Output io.Writer
}

// LevelConfig 解析后的级别配置
type LevelConfig struct {
	Default    slog.Level
	Subsystems map[string]slog.Level
}

// ParseLevels 解析日志级别配置字符串
func ParseLevels(s string) (LevelConfig, error) {
	cfg := LevelConfig{
		Default:    slog.LevelInfo,
		Subsystems: make(map[string]slog.Level),
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if name, lvl, ok := strings.Cut(part, "="); ok {
			level, err := parseLevel(lvl)
			if err != nil {
				return cfg, err
			}
			cfg.Subsystems[strings.TrimSpace(name)] = level
			continue
		}
		level, err := parseLevel(part)
		if err != nil {
			return cfg, err
		}
		cfg.Default = level
	}
	return cfg, nil
}

// parseLevel 解析日志级别名称（大小写不敏感，兼容 trace/off）
func parseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace", "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "off":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// levelFor 查找组件对应的级别
//
// 组件名形如 "discovery/dht"，配置键可以是完整组件名或其任一路径段。
func (c LevelConfig) levelFor(component string) slog.Level {
	if lvl, ok := c.Subsystems[component]; ok {
		return lvl
	}
	for _, seg := range strings.Split(component, "/") {
		if lvl, ok := c.Subsystems[seg]; ok {
			return lvl
		}
	}
	return c.Default
}

// ============================================================================
//                              Setup
// ============================================================================

// Setup 按配置安装进程默认 logger
//
// 返回的 io.Closer 用于关闭日志文件，未配置文件时为 nil。
func Setup(opts Options) (io.Closer, error) {
	levels, err := ParseLevels(opts.Level)
	if err != nil {
		return nil, err
	}

	var (
		out    io.Writer = os.Stderr
		closer io.Closer
	)
	switch {
	case opts.Output != nil:
		out = opts.Output
	case opts.File != "":
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		out, closer = lj, lj
	}

	hopts := &slog.HandlerOptions{Level: slog.LevelDebug}
	var inner slog.Handler
	if opts.JSON {
		inner = slog.NewJSONHandler(out, hopts)
	} else {
		inner = slog.NewTextHandler(out, hopts)
	}

	slog.SetDefault(slog.New(&subsystemHandler{
		levels: levels,
		level:  levels.Default,
		inner:  inner,
	}))
	return closer, nil
}

// subsystemHandler 是一个支持子系统级别控制的 slog.Handler
type subsystemHandler struct {
	levels LevelConfig
	level  slog.Level
	inner  slog.Handler
}

func (h *subsystemHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *subsystemHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h *subsystemHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	level := h.level
	for _, a := range attrs {
		if a.Key == componentKey {
			level = h.levels.levelFor(a.Value.String())
		}
	}
	return &subsystemHandler{levels: h.levels, level: level, inner: h.inner.WithAttrs(attrs)}
}

func (h *subsystemHandler) WithGroup(name string) slog.Handler {
	return &subsystemHandler{levels: h.levels, level: h.level, inner: h.inner.WithGroup(name)}
}
