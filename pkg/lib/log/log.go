// Package log 提供 bootnode 统一日志接口
//
// 基于 Go 标准库 log/slog 封装。各包通过
//
//	var logger = log.Logger("discovery/dht")
//
// 获取 LazyLogger，每次调用都使用当前的 slog.Default()，因此进程启动后
// 再调用 Setup 切换级别、格式或输出目标也能对已有 logger 生效。
package log

import (
	"context"
	"log/slog"
)

// 日志级别常量（从 slog 导出，方便使用）
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// componentKey 组件属性名，子系统级别过滤依赖此键
const componentKey = "component"

// ============================================================================
//                              LazyLogger
// ============================================================================

// LazyLogger 懒加载 logger
type LazyLogger struct {
	component string
}

// Logger 返回带组件名的 LazyLogger
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

func (l *LazyLogger) base() *slog.Logger {
	return slog.Default().With(componentKey, l.component)
}

// Debug 输出 Debug 级别日志
func (l *LazyLogger) Debug(msg string, args ...any) { l.base().Debug(msg, args...) }

// Info 输出 Info 级别日志
func (l *LazyLogger) Info(msg string, args ...any) { l.base().Info(msg, args...) }

// Warn 输出 Warn 级别日志
func (l *LazyLogger) Warn(msg string, args ...any) { l.base().Warn(msg, args...) }

// Error 输出 Error 级别日志
func (l *LazyLogger) Error(msg string, args ...any) { l.base().Error(msg, args...) }

// DebugContext 带 context 的 Debug 日志
func (l *LazyLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.base().DebugContext(ctx, msg, args...)
}

// With 添加额外的属性
func (l *LazyLogger) With(args ...any) *slog.Logger {
	return l.base().With(args...)
}

// Enabled 检查当前 handler 是否输出指定级别
func (l *LazyLogger) Enabled(level slog.Level) bool {
	return l.base().Enabled(context.Background(), level)
}

// Component 返回组件名
func (l *LazyLogger) Component() string {
	return l.component
}
