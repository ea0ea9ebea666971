package orchestrator

import "errors"

var (
	// ErrBanned 连接因封禁关闭
	ErrBanned = errors.New("peer banned")

	// ErrStopped 事件循环已退出
	ErrStopped = errors.New("orchestrator stopped")
)
