// Package yamux 提供基于 hashicorp/yamux 的流多路复用
//
// TCP 与 WebSocket 连接在 Noise 握手之后经 multistream-select 协商
// /yamux/1.0.0，再由本包建立会话。
package yamux

import (
	"io"
	"time"

	"github.com/hashicorp/yamux"
)

// DefaultConfig 返回默认的 yamux 配置
//
// 关闭 yamux 自带 keepalive：连接存活由 liveness 的 ping 协议与空闲超时负责。
func DefaultConfig() *yamux.Config {
	return &yamux.Config{
		AcceptBacklog:          256,
		EnableKeepAlive:        false,
		KeepAliveInterval:      30 * time.Second,
		ConnectionWriteTimeout: 10 * time.Second,
		MaxStreamWindowSize:    256 * 1024,
		StreamOpenTimeout:      30 * time.Second,
		StreamCloseTimeout:     time.Minute,
		LogOutput:              io.Discard,
	}
}
