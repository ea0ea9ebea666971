package host

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Config 主机配置
type Config struct {
	// DialTimeout 单个地址的拨号超时（含握手）
	DialTimeout time.Duration

	// NegotiateTimeout 流协议协商超时
	NegotiateTimeout time.Duration

	// IdentifyTimeout 身份交换超时
	IdentifyTimeout time.Duration

	// EventBuffer 事件通道容量
	EventBuffer int

	// Clock 记录连接活动时间的时钟，IO 截止时间始终使用系统时钟
	Clock clock.Clock
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		DialTimeout:      15 * time.Second,
		NegotiateTimeout: 10 * time.Second,
		IdentifyTimeout:  30 * time.Second,
		EventBuffer:      256,
		Clock:            clock.New(),
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.NegotiateTimeout <= 0 {
		c.NegotiateTimeout = def.NegotiateTimeout
	}
	if c.IdentifyTimeout <= 0 {
		c.IdentifyTimeout = def.IdentifyTimeout
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = def.EventBuffer
	}
	if c.Clock == nil {
		c.Clock = def.Clock
	}
}
