package config

import (
	"errors"
	"time"
)

// TransportConfig 传输层配置
type TransportConfig struct {
	// ListenHost 监听地址，默认所有 IPv4 接口
	ListenHost string `yaml:"listen_host"`

	// Port TCP 与 QUIC 共用的监听端口
	Port int `yaml:"port"`

	// QUICEnable 是否启用 QUIC 传输
	QUICEnable bool `yaml:"quic_enable"`

	// WSEnable 是否启用 WebSocket 传输（HTTP 隧道回退）
	WSEnable bool `yaml:"ws_transport_enable"`

	// WSPort WebSocket 监听端口，0 表示 Port+1
	WSPort int `yaml:"ws_port"`

	// DNSServer 解析 /dns4 /dns6 地址使用的服务器（host:port），为空时读取 /etc/resolv.conf
	DNSServer string `yaml:"dns_server"`

	// MaxConnections 最大并发连接数，超出的连接在准入阶段被拒绝
	MaxConnections int `yaml:"max_connections"`

	// ConnectionIdleTimeout 无协议流量的连接被关闭前的空闲时间
	ConnectionIdleTimeout Duration `yaml:"connection_idle_timeout"`

	// HandshakeTimeout 安全握手与多路复用协商的超时
	HandshakeTimeout Duration `yaml:"handshake_timeout"`
}

// DefaultTransportConfig 返回默认传输配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		ListenHost:            "0.0.0.0",
		Port:                  39000,
		QUICEnable:            true,
		WSEnable:              false,
		WSPort:                0,
		MaxConnections:        1024,
		ConnectionIdleTimeout: Duration(30 * time.Second),
		HandshakeTimeout:      Duration(10 * time.Second),
	}
}

// EffectiveWSPort 返回 WebSocket 实际端口，Port 为 0（随机端口）时同样随机
func (c TransportConfig) EffectiveWSPort() int {
	if c.WSPort != 0 || c.Port == 0 {
		return c.WSPort
	}
	return c.Port + 1
}

// Validate 验证传输配置
func (c TransportConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.New("port must be in [0, 65535]")
	}
	if c.WSPort < 0 || c.WSPort > 65535 {
		return errors.New("ws_port must be in [0, 65535]")
	}
	if c.MaxConnections <= 0 {
		return errors.New("max_connections must be positive")
	}
	if c.ConnectionIdleTimeout <= 0 {
		return errors.New("connection_idle_timeout must be positive")
	}
	if c.HandshakeTimeout <= 0 {
		return errors.New("handshake_timeout must be positive")
	}
	return nil
}
