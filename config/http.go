package config

import (
	"errors"
	"net"
	"strconv"
)

// HTTPConfig 健康检查与指标 HTTP 服务配置
type HTTPConfig struct {
	Host string `yaml:"http_server_host"`
	Port int    `yaml:"http_server_port"`
}

// DefaultHTTPConfig 返回默认 HTTP 配置
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{Host: "127.0.0.1", Port: 7700}
}

// Addr 返回 host:port
func (c HTTPConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate 验证 HTTP 配置
func (c HTTPConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.New("http_server_port must be in [0, 65535]")
	}
	return nil
}
