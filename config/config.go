// Package config 提供 bootnode 的配置管理
//
// 配置从 YAML 文件加载，文件中缺省的字段保留 Default() 的值。
// 键名保持扁平（log_level、port、kad_query_timeout 等），
// 只有存活探测使用嵌套的 liveness 段。
//
// 使用示例：
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//	    return err
//	}
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config 是 bootnode 的完整配置结构
type Config struct {
	// LogLevel 日志级别，支持 "info" 或按子系统 "dht=debug,info"
	LogLevel string `yaml:"log_level"`

	// LogFormatJSON 以 JSON 输出结构化日志，否则为文本格式
	LogFormatJSON bool `yaml:"log_format_json"`

	// LogFile 日志文件路径，为空时输出到 stderr
	LogFile string `yaml:"log_file"`

	HTTP         HTTPConfig         `yaml:",inline"`
	Transport    TransportConfig    `yaml:",inline"`
	Identify     IdentifyConfig     `yaml:",inline"`
	DHT          DHTConfig          `yaml:",inline"`
	Reachability ReachabilityConfig `yaml:",inline"`
	Metrics      MetricsConfig      `yaml:",inline"`

	// SecretKey 身份来源
	SecretKey IdentityConfig `yaml:"secret_key"`

	// Liveness 空闲连接探测
	Liveness LivenessConfig `yaml:"liveness"`
}

// Default 创建默认配置
func Default() *Config {
	return &Config{
		LogLevel:     "info",
		HTTP:         DefaultHTTPConfig(),
		Transport:    DefaultTransportConfig(),
		Identify:     DefaultIdentifyConfig(),
		DHT:          DefaultDHTConfig(),
		Reachability: DefaultReachabilityConfig(),
		Metrics:      DefaultMetricsConfig(),
		SecretKey:    DefaultIdentityConfig(),
		Liveness:     DefaultLivenessConfig(),
	}
}

// Load 从 YAML 文件加载配置
//
// path 为空时返回默认配置。
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := cfg.UnmarshalYAMLBytes(data); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// UnmarshalYAMLBytes 将 YAML 覆盖到当前配置上，拒绝未知字段
func (c *Config) UnmarshalYAMLBytes(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(c)
}

// Marshal 序列化为 YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate 递归验证所有子配置
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	validators := []interface{ Validate() error }{
		c.HTTP, c.Transport, c.Identify, c.DHT, c.Reachability, c.Metrics, c.SecretKey, c.Liveness,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
