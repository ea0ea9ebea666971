package config

import (
	"errors"
	"time"
)

// MetricsConfig 遥测推送配置
type MetricsConfig struct {
	// Enable 是否推送指标
	Enable bool `yaml:"enable"`

	// CollectorEndpoint Pushgateway 兼容的收集端地址
	CollectorEndpoint string `yaml:"ot_collector_endpoint"`

	// PushInterval 推送间隔
	PushInterval Duration `yaml:"metrics_network_dump_interval"`

	// Job 推送时使用的 job 标签
	Job string `yaml:"job"`

	// Origin 部署来源标签
	Origin string `yaml:"origin"`
}

// DefaultMetricsConfig 返回默认遥测配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enable:            false,
		CollectorEndpoint: "http://127.0.0.1:9091",
		PushInterval:      Duration(15 * time.Second),
		Job:               "bootnode",
		Origin:            "external",
	}
}

// Validate 验证遥测配置
func (c MetricsConfig) Validate() error {
	if !c.Enable {
		return nil
	}
	if c.CollectorEndpoint == "" {
		return errors.New("metrics.ot_collector_endpoint is required when metrics are enabled")
	}
	if c.PushInterval <= 0 {
		return errors.New("metrics.metrics_network_dump_interval must be positive")
	}
	return nil
}
