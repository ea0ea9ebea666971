package config

import (
	"errors"
	"time"
)

// LivenessConfig 空闲连接存活探测配置
type LivenessConfig struct {
	// IdleFraction 空闲超过 IdleFraction × connection_idle_timeout 的连接会被探测
	IdleFraction float64 `yaml:"idle_fraction"`

	// CheckInterval 扫描间隔
	CheckInterval Duration `yaml:"check_interval"`

	// ProbeTimeout 单次 ping 的超时
	ProbeTimeout Duration `yaml:"probe_timeout"`
}

// DefaultLivenessConfig 返回默认存活探测配置
func DefaultLivenessConfig() LivenessConfig {
	return LivenessConfig{
		IdleFraction:  0.5,
		CheckInterval: Duration(5 * time.Second),
		ProbeTimeout:  Duration(10 * time.Second),
	}
}

// Validate 验证存活探测配置
func (c LivenessConfig) Validate() error {
	if c.IdleFraction <= 0 || c.IdleFraction >= 1 {
		return errors.New("liveness.idle_fraction must be in (0, 1)")
	}
	if c.CheckInterval <= 0 || c.ProbeTimeout <= 0 {
		return errors.New("liveness intervals must be positive")
	}
	return nil
}
