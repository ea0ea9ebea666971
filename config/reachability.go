package config

import (
	"errors"
	"time"
)

// ReachabilityConfig 可达性探测配置（客户端与回拨服务端）
type ReachabilityConfig struct {
	// ProbeInterval 探测间隔
	ProbeInterval Duration `yaml:"probe_interval"`

	// ProbeFanout 每轮选取的已连接节点数
	ProbeFanout int `yaml:"probe_fanout"`

	// ProbeTimeout 单个回拨请求的超时
	ProbeTimeout Duration `yaml:"probe_timeout"`

	// MinConfirmations 分类改变所需的连续一致结果数（来自不同节点）
	MinConfirmations int `yaml:"min_confirmations"`

	// HistorySize 保留的最近探测结果数
	HistorySize int `yaml:"history_size"`

	// 服务端限流：每 ThrottlePeriod 最多服务 ThrottleGlobalMax 个请求，单个节点最多 ThrottlePeerMax 个
	ThrottleGlobalMax int      `yaml:"autonat_throttle_clients_global_max"`
	ThrottlePeerMax   int      `yaml:"autonat_throttle_clients_peer_max"`
	ThrottlePeriod    Duration `yaml:"autonat_throttle_clients_period"`

	// OnlyGlobalIPs 拒绝来自非公网 IP 的回拨请求
	OnlyGlobalIPs bool `yaml:"autonat_only_global_ips"`

	// STUNServers 查询公网映射地址的 STUN 服务器（host:port），为空时只依赖身份交换报告的观察地址
	STUNServers []string `yaml:"stun_servers,omitempty"`
}

// DefaultReachabilityConfig 返回默认可达性配置
func DefaultReachabilityConfig() ReachabilityConfig {
	return ReachabilityConfig{
		ProbeInterval:     Duration(90 * time.Second),
		ProbeFanout:       3,
		ProbeTimeout:      Duration(15 * time.Second),
		MinConfirmations:  3,
		HistorySize:       16,
		ThrottleGlobalMax: 120,
		ThrottlePeerMax:   4,
		ThrottlePeriod:    Duration(time.Second),
		OnlyGlobalIPs:     true,
	}
}

// Validate 验证可达性配置
func (c ReachabilityConfig) Validate() error {
	if c.ProbeInterval <= 0 || c.ProbeTimeout <= 0 || c.ThrottlePeriod <= 0 {
		return errors.New("reachability intervals must be positive")
	}
	if c.ProbeFanout <= 0 {
		return errors.New("reachability.probe_fanout must be positive")
	}
	if c.MinConfirmations <= 0 {
		return errors.New("reachability.min_confirmations must be positive")
	}
	if c.HistorySize < c.MinConfirmations {
		return errors.New("reachability.history_size must be >= min_confirmations")
	}
	if c.ThrottleGlobalMax <= 0 || c.ThrottlePeerMax <= 0 {
		return errors.New("reachability throttles must be positive")
	}
	return nil
}
