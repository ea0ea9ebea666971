package config

import (
	"errors"
	"time"
)

// DHTConfig 路由表与查询配置
type DHTConfig struct {
	// BucketSize 每个 K 桶容量
	BucketSize int `yaml:"bucket_size"`

	// Alpha 单次迭代查询的并发请求数
	Alpha int `yaml:"alpha"`

	// QueryTimeout 单次迭代查询的全局截止时间
	QueryTimeout Duration `yaml:"kad_query_timeout"`

	// RequestTimeout 单个 FIND_NODE 请求的超时
	RequestTimeout Duration `yaml:"request_timeout"`

	// EvictionProbeTimeout 满桶淘汰前探测最久未见节点的超时
	EvictionProbeTimeout Duration `yaml:"eviction_probe_timeout"`

	// BootstrapPeers 引导节点地址（必须带 /p2p/<NodeID>）
	BootstrapPeers []string `yaml:"bootstrap_peers,omitempty"`

	// BootstrapPeriod 周期性引导的间隔，仅在启动引导完成后生效
	BootstrapPeriod Duration `yaml:"bootstrap_period"`

	// RefreshInterval 桶刷新间隔，超过此时间未刷新的桶会对其范围内的随机 ID 发起查询
	RefreshInterval Duration `yaml:"refresh_interval"`
}

// DefaultDHTConfig 返回默认 DHT 配置
func DefaultDHTConfig() DHTConfig {
	return DHTConfig{
		BucketSize:           20,
		Alpha:                3,
		QueryTimeout:         Duration(60 * time.Second),
		RequestTimeout:       Duration(10 * time.Second),
		EvictionProbeTimeout: Duration(5 * time.Second),
		BootstrapPeriod:      Duration(300 * time.Second),
		RefreshInterval:      Duration(10 * time.Minute),
	}
}

// Validate 验证 DHT 配置
func (c DHTConfig) Validate() error {
	if c.BucketSize <= 0 {
		return errors.New("dht.bucket_size must be positive")
	}
	if c.Alpha <= 0 {
		return errors.New("dht.alpha must be positive")
	}
	if c.QueryTimeout <= 0 || c.RequestTimeout <= 0 || c.EvictionProbeTimeout <= 0 {
		return errors.New("dht timeouts must be positive")
	}
	if c.BootstrapPeriod <= 0 || c.RefreshInterval <= 0 {
		return errors.New("dht periods must be positive")
	}
	return nil
}
