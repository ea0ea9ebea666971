package config

import (
	"errors"

	"gopkg.in/yaml.v3"
)

// IdentityConfig 身份配置
//
// Seed 与 Key 二选一：
//   - Seed: 由种子字符串确定性派生密钥
//   - Key: 64 个十六进制字符表示的 Ed25519 私钥种子
//   - 都为空: 每次启动生成随机身份
type IdentityConfig struct {
	Seed string `yaml:"seed,omitempty"`
	Key  string `yaml:"key,omitempty"`
}

// DefaultIdentityConfig 返回默认身份配置
//
// 默认种子 "1" 使引导节点在重启后保持同一身份，便于写入他人的引导列表。
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{Seed: "1"}
}

// Validate 验证身份配置
func (c IdentityConfig) Validate() error {
	if c.Seed != "" && c.Key != "" {
		return errors.New("secret_key: seed and key are mutually exclusive")
	}
	return nil
}

// IsRandom 是否使用随机身份
func (c IdentityConfig) IsRandom() bool {
	return c.Seed == "" && c.Key == ""
}

// UnmarshalYAML 整体替换而非与默认值合并，避免默认种子与显式 key 同时存在
func (c *IdentityConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain IdentityConfig
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*c = IdentityConfig(p)
	return nil
}
