package config

import (
	"errors"
	"strings"
)

const (
	// DefaultProtocolVersion 身份交换协议族标识的基础部分
	DefaultProtocolVersion = "/bootnode_kad/id/1.0.0"

	// DefaultAgentVersion 默认代理版本，格式 base/client_type/mode
	DefaultAgentVersion = "bootnode/go-client/server"
)

// IdentifyConfig 身份交换配置
type IdentifyConfig struct {
	// ProtocolVersion 协议族标识的基础部分，实际值追加创世哈希前缀
	ProtocolVersion string `yaml:"identify_protocol"`

	// AgentVersion 代理版本字符串
	AgentVersion string `yaml:"identify_agent"`

	// GenesisHash 所属网络的创世哈希，以 "DEV" 开头表示本地开发网络
	GenesisHash string `yaml:"genesis_hash"`
}

// DefaultIdentifyConfig 返回默认身份交换配置
func DefaultIdentifyConfig() IdentifyConfig {
	return IdentifyConfig{
		ProtocolVersion: DefaultProtocolVersion,
		AgentVersion:    DefaultAgentVersion,
		GenesisHash:     "DEV",
	}
}

// EffectiveProtocolVersion 返回带创世哈希前缀的协议族标识
//
// 例如 "/bootnode_kad/id/1.0.0-9d5ea6"，不同网络的节点因此互不兼容。
func (c IdentifyConfig) EffectiveProtocolVersion() string {
	short := strings.TrimPrefix(c.GenesisHash, "0x")
	if len(short) > 6 {
		short = short[:6]
	}
	return c.ProtocolVersion + "-" + short
}

// knownNetworks 已知创世哈希到网络名的映射
var knownNetworks = map[string]string{
	"9d5ea6a5d7631e13028b684a1a0078e3970caa78bd677eaecaf2160304f174fb": "hex",
	"d3d2f3a3495dc597434a99d7d449ebad6616db45e4e4f178f31cc6fa14378b70": "turing",
}

// NetworkName 返回遥测使用的网络名，形如 "turing:d3d2f3"
func (c IdentifyConfig) NetworkName() string {
	hash := strings.TrimPrefix(c.GenesisHash, "0x")
	name, ok := knownNetworks[hash]
	switch {
	case ok:
	case strings.HasPrefix(hash, "DEV"):
		name = "local"
	default:
		name = "other"
	}
	short := hash
	if len(short) > 6 {
		short = short[:6]
	}
	return name + ":" + short
}

// Validate 验证身份交换配置
func (c IdentifyConfig) Validate() error {
	if !strings.HasPrefix(c.ProtocolVersion, "/") {
		return errors.New("identify_protocol must start with '/'")
	}
	if c.AgentVersion == "" {
		return errors.New("identify_agent must not be empty")
	}
	if c.GenesisHash == "" {
		return errors.New("genesis_hash must not be empty")
	}
	return nil
}
