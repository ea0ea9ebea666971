package types

import (
	"crypto/ed25519"

	ma "github.com/multiformats/go-multiaddr"
)

// IdentifyInfo 身份交换得到的远端信息
type IdentifyInfo struct {
	// ProtocolVersion 协议族标识，必须与本地一致
	ProtocolVersion string

	// AgentVersion 客户端版本字符串
	AgentVersion string

	// ListenAddrs 远端声明的监听地址
	ListenAddrs []ma.Multiaddr

	// ObservedAddr 远端看到的本节点地址
	ObservedAddr ma.Multiaddr

	// Protocols 远端支持的协议
	Protocols []ProtocolID

	PublicKey ed25519.PublicKey
}

// SupportsProtocol 检查远端是否声明支持指定协议
func (i *IdentifyInfo) SupportsProtocol(p ProtocolID) bool {
	if i == nil {
		return false
	}
	for _, q := range i.Protocols {
		if q == p {
			return true
		}
	}
	return false
}
