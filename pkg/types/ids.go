// Package types 定义 bootnode 的基础类型
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
package types

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"

	"github.com/mr-tron/base58"
)

// ============================================================================
//                              NodeID - 节点标识
// ============================================================================

// NodeID 节点唯一标识符
//
// NodeID = SHA256(Ed25519 公钥)，同时作为路由表的距离度量键。
//
// 外部表示格式：
//   - String(): sha2-256 multihash 的 Base58 编码（可直接用于 /p2p/<NodeID>）
//   - ShortString(): 去掉公共 "Qm" 前缀后的前 8 个字符（日志简短标识）
type NodeID [32]byte

// EmptyNodeID 空节点ID
var EmptyNodeID NodeID

// ErrInvalidNodeID 无效的节点ID错误
var ErrInvalidNodeID = errors.New("invalid node ID")

// multihash 头部：sha2-256 (0x12)，长度 32 (0x20)
var multihashPrefix = [2]byte{0x12, 0x20}

// NodeIDFromPublicKey 从 Ed25519 公钥派生 NodeID
func NodeIDFromPublicKey(pub ed25519.PublicKey) NodeID {
	return NodeID(sha256.Sum256(pub))
}

// NodeIDFromBytes 从原始 32 字节创建 NodeID
func NodeIDFromBytes(b []byte) (NodeID, error) {
	if len(b) != len(NodeID{}) {
		return EmptyNodeID, ErrInvalidNodeID
	}
	var id NodeID
	copy(id[:], b)
	return id, nil
}

// ParseNodeID 从 Base58 字符串解析 NodeID
func ParseNodeID(s string) (NodeID, error) {
	if s == "" {
		return EmptyNodeID, ErrInvalidNodeID
	}
	b, err := base58.Decode(s)
	if err != nil {
		return EmptyNodeID, ErrInvalidNodeID
	}
	if len(b) != 34 || b[0] != multihashPrefix[0] || b[1] != multihashPrefix[1] {
		return EmptyNodeID, ErrInvalidNodeID
	}
	return NodeIDFromBytes(b[2:])
}

// String 返回 NodeID 的 Base58 字符串表示
func (id NodeID) String() string {
	if id.IsEmpty() {
		return ""
	}
	buf := make([]byte, 0, 34)
	buf = append(buf, multihashPrefix[:]...)
	buf = append(buf, id[:]...)
	return base58.Encode(buf)
}

// ShortString 返回 NodeID 的短字符串表示
func (id NodeID) ShortString() string {
	s := id.String()
	if len(s) > 10 {
		return s[2:10]
	}
	return s
}

// Bytes 返回 NodeID 的字节切片
func (id NodeID) Bytes() []byte {
	return id[:]
}

// Equal 比较两个 NodeID 是否相等
func (id NodeID) Equal(other NodeID) bool {
	return id == other
}

// IsEmpty 检查 NodeID 是否为空
func (id NodeID) IsEmpty() bool {
	return id == EmptyNodeID
}

// MarshalText 实现 encoding.TextMarshaler，JSON 中以 Base58 字符串出现
func (id NodeID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (id *NodeID) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*id = EmptyNodeID
		return nil
	}
	parsed, err := ParseNodeID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ============================================================================
//                              ProtocolID - 协议标识
// ============================================================================

// ProtocolID 协议标识符
// 格式: /name/version，如 /bootnode/sys/ping/1.0.0
type ProtocolID string

// String 返回协议ID字符串
func (p ProtocolID) String() string {
	return string(p)
}
