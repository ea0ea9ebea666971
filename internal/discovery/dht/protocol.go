package dht

import (
	"github.com/dep2p/go-bootnode/pkg/types"
)

// ============================================================================
//                              消息类型
// ============================================================================

// MessageType 消息类型
type MessageType string

const (
	// MessageTypeFindNode FIND_NODE 请求
	MessageTypeFindNode MessageType = "FIND_NODE"
	// MessageTypeFindNodeResponse FIND_NODE 响应
	MessageTypeFindNodeResponse MessageType = "FIND_NODE_RESPONSE"
)

// Message 线上消息，uvarint 长度前缀的 JSON
type Message struct {
	Type MessageType `json:"type"`

	// QueryID 发起方的查询标识，仅用于日志关联
	QueryID string `json:"query_id,omitempty"`

	// Target 查找目标
	Target types.NodeID `json:"target"`

	// CloserPeers 响应中距离目标较近的节点
	CloserPeers []WirePeer `json:"closer_peers,omitempty"`
}

// WirePeer 消息中的节点
type WirePeer struct {
	ID    types.NodeID `json:"id"`
	Addrs []string     `json:"addrs"`
}

// toWire 转换为线上格式
func toWire(records []PeerRecord) []WirePeer {
	out := make([]WirePeer, 0, len(records))
	for _, r := range records {
		out = append(out, WirePeer{ID: r.ID, Addrs: types.AddrStrings(r.Addrs)})
	}
	return out
}

// fromWire 转换为地址信息，丢弃没有可解析地址的节点
func fromWire(peers []WirePeer) []types.AddrInfo {
	out := make([]types.AddrInfo, 0, len(peers))
	for _, p := range peers {
		if p.ID.IsEmpty() {
			continue
		}
		addrs := types.ParseAddrs(p.Addrs)
		if len(addrs) == 0 {
			continue
		}
		out = append(out, types.AddrInfo{ID: p.ID, Addrs: addrs})
	}
	return out
}
