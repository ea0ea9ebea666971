package dht

import (
	"time"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// PeerRecord 路由表中的节点记录
type PeerRecord struct {
	ID       types.NodeID
	Addrs    []ma.Multiaddr
	LastSeen time.Time
	State    types.PeerState

	// RTT 最近一次存活探测的往返时间，0 表示未知
	RTT time.Duration
}

// AddrInfo 返回记录的地址信息
func (r PeerRecord) AddrInfo() types.AddrInfo {
	return types.AddrInfo{ID: r.ID, Addrs: append([]ma.Multiaddr(nil), r.Addrs...)}
}

func (r PeerRecord) clone() PeerRecord {
	r.Addrs = append([]ma.Multiaddr(nil), r.Addrs...)
	return r
}
