package types

import (
	"errors"
	"fmt"

	ma "github.com/multiformats/go-multiaddr"
)

// ErrNoPeerComponent 地址中缺少 /p2p/<NodeID> 组件
var ErrNoPeerComponent = errors.New("multiaddr has no /p2p component")

// ============================================================================
//                              AddrInfo - 节点地址信息
// ============================================================================

// AddrInfo 节点 ID 及其已知传输地址
type AddrInfo struct {
	ID    NodeID
	Addrs []ma.Multiaddr
}

// String 返回调试用字符串
func (ai AddrInfo) String() string {
	return fmt.Sprintf("{%s: %v}", ai.ID.ShortString(), ai.Addrs)
}

// AddrInfoFromString 解析形如 /ip4/1.2.3.4/tcp/39000/p2p/<NodeID> 的地址
func AddrInfoFromString(s string) (AddrInfo, error) {
	m, err := ma.NewMultiaddr(s)
	if err != nil {
		return AddrInfo{}, fmt.Errorf("parse multiaddr %q: %w", s, err)
	}
	return AddrInfoFromP2pAddr(m)
}

// AddrInfoFromP2pAddr 从带 /p2p 尾部组件的地址中拆出 NodeID 与传输地址
func AddrInfoFromP2pAddr(m ma.Multiaddr) (AddrInfo, error) {
	transport, last := ma.SplitLast(m)
	if last == nil || last.Protocol().Code != ma.P_P2P {
		return AddrInfo{}, ErrNoPeerComponent
	}
	id, err := ParseNodeID(last.Value())
	if err != nil {
		return AddrInfo{}, err
	}
	info := AddrInfo{ID: id}
	if transport != nil {
		info.Addrs = []ma.Multiaddr{transport}
	}
	return info, nil
}

// P2pAddrs 返回附加了 /p2p/<NodeID> 组件的地址列表
func (ai AddrInfo) P2pAddrs() ([]ma.Multiaddr, error) {
	suffix, err := ma.NewComponent("p2p", ai.ID.String())
	if err != nil {
		return nil, err
	}
	out := make([]ma.Multiaddr, 0, len(ai.Addrs))
	for _, a := range ai.Addrs {
		out = append(out, a.Encapsulate(suffix))
	}
	return out, nil
}

// MergeAddrs 合并地址列表并按字节去重，保持首次出现的顺序
func MergeAddrs(lists ...[]ma.Multiaddr) []ma.Multiaddr {
	seen := make(map[string]struct{})
	var out []ma.Multiaddr
	for _, list := range lists {
		for _, a := range list {
			if a == nil {
				continue
			}
			k := string(a.Bytes())
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}

// AddrStrings 将地址列表转成字符串列表（用于 JSON 消息）
func AddrStrings(addrs []ma.Multiaddr) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return out
}

// ParseAddrs 解析字符串地址列表，忽略无法解析的条目
func ParseAddrs(ss []string) []ma.Multiaddr {
	out := make([]ma.Multiaddr, 0, len(ss))
	for _, s := range ss {
		m, err := ma.NewMultiaddr(s)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}
