package gater

import (
	"fmt"
	"net"
	"sort"
	"strings"

	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// ============================================================================
//                              Target - 封禁目标
// ============================================================================

// TargetKind 封禁目标类型
type TargetKind int

const (
	TargetPeer TargetKind = iota
	TargetIP
	TargetSubnet
	TargetAddr
)

// Target 一个封禁目标：节点身份、IP、子网或完整地址
type Target struct {
	Kind   TargetKind
	Peer   types.NodeID
	IP     net.IP
	Subnet *net.IPNet
	Addr   ma.Multiaddr
}

// PeerTarget 按身份封禁
func PeerTarget(id types.NodeID) Target {
	return Target{Kind: TargetPeer, Peer: id}
}

// ParseTarget 解析封禁目标
//
// 依次尝试：以 / 开头的 multiaddr、CIDR 子网、IP、Base58 节点 ID。
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Target{}, ErrInvalidTarget
	case strings.HasPrefix(s, "/"):
		m, err := ma.NewMultiaddr(s)
		if err != nil {
			return Target{}, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
		}
		return Target{Kind: TargetAddr, Addr: m}, nil
	case strings.Contains(s, "/"):
		_, subnet, err := net.ParseCIDR(s)
		if err != nil {
			return Target{}, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
		}
		return Target{Kind: TargetSubnet, Subnet: subnet}, nil
	}
	if ip := net.ParseIP(s); ip != nil {
		return Target{Kind: TargetIP, IP: ip}, nil
	}
	id, err := types.ParseNodeID(s)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidTarget, s)
	}
	return PeerTarget(id), nil
}

// String 返回目标的文本形式
func (t Target) String() string {
	switch t.Kind {
	case TargetPeer:
		return t.Peer.String()
	case TargetIP:
		return t.IP.String()
	case TargetSubnet:
		return t.Subnet.String()
	case TargetAddr:
		return t.Addr.String()
	default:
		return "invalid"
	}
}

// ============================================================================
//                              Policy - 不可变策略快照
// ============================================================================

// Policy 封禁策略快照，创建后不再修改
type Policy struct {
	peers   map[types.NodeID]struct{}
	ips     map[string]struct{}
	subnets []*net.IPNet
	addrs   map[string]struct{}
}

// EmptyPolicy 返回空策略
func EmptyPolicy() *Policy {
	return &Policy{
		peers: make(map[types.NodeID]struct{}),
		ips:   make(map[string]struct{}),
		addrs: make(map[string]struct{}),
	}
}

// clone 深拷贝策略，用于写时复制
func (p *Policy) clone() *Policy {
	n := &Policy{
		peers:   make(map[types.NodeID]struct{}, len(p.peers)),
		ips:     make(map[string]struct{}, len(p.ips)),
		subnets: append([]*net.IPNet(nil), p.subnets...),
		addrs:   make(map[string]struct{}, len(p.addrs)),
	}
	for k := range p.peers {
		n.peers[k] = struct{}{}
	}
	for k := range p.ips {
		n.ips[k] = struct{}{}
	}
	for k := range p.addrs {
		n.addrs[k] = struct{}{}
	}
	return n
}

// with 返回加入目标后的新策略
func (p *Policy) with(t Target) *Policy {
	n := p.clone()
	switch t.Kind {
	case TargetPeer:
		n.peers[t.Peer] = struct{}{}
	case TargetIP:
		n.ips[t.IP.String()] = struct{}{}
	case TargetSubnet:
		for _, s := range n.subnets {
			if s.String() == t.Subnet.String() {
				return n
			}
		}
		n.subnets = append(n.subnets, t.Subnet)
	case TargetAddr:
		n.addrs[string(t.Addr.Bytes())] = struct{}{}
	}
	return n
}

// without 返回移除目标后的新策略
func (p *Policy) without(t Target) *Policy {
	n := p.clone()
	switch t.Kind {
	case TargetPeer:
		delete(n.peers, t.Peer)
	case TargetIP:
		delete(n.ips, t.IP.String())
	case TargetSubnet:
		kept := n.subnets[:0]
		for _, s := range n.subnets {
			if s.String() != t.Subnet.String() {
				kept = append(kept, s)
			}
		}
		n.subnets = kept
	case TargetAddr:
		delete(n.addrs, string(t.Addr.Bytes()))
	}
	return n
}

// PeerBanned 检查身份是否被封禁
func (p *Policy) PeerBanned(id types.NodeID) bool {
	_, ok := p.peers[id]
	return ok
}

// AddrBanned 检查地址是否被封禁（完整地址、IP 或所属子网）
func (p *Policy) AddrBanned(addr ma.Multiaddr) bool {
	if addr == nil {
		return false
	}
	if _, ok := p.addrs[string(addr.Bytes())]; ok {
		return true
	}
	// 带 /p2p 后缀的地址按传输部分再比一次
	if transport, last := ma.SplitLast(addr); last != nil && last.Protocol().Code == ma.P_P2P && transport != nil {
		if _, ok := p.addrs[string(transport.Bytes())]; ok {
			return true
		}
	}
	ip, err := manet.ToIP(addr)
	if err != nil {
		return false
	}
	if _, ok := p.ips[ip.String()]; ok {
		return true
	}
	for _, s := range p.subnets {
		if s.Contains(ip) {
			return true
		}
	}
	return false
}

// Targets 返回全部封禁目标的文本形式（已排序）
func (p *Policy) Targets() []string {
	out := make([]string, 0, len(p.peers)+len(p.ips)+len(p.subnets)+len(p.addrs))
	for id := range p.peers {
		out = append(out, id.String())
	}
	for ip := range p.ips {
		out = append(out, ip)
	}
	for _, s := range p.subnets {
		out = append(out, s.String())
	}
	for b := range p.addrs {
		if m, err := ma.NewMultiaddrBytes([]byte(b)); err == nil {
			out = append(out, m.String())
		}
	}
	sort.Strings(out)
	return out
}
