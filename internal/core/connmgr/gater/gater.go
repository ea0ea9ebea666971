package gater

import (
	"sync"
	"sync/atomic"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/lib/log"
	"github.com/dep2p/go-bootnode/pkg/types"
)

var logger = log.Logger("core/connmgr/gater")

// Stats 准入统计
type Stats struct {
	Accepted       uint64
	Rejected       uint64
	RejectedLimit  uint64
	ActiveReserved int64
}

// Gater 连接准入过滤器
type Gater struct {
	policy atomic.Pointer[Policy]
	// writeMu 串行化写时复制，读方只走原子指针
	writeMu sync.Mutex

	maxConns int64
	reserved atomic.Int64

	accepted      atomic.Uint64
	rejected      atomic.Uint64
	rejectedLimit atomic.Uint64
}

var _ interfaces.Admission = (*Gater)(nil)

// New 创建准入过滤器，maxConns <= 0 表示不限制连接数
func New(maxConns int) *Gater {
	g := &Gater{maxConns: int64(maxConns)}
	g.policy.Store(EmptyPolicy())
	return g
}

// Policy 返回当前策略快照
func (g *Gater) Policy() *Policy {
	return g.policy.Load()
}

// Apply 整体替换策略
func (g *Gater) Apply(p *Policy) {
	if p == nil {
		p = EmptyPolicy()
	}
	g.writeMu.Lock()
	g.policy.Store(p)
	g.writeMu.Unlock()
}

// Ban 加入封禁目标，返回后所有检查都能观察到
func (g *Gater) Ban(t Target) {
	g.writeMu.Lock()
	g.policy.Store(g.policy.Load().with(t))
	g.writeMu.Unlock()
	logger.Info("已封禁", "target", t.String())
}

// Unban 移除封禁目标
func (g *Gater) Unban(t Target) {
	g.writeMu.Lock()
	g.policy.Store(g.policy.Load().without(t))
	g.writeMu.Unlock()
	logger.Info("已解除封禁", "target", t.String())
}

// ============================================================================
//                              拦截点
// ============================================================================

// 计数按连接统计：拒绝在终止连接尝试的那一次检查计入，
// 接受只在最后一道检查 InterceptSecured 通过时计入。

// InterceptPeerDial 拨号前按身份检查
func (g *Gater) InterceptPeerDial(p types.NodeID) bool {
	return g.deny(!g.policy.Load().PeerBanned(p))
}

// InterceptAddrDial 拨号前按身份和地址检查
//
// 只用于过滤候选地址，不计入统计。
func (g *Gater) InterceptAddrDial(p types.NodeID, addr ma.Multiaddr) bool {
	pol := g.policy.Load()
	return !pol.PeerBanned(p) && !pol.AddrBanned(addr)
}

// InterceptAccept 入站握手前按远端地址检查
func (g *Gater) InterceptAccept(remote ma.Multiaddr) bool {
	return g.deny(!g.policy.Load().AddrBanned(remote))
}

// InterceptSecured 握手后按认证身份和地址检查
func (g *Gater) InterceptSecured(_ types.Direction, p types.NodeID, remote ma.Multiaddr) bool {
	pol := g.policy.Load()
	if !g.deny(!pol.PeerBanned(p) && !pol.AddrBanned(remote)) {
		return false
	}
	g.accepted.Add(1)
	return true
}

func (g *Gater) deny(ok bool) bool {
	if !ok {
		g.rejected.Add(1)
	}
	return ok
}

// ============================================================================
//                              连接数限制
// ============================================================================

// Reserve 申请连接槽位
func (g *Gater) Reserve() bool {
	if g.maxConns <= 0 {
		g.reserved.Add(1)
		return true
	}
	for {
		cur := g.reserved.Load()
		if cur >= g.maxConns {
			g.rejectedLimit.Add(1)
			return false
		}
		if g.reserved.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Release 释放连接槽位
func (g *Gater) Release() {
	if g.reserved.Add(-1) < 0 {
		// 不应发生：Release 多于 Reserve
		g.reserved.Store(0)
		logger.Warn("连接槽位释放次数多于申请次数")
	}
}

// Stats 返回准入统计
func (g *Gater) Stats() Stats {
	return Stats{
		Accepted:       g.accepted.Load(),
		Rejected:       g.rejected.Load(),
		RejectedLimit:  g.rejectedLimit.Load(),
		ActiveReserved: g.reserved.Load(),
	}
}
