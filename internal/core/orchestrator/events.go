package orchestrator

import (
	"errors"

	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/internal/core/liveness"
	"github.com/dep2p/go-bootnode/internal/core/metrics"
	"github.com/dep2p/go-bootnode/internal/core/reachability"
	"github.com/dep2p/go-bootnode/internal/discovery/dht"
	"github.com/dep2p/go-bootnode/pkg/types"
)

func (o *Orchestrator) handleEvent(ev host.Event) {
	switch e := ev.(type) {
	case host.EvDialing:
		o.setState(e.Peer, types.PeerConnecting)

	case host.EvDialFailed:
		// 已有其他连接时拨号失败不代表节点不可达
		if o.host.IsConnected(e.Peer) {
			return
		}
		if o.table.Remove(e.Peer) {
			logger.Debug("拨号失败，移除节点", "peer", e.Peer.ShortString(), "error", e.Err)
			o.publish()
		}

	case host.EvConnEstablished:
		o.setState(e.PeerID(), types.PeerConnected)
		if e.Conn.Direction() == types.DirInbound {
			for _, w := range o.waiters {
				w <- e.PeerID()
			}
			o.waiters = nil
		}
		o.updateActivePeers()

	case host.EvIdentified:
		o.handleIdentified(e.Conn, e.Info)

	case host.EvIdentifyFailed:
		logger.Debug("身份交换失败", "conn", e.Conn.String(), "error", e.Err)

	case host.EvConnClosed:
		o.handleClosed(e.Conn, e.Cause)
	}
}

// handleIdentified 支持 Kademlia 协议的节点进入路由表
func (o *Orchestrator) handleIdentified(c *host.Conn, info *types.IdentifyInfo) {
	if !info.SupportsProtocol(o.dht.Protocol()) {
		logger.Debug("节点不支持路由协议", "peer", c.RemotePeer().ShortString())
		return
	}
	addrs := info.ListenAddrs
	if len(addrs) == 0 && c.Direction() == types.DirOutbound {
		addrs = append(addrs, c.RemoteMultiaddr())
	}
	o.insert(dht.PeerRecord{
		ID:       c.RemotePeer(),
		Addrs:    addrs,
		LastSeen: o.clock.Now(),
		State:    types.PeerIdentified,
	})
}

func (o *Orchestrator) handleClosed(c *host.Conn, cause error) {
	p := c.RemotePeer()
	if o.metrics != nil {
		o.metrics.ConnClosed(closeLabel(cause))
	}
	o.updateActivePeers()
	if o.host.IsConnected(p) {
		return
	}
	if cause != nil {
		if o.table.Remove(p) {
			logger.Debug("连接异常关闭，移除节点", "peer", p.ShortString(), "cause", cause)
			o.publish()
		}
		return
	}
	o.setState(p, types.PeerDisconnected)
}

func closeLabel(cause error) string {
	switch {
	case cause == nil:
		return metrics.CloseGraceful
	case errors.Is(cause, liveness.ErrIdleTimeout):
		return metrics.CloseIdle
	case errors.Is(cause, ErrBanned):
		return metrics.CloseBanned
	default:
		return metrics.CloseError
	}
}

// handleLiveness 探测失败或空闲超时时关闭连接，关闭事件随后移除节点
func (o *Orchestrator) handleLiveness(r liveness.Result) {
	if r.Err != nil {
		logger.Debug("关闭不活跃连接", "conn", r.Conn.String(), "error", r.Err)
		_ = r.Conn.Close(r.Err)
		return
	}
	now := o.clock.Now()
	if o.table.Update(r.Peer(), func(rec *dht.PeerRecord) {
		rec.RTT = r.RTT
		rec.LastSeen = now
	}) {
		o.publish()
	}
}

// handleOutcome 应用可达性探测结果，分类改变时调整对外宣告的地址
func (o *Orchestrator) handleOutcome(out reachability.Outcome) {
	if !o.classifier.Record(out) {
		return
	}
	state := o.classifier.State()
	o.reachState.Store(int32(state))
	if o.metrics != nil {
		o.metrics.SetReachability(state)
	}
	if state == types.ReachabilityPublic {
		o.host.SetExternalAddrs(o.classifier.ConfirmedAddrs())
	} else {
		o.host.SetExternalAddrs(nil)
	}
	logger.Info("可达性变化", "state", state.String())
}

func (o *Orchestrator) setState(p types.NodeID, state types.PeerState) {
	if o.table.Update(p, func(rec *dht.PeerRecord) { rec.State = state }) {
		o.publish()
	}
}

func (o *Orchestrator) updateActivePeers() {
	if o.metrics == nil {
		return
	}
	var addr = o.host.AdvertisedAddrs()
	if len(addr) == 0 {
		o.metrics.SetActivePeers(len(o.host.Peers()), nil)
		return
	}
	o.metrics.SetActivePeers(len(o.host.Peers()), addr[0])
}

// insert 插入或刷新记录，桶满时启动淘汰探测
func (o *Orchestrator) insert(rec dht.PeerRecord) dht.InsertResult {
	res, ev := o.table.InsertOrRefresh(rec)
	switch res {
	case dht.Inserted, dht.Refreshed:
		o.publish()
	case dht.EvictionPending:
		if ev != nil {
			o.startEvictionProbe(*ev)
		}
	}
	return res
}
