package orchestrator

import (
	"context"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/dep2p/go-bootnode/internal/core/connmgr/gater"
	"github.com/dep2p/go-bootnode/internal/core/metrics"
	"github.com/dep2p/go-bootnode/internal/discovery/dht"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// StartListening 在指定地址上监听
func (o *Orchestrator) StartListening(ctx context.Context, addrs ...ma.Multiaddr) error {
	var err error
	if e := o.exec(ctx, func() { err = o.host.Listen(addrs...) }); e != nil {
		return e
	}
	if err == nil {
		_ = o.exec(ctx, o.updateActivePeers)
	}
	return err
}

// Bootstrap 连接引导节点并查找自身，返回后启动周期引导
func (o *Orchestrator) Bootstrap(ctx context.Context) (*dht.QueryResult, error) {
	return o.query(ctx, metrics.QueryBootstrap, func(ctx context.Context) (*dht.QueryResult, error) {
		return o.dht.Bootstrap(ctx, o.cfg.BootstrapPeers)
	})
}

// FindPeer 迭代查找目标节点
func (o *Orchestrator) FindPeer(ctx context.Context, target types.NodeID) (*dht.QueryResult, error) {
	return o.query(ctx, metrics.QueryFindPeer, func(ctx context.Context) (*dht.QueryResult, error) {
		return o.dht.FindPeer(ctx, target)
	})
}

func (o *Orchestrator) query(ctx context.Context, kind string, fn queryFunc) (*dht.QueryResult, error) {
	reply := make(chan queryReply, 1)
	if err := o.exec(ctx, func() { o.startQuery(ctx, kind, fn, reply) }); err != nil {
		return nil, err
	}
	select {
	case r := <-reply:
		return r.res, r.err
	case <-o.stopped:
		return nil, ErrStopped
	}
}

// AddAddress 手动添加节点地址
func (o *Orchestrator) AddAddress(ctx context.Context, info types.AddrInfo) (dht.InsertResult, error) {
	var res dht.InsertResult
	err := o.exec(ctx, func() {
		if _, ok := o.table.Get(info.ID); ok {
			if o.table.AddAddrs(info.ID, info.Addrs) {
				o.publish()
			}
			res = dht.Refreshed
			return
		}
		res = o.insert(dht.PeerRecord{ID: info.ID, Addrs: info.Addrs, State: o.peerState(info.ID)})
	})
	return res, err
}

// Ban 封禁目标并关闭所有匹配的连接
//
// 返回时封禁已生效，此后任何匹配的连接尝试都会被拒绝。
func (o *Orchestrator) Ban(ctx context.Context, t gater.Target) error {
	return o.exec(ctx, func() {
		o.gater.Ban(t)
		pol := o.gater.Policy()
		for _, c := range o.host.Conns() {
			if pol.PeerBanned(c.RemotePeer()) || pol.AddrBanned(c.RemoteMultiaddr()) {
				_ = c.Close(ErrBanned)
			}
		}
		if t.Kind == gater.TargetPeer && o.table.Remove(t.Peer) {
			o.publish()
		}
		logger.Info("封禁", "target", t.String())
	})
}

// Unban 解除封禁
func (o *Orchestrator) Unban(ctx context.Context, t gater.Target) error {
	return o.exec(ctx, func() {
		o.gater.Unban(t)
		logger.Info("解除封禁", "target", t.String())
	})
}

// CountPeers 返回路由表中的节点数
func (o *Orchestrator) CountPeers(ctx context.Context) (int, error) {
	var n int
	err := o.exec(ctx, func() { n = o.table.Size() })
	return n, err
}

// WaitIncomingConnection 等待下一条入站连接，返回其节点身份
func (o *Orchestrator) WaitIncomingConnection(ctx context.Context) (types.NodeID, error) {
	w := make(chan types.NodeID, 1)
	if err := o.exec(ctx, func() { o.waiters = append(o.waiters, w) }); err != nil {
		return types.EmptyNodeID, err
	}
	select {
	case p, ok := <-w:
		if !ok {
			return types.EmptyNodeID, ErrStopped
		}
		return p, nil
	case <-ctx.Done():
		return types.EmptyNodeID, ctx.Err()
	}
}
