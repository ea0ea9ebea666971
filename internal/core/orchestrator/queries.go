package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/dep2p/go-bootnode/internal/core/metrics"
	"github.com/dep2p/go-bootnode/internal/discovery/dht"
	"github.com/dep2p/go-bootnode/pkg/types"
)

type queryFunc func(ctx context.Context) (*dht.QueryResult, error)

// queryReply 查询结果回复
type queryReply struct {
	res *dht.QueryResult
	err error
}

// queryDone 查询完成事件
type queryDone struct {
	kind   string
	bucket int
	res    *dht.QueryResult
	err    error
	reply  chan<- queryReply
}

// startQuery 在循环外执行查询，结果作为事件送回；reply 可以为空
func (o *Orchestrator) startQuery(ctx context.Context, kind string, fn queryFunc, reply chan<- queryReply) {
	o.startBucketQuery(ctx, kind, -1, fn, reply)
}

func (o *Orchestrator) startBucketQuery(ctx context.Context, kind string, bucket int, fn queryFunc, reply chan<- queryReply) {
	loopCtx := o.ctx
	o.spawn(func() {
		res, err := fn(ctx)
		select {
		case o.queryDone <- queryDone{kind: kind, bucket: bucket, res: res, err: err, reply: reply}:
		case <-loopCtx.Done():
		}
	})
}

// handleQuery 把查询结果合并进路由表
//
// 响应方与响应中出现的节点都作为候选插入；已在表中的节点只合并地址。
func (o *Orchestrator) handleQuery(q queryDone) {
	if o.metrics != nil {
		o.metrics.ObserveQuery(q.kind, q.resDuration(), q.err)
	}

	if q.res != nil {
		now := o.clock.Now()
		for _, p := range q.res.Responders {
			o.insert(dht.PeerRecord{ID: p.ID, Addrs: p.Addrs, LastSeen: now, State: o.peerState(p.ID)})
		}
		for _, p := range q.res.Discovered {
			if _, ok := o.table.Get(p.ID); ok {
				if o.table.AddAddrs(p.ID, p.Addrs) {
					o.publish()
				}
				continue
			}
			if len(p.Addrs) == 0 {
				continue
			}
			o.insert(dht.PeerRecord{ID: p.ID, Addrs: p.Addrs, State: o.peerState(p.ID)})
		}
		logger.Debug("查询完成", "kind", q.kind, "query", q.res.ID, "rounds", q.res.Rounds,
			"responders", len(q.res.Responders), "timedOut", q.res.TimedOut)
	}
	switch {
	case q.err == nil:
	case isNoPeers(q.err):
		logger.Debug("路由表为空，跳过查询", "kind", q.kind)
	default:
		logger.Warn("查询失败", "kind", q.kind, "error", q.err)
	}

	if q.bucket >= 0 {
		o.table.MarkRefreshed(q.bucket, o.clock.Now())
	}
	if q.kind == metrics.QueryBootstrap && !o.bootstrapped {
		o.bootstrapped = true
		select {
		case o.bootstrapCh <- o.clock.Now():
		default:
		}
	}
	if q.reply != nil {
		q.reply <- queryReply{res: q.res, err: q.err}
	}
}

func (q queryDone) resDuration() time.Duration {
	if q.res == nil {
		return 0
	}
	return q.res.Duration
}

func (o *Orchestrator) peerState(p types.NodeID) types.PeerState {
	if o.host.IsConnected(p) {
		return types.PeerConnected
	}
	return types.PeerDisconnected
}

// refreshBuckets 对超过刷新间隔的桶查找其范围内的随机 ID
//
// 启动引导完成前不刷新。
func (o *Orchestrator) refreshBuckets(ctx context.Context) {
	if !o.bootstrapped || o.table.Size() == 0 {
		return
	}
	now := o.clock.Now()
	for _, b := range o.table.StaleBuckets(now, o.cfg.RefreshInterval) {
		// 查询期间不重复刷新同一个桶
		o.table.MarkRefreshed(b, now)
		target := dht.RandomIDInBucket(o.host.ID(), b)
		o.startBucketQuery(ctx, metrics.QueryRefresh, b, func(ctx context.Context) (*dht.QueryResult, error) {
			return o.dht.FindPeer(ctx, target)
		}, nil)
	}
}

// isNoPeers 路由表为空时的查询错误
func isNoPeers(err error) bool { return errors.Is(err, dht.ErrNoPeers) }
