package orchestrator

import (
	"context"
	"time"

	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/internal/core/protocol/system/ping"
	"github.com/dep2p/go-bootnode/internal/discovery/dht"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// evictDone 淘汰探测结果
type evictDone struct {
	candidate types.NodeID
	alive     bool
	rtt       time.Duration
}

// startEvictionProbe 探测桶中最久未见的节点，存活则保留，否则由新节点替换
func (o *Orchestrator) startEvictionProbe(ev dht.Eviction) {
	ctx := o.ctx
	candidate := ev.Candidate.AddrInfo()
	logger.Debug("桶已满，探测淘汰候选",
		"bucket", ev.Bucket, "candidate", candidate.ID.ShortString(), "newcomer", ev.Newcomer.ID.ShortString())

	o.spawn(func() {
		pctx, cancel := context.WithTimeout(ctx, o.cfg.EvictionProbeTimeout)
		defer cancel()
		rtt, err := o.probePeer(pctx, candidate)
		res := evictDone{candidate: candidate.ID, alive: err == nil, rtt: rtt}
		select {
		case o.evictDone <- res:
		case <-ctx.Done():
		}
	})
}

// probePeer 复用已有连接或新建连接后执行一次 ping
func (o *Orchestrator) probePeer(ctx context.Context, info types.AddrInfo) (time.Duration, error) {
	var c *host.Conn
	for _, cc := range o.host.ConnsToPeer(info.ID) {
		if cc.State() == types.ConnActive {
			c = cc
			break
		}
	}
	if c == nil {
		var err error
		if c, err = o.host.Connect(ctx, info); err != nil {
			return 0, err
		}
	}
	return ping.Ping(ctx, c)
}

func (o *Orchestrator) handleEviction(e evictDone) {
	now := o.clock.Now()
	if !o.table.ResolveEviction(e.candidate, e.alive, now) {
		return
	}
	if e.alive {
		o.table.Update(e.candidate, func(rec *dht.PeerRecord) { rec.RTT = e.rtt })
	}
	logger.Debug("淘汰探测完成", "candidate", e.candidate.ShortString(), "alive", e.alive)
	o.publish()
}
