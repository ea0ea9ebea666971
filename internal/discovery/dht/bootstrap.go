package dht

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// Bootstrap 连接引导节点，然后查找自身以填充路由表
//
// 查找完成后才返回。引导节点全部不可达且快照为空时返回 ErrBootstrapFailed；
// 没有配置引导节点且快照为空时返回 ErrNoPeers。
// 查找的响应方由调用方插入路由表。
func (d *DHT) Bootstrap(ctx context.Context, seeds []types.AddrInfo) (*QueryResult, error) {
	if len(seeds) == 0 && d.store.Load().Size() == 0 {
		return nil, ErrNoPeers
	}

	var (
		mu        sync.Mutex
		connected []types.AddrInfo
		g         errgroup.Group
	)
	g.SetLimit(d.cfg.Alpha)
	for _, s := range seeds {
		g.Go(func() error {
			if _, err := d.host.Connect(ctx, s); err != nil {
				logger.Warn("引导节点连接失败", "peer", s.ID.ShortString(), "error", err)
				return nil
			}
			mu.Lock()
			connected = append(connected, s)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(seeds) > 0 && len(connected) == 0 && d.store.Load().Size() == 0 {
		return nil, ErrBootstrapFailed
	}
	logger.Info("引导节点已连接", "connected", len(connected), "configured", len(seeds))
	return d.lookup(ctx, d.host.ID(), connected)
}
