package metrics

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/pkg/lib/log"
)

var logger = log.Logger("core/metrics")

// Pusher 周期性推送指标
type Pusher struct {
	pusher   *push.Pusher
	interval time.Duration
	clock    clock.Clock
}

// NewPusher 创建推送器
//
// network 为遥测网络名，作为分组标签附加在推送路径上。
func NewPusher(m *Metrics, cfg config.MetricsConfig, network string, clk clock.Clock) *Pusher {
	if clk == nil {
		clk = clock.New()
	}
	p := push.New(cfg.CollectorEndpoint, cfg.Job).
		Gatherer(m.Registry()).
		Grouping("origin", cfg.Origin).
		Grouping("network", network).
		Grouping("instance", m.node.PeerID.String())
	return &Pusher{pusher: p, interval: cfg.PushInterval.Duration(), clock: clk}
}

// Push 推送一次
func (p *Pusher) Push(ctx context.Context) error {
	return p.pusher.PushContext(ctx)
}

// Run 按间隔推送直到 ctx 取消，失败只记录日志
func (p *Pusher) Run(ctx context.Context) {
	t := p.clock.Ticker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		pctx, cancel := context.WithTimeout(ctx, p.interval)
		if err := p.Push(pctx); err != nil {
			logger.Warn("推送指标失败", "error", err)
		}
		cancel()
	}
}
