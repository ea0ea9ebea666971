package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-bootnode/internal/core/connmgr/gater"
	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/internal/core/liveness"
	"github.com/dep2p/go-bootnode/internal/core/metrics"
	"github.com/dep2p/go-bootnode/internal/core/reachability"
	"github.com/dep2p/go-bootnode/internal/discovery/dht"
	"github.com/dep2p/go-bootnode/pkg/lib/log"
	"github.com/dep2p/go-bootnode/pkg/types"
)

var logger = log.Logger("core/orchestrator")

// Orchestrator 节点事件循环
type Orchestrator struct {
	host  *host.Host
	dht   *dht.DHT
	gater *gater.Gater
	cfg   Config
	clock clock.Clock

	// 可选组件，为空时对应的事件源不参与 select
	monitor *liveness.Monitor
	reach   *reachability.Service
	metrics *metrics.Metrics

	// 以下字段只在事件循环中访问
	table        *dht.RoutingTable
	classifier   *reachability.Classifier
	bootstrapped bool
	waiters      []chan types.NodeID

	reachState atomic.Int32

	cmds        chan func()
	queryDone   chan queryDone
	evictDone   chan evictDone
	bootstrapCh chan time.Time

	// ctx 事件循环的生命周期，Run 开始时设置
	ctx     context.Context
	stopped chan struct{}
	wg      sync.WaitGroup
}

// New 创建事件循环，monitor、reach 与 m 可以为空
func New(h *host.Host, d *dht.DHT, g *gater.Gater, monitor *liveness.Monitor,
	reach *reachability.Service, m *metrics.Metrics, cfg Config) *Orchestrator {
	clk := h.Clock()
	return &Orchestrator{
		host:        h,
		dht:         d,
		gater:       g,
		cfg:         cfg,
		clock:       clk,
		monitor:     monitor,
		reach:       reach,
		metrics:     m,
		table:       dht.NewRoutingTable(h.ID(), d.Config().BucketSize, clk.Now()),
		classifier:  reachability.NewClassifier(cfg.MinConfirmations, cfg.HistorySize),
		cmds:        make(chan func()),
		queryDone:   make(chan queryDone),
		evictDone:   make(chan evictDone),
		bootstrapCh: make(chan time.Time, 1),
		stopped:     make(chan struct{}),
	}
}

// Snapshot 返回最新的路由表快照
func (o *Orchestrator) Snapshot() *dht.Snapshot { return o.dht.Store().Load() }

// Reachability 返回当前可达性分类
func (o *Orchestrator) Reachability() types.Reachability {
	return types.Reachability(o.reachState.Load())
}

// Run 运行事件循环直到 ctx 取消
func (o *Orchestrator) Run(ctx context.Context) {
	o.ctx = ctx
	defer close(o.stopped)
	defer o.wg.Wait()

	var livenessC <-chan liveness.Result
	if o.monitor != nil {
		livenessC = o.monitor.Results()
	}
	var outcomeC <-chan reachability.Outcome
	if o.reach != nil {
		outcomeC = o.reach.Outcomes()
	}

	refresh := o.clock.Ticker(o.cfg.RefreshInterval)
	defer refresh.Stop()
	// 周期引导在启动引导完成后才创建
	var bootstrapC <-chan time.Time
	var bootstrapTicker *clock.Ticker
	defer func() {
		if bootstrapTicker != nil {
			bootstrapTicker.Stop()
		}
	}()

	o.publish()
	for {
		select {
		case <-ctx.Done():
			o.failWaiters()
			return

		case ev := <-o.host.Events():
			o.handleEvent(ev)

		case r := <-livenessC:
			o.handleLiveness(r)

		case out := <-outcomeC:
			o.handleOutcome(out)

		case q := <-o.queryDone:
			o.handleQuery(q)

		case e := <-o.evictDone:
			o.handleEviction(e)

		case cmd := <-o.cmds:
			cmd()

		case <-o.bootstrapCh:
			if bootstrapTicker == nil {
				bootstrapTicker = o.clock.Ticker(o.cfg.BootstrapPeriod)
				bootstrapC = bootstrapTicker.C
			}

		case <-bootstrapC:
			o.startQuery(ctx, metrics.QueryBootstrap, func(ctx context.Context) (*dht.QueryResult, error) {
				return o.dht.Bootstrap(ctx, o.cfg.BootstrapPeers)
			}, nil)

		case <-refresh.C:
			o.refreshBuckets(ctx)
		}
	}
}

// exec 把 fn 交给事件循环执行并等待其完成
func (o *Orchestrator) exec(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case o.cmds <- func() { fn(); close(done) }:
	case <-o.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-done
	return nil
}

// publish 发布路由表快照并更新相关指标
func (o *Orchestrator) publish() {
	o.dht.Store().Publish(o.table.Snapshot(o.clock.Now()))
	if o.metrics != nil {
		o.metrics.SetTableSize(o.table.Size())
	}
}

// spawn 在循环外执行 fn，Run 退出前等待其完成
func (o *Orchestrator) spawn(fn func()) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		fn()
	}()
}

func (o *Orchestrator) failWaiters() {
	for _, w := range o.waiters {
		close(w)
	}
	o.waiters = nil
}
