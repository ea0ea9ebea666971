package orchestrator

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/fx"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/core/connmgr/gater"
	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/internal/core/liveness"
	"github.com/dep2p/go-bootnode/internal/core/metrics"
	"github.com/dep2p/go-bootnode/internal/core/reachability"
	"github.com/dep2p/go-bootnode/internal/discovery/dht"
)

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config  *config.Config
	Host    *host.Host
	DHT     *dht.DHT
	Gater   *gater.Gater
	Monitor *liveness.Monitor     `optional:"true"`
	Reach   *reachability.Service `optional:"true"`
	Metrics *metrics.Metrics      `optional:"true"`
}

// ProvideOrchestrator 创建事件循环
func ProvideOrchestrator(input ModuleInput) (*Orchestrator, error) {
	cfg, err := ConfigFrom(input.Config)
	if err != nil {
		return nil, err
	}
	return New(input.Host, input.DHT, input.Gater, input.Monitor, input.Reach, input.Metrics, cfg), nil
}

// RegisterLifecycle 启动时运行事件循环与周期任务，监听端口并在后台引导
//
// 端口绑定失败会让应用启动失败；引导失败只记录日志，之后的周期引导会重试。
func RegisterLifecycle(lc fx.Lifecycle, cfg *config.Config, o *Orchestrator) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	goRun := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			addrs, err := host.ListenAddrs(cfg.Transport)
			if err != nil {
				return err
			}
			goRun(o.Run)
			if o.monitor != nil {
				goRun(o.monitor.Run)
			}
			if o.reach != nil {
				goRun(o.reach.Run)
			}
			if err := o.StartListening(startCtx, addrs...); err != nil {
				// 启动失败时 fx 不会调用本钩子的 OnStop
				cancel()
				wg.Wait()
				return err
			}
			logger.Info("节点已启动", "id", o.host.ID().String(), "addrs", o.host.Addrs())

			goRun(func(ctx context.Context) {
				res, err := o.Bootstrap(ctx)
				switch {
				case err == nil:
					logger.Info("启动引导完成", "responders", len(res.Responders), "rounds", res.Rounds)
				case errors.Is(err, dht.ErrNoPeers):
					logger.Info("没有可用的引导节点，等待入站连接")
				case ctx.Err() == nil:
					logger.Warn("启动引导失败", "error", err)
				}
			})
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			wg.Wait()
			return nil
		},
	})
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("orchestrator",
		fx.Provide(ProvideOrchestrator),
		fx.Invoke(RegisterLifecycle),
	)
}
