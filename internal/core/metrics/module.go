package metrics

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/core/connmgr/gater"
	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/internal/core/protocol/system/identify"
)

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config
	Host   *host.Host
	Gater  *gater.Gater
}

// ProvideMetrics 创建指标集合
func ProvideMetrics(input ModuleInput) *Metrics {
	ic := input.Config.Identify
	role := ""
	if agent, err := identify.ParseAgent(ic.AgentVersion); err == nil {
		role = agent.Mode
	}
	return New(NodeLabels{
		Job:     input.Config.Metrics.Job,
		Version: ic.AgentVersion,
		Role:    role,
		PeerID:  input.Host.ID(),
	}, input.Gater)
}

// RegisterPusher 启用推送时随应用生命周期运行 Pusher
func RegisterPusher(lc fx.Lifecycle, cfg *config.Config, h *host.Host, m *Metrics) {
	mc := cfg.Metrics
	if !mc.Enable {
		return
	}
	p := NewPusher(m, mc, cfg.Identify.NetworkName(), h.Clock())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				p.Run(ctx)
			}()
			logger.Info("指标推送已启用", "endpoint", mc.CollectorEndpoint, "interval", mc.PushInterval.Duration())
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			<-done
			return nil
		},
	})
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(ProvideMetrics),
		fx.Invoke(RegisterPusher),
	)
}
