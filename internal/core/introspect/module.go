package introspect

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/internal/core/metrics"
	"github.com/dep2p/go-bootnode/internal/core/orchestrator"
)

// ModuleInput 模块输入
type ModuleInput struct {
	fx.In

	Config       *config.Config
	Host         *host.Host
	Orchestrator *orchestrator.Orchestrator
	Metrics      *metrics.Metrics `optional:"true"`
}

// ProvideServer 提供健康检查服务
func ProvideServer(in ModuleInput) *Server {
	cfg := Config{
		Addr:   in.Config.HTTP.Addr(),
		Host:   in.Host,
		Status: in.Orchestrator,
	}
	if in.Metrics != nil {
		cfg.Gatherer = in.Metrics.Registry()
	}
	return New(cfg)
}

// Module 返回 introspect fx 模块
func Module() fx.Option {
	return fx.Module("introspect",
		fx.Provide(ProvideServer),
		fx.Invoke(func(lc fx.Lifecycle, s *Server) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					return s.Start(ctx)
				},
				OnStop: func(ctx context.Context) error {
					return s.Stop()
				},
			})
		}),
	)
}
