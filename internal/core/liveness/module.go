package liveness

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/core/host"
)

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config
	Host   *host.Host
}

// ProvideMonitor 创建存活监视器，由事件循环驱动
func ProvideMonitor(input ModuleInput) *Monitor {
	c := input.Config
	return NewMonitor(input.Host, ConfigFrom(c.Transport.ConnectionIdleTimeout, c.Liveness))
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("liveness",
		fx.Provide(ProvideMonitor),
	)
}
