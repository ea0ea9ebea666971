package system

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/internal/core/protocol/system/identify"
	"github.com/dep2p/go-bootnode/internal/core/protocol/system/ping"
)

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config
	Host   *host.Host
}

// ModuleOutput 定义模块输出
type ModuleOutput struct {
	fx.Out

	Identify *identify.Service
	Ping     *ping.Service
}

// ProvideSystemProtocols 注册身份交换与 ping
func ProvideSystemProtocols(input ModuleInput) ModuleOutput {
	ic := input.Config.Identify
	return ModuleOutput{
		Identify: identify.NewService(input.Host, ic.EffectiveProtocolVersion(), ic.AgentVersion),
		Ping:     ping.NewService(input.Host),
	}
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("system_protocols",
		fx.Provide(ProvideSystemProtocols),
	)
}
