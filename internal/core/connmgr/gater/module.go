package gater

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/pkg/interfaces"
)

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config
}

// ModuleOutput 定义模块输出
type ModuleOutput struct {
	fx.Out

	Gater     *Gater
	Admission interfaces.Admission
}

// ProvideGater 按最大连接数创建准入过滤器
func ProvideGater(input ModuleInput) ModuleOutput {
	g := New(input.Config.Transport.MaxConnections)
	return ModuleOutput{Gater: g, Admission: g}
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("gater",
		fx.Provide(ProvideGater),
	)
}
