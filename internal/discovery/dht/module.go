package dht

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

// ProvideDHT 注册路由协议处理器，快照由事件循环发布
func ProvideDHT(input ModuleInput) *DHT {
	h := input.Host
	return New(h, NewSnapshotStore(h.ID()), input.Config.Identify.EffectiveProtocolVersion(), ConfigFrom(input.Config.DHT))
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("dht",
		fx.Provide(ProvideDHT),
	)
}
