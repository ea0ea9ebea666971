package reachability

import (
	"context"

	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/fx"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/internal/core/netaddr"
	"github.com/dep2p/go-bootnode/internal/core/protocol/system/identify"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config   *config.Config
	Host     *host.Host
	Identify *identify.Service
}

// ProvideService 注册回拨协议
//
// 候选 IP 来自身份交换中对端报告的观察地址，配置了 STUN 服务器时再合并 STUN 映射地址。
func ProvideService(input ModuleInput, lc fx.Lifecycle) *Service {
	rc := input.Config.Reachability
	observed := input.Identify.ObservedAddrs
	if len(rc.STUNServers) > 0 {
		stun := netaddr.NewSTUNObserver(rc.STUNServers, rc.ProbeInterval.Duration(), input.Host.Clock())
		observed = func() []ma.Multiaddr {
			return types.MergeAddrs(input.Identify.ObservedAddrs(), stun.ObservedAddrs())
		}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					defer close(done)
					stun.Run(ctx)
				}()
				return nil
			},
			OnStop: func(context.Context) error {
				cancel()
				<-done
				return nil
			},
		})
	}
	return NewService(input.Host, ConfigFrom(rc), observed)
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("reachability",
		fx.Provide(ProvideService),
	)
}
