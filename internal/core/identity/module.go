package identity

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-bootnode/config"
)

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config
}

// ProvideIdentity 提供进程身份
//
// 私钥配置非法属于致命启动错误，fx 会在任何网络活动开始前失败。
func ProvideIdentity(input ModuleInput) (*Identity, error) {
	return New(input.Config.SecretKey)
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("identity",
		fx.Provide(ProvideIdentity),
	)
}
