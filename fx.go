package bootnode

import (
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/core/connmgr/gater"
	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/internal/core/identity"
	"github.com/dep2p/go-bootnode/internal/core/introspect"
	"github.com/dep2p/go-bootnode/internal/core/liveness"
	"github.com/dep2p/go-bootnode/internal/core/metrics"
	"github.com/dep2p/go-bootnode/internal/core/orchestrator"
	"github.com/dep2p/go-bootnode/internal/core/protocol/system"
	"github.com/dep2p/go-bootnode/internal/core/reachability"
	"github.com/dep2p/go-bootnode/internal/discovery/dht"
	"github.com/dep2p/go-bootnode/pkg/lib/log"
)

var fxLogger = log.Logger("fx")

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. Identity → Gater → Transport → Host
//  2. identify / ping → DHT → Liveness → Reachability
//  3. Metrics → Orchestrator → Introspect
//
// Orchestrator 的生命周期钩子负责监听端口与启动引导，
// 因此 Introspect 在端口绑定之后才开始服务。
func buildFxApp(cfg *config.Config, node *Node, extra ...fx.Option) (*fx.App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	modules := []fx.Option{
		fx.Supply(cfg),

		identity.Module(),
		gater.Module(),
		host.Module(),
		system.Module(),
		dht.Module(),
		liveness.Module(),
		reachability.Module(),
		metrics.Module(),
		orchestrator.Module(),
		introspect.Module(),
	}
	modules = append(modules, extra...)

	modules = append(modules,
		fx.Populate(&node.host, &node.orch, &node.server, &node.metrics),
		fx.WithLogger(newFxEventLogger),
	)
	return fx.New(modules...), nil
}

// newFxEventLogger fx 子系统开启 debug 时输出依赖注入过程，否则静默
func newFxEventLogger() fxevent.Logger {
	if fxLogger.Enabled(log.LevelDebug) {
		if l, err := zap.NewDevelopment(); err == nil {
			return &fxevent.ZapLogger{Logger: l}
		}
	}
	return &fxevent.ZapLogger{Logger: zap.NewNop()}
}
