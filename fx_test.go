package bootnode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-bootnode/internal/core/connmgr/gater"
	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/internal/core/identity"
	"github.com/dep2p/go-bootnode/internal/core/liveness"
	"github.com/dep2p/go-bootnode/internal/core/metrics"
	"github.com/dep2p/go-bootnode/internal/core/orchestrator"
	"github.com/dep2p/go-bootnode/internal/core/protocol/system"
	"github.com/dep2p/go-bootnode/internal/core/reachability"
	"github.com/dep2p/go-bootnode/internal/discovery/dht"
	"github.com/dep2p/go-bootnode/pkg/protocolids"
)

// TestModules_Wiring 核心模块在没有 HTTP 服务的情况下也能组装并启动
func TestModules_Wiring(t *testing.T) {
	cfg := testConfig()
	var (
		h    *host.Host
		orch *orchestrator.Orchestrator
		g    *gater.Gater
	)
	app := fxtest.New(t,
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
		fx.Populate(&h, &orch, &g),
	)
	app.RequireStart()
	defer app.RequireStop()

	assert.NotEmpty(t, h.ListenAddrs())
	protos := h.Protocols()
	assert.Contains(t, protos, protocolids.SysIdentify)
	assert.Contains(t, protos, protocolids.SysPing)
	assert.Contains(t, protos, protocolids.SysDialBack)

	n, err := orch.CountPeers(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, g.Stats().Rejected)
}

// TestBuildFxApp_InvalidConfig 配置验证先于组件构造
func TestBuildFxApp_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Reachability.ProbeFanout = 0
	_, err := buildFxApp(cfg, &Node{})
	assert.Error(t, err)
}
