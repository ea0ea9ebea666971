package bootnode

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bootnode/config"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.SecretKey = config.IdentityConfig{}
	cfg.Transport.ListenHost = "127.0.0.1"
	cfg.Transport.Port = 0
	cfg.Transport.QUICEnable = false
	cfg.HTTP.Port = 0
	return cfg
}

func startNode(t *testing.T, cfg *config.Config) *Node {
	t.Helper()
	n, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))
	t.Cleanup(func() { _ = n.Stop(context.Background()) })
	return n
}

// TestNode_StartStop 启动后监听端口并提供健康检查，停止可重复调用
func TestNode_StartStop(t *testing.T) {
	n := startNode(t, testConfig())
	require.NotEmpty(t, n.Addrs())
	assert.ErrorIs(t, n.Start(context.Background()), ErrAlreadyStarted)

	resp, err := http.Get("http://" + n.HTTPAddr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, n.Stop(context.Background()))
	require.NoError(t, n.Stop(context.Background()))
	assert.ErrorIs(t, n.Start(context.Background()), ErrNodeClosed)
}

// TestNode_InvalidConfig 非法配置在组装阶段失败
func TestNode_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.DHT.BucketSize = 0
	_, err := New(cfg)
	assert.Error(t, err)
}

// TestNode_Bootstrap 第二个节点以第一个为种子启动后，双方路由表互相包含
func TestNode_Bootstrap(t *testing.T) {
	seed := startNode(t, testConfig())
	addrs, err := seed.P2pAddrs()
	require.NoError(t, err)
	require.NotEmpty(t, addrs)

	cfg := testConfig()
	for _, a := range addrs {
		cfg.DHT.BootstrapPeers = append(cfg.DHT.BootstrapPeers, a.String())
	}
	joiner := startNode(t, cfg)

	require.Eventually(t, func() bool {
		_, ok := joiner.Orchestrator().Snapshot().Get(seed.ID())
		return ok
	}, 10*time.Second, 50*time.Millisecond)
	require.Eventually(t, func() bool {
		_, ok := seed.Orchestrator().Snapshot().Get(joiner.ID())
		return ok
	}, 10*time.Second, 50*time.Millisecond)
}
