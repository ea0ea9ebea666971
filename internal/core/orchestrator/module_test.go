package orchestrator

import (
	"context"
	"strconv"
	"testing"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/core/connmgr/gater"
	"github.com/dep2p/go-bootnode/internal/discovery/dht"
	"github.com/dep2p/go-bootnode/tests/testutil"
)

// TestLifecycle_BindFailureStopsLoop 端口绑定失败时启动失败且事件循环退出
func TestLifecycle_BindFailureStopsLoop(t *testing.T) {
	busy := testutil.NewHost(t, "busy")
	port, err := busy.ListenAddrs()[0].ValueForProtocol(ma.P_TCP)
	require.NoError(t, err)

	g := gater.New(0)
	h := testutil.NewHost(t, "a", testutil.WithGater(g), testutil.NoListen())
	testutil.DrainEvents(t, h)
	d := dht.New(h, dht.NewSnapshotStore(h.ID()), testutil.TestProtocolVersion, dht.Config{
		BucketSize:     20,
		Alpha:          3,
		QueryTimeout:   time.Second,
		RequestTimeout: time.Second,
	})
	o := New(h, d, g, nil, nil, nil, Config{
		BootstrapPeriod:      time.Hour,
		RefreshInterval:      time.Hour,
		EvictionProbeTimeout: time.Second,
		MinConfirmations:     2,
		HistorySize:          4,
	})

	cfg := config.Default()
	cfg.Transport.ListenHost = "127.0.0.1"
	cfg.Transport.QUICEnable = false
	cfg.Transport.WSEnable = false
	cfg.Transport.Port, err = strconv.Atoi(port)
	require.NoError(t, err)

	lc := fxtest.NewLifecycle(t)
	RegisterLifecycle(lc, cfg, o)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.Error(t, lc.Start(ctx))

	select {
	case <-o.stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("启动失败后事件循环仍在运行")
	}
	_, err = o.CountPeers(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}
