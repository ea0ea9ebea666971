package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/core/connmgr/gater"
	"github.com/dep2p/go-bootnode/pkg/types"
)

func testLabels() NodeLabels {
	return NodeLabels{Job: "bootnode", Version: "bootnode/go-client/server", Role: "server", PeerID: types.NodeID{1}}
}

// TestMetrics_Collectors 测试各指标的写入
func TestMetrics_Collectors(t *testing.T) {
	g := gater.New(1)
	m := New(testLabels(), g)

	require.True(t, g.Reserve())
	assert.False(t, g.Reserve())
	g.InterceptPeerDial(types.NodeID{2})
	g.InterceptSecured(types.DirOutbound, types.NodeID{2}, nil)
	g.Ban(gater.PeerTarget(types.NodeID{3}))
	g.InterceptPeerDial(types.NodeID{3})

	m.ConnClosed(CloseIdle)
	m.ConnClosed(CloseIdle)
	m.SetTableSize(7)
	m.SetReachability(types.ReachabilityPrivate)
	m.ObserveQuery(QueryFindPeer, 200*time.Millisecond, nil)
	m.ObserveQuery(QueryFindPeer, time.Second, errors.New("x"))

	assert.Equal(t, 2.0, promtest.ToFloat64(m.connsClosed.WithLabelValues(CloseIdle)))
	assert.Equal(t, 7.0, promtest.ToFloat64(m.tableSize))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.reachability))
	assert.Equal(t, 2, promtest.CollectAndCount(m.queryDuration))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		if len(f.GetMetric()) == 1 && f.GetMetric()[0].GetCounter() != nil {
			values[f.GetName()] = f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, values["bootnode_connections_accepted_total"])
	assert.Equal(t, 2.0, values["bootnode_connections_rejected_total"])
}

// TestMetrics_ActivePeers 标签变化时只保留最新序列
func TestMetrics_ActivePeers(t *testing.T) {
	m := New(testLabels(), nil)

	m.SetActivePeers(3, ma.StringCast("/ip4/10.0.0.1/tcp/39000"))
	m.SetActivePeers(5, ma.StringCast("/ip4/10.0.0.2/tcp/39000"))

	assert.Equal(t, 1, promtest.CollectAndCount(m.activePeers))
	g := m.activePeers.WithLabelValues("bootnode", "bootnode/go-client/server", "server",
		types.NodeID{1}.String(), "/ip4/10.0.0.2/tcp/39000", "10.0.0.2")
	assert.Equal(t, 5.0, promtest.ToFloat64(g))
}

// TestPusher_Push 推送到收集端
func TestPusher_Push(t *testing.T) {
	var (
		calls atomic.Int32
		path  atomic.Value
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		path.Store(r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New(testLabels(), nil)
	m.SetTableSize(1)
	cfg := config.DefaultMetricsConfig()
	cfg.Enable = true
	cfg.CollectorEndpoint = srv.URL

	p := NewPusher(m, cfg, "local:DEV", nil)
	require.NoError(t, p.Push(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, strings.HasPrefix(path.Load().(string), "/metrics/job/bootnode"))
}

// TestPusher_Failure 收集端不可用时返回错误
func TestPusher_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := config.DefaultMetricsConfig()
	cfg.CollectorEndpoint = srv.URL
	p := NewPusher(New(testLabels(), nil), cfg, "local:DEV", nil)
	assert.Error(t, p.Push(context.Background()))
}
