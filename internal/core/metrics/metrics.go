package metrics

import (
	"sync"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dep2p/go-bootnode/internal/core/connmgr/gater"
	"github.com/dep2p/go-bootnode/internal/core/netaddr"
	"github.com/dep2p/go-bootnode/pkg/types"
)

const namespace = "bootnode"

// 连接关闭原因标签
const (
	CloseGraceful = "graceful"
	CloseError    = "error"
	CloseIdle     = "idle"
	CloseBanned   = "banned"
)

// 查询类型标签
const (
	QueryFindPeer  = "find_peer"
	QueryBootstrap = "bootstrap"
	QueryRefresh   = "refresh"
)

// NodeLabels 描述本节点的固定标签
type NodeLabels struct {
	Job     string
	Version string
	Role    string
	PeerID  types.NodeID
}

// Metrics 节点指标集合
type Metrics struct {
	reg  *prometheus.Registry
	node NodeLabels

	connsClosed   *prometheus.CounterVec
	tableSize     prometheus.Gauge
	queryDuration *prometheus.HistogramVec
	reachability  prometheus.Gauge
	activePeers   *prometheus.GaugeVec

	// activeMu 串行化 activePeers 的重置与写入
	activeMu sync.Mutex
}

// New 创建指标集合
//
// g 非空时，准入计数直接读取其统计。
func New(node NodeLabels, g *gater.Gater) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{
		reg:  reg,
		node: node,
		connsClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_closed_total",
			Help:      "Connections closed, by cause.",
		}, []string{"cause"}),
		tableSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "routing_table_size",
			Help:      "Number of peer records in the routing table.",
		}),
		queryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Iterative lookup duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"kind", "outcome"}),
		reachability: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reachability",
			Help:      "Reachability classification (0 unknown, 1 public, 2 private).",
		}),
		activePeers: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_peers",
			Help:      "Number of connected peers.",
		}, []string{"job", "version", "role", "peer_id", "multiaddress", "ip"}),
	}

	if g != nil {
		f.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Connection attempts admitted by policy.",
		}, func() float64 { return float64(g.Stats().Accepted) })
		f.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_rejected_total",
			Help:      "Connection attempts rejected by policy or the connection limit.",
		}, func() float64 {
			st := g.Stats()
			return float64(st.Rejected + st.RejectedLimit)
		})
	}
	return m
}

// Registry 返回底层注册表
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ConnClosed 记录一次连接关闭
func (m *Metrics) ConnClosed(cause string) {
	m.connsClosed.WithLabelValues(cause).Inc()
}

// SetTableSize 更新路由表大小
func (m *Metrics) SetTableSize(n int) {
	m.tableSize.Set(float64(n))
}

// ObserveQuery 记录一次查询耗时
func (m *Metrics) ObserveQuery(kind string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.queryDuration.WithLabelValues(kind, outcome).Observe(d.Seconds())
}

// SetReachability 更新可达性分类
func (m *Metrics) SetReachability(r types.Reachability) {
	m.reachability.Set(float64(r))
}

// SetActivePeers 更新已连接节点数
//
// addr 为本节点当前对外宣告的首个地址，可为空。标签变化时旧序列被清除。
func (m *Metrics) SetActivePeers(n int, addr ma.Multiaddr) {
	var addrStr, ip string
	if addr != nil {
		addrStr = addr.String()
		if v := netaddr.ToIP(addr); v != nil {
			ip = v.String()
		}
	}
	m.activeMu.Lock()
	defer m.activeMu.Unlock()
	m.activePeers.Reset()
	m.activePeers.WithLabelValues(m.node.Job, m.node.Version, m.node.Role, m.node.PeerID.String(), addrStr, ip).
		Set(float64(n))
}
