package dht

import (
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/pkg/lib/log"
	"github.com/dep2p/go-bootnode/pkg/protocolids"
	"github.com/dep2p/go-bootnode/pkg/types"
)

var logger = log.Logger("discovery/dht")

// maxInflightRequests 所有查询合计的并发 FIND_NODE 请求上限
const maxInflightRequests = 64

// Config 查询配置
type Config struct {
	// BucketSize K 值：桶容量，也是查询结果与响应的节点数
	BucketSize int

	// Alpha 每轮并发请求数
	Alpha int

	// QueryTimeout 单次查询的全局截止时间
	QueryTimeout time.Duration

	// RequestTimeout 单个 FIND_NODE 请求超时
	RequestTimeout time.Duration
}

// ConfigFrom 从配置文件转换
func ConfigFrom(c config.DHTConfig) Config {
	return Config{
		BucketSize:     c.BucketSize,
		Alpha:          c.Alpha,
		QueryTimeout:   c.QueryTimeout.Duration(),
		RequestTimeout: c.RequestTimeout.Duration(),
	}
}

// DHT 路由协议的网络侧：FIND_NODE 服务端与迭代查询
//
// 路由表本身由事件循环持有，DHT 只读取发布到 SnapshotStore 的快照。
type DHT struct {
	host     *host.Host
	cfg      Config
	protocol types.ProtocolID
	store    *SnapshotStore
	sem      *semaphore.Weighted
}

// New 创建 DHT 并注册路由协议处理器
//
// 路由协议 ID 即协议族标识，不同网络的节点因此无法互相查询。
func New(h *host.Host, store *SnapshotStore, protocolVersion string, cfg Config) *DHT {
	d := &DHT{
		host:     h,
		cfg:      cfg,
		protocol: protocolids.KadProtocol(protocolVersion),
		store:    store,
		sem:      semaphore.NewWeighted(maxInflightRequests),
	}
	h.SetStreamHandler(d.protocol, d.handleStream)
	return d
}

// Protocol 返回路由协议 ID
func (d *DHT) Protocol() types.ProtocolID { return d.protocol }

// Store 返回快照存储
func (d *DHT) Store() *SnapshotStore { return d.store }

// Config 返回查询配置
func (d *DHT) Config() Config { return d.cfg }
