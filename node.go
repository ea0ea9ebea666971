package bootnode

import (
	"context"
	"fmt"
	"sync"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/fx"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/internal/core/introspect"
	"github.com/dep2p/go-bootnode/internal/core/metrics"
	"github.com/dep2p/go-bootnode/internal/core/orchestrator"
	"github.com/dep2p/go-bootnode/pkg/lib/log"
	"github.com/dep2p/go-bootnode/pkg/types"
)

var logger = log.Logger("bootnode")

const (
	// startTimeout fx 应用启动超时（包含端口绑定）
	startTimeout = 30 * time.Second

	// stopTimeout fx 应用停止超时
	stopTimeout = 15 * time.Second
)

// Node 引导节点
//
// Node 只负责组件装配与生命周期，运行期的所有状态变更都经由 Orchestrator。
type Node struct {
	cfg *config.Config
	app *fx.App

	host    *host.Host
	orch    *orchestrator.Orchestrator
	server  *introspect.Server
	metrics *metrics.Metrics

	mu      sync.Mutex
	started bool
	closed  bool
}

// New 按配置组装节点，不进行任何网络活动
//
// extra 用于测试或嵌入时追加 fx 选项。
func New(cfg *config.Config, extra ...fx.Option) (*Node, error) {
	n := &Node{cfg: cfg}
	app, err := buildFxApp(cfg, n, extra...)
	if err != nil {
		return nil, err
	}
	if err := app.Err(); err != nil {
		return nil, fmt.Errorf("build node: %w", err)
	}
	n.app = app
	return n, nil
}

// Start 启动节点：监听端口、启动事件循环与 HTTP 服务，并在后台执行引导
//
// 端口绑定失败时返回错误，已启动的组件会被停止。
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrNodeClosed
	}
	if n.started {
		return ErrAlreadyStarted
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := n.app.Start(startCtx); err != nil {
		logger.Error("节点启动失败", "error", err)
		return fmt.Errorf("start: %w", err)
	}
	n.started = true
	logger.Info("引导节点已就绪", "version", Version, "id", n.ID().String(), "http", n.server.Addr())
	return nil
}

// Stop 停止节点并释放所有连接与端口，可重复调用
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}
	n.closed = true
	if !n.started {
		return nil
	}

	stopCtx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()
	if err := n.app.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	logger.Info("引导节点已停止")
	return nil
}

// Done 返回在收到 fx 关闭信号（SIGINT/SIGTERM 或 Shutdowner）时关闭的通道
func (n *Node) Done() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		<-n.app.Wait()
		close(done)
	}()
	return done
}

// ID 返回本节点 NodeID
func (n *Node) ID() types.NodeID { return n.host.ID() }

// Addrs 返回监听地址
func (n *Node) Addrs() []ma.Multiaddr { return n.host.ListenAddrs() }

// P2pAddrs 返回带 /p2p/<NodeID> 后缀的可分享地址
func (n *Node) P2pAddrs() ([]ma.Multiaddr, error) {
	return types.AddrInfo{ID: n.ID(), Addrs: n.host.AdvertisedAddrs()}.P2pAddrs()
}

// HTTPAddr 返回 HTTP 服务实际监听地址
func (n *Node) HTTPAddr() string { return n.server.Addr() }

// Orchestrator 返回事件循环，所有运行期命令经由它提交
func (n *Node) Orchestrator() *orchestrator.Orchestrator { return n.orch }

// Host 返回底层主机
func (n *Node) Host() *host.Host { return n.host }

// Metrics 返回指标集合
func (n *Node) Metrics() *metrics.Metrics { return n.metrics }
