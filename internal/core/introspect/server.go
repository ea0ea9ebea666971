// Package introspect 提供健康检查与自省 HTTP 服务
//
// 端点：
//   - HEAD|GET /health      - 存活检查，总是返回 200
//   - GET /metrics          - Prometheus 指标
//   - GET /peers            - 节点身份、路由表大小与连接概况 (JSON)
//   - GET /debug/pprof/*    - Go pprof 端点
package introspect

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-bootnode/internal/discovery/dht"
	"github.com/dep2p/go-bootnode/pkg/lib/log"
	"github.com/dep2p/go-bootnode/pkg/types"
)

var logger = log.Logger("core/introspect")

// DefaultAddr 默认监听地址
const DefaultAddr = "127.0.0.1:7700"

// NodeStatus 节点状态来源
type NodeStatus interface {
	Snapshot() *dht.Snapshot
	Reachability() types.Reachability
}

// HostInfo 主机信息来源
type HostInfo interface {
	ID() types.NodeID
	Peers() []types.NodeID
	AdvertisedAddrs() []ma.Multiaddr
}

// Config 服务配置
type Config struct {
	// Addr 监听地址，默认 "127.0.0.1:7700"
	Addr string

	Host   HostInfo
	Status NodeStatus

	// Gatherer 为空时 /metrics 返回 404
	Gatherer prometheus.Gatherer
}

// Server 健康检查 HTTP 服务
type Server struct {
	cfg Config

	server   *http.Server
	listener net.Listener

	running bool
	mu      sync.Mutex
}

// New 创建服务
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{cfg: cfg}
}

// Handler 返回挂载了所有路由的 chi 路由器
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Head("/health", s.handleHealth)
	r.Get("/peers", s.handlePeers)
	if s.cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Mount("/debug", middleware.Profiler())
	return r
}

// Start 启动服务
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP 服务异常退出", "error", err)
		}
	}()

	s.running = true
	logger.Info("HTTP 服务已启动", "addr", listener.Addr().String())
	return nil
}

// Stop 停止服务
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logger.Error("关闭 HTTP 服务失败", "error", err)
		return err
	}

	s.running = false
	logger.Info("HTTP 服务已停止")
	return nil
}

// Addr 返回实际监听地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

// ============================================================================
//                              HTTP 处理器
// ============================================================================

// PeersResponse /peers 响应
type PeersResponse struct {
	NodeID       types.NodeID `json:"node_id"`
	TableSize    int          `json:"table_size"`
	Connected    int          `json:"connected"`
	Reachability string       `json:"reachability"`
	Addrs        []string     `json:"addrs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePeers(w http.ResponseWriter, _ *http.Request) {
	if s.cfg.Host == nil || s.cfg.Status == nil {
		http.Error(w, "node not available", http.StatusServiceUnavailable)
		return
	}
	resp := PeersResponse{
		NodeID:       s.cfg.Host.ID(),
		TableSize:    s.cfg.Status.Snapshot().Size(),
		Connected:    len(s.cfg.Host.Peers()),
		Reachability: s.cfg.Status.Reachability().String(),
		Addrs:        types.AddrStrings(s.cfg.Host.AdvertisedAddrs()),
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logger.Debug("编码 JSON 失败", "error", err)
	}
}
