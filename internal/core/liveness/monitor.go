package liveness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/internal/core/protocol/system/ping"
	"github.com/dep2p/go-bootnode/pkg/lib/log"
	"github.com/dep2p/go-bootnode/pkg/types"
)

var logger = log.Logger("core/liveness")

// resultBuffer 结果通道容量
const resultBuffer = 64

// Config 存活检测配置
type Config struct {
	IdleTimeout   time.Duration
	IdleFraction  float64
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
}

// ConfigFrom 从配置文件转换
func ConfigFrom(idleTimeout config.Duration, c config.LivenessConfig) Config {
	return Config{
		IdleTimeout:   idleTimeout.Duration(),
		IdleFraction:  c.IdleFraction,
		CheckInterval: c.CheckInterval.Duration(),
		ProbeTimeout:  c.ProbeTimeout.Duration(),
	}
}

// probeThreshold 触发探测的空闲时长
func (c Config) probeThreshold() time.Duration {
	return time.Duration(float64(c.IdleTimeout) * c.IdleFraction)
}

// Result 一次检测的结果
type Result struct {
	Conn *host.Conn

	// RTT 探测成功时的往返时间
	RTT time.Duration

	// Err 为 nil 表示探测成功；ErrIdleTimeout 或包装了 ErrPeerUnreachable 的错误表示应关闭连接
	Err error
}

// Peer 返回结果涉及的节点
func (r Result) Peer() types.NodeID { return r.Conn.RemotePeer() }

// Pinger 在连接上执行一次回显
type Pinger func(ctx context.Context, c *host.Conn) (time.Duration, error)

// Monitor 存活监视器
type Monitor struct {
	host   *host.Host
	cfg    Config
	clock  clock.Clock
	pinger Pinger

	results chan Result

	mu       sync.Mutex
	inflight map[uint64]struct{}
	wg       sync.WaitGroup
}

// NewMonitor 创建监视器，时钟与主机共用
func NewMonitor(h *host.Host, cfg Config) *Monitor {
	return &Monitor{
		host:     h,
		cfg:      cfg,
		clock:    h.Clock(),
		pinger:   ping.Ping,
		results:  make(chan Result, resultBuffer),
		inflight: make(map[uint64]struct{}),
	}
}

// Results 返回结果通道
func (m *Monitor) Results() <-chan Result { return m.results }

// Run 周期性检查，直到 ctx 取消
func (m *Monitor) Run(ctx context.Context) {
	ticker := m.clock.Ticker(m.cfg.CheckInterval)
	defer ticker.Stop()
	defer m.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check 执行一轮扫描
func (m *Monitor) Check(ctx context.Context) {
	now := m.clock.Now()
	threshold := m.cfg.probeThreshold()

	for _, c := range m.host.Conns() {
		if c.State() != types.ConnActive {
			continue
		}
		idle := c.IdleFor(now)
		switch {
		case idle >= m.cfg.IdleTimeout:
			logger.Debug("连接空闲超时", "conn", c.String(), "idle", idle)
			m.emit(ctx, Result{Conn: c, Err: ErrIdleTimeout})
		case idle >= threshold:
			if m.startProbe(c) {
				m.wg.Add(1)
				go m.probe(ctx, c)
			}
		}
	}
}

func (m *Monitor) startProbe(c *host.Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inflight[c.ID()]; ok {
		return false
	}
	m.inflight[c.ID()] = struct{}{}
	return true
}

func (m *Monitor) probe(ctx context.Context, c *host.Conn) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		delete(m.inflight, c.ID())
		m.mu.Unlock()
	}()

	pctx, cancel := context.WithTimeout(c.Context(), m.cfg.ProbeTimeout)
	defer cancel()

	rtt, err := m.pinger(pctx, c)
	if c.IsClosed() {
		// 连接已关闭，探测结果没有意义
		return
	}
	if err != nil {
		logger.Debug("存活探测失败", "conn", c.String(), "error", err)
		m.emit(ctx, Result{Conn: c, Err: fmt.Errorf("%w: %v", ErrPeerUnreachable, err)})
		return
	}
	m.emit(ctx, Result{Conn: c, RTT: rtt})
}

func (m *Monitor) emit(ctx context.Context, r Result) {
	select {
	case m.results <- r:
	case <-ctx.Done():
	}
}
