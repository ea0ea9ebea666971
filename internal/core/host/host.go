package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	ma "github.com/multiformats/go-multiaddr"
	mss "github.com/multiformats/go-multistream"
	"go.uber.org/multierr"

	"github.com/dep2p/go-bootnode/internal/core/identity"
	"github.com/dep2p/go-bootnode/internal/core/netaddr"
	"github.com/dep2p/go-bootnode/internal/core/transport"
	"github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/lib/log"
	"github.com/dep2p/go-bootnode/pkg/types"
)

var logger = log.Logger("core/host")

// Identifier 在新连接上执行身份交换
type Identifier func(ctx context.Context, c *Conn) (*types.IdentifyInfo, error)

// Host 节点主机
type Host struct {
	ctx       context.Context
	ctxCancel context.CancelFunc

	id         *identity.Identity
	transports *transport.Registry
	admission  interfaces.Admission
	resolver   *netaddr.Resolver
	cfg        Config
	clock      clock.Clock

	// multistream-select muxer 用于入站协议协商
	mux *mss.MultistreamMuxer[types.ProtocolID]

	mu        sync.RWMutex
	conns     map[types.NodeID]map[uint64]*Conn
	listeners []interfaces.Listener
	external  []ma.Multiaddr
	identify  Identifier

	dialMu sync.Mutex
	dials  map[types.NodeID]*dialCall

	nextConnID atomic.Uint64
	events     chan Event

	closed   atomic.Bool
	refCount sync.WaitGroup
}

// New 创建主机
//
// resolver 可为 nil，此时 DNS 地址被视为不可拨号。
func New(id *identity.Identity, transports *transport.Registry, admission interfaces.Admission, resolver *netaddr.Resolver, cfg Config) *Host {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Host{
		ctx:        ctx,
		ctxCancel:  cancel,
		id:         id,
		transports: transports,
		admission:  admission,
		resolver:   resolver,
		cfg:        cfg,
		clock:      cfg.Clock,
		mux:        mss.NewMultistreamMuxer[types.ProtocolID](),
		conns:      make(map[types.NodeID]map[uint64]*Conn),
		dials:      make(map[types.NodeID]*dialCall),
		events:     make(chan Event, cfg.EventBuffer),
	}
}

// ID 返回本地节点 ID
func (h *Host) ID() types.NodeID { return h.id.ID() }

// Identity 返回本地身份
func (h *Host) Identity() *identity.Identity { return h.id }

// Clock 返回主机使用的时钟
func (h *Host) Clock() clock.Clock { return h.clock }

// Admission 返回准入过滤器
func (h *Host) Admission() interfaces.Admission { return h.admission }

// Events 返回事件通道
func (h *Host) Events() <-chan Event { return h.events }

// SetIdentifier 设置新连接的身份交换函数
//
// 未设置时连接建立后直接视为已识别。
func (h *Host) SetIdentifier(fn Identifier) {
	h.mu.Lock()
	h.identify = fn
	h.mu.Unlock()
}

// ============================================================================
//                              监听与地址
// ============================================================================

// Listen 在指定地址上监听
//
// 任一地址绑定失败时关闭本次已打开的监听器并返回错误。
func (h *Host) Listen(addrs ...ma.Multiaddr) error {
	if h.closed.Load() {
		return ErrHostClosed
	}

	opened := make([]interfaces.Listener, 0, len(addrs))
	for _, addr := range addrs {
		t, err := h.transports.ForAddr(addr)
		if err != nil {
			closeListeners(opened)
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		l, err := t.Listen(addr)
		if err != nil {
			closeListeners(opened)
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		opened = append(opened, l)
	}

	h.mu.Lock()
	h.listeners = append(h.listeners, opened...)
	h.mu.Unlock()

	for _, l := range opened {
		logger.Info("开始监听", "addr", l.Multiaddr().String())
		h.refCount.Add(1)
		go h.acceptLoop(l)
	}
	return nil
}

func closeListeners(ls []interfaces.Listener) {
	for _, l := range ls {
		_ = l.Close()
	}
}

// ListenAddrs 返回实际监听地址（可能包含未指定 IP）
func (h *Host) ListenAddrs() []ma.Multiaddr {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]ma.Multiaddr, 0, len(h.listeners))
	for _, l := range h.listeners {
		out = append(out, l.Multiaddr())
	}
	return out
}

// Addrs 返回展开网卡后的本地可用地址
func (h *Host) Addrs() []ma.Multiaddr {
	var out []ma.Multiaddr
	for _, l := range h.ListenAddrs() {
		out = append(out, netaddr.ExpandUnspecified(l)...)
	}
	return types.MergeAddrs(netaddr.FilterAdvertisable(out))
}

// SetExternalAddrs 设置已确认的外部地址
func (h *Host) SetExternalAddrs(addrs []ma.Multiaddr) {
	h.mu.Lock()
	h.external = append([]ma.Multiaddr(nil), addrs...)
	h.mu.Unlock()
}

// ExternalAddrs 返回已确认的外部地址
func (h *Host) ExternalAddrs() []ma.Multiaddr {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]ma.Multiaddr(nil), h.external...)
}

// AdvertisedAddrs 返回对外通告的地址：外部地址优先，其次本地地址
func (h *Host) AdvertisedAddrs() []ma.Multiaddr {
	return types.MergeAddrs(h.ExternalAddrs(), h.Addrs())
}

// ============================================================================
//                              流处理器
// ============================================================================

// SetStreamHandler 注册协议处理器
func (h *Host) SetStreamHandler(proto types.ProtocolID, handler StreamHandler) {
	h.mux.AddHandler(proto, func(_ types.ProtocolID, rwc io.ReadWriteCloser) error {
		handler(rwc.(*Stream))
		return nil
	})
}

// RemoveStreamHandler 移除协议处理器
func (h *Host) RemoveStreamHandler(proto types.ProtocolID) {
	h.mux.RemoveHandler(proto)
}

// Protocols 返回已注册的协议
func (h *Host) Protocols() []types.ProtocolID {
	return h.mux.Protocols()
}

// handleInboundStream 协商入站流的协议并分发到处理器
func (h *Host) handleInboundStream(c *Conn, ms interfaces.MuxedStream) {
	_ = ms.SetDeadline(time.Now().Add(h.cfg.NegotiateTimeout))
	proto, handler, err := h.mux.Negotiate(ms)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			logger.Debug("协议协商失败", "peer", c.RemotePeer().ShortString(), "error", err)
		}
		_ = ms.Reset()
		return
	}
	_ = ms.SetDeadline(time.Time{})

	s := newStream(ms, c, proto)
	if err := handler(proto, s); err != nil {
		logger.Debug("流处理失败", "peer", c.RemotePeer().ShortString(), "protocol", proto, "error", err)
		_ = s.Reset()
	}
}

// ============================================================================
//                              连接表
// ============================================================================

func (h *Host) acceptLoop(l interfaces.Listener) {
	defer h.refCount.Done()
	for {
		cc, err := l.Accept()
		if err != nil {
			if !h.closed.Load() {
				logger.Debug("监听器退出", "addr", l.Multiaddr().String(), "error", err)
			}
			return
		}
		h.addConn(cc, types.DirInbound)
	}
}

// addConn 登记连接并启动其驱动 goroutine，主机已关闭时返回 nil
func (h *Host) addConn(cc interfaces.CapableConn, dir types.Direction) *Conn {
	c := newConn(h, h.nextConnID.Add(1), cc, dir)

	h.mu.Lock()
	if h.closed.Load() {
		h.mu.Unlock()
		_ = c.Close(ErrHostClosed)
		return nil
	}
	p := cc.RemotePeer()
	if h.conns[p] == nil {
		h.conns[p] = make(map[uint64]*Conn)
	}
	h.conns[p][c.id] = c
	h.refCount.Add(2)
	h.mu.Unlock()

	logger.Debug("连接建立", "conn", c.String(), "transport", c.Transport())
	go h.acceptStreams(c)
	go h.runConn(c)
	return c
}

func (h *Host) removeConn(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p := c.RemotePeer()
	if m := h.conns[p]; m != nil {
		delete(m, c.id)
		if len(m) == 0 {
			delete(h.conns, p)
		}
	}
}

// runConn 驱动单条连接的生命周期并按序投递事件
func (h *Host) runConn(c *Conn) {
	defer h.refCount.Done()

	h.emit(EvConnEstablished{Conn: c})

	if c.setState(types.ConnIdentifying) {
		info, err := h.identifyConn(c)
		switch {
		case err != nil:
			if !c.IsClosed() {
				h.emit(EvIdentifyFailed{Conn: c, Err: err})
			}
			_ = c.Close(err)
		case c.setState(types.ConnIdentified):
			c.info.Store(info)
			h.emit(EvIdentified{Conn: c, Info: info})
			c.setState(types.ConnActive)
		}
	}

	<-c.done
	h.removeConn(c)
	logger.Debug("连接关闭", "conn", c.String(), "cause", c.Cause())
	h.emit(EvConnClosed{Conn: c, Cause: c.Cause()})
}

func (h *Host) identifyConn(c *Conn) (*types.IdentifyInfo, error) {
	h.mu.RLock()
	fn := h.identify
	h.mu.RUnlock()
	if fn == nil {
		return &types.IdentifyInfo{PublicKey: c.RemotePublicKey()}, nil
	}
	ctx, cancel := context.WithTimeout(c.ctx, h.cfg.IdentifyTimeout)
	defer cancel()
	return fn(ctx, c)
}

// acceptStreams 接收远端打开的流，底层会话结束时关闭连接
func (h *Host) acceptStreams(c *Conn) {
	defer h.refCount.Done()
	for {
		ms, err := c.c.AcceptStream()
		if err != nil {
			_ = c.Close(fmt.Errorf("%w: %v", ErrRemoteClosed, err))
			return
		}
		c.touch()
		go h.handleInboundStream(c, ms)
	}
}

func (h *Host) emit(ev Event) {
	select {
	case h.events <- ev:
	case <-h.ctx.Done():
	}
}

// Conns 返回所有连接
func (h *Host) Conns() []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*Conn
	for _, m := range h.conns {
		for _, c := range m {
			out = append(out, c)
		}
	}
	return out
}

// ConnsToPeer 返回到指定节点的连接
func (h *Host) ConnsToPeer(p types.NodeID) []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Conn, 0, len(h.conns[p]))
	for _, c := range h.conns[p] {
		out = append(out, c)
	}
	return out
}

// Peers 返回有连接的节点
func (h *Host) Peers() []types.NodeID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]types.NodeID, 0, len(h.conns))
	for p := range h.conns {
		out = append(out, p)
	}
	return out
}

// IsConnected 检查是否存在到节点的未关闭连接
func (h *Host) IsConnected(p types.NodeID) bool {
	return h.bestConn(p) != nil
}

// bestConn 选择到节点的最佳连接：已识别优先，其次最早建立
func (h *Host) bestConn(p types.NodeID) *Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var best *Conn
	for _, c := range h.conns[p] {
		if c.IsClosed() {
			continue
		}
		if best == nil {
			best = c
			continue
		}
		bestReady := best.State() == types.ConnActive
		cReady := c.State() == types.ConnActive
		if cReady && !bestReady || cReady == bestReady && c.id < best.id {
			best = c
		}
	}
	return best
}

// ClosePeer 以指定原因关闭到节点的所有连接
func (h *Host) ClosePeer(p types.NodeID, cause error) error {
	var errs error
	for _, c := range h.ConnsToPeer(p) {
		errs = multierr.Append(errs, c.Close(cause))
	}
	return errs
}

// NewStream 向节点打开指定协议的流，没有连接时先拨号
func (h *Host) NewStream(ctx context.Context, info types.AddrInfo, proto types.ProtocolID) (*Stream, error) {
	c, err := h.Connect(ctx, info)
	if err != nil {
		return nil, err
	}
	return c.NewStream(ctx, proto)
}

// Close 关闭主机：停止监听，关闭所有连接
func (h *Host) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}

	h.mu.Lock()
	listeners := h.listeners
	h.listeners = nil
	h.mu.Unlock()

	var errs error
	for _, l := range listeners {
		errs = multierr.Append(errs, l.Close())
	}
	for _, c := range h.Conns() {
		_ = c.Close(nil)
	}
	h.ctxCancel()
	h.refCount.Wait()
	return errs
}
