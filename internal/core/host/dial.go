package host

import (
	"context"
	"fmt"
	"sort"

	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/multierr"

	"github.com/dep2p/go-bootnode/internal/core/netaddr"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// dialCall 对同一节点的并发拨号只执行一次
type dialCall struct {
	done chan struct{}
	conn *Conn
	err  error
}

// Connect 确保到节点存在连接
//
// 已有连接时直接返回；否则依次拨号各地址，首个成功的连接被登记并返回。
// 对同一节点的并发调用共享一次拨号。
func (h *Host) Connect(ctx context.Context, info types.AddrInfo) (*Conn, error) {
	if h.closed.Load() {
		return nil, ErrHostClosed
	}
	if info.ID == h.ID() {
		return nil, ErrDialSelf
	}
	if c := h.bestConn(info.ID); c != nil {
		return c, nil
	}

	h.dialMu.Lock()
	if call, ok := h.dials[info.ID]; ok {
		h.dialMu.Unlock()
		select {
		case <-call.done:
			return call.conn, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &dialCall{done: make(chan struct{})}
	h.dials[info.ID] = call
	h.dialMu.Unlock()

	call.conn, call.err = h.dialPeer(ctx, info)

	h.dialMu.Lock()
	delete(h.dials, info.ID)
	h.dialMu.Unlock()
	close(call.done)

	return call.conn, call.err
}

func (h *Host) dialPeer(ctx context.Context, info types.AddrInfo) (*Conn, error) {
	h.emit(EvDialing{Peer: info.ID})

	cc, err := h.dialAddrs(ctx, info)
	if err != nil {
		err = fmt.Errorf("dial %s: %w", info.ID.ShortString(), err)
		logger.Debug("拨号失败", "peer", info.ID.ShortString(), "error", err)
		h.emit(EvDialFailed{Peer: info.ID, Err: err})
		return nil, err
	}
	return cc, nil
}

func (h *Host) dialAddrs(ctx context.Context, info types.AddrInfo) (*Conn, error) {
	if !h.admission.InterceptPeerDial(info.ID) {
		return nil, ErrDialGated
	}
	addrs := h.dialableAddrs(ctx, info)
	if len(addrs) == 0 {
		return nil, ErrNoAddresses
	}

	var errs error
	for _, addr := range addrs {
		t, err := h.transports.ForAddr(addr)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		dctx, cancel := context.WithTimeout(ctx, h.cfg.DialTimeout)
		cc, err := t.Dial(dctx, addr, info.ID)
		cancel()
		if err == nil {
			c := h.addConn(cc, types.DirOutbound)
			if c == nil {
				return nil, ErrHostClosed
			}
			return c, nil
		}
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", addr, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errs
}

// DialProbe 建立一条不登记到连接表的新连接
//
// 用于可达性回拨：调用方在连接上完成验证后必须关闭它。
// 不复用已有连接，也不触发任何主机事件；入站流仍按已注册的协议处理，
// 以便对端在这条连接上完成身份交换。
func (h *Host) DialProbe(ctx context.Context, info types.AddrInfo) (*Conn, error) {
	if h.closed.Load() {
		return nil, ErrHostClosed
	}
	if info.ID == h.ID() {
		return nil, ErrDialSelf
	}
	if !h.admission.InterceptPeerDial(info.ID) {
		return nil, ErrDialGated
	}
	addrs := h.dialableAddrs(ctx, info)
	if len(addrs) == 0 {
		return nil, ErrNoAddresses
	}

	var errs error
	for _, addr := range addrs {
		t, err := h.transports.ForAddr(addr)
		if err != nil {
			continue
		}
		dctx, cancel := context.WithTimeout(ctx, h.cfg.DialTimeout)
		cc, err := t.Dial(dctx, addr, info.ID)
		cancel()
		if err == nil {
			c := newConn(h, h.nextConnID.Add(1), cc, types.DirOutbound)
			go func() {
				for {
					ms, err := cc.AcceptStream()
					if err != nil {
						_ = c.Close(nil)
						return
					}
					go h.handleInboundStream(c, ms)
				}
			}()
			return c, nil
		}
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", addr, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errs
}

// dialableAddrs 解析 DNS 地址，过滤不可拨号或被拒绝的地址，并按传输偏好排序
func (h *Host) dialableAddrs(ctx context.Context, info types.AddrInfo) []ma.Multiaddr {
	var candidates []ma.Multiaddr
	for _, addr := range info.Addrs {
		addr, ok := stripPeer(addr, info.ID)
		if !ok {
			continue
		}
		if !netaddr.IsDNS(addr) {
			candidates = append(candidates, addr)
			continue
		}
		if h.resolver == nil {
			continue
		}
		resolved, err := h.resolver.Resolve(ctx, addr)
		if err != nil {
			logger.Debug("地址解析失败", "addr", addr.String(), "error", err)
			continue
		}
		for _, r := range resolved {
			if r, ok := stripPeer(r, info.ID); ok {
				candidates = append(candidates, r)
			}
		}
	}

	out := make([]ma.Multiaddr, 0, len(candidates))
	for _, addr := range types.MergeAddrs(candidates) {
		if netaddr.IsUnspecified(addr) || !h.transports.CanDial(addr) {
			continue
		}
		if !h.admission.InterceptAddrDial(info.ID, addr) {
			continue
		}
		out = append(out, addr)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return transportRank(out[i]) < transportRank(out[j])
	})
	return out
}

// stripPeer 去掉地址尾部的 /p2p 组件，组件指向其他节点时返回 false
func stripPeer(addr ma.Multiaddr, p types.NodeID) (ma.Multiaddr, bool) {
	rest, last := ma.SplitLast(addr)
	if last == nil || last.Protocol().Code != ma.P_P2P {
		return addr, true
	}
	id, err := types.ParseNodeID(last.Value())
	if err != nil || id != p || rest == nil {
		return nil, false
	}
	return rest, true
}

// transportRank 拨号偏好：QUIC 优先，其次 TCP，最后 WebSocket
func transportRank(addr ma.Multiaddr) int {
	rank := 1
	for _, p := range addr.Protocols() {
		switch p.Code {
		case ma.P_QUIC_V1:
			return 0
		case ma.P_WS, ma.P_WSS:
			rank = 2
		}
	}
	return rank
}
