// Package tcp 提供基于 TCP 的传输
//
// TCP 不提供原生加密与多路复用，原始连接交给 upgrader 完成 Noise 握手与 yamux 协商。
package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"go.uber.org/multierr"

	"github.com/dep2p/go-bootnode/internal/core/transport"
	"github.com/dep2p/go-bootnode/internal/core/upgrader"
	"github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// Name 传输名称
const Name = "tcp"

const defaultDialTimeout = 10 * time.Second

// Transport TCP 传输
type Transport struct {
	upgrader *upgrader.Upgrader

	mu        sync.Mutex
	listeners []interfaces.Listener
	closed    bool
}

var _ interfaces.Transport = (*Transport)(nil)

// New 创建 TCP 传输
func New(up *upgrader.Upgrader) *Transport {
	return &Transport{upgrader: up}
}

// CanDial 接受 /ip4|ip6|dns*/.../tcp/<port>，允许尾部 /p2p
func (t *Transport) CanDial(addr ma.Multiaddr) bool {
	return IsTCPAddr(addr)
}

// IsTCPAddr 检查地址是否为纯 TCP 地址
func IsTCPAddr(addr ma.Multiaddr) bool {
	if addr == nil {
		return false
	}
	protos := addr.Protocols()
	if len(protos) > 0 && protos[len(protos)-1].Code == ma.P_P2P {
		protos = protos[:len(protos)-1]
	}
	if len(protos) != 2 || protos[1].Code != ma.P_TCP {
		return false
	}
	switch protos[0].Code {
	case ma.P_IP4, ma.P_IP6, ma.P_DNS, ma.P_DNS4, ma.P_DNS6:
		return true
	}
	return false
}

// Dial 拨号并升级连接
func (t *Transport) Dial(ctx context.Context, raddr ma.Multiaddr, p types.NodeID) (interfaces.CapableConn, error) {
	dialAddr := stripP2P(raddr)
	network, host, err := manet.DialArgs(dialAddr)
	if err != nil {
		return nil, fmt.Errorf("tcp dial args: %w", err)
	}
	d := net.Dialer{Timeout: defaultDialTimeout}
	raw, err := d.DialContext(ctx, network, host)
	if err != nil {
		return nil, err
	}
	if tc, ok := raw.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	mc, err := manet.WrapNetConn(raw)
	if err != nil {
		raw.Close()
		return nil, err
	}
	return t.upgrader.UpgradeOutbound(ctx, mc, Name, mc.LocalMultiaddr(), mc.RemoteMultiaddr(), p)
}

// Listen 监听并返回升级监听器
func (t *Transport) Listen(laddr ma.Multiaddr) (interfaces.Listener, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, transport.ErrListenerClosed
	}
	inner, err := manet.Listen(laddr)
	if err != nil {
		return nil, fmt.Errorf("tcp listen %s: %w", laddr, err)
	}
	l := transport.NewUpgradeListener(inner, t.upgrader, Name)
	t.listeners = append(t.listeners, l)
	return l, nil
}

// Protocols 返回处理的协议
func (t *Transport) Protocols() []int {
	return []int{ma.P_TCP}
}

// Close 关闭所有监听器
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	var err error
	for _, l := range t.listeners {
		err = multierr.Append(err, l.Close())
	}
	t.listeners = nil
	return err
}

// stripP2P 去掉尾部 /p2p 组件
func stripP2P(addr ma.Multiaddr) ma.Multiaddr {
	rest, last := ma.SplitLast(addr)
	if last != nil && last.Protocol().Code == ma.P_P2P && rest != nil {
		return rest
	}
	return addr
}
