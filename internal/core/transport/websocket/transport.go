// Package websocket 提供基于 WebSocket 的备用传输
//
// 用于 UDP 被封锁且只允许 HTTP 出口的网络。地址形如 /ip4/<ip>/tcp/<port>/ws，
// 升级为 websocket 后与 TCP 一样经 Noise + yamux 升级。
package websocket

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"go.uber.org/multierr"

	"github.com/dep2p/go-bootnode/internal/core/transport"
	"github.com/dep2p/go-bootnode/internal/core/upgrader"
	"github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// Name 传输名称
const Name = "ws"

// Transport WebSocket 传输
type Transport struct {
	upgrader         *upgrader.Upgrader
	handshakeTimeout time.Duration

	mu        sync.Mutex
	listeners []interfaces.Listener
}

var _ interfaces.Transport = (*Transport)(nil)

// New 创建 WebSocket 传输
func New(up *upgrader.Upgrader, handshakeTimeout time.Duration) *Transport {
	if handshakeTimeout <= 0 {
		handshakeTimeout = 10 * time.Second
	}
	return &Transport{upgrader: up, handshakeTimeout: handshakeTimeout}
}

// CanDial 接受 /ip4|ip6|dns*/.../tcp/<port>/ws，允许尾部 /p2p
func (t *Transport) CanDial(addr ma.Multiaddr) bool {
	return IsWsAddr(addr)
}

// IsWsAddr 检查地址是否为 WebSocket 地址
func IsWsAddr(addr ma.Multiaddr) bool {
	if addr == nil {
		return false
	}
	protos := addr.Protocols()
	if len(protos) > 0 && protos[len(protos)-1].Code == ma.P_P2P {
		protos = protos[:len(protos)-1]
	}
	if len(protos) != 3 || protos[1].Code != ma.P_TCP || protos[2].Code != ma.P_WS {
		return false
	}
	switch protos[0].Code {
	case ma.P_IP4, ma.P_IP6, ma.P_DNS, ma.P_DNS4, ma.P_DNS6:
		return true
	}
	return false
}

// Protocols 返回处理的协议
func (t *Transport) Protocols() []int {
	return []int{ma.P_WS}
}

// tcpPart 返回 /ws 之前的 ip/tcp 部分
func tcpPart(addr ma.Multiaddr) (ma.Multiaddr, error) {
	if !IsWsAddr(addr) {
		return nil, fmt.Errorf("not a websocket address: %s", addr)
	}
	first, rest := ma.SplitFirst(addr)
	tcpComp, _ := ma.SplitFirst(rest)
	return first.Encapsulate(tcpComp), nil
}

// Dial 建立 websocket 连接并升级
func (t *Transport) Dial(ctx context.Context, raddr ma.Multiaddr, p types.NodeID) (interfaces.CapableConn, error) {
	tcpAddr, err := tcpPart(raddr)
	if err != nil {
		return nil, err
	}
	_, host, err := manet.DialArgs(tcpAddr)
	if err != nil {
		return nil, err
	}
	u := url.URL{Scheme: "ws", Host: host, Path: "/"}

	dialer := ws.Dialer{HandshakeTimeout: t.handshakeTimeout}
	c, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", u.String(), err)
	}
	conn, err := newConn(c)
	if err != nil {
		c.Close()
		return nil, err
	}
	return t.upgrader.UpgradeOutbound(ctx, conn, Name, conn.LocalMultiaddr(), conn.RemoteMultiaddr(), p)
}

// Listen 在 TCP 端口上提供 websocket 升级
func (t *Transport) Listen(laddr ma.Multiaddr) (interfaces.Listener, error) {
	tcpAddr, err := tcpPart(laddr)
	if err != nil {
		return nil, err
	}
	inner, err := manet.Listen(tcpAddr)
	if err != nil {
		return nil, fmt.Errorf("websocket listen %s: %w", laddr, err)
	}
	l := transport.NewUpgradeListener(newRawListener(inner, t.handshakeTimeout), t.upgrader, Name)
	t.mu.Lock()
	t.listeners = append(t.listeners, l)
	t.mu.Unlock()
	return l, nil
}

// Close 关闭所有监听器
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var err error
	for _, l := range t.listeners {
		err = multierr.Append(err, l.Close())
	}
	t.listeners = nil
	return err
}
