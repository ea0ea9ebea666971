package quic

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"github.com/quic-go/quic-go"
	"go.uber.org/multierr"

	"github.com/dep2p/go-bootnode/internal/core/identity"
	"github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/lib/log"
	"github.com/dep2p/go-bootnode/pkg/types"
)

var logger = log.Logger("core/transport/quic")

// Name 传输名称
const Name = "quic"

// Transport QUIC 传输
//
// 监听与拨号共用同一个 UDP socket，出站连接的源端口就是监听端口，
// 对端观察到的地址因此可直接作为可达性候选。
type Transport struct {
	identity  *identity.Identity
	cert      tls.Certificate
	admission interfaces.Admission
	config    *quic.Config

	mu        sync.Mutex
	qt        *quic.Transport
	udpConn   net.PacketConn
	listeners []*listener
	closed    bool
}

var _ interfaces.Transport = (*Transport)(nil)

// New 创建 QUIC 传输
//
// handshakeTimeout 同时作为 QUIC 握手空闲超时；连接空闲超时由 host 管理，
// 这里的 MaxIdleTimeout 只作为兜底。
func New(id *identity.Identity, admission interfaces.Admission, handshakeTimeout time.Duration) (*Transport, error) {
	cert, err := newCertificate(id)
	if err != nil {
		return nil, err
	}
	if handshakeTimeout <= 0 {
		handshakeTimeout = 10 * time.Second
	}
	return &Transport{
		identity:  id,
		cert:      cert,
		admission: admission,
		config: &quic.Config{
			HandshakeIdleTimeout: handshakeTimeout,
			MaxIdleTimeout:       5 * time.Minute,
			KeepAlivePeriod:      0,
			MaxIncomingStreams:   256,
		},
	}, nil
}

// CanDial 接受 /ip4|ip6/<ip>/udp/<port>/quic-v1，允许尾部 /p2p
func (t *Transport) CanDial(addr ma.Multiaddr) bool {
	return IsQUICAddr(addr)
}

// IsQUICAddr 检查地址是否为 QUIC 地址
func IsQUICAddr(addr ma.Multiaddr) bool {
	if addr == nil {
		return false
	}
	protos := addr.Protocols()
	if len(protos) > 0 && protos[len(protos)-1].Code == ma.P_P2P {
		protos = protos[:len(protos)-1]
	}
	if len(protos) != 3 || protos[1].Code != ma.P_UDP || protos[2].Code != ma.P_QUIC_V1 {
		return false
	}
	switch protos[0].Code {
	case ma.P_IP4, ma.P_IP6:
		return true
	}
	return false
}

// Protocols 返回处理的协议
func (t *Transport) Protocols() []int {
	return []int{ma.P_QUIC_V1}
}

// transport 返回共享的 quic.Transport，未监听时创建随机端口的 socket
func (t *Transport) transport(bind *net.UDPAddr) (*quic.Transport, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, fmt.Errorf("quic transport closed")
	}
	if t.qt != nil {
		return t.qt, nil
	}
	if bind == nil {
		bind = &net.UDPAddr{Port: 0}
	}
	pc, err := net.ListenUDP("udp", bind)
	if err != nil {
		return nil, err
	}
	t.udpConn = pc
	t.qt = &quic.Transport{Conn: pc}
	return t.qt, nil
}

// Dial 拨号并完成 TLS 握手
func (t *Transport) Dial(ctx context.Context, raddr ma.Multiaddr, p types.NodeID) (interfaces.CapableConn, error) {
	udpAddr, err := toUDPAddr(raddr)
	if err != nil {
		return nil, err
	}
	qt, err := t.transport(nil)
	if err != nil {
		return nil, err
	}
	if t.admission != nil && !t.admission.Reserve() {
		return nil, fmt.Errorf("quic: connection limit reached")
	}

	qc, err := qt.Dial(ctx, udpAddr, baseTLSConfig(t.cert, p), t.config)
	if err != nil {
		t.releaseSlot()
		return nil, err
	}
	c, err := t.wrap(qc, types.DirOutbound)
	if err != nil {
		qc.CloseWithError(0, "")
		t.releaseSlot()
		return nil, err
	}
	return c, nil
}

// Listen 在 UDP 端口上监听
//
// 收到 ClientHello 时在 GetConfigForClient 中按远端地址执行准入检查。
// quic-go 没有更早的拒绝钩子，被拒绝的连接以 TLS 告警（CONNECTION_CLOSE）结束，
// 不会进入证书交换，也不会申请连接槽位。
func (t *Transport) Listen(laddr ma.Multiaddr) (interfaces.Listener, error) {
	udpAddr, err := toUDPAddr(laddr)
	if err != nil {
		return nil, err
	}
	qt, err := t.transport(udpAddr)
	if err != nil {
		return nil, fmt.Errorf("quic listen %s: %w", laddr, err)
	}

	tlsConf := baseTLSConfig(t.cert, types.EmptyNodeID)
	tlsConf.GetConfigForClient = func(info *tls.ClientHelloInfo) (*tls.Config, error) {
		if t.admission == nil || info.Conn == nil {
			return nil, nil
		}
		remote, err := fromUDPAddr(info.Conn.RemoteAddr())
		if err != nil {
			return nil, err
		}
		if !t.admission.InterceptAccept(remote) {
			return nil, fmt.Errorf("gated")
		}
		return nil, nil
	}

	ql, err := qt.Listen(tlsConf, t.config)
	if err != nil {
		return nil, fmt.Errorf("quic listen %s: %w", laddr, err)
	}
	local, err := fromUDPAddr(t.udpConn.LocalAddr())
	if err != nil {
		ql.Close()
		return nil, err
	}
	l := &listener{t: t, ql: ql, laddr: local}
	t.mu.Lock()
	t.listeners = append(t.listeners, l)
	t.mu.Unlock()
	return l, nil
}

// wrap 校验握手结果并封装连接
func (t *Transport) wrap(qc quic.Connection, dir types.Direction) (*conn, error) {
	pub, remoteID, err := peerFromState(qc.ConnectionState().TLS)
	if err != nil {
		return nil, err
	}
	laddr, err := fromUDPAddr(qc.LocalAddr())
	if err != nil {
		return nil, err
	}
	raddr, err := fromUDPAddr(qc.RemoteAddr())
	if err != nil {
		return nil, err
	}
	if t.admission != nil && !t.admission.InterceptSecured(dir, remoteID, raddr) {
		return nil, fmt.Errorf("quic: connection gated")
	}
	return &conn{
		qc:         qc,
		localPeer:  t.identity.ID(),
		remotePeer: remoteID,
		remotePub:  pub,
		laddr:      laddr,
		raddr:      raddr,
		release:    t.releaseSlot,
	}, nil
}

func (t *Transport) releaseSlot() {
	if t.admission != nil {
		t.admission.Release()
	}
}

// Close 关闭监听器与共享 socket
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	var err error
	for _, l := range t.listeners {
		err = multierr.Append(err, l.ql.Close())
	}
	if t.qt != nil {
		err = multierr.Append(err, t.qt.Close())
		_ = t.udpConn.Close()
	}
	return err
}

// ============================================================================
//                              地址转换
// ============================================================================

var quicComponent = ma.StringCast("/quic-v1")

func toUDPAddr(addr ma.Multiaddr) (*net.UDPAddr, error) {
	if !IsQUICAddr(addr) {
		return nil, fmt.Errorf("not a quic address: %s", addr)
	}
	// 去掉 /quic-v1 与可能的 /p2p，只保留 ip/udp
	first, rest := ma.SplitFirst(addr)
	udpComp, _ := ma.SplitFirst(rest)
	na, err := manet.ToNetAddr(first.Encapsulate(udpComp))
	if err != nil {
		return nil, err
	}
	udpAddr, ok := na.(*net.UDPAddr)
	if !ok {
		return nil, fmt.Errorf("not a udp address: %s", addr)
	}
	return udpAddr, nil
}

func fromUDPAddr(na net.Addr) (ma.Multiaddr, error) {
	m, err := manet.FromNetAddr(na)
	if err != nil {
		return nil, err
	}
	return m.Encapsulate(quicComponent), nil
}
