package upgrader

import (
	"context"
	"fmt"
	"net"
	"time"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/dep2p/go-bootnode/internal/core/muxer/yamux"
	"github.com/dep2p/go-bootnode/internal/core/security/noise"
	"github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/lib/log"
	"github.com/dep2p/go-bootnode/pkg/types"
)

var logger = log.Logger("core/upgrader")

// defaultHandshakeTimeout 默认握手超时
const defaultHandshakeTimeout = 10 * time.Second

// Upgrader 连接升级器
type Upgrader struct {
	security  *noise.Transport
	muxer     *yamux.Transport
	admission interfaces.Admission
	timeout   time.Duration
}

// New 创建连接升级器
//
// admission 为 nil 时不做准入检查（仅测试使用）。
func New(security *noise.Transport, muxer *yamux.Transport, admission interfaces.Admission, timeout time.Duration) *Upgrader {
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	return &Upgrader{
		security:  security,
		muxer:     muxer,
		admission: admission,
		timeout:   timeout,
	}
}

// Admission 返回准入过滤器
func (u *Upgrader) Admission() interfaces.Admission {
	return u.admission
}

// UpgradeInbound 升级入站连接
//
// 准入检查在任何握手资源分配之前执行，拒绝时直接关闭连接。
func (u *Upgrader) UpgradeInbound(ctx context.Context, conn net.Conn, transport string, laddr, raddr ma.Multiaddr) (interfaces.CapableConn, error) {
	if u.admission != nil {
		if !u.admission.InterceptAccept(raddr) {
			conn.Close()
			return nil, ErrGated
		}
		if !u.admission.Reserve() {
			conn.Close()
			return nil, ErrConnLimit
		}
	}
	return u.upgrade(ctx, conn, transport, laddr, raddr, types.DirInbound, types.EmptyNodeID)
}

// UpgradeOutbound 升级出站连接，expected 为期望的远端身份（可为空）
func (u *Upgrader) UpgradeOutbound(ctx context.Context, conn net.Conn, transport string, laddr, raddr ma.Multiaddr, expected types.NodeID) (interfaces.CapableConn, error) {
	if u.admission != nil && !u.admission.Reserve() {
		conn.Close()
		return nil, ErrConnLimit
	}
	return u.upgrade(ctx, conn, transport, laddr, raddr, types.DirOutbound, expected)
}

func (u *Upgrader) upgrade(ctx context.Context, conn net.Conn, transport string, laddr, raddr ma.Multiaddr, dir types.Direction, expected types.NodeID) (_ interfaces.CapableConn, err error) {
	release := func() {}
	if u.admission != nil {
		release = u.admission.Release
	}
	defer func() {
		if err != nil {
			conn.Close()
			release()
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	isServer := dir == types.DirInbound

	// 1. 安全协议协商
	if err := negotiate(ctx, conn, u.security.ID(), isServer, u.timeout); err != nil {
		return nil, err
	}

	// 2. 安全握手
	var secConn noise.Conn
	if isServer {
		secConn, err = u.security.SecureInbound(ctx, conn)
	} else {
		secConn, err = u.security.SecureOutbound(ctx, conn, expected)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}

	// 3. 按认证身份检查
	if u.admission != nil && !u.admission.InterceptSecured(dir, secConn.RemotePeer(), raddr) {
		logger.Debug("握手后准入拒绝", "remotePeer", secConn.RemotePeer().ShortString(), "dir", dir)
		return nil, ErrGated
	}

	// 4. 多路复用器协商
	if err := negotiate(ctx, secConn, u.muxer.ID(), isServer, u.timeout); err != nil {
		return nil, err
	}

	// 5. 多路复用会话
	session, err := u.muxer.NewSession(secConn, isServer)
	if err != nil {
		return nil, err
	}

	logger.Debug("连接升级成功", "remotePeer", secConn.RemotePeer().ShortString(), "transport", transport, "dir", dir)
	return &upgradedConn{
		session:   session,
		secConn:   secConn,
		transport: transport,
		laddr:     laddr,
		raddr:     raddr,
		release:   release,
	}, nil
}
