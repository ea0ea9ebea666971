package noise

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"net"
	"time"

	"github.com/flynn/noise"

	"github.com/dep2p/go-bootnode/internal/core/identity"
	"github.com/dep2p/go-bootnode/pkg/lib/log"
	"github.com/dep2p/go-bootnode/pkg/protocolids"
	"github.com/dep2p/go-bootnode/pkg/types"
)

var logger = log.Logger("core/security/noise")

// Conn 握手完成后的加密连接
type Conn interface {
	net.Conn
	LocalPeer() types.NodeID
	RemotePeer() types.NodeID
	RemotePublicKey() ed25519.PublicKey
}

// Transport Noise 协议传输
type Transport struct {
	identity *identity.Identity
	static   noise.DHKey
}

// New 创建 Noise 传输
func New(id *identity.Identity) (*Transport, error) {
	if id == nil {
		return nil, fmt.Errorf("identity is nil")
	}
	static, err := staticKeypair(id)
	if err != nil {
		return nil, err
	}
	return &Transport{identity: id, static: static}, nil
}

// ID 返回协议标识
func (t *Transport) ID() types.ProtocolID {
	return protocolids.SysNoise
}

// SecureInbound 保护入站连接
func (t *Transport) SecureInbound(ctx context.Context, conn net.Conn) (Conn, error) {
	return t.secure(ctx, conn, types.EmptyNodeID, false)
}

// SecureOutbound 保护出站连接，expected 非空时校验对端身份
func (t *Transport) SecureOutbound(ctx context.Context, conn net.Conn, expected types.NodeID) (Conn, error) {
	return t.secure(ctx, conn, expected, true)
}

func (t *Transport) secure(ctx context.Context, conn net.Conn, expected types.NodeID, initiator bool) (Conn, error) {
	if conn == nil {
		return nil, fmt.Errorf("conn is nil")
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("set deadline: %w", err)
		}
		defer conn.SetDeadline(time.Time{})
	}

	// ctx 取消时关闭连接以打断阻塞的读写
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	sc, err := performHandshake(conn, t.identity, t.static, expected, initiator)
	if err != nil {
		logger.Debug("Noise 握手失败", "remote", conn.RemoteAddr(), "initiator", initiator, "error", err)
		return nil, err
	}
	logger.Debug("Noise 握手完成", "remotePeer", sc.remotePeer.ShortString(), "initiator", initiator)
	return sc, nil
}
