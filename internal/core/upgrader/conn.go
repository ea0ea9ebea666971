package upgrader

import (
	"context"
	"crypto/ed25519"
	"errors"
	"net"
	"sync"

	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/multierr"

	"github.com/dep2p/go-bootnode/internal/core/muxer/yamux"
	"github.com/dep2p/go-bootnode/internal/core/security/noise"
	"github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// upgradedConn 升级后的连接
type upgradedConn struct {
	session   *yamux.Session
	secConn   noise.Conn
	transport string

	laddr ma.Multiaddr
	raddr ma.Multiaddr

	closeOnce sync.Once
	release   func()
	closeErr  error
}

var _ interfaces.CapableConn = (*upgradedConn)(nil)

func (c *upgradedConn) LocalPeer() types.NodeID            { return c.secConn.LocalPeer() }
func (c *upgradedConn) RemotePeer() types.NodeID           { return c.secConn.RemotePeer() }
func (c *upgradedConn) RemotePublicKey() ed25519.PublicKey { return c.secConn.RemotePublicKey() }
func (c *upgradedConn) LocalMultiaddr() ma.Multiaddr       { return c.laddr }
func (c *upgradedConn) RemoteMultiaddr() ma.Multiaddr      { return c.raddr }
func (c *upgradedConn) Transport() string                  { return c.transport }
func (c *upgradedConn) IsClosed() bool                     { return c.session.IsClosed() }
func (c *upgradedConn) AcceptStream() (interfaces.MuxedStream, error) {
	return c.session.AcceptStream()
}

// OpenStream 打开新流
func (c *upgradedConn) OpenStream(ctx context.Context) (interfaces.MuxedStream, error) {
	return c.session.OpenStream(ctx)
}

// Close 关闭会话与底层连接并释放连接槽位
func (c *upgradedConn) Close() error {
	c.closeOnce.Do(func() {
		// yamux 关闭会话时已关闭底层连接，这里只兜底尚未关闭的情况
		c.closeErr = multierr.Combine(c.session.Close(), ignoreClosed(c.secConn.Close()))
		if c.release != nil {
			c.release()
		}
	})
	return c.closeErr
}

func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
