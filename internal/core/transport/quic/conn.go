package quic

import (
	"context"
	"crypto/ed25519"
	"sync"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/quic-go/quic-go"

	"github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// conn 封装 quic.Connection
type conn struct {
	qc quic.Connection

	localPeer  types.NodeID
	remotePeer types.NodeID
	remotePub  ed25519.PublicKey

	laddr ma.Multiaddr
	raddr ma.Multiaddr

	closeOnce sync.Once
	release   func()
}

var _ interfaces.CapableConn = (*conn)(nil)

func (c *conn) LocalPeer() types.NodeID            { return c.localPeer }
func (c *conn) RemotePeer() types.NodeID           { return c.remotePeer }
func (c *conn) RemotePublicKey() ed25519.PublicKey { return c.remotePub }
func (c *conn) LocalMultiaddr() ma.Multiaddr       { return c.laddr }
func (c *conn) RemoteMultiaddr() ma.Multiaddr      { return c.raddr }
func (c *conn) Transport() string                  { return Name }

// OpenStream 打开双向流
func (c *conn) OpenStream(ctx context.Context) (interfaces.MuxedStream, error) {
	s, err := c.qc.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	return &stream{s}, nil
}

// AcceptStream 接受远端打开的流
func (c *conn) AcceptStream() (interfaces.MuxedStream, error) {
	s, err := c.qc.AcceptStream(c.qc.Context())
	if err != nil {
		return nil, err
	}
	return &stream{s}, nil
}

// Close 关闭连接并释放槽位
func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.qc.CloseWithError(0, "")
		if c.release != nil {
			c.release()
		}
	})
	return err
}

// IsClosed 检查连接是否已关闭
func (c *conn) IsClosed() bool {
	return c.qc.Context().Err() != nil
}

// stream 封装 quic.Stream
type stream struct {
	quic.Stream
}

// Reset 双向取消流
func (s *stream) Reset() error {
	s.Stream.CancelRead(0)
	s.Stream.CancelWrite(0)
	return nil
}

// Close 关闭写端并停止读取
func (s *stream) Close() error {
	s.Stream.CancelRead(0)
	return s.Stream.Close()
}
