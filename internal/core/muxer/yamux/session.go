package yamux

import (
	"context"
	"fmt"
	"net"

	"github.com/hashicorp/yamux"

	"github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/protocolids"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// Transport yamux 会话工厂
type Transport struct {
	cfg *yamux.Config
}

// New 创建 yamux 会话工厂，cfg 为 nil 时使用 DefaultConfig
func New(cfg *yamux.Config) *Transport {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Transport{cfg: cfg}
}

// ID 返回协议标识
func (t *Transport) ID() types.ProtocolID {
	return protocolids.SysYamux
}

// NewSession 在已加密的连接上建立会话
func (t *Transport) NewSession(conn net.Conn, isServer bool) (*Session, error) {
	if conn == nil {
		return nil, fmt.Errorf("conn is nil")
	}
	var (
		s   *yamux.Session
		err error
	)
	if isServer {
		s, err = yamux.Server(conn, t.cfg)
	} else {
		s, err = yamux.Client(conn, t.cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("create yamux session: %w", err)
	}
	return &Session{session: s}, nil
}

// Session 封装 yamux.Session
type Session struct {
	session *yamux.Session
}

// OpenStream 打开新流
//
// yamux 的 OpenStream 不接受 context，在单独的 goroutine 中等待。
func (m *Session) OpenStream(ctx context.Context) (interfaces.MuxedStream, error) {
	type result struct {
		s   *yamux.Stream
		err error
	}
	ch := make(chan result, 1)
	go func() {
		s, err := m.session.OpenStream()
		ch <- result{s, err}
	}()

	select {
	case <-ctx.Done():
		// 孤立的流在打开后立即关闭
		go func() {
			if r := <-ch; r.s != nil {
				_ = r.s.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("open stream: %w", r.err)
		}
		return &stream{s: r.s}, nil
	}
}

// AcceptStream 接受远端打开的流
func (m *Session) AcceptStream() (interfaces.MuxedStream, error) {
	s, err := m.session.AcceptStream()
	if err != nil {
		return nil, err
	}
	return &stream{s: s}, nil
}

// Close 关闭会话及其所有流
func (m *Session) Close() error {
	return m.session.Close()
}

// IsClosed 检查会话是否已关闭
func (m *Session) IsClosed() bool {
	return m.session.IsClosed()
}

// CloseChan 会话关闭时关闭的通道
func (m *Session) CloseChan() <-chan struct{} {
	return m.session.CloseChan()
}
