package quic

import (
	"context"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/quic-go/quic-go"

	"github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// listener QUIC 监听器
type listener struct {
	t     *Transport
	ql    *quic.Listener
	laddr ma.Multiaddr
}

var _ interfaces.Listener = (*listener)(nil)

// Accept 返回下一条通过准入的连接
//
// 连接槽位在 TLS 握手完成后申请，申请失败的连接直接关闭。
func (l *listener) Accept() (interfaces.CapableConn, error) {
	for {
		qc, err := l.ql.Accept(context.Background())
		if err != nil {
			return nil, err
		}
		if l.t.admission != nil && !l.t.admission.Reserve() {
			qc.CloseWithError(0, "")
			continue
		}
		c, err := l.t.wrap(qc, types.DirInbound)
		if err != nil {
			logger.Debug("入站 QUIC 连接被拒绝", "remote", qc.RemoteAddr(), "error", err)
			qc.CloseWithError(0, "")
			l.t.releaseSlot()
			continue
		}
		return c, nil
	}
}

// Close 关闭监听器
func (l *listener) Close() error {
	return l.ql.Close()
}

// Multiaddr 返回监听地址
func (l *listener) Multiaddr() ma.Multiaddr {
	return l.laddr
}
