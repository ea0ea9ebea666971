package transport

import (
	"context"
	"sync"

	tec "github.com/jbenet/go-temp-err-catcher"
	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"

	"github.com/dep2p/go-bootnode/internal/core/upgrader"
	"github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/lib/log"
)

var logger = log.Logger("core/transport")

// acceptQueueSize 已升级但尚未被取走的连接数
const acceptQueueSize = 16

// UpgradeListener 包装原始监听器，并发升级入站连接
//
// 慢速或恶意的对端只占用自己的握手 goroutine，不阻塞 Accept。
type UpgradeListener struct {
	inner     manet.Listener
	upgrader  *upgrader.Upgrader
	transport string

	ctx    context.Context
	cancel context.CancelFunc

	incoming chan interfaces.CapableConn
	done     chan struct{}
	err      error

	closeOnce sync.Once
}

var _ interfaces.Listener = (*UpgradeListener)(nil)

// NewUpgradeListener 创建并启动升级监听器
func NewUpgradeListener(inner manet.Listener, up *upgrader.Upgrader, transport string) *UpgradeListener {
	ctx, cancel := context.WithCancel(context.Background())
	l := &UpgradeListener{
		inner:     inner,
		upgrader:  up,
		transport: transport,
		ctx:       ctx,
		cancel:    cancel,
		incoming:  make(chan interfaces.CapableConn, acceptQueueSize),
		done:      make(chan struct{}),
	}
	go l.acceptLoop()
	return l
}

func (l *UpgradeListener) acceptLoop() {
	defer close(l.done)

	var catcher tec.TempErrCatcher
	for {
		raw, err := l.inner.Accept()
		if err != nil {
			if catcher.IsTemporary(err) {
				logger.Debug("临时性 accept 错误", "transport", l.transport, "error", err)
				continue
			}
			l.err = err
			return
		}
		catcher.Reset()
		go l.handle(raw)
	}
}

func (l *UpgradeListener) handle(raw manet.Conn) {
	conn, err := l.upgrader.UpgradeInbound(l.ctx, raw, l.transport, raw.LocalMultiaddr(), raw.RemoteMultiaddr())
	if err != nil {
		logger.Debug("入站连接升级失败", "transport", l.transport, "remote", raw.RemoteMultiaddr(), "error", err)
		return
	}
	select {
	case l.incoming <- conn:
	case <-l.ctx.Done():
		conn.Close()
	}
}

// Accept 返回下一条已升级的连接
func (l *UpgradeListener) Accept() (interfaces.CapableConn, error) {
	select {
	case c := <-l.incoming:
		return c, nil
	case <-l.done:
		// 排空已升级的连接
		select {
		case c := <-l.incoming:
			return c, nil
		default:
		}
		if l.err != nil {
			return nil, l.err
		}
		return nil, ErrListenerClosed
	}
}

// Close 关闭监听器，丢弃尚未取走的连接
func (l *UpgradeListener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.cancel()
		err = l.inner.Close()
		<-l.done
		for {
			select {
			case c := <-l.incoming:
				c.Close()
			default:
				return
			}
		}
	})
	return err
}

// Multiaddr 返回监听地址
func (l *UpgradeListener) Multiaddr() ma.Multiaddr {
	return l.inner.Multiaddr()
}
