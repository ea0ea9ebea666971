package websocket

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
)

// rawListener 把 HTTP 升级得到的 websocket 连接作为 manet.Listener 暴露
type rawListener struct {
	tcp   manet.Listener
	laddr ma.Multiaddr
	srv   *http.Server

	incoming chan *wsConn
	closed   chan struct{}
	once     sync.Once
}

var _ manet.Listener = (*rawListener)(nil)

var wsUpgrader = ws.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// 非浏览器客户端，不校验 Origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

func newRawListener(tcp manet.Listener, handshakeTimeout time.Duration) *rawListener {
	l := &rawListener{
		tcp:      tcp,
		laddr:    tcp.Multiaddr().Encapsulate(wsComponent),
		incoming: make(chan *wsConn),
		closed:   make(chan struct{}),
	}
	l.srv = &http.Server{
		Handler:           l,
		ReadHeaderTimeout: handshakeTimeout,
	}
	go func() { _ = l.srv.Serve(manet.NetListener(tcp)) }()
	return l
}

// ServeHTTP 升级 HTTP 请求并投递连接
func (l *rawListener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn, err := newConn(c)
	if err != nil {
		c.Close()
		return
	}
	select {
	case l.incoming <- conn:
	case <-l.closed:
		conn.Close()
	case <-r.Context().Done():
		conn.Close()
	}
}

func (l *rawListener) Accept() (manet.Conn, error) {
	select {
	case c := <-l.incoming:
		return c, nil
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *rawListener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.closed)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		err = l.srv.Shutdown(ctx)
		if errors.Is(err, context.DeadlineExceeded) {
			err = l.srv.Close()
		}
	})
	return err
}

func (l *rawListener) Addr() net.Addr          { return l.tcp.Addr() }
func (l *rawListener) Multiaddr() ma.Multiaddr { return l.laddr }
