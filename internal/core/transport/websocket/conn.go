package websocket

import (
	"io"
	"net"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
)

// wsConn 将 websocket 连接适配为字节流
//
// 每次 Write 发送一条二进制消息，Read 跨消息边界连续读取。
type wsConn struct {
	c *ws.Conn

	readMu sync.Mutex
	reader io.Reader

	writeMu sync.Mutex

	laddr ma.Multiaddr
	raddr ma.Multiaddr

	closeOnce sync.Once
	closeErr  error
}

var _ manet.Conn = (*wsConn)(nil)

func newConn(c *ws.Conn) (*wsConn, error) {
	laddr, err := toWsMultiaddr(c.LocalAddr())
	if err != nil {
		return nil, err
	}
	raddr, err := toWsMultiaddr(c.RemoteAddr())
	if err != nil {
		return nil, err
	}
	return &wsConn{c: c, laddr: laddr, raddr: raddr}, nil
}

func (c *wsConn) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	for {
		if c.reader == nil {
			mt, r, err := c.c.NextReader()
			if err != nil {
				if ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			if mt != ws.BinaryMessage {
				continue
			}
			c.reader = r
		}
		n, err := c.reader.Read(p)
		if err == io.EOF {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.c.WriteMessage(ws.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close 发送关闭帧后关闭底层连接
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.c.WriteControl(ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.closeErr = c.c.Close()
	})
	return c.closeErr
}

func (c *wsConn) LocalAddr() net.Addr                { return c.c.LocalAddr() }
func (c *wsConn) RemoteAddr() net.Addr               { return c.c.RemoteAddr() }
func (c *wsConn) LocalMultiaddr() ma.Multiaddr       { return c.laddr }
func (c *wsConn) RemoteMultiaddr() ma.Multiaddr      { return c.raddr }
func (c *wsConn) SetReadDeadline(t time.Time) error  { return c.c.SetReadDeadline(t) }
func (c *wsConn) SetWriteDeadline(t time.Time) error { return c.c.SetWriteDeadline(t) }

func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.c.SetReadDeadline(t); err != nil {
		return err
	}
	return c.c.SetWriteDeadline(t)
}

var wsComponent = ma.StringCast("/ws")

func toWsMultiaddr(na net.Addr) (ma.Multiaddr, error) {
	m, err := manet.FromNetAddr(na)
	if err != nil {
		return nil, err
	}
	return m.Encapsulate(wsComponent), nil
}
