package host

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	mss "github.com/multiformats/go-multistream"

	"github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// Conn 主机登记的一条连接
//
// 包装传输层的 CapableConn，附加方向、状态、最近活动时间与关闭原因。
// 连接关闭时 Context() 被取消，依附于连接的操作（身份交换、存活探测）随之终止。
type Conn struct {
	id   uint64
	host *Host
	c    interfaces.CapableConn
	dir  types.Direction

	opened       time.Time
	lastActivity atomic.Int64
	state        atomic.Int32
	info         atomic.Pointer[types.IdentifyInfo]

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	cause     error
	done      chan struct{}
}

func newConn(h *Host, id uint64, c interfaces.CapableConn, dir types.Direction) *Conn {
	ctx, cancel := context.WithCancel(h.ctx)
	now := h.clock.Now()
	conn := &Conn{
		id:     id,
		host:   h,
		c:      c,
		dir:    dir,
		opened: now,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	conn.lastActivity.Store(now.UnixNano())
	conn.state.Store(int32(types.ConnAdmitted))
	return conn
}

// ID 返回主机内唯一的连接编号
func (c *Conn) ID() uint64 { return c.id }

// LocalPeer 返回本地节点 ID
func (c *Conn) LocalPeer() types.NodeID { return c.c.LocalPeer() }

// RemotePeer 返回远端节点 ID
func (c *Conn) RemotePeer() types.NodeID { return c.c.RemotePeer() }

// RemotePublicKey 返回远端身份公钥
func (c *Conn) RemotePublicKey() ed25519.PublicKey { return c.c.RemotePublicKey() }

// LocalMultiaddr 返回本地地址
func (c *Conn) LocalMultiaddr() ma.Multiaddr { return c.c.LocalMultiaddr() }

// RemoteMultiaddr 返回远端地址
func (c *Conn) RemoteMultiaddr() ma.Multiaddr { return c.c.RemoteMultiaddr() }

// Direction 返回连接方向
func (c *Conn) Direction() types.Direction { return c.dir }

// Transport 返回传输名称
func (c *Conn) Transport() string { return c.c.Transport() }

// Opened 返回连接建立时间
func (c *Conn) Opened() time.Time { return c.opened }

// Context 返回连接作用域的 context
func (c *Conn) Context() context.Context { return c.ctx }

// Done 连接关闭后关闭的通道
func (c *Conn) Done() <-chan struct{} { return c.done }

// Info 返回身份交换结果，未完成时为 nil
func (c *Conn) Info() *types.IdentifyInfo { return c.info.Load() }

// State 返回连接状态
func (c *Conn) State() types.ConnState { return types.ConnState(c.state.Load()) }

// setState 按状态机迁移，非法迁移返回 false
func (c *Conn) setState(next types.ConnState) bool {
	for {
		cur := types.ConnState(c.state.Load())
		if !cur.CanTransition(next) {
			return false
		}
		if c.state.CompareAndSwap(int32(cur), int32(next)) {
			return true
		}
	}
}

// LastActivity 返回最近一次读写时间
func (c *Conn) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

// IdleFor 返回截至 now 的空闲时长
func (c *Conn) IdleFor(now time.Time) time.Duration {
	return now.Sub(c.LastActivity())
}

func (c *Conn) touch() {
	c.lastActivity.Store(c.host.clock.Now().UnixNano())
}

// IsClosed 检查连接是否已关闭
func (c *Conn) IsClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Cause 返回关闭原因，连接未关闭或正常关闭时为 nil
func (c *Conn) Cause() error {
	if !c.IsClosed() {
		return nil
	}
	return c.cause
}

// Close 以指定原因关闭连接
//
// 只有第一次调用的原因生效。
func (c *Conn) Close(cause error) error {
	var err error
	c.closeOnce.Do(func() {
		c.setState(types.ConnClosing)
		c.cause = cause
		c.cancel()
		err = c.c.Close()
		c.setState(types.ConnClosed)
		close(c.done)
	})
	return err
}

// NewStream 在此连接上打开流并协商协议
func (c *Conn) NewStream(ctx context.Context, proto types.ProtocolID) (*Stream, error) {
	ms, err := c.c.OpenStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.host.cfg.NegotiateTimeout)
	}
	_ = ms.SetDeadline(deadline)
	if err := mss.SelectProtoOrFail(proto, ms); err != nil {
		_ = ms.Reset()
		return nil, fmt.Errorf("negotiate %s: %w", proto, err)
	}
	_ = ms.SetDeadline(time.Time{})

	c.touch()
	return newStream(ms, c, proto), nil
}

// String 返回调试用字符串
func (c *Conn) String() string {
	return fmt.Sprintf("<Conn #%d %s %s %s>", c.id, c.dir, c.RemotePeer().ShortString(), c.RemoteMultiaddr())
}
