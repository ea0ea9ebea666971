package ping

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"time"

	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/pkg/protocolids"
)

const (
	// PingSize Ping 消息大小（32 字节）
	PingSize = 32

	// HandlerIdleTimeout Handler 空闲超时时间
	HandlerIdleTimeout = 60 * time.Second
)

// ErrDataMismatch Ping 回显数据不匹配
var ErrDataMismatch = errors.New("ping: echo data mismatch")

// Service Ping 服务
type Service struct{}

// NewService 创建服务并注册处理器
func NewService(h *host.Host) *Service {
	s := &Service{}
	h.SetStreamHandler(protocolids.SysPing, s.Handler)
	return s
}

// Handler 读取数据并回显，直到流关闭或空闲超时
func (s *Service) Handler(st *host.Stream) {
	defer st.Close()

	buf := make([]byte, PingSize)
	for {
		_ = st.SetReadDeadline(time.Now().Add(HandlerIdleTimeout))
		if _, err := io.ReadFull(st, buf); err != nil {
			return
		}
		if _, err := st.Write(buf); err != nil {
			return
		}
	}
}

// Ping 在连接上执行一次回显并返回往返时间
//
// 超时由 ctx 控制；连接关闭时 ctx 随连接 context 一起失效。
func Ping(ctx context.Context, c *host.Conn) (time.Duration, error) {
	st, err := c.NewStream(ctx, protocolids.SysPing)
	if err != nil {
		return 0, err
	}
	defer st.Close()

	// ctx 取消时中断阻塞的读写
	stop := context.AfterFunc(ctx, func() { _ = st.Reset() })
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		_ = st.SetDeadline(deadline)
	}

	buf := make([]byte, PingSize)
	if _, err := rand.Read(buf); err != nil {
		return 0, err
	}

	start := time.Now()
	if _, err := st.Write(buf); err != nil {
		return 0, err
	}
	echo := make([]byte, PingSize)
	if _, err := io.ReadFull(st, echo); err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, err
	}
	rtt := time.Since(start)

	if !bytes.Equal(buf, echo) {
		return 0, ErrDataMismatch
	}
	return rtt, nil
}
