package yamux

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/yamux"

	"github.com/dep2p/go-bootnode/pkg/interfaces"
)

// stream 封装 yamux.Stream
type stream struct {
	s      *yamux.Stream
	closed atomic.Bool
}

var _ interfaces.MuxedStream = (*stream)(nil)

func (s *stream) Read(p []byte) (int, error)  { return s.s.Read(p) }
func (s *stream) Write(p []byte) (int, error) { return s.s.Write(p) }

// Close 关闭流（发送 FIN）
func (s *stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.s.Close()
}

// Reset 重置流
//
// hashicorp/yamux 没有 RST，关闭并让挂起的读写立即超时。
func (s *stream) Reset() error {
	_ = s.s.SetDeadline(time.Now())
	return s.Close()
}

func (s *stream) SetDeadline(t time.Time) error      { return s.s.SetDeadline(t) }
func (s *stream) SetReadDeadline(t time.Time) error  { return s.s.SetReadDeadline(t) }
func (s *stream) SetWriteDeadline(t time.Time) error { return s.s.SetWriteDeadline(t) }
