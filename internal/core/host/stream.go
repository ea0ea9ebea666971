package host

import (
	"github.com/dep2p/go-bootnode/pkg/interfaces"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// StreamHandler 入站流处理器
//
// 处理器负责关闭流。
type StreamHandler func(s *Stream)

// Stream 已协商协议的流
//
// 每次成功读写都会刷新所属连接的活动时间。
type Stream struct {
	interfaces.MuxedStream
	conn  *Conn
	proto types.ProtocolID
}

func newStream(ms interfaces.MuxedStream, c *Conn, proto types.ProtocolID) *Stream {
	return &Stream{MuxedStream: ms, conn: c, proto: proto}
}

// Conn 返回流所属的连接
func (s *Stream) Conn() *Conn { return s.conn }

// Protocol 返回协商的协议
func (s *Stream) Protocol() types.ProtocolID { return s.proto }

// Read 读取数据
func (s *Stream) Read(p []byte) (int, error) {
	n, err := s.MuxedStream.Read(p)
	if n > 0 {
		s.conn.touch()
	}
	return n, err
}

// Write 写入数据
func (s *Stream) Write(p []byte) (int, error) {
	n, err := s.MuxedStream.Write(p)
	if n > 0 {
		s.conn.touch()
	}
	return n, err
}
