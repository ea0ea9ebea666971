package interfaces

import (
	"context"
	"crypto/ed25519"
	"io"
	"time"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// MuxedStream 多路复用连接上的一条流
type MuxedStream interface {
	io.ReadWriteCloser

	// Reset 异常终止流，双方的后续读写都会失败
	Reset() error

	SetDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// CapableConn 已完成安全握手和多路复用的连接
//
// TCP 与 WebSocket 经 upgrader 升级得到，QUIC 原生满足。
type CapableConn interface {
	// LocalPeer 返回本地节点 ID
	LocalPeer() types.NodeID

	// RemotePeer 返回经过认证的远端节点 ID
	RemotePeer() types.NodeID

	// RemotePublicKey 返回远端身份公钥
	RemotePublicKey() ed25519.PublicKey

	// LocalMultiaddr 返回本地地址
	LocalMultiaddr() ma.Multiaddr

	// RemoteMultiaddr 返回远端地址
	RemoteMultiaddr() ma.Multiaddr

	// OpenStream 打开一条新流
	OpenStream(ctx context.Context) (MuxedStream, error)

	// AcceptStream 阻塞等待远端打开的流
	AcceptStream() (MuxedStream, error)

	// Transport 返回传输名称（tcp、quic、ws）
	Transport() string

	// Close 关闭连接，可重复调用
	Close() error

	// IsClosed 检查连接是否已关闭
	IsClosed() bool
}

// Listener 传输监听器
type Listener interface {
	// Accept 返回下一条已升级的入站连接
	//
	// 被准入过滤拒绝或握手失败的连接不会返回给调用方。
	Accept() (CapableConn, error)

	// Close 关闭监听器
	Close() error

	// Multiaddr 返回实际监听地址
	Multiaddr() ma.Multiaddr
}

// Transport 传输层能力接口
//
// 具体实现按地址协议选择：/tcp、/udp/quic-v1、/tcp/ws。
type Transport interface {
	// Dial 拨号并完成握手，p 为期望的远端身份（可为空）
	Dial(ctx context.Context, raddr ma.Multiaddr, p types.NodeID) (CapableConn, error)

	// CanDial 检查是否能拨号到该地址
	CanDial(addr ma.Multiaddr) bool

	// Listen 在指定地址监听
	Listen(laddr ma.Multiaddr) (Listener, error)

	// Protocols 返回处理的 multiaddr 协议编号
	Protocols() []int

	// Close 关闭传输
	Close() error
}
