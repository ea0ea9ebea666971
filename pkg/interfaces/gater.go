package interfaces

import (
	ma "github.com/multiformats/go-multiaddr"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// ConnectionGater 连接准入过滤
//
// 所有方法必须可并发调用，返回 false 时调用方静默关闭连接，不向对端发送任何说明。
type ConnectionGater interface {
	// InterceptPeerDial 出站拨号前按身份检查
	InterceptPeerDial(p types.NodeID) bool

	// InterceptAddrDial 出站拨号前按地址检查
	InterceptAddrDial(p types.NodeID, addr ma.Multiaddr) bool

	// InterceptAccept 入站连接在握手前按远端地址检查
	InterceptAccept(remote ma.Multiaddr) bool

	// InterceptSecured 握手完成后按认证身份检查
	InterceptSecured(dir types.Direction, p types.NodeID, remote ma.Multiaddr) bool
}

// ConnectionLimiter 并发连接数限制
type ConnectionLimiter interface {
	// Reserve 申请一个连接槽位，已满时返回 false
	Reserve() bool

	// Release 释放一个槽位
	Release()
}

// Admission 准入过滤与连接数限制的组合
type Admission interface {
	ConnectionGater
	ConnectionLimiter
}
