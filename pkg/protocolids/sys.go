package protocolids

import (
	"strings"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// SysPrefix 系统协议前缀，所有系统协议以此开头
const SysPrefix = "/bootnode/sys/"

// ----------------------------------------------------------------------------
// 连接升级
// ----------------------------------------------------------------------------

// SysNoise Noise 安全握手
const SysNoise types.ProtocolID = "/noise"

// SysYamux yamux 多路复用
const SysYamux types.ProtocolID = "/yamux/1.0.0"

// ----------------------------------------------------------------------------
// 核心基础协议
// ----------------------------------------------------------------------------

// SysIdentify 身份识别协议，用于交换协议族标识、代理版本与地址
const SysIdentify types.ProtocolID = "/bootnode/sys/identify/1.0.0"

// SysPing Ping 协议，用于存活检测和延迟测量
const SysPing types.ProtocolID = "/bootnode/sys/ping/1.0.0"

// SysDialBack 回拨验证协议，请求对端回拨以判断本节点可达性
const SysDialBack types.ProtocolID = "/bootnode/sys/dialback/1.0.0"

// KadProtocol 返回路由协议 ID
//
// 路由协议直接使用身份交换的协议族标识（如 /bootnode_kad/id/1.0.0-DEV）。
func KadProtocol(protocolVersion string) types.ProtocolID {
	return types.ProtocolID(protocolVersion)
}

// IsSystem 判断协议是否为系统协议
func IsSystem(p types.ProtocolID) bool {
	return strings.HasPrefix(string(p), SysPrefix)
}
