// Package protocolids 定义 bootnode 所有协议的唯一协议 ID 注册表。
//
// # 协议命名规范
//
//   - 系统协议: /bootnode/sys/{name}/{version}
//     例如: /bootnode/sys/ping/1.0.0
//
//   - 路由协议: 由身份交换的协议族标识决定（见 KadProtocol），
//     不同网络（创世哈希不同）的节点因此无法互相查询。
//
// 所有模块在需要协议 ID 时必须引用本包中的常量或函数。
package protocolids
