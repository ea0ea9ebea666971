// Package types 定义各层共享的基础类型
//
//   - NodeID: 公钥派生的 32 字节节点标识，文本形式为 Base58 multihash
//   - AddrInfo: 节点 ID 与传输地址
//   - IdentifyInfo: 身份交换结果
//   - Direction、Reachability、PeerState、ConnState: 枚举
package types
