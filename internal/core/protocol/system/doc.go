// Package system 实现系统协议
//
// 这些协议在节点启动时注册到主机，所有节点都必须支持。
//
//   - identify: 身份交换，新连接建立后立即执行
//   - ping: 32 字节回显，用于存活检测和延迟测量
//
// 协议 ID 定义在 pkg/protocolids。
package system
