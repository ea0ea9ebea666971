// Package host 聚合传输、准入与流协议路由
//
// Host 持有按节点 ID 索引的连接表，负责：
//   - 在传输注册表上监听，并接收已升级的入站连接
//   - 出站拨号（含 DNS 解析、准入检查与并发去重）
//   - 在连接上打开流，并用 multistream-select 协商协议
//   - 将入站流分发给注册的协议处理器
//
// 每条连接由一个独立 goroutine 驱动，按
//
//	EvConnEstablished → EvIdentified | EvIdentifyFailed → EvConnClosed
//
// 的顺序把事件写入 Events() 通道，由上层的单写者事件循环消费。
// Host 本身不持有路由表，也不做任何路由决策。
package host
