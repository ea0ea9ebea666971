// Package gater 实现连接准入过滤
//
// gater 在连接建立的各个阶段决定是否放行，拒绝时调用方静默关闭连接：
//
//   - InterceptPeerDial: 拨号前检查目标节点
//   - InterceptAddrDial: 拨号前检查目标地址
//   - InterceptAccept: 入站连接握手前检查远端地址
//   - InterceptSecured: 安全握手后检查认证身份
//
// 封禁策略是不可变快照，通过原子指针整体替换。读方总是看到某次变更
// 之前或之后的完整策略；Ban 返回后，之后的任何检查都能观察到它。
//
// 连接数上限通过 Reserve/Release 计数实现，超限的连接直接拒绝，不排队。
//
// # 使用示例
//
//	g := gater.New(1024)
//	g.Ban(gater.PeerTarget(id))
//
//	if !g.InterceptPeerDial(id) {
//	    // 拨号被拒绝
//	}
package gater
