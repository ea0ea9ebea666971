// Package liveness 实现空闲连接的存活检测
//
// 每个检查周期扫描主机上已完成身份交换的连接：
//   - 空闲超过 idle_fraction × idle_timeout 的连接发送一次 ping
//   - 空闲达到 idle_timeout 的连接报告 ErrIdleTimeout
//
// 监视器只产出结果（Results），关闭连接与更新路由表由事件循环完成。
// 探测的 context 派生自连接的 context，连接关闭时探测随之取消。
package liveness
