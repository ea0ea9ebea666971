// Package orchestrator 实现节点的单写者事件循环
//
// Orchestrator 在一个 goroutine 中消费所有事件：主机连接事件、存活检测结果、
// 可达性探测结果、查询结果、淘汰探测结果、管理命令和定时器。路由表、
// 准入策略的应用以及可达性分类只在这个 goroutine 中修改，每次修改路由表后
// 发布不可变快照供其他组件读取。
//
// 拨号、握手、查询和探测都在独立 goroutine 中执行，完成后把结果作为事件
// 送回循环，事件循环本身从不阻塞在网络 I/O 上。
package orchestrator
