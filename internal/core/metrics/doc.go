// Package metrics 提供遥测指标的收集与推送
//
// 所有指标注册在独立的 prometheus.Registry 上，既可以由健康服务的 /metrics
// 拉取，也可以由 Pusher 周期性推送到 Pushgateway 兼容的收集端。推送失败只
// 记录日志，不影响节点运行。
//
// # 指标
//
//	bootnode_connections_accepted_total   准入通过次数
//	bootnode_connections_rejected_total   准入拒绝次数（策略或连接数上限）
//	bootnode_connections_closed_total     连接关闭次数，按原因分类
//	bootnode_routing_table_size           路由表记录数
//	bootnode_query_duration_seconds       查询耗时，按类型分类
//	bootnode_reachability                 可达性分类（0 unknown, 1 public, 2 private）
//	bootnode_active_peers                 已连接节点数，带节点描述标签
package metrics
