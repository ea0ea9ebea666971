// Package dht 实现 Kademlia 路由表与节点查找
//
// 距离为两个 256 位节点 ID 的按位异或，按无符号整数比较。
// 节点按与本地 ID 的共同前缀长度分桶，每桶容量固定，最久未见的在前。
//
// 路由表（RoutingTable）不是并发安全的：它只由单写者事件循环修改，
// 每次修改后发布一份不可变快照（Snapshot），FIND_NODE 服务端与查询从快照读取。
//
// 桶满时不直接淘汰，而是返回一个淘汰候选（最久未见的节点），
// 调用方探测候选后用 ResolveEviction 决定保留谁。每个桶同时最多一个待决淘汰。
package dht
