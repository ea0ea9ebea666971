// Package interfaces 定义 bootnode 各层之间的公共接口
//
// 一个接口文件对应一个实现目录：
//   - transport.go - 传输层（internal/core/transport/*）
//   - gater.go     - 准入过滤（internal/core/connmgr/gater）
//
// 接口只依赖 pkg/types 与 go-multiaddr，实现包之间通过这些接口解耦。
package interfaces
