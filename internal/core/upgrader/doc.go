// Package upgrader 将原始字节流连接升级为安全、多路复用的连接
//
// # 升级流程
//
//  1. 准入检查：入站按远端地址 InterceptAccept，并申请连接槽位
//  2. 安全协议协商（multistream-select，/noise）
//  3. Noise XX 握手，得到认证的远端身份
//  4. InterceptSecured：按认证身份再检查一次
//  5. 多路复用器协商（multistream-select，/yamux/1.0.0）
//  6. 建立 yamux 会话
//
// 任一步失败都会关闭原始连接并释放槽位。准入拒绝不向对端写入任何内容。
// QUIC 自带加密与多路复用，不经过本包，但在 TLS 回调中执行相同的准入检查。
package upgrader
