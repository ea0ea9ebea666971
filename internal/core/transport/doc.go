// Package transport 组织多种底层传输
//
// 各传输实现 interfaces.Transport：
//   - tcp: /ip4/<ip>/tcp/<port>，Noise + yamux 升级
//   - quic: /ip4/<ip>/udp/<port>/quic-v1，TLS 1.3 与原生多路复用
//   - websocket: /ip4/<ip>/tcp/<port>/ws，Noise + yamux 升级
//
// Registry 按地址格式在运行时选择传输。
package transport
