// Package ping 实现 32 字节回显协议
//
// 客户端发送 32 字节随机数据，服务端原样返回，客户端校验后得到往返时间。
// 同一条流上可以连续 ping。
package ping
