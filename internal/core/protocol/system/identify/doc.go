// Package identify 实现身份交换协议
//
// 每条新连接建立后，双方各自打开一条 identify 流读取对端信息：
// 协议族标识、代理版本、监听地址、观察到的本端地址、支持的协议和身份公钥。
// 协议族标识不一致视为不兼容，连接随即关闭，对端不会进入路由表。
package identify
