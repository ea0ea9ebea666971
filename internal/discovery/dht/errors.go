package dht

import "errors"

// 预定义错误
var (
	// ErrNoPeers 路由表为空且没有配置引导节点
	ErrNoPeers = errors.New("dht: no peers to query")

	// ErrBootstrapFailed 所有引导节点均无法连接
	ErrBootstrapFailed = errors.New("dht: all bootstrap peers unreachable")

	// ErrInvalidMessage 消息格式错误
	ErrInvalidMessage = errors.New("dht: invalid message")

	// ErrUnexpectedType 响应类型不符
	ErrUnexpectedType = errors.New("dht: unexpected message type")
)
