package upgrader

import "errors"

var (
	// ErrGated 连接被准入过滤拒绝
	ErrGated = errors.New("upgrader: connection gated")

	// ErrConnLimit 连接数已达上限
	ErrConnLimit = errors.New("upgrader: connection limit reached")

	// ErrNegotiationFailed 协议协商失败
	ErrNegotiationFailed = errors.New("upgrader: protocol negotiation failed")

	// ErrHandshakeFailed 安全握手失败
	ErrHandshakeFailed = errors.New("upgrader: handshake failed")
)
