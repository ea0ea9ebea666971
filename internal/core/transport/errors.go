package transport

import "errors"

var (
	// ErrNoTransport 没有传输能处理该地址
	ErrNoTransport = errors.New("transport: no transport for address")

	// ErrListenerClosed 监听器已关闭
	ErrListenerClosed = errors.New("transport: listener closed")
)
