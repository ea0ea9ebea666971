package liveness

import "errors"

var (
	// ErrIdleTimeout 连接空闲超时
	ErrIdleTimeout = errors.New("connection idle timeout")

	// ErrPeerUnreachable 存活探测失败
	ErrPeerUnreachable = errors.New("peer unreachable")
)
