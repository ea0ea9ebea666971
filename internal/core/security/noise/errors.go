// Package noise 实现 Noise 协议安全传输
package noise

import "errors"

var (
	// ErrInvalidHandshake 握手失败
	ErrInvalidHandshake = errors.New("noise: invalid handshake")

	// ErrPeerIDMismatch 对端身份与期望不符
	ErrPeerIDMismatch = errors.New("noise: peer ID mismatch")

	// ErrInvalidSignature 对端静态密钥未绑定到其身份密钥
	ErrInvalidSignature = errors.New("noise: static key not bound to identity key")
)
