package identify

import "errors"

var (
	// ErrProtocolMismatch 协议族标识不一致
	ErrProtocolMismatch = errors.New("protocol version mismatch")

	// ErrPublicKeyMismatch 公钥与连接认证的身份不符
	ErrPublicKeyMismatch = errors.New("public key does not match peer identity")

	// ErrInvalidAgent 代理版本格式错误
	ErrInvalidAgent = errors.New("invalid agent version")
)
