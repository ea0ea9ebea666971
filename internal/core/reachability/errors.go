package reachability

import "errors"

var (
	// ErrNoHelpers 没有支持回拨协议的已连接节点
	ErrNoHelpers = errors.New("no dial-back helpers available")

	// ErrDialRefused 服务端拒绝回拨（限流、非公网 IP 或没有匹配地址）
	ErrDialRefused = errors.New("dial-back refused")

	// ErrDialFailed 服务端回拨失败
	ErrDialFailed = errors.New("dial-back failed")

	// ErrNonceMismatch 回拨连接上的随机数不符
	ErrNonceMismatch = errors.New("dial-back nonce mismatch")

	// ErrBadMessage 消息格式错误
	ErrBadMessage = errors.New("bad dial-back message")
)
