package host

import "errors"

var (
	// ErrHostClosed 主机已关闭
	ErrHostClosed = errors.New("host closed")

	// ErrDialSelf 尝试拨号到自身
	ErrDialSelf = errors.New("dial to self attempted")

	// ErrDialGated 出站拨号被准入过滤拒绝
	ErrDialGated = errors.New("dial blocked by connection gater")

	// ErrNoAddresses 没有可拨号的地址
	ErrNoAddresses = errors.New("no dialable addresses")

	// ErrRemoteClosed 连接被远端关闭或底层 IO 失败
	ErrRemoteClosed = errors.New("connection closed by remote")
)
