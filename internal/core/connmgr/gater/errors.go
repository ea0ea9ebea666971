package gater

import "errors"

// ErrInvalidTarget 无法解析的封禁目标
var ErrInvalidTarget = errors.New("gater: invalid ban target")
