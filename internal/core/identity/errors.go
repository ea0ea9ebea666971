// Package identity 实现身份管理
package identity

import "errors"

// ============================================================================
// 错误定义
// ============================================================================

var (
	// ErrInvalidKey 配置的私钥格式无效（必须是 64 个十六进制字符）
	ErrInvalidKey = errors.New("invalid secret key: expected 32 bytes hex encoded")

	// ErrConflictingSource 同时配置了种子与私钥
	ErrConflictingSource = errors.New("secret key seed and key are mutually exclusive")

	// ErrFailedToGenerateKey 密钥生成失败
	ErrFailedToGenerateKey = errors.New("failed to generate key")
)
