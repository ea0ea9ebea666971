// Package testutil 提供测试辅助工具
package testutil

import "github.com/dep2p/go-bootnode/pkg/types"

// 测试数据固件
//
// 提供测试中常用的常量值，确保测试一致性。

const (
	// TestProtocol 测试用流协议
	TestProtocol types.ProtocolID = "/bootnode/test/echo/1.0.0"

	// TestProtocolVersion 测试用协议族标识
	TestProtocolVersion = "/bootnode_kad/id/1.0.0-test"
)
