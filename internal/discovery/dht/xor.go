package dht

import (
	"bytes"
	"crypto/rand"
	"math/bits"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// KeySize 节点 ID 位数，也是桶的数量
const KeySize = 256

// Distance 两个节点 ID 的异或距离（大端序 256 位无符号整数）
type Distance [32]byte

// XORDistance 计算两个 NodeID 的异或距离
func XORDistance(a, b types.NodeID) Distance {
	var d Distance
	for i := range d {
		d[i] = a[i] ^ b[i]
	}
	return d
}

// Cmp 比较两个距离，返回 -1、0、1
func (d Distance) Cmp(o Distance) int {
	return bytes.Compare(d[:], o[:])
}

// LeadingZeros 返回前导零位数
func (d Distance) LeadingZeros() int {
	for i, b := range d {
		if b != 0 {
			return i*8 + bits.LeadingZeros8(b)
		}
	}
	return KeySize
}

// CompareDistance 比较 a、b 到 target 的距离
func CompareDistance(a, b, target types.NodeID) int {
	return XORDistance(a, target).Cmp(XORDistance(b, target))
}

// CommonPrefixLen 计算两个 NodeID 的共同前缀长度（按位计数）
func CommonPrefixLen(a, b types.NodeID) int {
	return XORDistance(a, b).LeadingZeros()
}

// BucketIndex 计算 remote 在 local 路由表中的桶索引（0-255）
//
// 与本地 ID 相同时返回 -1。
func BucketIndex(local, remote types.NodeID) int {
	cpl := CommonPrefixLen(local, remote)
	if cpl >= KeySize {
		return -1
	}
	return cpl
}

// RandomIDInBucket 生成落在指定桶中的随机 ID，用于桶刷新
//
// 结果与 local 的前 bucket 位相同，第 bucket 位相反，其余随机。
func RandomIDInBucket(local types.NodeID, bucket int) types.NodeID {
	var id types.NodeID
	_, _ = rand.Read(id[:])

	full := bucket / 8
	copy(id[:full], local[:full])

	bit := bucket % 8
	mask := byte(0xff) << (8 - bit)
	flip := byte(0x80) >> bit
	id[full] = local[full]&mask | ^local[full]&flip | id[full]&^(mask|flip)
	return id
}
