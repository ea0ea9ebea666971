package types

import (
	"crypto/ed25519"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNodeID(b byte) NodeID {
	var id NodeID
	for i := range id {
		id[i] = b
	}
	return id
}

// TestNodeID_StringRoundTrip 测试 Base58 编解码往返
func TestNodeID_StringRoundTrip(t *testing.T) {
	id := testNodeID(0xab)

	s := id.String()
	assert.True(t, strings.HasPrefix(s, "Qm"), "multihash sha2-256 前缀应编码为 Qm")

	parsed, err := ParseNodeID(s)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

// TestNodeID_Empty 测试空 NodeID
func TestNodeID_Empty(t *testing.T) {
	assert.True(t, EmptyNodeID.IsEmpty())
	assert.Equal(t, "", EmptyNodeID.String())
	assert.Equal(t, "", EmptyNodeID.ShortString())
}

// TestParseNodeID_Invalid 测试非法输入
func TestParseNodeID_Invalid(t *testing.T) {
	cases := []string{
		"",
		"not-base58-0OIl",
		"3mJr7AoUXx2Wqd", // 合法 base58 但长度不对
	}
	for _, c := range cases {
		_, err := ParseNodeID(c)
		assert.ErrorIs(t, err, ErrInvalidNodeID, c)
	}
}

// TestNodeIDFromBytes 测试字节构造
func TestNodeIDFromBytes(t *testing.T) {
	_, err := NodeIDFromBytes(make([]byte, 31))
	assert.ErrorIs(t, err, ErrInvalidNodeID)

	b := make([]byte, 32)
	b[0] = 7
	id, err := NodeIDFromBytes(b)
	require.NoError(t, err)
	assert.Equal(t, byte(7), id[0])
}

// TestNodeIDFromPublicKey 测试公钥派生确定性
func TestNodeIDFromPublicKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	assert.Equal(t, NodeIDFromPublicKey(pub), NodeIDFromPublicKey(pub))
	assert.False(t, NodeIDFromPublicKey(pub).IsEmpty())
}

// TestNodeID_JSON 测试 JSON 中以字符串表示
func TestNodeID_JSON(t *testing.T) {
	type wrapper struct {
		ID NodeID `json:"id"`
	}
	in := wrapper{ID: testNodeID(0x42)}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), in.ID.String())

	var out wrapper
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.ID, out.ID)
}
