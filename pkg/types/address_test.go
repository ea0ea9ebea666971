package types

import (
	"testing"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAddrInfoFromString 测试解析带 /p2p 的引导地址
func TestAddrInfoFromString(t *testing.T) {
	id := testNodeID(0x11)
	s := "/ip4/1.2.3.4/tcp/39000/p2p/" + id.String()

	info, err := AddrInfoFromString(s)
	require.NoError(t, err)
	assert.Equal(t, id, info.ID)
	require.Len(t, info.Addrs, 1)
	assert.Equal(t, "/ip4/1.2.3.4/tcp/39000", info.Addrs[0].String())

	p2p, err := info.P2pAddrs()
	require.NoError(t, err)
	require.Len(t, p2p, 1)
	assert.Equal(t, s, p2p[0].String())
}

// TestAddrInfoFromString_NoPeer 测试缺少 /p2p 组件
func TestAddrInfoFromString_NoPeer(t *testing.T) {
	_, err := AddrInfoFromString("/ip4/1.2.3.4/tcp/39000")
	assert.ErrorIs(t, err, ErrNoPeerComponent)

	_, err = AddrInfoFromString("1.2.3.4:39000")
	assert.Error(t, err)
}

// TestMergeAddrs 测试地址去重
func TestMergeAddrs(t *testing.T) {
	a := ma.StringCast("/ip4/1.2.3.4/tcp/1")
	b := ma.StringCast("/ip4/1.2.3.4/udp/1/quic-v1")
	a2 := ma.StringCast("/ip4/1.2.3.4/tcp/1")

	out := MergeAddrs([]ma.Multiaddr{a, b}, []ma.Multiaddr{a2, nil})
	assert.Len(t, out, 2)
	assert.Equal(t, []string{a.String(), b.String()}, AddrStrings(out))
}

// TestParseAddrs 测试忽略非法地址
func TestParseAddrs(t *testing.T) {
	out := ParseAddrs([]string{"/ip4/1.2.3.4/tcp/1", "garbage"})
	require.Len(t, out, 1)
	assert.Equal(t, "/ip4/1.2.3.4/tcp/1", out[0].String())
}
