package gater

import (
	"sync"
	"testing"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bootnode/internal/core/identity"
	"github.com/dep2p/go-bootnode/pkg/types"
)

func testID(seed string) types.NodeID {
	return identity.FromSeed(seed).ID()
}

// TestGater_BanPeer 封禁身份后入站与出站都被拒绝
func TestGater_BanPeer(t *testing.T) {
	g := New(0)
	id := testID("peer")
	addr := ma.StringCast("/ip4/1.2.3.4/tcp/4001")

	assert.True(t, g.InterceptPeerDial(id))
	g.Ban(PeerTarget(id))

	assert.False(t, g.InterceptPeerDial(id))
	assert.False(t, g.InterceptAddrDial(id, addr))
	assert.False(t, g.InterceptSecured(types.DirInbound, id, addr))
	assert.True(t, g.InterceptAccept(addr), "身份封禁不影响握手前的地址检查")

	g.Unban(PeerTarget(id))
	assert.True(t, g.InterceptPeerDial(id))
}

// TestGater_BanAddress 按 IP、子网与完整地址封禁
func TestGater_BanAddress(t *testing.T) {
	g := New(0)
	other := testID("x")

	ipT, err := ParseTarget("10.0.0.5")
	require.NoError(t, err)
	subT, err := ParseTarget("192.168.0.0/16")
	require.NoError(t, err)
	addrT, err := ParseTarget("/ip4/8.8.8.8/udp/4001/quic-v1")
	require.NoError(t, err)

	g.Ban(ipT)
	g.Ban(subT)
	g.Ban(addrT)

	assert.False(t, g.InterceptAccept(ma.StringCast("/ip4/10.0.0.5/tcp/1")))
	assert.False(t, g.InterceptAccept(ma.StringCast("/ip4/192.168.3.4/tcp/1")))
	assert.False(t, g.InterceptAddrDial(other, ma.StringCast("/ip4/8.8.8.8/udp/4001/quic-v1")))
	assert.True(t, g.InterceptAddrDial(other, ma.StringCast("/ip4/8.8.8.8/tcp/4001")))
	assert.True(t, g.InterceptAccept(ma.StringCast("/ip4/10.0.0.6/tcp/1")))

	assert.Len(t, g.Policy().Targets(), 3)
}

// TestParseTarget 测试目标解析
func TestParseTarget(t *testing.T) {
	id := testID("p")
	tgt, err := ParseTarget(id.String())
	require.NoError(t, err)
	assert.Equal(t, TargetPeer, tgt.Kind)
	assert.Equal(t, id, tgt.Peer)

	_, err = ParseTarget("")
	assert.ErrorIs(t, err, ErrInvalidTarget)
	_, err = ParseTarget("not-a-target")
	assert.ErrorIs(t, err, ErrInvalidTarget)
	_, err = ParseTarget("/nope/1")
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

// TestGater_ReserveLimit 超过上限的申请被拒绝而不是排队
func TestGater_ReserveLimit(t *testing.T) {
	g := New(2)
	assert.True(t, g.Reserve())
	assert.True(t, g.Reserve())
	assert.False(t, g.Reserve())

	g.Release()
	assert.True(t, g.Reserve())

	st := g.Stats()
	assert.EqualValues(t, 2, st.ActiveReserved)
	assert.EqualValues(t, 1, st.RejectedLimit)
}

// TestGater_BanVisibleAfterReturn Ban 返回后并发检查必须观察到封禁
func TestGater_BanVisibleAfterReturn(t *testing.T) {
	g := New(0)
	ids := make([]types.NodeID, 50)
	for i := range ids {
		ids[i] = testID(string(rune('a' + i)))
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id types.NodeID) {
			defer wg.Done()
			g.Ban(PeerTarget(id))
			// 同一 goroutine 中 Ban 已返回
			assert.False(t, g.InterceptPeerDial(id))
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		assert.True(t, g.Policy().PeerBanned(id))
	}
}

// TestGater_Concurrent 读写并发（配合 -race）
func TestGater_Concurrent(t *testing.T) {
	g := New(100)
	id := testID("c")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			g.Ban(PeerTarget(id))
			g.Unban(PeerTarget(id))
		}()
		go func() {
			defer wg.Done()
			_ = g.InterceptPeerDial(id)
			if g.Reserve() {
				g.Release()
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 0, g.Stats().ActiveReserved)
}

// TestGater_CountsOncePerConnection 一条连接只计入一次接受或拒绝
func TestGater_CountsOncePerConnection(t *testing.T) {
	g := New(0)
	id := testID("peer")
	addr := ma.StringCast("/ip4/1.2.3.4/tcp/4001")

	// 出站：身份检查、逐地址过滤、握手后检查
	require.True(t, g.InterceptPeerDial(id))
	require.True(t, g.InterceptAddrDial(id, addr))
	require.True(t, g.InterceptAddrDial(id, ma.StringCast("/ip4/1.2.3.4/udp/4001/quic-v1")))
	require.True(t, g.InterceptSecured(types.DirOutbound, id, addr))
	assert.EqualValues(t, 1, g.Stats().Accepted)

	// 入站：握手前与握手后各检查一次
	require.True(t, g.InterceptAccept(addr))
	require.True(t, g.InterceptSecured(types.DirInbound, id, addr))
	assert.EqualValues(t, 2, g.Stats().Accepted)
	assert.EqualValues(t, 0, g.Stats().Rejected)

	// 被拒绝的出站在第一次拒绝处终止
	g.Ban(PeerTarget(id))
	assert.False(t, g.InterceptPeerDial(id))
	assert.False(t, g.InterceptAddrDial(id, addr))
	assert.EqualValues(t, 1, g.Stats().Rejected)
	assert.EqualValues(t, 2, g.Stats().Accepted)
}
