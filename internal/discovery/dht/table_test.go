package dht

import (
	"testing"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bootnode/pkg/types"
)

var t0 = time.Unix(1_700_000_000, 0)

// bucket0 返回与零 ID 共同前缀为 0 的 ID（都落在 0 号桶）
func bucket0(n byte) types.NodeID {
	return idWithPrefix(0x80, n)
}

func rec(id types.NodeID, at time.Time) PeerRecord {
	return PeerRecord{ID: id, LastSeen: at, State: types.PeerIdentified,
		Addrs: []ma.Multiaddr{ma.StringCast("/ip4/10.0.0.1/tcp/39000")}}
}

// TestInsertOrRefresh 测试插入、刷新与桶内顺序
func TestInsertOrRefresh(t *testing.T) {
	rt := NewRoutingTable(types.NodeID{}, 3, t0)

	res, ev := rt.InsertOrRefresh(rec(types.NodeID{}, t0))
	assert.Equal(t, IgnoredSelf, res)
	assert.Nil(t, ev)

	for i := byte(1); i <= 3; i++ {
		res, ev := rt.InsertOrRefresh(rec(bucket0(i), t0.Add(time.Duration(i)*time.Second)))
		assert.Equal(t, Inserted, res)
		assert.Nil(t, ev)
	}
	assert.Equal(t, 3, rt.Size())

	// 刷新 1 号并合并地址
	r := rec(bucket0(1), t0.Add(time.Minute))
	r.Addrs = []ma.Multiaddr{ma.StringCast("/ip4/10.0.0.2/tcp/39000")}
	res, _ = rt.InsertOrRefresh(r)
	assert.Equal(t, Refreshed, res)
	assert.Equal(t, 3, rt.Size())

	got, ok := rt.Get(bucket0(1))
	require.True(t, ok)
	assert.Len(t, got.Addrs, 2)
	assert.Equal(t, t0.Add(time.Minute), got.LastSeen)

	// 1 号移到桶尾，最久未见的是 2 号
	_, ev = rt.InsertOrRefresh(rec(bucket0(4), t0.Add(2*time.Minute)))
	require.NotNil(t, ev)
	assert.Equal(t, bucket0(2), ev.Candidate.ID)
	assert.Equal(t, bucket0(4), ev.Newcomer.ID)
	assert.Equal(t, 0, ev.Bucket)
}

// TestEviction_OnePendingPerBucket 每个桶同时只有一个待决淘汰
func TestEviction_OnePendingPerBucket(t *testing.T) {
	rt := NewRoutingTable(types.NodeID{}, 2, t0)
	rt.InsertOrRefresh(rec(bucket0(1), t0))
	rt.InsertOrRefresh(rec(bucket0(2), t0.Add(time.Second)))

	res, ev := rt.InsertOrRefresh(rec(bucket0(3), t0))
	assert.Equal(t, EvictionPending, res)
	require.NotNil(t, ev)

	res, ev2 := rt.InsertOrRefresh(rec(bucket0(4), t0))
	assert.Equal(t, Rejected, res)
	assert.Nil(t, ev2)

	// 同一新记录再次到达不产生新的候选
	res, ev3 := rt.InsertOrRefresh(rec(bucket0(3), t0))
	assert.Equal(t, EvictionPending, res)
	assert.Nil(t, ev3)

	assert.Len(t, rt.PendingEvictions(), 1)

	// 其他桶不受影响
	res, _ = rt.InsertOrRefresh(rec(idWithPrefix(0x40), t0))
	assert.Equal(t, Inserted, res)
}

// TestResolveEviction_Alive 候选存活：保留候选，丢弃新记录
func TestResolveEviction_Alive(t *testing.T) {
	rt := NewRoutingTable(types.NodeID{}, 2, t0)
	rt.InsertOrRefresh(rec(bucket0(1), t0))
	rt.InsertOrRefresh(rec(bucket0(2), t0.Add(time.Second)))
	_, ev := rt.InsertOrRefresh(rec(bucket0(3), t0))
	require.NotNil(t, ev)

	assert.False(t, rt.ResolveEviction(bucket0(2), true, t0), "不是候选")
	assert.True(t, rt.ResolveEviction(ev.Candidate.ID, true, t0.Add(time.Hour)))

	_, ok := rt.Get(bucket0(3))
	assert.False(t, ok)
	got, ok := rt.Get(bucket0(1))
	require.True(t, ok)
	assert.Equal(t, t0.Add(time.Hour), got.LastSeen)
	assert.Empty(t, rt.PendingEvictions())
	assert.Equal(t, 2, rt.Size())

	// 候选移到桶尾后，下一个候选是 2 号
	_, ev = rt.InsertOrRefresh(rec(bucket0(5), t0))
	require.NotNil(t, ev)
	assert.Equal(t, bucket0(2), ev.Candidate.ID)
}

// TestResolveEviction_Dead 候选无响应：淘汰候选，插入新记录
func TestResolveEviction_Dead(t *testing.T) {
	rt := NewRoutingTable(types.NodeID{}, 2, t0)
	rt.InsertOrRefresh(rec(bucket0(1), t0))
	rt.InsertOrRefresh(rec(bucket0(2), t0.Add(time.Second)))
	_, ev := rt.InsertOrRefresh(rec(bucket0(3), t0))
	require.NotNil(t, ev)

	assert.True(t, rt.ResolveEviction(ev.Candidate.ID, false, t0))
	_, ok := rt.Get(bucket0(1))
	assert.False(t, ok)
	_, ok = rt.Get(bucket0(3))
	assert.True(t, ok)
	assert.Equal(t, 2, rt.Size())
	assert.False(t, rt.ResolveEviction(ev.Candidate.ID, false, t0), "已裁决")
}

// TestRemove_PendingParticipants 移除待决淘汰的参与方
func TestRemove_PendingParticipants(t *testing.T) {
	rt := NewRoutingTable(types.NodeID{}, 2, t0)
	rt.InsertOrRefresh(rec(bucket0(1), t0))
	rt.InsertOrRefresh(rec(bucket0(2), t0.Add(time.Second)))

	// 移除候选：新记录补入
	_, ev := rt.InsertOrRefresh(rec(bucket0(3), t0))
	require.NotNil(t, ev)
	assert.True(t, rt.Remove(bucket0(1)))
	_, ok := rt.Get(bucket0(3))
	assert.True(t, ok)
	assert.Empty(t, rt.PendingEvictions())

	// 移除新记录：撤销淘汰
	_, ev = rt.InsertOrRefresh(rec(bucket0(4), t0))
	require.NotNil(t, ev)
	assert.False(t, rt.Remove(bucket0(4)))
	assert.Empty(t, rt.PendingEvictions())
	assert.Equal(t, 2, rt.Size())

	assert.False(t, rt.Remove(bucket0(9)))
}

// TestClosestPeers 按距离非递减排序且不超过 count
func TestClosestPeers(t *testing.T) {
	rt := NewRoutingTable(types.NodeID{}, 20, t0)
	ids := []types.NodeID{
		idWithPrefix(0x80), idWithPrefix(0x40), idWithPrefix(0x20),
		idWithPrefix(0x10), idWithPrefix(0x01), idWithPrefix(0x00, 0x01),
	}
	for _, id := range ids {
		rt.InsertOrRefresh(rec(id, t0))
	}

	target := idWithPrefix(0x11)
	got := rt.ClosestPeers(target, 4)
	require.Len(t, got, 4)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, CompareDistance(got[i-1].ID, got[i].ID, target), 0)
	}
	assert.Equal(t, idWithPrefix(0x10), got[0].ID)

	assert.Len(t, rt.ClosestPeers(target, 100), len(ids))
	assert.Empty(t, rt.ClosestPeers(target, 0))
}

// TestSnapshot_Immutable 快照不受后续修改影响
func TestSnapshot_Immutable(t *testing.T) {
	rt := NewRoutingTable(types.NodeID{}, 20, t0)
	rt.InsertOrRefresh(rec(bucket0(1), t0))
	snap := rt.Snapshot(t0)

	rt.InsertOrRefresh(rec(bucket0(2), t0))
	rt.Update(bucket0(1), func(r *PeerRecord) { r.RTT = time.Second })

	assert.Equal(t, 1, snap.Size())
	got, ok := snap.Get(bucket0(1))
	require.True(t, ok)
	assert.Zero(t, got.RTT)

	// 排除请求方
	assert.Empty(t, snap.ClosestPeers(bucket0(1), 10, bucket0(1)))

	store := NewSnapshotStore(types.NodeID{})
	assert.Equal(t, 0, store.Load().Size())
	store.Publish(snap)
	assert.Same(t, snap, store.Load())
}

// TestStaleBuckets 测试桶刷新判定
func TestStaleBuckets(t *testing.T) {
	rt := NewRoutingTable(types.NodeID{}, 20, t0)
	assert.Empty(t, rt.StaleBuckets(t0.Add(time.Hour), time.Minute), "空表没有需要刷新的桶")

	rt.InsertOrRefresh(rec(idWithPrefix(0x20), t0)) // 2 号桶
	stale := rt.StaleBuckets(t0.Add(time.Hour), time.Minute)
	assert.Equal(t, []int{0, 1, 2}, stale)

	rt.MarkRefreshed(1, t0.Add(time.Hour))
	assert.Equal(t, []int{0, 2}, rt.StaleBuckets(t0.Add(time.Hour), time.Minute))
	assert.Equal(t, map[int]int{2: 1}, rt.BucketSizes())
}
