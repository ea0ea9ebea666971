package dht

import (
	"context"
	"testing"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/pkg/types"
	"github.com/dep2p/go-bootnode/tests/testutil"
)

type testNode struct {
	h  *host.Host
	d  *DHT
	rt *RoutingTable
}

func newTestNode(t *testing.T, seed string) *testNode {
	t.Helper()
	h := testutil.NewHost(t, seed)
	testutil.DrainEvents(t, h)
	cfg := Config{BucketSize: 20, Alpha: 3, QueryTimeout: 10 * time.Second, RequestTimeout: 5 * time.Second}
	return &testNode{
		h:  h,
		d:  New(h, NewSnapshotStore(h.ID()), testutil.TestProtocolVersion, cfg),
		rt: NewRoutingTable(h.ID(), cfg.BucketSize, time.Now()),
	}
}

func (n *testNode) info() types.AddrInfo {
	return testutil.AddrInfo(n.h)
}

// learn 把其他节点写入路由表并发布快照
func (n *testNode) learn(others ...*testNode) {
	for _, o := range others {
		n.rt.InsertOrRefresh(PeerRecord{ID: o.h.ID(), Addrs: o.h.ListenAddrs(), LastSeen: time.Now(), State: types.PeerIdentified})
	}
	n.d.Store().Publish(n.rt.Snapshot(time.Now()))
}

func ids(infos []types.AddrInfo) []types.NodeID {
	out := make([]types.NodeID, 0, len(infos))
	for _, i := range infos {
		out = append(out, i.ID)
	}
	return out
}

// TestFindPeer_Chain A → B → C → D 逐跳找到目标
func TestFindPeer_Chain(t *testing.T) {
	a, b, c, d := newTestNode(t, "a"), newTestNode(t, "b"), newTestNode(t, "c"), newTestNode(t, "d")
	// 每一跳都必须更接近目标，查询才会继续
	if CompareDistance(b.h.ID(), c.h.ID(), d.h.ID()) < 0 {
		b, c = c, b
	}
	a.learn(b)
	b.learn(c)
	c.learn(d)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	res, err := a.d.FindPeer(ctx, d.h.ID())
	require.NoError(t, err)
	require.NotNil(t, res.Found)
	assert.Equal(t, d.h.ID(), res.Found.ID)
	assert.NotEmpty(t, res.Found.Addrs)
	assert.NotEmpty(t, res.ID)
	assert.False(t, res.TimedOut)
	assert.Contains(t, ids(res.Responders), b.h.ID())
	assert.Contains(t, ids(res.Responders), c.h.ID())
	assert.Contains(t, ids(res.Discovered), d.h.ID())
}

// TestFindPeer_NotFound 目标不存在时收敛并返回最近节点
func TestFindPeer_NotFound(t *testing.T) {
	a, b, c := newTestNode(t, "a"), newTestNode(t, "b"), newTestNode(t, "c")
	a.learn(b)
	b.learn(c)

	target := RandomIDInBucket(a.h.ID(), 3)
	res, err := a.d.FindPeer(context.Background(), target)
	require.NoError(t, err)
	assert.Nil(t, res.Found)
	assert.ElementsMatch(t, []types.NodeID{b.h.ID(), c.h.ID()}, ids(res.Closest))
	for i := 1; i < len(res.Closest); i++ {
		assert.LessOrEqual(t, CompareDistance(res.Closest[i-1].ID, res.Closest[i].ID, target), 0)
	}
}

// TestFindPeer_FailedPeer 不可达节点记为失败，不计入结果
func TestFindPeer_FailedPeer(t *testing.T) {
	a, b := newTestNode(t, "a"), newTestNode(t, "b")
	ghost := newTestNode(t, "ghost")
	ghostID := ghost.h.ID()
	require.NoError(t, ghost.h.Close())

	a.rt.InsertOrRefresh(PeerRecord{ID: ghostID, Addrs: []ma.Multiaddr{ma.StringCast("/ip4/127.0.0.1/tcp/1")}, LastSeen: time.Now()})
	a.learn(b)

	res, err := a.d.FindPeer(context.Background(), RandomIDInBucket(a.h.ID(), 0))
	require.NoError(t, err)
	assert.Contains(t, res.Failed, ghostID)
	assert.NotContains(t, ids(res.Closest), ghostID)
	assert.Contains(t, ids(res.Responders), b.h.ID())
}

// TestFindPeer_Deadline 截止时间到达时返回部分结果
func TestFindPeer_Deadline(t *testing.T) {
	a, b := newTestNode(t, "a"), newTestNode(t, "b")
	a.learn(b)

	// b 的路由处理器永不回复
	b.h.SetStreamHandler(b.d.Protocol(), func(s *host.Stream) {
		<-s.Conn().Context().Done()
	})
	a.d.cfg.QueryTimeout = 300 * time.Millisecond

	res, err := a.d.FindPeer(context.Background(), RandomIDInBucket(a.h.ID(), 0))
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.Contains(t, res.Failed, b.h.ID())
	assert.True(t, a.h.IsConnected(b.h.ID()), "查询超时不关闭连接")
}

// TestFindPeer_NoPeers 空路由表时查找自身立即返回空结果
func TestFindPeer_NoPeers(t *testing.T) {
	a := newTestNode(t, "a")
	for _, target := range []types.NodeID{a.h.ID(), {1}} {
		res, err := a.d.FindPeer(context.Background(), target)
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.Equal(t, target, res.Target)
		assert.NotEmpty(t, res.ID)
		assert.Nil(t, res.Found)
		assert.Empty(t, res.Closest)
		assert.Zero(t, res.Rounds)
		assert.False(t, res.TimedOut)
	}
}

// TestHandler_ExcludesRequester 服务端响应不包含请求方
func TestHandler_ExcludesRequester(t *testing.T) {
	a, b, c := newTestNode(t, "a"), newTestNode(t, "b"), newTestNode(t, "c")
	b.learn(a, c)

	peers, err := a.d.findNode(context.Background(), b.info(), a.h.ID(), "q")
	require.NoError(t, err)
	assert.Equal(t, []types.NodeID{c.h.ID()}, ids(peers))
}

// TestBootstrap 连接引导节点后自查找
func TestBootstrap(t *testing.T) {
	a, b, c, d := newTestNode(t, "a"), newTestNode(t, "b"), newTestNode(t, "c"), newTestNode(t, "d")
	b.learn(c, d)

	res, err := a.d.Bootstrap(context.Background(), []types.AddrInfo{b.info()})
	require.NoError(t, err)
	assert.True(t, a.h.IsConnected(b.h.ID()))
	assert.Contains(t, ids(res.Responders), b.h.ID())
	assert.ElementsMatch(t, []types.NodeID{c.h.ID(), d.h.ID()}, ids(res.Discovered))
}

// TestBootstrap_AllSeedsDown 引导节点全部不可达
func TestBootstrap_AllSeedsDown(t *testing.T) {
	a := newTestNode(t, "a")
	seed := types.AddrInfo{ID: types.NodeID{7}, Addrs: []ma.Multiaddr{ma.StringCast("/ip4/127.0.0.1/tcp/1")}}

	_, err := a.d.Bootstrap(context.Background(), []types.AddrInfo{seed})
	assert.ErrorIs(t, err, ErrBootstrapFailed)

	_, err = a.d.Bootstrap(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoPeers)
}
