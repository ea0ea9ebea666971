package dht

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// ============================================================================
//                           迭代查询框架
// ============================================================================

// QueryResult 查询结果
type QueryResult struct {
	// ID 查询标识
	ID string

	Target types.NodeID

	// Found 找到的目标节点，未找到时为 nil
	Found *types.AddrInfo

	// Closest 已知距离目标最近的至多 K 个节点（不含失败节点）
	Closest []types.AddrInfo

	// Responders 成功响应的节点
	Responders []types.AddrInfo

	// Discovered 响应中出现过的所有节点
	Discovered []types.AddrInfo

	// Failed 请求失败的节点
	Failed []types.NodeID

	Rounds   int
	TimedOut bool
	Duration time.Duration
}

type candidateState int

const (
	stateUnqueried candidateState = iota
	stateQuerying
	stateSucceeded
	stateFailed
)

type candidate struct {
	info  types.AddrInfo
	dist  Distance
	state candidateState
}

// queryState 单次查询的簿记，查询结束即丢弃
type queryState struct {
	local  types.NodeID
	target types.NodeID
	peers  map[types.NodeID]*candidate
}

func newQueryState(local, target types.NodeID) *queryState {
	return &queryState{local: local, target: target, peers: make(map[types.NodeID]*candidate)}
}

// add 加入候选，已存在时合并地址
func (q *queryState) add(info types.AddrInfo) {
	if info.ID == q.local || info.ID.IsEmpty() {
		return
	}
	if c, ok := q.peers[info.ID]; ok {
		c.info.Addrs = types.MergeAddrs(c.info.Addrs, info.Addrs)
		return
	}
	q.peers[info.ID] = &candidate{info: info, dist: XORDistance(info.ID, q.target)}
}

// sorted 返回满足条件的候选，按距离升序
func (q *queryState) sorted(keep func(c *candidate) bool) []*candidate {
	out := make([]*candidate, 0, len(q.peers))
	for _, c := range q.peers {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].dist.Cmp(out[j].dist) < 0 })
	return out
}

// nextBatch 取出至多 n 个最近的未查询候选并标记为查询中
func (q *queryState) nextBatch(n int) []types.AddrInfo {
	cands := q.sorted(func(c *candidate) bool { return c.state == stateUnqueried })
	if len(cands) > n {
		cands = cands[:n]
	}
	out := make([]types.AddrInfo, 0, len(cands))
	for _, c := range cands {
		c.state = stateQuerying
		out = append(out, c.info)
	}
	return out
}

// best 返回未失败候选中的最小距离
func (q *queryState) best() (Distance, bool) {
	cands := q.sorted(func(c *candidate) bool { return c.state != stateFailed })
	if len(cands) == 0 {
		return Distance{}, false
	}
	return cands[0].dist, true
}

func (q *queryState) closest(k int) []types.AddrInfo {
	cands := q.sorted(func(c *candidate) bool { return c.state != stateFailed })
	if len(cands) > k {
		cands = cands[:k]
	}
	out := make([]types.AddrInfo, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.info)
	}
	return out
}

// FindPeer 迭代查找距离 target 最近的节点
//
// 起始节点为本地快照中最近的 K 个节点。以下任一条件满足时结束：
// 找到目标；一轮有响应但没有发现比已知最近者更近的节点；没有未查询的候选；到达截止时间。
// 到达截止时间时返回已有的部分结果，TimedOut 为 true。路由表为空时返回空结果。
func (d *DHT) FindPeer(ctx context.Context, target types.NodeID) (*QueryResult, error) {
	return d.lookup(ctx, target, nil)
}

func (d *DHT) lookup(ctx context.Context, target types.NodeID, seeds []types.AddrInfo) (*QueryResult, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, d.cfg.QueryTimeout)
	defer cancel()

	local := d.host.ID()
	q := newQueryState(local, target)
	for _, r := range d.store.Load().ClosestPeers(target, d.cfg.BucketSize, types.EmptyNodeID) {
		q.add(r.AddrInfo())
	}
	for _, s := range seeds {
		q.add(s)
	}
	res := &QueryResult{ID: uuid.NewString(), Target: target}
	if len(q.peers) == 0 {
		// 网络中只有自己：空结果
		res.Duration = time.Since(start)
		return res, nil
	}
	discovered := make(map[types.NodeID]types.AddrInfo)

	for {
		if c, ok := q.peers[target]; ok {
			info := c.info
			res.Found = &info
			break
		}
		if ctx.Err() != nil {
			res.TimedOut = true
			break
		}
		batch := q.nextBatch(d.cfg.Alpha)
		if len(batch) == 0 {
			break
		}
		bestBefore, _ := q.best()

		var (
			mu        sync.Mutex
			responded int
			improved  bool
			g         errgroup.Group
		)
		for _, p := range batch {
			g.Go(func() error {
				peers, err := d.findNode(ctx, p, target, res.ID)
				mu.Lock()
				defer mu.Unlock()
				c := q.peers[p.ID]
				if err != nil {
					c.state = stateFailed
					res.Failed = append(res.Failed, p.ID)
					logger.Debug("FIND_NODE 失败", "query", res.ID, "peer", p.ID.ShortString(), "error", err)
					return nil
				}
				c.state = stateSucceeded
				responded++
				res.Responders = append(res.Responders, p)
				for _, np := range peers {
					if np.ID == local {
						continue
					}
					q.add(np)
					if XORDistance(np.ID, target).Cmp(bestBefore) < 0 {
						improved = true
					}
					if prev, ok := discovered[np.ID]; ok {
						np.Addrs = types.MergeAddrs(prev.Addrs, np.Addrs)
					}
					discovered[np.ID] = np
				}
				return nil
			})
		}
		_ = g.Wait()
		res.Rounds++

		// 有响应却没有更近的节点：已收敛
		if _, found := q.peers[target]; !found && responded > 0 && !improved {
			break
		}
	}

	res.Closest = q.closest(d.cfg.BucketSize)
	for _, info := range discovered {
		res.Discovered = append(res.Discovered, info)
	}
	res.Duration = time.Since(start)

	logger.Debug("迭代查询完成",
		"query", res.ID,
		"target", target.ShortString(),
		"found", res.Found != nil,
		"rounds", res.Rounds,
		"responders", len(res.Responders),
		"failed", len(res.Failed),
		"timedOut", res.TimedOut,
		"duration", res.Duration)
	return res, nil
}
