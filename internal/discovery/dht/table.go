package dht

import (
	"sort"
	"time"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// InsertResult InsertOrRefresh 的结果
type InsertResult int

const (
	// Inserted 新记录已加入桶
	Inserted InsertResult = iota
	// Refreshed 已有记录已更新并移到最近位置
	Refreshed
	// EvictionPending 桶已满，返回了淘汰候选，新记录等待裁决
	EvictionPending
	// Rejected 桶已满且已有待决淘汰，新记录被丢弃
	Rejected
	// IgnoredSelf 本地节点不入表
	IgnoredSelf
)

// String 返回结果名称
func (r InsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Refreshed:
		return "refreshed"
	case EvictionPending:
		return "eviction-pending"
	case Rejected:
		return "rejected"
	default:
		return "ignored-self"
	}
}

// Eviction 待决淘汰
type Eviction struct {
	Bucket    int
	Candidate PeerRecord
	Newcomer  PeerRecord
}

// bucket K 桶，records 按最近见到时间升序（最久未见在前）
type bucket struct {
	records     []PeerRecord
	pending     *Eviction
	lastRefresh time.Time
}

func (b *bucket) find(id types.NodeID) int {
	for i := range b.records {
		if b.records[i].ID == id {
			return i
		}
	}
	return -1
}

func (b *bucket) removeAt(i int) PeerRecord {
	r := b.records[i]
	b.records = append(b.records[:i], b.records[i+1:]...)
	return r
}

// RoutingTable Kademlia 路由表
//
// 非并发安全，只允许单个 goroutine 修改。读者使用 Snapshot。
type RoutingTable struct {
	local      types.NodeID
	bucketSize int
	buckets    [KeySize]bucket
	size       int
}

// NewRoutingTable 创建路由表
func NewRoutingTable(local types.NodeID, bucketSize int, now time.Time) *RoutingTable {
	rt := &RoutingTable{local: local, bucketSize: bucketSize}
	for i := range rt.buckets {
		rt.buckets[i].lastRefresh = now
	}
	return rt
}

// Local 返回本地节点 ID
func (rt *RoutingTable) Local() types.NodeID { return rt.local }

// Size 返回记录数
func (rt *RoutingTable) Size() int { return rt.size }

// InsertOrRefresh 插入或刷新记录
//
//   - 已存在：合并地址、更新状态与最近见到时间，移到桶尾
//   - 桶未满：追加到桶尾
//   - 桶已满且无待决淘汰：返回最久未见的记录作为淘汰候选
//   - 桶已满且已有待决淘汰：丢弃新记录
func (rt *RoutingTable) InsertOrRefresh(rec PeerRecord) (InsertResult, *Eviction) {
	idx := BucketIndex(rt.local, rec.ID)
	if idx < 0 {
		return IgnoredSelf, nil
	}
	b := &rt.buckets[idx]

	if i := b.find(rec.ID); i >= 0 {
		old := b.removeAt(i)
		rec = mergeRecord(old, rec)
		b.records = append(b.records, rec)
		return Refreshed, nil
	}

	if b.pending != nil && b.pending.Newcomer.ID == rec.ID {
		b.pending.Newcomer = mergeRecord(b.pending.Newcomer, rec)
		return EvictionPending, nil
	}

	if len(b.records) < rt.bucketSize {
		b.records = append(b.records, rec.clone())
		rt.size++
		return Inserted, nil
	}

	if b.pending != nil {
		return Rejected, nil
	}
	ev := &Eviction{Bucket: idx, Candidate: b.records[0].clone(), Newcomer: rec.clone()}
	b.pending = ev
	return EvictionPending, &Eviction{Bucket: idx, Candidate: ev.Candidate.clone(), Newcomer: ev.Newcomer.clone()}
}

// mergeRecord 用新记录更新旧记录，地址合并（新地址在前）
func mergeRecord(old, rec PeerRecord) PeerRecord {
	out := old.clone()
	out.Addrs = types.MergeAddrs(rec.Addrs, old.Addrs)
	if rec.LastSeen.After(out.LastSeen) {
		out.LastSeen = rec.LastSeen
	}
	out.State = rec.State
	if rec.RTT > 0 {
		out.RTT = rec.RTT
	}
	return out
}

// ResolveEviction 按探测结果裁决待决淘汰
//
// alive 为 true 时保留候选（刷新并移到桶尾），丢弃新记录；
// 否则移除候选，插入新记录。candidate 与待决淘汰不符时返回 false。
func (rt *RoutingTable) ResolveEviction(candidate types.NodeID, alive bool, now time.Time) bool {
	idx := BucketIndex(rt.local, candidate)
	if idx < 0 {
		return false
	}
	b := &rt.buckets[idx]
	if b.pending == nil || b.pending.Candidate.ID != candidate {
		return false
	}
	ev := b.pending
	b.pending = nil

	i := b.find(candidate)
	if alive {
		if i >= 0 {
			r := b.removeAt(i)
			r.LastSeen = now
			b.records = append(b.records, r)
		}
		return true
	}

	if i >= 0 {
		b.removeAt(i)
		rt.size--
	}
	if len(b.records) < rt.bucketSize {
		b.records = append(b.records, ev.Newcomer)
		rt.size++
	}
	return true
}

// PendingEvictions 返回所有待决淘汰
func (rt *RoutingTable) PendingEvictions() []Eviction {
	var out []Eviction
	for i := range rt.buckets {
		if ev := rt.buckets[i].pending; ev != nil {
			out = append(out, *ev)
		}
	}
	return out
}

// Remove 移除记录
//
// 被移除的记录若是待决淘汰的候选，视为探测失败，新记录补入；
// 若是待决淘汰的新记录，撤销该淘汰。
func (rt *RoutingTable) Remove(id types.NodeID) bool {
	idx := BucketIndex(rt.local, id)
	if idx < 0 {
		return false
	}
	b := &rt.buckets[idx]

	if b.pending != nil {
		switch id {
		case b.pending.Candidate.ID:
			return rt.ResolveEviction(id, false, time.Time{})
		case b.pending.Newcomer.ID:
			b.pending = nil
			return false
		}
	}

	i := b.find(id)
	if i < 0 {
		return false
	}
	b.removeAt(i)
	rt.size--
	return true
}

// Get 查找记录
func (rt *RoutingTable) Get(id types.NodeID) (PeerRecord, bool) {
	idx := BucketIndex(rt.local, id)
	if idx < 0 {
		return PeerRecord{}, false
	}
	b := &rt.buckets[idx]
	if i := b.find(id); i >= 0 {
		return b.records[i].clone(), true
	}
	return PeerRecord{}, false
}

// Update 原地修改记录（不改变桶内顺序），记录不存在时返回 false
func (rt *RoutingTable) Update(id types.NodeID, fn func(r *PeerRecord)) bool {
	idx := BucketIndex(rt.local, id)
	if idx < 0 {
		return false
	}
	b := &rt.buckets[idx]
	i := b.find(id)
	if i < 0 {
		return false
	}
	fn(&b.records[i])
	return true
}

// AddAddrs 为已有记录追加地址
func (rt *RoutingTable) AddAddrs(id types.NodeID, addrs []ma.Multiaddr) bool {
	return rt.Update(id, func(r *PeerRecord) {
		r.Addrs = types.MergeAddrs(r.Addrs, addrs)
	})
}

// ClosestPeers 返回距离 target 最近的至多 count 条记录
func (rt *RoutingTable) ClosestPeers(target types.NodeID, count int) []PeerRecord {
	return closest(rt.all(), target, count, types.EmptyNodeID)
}

// BucketSizes 返回各非空桶的记录数
func (rt *RoutingTable) BucketSizes() map[int]int {
	out := make(map[int]int)
	for i := range rt.buckets {
		if n := len(rt.buckets[i].records); n > 0 {
			out[i] = n
		}
	}
	return out
}

// StaleBuckets 返回超过 interval 未刷新的桶
//
// 只考虑不超过最深非空桶的索引，更深的桶在随机 ID 空间中几乎不可能有节点。
func (rt *RoutingTable) StaleBuckets(now time.Time, interval time.Duration) []int {
	deepest := -1
	for i := range rt.buckets {
		if len(rt.buckets[i].records) > 0 {
			deepest = i
		}
	}
	var out []int
	for i := 0; i <= deepest; i++ {
		if now.Sub(rt.buckets[i].lastRefresh) >= interval {
			out = append(out, i)
		}
	}
	return out
}

// MarkRefreshed 记录桶的刷新时间
func (rt *RoutingTable) MarkRefreshed(bucket int, now time.Time) {
	if bucket >= 0 && bucket < KeySize {
		rt.buckets[bucket].lastRefresh = now
	}
}

func (rt *RoutingTable) all() []PeerRecord {
	out := make([]PeerRecord, 0, rt.size)
	for i := range rt.buckets {
		for _, r := range rt.buckets[i].records {
			out = append(out, r.clone())
		}
	}
	return out
}

// Snapshot 生成不可变快照
func (rt *RoutingTable) Snapshot(now time.Time) *Snapshot {
	return &Snapshot{local: rt.local, records: rt.all(), taken: now}
}

// closest 按距离非递减排序（距离相同时最近见到的在前），排除 exclude
func closest(records []PeerRecord, target types.NodeID, count int, exclude types.NodeID) []PeerRecord {
	out := make([]PeerRecord, 0, len(records))
	for _, r := range records {
		if !exclude.IsEmpty() && r.ID == exclude {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := CompareDistance(out[i].ID, out[j].ID, target)
		if c != 0 {
			return c < 0
		}
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	if count >= 0 && len(out) > count {
		out = out[:count]
	}
	return out
}
