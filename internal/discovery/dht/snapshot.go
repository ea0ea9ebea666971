package dht

import (
	"sync/atomic"
	"time"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// Snapshot 路由表的不可变快照
type Snapshot struct {
	local   types.NodeID
	records []PeerRecord
	taken   time.Time
}

// Local 返回本地节点 ID
func (s *Snapshot) Local() types.NodeID { return s.local }

// Size 返回记录数
func (s *Snapshot) Size() int { return len(s.records) }

// Taken 返回快照时间
func (s *Snapshot) Taken() time.Time { return s.taken }

// Records 返回全部记录的副本
func (s *Snapshot) Records() []PeerRecord {
	out := make([]PeerRecord, len(s.records))
	for i, r := range s.records {
		out[i] = r.clone()
	}
	return out
}

// ClosestPeers 返回距离 target 最近的至多 count 条记录，排除 exclude（可为空）
func (s *Snapshot) ClosestPeers(target types.NodeID, count int, exclude types.NodeID) []PeerRecord {
	out := closest(s.records, target, count, exclude)
	for i := range out {
		out[i] = out[i].clone()
	}
	return out
}

// Get 查找记录
func (s *Snapshot) Get(id types.NodeID) (PeerRecord, bool) {
	for _, r := range s.records {
		if r.ID == id {
			return r.clone(), true
		}
	}
	return PeerRecord{}, false
}

// SnapshotStore 保存最新快照，写入方唯一，读者无锁读取
type SnapshotStore struct {
	p atomic.Pointer[Snapshot]
}

// NewSnapshotStore 创建存储，初始为空快照
func NewSnapshotStore(local types.NodeID) *SnapshotStore {
	s := &SnapshotStore{}
	s.p.Store(&Snapshot{local: local})
	return s
}

// Load 返回最新快照
func (s *SnapshotStore) Load() *Snapshot { return s.p.Load() }

// Publish 发布新快照
func (s *SnapshotStore) Publish(snap *Snapshot) { s.p.Store(snap) }
