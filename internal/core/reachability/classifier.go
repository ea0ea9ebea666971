package reachability

import (
	"time"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// Outcome 一次回拨探测的结果
type Outcome struct {
	Helper types.NodeID

	// Success 为 true 表示回拨成功，false 且 Err 为空表示服务端回拨失败
	Success bool

	// Err 非空表示探测本身出错（超时、被拒绝等），不计入分类
	Err error

	// Addr 回拨成功的地址
	Addr ma.Multiaddr
	At   time.Time
}

// Classifier 带阻尼的可达性分类器
//
// 非并发安全，只由事件循环调用。
type Classifier struct {
	minConfirmations int
	state            types.Reachability

	// streak 当前连续一致结果的方向与涉及的不同节点
	streakSuccess bool
	streakPeers   map[types.NodeID]struct{}

	history []Outcome
	next    int
	full    bool

	// confirmed 最近一次成功回拨的地址，按地址去重
	confirmed map[string]ma.Multiaddr
}

// NewClassifier 创建分类器，初始为 unknown
func NewClassifier(minConfirmations, historySize int) *Classifier {
	return &Classifier{
		minConfirmations: minConfirmations,
		streakPeers:      make(map[types.NodeID]struct{}),
		history:          make([]Outcome, historySize),
		confirmed:        make(map[string]ma.Multiaddr),
	}
}

// State 返回当前分类
func (c *Classifier) State() types.Reachability { return c.state }

// Record 记录结果，返回分类是否改变
//
// 一个相反的结果只重置计数，不会直接翻转分类。
func (c *Classifier) Record(o Outcome) bool {
	c.history[c.next] = o
	c.next = (c.next + 1) % len(c.history)
	if c.next == 0 {
		c.full = true
	}

	if o.Err != nil {
		return false
	}
	if o.Success && o.Addr != nil {
		c.confirmed[string(o.Addr.Bytes())] = o.Addr
	}

	if len(c.streakPeers) == 0 || o.Success != c.streakSuccess {
		c.streakSuccess = o.Success
		c.streakPeers = map[types.NodeID]struct{}{o.Helper: {}}
	} else {
		c.streakPeers[o.Helper] = struct{}{}
	}

	if len(c.streakPeers) < c.minConfirmations {
		return false
	}
	next := types.ReachabilityPrivate
	if c.streakSuccess {
		next = types.ReachabilityPublic
	}
	if next == c.state {
		return false
	}
	c.state = next
	if next == types.ReachabilityPrivate {
		c.confirmed = make(map[string]ma.Multiaddr)
	}
	return true
}

// History 返回最近的结果，按时间先后
func (c *Classifier) History() []Outcome {
	if !c.full {
		return append([]Outcome(nil), c.history[:c.next]...)
	}
	out := make([]Outcome, 0, len(c.history))
	out = append(out, c.history[c.next:]...)
	return append(out, c.history[:c.next]...)
}

// ConfirmedAddrs 返回已被回拨确认的地址，分类为 public 时才有效
func (c *Classifier) ConfirmedAddrs() []ma.Multiaddr {
	if c.state != types.ReachabilityPublic {
		return nil
	}
	out := make([]ma.Multiaddr, 0, len(c.confirmed))
	for _, a := range c.confirmed {
		out = append(out, a)
	}
	return out
}
