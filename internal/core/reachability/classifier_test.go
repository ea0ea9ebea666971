package reachability

import (
	"errors"
	"testing"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"

	"github.com/dep2p/go-bootnode/pkg/types"
)

func outcome(helper byte, success bool) Outcome {
	o := Outcome{Helper: types.NodeID{helper}, Success: success}
	if success {
		o.Addr = ma.StringCast("/ip4/1.2.3.4/tcp/39000")
	}
	return o
}

// TestClassifier_Confirmations 需要来自不同节点的连续一致结果
func TestClassifier_Confirmations(t *testing.T) {
	c := NewClassifier(3, 8)
	assert.Equal(t, types.ReachabilityUnknown, c.State())

	assert.False(t, c.Record(outcome(1, true)))
	assert.False(t, c.Record(outcome(1, true)), "同一节点不重复计数")
	assert.False(t, c.Record(outcome(2, true)))
	assert.True(t, c.Record(outcome(3, true)))
	assert.Equal(t, types.ReachabilityPublic, c.State())
	assert.Len(t, c.ConfirmedAddrs(), 1)
}

// TestClassifier_Damping 单个相反结果不翻转分类
func TestClassifier_Damping(t *testing.T) {
	c := NewClassifier(2, 8)
	c.Record(outcome(1, true))
	c.Record(outcome(2, true))
	assert.Equal(t, types.ReachabilityPublic, c.State())

	assert.False(t, c.Record(outcome(3, false)))
	assert.False(t, c.Record(outcome(4, true)), "计数已重置")
	assert.Equal(t, types.ReachabilityPublic, c.State())

	c.Record(outcome(5, false))
	assert.True(t, c.Record(outcome(6, false)))
	assert.Equal(t, types.ReachabilityPrivate, c.State())
	assert.Empty(t, c.ConfirmedAddrs())
}

// TestClassifier_ErrorsIgnored 探测错误只进入历史
func TestClassifier_ErrorsIgnored(t *testing.T) {
	c := NewClassifier(1, 2)
	assert.False(t, c.Record(Outcome{Helper: types.NodeID{1}, Err: errors.New("timeout")}))
	assert.Equal(t, types.ReachabilityUnknown, c.State())

	c.Record(outcome(2, false))
	c.Record(outcome(3, false))
	h := c.History()
	assert.Len(t, h, 2, "历史按容量滚动")
	assert.Equal(t, types.NodeID{2}, h[0].Helper)
	assert.Equal(t, types.NodeID{3}, h[1].Helper)
}
