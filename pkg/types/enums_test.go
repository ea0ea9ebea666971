package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "inbound", DirInbound.String())
	assert.Equal(t, "outbound", DirOutbound.String())
	assert.Equal(t, "public", ReachabilityPublic.String())
	assert.Equal(t, "private", ReachabilityPrivate.String())
	assert.Equal(t, "unknown", ReachabilityUnknown.String())
	assert.Equal(t, "identified", PeerIdentified.String())
	assert.Equal(t, "identifying", ConnIdentifying.String())
	assert.Equal(t, "invalid", ConnState(42).String())
}

// TestConnState_CanTransition 测试连接状态机
func TestConnState_CanTransition(t *testing.T) {
	order := []ConnState{ConnPending, ConnAdmitted, ConnIdentifying, ConnIdentified, ConnActive, ConnClosing, ConnClosed}
	for i := 0; i < len(order)-1; i++ {
		assert.True(t, order[i].CanTransition(order[i+1]), "%s -> %s", order[i], order[i+1])
		assert.True(t, order[i].CanTransition(ConnClosed), "%s -> closed", order[i])
	}

	assert.False(t, ConnPending.CanTransition(ConnIdentified))
	assert.False(t, ConnActive.CanTransition(ConnAdmitted))
	assert.False(t, ConnClosed.CanTransition(ConnClosed))
}
