package testutil

import (
	"testing"
	"time"

	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// pollInterval 条件轮询间隔
const pollInterval = 20 * time.Millisecond

// Eventually 在 timeout 内轮询 condition，超时则 fail 测试
//
//	testutil.Eventually(t, 5*time.Second, func() bool {
//	    return h.IsConnected(peer)
//	}, "应该建立连接")
func Eventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("等待超时: %s", msg)
		}
		time.Sleep(pollInterval)
	}
}

// WaitConnected 等待主机与 peer 之间出现连接
func WaitConnected(t *testing.T, h *host.Host, peer types.NodeID, timeout time.Duration) {
	t.Helper()
	Eventually(t, timeout, func() bool { return h.IsConnected(peer) }, "等待连接 "+peer.ShortString())
}
