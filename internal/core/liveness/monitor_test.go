package liveness

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/internal/core/protocol/system/ping"
	"github.com/dep2p/go-bootnode/pkg/types"
	"github.com/dep2p/go-bootnode/tests/testutil"
)

var testConfig = Config{
	IdleTimeout:   30 * time.Second,
	IdleFraction:  0.5,
	CheckInterval: 5 * time.Second,
	ProbeTimeout:  2 * time.Second,
}

// setup 建立 a → b 的连接，a 使用 mock 时钟
func setup(t *testing.T, withPing bool) (*Monitor, *clock.Mock, *host.Conn) {
	t.Helper()
	mock := clock.NewMock()
	cfg := host.DefaultConfig()
	cfg.Clock = mock

	a := testutil.NewHost(t, "a", testutil.WithHostConfig(cfg))
	b := testutil.NewHost(t, "b")
	testutil.DrainEvents(t, a)
	testutil.DrainEvents(t, b)
	if withPing {
		ping.NewService(b)
	}

	c, err := a.Connect(context.Background(), testutil.AddrInfo(b))
	require.NoError(t, err)
	testutil.Eventually(t, 5*time.Second, func() bool { return c.State() == types.ConnActive }, "连接应进入 active")

	return NewMonitor(a, testConfig), mock, c
}

func nextResult(t *testing.T, m *Monitor) Result {
	t.Helper()
	select {
	case r := <-m.Results():
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("等待探测结果超时")
		return Result{}
	}
}

// TestCheck_NotIdle 未达到阈值的连接不探测
func TestCheck_NotIdle(t *testing.T) {
	m, mock, _ := setup(t, true)
	mock.Add(10 * time.Second)
	m.Check(context.Background())

	select {
	case r := <-m.Results():
		t.Fatalf("不应产生结果: %+v", r)
	case <-time.After(200 * time.Millisecond):
	}
}

// TestCheck_ProbeSuccess 空闲超过阈值时探测并返回 RTT
func TestCheck_ProbeSuccess(t *testing.T) {
	m, mock, c := setup(t, true)
	mock.Add(20 * time.Second)
	m.Check(context.Background())

	r := nextResult(t, m)
	require.NoError(t, r.Err)
	assert.Equal(t, c.ID(), r.Conn.ID())
	assert.Greater(t, r.RTT, time.Duration(0))
	assert.Less(t, c.IdleFor(mock.Now()), 20*time.Second, "探测流量刷新活动时间")
}

// TestCheck_ProbeFailure 对端不响应 ping 时报告不可达
func TestCheck_ProbeFailure(t *testing.T) {
	m, mock, _ := setup(t, false)
	mock.Add(20 * time.Second)
	m.Check(context.Background())

	r := nextResult(t, m)
	assert.ErrorIs(t, r.Err, ErrPeerUnreachable)
}

// TestCheck_IdleTimeout 空闲达到超时时长
func TestCheck_IdleTimeout(t *testing.T) {
	m, mock, c := setup(t, true)
	mock.Add(30 * time.Second)
	m.Check(context.Background())

	r := nextResult(t, m)
	assert.ErrorIs(t, r.Err, ErrIdleTimeout)
	assert.Equal(t, c.RemotePeer(), r.Peer())
}

// TestProbe_CancelledOnClose 连接关闭时取消探测且不报告
func TestProbe_CancelledOnClose(t *testing.T) {
	m, mock, c := setup(t, true)
	started := make(chan struct{})
	m.pinger = func(ctx context.Context, _ *host.Conn) (time.Duration, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	}

	mock.Add(20 * time.Second)
	m.Check(context.Background())
	<-started

	// 同一连接的探测不会重复发起
	m.Check(context.Background())

	require.NoError(t, c.Close(nil))
	m.wg.Wait()

	select {
	case r := <-m.Results():
		t.Fatalf("不应产生结果: %+v", r)
	default:
	}
}

// TestRun 计时器驱动检查
func TestRun(t *testing.T) {
	m, mock, _ := setup(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	// 等待 Run 注册 ticker 后推进时钟
	testutil.Eventually(t, 5*time.Second, func() bool {
		mock.Add(testConfig.CheckInterval)
		select {
		case r := <-m.Results():
			return r.Err == nil || r.Err == ErrIdleTimeout
		default:
			return false
		}
	}, "应产生探测结果")

	cancel()
	<-done
}
