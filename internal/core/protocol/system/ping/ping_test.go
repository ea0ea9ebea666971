package ping

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/tests/testutil"
)

// TestPing 测试往返时间测量
func TestPing(t *testing.T) {
	a := testutil.NewHost(t, "a")
	b := testutil.NewHost(t, "b")
	NewService(b)
	testutil.DrainEvents(t, a)
	testutil.DrainEvents(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := a.Connect(ctx, testutil.AddrInfo(b))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		rtt, err := Ping(ctx, c)
		require.NoError(t, err)
		assert.Greater(t, rtt, time.Duration(0))
	}
}

// TestPing_Unsupported 对端未注册协议时失败
func TestPing_Unsupported(t *testing.T) {
	a := testutil.NewHost(t, "a")
	b := testutil.NewHost(t, "b")
	testutil.DrainEvents(t, a)
	testutil.DrainEvents(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := a.Connect(ctx, testutil.AddrInfo(b))
	require.NoError(t, err)

	_, err = Ping(ctx, c)
	assert.Error(t, err)
}

// TestPing_Timeout 对端不回显时按 ctx 超时
func TestPing_Timeout(t *testing.T) {
	a := testutil.NewHost(t, "a")
	b := testutil.NewHost(t, "b")
	testutil.DrainEvents(t, a)
	testutil.DrainEvents(t, b)

	// 只读不写的处理器
	b.SetStreamHandler("/bootnode/sys/ping/1.0.0", func(s *host.Stream) {
		_, _ = io.Copy(io.Discard, s)
	})

	c, err := a.Connect(context.Background(), testutil.AddrInfo(b))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err = Ping(ctx, c)
	assert.Error(t, err)
}
