package testutil

import (
	"context"
	"testing"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bootnode/internal/core/connmgr/gater"
	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/internal/core/identity"
	"github.com/dep2p/go-bootnode/internal/core/muxer/yamux"
	"github.com/dep2p/go-bootnode/internal/core/security/noise"
	"github.com/dep2p/go-bootnode/internal/core/transport"
	"github.com/dep2p/go-bootnode/internal/core/transport/tcp"
	"github.com/dep2p/go-bootnode/internal/core/upgrader"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// HostOption 调整测试主机
type HostOption func(o *hostOptions)

type hostOptions struct {
	gater  *gater.Gater
	cfg    host.Config
	listen bool
}

// WithGater 使用指定的准入过滤器
func WithGater(g *gater.Gater) HostOption {
	return func(o *hostOptions) { o.gater = g }
}

// WithHostConfig 使用指定的主机配置
func WithHostConfig(cfg host.Config) HostOption {
	return func(o *hostOptions) { o.cfg = cfg }
}

// NoListen 不启动监听
func NoListen() HostOption {
	return func(o *hostOptions) { o.listen = false }
}

// NewHost 创建只使用 TCP 回环地址的测试主机
//
// 测试结束时自动关闭。
func NewHost(t *testing.T, seed string, opts ...HostOption) *host.Host {
	t.Helper()

	o := hostOptions{gater: gater.New(0), cfg: host.DefaultConfig(), listen: true}
	for _, opt := range opts {
		opt(&o)
	}

	id := identity.FromSeed(seed)
	sec, err := noise.New(id)
	require.NoError(t, err)
	up := upgrader.New(sec, yamux.New(nil), o.gater, 5*time.Second)
	reg := transport.NewRegistry(tcp.New(up))

	h := host.New(id, reg, o.gater, nil, o.cfg)
	if o.listen {
		require.NoError(t, h.Listen(ma.StringCast("/ip4/127.0.0.1/tcp/0")))
	}
	t.Cleanup(func() {
		_ = h.Close()
		_ = reg.Close()
	})
	return h
}

// AddrInfo 返回主机的回环地址信息
func AddrInfo(h *host.Host) types.AddrInfo {
	return types.AddrInfo{ID: h.ID(), Addrs: h.ListenAddrs()}
}

// DrainEvents 在后台丢弃主机事件，避免驱动 goroutine 阻塞
func DrainEvents(t *testing.T, h *host.Host) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		for {
			select {
			case <-h.Events():
			case <-ctx.Done():
				return
			}
		}
	}()
}

// NextEvent 等待下一条满足条件的事件
func NextEvent[T host.Event](t *testing.T, h *host.Host, timeout time.Duration) T {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-h.Events():
			if e, ok := ev.(T); ok {
				return e
			}
		case <-deadline:
			var zero T
			t.Fatalf("等待事件 %T 超时", zero)
			return zero
		}
	}
}
