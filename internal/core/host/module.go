package host

import (
	"context"
	"fmt"
	"net"
	"strconv"

	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/fx"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/core/identity"
	"github.com/dep2p/go-bootnode/internal/core/muxer/yamux"
	"github.com/dep2p/go-bootnode/internal/core/netaddr"
	"github.com/dep2p/go-bootnode/internal/core/security/noise"
	"github.com/dep2p/go-bootnode/internal/core/transport"
	"github.com/dep2p/go-bootnode/internal/core/transport/quic"
	"github.com/dep2p/go-bootnode/internal/core/transport/tcp"
	"github.com/dep2p/go-bootnode/internal/core/transport/websocket"
	"github.com/dep2p/go-bootnode/internal/core/upgrader"
	"github.com/dep2p/go-bootnode/pkg/interfaces"
)

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config    *config.Config
	Identity  *identity.Identity
	Admission interfaces.Admission
}

// ProvideTransports 按配置组装传输层：TCP 总是启用，QUIC 与 WebSocket 可选
func ProvideTransports(input ModuleInput, lc fx.Lifecycle) (*transport.Registry, error) {
	tc := input.Config.Transport
	timeout := tc.HandshakeTimeout.Duration()

	sec, err := noise.New(input.Identity)
	if err != nil {
		return nil, fmt.Errorf("noise: %w", err)
	}
	up := upgrader.New(sec, yamux.New(nil), input.Admission, timeout)

	reg := transport.NewRegistry(tcp.New(up))
	if tc.QUICEnable {
		qt, err := quic.New(input.Identity, input.Admission, timeout)
		if err != nil {
			return nil, fmt.Errorf("quic: %w", err)
		}
		reg.Add(qt)
	}
	if tc.WSEnable {
		reg.Add(websocket.New(up, timeout))
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return reg.Close() },
	})
	return reg, nil
}

// ProvideHost 创建主机，停止时关闭所有连接与监听器
func ProvideHost(input ModuleInput, reg *transport.Registry, lc fx.Lifecycle) *Host {
	h := New(input.Identity, reg, input.Admission, netaddr.NewResolver(input.Config.Transport.DNSServer), DefaultConfig())
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return h.Close() },
	})
	return h
}

// ListenAddrs 按配置生成监听地址
func ListenAddrs(tc config.TransportConfig) ([]ma.Multiaddr, error) {
	family := "ip4"
	if ip := net.ParseIP(tc.ListenHost); ip != nil && ip.To4() == nil {
		family = "ip6"
	}
	base := "/" + family + "/" + tc.ListenHost
	ss := []string{base + "/tcp/" + strconv.Itoa(tc.Port)}
	if tc.QUICEnable {
		ss = append(ss, base+"/udp/"+strconv.Itoa(tc.Port)+"/quic-v1")
	}
	if tc.WSEnable {
		ss = append(ss, base+"/tcp/"+strconv.Itoa(tc.EffectiveWSPort())+"/ws")
	}
	out := make([]ma.Multiaddr, 0, len(ss))
	for _, s := range ss {
		m, err := ma.NewMultiaddr(s)
		if err != nil {
			return nil, fmt.Errorf("listen address %q: %w", s, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("host",
		fx.Provide(ProvideTransports, ProvideHost),
	)
}
