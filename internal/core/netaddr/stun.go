package netaddr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/pion/stun"
)

// ErrNoSTUNServers 未配置 STUN 服务器
var ErrNoSTUNServers = errors.New("netaddr: no stun servers")

// STUNObserver 周期性向 STUN 服务器查询本机的公网映射地址
//
// 结果作为可达性探测的候选 IP 来源之一，与身份交换中对端报告的观察地址合并使用。
type STUNObserver struct {
	servers  []string
	timeout  time.Duration
	interval time.Duration
	clock    clock.Clock

	mu   sync.RWMutex
	addr ma.Multiaddr
}

// NewSTUNObserver 创建观察器，servers 形如 "stun.l.google.com:19302"
func NewSTUNObserver(servers []string, interval time.Duration, clk clock.Clock) *STUNObserver {
	if clk == nil {
		clk = clock.New()
	}
	return &STUNObserver{
		servers:  servers,
		timeout:  defaultTimeout,
		interval: interval,
		clock:    clk,
	}
}

// ObservedAddrs 返回最近一次成功查询得到的地址，没有时为空
func (s *STUNObserver) ObservedAddrs() []ma.Multiaddr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.addr == nil {
		return nil
	}
	return []ma.Multiaddr{s.addr}
}

// Run 立即查询一次，之后每个 interval 刷新，直到 ctx 取消
func (s *STUNObserver) Run(ctx context.Context) {
	if len(s.servers) == 0 {
		return
	}
	t := s.clock.Ticker(s.interval)
	defer t.Stop()
	for {
		if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
			logger.Debug("STUN 查询失败", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Refresh 依次查询服务器，第一个成功的结果生效
func (s *STUNObserver) Refresh(ctx context.Context) (ma.Multiaddr, error) {
	if len(s.servers) == 0 {
		return nil, ErrNoSTUNServers
	}
	var lastErr error
	for _, server := range s.servers {
		udp, err := s.query(ctx, server)
		if err != nil {
			lastErr = err
			continue
		}
		m, err := FromUDPAddr(udp)
		if err != nil {
			lastErr = err
			continue
		}
		s.mu.Lock()
		changed := s.addr == nil || !s.addr.Equal(m)
		s.addr = m
		s.mu.Unlock()
		if changed {
			logger.Info("STUN 映射地址", "addr", m.String(), "server", server)
		}
		return m, nil
	}
	return nil, lastErr
}

func (s *STUNObserver) query(ctx context.Context, server string) (*net.UDPAddr, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", server)
	if err != nil {
		return nil, fmt.Errorf("stun dial %s: %w", server, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(s.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetDeadline(deadline)

	req, err := stun.Build(stun.TransactionID, stun.BindingRequest)
	if err != nil {
		return nil, err
	}
	if _, err := req.WriteTo(conn); err != nil {
		return nil, fmt.Errorf("stun write %s: %w", server, err)
	}

	buf := make([]byte, 1500)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("stun read %s: %w", server, err)
	}
	res := &stun.Message{Raw: buf[:n]}
	if err := res.Decode(); err != nil {
		return nil, fmt.Errorf("stun decode %s: %w", server, err)
	}
	if res.TransactionID != req.TransactionID {
		return nil, fmt.Errorf("stun %s: transaction id mismatch", server)
	}

	var xor stun.XORMappedAddress
	if err := xor.GetFrom(res); err == nil {
		return &net.UDPAddr{IP: xor.IP, Port: xor.Port}, nil
	}
	var mapped stun.MappedAddress
	if err := mapped.GetFrom(res); err != nil {
		return nil, fmt.Errorf("stun %s: no mapped address", server)
	}
	return &net.UDPAddr{IP: mapped.IP, Port: mapped.Port}, nil
}

// FromUDPAddr 将 UDP 地址转换为 /ip4|ip6/.../udp/<port>
func FromUDPAddr(a *net.UDPAddr) (ma.Multiaddr, error) {
	family := "ip4"
	ip := a.IP.To4()
	if ip == nil {
		family, ip = "ip6", a.IP
	}
	return ma.NewMultiaddr(fmt.Sprintf("/%s/%s/udp/%d", family, ip, a.Port))
}
