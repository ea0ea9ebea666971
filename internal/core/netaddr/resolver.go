package netaddr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/miekg/dns"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/dep2p/go-bootnode/pkg/lib/log"
)

var logger = log.Logger("core/netaddr")

const (
	// dnsaddrTXTPrefix dnsaddr TXT 记录前缀
	dnsaddrTXTPrefix = "dnsaddr="

	// dnsaddrDomainPrefix dnsaddr 查询域名前缀
	dnsaddrDomainPrefix = "_dnsaddr."

	defaultMaxDepth = 3
	defaultCacheTTL = 5 * time.Minute
	defaultTimeout  = 5 * time.Second
)

var (
	// ErrNoRecords 查询没有返回可用记录
	ErrNoRecords = errors.New("netaddr: no dns records")

	// ErrMaxDepth dnsaddr 递归过深
	ErrMaxDepth = errors.New("netaddr: dnsaddr recursion too deep")
)

// Resolver 使用 miekg/dns 解析 /dns*、/dnsaddr 地址
type Resolver struct {
	client  *dns.Client
	servers []string
	cache   *expirable.LRU[string, []ma.Multiaddr]
}

// NewResolver 创建解析器
//
// server 形如 "1.1.1.1:53"，为空时读取 /etc/resolv.conf，读取失败回退到 127.0.0.1:53。
func NewResolver(server string) *Resolver {
	servers := []string{server}
	if server == "" {
		servers = systemServers()
	} else if _, _, err := net.SplitHostPort(server); err != nil {
		servers = []string{net.JoinHostPort(server, "53")}
	}
	return &Resolver{
		client:  &dns.Client{Timeout: defaultTimeout},
		servers: servers,
		cache:   expirable.NewLRU[string, []ma.Multiaddr](256, nil, defaultCacheTTL),
	}
}

func systemServers() []string {
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cfg.Servers) == 0 {
		return []string{"127.0.0.1:53"}
	}
	out := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		out = append(out, net.JoinHostPort(s, cfg.Port))
	}
	return out
}

// Resolve 将地址解析为可拨号的 IP 地址列表
//
// 非 DNS 地址原样返回。/dnsaddr 的 TXT 记录中带 /p2p 组件的地址保留该组件。
func (r *Resolver) Resolve(ctx context.Context, m ma.Multiaddr) ([]ma.Multiaddr, error) {
	return r.resolve(ctx, m, defaultMaxDepth)
}

func (r *Resolver) resolve(ctx context.Context, m ma.Multiaddr, depth int) ([]ma.Multiaddr, error) {
	if !IsDNS(m) {
		return []ma.Multiaddr{m}, nil
	}
	if depth < 0 {
		return nil, ErrMaxDepth
	}
	key := m.String()
	if cached, ok := r.cache.Get(key); ok {
		return cached, nil
	}

	first, rest := ma.SplitFirst(m)
	host := first.Value()

	var (
		out []ma.Multiaddr
		err error
	)
	switch first.Protocol().Code {
	case ma.P_DNS4:
		out, err = r.resolveHost(ctx, host, rest, dns.TypeA)
	case ma.P_DNS6:
		out, err = r.resolveHost(ctx, host, rest, dns.TypeAAAA)
	case ma.P_DNS:
		v4, err4 := r.resolveHost(ctx, host, rest, dns.TypeA)
		v6, err6 := r.resolveHost(ctx, host, rest, dns.TypeAAAA)
		out = append(v4, v6...)
		if len(out) == 0 {
			err = errors.Join(err4, err6)
		}
	case ma.P_DNSADDR:
		out, err = r.resolveDNSAddr(ctx, host, rest, depth)
	}
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRecords, key)
	}
	r.cache.Add(key, out)
	return out, nil
}

// resolveHost 查询 A/AAAA 记录并拼接剩余的传输部分
func (r *Resolver) resolveHost(ctx context.Context, host string, rest ma.Multiaddr, qtype uint16) ([]ma.Multiaddr, error) {
	answers, err := r.query(ctx, host, qtype)
	if err != nil {
		return nil, err
	}
	var out []ma.Multiaddr
	for _, rr := range answers {
		var ipComp string
		switch v := rr.(type) {
		case *dns.A:
			ipComp = "/ip4/" + v.A.String()
		case *dns.AAAA:
			ipComp = "/ip6/" + v.AAAA.String()
		default:
			continue
		}
		ipAddr, err := ma.NewMultiaddr(ipComp)
		if err != nil {
			continue
		}
		if rest != nil {
			ipAddr = ipAddr.Encapsulate(rest)
		}
		out = append(out, ipAddr)
	}
	return out, nil
}

// resolveDNSAddr 查询 _dnsaddr.<domain> 的 TXT 记录，递归展开嵌套的 /dnsaddr
func (r *Resolver) resolveDNSAddr(ctx context.Context, domain string, rest ma.Multiaddr, depth int) ([]ma.Multiaddr, error) {
	answers, err := r.query(ctx, dnsaddrDomainPrefix+domain, dns.TypeTXT)
	if err != nil {
		return nil, err
	}
	var out []ma.Multiaddr
	for _, rr := range answers {
		txt, ok := rr.(*dns.TXT)
		if !ok {
			continue
		}
		for _, record := range txt.Txt {
			if !strings.HasPrefix(record, dnsaddrTXTPrefix) {
				continue
			}
			m, err := ma.NewMultiaddr(strings.TrimPrefix(record, dnsaddrTXTPrefix))
			if err != nil {
				logger.Debug("忽略无效的 dnsaddr 记录", "record", record, "error", err)
				continue
			}
			if rest != nil {
				m = m.Encapsulate(rest)
			}
			resolved, err := r.resolve(ctx, m, depth-1)
			if err != nil {
				logger.Debug("展开 dnsaddr 记录失败", "record", record, "error", err)
				continue
			}
			out = append(out, resolved...)
		}
	}
	return out, nil
}

// query 依次向各服务器发起查询，返回第一个成功的应答
func (r *Resolver) query(ctx context.Context, name string, qtype uint16) ([]dns.RR, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		resp, _, err := r.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("%w: %s rcode %s", ErrNoRecords, name, dns.RcodeToString[resp.Rcode])
			continue
		}
		return resp.Answer, nil
	}
	if lastErr == nil {
		lastErr = ErrNoRecords
	}
	return nil, lastErr
}
