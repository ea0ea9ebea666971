package netaddr

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startDNSServer 在本地 UDP 端口上启动测试用 DNS 服务器
func startDNSServer(t *testing.T, records map[string][]dns.RR) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	mux := dns.NewServeMux()
	mux.HandleFunc(".", func(w dns.ResponseWriter, req *dns.Msg) {
		resp := new(dns.Msg)
		resp.SetReply(req)
		q := req.Question[0]
		for _, rr := range records[q.Name] {
			if rr.Header().Rrtype == q.Qtype {
				resp.Answer = append(resp.Answer, rr)
			}
		}
		if len(resp.Answer) == 0 {
			resp.Rcode = dns.RcodeNameError
		}
		_ = w.WriteMsg(resp)
	})

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: mux, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

func mustRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	require.NoError(t, err)
	return rr
}

// TestResolver_DNS4 解析 /dns4 地址
func TestResolver_DNS4(t *testing.T) {
	server := startDNSServer(t, map[string][]dns.RR{
		"boot.example.": {mustRR(t, "boot.example. 60 IN A 9.9.9.9")},
	})
	r := NewResolver(server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := r.Resolve(ctx, ma.StringCast("/dns4/boot.example/tcp/39000"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "/ip4/9.9.9.9/tcp/39000", out[0].String())
}

// TestResolver_DNSAddr 解析 /dnsaddr 并递归展开嵌套的 /dns4
func TestResolver_DNSAddr(t *testing.T) {
	server := startDNSServer(t, map[string][]dns.RR{
		"_dnsaddr.seeds.example.": {
			mustRR(t, `_dnsaddr.seeds.example. 60 IN TXT "dnsaddr=/dns4/a.example/tcp/1"`),
			mustRR(t, `_dnsaddr.seeds.example. 60 IN TXT "dnsaddr=/ip4/2.2.2.2/tcp/2"`),
			mustRR(t, `_dnsaddr.seeds.example. 60 IN TXT "unrelated"`),
		},
		"a.example.": {mustRR(t, "a.example. 60 IN A 1.1.1.1")},
	})
	r := NewResolver(server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := r.Resolve(ctx, ma.StringCast("/dnsaddr/seeds.example"))
	require.NoError(t, err)

	var got []string
	for _, m := range out {
		got = append(got, m.String())
	}
	assert.ElementsMatch(t, []string{"/ip4/1.1.1.1/tcp/1", "/ip4/2.2.2.2/tcp/2"}, got)
}

// TestResolver_NotDNS 非 DNS 地址原样返回
func TestResolver_NotDNS(t *testing.T) {
	r := NewResolver("127.0.0.1:1")
	in := ma.StringCast("/ip4/3.3.3.3/tcp/1")
	out, err := r.Resolve(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []ma.Multiaddr{in}, out)
}

// TestResolver_NoRecords 没有记录时返回错误
func TestResolver_NoRecords(t *testing.T) {
	server := startDNSServer(t, nil)
	r := NewResolver(server)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := r.Resolve(ctx, ma.StringCast("/dns4/missing.example/tcp/1"))
	assert.Error(t, err)
}
