package reachability

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	ma "github.com/multiformats/go-multiaddr"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/internal/core/netaddr"
	"github.com/dep2p/go-bootnode/internal/util/msgio"
	"github.com/dep2p/go-bootnode/pkg/protocolids"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// peerLimiterCacheSize 保留单节点限流器的数量上限
const peerLimiterCacheSize = 1024

// Server 替其他节点执行回拨
type Server struct {
	host *host.Host
	cfg  Config

	global *rate.Limiter
	peers  *lru.Cache[types.NodeID, *rate.Limiter]
}

func newServer(h *host.Host, cfg Config) *Server {
	peers, _ := lru.New[types.NodeID, *rate.Limiter](peerLimiterCacheSize)
	return &Server{
		host:   h,
		cfg:    cfg,
		global: rate.NewLimiter(rate.Every(cfg.ThrottlePeriod/time.Duration(cfg.GlobalMax)), cfg.GlobalMax),
		peers:  peers,
	}
}

// allow 同时检查全局与单节点配额
func (s *Server) allow(p types.NodeID) bool {
	l, ok := s.peers.Get(p)
	if !ok {
		l = rate.NewLimiter(rate.Every(s.cfg.ThrottlePeriod/time.Duration(s.cfg.PeerMax)), s.cfg.PeerMax)
		s.peers.Add(p, l)
	}
	if !l.Allow() {
		return false
	}
	return s.global.Allow()
}

// serve 处理一个回拨请求并返回响应
func (s *Server) serve(st *host.Stream, req *Message) *Message {
	c := st.Conn()
	remote := c.RemotePeer()
	refuse := func(text string) *Message {
		logger.Debug("拒绝回拨", "peer", remote.ShortString(), "reason", text)
		return &Message{Type: MsgDialResponse, Status: StatusDialRefused, Text: text}
	}

	if len(req.Addrs) == 0 {
		return &Message{Type: MsgDialResponse, Status: StatusBadRequest, Text: "no addresses"}
	}
	observedIP := netaddr.ToIP(c.RemoteMultiaddr())
	if observedIP == nil {
		return &Message{Type: MsgDialResponse, Status: StatusInternalError, Text: "unknown remote ip"}
	}
	if s.cfg.OnlyGlobalIPs && !netaddr.IsPublicIP(observedIP) {
		return refuse("non-global ip")
	}

	// 只回拨与观察 IP 一致的地址，防止被用来攻击第三方
	var addrs []ma.Multiaddr
	for _, a := range types.ParseAddrs(req.Addrs) {
		if ip := netaddr.ToIP(a); ip != nil && ip.Equal(observedIP) {
			addrs = append(addrs, a)
		}
	}
	if len(addrs) == 0 {
		return refuse("no dialable addresses")
	}
	if !s.allow(remote) {
		return refuse("throttled")
	}

	ctx, cancel := context.WithTimeout(c.Context(), s.cfg.ProbeTimeout)
	defer cancel()
	addr, err := s.dialBack(ctx, types.AddrInfo{ID: remote, Addrs: addrs}, req.Nonce)
	if err != nil {
		logger.Debug("回拨失败", "peer", remote.ShortString(), "error", err)
		return &Message{Type: MsgDialResponse, Status: StatusDialError, Text: err.Error()}
	}
	return &Message{Type: MsgDialResponse, Status: StatusOK, Addr: addr.String()}
}

// dialBack 建立新连接并验证随机数
func (s *Server) dialBack(ctx context.Context, info types.AddrInfo, nonce uint64) (ma.Multiaddr, error) {
	c, err := s.host.DialProbe(ctx, info)
	if err != nil {
		return nil, err
	}
	defer c.Close(nil)

	st, err := c.NewStream(ctx, protocolids.SysDialBack)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	stop := context.AfterFunc(ctx, func() { _ = st.Reset() })
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		_ = st.SetDeadline(deadline)
	}

	if err := msgio.WriteMsg(st, &Message{Type: MsgDialBack, Nonce: nonce}); err != nil {
		return nil, err
	}
	var resp Message
	if err := msgio.ReadMsg(st, &resp); err != nil {
		return nil, err
	}
	if resp.Type != MsgDialBackResponse {
		return nil, fmt.Errorf("%w: %s", ErrBadMessage, resp.Type)
	}
	if resp.Nonce != nonce {
		return nil, ErrNonceMismatch
	}
	return c.RemoteMultiaddr(), nil
}
