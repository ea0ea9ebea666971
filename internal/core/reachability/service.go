package reachability

import (
	"sync"
	"time"

	"github.com/dep2p/go-bootnode/config"
	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/internal/util/msgio"
	"github.com/dep2p/go-bootnode/pkg/lib/log"
	"github.com/dep2p/go-bootnode/pkg/protocolids"
	ma "github.com/multiformats/go-multiaddr"
)

var logger = log.Logger("core/reachability")

// Config 可达性服务配置
type Config struct {
	ProbeInterval    time.Duration
	ProbeFanout      int
	ProbeTimeout     time.Duration
	MinConfirmations int
	HistorySize      int

	GlobalMax      int
	PeerMax        int
	ThrottlePeriod time.Duration
	OnlyGlobalIPs  bool
}

// ConfigFrom 从配置文件段构造
func ConfigFrom(c config.ReachabilityConfig) Config {
	return Config{
		ProbeInterval:    c.ProbeInterval.Duration(),
		ProbeFanout:      c.ProbeFanout,
		ProbeTimeout:     c.ProbeTimeout.Duration(),
		MinConfirmations: c.MinConfirmations,
		HistorySize:      c.HistorySize,
		GlobalMax:        c.ThrottleGlobalMax,
		PeerMax:          c.ThrottlePeerMax,
		ThrottlePeriod:   c.ThrottlePeriod.Duration(),
		OnlyGlobalIPs:    c.OnlyGlobalIPs,
	}
}

// ObservedFunc 返回对端观察到的本端地址
type ObservedFunc func() []ma.Multiaddr

// Service 回拨协议的两端
//
// 同一协议 ID 上既接收他人的回拨请求（服务端），也在回拨连接上回显本节点
// 发出的随机数（客户端）。
type Service struct {
	host     *host.Host
	cfg      Config
	observed ObservedFunc

	server *Server

	mu      sync.Mutex
	pending map[uint64]*pendingProbe

	outcomes chan Outcome
}

// NewService 创建服务并注册协议处理器
func NewService(h *host.Host, cfg Config, observed ObservedFunc) *Service {
	s := &Service{
		host:     h,
		cfg:      cfg,
		observed: observed,
		pending:  make(map[uint64]*pendingProbe),
		outcomes: make(chan Outcome, 64),
	}
	s.server = newServer(h, cfg)
	h.SetStreamHandler(protocolids.SysDialBack, s.handleStream)
	return s
}

// Outcomes 返回周期探测产生的结果
func (s *Service) Outcomes() <-chan Outcome { return s.outcomes }

func (s *Service) handleStream(st *host.Stream) {
	defer st.Close()
	_ = st.SetDeadline(time.Now().Add(s.cfg.ProbeTimeout))

	var msg Message
	if err := msgio.ReadMsg(st, &msg); err != nil {
		_ = st.Reset()
		return
	}
	switch msg.Type {
	case MsgDialRequest:
		resp := s.server.serve(st, &msg)
		if err := msgio.WriteMsg(st, resp); err != nil {
			_ = st.Reset()
		}
	case MsgDialBack:
		s.answerDialBack(st, msg.Nonce)
	default:
		logger.Debug("未知消息类型", "peer", st.Conn().RemotePeer().ShortString(), "type", msg.Type)
		_ = st.Reset()
	}
}

// answerDialBack 在回拨连接上确认随机数
//
// 只回显本节点正在等待且来自对应协助节点的随机数。
func (s *Service) answerDialBack(st *host.Stream, nonce uint64) {
	remote := st.Conn().RemotePeer()

	s.mu.Lock()
	p, ok := s.pending[nonce]
	if ok && p.helper == remote {
		p.verified = true
		p.addr = st.Conn().LocalMultiaddr()
	}
	s.mu.Unlock()

	if !ok || p.helper != remote {
		logger.Debug("未预期的回拨随机数", "peer", remote.ShortString())
		_ = st.Reset()
		return
	}
	_ = msgio.WriteMsg(st, &Message{Type: MsgDialBackResponse, Nonce: nonce})
}
