package reachability

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	mrand "math/rand/v2"

	ma "github.com/multiformats/go-multiaddr"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-bootnode/internal/core/host"
	"github.com/dep2p/go-bootnode/internal/core/netaddr"
	"github.com/dep2p/go-bootnode/internal/util/msgio"
	"github.com/dep2p/go-bootnode/pkg/protocolids"
	"github.com/dep2p/go-bootnode/pkg/types"
)

// pendingProbe 一次等待回拨的请求
type pendingProbe struct {
	helper   types.NodeID
	verified bool
	addr     ma.Multiaddr
}

// Run 按 ProbeInterval 周期探测，结果写入 Outcomes
func (s *Service) Run(ctx context.Context) {
	t := s.host.Clock().Ticker(s.cfg.ProbeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		outcomes, err := s.Probe(ctx)
		if err != nil {
			logger.Debug("跳过本轮探测", "error", err)
			continue
		}
		for _, o := range outcomes {
			select {
			case s.outcomes <- o:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Probe 执行一轮探测
//
// 随机选取至多 ProbeFanout 个支持回拨协议的已连接节点，并发发送请求。
func (s *Service) Probe(ctx context.Context) ([]Outcome, error) {
	helpers := s.pickHelpers()
	if len(helpers) == 0 {
		return nil, ErrNoHelpers
	}
	addrs := s.candidateAddrs()
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no candidate addresses")
	}

	out := make([]Outcome, len(helpers))
	var g errgroup.Group
	for i, c := range helpers {
		g.Go(func() error {
			out[i] = s.probeOne(ctx, c, addrs)
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

// pickHelpers 每个节点至多选一条活跃连接
func (s *Service) pickHelpers() []*host.Conn {
	seen := make(map[types.NodeID]struct{})
	var cands []*host.Conn
	for _, c := range s.host.Conns() {
		if c.State() != types.ConnActive || !c.Info().SupportsProtocol(protocolids.SysDialBack) {
			continue
		}
		if _, ok := seen[c.RemotePeer()]; ok {
			continue
		}
		seen[c.RemotePeer()] = struct{}{}
		cands = append(cands, c)
	}
	mrand.Shuffle(len(cands), func(i, j int) { cands[i], cands[j] = cands[j], cands[i] })
	if len(cands) > s.cfg.ProbeFanout {
		cands = cands[:s.cfg.ProbeFanout]
	}
	return cands
}

// candidateAddrs 本地监听地址，加上观察到的 IP 与本地传输组合出的地址
func (s *Service) candidateAddrs() []ma.Multiaddr {
	local := s.host.Addrs()
	var derived []ma.Multiaddr
	if s.observed != nil {
		for _, obs := range s.observed() {
			ip := netaddr.ToIP(obs)
			if ip == nil {
				continue
			}
			for _, l := range s.host.ListenAddrs() {
				if a, err := netaddr.WithIP(ip, l); err == nil {
					derived = append(derived, a)
				}
			}
		}
	}
	return types.MergeAddrs(s.host.ExternalAddrs(), derived, local)
}

func (s *Service) probeOne(ctx context.Context, c *host.Conn, addrs []ma.Multiaddr) Outcome {
	helper := c.RemotePeer()
	o := Outcome{Helper: helper}
	defer func() { o.At = s.host.Clock().Now() }()

	nonce, err := newNonce()
	if err != nil {
		o.Err = err
		return o
	}
	s.mu.Lock()
	s.pending[nonce] = &pendingProbe{helper: helper}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, nonce)
		s.mu.Unlock()
	}()

	resp, err := s.request(ctx, c, nonce, addrs)
	if err != nil {
		o.Err = err
		return o
	}

	s.mu.Lock()
	p := *s.pending[nonce]
	s.mu.Unlock()

	switch resp.Status {
	case StatusOK:
		if !p.verified {
			o.Err = ErrNonceMismatch
			return o
		}
		o.Success = true
		o.Addr = p.addr
		if a, err := ma.NewMultiaddr(resp.Addr); err == nil {
			o.Addr = a
		}
	case StatusDialError:
		// 结论性失败
	case StatusDialRefused:
		o.Err = fmt.Errorf("%w: %s", ErrDialRefused, resp.Text)
	default:
		o.Err = fmt.Errorf("%w: %s %s", ErrBadMessage, resp.Status, resp.Text)
	}
	logger.Debug("回拨结果", "helper", helper.ShortString(), "success", o.Success, "error", o.Err)
	return o
}

func (s *Service) request(ctx context.Context, c *host.Conn, nonce uint64, addrs []ma.Multiaddr) (*Message, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

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

	req := Message{Type: MsgDialRequest, Nonce: nonce, Addrs: types.AddrStrings(addrs)}
	if err := msgio.WriteMsg(st, &req); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	var resp Message
	if err := msgio.ReadMsg(st, &resp); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.Type != MsgDialResponse {
		return nil, fmt.Errorf("%w: %s", ErrBadMessage, resp.Type)
	}
	return &resp, nil
}

func newNonce() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}
